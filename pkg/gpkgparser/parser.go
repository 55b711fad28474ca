package gpkgparser

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lintang-b-s/roadgpkg/pkg/geometry"
	"github.com/lintang-b-s/roadgpkg/pkg/sqlite"
)

var (
	ErrMissingTable = errors.New("missing table")
)

// candidate table names, first existing one wins.
var (
	boundaryTables  = []string{"lane_boundaries", "boundaries"}
	adjacencyTables = []string{"view_adjacent_lanes", "adjacent_lanes"}
)

type GeoPackageParser struct {
	db *sqlite.Database
	lg *log.Logger
}

func NewGeoPackageParser(db *sqlite.Database, lg *log.Logger) *GeoPackageParser {
	return &GeoPackageParser{
		db: db,
		lg: lg,
	}
}

// Parse opens the GeoPackage at path read-only and reads every road network table.
func Parse(path string, lg *log.Logger) (*Tables, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return NewGeoPackageParser(db, lg).Parse()
}

func (p *GeoPackageParser) Parse() (*Tables, error) {
	start := time.Now()
	tables := NewTables()

	steps := []struct {
		name string
		fn   func(*Tables) error
	}{
		{"metadata", p.parseMetadata},
		{"junctions", p.parseJunctions},
		{"segments", p.parseSegments},
		{"lane boundaries", p.parseBoundaries},
		{"lanes", p.parseLanes},
		{"branch point lanes", p.parseBranchPointLanes},
		{"adjacent lanes", p.parseAdjacentLanes},
	}
	for _, step := range steps {
		p.lg.Debugf("parsing geopackage %s...", step.name)
		if err := step.fn(tables); err != nil {
			return nil, err
		}
	}

	p.lg.Info("geopackage tables parsed",
		"junctions", len(tables.Junctions),
		"segments", len(tables.Segments),
		"boundaries", len(tables.Boundaries),
		"lanes", len(tables.Lanes),
		"branch_points", len(tables.BranchPoints),
		"elapsed", time.Since(start))
	return tables, nil
}

// readRows runs query and calls fn once per row. The statement is closed on every path.
func (p *GeoPackageParser) readRows(table, query string, fn func(stmt *sqlite.Statement) error) error {
	stmt, err := p.db.Prepare(query)
	if err != nil {
		return &QueryError{Table: table, Err: err}
	}
	defer stmt.Close()

	for {
		ok, err := stmt.Step()
		if err != nil {
			return &QueryError{Table: table, Err: err}
		}
		if !ok {
			return nil
		}
		if err := fn(stmt); err != nil {
			return err
		}
	}
}

// resolveTable returns the first of names that exists in the database.
func (p *GeoPackageParser) resolveTable(names []string) (string, error) {
	for _, name := range names {
		ok, err := p.db.HasTable(name)
		if err != nil {
			return "", &QueryError{Table: name, Err: err}
		}
		if ok {
			return name, nil
		}
	}
	return "", &QueryError{Table: names[0], Err: fmt.Errorf("%w: none of %v", ErrMissingTable, names)}
}

func (p *GeoPackageParser) parseMetadata(t *Tables) error {
	return p.readRows("maliput_metadata", "SELECT key, value FROM maliput_metadata", func(stmt *sqlite.Statement) error {
		t.Metadata[stmt.ColumnText(0)] = stmt.ColumnText(1)
		return nil
	})
}

func (p *GeoPackageParser) parseJunctions(t *Tables) error {
	return p.readRows("junctions", "SELECT junction_id, name FROM junctions", func(stmt *sqlite.Statement) error {
		id := stmt.ColumnText(0)
		t.Junctions[id] = JunctionRecord{ID: id, Name: stmt.ColumnText(1)}
		return nil
	})
}

func (p *GeoPackageParser) parseSegments(t *Tables) error {
	return p.readRows("segments", "SELECT segment_id, junction_id, name FROM segments", func(stmt *sqlite.Statement) error {
		id := stmt.ColumnText(0)
		t.Segments[id] = SegmentRecord{
			ID:         id,
			JunctionID: stmt.ColumnText(1),
			Name:       stmt.ColumnText(2),
		}
		return nil
	})
}

func (p *GeoPackageParser) parseBoundaries(t *Tables) error {
	table, err := p.resolveTable(boundaryTables)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT boundary_id, geometry FROM %s", table)
	return p.readRows(table, query, func(stmt *sqlite.Statement) error {
		id := stmt.ColumnText(0)
		ls, err := geometry.DecodeGeoPackageLineString(stmt.ColumnBlob(1))
		if err != nil {
			var mErr *geometry.MalformedGeometryError
			if errors.As(err, &mErr) {
				mErr.BoundaryID = id
			}
			return fmt.Errorf("decode boundary %s: %w", id, err)
		}
		t.Boundaries[id] = ls
		return nil
	})
}

func (p *GeoPackageParser) parseLanes(t *Tables) error {
	query := `SELECT lane_id, segment_id, lane_type, direction,
		left_boundary_id, left_boundary_inverted, right_boundary_id, right_boundary_inverted
		FROM lanes`
	return p.readRows("lanes", query, func(stmt *sqlite.Statement) error {
		id := stmt.ColumnText(0)
		t.Lanes[id] = LaneRecord{
			ID:                    id,
			SegmentID:             stmt.ColumnText(1),
			LaneType:              stmt.ColumnText(2),
			Direction:             stmt.ColumnText(3),
			LeftBoundaryID:        stmt.ColumnText(4),
			LeftBoundaryInverted:  stmt.ColumnBool(5),
			RightBoundaryID:       stmt.ColumnText(6),
			RightBoundaryInverted: stmt.ColumnBool(7),
		}
		return nil
	})
}

func (p *GeoPackageParser) parseBranchPointLanes(t *Tables) error {
	query := "SELECT branch_point_id, lane_id, side, lane_end FROM branch_point_lanes"
	return p.readRows("branch_point_lanes", query, func(stmt *sqlite.Statement) error {
		bpID := stmt.ColumnText(0)
		side, err := ParseBranchSide(stmt.ColumnText(2))
		if err != nil {
			return fmt.Errorf("branch point %s: %w", bpID, err)
		}
		end, err := parseLaneEnd(stmt.ColumnText(3))
		if err != nil {
			return fmt.Errorf("branch point %s: %w", bpID, err)
		}
		t.BranchPoints[bpID] = append(t.BranchPoints[bpID], BranchPointLane{
			LaneID: stmt.ColumnText(1),
			Side:   side,
			End:    end,
		})
		return nil
	})
}

func (p *GeoPackageParser) parseAdjacentLanes(t *Tables) error {
	table, err := p.resolveTable(adjacencyTables)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("SELECT lane_id, adjacent_lane_id, side FROM %s", table)
	return p.readRows(table, query, func(stmt *sqlite.Statement) error {
		laneID := stmt.ColumnText(0)
		side, err := ParseLateralSide(stmt.ColumnText(2))
		if err != nil {
			return fmt.Errorf("adjacent lanes of %s: %w", laneID, err)
		}
		t.AdjacentLanes[laneID] = append(t.AdjacentLanes[laneID], AdjacentLane{
			AdjacentLaneID: stmt.ColumnText(1),
			Side:           side,
		})
		return nil
	})
}
