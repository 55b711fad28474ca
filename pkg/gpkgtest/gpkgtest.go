// Package gpkgtest writes small road network GeoPackages for tests.
package gpkgtest

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	_ "modernc.org/sqlite"
)

// Envelope indicators of the GeoPackage binary header.
const (
	EnvelopeNone = 0
	EnvelopeXY   = 1
	EnvelopeXYZ  = 2
	EnvelopeXYM  = 3
	EnvelopeXYZM = 4
)

// EncodeLineString builds a GeoPackage binary LineString blob. Each point is [x, y] or [x, y, z];
// the layout is taken from the first point.
func EncodeLineString(points [][]float64, envelope int) ([]byte, error) {
	layout := geom.XY
	if len(points) > 0 && len(points[0]) == 3 {
		layout = geom.XYZ
	}
	coords := make([]geom.Coord, 0, len(points))
	for _, p := range points {
		coords = append(coords, geom.Coord(p))
	}
	ls, err := geom.NewLineString(layout).SetCoords(coords)
	if err != nil {
		return nil, err
	}

	wkb, err := ewkb.Marshal(ls, binary.LittleEndian)
	if err != nil {
		return nil, err
	}

	header := make([]byte, 8)
	header[0] = 'G'
	header[1] = 'P'
	header[2] = 0
	header[3] = 0x01 | byte(envelope<<1)
	binary.LittleEndian.PutUint32(header[4:8], 0)

	return append(append(header, encodeEnvelope(ls, envelope)...), wkb...), nil
}

// MustEncodeLineString is EncodeLineString that panics on error.
func MustEncodeLineString(points [][]float64, envelope int) []byte {
	blob, err := EncodeLineString(points, envelope)
	if err != nil {
		panic(err)
	}
	return blob
}

func encodeEnvelope(ls *geom.LineString, envelope int) []byte {
	var values []float64
	b := ls.Bounds()
	minmax := func(dim int) []float64 {
		if dim >= b.Layout().Stride() {
			return []float64{0, 0}
		}
		return []float64{b.Min(dim), b.Max(dim)}
	}
	switch envelope {
	case EnvelopeNone:
		return nil
	case EnvelopeXY:
		values = append(minmax(0), minmax(1)...)
	case EnvelopeXYZ, EnvelopeXYM:
		values = append(append(minmax(0), minmax(1)...), minmax(2)...)
	default:
		values = append(append(append(minmax(0), minmax(1)...), minmax(2)...), 0, 0)
	}
	out := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(out[8*i:], math.Float64bits(v))
	}
	return out
}

type Junction struct {
	ID   string
	Name string
}

type Segment struct {
	ID         string
	JunctionID string
	Name       string
}

// Boundary rows store Blob when set, Points otherwise.
type Boundary struct {
	ID     string
	Points [][]float64
	Blob   []byte
}

type Lane struct {
	ID              string
	SegmentID       string
	Type            string
	Direction       string
	LeftBoundaryID  string
	LeftInverted    bool
	RightBoundaryID string
	RightInverted   bool
}

type BranchPointLane struct {
	BranchPointID string
	LaneID        string
	Side          string
	LaneEnd       string
}

type AdjacentLane struct {
	LaneID         string
	AdjacentLaneID string
	Side           string
}

// Fixture describes the content of a road network GeoPackage.
type Fixture struct {
	Metadata     map[string]string
	Junctions    []Junction
	Segments     []Segment
	Boundaries   []Boundary
	Lanes        []Lane
	BranchPoints []BranchPointLane
	Adjacent     []AdjacentLane

	// BoundaryTable defaults to lane_boundaries, AdjacencyTable to view_adjacent_lanes.
	BoundaryTable  string
	AdjacencyTable string
	// Omit lists tables that are not created at all.
	Omit []string
}

func (f Fixture) omitted(table string) bool {
	for _, t := range f.Omit {
		if t == table {
			return true
		}
	}
	return false
}

// Write creates the GeoPackage at path.
func (f Fixture) Write(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	boundaryTable := f.BoundaryTable
	if boundaryTable == "" {
		boundaryTable = "lane_boundaries"
	}
	adjacencyTable := f.AdjacencyTable
	if adjacencyTable == "" {
		adjacencyTable = "view_adjacent_lanes"
	}

	ddl := []struct {
		table string
		stmt  string
	}{
		{"maliput_metadata", "CREATE TABLE maliput_metadata (key TEXT, value TEXT)"},
		{"junctions", "CREATE TABLE junctions (junction_id TEXT PRIMARY KEY, name TEXT)"},
		{"segments", "CREATE TABLE segments (segment_id TEXT PRIMARY KEY, junction_id TEXT, name TEXT)"},
		{boundaryTable, fmt.Sprintf("CREATE TABLE %s (boundary_id TEXT PRIMARY KEY, geometry BLOB)", boundaryTable)},
		{"lanes", `CREATE TABLE lanes (
			lane_id TEXT PRIMARY KEY,
			segment_id TEXT,
			lane_type TEXT,
			direction TEXT,
			left_boundary_id TEXT,
			left_boundary_inverted INTEGER,
			right_boundary_id TEXT,
			right_boundary_inverted INTEGER)`},
		{"branch_point_lanes", "CREATE TABLE branch_point_lanes (branch_point_id TEXT, lane_id TEXT, side TEXT, lane_end TEXT)"},
		{adjacencyTable, fmt.Sprintf("CREATE TABLE %s (lane_id TEXT, adjacent_lane_id TEXT, side TEXT)", adjacencyTable)},
	}
	for _, d := range ddl {
		if f.omitted(d.table) {
			continue
		}
		if _, err := db.Exec(d.stmt); err != nil {
			return fmt.Errorf("create %s: %w", d.table, err)
		}
	}

	// rows of omitted tables are dropped.
	if f.omitted("maliput_metadata") {
		f.Metadata = nil
	}
	if f.omitted("junctions") {
		f.Junctions = nil
	}
	if f.omitted("segments") {
		f.Segments = nil
	}
	if f.omitted(boundaryTable) {
		f.Boundaries = nil
	}
	if f.omitted("lanes") {
		f.Lanes = nil
	}
	if f.omitted("branch_point_lanes") {
		f.BranchPoints = nil
	}
	if f.omitted(adjacencyTable) {
		f.Adjacent = nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for k, v := range f.Metadata {
		if _, err := tx.Exec("INSERT INTO maliput_metadata (key, value) VALUES (?, ?)", k, v); err != nil {
			return err
		}
	}
	for _, j := range f.Junctions {
		if _, err := tx.Exec("INSERT INTO junctions (junction_id, name) VALUES (?, ?)", j.ID, j.Name); err != nil {
			return err
		}
	}
	for _, s := range f.Segments {
		if _, err := tx.Exec("INSERT INTO segments (segment_id, junction_id, name) VALUES (?, ?, ?)",
			s.ID, s.JunctionID, s.Name); err != nil {
			return err
		}
	}
	for _, b := range f.Boundaries {
		blob := b.Blob
		if blob == nil {
			blob, err = EncodeLineString(b.Points, EnvelopeNone)
			if err != nil {
				return fmt.Errorf("encode boundary %s: %w", b.ID, err)
			}
		}
		if _, err := tx.Exec(fmt.Sprintf("INSERT INTO %s (boundary_id, geometry) VALUES (?, ?)", boundaryTable),
			b.ID, blob); err != nil {
			return err
		}
	}
	for _, l := range f.Lanes {
		if _, err := tx.Exec(`INSERT INTO lanes (lane_id, segment_id, lane_type, direction,
			left_boundary_id, left_boundary_inverted, right_boundary_id, right_boundary_inverted)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			l.ID, l.SegmentID, l.Type, l.Direction,
			l.LeftBoundaryID, boolInt(l.LeftInverted), l.RightBoundaryID, boolInt(l.RightInverted)); err != nil {
			return err
		}
	}
	for _, bp := range f.BranchPoints {
		if _, err := tx.Exec("INSERT INTO branch_point_lanes (branch_point_id, lane_id, side, lane_end) VALUES (?, ?, ?, ?)",
			bp.BranchPointID, bp.LaneID, bp.Side, bp.LaneEnd); err != nil {
			return err
		}
	}
	for _, a := range f.Adjacent {
		if _, err := tx.Exec(fmt.Sprintf("INSERT INTO %s (lane_id, adjacent_lane_id, side) VALUES (?, ?, ?)", adjacencyTable),
			a.LaneID, a.AdjacentLaneID, a.Side); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// WriteTemp writes f into a fresh temp directory and returns the file path.
func WriteTemp(t testing.TB, f Fixture) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "road.gpkg")
	if err := f.Write(path); err != nil {
		t.Fatalf("write geopackage fixture: %v", err)
	}
	return path
}

const (
	roadLength    = 100.0
	laneHalfWidth = 3.5
)

// TwoLaneRoad is a straight 100m road with two lanes in one segment. lane_1 sits left of lane_2
// and the lanes share the center boundary. Both lanes start at bp_start and end at bp_end.
func TwoLaneRoad() Fixture {
	return Fixture{
		Metadata:  map[string]string{"linear_tolerance": "0.01"},
		Junctions: []Junction{{ID: "j1", Name: "Main Junction"}},
		Segments:  []Segment{{ID: "seg1", JunctionID: "j1", Name: "Straight Segment"}},
		Boundaries: []Boundary{
			{ID: "b_left_outer", Points: [][]float64{{0, laneHalfWidth, 0}, {roadLength, laneHalfWidth, 0}}},
			{ID: "b_center", Points: [][]float64{{0, 0, 0}, {roadLength, 0, 0}}},
			{ID: "b_right_outer", Points: [][]float64{{0, -laneHalfWidth, 0}, {roadLength, -laneHalfWidth, 0}}},
		},
		Lanes: []Lane{
			{ID: "lane_1", SegmentID: "seg1", Type: "driving", Direction: "forward",
				LeftBoundaryID: "b_left_outer", RightBoundaryID: "b_center"},
			{ID: "lane_2", SegmentID: "seg1", Type: "driving", Direction: "forward",
				LeftBoundaryID: "b_center", RightBoundaryID: "b_right_outer"},
		},
		BranchPoints: []BranchPointLane{
			{BranchPointID: "bp_start", LaneID: "lane_1", Side: "a", LaneEnd: "start"},
			{BranchPointID: "bp_start", LaneID: "lane_2", Side: "a", LaneEnd: "start"},
			{BranchPointID: "bp_end", LaneID: "lane_1", Side: "b", LaneEnd: "finish"},
			{BranchPointID: "bp_end", LaneID: "lane_2", Side: "b", LaneEnd: "finish"},
		},
		Adjacent: []AdjacentLane{
			{LaneID: "lane_1", AdjacentLaneID: "lane_2", Side: "right"},
			{LaneID: "lane_2", AdjacentLaneID: "lane_1", Side: "left"},
		},
	}
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
