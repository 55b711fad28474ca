package roadnetwork

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
	"github.com/lintang-b-s/roadgpkg/pkg/gpkgparser"
	"github.com/lintang-b-s/roadgpkg/pkg/topology"
	"github.com/lintang-b-s/roadgpkg/pkg/util"
)

// RoadNetwork is the assembled junction -> segment -> lane graph with its lane end connections.
// It is never modified after construction and is safe for concurrent readers.
type RoadNetwork struct {
	junctions   map[string]*datastructure.Junction
	segments    map[string]*datastructure.Segment
	lanes       map[string]*datastructure.Lane
	connections []datastructure.Connection
	metadata    map[string]string
}

type Stats struct {
	Junctions   int `json:"junctions"`
	Segments    int `json:"segments"`
	Lanes       int `json:"lanes"`
	Connections int `json:"connections"`
}

// Load reads the GeoPackage at path and assembles its road network.
func Load(path string, lg *log.Logger) (*RoadNetwork, error) {
	start := time.Now()
	tables, err := gpkgparser.Parse(path, lg)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	rn, err := New(tables, lg)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	st := rn.Stats()
	lg.Info("road network loaded",
		"file", path,
		"junctions", st.Junctions,
		"segments", st.Segments,
		"lanes", st.Lanes,
		"connections", st.Connections,
		"elapsed", time.Since(start))
	return rn, nil
}

// New resolves the topology of tables and assembles the road network.
func New(tables *gpkgparser.Tables, lg *log.Logger) (*RoadNetwork, error) {
	lg.Debug("resolving lane topology...")
	lanes, err := topology.Resolve(tables)
	if err != nil {
		return nil, err
	}

	junctions := make(map[string]junctionInfo, len(tables.Junctions))
	for id, j := range tables.Junctions {
		junctions[id] = junctionInfo{id: id, name: j.Name}
	}
	segments := make(map[string]segmentInfo, len(tables.Segments))
	for id, s := range tables.Segments {
		segments[id] = segmentInfo{id: id, junctionID: s.JunctionID, name: s.Name}
	}

	lg.Debug("assembling road network...")
	rn, err := assemble(junctions, segments, lanes)
	if err != nil {
		return nil, err
	}
	rn.metadata = make(map[string]string, len(tables.Metadata))
	for k, v := range tables.Metadata {
		rn.metadata[k] = v
	}
	return rn, nil
}

type junctionInfo struct {
	id   string
	name string
}

type segmentInfo struct {
	id         string
	junctionID string
	name       string
}

// assemble groups lanes into segments and segments into junctions, then derives the
// connection list. Every segment must name an existing junction and every lane an existing
// segment. Segments without lanes and junctions without segments are kept.
func assemble(junctionRows map[string]junctionInfo, segmentRows map[string]segmentInfo,
	lanes map[string]*datastructure.Lane) (*RoadNetwork, error) {

	rn := &RoadNetwork{
		junctions: make(map[string]*datastructure.Junction, len(junctionRows)),
		segments:  make(map[string]*datastructure.Segment, len(segmentRows)),
		lanes:     lanes,
	}

	for id, j := range junctionRows {
		rn.junctions[id] = datastructure.NewJunction(id, j.name)
	}

	for _, id := range sortedKeys(segmentRows) {
		s := segmentRows[id]
		junction, ok := rn.junctions[s.junctionID]
		if !ok {
			return nil, &topology.DanglingReferenceError{Entity: "segment", EntityID: id, TargetKind: "junction", TargetID: s.junctionID}
		}
		segment := datastructure.NewSegment(id, s.junctionID, s.name)
		junction.Segments[id] = segment
		rn.segments[id] = segment
	}

	// lanes are grouped in id order so the sort fallback is reproducible.
	for _, id := range sortedKeys(lanes) {
		lane := lanes[id]
		segment, ok := rn.segments[lane.SegmentID]
		if !ok {
			return nil, &topology.DanglingReferenceError{Entity: "lane", EntityID: id, TargetKind: "segment", TargetID: lane.SegmentID}
		}
		segment.Lanes = append(segment.Lanes, lane)
	}
	for _, segment := range rn.segments {
		segment.Lanes = topology.SortLanes(segment.Lanes)
	}

	rn.connections = buildConnections(rn.segments)
	return rn, nil
}

// buildConnections projects every predecessor p of lane L to p -> (L, start) and every
// successor s to (L, finish) -> s, sorted and without duplicates.
func buildConnections(segments map[string]*datastructure.Segment) []datastructure.Connection {
	conns := make([]datastructure.Connection, 0)
	for _, segment := range segments {
		for _, lane := range segment.Lanes {
			for _, pred := range lane.Predecessors {
				conns = append(conns, datastructure.NewConnection(pred, datastructure.NewLaneEnd(lane.ID, datastructure.WhichStart)))
			}
			for _, succ := range lane.Successors {
				conns = append(conns, datastructure.NewConnection(datastructure.NewLaneEnd(lane.ID, datastructure.WhichFinish), succ))
			}
		}
	}
	conns = util.QuickSortG(conns, datastructure.CompareConnections)
	return datastructure.UniqueConnections(conns)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Junctions returns the junctions keyed by id. Callers must not modify the result.
func (rn *RoadNetwork) Junctions() map[string]*datastructure.Junction {
	return rn.junctions
}

// Connections returns the connections in (from.lane, from.end, to.lane, to.end) order.
// Callers must not modify the result.
func (rn *RoadNetwork) Connections() []datastructure.Connection {
	return rn.connections
}

func (rn *RoadNetwork) Junction(id string) (*datastructure.Junction, bool) {
	j, ok := rn.junctions[id]
	return j, ok
}

func (rn *RoadNetwork) Segment(id string) (*datastructure.Segment, bool) {
	s, ok := rn.segments[id]
	return s, ok
}

func (rn *RoadNetwork) Lane(id string) (*datastructure.Lane, bool) {
	l, ok := rn.lanes[id]
	return l, ok
}

// LaneConnections returns the connections leaving or entering the given lane.
func (rn *RoadNetwork) LaneConnections(laneID string) []datastructure.Connection {
	out := make([]datastructure.Connection, 0)
	for _, c := range rn.connections {
		if c.From.LaneID == laneID || c.To.LaneID == laneID {
			out = append(out, c)
		}
	}
	return out
}

// Metadata returns the key/value pairs of the maliput_metadata table.
func (rn *RoadNetwork) Metadata() map[string]string {
	return rn.metadata
}

func (rn *RoadNetwork) Stats() Stats {
	return Stats{
		Junctions:   len(rn.junctions),
		Segments:    len(rn.segments),
		Lanes:       len(rn.lanes),
		Connections: len(rn.connections),
	}
}
