package roadnetwork

import (
	"sort"

	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
)

// Snapshot is a flat copy of a RoadNetwork made of plain values only, used by the cache.
type Snapshot struct {
	Junctions []JunctionSnapshot
	Segments  []SegmentSnapshot
	Lanes     []LaneSnapshot
	Metadata  map[string]string
}

type JunctionSnapshot struct {
	ID   string
	Name string
}

type SegmentSnapshot struct {
	ID         string
	JunctionID string
	Name       string
	// LaneIDs keeps the resolved right to left order.
	LaneIDs []string
}

type LaneEndSnapshot struct {
	LaneID string
	End    uint8
}

type LaneSnapshot struct {
	ID              string
	SegmentID       string
	Type            string
	Direction       string
	LeftBoundaryID  string
	LeftInverted    bool
	RightBoundaryID string
	RightInverted   bool
	// Left/Right are flattened x, y, z triples.
	Left         []float64
	Right        []float64
	HasLeftLane  bool
	LeftLaneID   string
	HasRightLane bool
	RightLaneID  string
	Predecessors []LaneEndSnapshot
	Successors   []LaneEndSnapshot
}

func flatten(ls datastructure.LineString) []float64 {
	out := make([]float64, 0, 3*len(ls))
	for _, p := range ls {
		out = append(out, p.X, p.Y, p.Z)
	}
	return out
}

func unflatten(flat []float64) datastructure.LineString {
	ls := make(datastructure.LineString, 0, len(flat)/3)
	for i := 0; i+2 < len(flat); i += 3 {
		ls = append(ls, datastructure.NewPoint(flat[i], flat[i+1], flat[i+2]))
	}
	return ls
}

func laneEnds(m map[string]datastructure.LaneEnd) []LaneEndSnapshot {
	out := make([]LaneEndSnapshot, 0, len(m))
	for _, id := range sortedKeys(m) {
		out = append(out, LaneEndSnapshot{LaneID: m[id].LaneID, End: uint8(m[id].End)})
	}
	return out
}

// ToSnapshot copies the network into a Snapshot. Entries are in id order.
func (rn *RoadNetwork) ToSnapshot() *Snapshot {
	snap := &Snapshot{
		Junctions: make([]JunctionSnapshot, 0, len(rn.junctions)),
		Segments:  make([]SegmentSnapshot, 0, len(rn.segments)),
		Lanes:     make([]LaneSnapshot, 0, len(rn.lanes)),
		Metadata:  make(map[string]string, len(rn.metadata)),
	}
	for _, id := range sortedKeys(rn.junctions) {
		j := rn.junctions[id]
		snap.Junctions = append(snap.Junctions, JunctionSnapshot{ID: j.ID, Name: j.Name})
	}
	for _, id := range sortedKeys(rn.segments) {
		s := rn.segments[id]
		laneIDs := make([]string, 0, len(s.Lanes))
		for _, l := range s.Lanes {
			laneIDs = append(laneIDs, l.ID)
		}
		snap.Segments = append(snap.Segments, SegmentSnapshot{ID: s.ID, JunctionID: s.JunctionID, Name: s.Name, LaneIDs: laneIDs})
	}
	for _, id := range sortedKeys(rn.lanes) {
		l := rn.lanes[id]
		ls := LaneSnapshot{
			ID:              l.ID,
			SegmentID:       l.SegmentID,
			Type:            l.Type,
			Direction:       l.Direction,
			LeftBoundaryID:  l.LeftBoundaryID,
			LeftInverted:    l.LeftInverted,
			RightBoundaryID: l.RightBoundaryID,
			RightInverted:   l.RightInverted,
			Left:            flatten(l.Left),
			Right:           flatten(l.Right),
			Predecessors:    laneEnds(l.Predecessors),
			Successors:      laneEnds(l.Successors),
		}
		if l.LeftLaneID != nil {
			ls.HasLeftLane, ls.LeftLaneID = true, *l.LeftLaneID
		}
		if l.RightLaneID != nil {
			ls.HasRightLane, ls.RightLaneID = true, *l.RightLaneID
		}
		snap.Lanes = append(snap.Lanes, ls)
	}
	for k, v := range rn.metadata {
		snap.Metadata[k] = v
	}
	return snap
}

// FromSnapshot rebuilds a RoadNetwork. It applies the same reference checks as New, and a
// segment's lanes keep the order stored in the snapshot.
func FromSnapshot(snap *Snapshot) (*RoadNetwork, error) {
	junctions := make(map[string]junctionInfo, len(snap.Junctions))
	for _, j := range snap.Junctions {
		junctions[j.ID] = junctionInfo{id: j.ID, name: j.Name}
	}
	segments := make(map[string]segmentInfo, len(snap.Segments))
	order := make(map[string]int, len(snap.Lanes))
	storedLanes := make(map[string]int, len(snap.Segments))
	for _, s := range snap.Segments {
		segments[s.ID] = segmentInfo{id: s.ID, junctionID: s.JunctionID, name: s.Name}
		storedLanes[s.ID] = len(s.LaneIDs)
		for i, id := range s.LaneIDs {
			order[id] = i
		}
	}

	lanes := make(map[string]*datastructure.Lane, len(snap.Lanes))
	for _, ls := range snap.Lanes {
		l := datastructure.NewLane(ls.ID, ls.SegmentID, ls.Type, ls.Direction)
		l.LeftBoundaryID, l.LeftInverted = ls.LeftBoundaryID, ls.LeftInverted
		l.RightBoundaryID, l.RightInverted = ls.RightBoundaryID, ls.RightInverted
		l.Left = unflatten(ls.Left)
		l.Right = unflatten(ls.Right)
		if ls.HasLeftLane {
			id := ls.LeftLaneID
			l.LeftLaneID = &id
		}
		if ls.HasRightLane {
			id := ls.RightLaneID
			l.RightLaneID = &id
		}
		for _, p := range ls.Predecessors {
			l.AddPredecessor(datastructure.NewLaneEnd(p.LaneID, datastructure.Which(p.End)))
		}
		for _, s := range ls.Successors {
			l.AddSuccessor(datastructure.NewLaneEnd(s.LaneID, datastructure.Which(s.End)))
		}
		lanes[ls.ID] = l
	}

	rn, err := assemble(junctions, segments, lanes)
	if err != nil {
		return nil, err
	}

	// assemble re-sorted the lanes, restore the stored order. Lanes missing from LaneIDs go last.
	for _, seg := range rn.segments {
		lanes := seg.Lanes
		rank := func(id string) int {
			if i, ok := order[id]; ok {
				return i
			}
			return storedLanes[seg.ID]
		}
		sort.SliceStable(lanes, func(i, j int) bool {
			return rank(lanes[i].ID) < rank(lanes[j].ID)
		})
	}

	rn.metadata = make(map[string]string, len(snap.Metadata))
	for k, v := range snap.Metadata {
		rn.metadata[k] = v
	}
	return rn, nil
}
