package topology

import (
	"fmt"
	"sort"

	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
	"github.com/lintang-b-s/roadgpkg/pkg/gpkgparser"
)

// DanglingReferenceError reports a row that names an entity missing from its table.
type DanglingReferenceError struct {
	Entity     string
	EntityID   string
	TargetKind string
	TargetID   string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("%s %q references missing %s %q", e.Entity, e.EntityID, e.TargetKind, e.TargetID)
}

/*
Resolve turns the parsed tables into lanes with bound geometry, lateral neighbours and
end-to-end connectivity. It runs three passes:

 1. geometry binding: every lane gets its left and right boundary, reversed when the
    lane row marks the boundary as inverted.
 2. lateral adjacency: left/right neighbour ids, the last row for a side wins.
 3. branch points: every side a member is connected to every side b member. A member
    touching the branch point with its start end gets the other lane end as predecessor,
    a member touching it with its finish end gets it as successor.

The first missing segment, boundary or lane reference aborts the resolve.
*/
func Resolve(tables *gpkgparser.Tables) (map[string]*datastructure.Lane, error) {
	lanes, err := bindGeometry(tables)
	if err != nil {
		return nil, err
	}
	applyAdjacency(tables, lanes)
	if err := applyBranchPoints(tables, lanes); err != nil {
		return nil, err
	}
	return lanes, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func bindGeometry(tables *gpkgparser.Tables) (map[string]*datastructure.Lane, error) {
	lanes := make(map[string]*datastructure.Lane, len(tables.Lanes))

	boundary := func(laneID, boundaryID string, inverted bool) (datastructure.LineString, error) {
		ls, ok := tables.Boundaries[boundaryID]
		if !ok {
			return nil, &DanglingReferenceError{Entity: "lane", EntityID: laneID, TargetKind: "boundary", TargetID: boundaryID}
		}
		if inverted {
			return ls.Reversed(), nil
		}
		return ls, nil
	}

	for _, id := range sortedKeys(tables.Lanes) {
		rec := tables.Lanes[id]
		if _, ok := tables.Segments[rec.SegmentID]; !ok {
			return nil, &DanglingReferenceError{Entity: "lane", EntityID: id, TargetKind: "segment", TargetID: rec.SegmentID}
		}

		lane := datastructure.NewLane(id, rec.SegmentID, rec.LaneType, rec.Direction)
		lane.LeftBoundaryID = rec.LeftBoundaryID
		lane.LeftInverted = rec.LeftBoundaryInverted
		lane.RightBoundaryID = rec.RightBoundaryID
		lane.RightInverted = rec.RightBoundaryInverted

		var err error
		if lane.Left, err = boundary(id, rec.LeftBoundaryID, rec.LeftBoundaryInverted); err != nil {
			return nil, err
		}
		if lane.Right, err = boundary(id, rec.RightBoundaryID, rec.RightBoundaryInverted); err != nil {
			return nil, err
		}
		lanes[id] = lane
	}
	return lanes, nil
}

// applyAdjacency ignores rows of lanes that do not exist. Neighbour ids are not checked,
// SortLanes treats unknown ids like neighbours outside the segment.
func applyAdjacency(tables *gpkgparser.Tables, lanes map[string]*datastructure.Lane) {
	for laneID, rows := range tables.AdjacentLanes {
		lane, ok := lanes[laneID]
		if !ok {
			continue
		}
		for _, adj := range rows {
			neighbour := adj.AdjacentLaneID
			switch adj.Side {
			case gpkgparser.SideLeft:
				lane.LeftLaneID = &neighbour
			case gpkgparser.SideRight:
				lane.RightLaneID = &neighbour
			}
		}
	}
}

func applyBranchPoints(tables *gpkgparser.Tables, lanes map[string]*datastructure.Lane) error {
	for _, bpID := range sortedKeys(tables.BranchPoints) {
		members := tables.BranchPoints[bpID]

		var sideA, sideB []gpkgparser.BranchPointLane
		for _, m := range members {
			if _, ok := lanes[m.LaneID]; !ok {
				return &DanglingReferenceError{Entity: "branch point", EntityID: bpID, TargetKind: "lane", TargetID: m.LaneID}
			}
			if m.Side == gpkgparser.SideA {
				sideA = append(sideA, m)
			} else {
				sideB = append(sideB, m)
			}
		}

		for _, a := range sideA {
			for _, b := range sideB {
				connect(lanes[a.LaneID], a.End, datastructure.NewLaneEnd(b.LaneID, b.End))
				connect(lanes[b.LaneID], b.End, datastructure.NewLaneEnd(a.LaneID, a.End))
			}
		}
	}
	return nil
}

func connect(lane *datastructure.Lane, end datastructure.Which, other datastructure.LaneEnd) {
	if end == datastructure.WhichStart {
		lane.AddPredecessor(other)
		return
	}
	lane.AddSuccessor(other)
}
