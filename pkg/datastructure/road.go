package datastructure

import (
	"fmt"
	"strings"
)

// Which identifies one end of a lane. WhichStart orders before WhichFinish.
type Which int

const (
	WhichStart Which = iota
	WhichFinish
)

func (w Which) String() string {
	switch w {
	case WhichStart:
		return "start"
	case WhichFinish:
		return "finish"
	}
	return fmt.Sprintf("Which(%d)", int(w))
}

// ParseWhich parses the lane_end column of branch_point_lanes.
func ParseWhich(s string) (Which, bool) {
	switch strings.TrimSpace(s) {
	case "start":
		return WhichStart, true
	case "finish":
		return WhichFinish, true
	}
	return WhichStart, false
}

type LaneEnd struct {
	LaneID string
	End    Which
}

func NewLaneEnd(laneID string, end Which) LaneEnd {
	return LaneEnd{
		LaneID: laneID,
		End:    end,
	}
}

func (le LaneEnd) String() string {
	return le.LaneID + ":" + le.End.String()
}

/*
Lane. one lane of a segment, bounded by a left and a right boundary linestring.

Left/Right hold the effective geometry: the referenced boundary, reversed when the matching
inverted flag is set. LeftLaneID/RightLaneID are nil when the lane has no neighbour on that side.
Predecessors/Successors are keyed by the other lane id; each value is the end of that other lane
that touches this lane.
*/
type Lane struct {
	ID        string
	SegmentID string
	Type      string
	Direction string

	LeftBoundaryID  string
	LeftInverted    bool
	RightBoundaryID string
	RightInverted   bool

	Left  LineString
	Right LineString

	LeftLaneID  *string
	RightLaneID *string

	Predecessors map[string]LaneEnd
	Successors   map[string]LaneEnd
}

func NewLane(id, segmentID, laneType, direction string) *Lane {
	return &Lane{
		ID:           id,
		SegmentID:    segmentID,
		Type:         laneType,
		Direction:    direction,
		Predecessors: make(map[string]LaneEnd),
		Successors:   make(map[string]LaneEnd),
	}
}

// Length is the mean length of the two boundaries.
func (l *Lane) Length() float64 {
	return (l.Left.Length() + l.Right.Length()) / 2
}

// AddPredecessor records end as a predecessor unless the other lane is already present.
func (l *Lane) AddPredecessor(end LaneEnd) {
	if _, ok := l.Predecessors[end.LaneID]; ok {
		return
	}
	l.Predecessors[end.LaneID] = end
}

func (l *Lane) AddSuccessor(end LaneEnd) {
	if _, ok := l.Successors[end.LaneID]; ok {
		return
	}
	l.Successors[end.LaneID] = end
}

type Segment struct {
	ID         string
	JunctionID string
	Name       string
	// Lanes ordered from the rightmost lane to the leftmost lane.
	Lanes []*Lane
}

func NewSegment(id, junctionID, name string) *Segment {
	return &Segment{
		ID:         id,
		JunctionID: junctionID,
		Name:       name,
		Lanes:      make([]*Lane, 0),
	}
}

type Junction struct {
	ID       string
	Name     string
	Segments map[string]*Segment
}

func NewJunction(id, name string) *Junction {
	return &Junction{
		ID:       id,
		Name:     name,
		Segments: make(map[string]*Segment),
	}
}
