package gpkgparser

import (
	"fmt"
	"strings"

	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
)

// BranchSide is the side of a branch point a lane end belongs to.
type BranchSide int

const (
	SideA BranchSide = iota
	SideB
)

func (s BranchSide) String() string {
	if s == SideA {
		return "a"
	}
	return "b"
}

func ParseBranchSide(s string) (BranchSide, error) {
	switch strings.TrimSpace(s) {
	case "a":
		return SideA, nil
	case "b":
		return SideB, nil
	}
	return SideA, &UnknownEnumValueError{Column: "side", Value: s}
}

// LateralSide is the side of a lane an adjacent lane lies on.
type LateralSide int

const (
	SideLeft LateralSide = iota
	SideRight
)

func (s LateralSide) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

func ParseLateralSide(s string) (LateralSide, error) {
	switch strings.TrimSpace(s) {
	case "left":
		return SideLeft, nil
	case "right":
		return SideRight, nil
	}
	return SideLeft, &UnknownEnumValueError{Column: "side", Value: s}
}

func parseLaneEnd(s string) (datastructure.Which, error) {
	w, ok := datastructure.ParseWhich(s)
	if !ok {
		return w, &UnknownEnumValueError{Column: "lane_end", Value: s}
	}
	return w, nil
}

type JunctionRecord struct {
	ID   string
	Name string
}

type SegmentRecord struct {
	ID         string
	JunctionID string
	Name       string
}

type LaneRecord struct {
	ID                    string
	SegmentID             string
	LaneType              string
	Direction             string
	LeftBoundaryID        string
	LeftBoundaryInverted  bool
	RightBoundaryID       string
	RightBoundaryInverted bool
}

type BranchPointLane struct {
	LaneID string
	Side   BranchSide
	End    datastructure.Which
}

type AdjacentLane struct {
	AdjacentLaneID string
	Side           LateralSide
}

// Tables is the raw content of a road network GeoPackage, one field per table.
// Branch point members and adjacency rows keep their row order.
type Tables struct {
	Metadata      map[string]string
	Junctions     map[string]JunctionRecord
	Segments      map[string]SegmentRecord
	Boundaries    map[string]datastructure.LineString
	Lanes         map[string]LaneRecord
	BranchPoints  map[string][]BranchPointLane
	AdjacentLanes map[string][]AdjacentLane
}

func NewTables() *Tables {
	return &Tables{
		Metadata:      make(map[string]string),
		Junctions:     make(map[string]JunctionRecord),
		Segments:      make(map[string]SegmentRecord),
		Boundaries:    make(map[string]datastructure.LineString),
		Lanes:         make(map[string]LaneRecord),
		BranchPoints:  make(map[string][]BranchPointLane),
		AdjacentLanes: make(map[string][]AdjacentLane),
	}
}

// UnknownEnumValueError is returned for a side or lane_end value outside its fixed vocabulary.
type UnknownEnumValueError struct {
	Column string
	Value  string
}

func (e *UnknownEnumValueError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Column, e.Value)
}

// QueryError wraps a failure to read one of the tables.
type QueryError struct {
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("read table %s: %v", e.Table, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
