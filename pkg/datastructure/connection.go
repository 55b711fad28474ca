package datastructure

import "strings"

// Connection is a directed link from one lane end to another.
type Connection struct {
	From LaneEnd
	To   LaneEnd
}

func NewConnection(from, to LaneEnd) Connection {
	return Connection{
		From: from,
		To:   to,
	}
}

func compareLaneEnd(a, b LaneEnd) int {
	if c := strings.Compare(a.LaneID, b.LaneID); c != 0 {
		return c
	}
	return int(a.End) - int(b.End)
}

// CompareConnections orders connections by (from.lane, from.end, to.lane, to.end).
func CompareConnections(a, b Connection) int {
	if c := compareLaneEnd(a.From, b.From); c != 0 {
		return c
	}
	return compareLaneEnd(a.To, b.To)
}

// UniqueConnections drops adjacent duplicates from a sorted slice.
func UniqueConnections(sorted []Connection) []Connection {
	out := make([]Connection, 0, len(sorted))
	for i, c := range sorted {
		if i > 0 && c == sorted[i-1] {
			continue
		}
		out = append(out, c)
	}
	return out
}
