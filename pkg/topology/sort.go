package topology

import "github.com/lintang-b-s/roadgpkg/pkg/datastructure"

// SortLanes orders the lanes of one segment from right to left.
//
// Walks start at every lane whose right neighbour is missing or outside the segment, in input
// order, and follow left neighbours until the next lane is missing, outside the segment or
// already placed. If no lane qualifies as a start the first lane is used. Lanes never reached
// are appended in input order, so the result is always a permutation of the input.
func SortLanes(lanes []*datastructure.Lane) []*datastructure.Lane {
	if len(lanes) == 0 {
		return lanes
	}

	index := make(map[string]int, len(lanes))
	for i, l := range lanes {
		index[l.ID] = i
	}
	inSegment := func(id *string) (int, bool) {
		if id == nil {
			return 0, false
		}
		i, ok := index[*id]
		return i, ok
	}

	starts := make([]int, 0, 1)
	for i, l := range lanes {
		if _, ok := inSegment(l.RightLaneID); !ok {
			starts = append(starts, i)
		}
	}
	if len(starts) == 0 {
		starts = append(starts, 0)
	}

	sorted := make([]*datastructure.Lane, 0, len(lanes))
	placed := make([]bool, len(lanes))
	for _, start := range starts {
		cur := start
		for !placed[cur] {
			placed[cur] = true
			sorted = append(sorted, lanes[cur])

			next, ok := inSegment(lanes[cur].LeftLaneID)
			if !ok {
				break
			}
			cur = next
		}
	}

	for i, l := range lanes {
		if !placed[i] {
			sorted = append(sorted, l)
		}
	}
	return sorted
}
