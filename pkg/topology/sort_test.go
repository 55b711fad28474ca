package topology

import (
	"testing"

	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
	"github.com/stretchr/testify/assert"
)

func lane(id string, left, right string) *datastructure.Lane {
	l := datastructure.NewLane(id, "seg", "driving", "forward")
	if left != "" {
		l.LeftLaneID = &left
	}
	if right != "" {
		l.RightLaneID = &right
	}
	return l
}

func ids(lanes []*datastructure.Lane) []string {
	out := make([]string, 0, len(lanes))
	for _, l := range lanes {
		out = append(out, l.ID)
	}
	return out
}

func TestSortLanes(t *testing.T) {
	cases := []struct {
		name  string
		lanes []*datastructure.Lane
		want  []string
	}{
		{
			name:  "empty",
			lanes: []*datastructure.Lane{},
			want:  []string{},
		},
		{
			name:  "single lane",
			lanes: []*datastructure.Lane{lane("a", "", "")},
			want:  []string{"a"},
		},
		{
			name: "well formed chain in shuffled order",
			lanes: []*datastructure.Lane{
				lane("mid", "left", "right"),
				lane("left", "", "mid"),
				lane("right", "mid", ""),
			},
			want: []string{"right", "mid", "left"},
		},
		{
			name: "right neighbour outside the segment counts as a start",
			lanes: []*datastructure.Lane{
				lane("b", "", "a"),
				lane("a", "b", "other_segment_lane"),
			},
			want: []string{"a", "b"},
		},
		{
			name: "left neighbour outside the segment breaks the chain",
			lanes: []*datastructure.Lane{
				lane("L3", "", "L2"),
				lane("L2", "X", "L1"),
				lane("L1", "L2", ""),
			},
			want: []string{"L1", "L2", "L3"},
		},
		{
			name: "no adjacency keeps input order",
			lanes: []*datastructure.Lane{
				lane("x", "", ""),
				lane("y", "", ""),
				lane("z", "", ""),
			},
			want: []string{"x", "y", "z"},
		},
		{
			name: "pure cycle seeds the first lane",
			lanes: []*datastructure.Lane{
				lane("p", "q", "r"),
				lane("q", "r", "p"),
				lane("r", "p", "q"),
			},
			want: []string{"p", "q", "r"},
		},
		{
			name: "broken chain appends unreached lanes",
			lanes: []*datastructure.Lane{
				lane("c", "", "b"),
				lane("a", "b", ""),
				lane("b", "", "a"),
			},
			want: []string{"a", "b", "c"},
		},
		{
			name: "left pointer into a cycle stops at placed lanes",
			lanes: []*datastructure.Lane{
				lane("s", "t", ""),
				lane("t", "u", "s"),
				lane("u", "t", "t"),
			},
			want: []string{"s", "t", "u"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := SortLanes(tc.lanes)
			assert.Equal(t, tc.want, ids(got))
			assert.Len(t, got, len(tc.lanes))
		})
	}
}

func TestSortLanesIsDeterministic(t *testing.T) {
	build := func() []*datastructure.Lane {
		return []*datastructure.Lane{
			lane("l1", "l2", "l3"),
			lane("l2", "l3", "l1"),
			lane("l3", "l1", "l2"),
			lane("l4", "", ""),
		}
	}
	first := ids(SortLanes(build()))
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, ids(SortLanes(build())))
	}
}
