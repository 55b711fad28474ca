package gpkgparser

import (
	"errors"
	"testing"

	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
	"github.com/lintang-b-s/roadgpkg/pkg/geometry"
	"github.com/lintang-b-s/roadgpkg/pkg/gpkgtest"
	"github.com/lintang-b-s/roadgpkg/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTwoLaneRoad(t *testing.T) {
	path := gpkgtest.WriteTemp(t, gpkgtest.TwoLaneRoad())

	tables, err := Parse(path, logger.Discard())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"linear_tolerance": "0.01"}, tables.Metadata)

	require.Len(t, tables.Junctions, 1)
	assert.Equal(t, "Main Junction", tables.Junctions["j1"].Name)

	require.Len(t, tables.Segments, 1)
	assert.Equal(t, SegmentRecord{ID: "seg1", JunctionID: "j1", Name: "Straight Segment"}, tables.Segments["seg1"])

	require.Len(t, tables.Boundaries, 3)
	assert.Equal(t, datastructure.LineString{
		datastructure.NewPoint(0, 3.5, 0),
		datastructure.NewPoint(100, 3.5, 0),
	}, tables.Boundaries["b_left_outer"])

	require.Len(t, tables.Lanes, 2)
	assert.Equal(t, LaneRecord{
		ID:              "lane_1",
		SegmentID:       "seg1",
		LaneType:        "driving",
		Direction:       "forward",
		LeftBoundaryID:  "b_left_outer",
		RightBoundaryID: "b_center",
	}, tables.Lanes["lane_1"])

	require.Len(t, tables.BranchPoints, 2)
	require.Len(t, tables.BranchPoints["bp_start"], 2)
	for _, member := range tables.BranchPoints["bp_start"] {
		assert.Equal(t, SideA, member.Side)
		assert.Equal(t, datastructure.WhichStart, member.End)
	}
	for _, member := range tables.BranchPoints["bp_end"] {
		assert.Equal(t, SideB, member.Side)
		assert.Equal(t, datastructure.WhichFinish, member.End)
	}

	require.Len(t, tables.AdjacentLanes, 2)
	assert.Equal(t, []AdjacentLane{{AdjacentLaneID: "lane_2", Side: SideRight}}, tables.AdjacentLanes["lane_1"])
}

func TestParseFallbackTableNames(t *testing.T) {
	fixture := gpkgtest.TwoLaneRoad()
	fixture.BoundaryTable = "boundaries"
	fixture.AdjacencyTable = "adjacent_lanes"
	path := gpkgtest.WriteTemp(t, fixture)

	tables, err := Parse(path, logger.Discard())
	require.NoError(t, err)
	assert.Len(t, tables.Boundaries, 3)
	assert.Len(t, tables.AdjacentLanes, 2)
}

func TestParseInvertedFlagAndEmptyText(t *testing.T) {
	fixture := gpkgtest.TwoLaneRoad()
	fixture.Lanes[0].LeftInverted = true
	fixture.Lanes[0].Type = ""
	path := gpkgtest.WriteTemp(t, fixture)

	tables, err := Parse(path, logger.Discard())
	require.NoError(t, err)
	assert.True(t, tables.Lanes["lane_1"].LeftBoundaryInverted)
	assert.False(t, tables.Lanes["lane_1"].RightBoundaryInverted)
	assert.Equal(t, "", tables.Lanes["lane_1"].LaneType)
}

func TestParseMissingTables(t *testing.T) {
	for _, table := range []string{"maliput_metadata", "junctions", "segments", "lane_boundaries", "lanes",
		"branch_point_lanes", "view_adjacent_lanes"} {
		t.Run(table, func(t *testing.T) {
			fixture := gpkgtest.TwoLaneRoad()
			fixture.Omit = []string{table}
			path := gpkgtest.WriteTemp(t, fixture)

			_, err := Parse(path, logger.Discard())
			require.Error(t, err)
			var qErr *QueryError
			assert.True(t, errors.As(err, &qErr))
		})
	}
}

func TestParseMalformedBoundary(t *testing.T) {
	blob := gpkgtest.MustEncodeLineString([][]float64{{0, 0}, {1, 1}}, gpkgtest.EnvelopeNone)
	blob[0] = 'X'

	fixture := gpkgtest.TwoLaneRoad()
	fixture.Boundaries[1].Blob = blob
	path := gpkgtest.WriteTemp(t, fixture)

	_, err := Parse(path, logger.Discard())
	require.Error(t, err)
	var mErr *geometry.MalformedGeometryError
	require.True(t, errors.As(err, &mErr))
	assert.Equal(t, geometry.CheckMagic, mErr.Check)
	assert.Equal(t, "b_center", mErr.BoundaryID)
}

func TestParseReportsFirstMalformedBoundaryRow(t *testing.T) {
	badMagic := gpkgtest.MustEncodeLineString([][]float64{{0, 0}, {1, 1}}, gpkgtest.EnvelopeNone)
	badMagic[0] = 'X'
	badVersion := gpkgtest.MustEncodeLineString([][]float64{{0, 0}, {1, 1}}, gpkgtest.EnvelopeNone)
	badVersion[2] = 7

	fixture := gpkgtest.TwoLaneRoad()
	fixture.Boundaries[0].Blob = badMagic
	fixture.Boundaries[2].Blob = badVersion
	path := gpkgtest.WriteTemp(t, fixture)

	for i := 0; i < 3; i++ {
		_, err := Parse(path, logger.Discard())
		var mErr *geometry.MalformedGeometryError
		require.True(t, errors.As(err, &mErr))
		assert.Equal(t, geometry.CheckMagic, mErr.Check)
		assert.Equal(t, "b_left_outer", mErr.BoundaryID)
	}
}

func TestParseUnknownEnumValues(t *testing.T) {
	t.Run("branch side", func(t *testing.T) {
		fixture := gpkgtest.TwoLaneRoad()
		fixture.BranchPoints[0].Side = "c"
		path := gpkgtest.WriteTemp(t, fixture)

		_, err := Parse(path, logger.Discard())
		var eErr *UnknownEnumValueError
		require.True(t, errors.As(err, &eErr))
		assert.Equal(t, "side", eErr.Column)
		assert.Equal(t, "c", eErr.Value)
	})

	t.Run("lane end", func(t *testing.T) {
		fixture := gpkgtest.TwoLaneRoad()
		fixture.BranchPoints[2].LaneEnd = "middle"
		path := gpkgtest.WriteTemp(t, fixture)

		_, err := Parse(path, logger.Discard())
		var eErr *UnknownEnumValueError
		require.True(t, errors.As(err, &eErr))
		assert.Equal(t, "lane_end", eErr.Column)
	})

	t.Run("adjacency side", func(t *testing.T) {
		fixture := gpkgtest.TwoLaneRoad()
		fixture.Adjacent[0].Side = "up"
		path := gpkgtest.WriteTemp(t, fixture)

		_, err := Parse(path, logger.Discard())
		var eErr *UnknownEnumValueError
		require.True(t, errors.As(err, &eErr))
		assert.Equal(t, "up", eErr.Value)
	})
}

func TestParseMissingFile(t *testing.T) {
	_, err := Parse("does/not/exist.gpkg", logger.Discard())
	require.Error(t, err)
}
