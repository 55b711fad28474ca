package kv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/roadgpkg/pkg/gpkgtest"
	"github.com/lintang-b-s/roadgpkg/pkg/logger"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTwoLaneRoad(t *testing.T) (string, *roadnetwork.RoadNetwork) {
	t.Helper()
	path := gpkgtest.WriteTemp(t, gpkgtest.TwoLaneRoad())
	rn, err := roadnetwork.Load(path, logger.Discard())
	require.NoError(t, err)
	return path, rn
}

func TestSnapshotSaveLoad(t *testing.T) {
	path, rn := loadTwoLaneRoad(t)

	db, err := Open(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	defer db.Close()

	fp, err := Fingerprint(path)
	require.NoError(t, err)

	ctx := context.Background()
	_, err = db.LoadSnapshot(ctx, fp)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, db.SaveSnapshot(ctx, fp, rn.ToSnapshot()))

	cached, err := db.LoadRoadNetwork(ctx, fp)
	require.NoError(t, err)
	assert.Equal(t, rn.ToSnapshot(), cached.ToSnapshot())
	assert.Equal(t, rn.Connections(), cached.Connections())

	seg, ok := cached.Segment("seg1")
	require.True(t, ok)
	require.Len(t, seg.Lanes, 2)
	assert.Equal(t, "lane_2", seg.Lanes[0].ID)
	assert.Equal(t, "lane_1", seg.Lanes[1].ID)

	require.NoError(t, db.DeleteSnapshot(fp))
	_, err = db.LoadSnapshot(ctx, fp)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotManyLanes(t *testing.T) {
	fixture := gpkgtest.Fixture{
		Junctions:  []gpkgtest.Junction{{ID: "j"}},
		Segments:   []gpkgtest.Segment{{ID: "s", JunctionID: "j"}},
		Boundaries: []gpkgtest.Boundary{{ID: "b", Points: [][]float64{{0, 0}, {1, 0}}}},
	}
	for i := 0; i < 2*batchSize+10; i++ {
		id := fmt.Sprintf("lane_%04d", i)
		fixture.Lanes = append(fixture.Lanes, gpkgtest.Lane{ID: id, SegmentID: "s", LeftBoundaryID: "b", RightBoundaryID: "b"})
	}
	path := gpkgtest.WriteTemp(t, fixture)
	rn, err := roadnetwork.Load(path, logger.Discard())
	require.NoError(t, err)

	db, err := Open(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.SaveSnapshot(ctx, "many", rn.ToSnapshot()))
	snap, err := db.LoadSnapshot(ctx, "many")
	require.NoError(t, err)
	assert.Len(t, snap.Lanes, 2*batchSize+10)
	// lanes encoded on the pool come back in key order with their content intact.
	assert.Equal(t, rn.ToSnapshot().Lanes, snap.Lanes)
}

func TestFingerprintChangesWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f.gpkg")
	require.NoError(t, os.WriteFile(path, []byte("one"), 0o644))
	fp1, err := Fingerprint(path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("three"), 0o644))
	fp2, err := Fingerprint(path)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)

	_, err = Fingerprint(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestCompressionRoundTrip(t *testing.T) {
	in := []byte("lane_1 lane_1 lane_1 lane_2 lane_2 lane_2")
	out, err := compress(in)
	require.NoError(t, err)
	back, err := decompress(out)
	require.NoError(t, err)
	assert.Equal(t, in, back)
}

func TestLoadOrBuild(t *testing.T) {
	path := gpkgtest.WriteTemp(t, gpkgtest.TwoLaneRoad())

	db, err := Open(t.TempDir(), logger.Discard())
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	built, hit, err := db.LoadOrBuild(ctx, path)
	require.NoError(t, err)
	assert.False(t, hit)

	cached, hit, err := db.LoadOrBuild(ctx, path)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, built.ToSnapshot(), cached.ToSnapshot())

	_, _, err = db.LoadOrBuild(ctx, filepath.Join(t.TempDir(), "missing.gpkg"))
	assert.Error(t, err)
}
