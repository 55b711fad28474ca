package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
	"github.com/lintang-b-s/roadgpkg/pkg/gpkgtest"
	"github.com/lintang-b-s/roadgpkg/pkg/logger"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
	"github.com/lintang-b-s/roadgpkg/pkg/server/rest/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainedRoad has two single-lane segments where lane_a's finish meets lane_b's start.
func chainedRoad() gpkgtest.Fixture {
	return gpkgtest.Fixture{
		Metadata:  map[string]string{"linear_tolerance": "0.01"},
		Junctions: []gpkgtest.Junction{{ID: "j1", Name: "J1"}, {ID: "j2", Name: "J2"}},
		Segments: []gpkgtest.Segment{
			{ID: "s1", JunctionID: "j1", Name: "first"},
			{ID: "s2", JunctionID: "j2", Name: "second"},
		},
		Boundaries: []gpkgtest.Boundary{
			{ID: "a_left", Points: [][]float64{{0, 2, 0}, {50, 2, 0}}},
			{ID: "a_right", Points: [][]float64{{0, -2, 0}, {50, -2, 0}}},
			{ID: "b_left", Points: [][]float64{{50, 2, 0}, {100, 2, 0}}},
			{ID: "b_right", Points: [][]float64{{50, -2, 0}, {100, -2, 0}}},
		},
		Lanes: []gpkgtest.Lane{
			{ID: "lane_a", SegmentID: "s1", Type: "driving", Direction: "forward", LeftBoundaryID: "a_left", RightBoundaryID: "a_right"},
			{ID: "lane_b", SegmentID: "s2", Type: "driving", Direction: "forward", LeftBoundaryID: "b_left", RightBoundaryID: "b_right"},
		},
		BranchPoints: []gpkgtest.BranchPointLane{
			{BranchPointID: "bp", LaneID: "lane_a", Side: "a", LaneEnd: "finish"},
			{BranchPointID: "bp", LaneID: "lane_b", Side: "b", LaneEnd: "start"},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *Metrics) {
	t.Helper()
	path := gpkgtest.WriteTemp(t, chainedRoad())
	rn, err := roadnetwork.Load(path, logger.Discard())
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	r := chi.NewRouter()
	r.Use(PromeHttpMiddleware(m))
	RoadNetworkRouter(r, service.NewRoadNetworkService(rn))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, m
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestListJunctions(t *testing.T) {
	srv, _ := newTestServer(t)

	var resp JunctionsResponse
	status := getJSON(t, srv.URL+"/api/junctions", &resp)
	assert.Equal(t, http.StatusOK, status)
	require.Len(t, resp.Junctions, 2)
	assert.Equal(t, "j1", resp.Junctions[0].ID)
	assert.Equal(t, []string{"s1"}, resp.Junctions[0].SegmentIDs)
	assert.Equal(t, roadnetwork.Stats{Junctions: 2, Segments: 2, Lanes: 2, Connections: 1}, resp.Stats)
}

func TestGetJunctionAndSegment(t *testing.T) {
	srv, _ := newTestServer(t)

	var j JunctionResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/junctions/j2", &j))
	assert.Equal(t, "J2", j.Name)

	var seg SegmentResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/segments/s1", &seg))
	assert.Equal(t, "j1", seg.JunctionID)
	assert.Equal(t, []string{"lane_a"}, seg.LaneIDs)

	var errResp ErrResponse
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/segments/nope", &errResp))
	assert.Equal(t, "Resource not found.", errResp.StatusText)
	assert.Contains(t, errResp.ErrorText, "nope")
}

func TestGetLane(t *testing.T) {
	srv, _ := newTestServer(t)

	var lane LaneResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/lanes/lane_b", &lane))
	assert.Equal(t, "s2", lane.SegmentID)
	assert.InDelta(t, 50.0, lane.Length, 1e-9)
	assert.Nil(t, lane.LeftLaneID)
	assert.Equal(t, []LaneEndResponse{{LaneID: "lane_a", End: "finish"}}, lane.Predecessors)
	assert.Empty(t, lane.Successors)

	left, err := decodeBoundary(lane.LeftBoundary)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{50, 2}, {100, 2}}, left)
}

func TestGetConnections(t *testing.T) {
	srv, _ := newTestServer(t)

	var resp ConnectionsResponse
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/connections?lane_id=lane_a", &resp))
	assert.Equal(t, []ConnectionResponse{{
		From: LaneEndResponse{LaneID: "lane_a", End: "finish"},
		To:   LaneEndResponse{LaneID: "lane_b", End: "start"},
	}}, resp.Connections)

	var errResp ErrResponse
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/connections", &errResp))
	require.Len(t, errResp.ErrValidation, 1)
	assert.Contains(t, errResp.ErrValidation[0], "LaneID")

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/connections?lane_id=ghost", &errResp))
}

func TestGetConnectionsMalformedQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name  string
		query string
	}{
		{"bad escape", "lane_id=%zz"},
		{"repeated lane_id", "lane_id=lane_a&lane_id=lane_b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/connections?"+tt.query, nil)
			rec := httptest.NewRecorder()
			srv.Config.Handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var errResp ErrResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&errResp))
			assert.Equal(t, "Invalid request.", errResp.StatusText)
			assert.Empty(t, errResp.ErrValidation)
		})
	}
}

func TestGetSegmentGeoJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/segments/s1/geojson")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/geo+json", resp.Header.Get("Content-Type"))

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			ID       string `json:"id"`
			Geometry struct {
				Type        string        `json:"type"`
				Coordinates [][][]float64 `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "lane_a", fc.Features[0].ID)
	assert.Equal(t, "MultiLineString", fc.Features[0].Geometry.Type)
	assert.Equal(t, [][]float64{{0, 2, 0}, {50, 2, 0}}, fc.Features[0].Geometry.Coordinates[0])
	assert.Equal(t, "s1", fc.Features[0].Properties["segment_id"])
}

func TestGetMetadataAndMetrics(t *testing.T) {
	srv, m := newTestServer(t)

	var meta map[string]string
	assert.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/metadata", &meta))
	assert.Equal(t, "0.01", meta["linear_tolerance"])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/metadata", http.MethodGet, "200")))
}

func decodeBoundary(encoded string) ([][]float64, error) {
	ls, err := datastructure.DecodePolyline(encoded)
	if err != nil {
		return nil, err
	}
	return ls.XY(), nil
}
