package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/lintang-b-s/roadgpkg/pkg/datastructure"
	"github.com/lintang-b-s/roadgpkg/pkg/roadnetwork"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
)

var ErrNotFound = errors.New("not found")

type RoadNetwork interface {
	Junctions() map[string]*datastructure.Junction
	Junction(id string) (*datastructure.Junction, bool)
	Segment(id string) (*datastructure.Segment, bool)
	Lane(id string) (*datastructure.Lane, bool)
	LaneConnections(laneID string) []datastructure.Connection
	Metadata() map[string]string
	Stats() roadnetwork.Stats
}

type RoadNetworkService struct {
	rn RoadNetwork
}

func NewRoadNetworkService(rn RoadNetwork) *RoadNetworkService {
	return &RoadNetworkService{rn: rn}
}

// Junctions returns every junction ordered by id.
func (s *RoadNetworkService) Junctions(ctx context.Context) []*datastructure.Junction {
	all := s.rn.Junctions()
	out := make([]*datastructure.Junction, 0, len(all))
	for _, j := range all {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *RoadNetworkService) Junction(ctx context.Context, id string) (*datastructure.Junction, error) {
	j, ok := s.rn.Junction(id)
	if !ok {
		return nil, fmt.Errorf("junction %q: %w", id, ErrNotFound)
	}
	return j, nil
}

func (s *RoadNetworkService) Segment(ctx context.Context, id string) (*datastructure.Segment, error) {
	seg, ok := s.rn.Segment(id)
	if !ok {
		return nil, fmt.Errorf("segment %q: %w", id, ErrNotFound)
	}
	return seg, nil
}

func (s *RoadNetworkService) Lane(ctx context.Context, id string) (*datastructure.Lane, error) {
	lane, ok := s.rn.Lane(id)
	if !ok {
		return nil, fmt.Errorf("lane %q: %w", id, ErrNotFound)
	}
	return lane, nil
}

func (s *RoadNetworkService) LaneConnections(ctx context.Context, laneID string) ([]datastructure.Connection, error) {
	if _, ok := s.rn.Lane(laneID); !ok {
		return nil, fmt.Errorf("lane %q: %w", laneID, ErrNotFound)
	}
	return s.rn.LaneConnections(laneID), nil
}

// SegmentGeoJSON returns a FeatureCollection with one MultiLineString feature per lane holding its
// left and right boundaries. Features follow the segment's right-to-left lane order.
func (s *RoadNetworkService) SegmentGeoJSON(ctx context.Context, id string) ([]byte, error) {
	seg, err := s.Segment(ctx, id)
	if err != nil {
		return nil, err
	}

	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(seg.Lanes))}
	for i, lane := range seg.Lanes {
		mls, err := geom.NewMultiLineString(geom.XYZ).SetCoords([][]geom.Coord{
			toCoords(lane.Left),
			toCoords(lane.Right),
		})
		if err != nil {
			return nil, fmt.Errorf("lane %q geometry: %w", lane.ID, err)
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			ID:       lane.ID,
			Geometry: mls,
			Properties: map[string]interface{}{
				"segment_id": seg.ID,
				"index":      i,
				"type":       lane.Type,
				"direction":  lane.Direction,
				"length":     lane.Length(),
			},
		})
	}
	return json.Marshal(&fc)
}

func toCoords(ls datastructure.LineString) []geom.Coord {
	coords := make([]geom.Coord, 0, len(ls))
	for _, p := range ls {
		coords = append(coords, geom.Coord{p.X, p.Y, p.Z})
	}
	return coords
}

func (s *RoadNetworkService) Metadata(ctx context.Context) map[string]string {
	return s.rn.Metadata()
}

func (s *RoadNetworkService) Stats(ctx context.Context) roadnetwork.Stats {
	return s.rn.Stats()
}
