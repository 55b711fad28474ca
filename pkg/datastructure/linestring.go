package datastructure

import (
	"github.com/golang/geo/r3"
	"github.com/lintang-b-s/roadgpkg/pkg/util"
	"github.com/twpayne/go-polyline"
)

// Point is a position in the road network's inertial frame, in metres.
type Point = r3.Vector

func NewPoint(x, y, z float64) Point {
	return r3.Vector{X: x, Y: y, Z: z}
}

type LineString []Point

func (ls LineString) Length() float64 {
	length := 0.0
	for i := 1; i < len(ls); i++ {
		length += ls[i].Sub(ls[i-1]).Norm()
	}
	return length
}

// Reversed returns a reversed copy, the receiver is left untouched.
func (ls LineString) Reversed() LineString {
	return LineString(util.ReverseG(ls))
}

// XY returns the planar coordinates as [x, y] pairs.
func (ls LineString) XY() [][]float64 {
	coords := make([][]float64, 0, len(ls))
	for _, p := range ls {
		coords = append(coords, []float64{p.X, p.Y})
	}
	return coords
}

// EncodePolyline encodes the planar coordinates with the google polyline algorithm.
// x is written in the longitude slot and y in the latitude slot.
func (ls LineString) EncodePolyline() string {
	coords := make([][]float64, 0, len(ls))
	for _, p := range ls {
		coords = append(coords, []float64{p.Y, p.X})
	}
	return string(polyline.EncodeCoords(coords))
}

func DecodePolyline(encoded string) (LineString, error) {
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	ls := make(LineString, 0, len(coords))
	for _, c := range coords {
		ls = append(ls, NewPoint(c[1], c[0], 0))
	}
	return ls, nil
}
