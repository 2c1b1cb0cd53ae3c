package geom

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ErrInvalidPolyline is returned when a points/params pair cannot describe a polyline.
var ErrInvalidPolyline = errors.New("invalid polyline")

// ValidatePolyline checks the parallel points/params contract shared by the sampling helpers.
func ValidatePolyline(points []Vector, params []float64) error {
	if len(points) != len(params) {
		return errors.Wrapf(ErrInvalidPolyline, "%d points but %d params", len(points), len(params))
	}
	if len(points) < 2 {
		return errors.Wrapf(ErrInvalidPolyline, "need at least 2 points, got %d", len(points))
	}
	return nil
}

// bracket returns the segment (i0, i1) with params[i0] <= t <= params[i1].
// i0 == i1 when t falls on or beyond an end of the polyline.
func bracket(params []float64, t float64) (int, int) {
	last := len(params) - 1
	if t <= params[0] || math.IsNaN(t) {
		return 0, 0
	}
	if t >= params[last] {
		return last, last
	}
	i1 := sort.SearchFloat64s(params, t)
	if params[i1] == t {
		return i1, i1
	}
	return i1 - 1, i1
}

// PointAt samples the polyline position at parameter t in [0, 1].
func PointAt(points []Vector, params []float64, t float64) (Vector, error) {
	if err := ValidatePolyline(points, params); err != nil {
		return Vector{}, err
	}
	i0, i1 := bracket(params, t)
	if i0 == i1 {
		return points[i0], nil
	}
	span := params[i1] - params[i0]
	if span <= 0 {
		return points[i1], nil
	}
	return Lerp(points[i0], points[i1], (t-params[i0])/span), nil
}

// DirectionAt returns the normalized direction of the polyline segment containing t.
// Ends and vertices resolve to the adjoining segment inside the polyline.
// A degenerate segment yields the zero vector.
func DirectionAt(points []Vector, params []float64, t float64) (Vector, error) {
	if err := ValidatePolyline(points, params); err != nil {
		return Vector{}, err
	}
	i0, i1 := bracket(params, t)
	if i0 == i1 {
		if i1 == 0 {
			i1 = 1
		} else {
			i0 = i1 - 1
		}
	}
	return Direction(points[i0], points[i1]), nil
}

// CumulativeParams returns the normalized cumulative distance of every point, from 0 to 1.
// A polyline with zero length is parameterized evenly by index.
func CumulativeParams(points []Vector) []float64 {
	params := make([]float64, len(points))
	if len(points) < 2 {
		return params
	}
	total := PolylineLength(points)
	last := len(points) - 1
	if total == 0 {
		for i := range params {
			params[i] = float64(i) / float64(last)
		}
		return params
	}
	acc := 0.0
	for i := 1; i < len(points); i++ {
		acc += points[i-1].Distance(points[i])
		params[i] = acc / total
	}
	params[last] = 1
	return params
}

// Reverse returns the polyline walked from its last point to its first, with params remapped to 1-p.
func Reverse(points []Vector, params []float64) ([]Vector, []float64) {
	n := len(points)
	rp := make([]Vector, n)
	rt := make([]float64, len(params))
	for i := range points {
		rp[n-1-i] = points[i]
	}
	for i := range params {
		rt[len(params)-1-i] = 1 - params[i]
	}
	return rp, rt
}

// Slice returns the points of the polyline between parameters t0 and t1 (t0 <= t1), interpolating both ends.
func Slice(points []Vector, params []float64, t0, t1 float64) ([]Vector, error) {
	if t1 < t0 {
		return nil, errors.Wrapf(ErrInvalidPolyline, "slice start %f after end %f", t0, t1)
	}
	start, err := PointAt(points, params, t0)
	if err != nil {
		return nil, err
	}
	end, err := PointAt(points, params, t1)
	if err != nil {
		return nil, err
	}
	out := []Vector{start}
	for i, p := range params {
		if p > t0 && p < t1 {
			out = append(out, points[i])
		}
	}
	return append(out, end), nil
}
