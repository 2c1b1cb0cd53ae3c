package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGreatCircleDistance(t *testing.T) {
	// kilometers in the original fixture, meters here
	d := GreatCircleDistance(37.6417350769043, 55.751849391735284, 37.668514251708984, 55.73261980350401)
	assert.InDelta(t, 2717.0, d, 2.0)
}

func TestLatLonRoundTrip(t *testing.T) {
	v := FromLatLon(55.75, 37.62)
	assert.InDelta(t, EarthRadiusMeters, v.Norm(), 1e-6)
	lat, lon := ToLatLon(v)
	assert.InDelta(t, 55.75, lat, 1e-9)
	assert.InDelta(t, 37.62, lon, 1e-9)
	assert.InDelta(t, 12.0, Altitude(FromLatLonAltitude(10, 10, 12)), 1e-6)
}

func TestProjectOntoSegment(t *testing.T) {
	a := Vector{X: 0, Y: 0, Z: 0}
	b := Vector{X: 10, Y: 0, Z: 0}

	sp := ProjectOntoSegment(Vector{X: 4, Y: 3, Z: 0}, a, b)
	assert.InDelta(t, 0.4, sp.Fraction, 1e-12)
	assert.InDelta(t, 3.0, sp.Distance, 1e-12)

	sp = ProjectOntoSegment(Vector{X: -3, Y: 4, Z: 0}, a, b)
	assert.Equal(t, 0.0, sp.Fraction)
	assert.InDelta(t, 5.0, sp.Distance, 1e-12)

	sp = ProjectOntoSegment(Vector{X: 13, Y: 4, Z: 0}, a, b)
	assert.Equal(t, 1.0, sp.Fraction)
	assert.InDelta(t, 5.0, sp.Distance, 1e-12)

	sp = ProjectOntoSegment(Vector{X: 1, Y: 1, Z: 0}, a, a)
	assert.InDelta(t, math.Sqrt2, sp.Distance, 1e-12)
}

func TestProjectOntoPolyline(t *testing.T) {
	points := []Vector{{X: 0}, {X: 10}, {X: 10, Y: 10}}
	params := CumulativeParams(points)

	pp, err := ProjectOntoPolyline(Vector{X: 12, Y: 5}, points, params)
	require.NoError(t, err)
	assert.Equal(t, 1, pp.Segment)
	assert.InDelta(t, 0.75, pp.Parameter, 1e-12)
	assert.InDelta(t, 2.0, pp.Distance, 1e-12)

	_, err = ProjectOntoPolyline(Vector{}, points[:1], params[:1])
	assert.Error(t, err)
}

func TestHeading(t *testing.T) {
	p := FromLatLon(0, 0)
	north := FromLatLon(0.001, 0).Sub(p)
	east := FromLatLon(0, 0.001).Sub(p)

	h, ok := HeadingDegrees(p, north)
	require.True(t, ok)
	assert.InDelta(t, 0.0, math.Min(h, 360-h), 1e-6)

	h, ok = HeadingDegrees(p, east)
	require.True(t, ok)
	assert.InDelta(t, 90.0, h, 1e-6)

	_, ok = HeadingDegrees(p, p)
	assert.False(t, ok)

	assert.Equal(t, 20.0, HeadingDeviation(350, 10))
	assert.Equal(t, 180.0, HeadingDeviation(0, 180))
	assert.Equal(t, 90.0, HeadingDeviation(-45, 45))
	assert.Equal(t, 270.0, ReverseHeading(90))
}

func TestRTree(t *testing.T) {
	tree := NewRTree[int64]()
	line := []Vector{FromLatLon(0, 0), FromLatLon(0, 0.001)}
	b := BoundOfPoints(line)
	tree.Insert(7, b)
	assert.Equal(t, 1, tree.Size())

	assert.Equal(t, []int64{7}, tree.SearchNearPoint(0.0005, 0.0005, 100))
	assert.Empty(t, tree.SearchNearPoint(1, 1, 100))

	tree.Delete(7, b)
	assert.Equal(t, 0, tree.Size())
}
