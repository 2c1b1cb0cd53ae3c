package geom

import (
	"math"

	"github.com/golang/geo/s1"
)

// LocalFrame returns the east, north and up unit vectors of the tangent plane at position p.
// At the poles east is taken along the +Y axis.
func LocalFrame(p Vector) (east, north, up Vector) {
	if p.Norm2() == 0 {
		return Vector{X: 0, Y: 1, Z: 0}, Vector{X: 0, Y: 0, Z: 1}, Vector{X: 1, Y: 0, Z: 0}
	}
	up = p.Normalize()
	east = Vector{X: 0, Y: 0, Z: 1}.Cross(up)
	if east.Norm2() < 1e-24 {
		east = Vector{X: 0, Y: 1, Z: 0}
	} else {
		east = east.Normalize()
	}
	north = up.Cross(east)
	return east, north, up
}

// HeadingDegrees returns the compass heading of direction d at position p, clockwise from north in [0, 360).
// Returns false when d has no horizontal component.
func HeadingDegrees(p, d Vector) (float64, bool) {
	east, north, _ := LocalFrame(p)
	e := d.Dot(east)
	n := d.Dot(north)
	if e == 0 && n == 0 {
		return 0, false
	}
	return NormalizeHeading(s1.Angle(math.Atan2(e, n)).Degrees()), true
}

// NormalizeHeading folds a heading in degrees into [0, 360).
func NormalizeHeading(deg float64) float64 {
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	return h
}

// HeadingDeviation returns the absolute angular difference between two headings, folded into [0, 180].
func HeadingDeviation(a, b float64) float64 {
	d := math.Abs(NormalizeHeading(a) - NormalizeHeading(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}

// ReverseHeading returns the heading pointing the opposite way.
func ReverseHeading(deg float64) float64 {
	return NormalizeHeading(deg + 180)
}
