package geom

import (
	"math"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// Vector is a double precision position or direction in the Earth-centred, Earth-fixed frame (meters).
type Vector = r3.Vector

// FromLatLon returns the Earth-centred position of a surface point on the reference sphere.
func FromLatLon(lat, lon float64) Vector {
	return FromLatLonAltitude(lat, lon, 0)
}

// FromLatLonAltitude returns the Earth-centred position of a point at the given altitude above the sphere.
func FromLatLonAltitude(lat, lon, altitudeMeters float64) Vector {
	p := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	return p.Vector.Mul(EarthRadiusMeters + altitudeMeters)
}

// ToLatLon returns the geodetic latitude and longitude (degrees) of an Earth-centred position.
func ToLatLon(v Vector) (lat, lon float64) {
	if v.Norm2() == 0 {
		return 0, 0
	}
	ll := s2.LatLngFromPoint(s2.Point{Vector: v})
	return ll.Lat.Degrees(), ll.Lng.Degrees()
}

// Altitude returns the height of v above the reference sphere.
func Altitude(v Vector) float64 {
	return v.Norm() - EarthRadiusMeters
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b Vector, t float64) Vector {
	return a.Add(b.Sub(a).Mul(t))
}

// Direction returns the normalized vector from a to b, or the zero vector when a == b.
func Direction(a, b Vector) Vector {
	d := b.Sub(a)
	if d.Norm2() == 0 {
		return Vector{}
	}
	return d.Normalize()
}

// ApproxEqual reports whether a and b are within epsilon meters of each other.
func ApproxEqual(a, b Vector, epsilon float64) bool {
	return a.Distance(b) <= epsilon
}

// IsFinite reports whether all components of v are finite.
func IsFinite(v Vector) bool {
	return !math.IsNaN(v.X) && !math.IsInf(v.X, 0) &&
		!math.IsNaN(v.Y) && !math.IsInf(v.Y, 0) &&
		!math.IsNaN(v.Z) && !math.IsInf(v.Z, 0)
}
