package geom

import "math"

const EarthRadiusMeters = 6371000.0

// GreatCircleDistance calculates the distance between two points in meters using the Haversine formula
func GreatCircleDistance(lon1, lat1, lon2, lat2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180.0 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	lat1Rad := toRad(lat1)
	lat2Rad := toRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMeters * c
}

// SegmentProjection is the nearest point on a segment to a query point
type SegmentProjection struct {
	Point    Vector
	Fraction float64 // 0 at the segment start, 1 at its end
	Distance float64 // meters from the query point to Point
}

// ProjectOntoSegment returns the point on segment ab closest to p.
// Works directly in the Earth-centred frame, so no map projection error is introduced.
func ProjectOntoSegment(p, a, b Vector) SegmentProjection {
	ab := b.Sub(a)
	l2 := ab.Norm2()
	if l2 == 0 {
		// a and b are the same point
		return SegmentProjection{Point: a, Fraction: 0, Distance: p.Distance(a)}
	}
	t := p.Sub(a).Dot(ab) / l2
	if t <= 0 {
		return SegmentProjection{Point: a, Fraction: 0, Distance: p.Distance(a)}
	} else if t >= 1 {
		return SegmentProjection{Point: b, Fraction: 1, Distance: p.Distance(b)}
	}
	proj := a.Add(ab.Mul(t))
	return SegmentProjection{Point: proj, Fraction: t, Distance: p.Distance(proj)}
}

// PolylineProjection is the nearest point on a parameterized polyline to a query point
type PolylineProjection struct {
	Point     Vector
	Segment   int     // index of the first point of the matched segment
	Parameter float64 // interpolated polyline parameter at Point
	Distance  float64 // meters from the query point to Point
}

// ProjectOntoPolyline projects p onto each segment of the polyline and keeps the nearest.
// On equal distances the earliest segment wins.
func ProjectOntoPolyline(p Vector, points []Vector, params []float64) (PolylineProjection, error) {
	if err := ValidatePolyline(points, params); err != nil {
		return PolylineProjection{}, err
	}
	best := PolylineProjection{Distance: -1}
	for i := 0; i < len(points)-1; i++ {
		sp := ProjectOntoSegment(p, points[i], points[i+1])
		if best.Distance < 0 || sp.Distance < best.Distance {
			best = PolylineProjection{
				Point:     sp.Point,
				Segment:   i,
				Parameter: params[i] + sp.Fraction*(params[i+1]-params[i]),
				Distance:  sp.Distance,
			}
		}
	}
	return best, nil
}

// PolylineLength returns the summed straight-line length of the polyline
func PolylineLength(points []Vector) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += points[i-1].Distance(points[i])
	}
	return total
}
