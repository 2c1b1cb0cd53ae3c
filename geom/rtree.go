package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
)

// RTree wraps tidwall/rtree for spatial indexing of items by their lon/lat bounding box
type RTree[K comparable] struct {
	tree *rtree.RTreeG[K]
}

// NewRTree creates a new RTree
func NewRTree[K comparable]() *RTree[K] {
	return &RTree[K]{
		tree: &rtree.RTreeG[K]{},
	}
}

// Insert adds an item to the RTree with the given bounding box
func (r *RTree[K]) Insert(id K, b orb.Bound) {
	r.tree.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, id)
}

// Delete removes an item previously inserted with the same bounding box
func (r *RTree[K]) Delete(id K, b orb.Bound) {
	r.tree.Delete([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, id)
}

// Search returns all item IDs whose bounding boxes intersect with the query bbox
func (r *RTree[K]) Search(b orb.Bound) []K {
	result := make([]K, 0)
	r.tree.Search(
		[2]float64{b.Min[0], b.Min[1]},
		[2]float64{b.Max[0], b.Max[1]},
		func(min, max [2]float64, item K) bool {
			result = append(result, item)
			return true // continue searching
		},
	)
	return result
}

// SearchNearPoint returns all item IDs within a distance (in meters) of a point
func (r *RTree[K]) SearchNearPoint(lon, lat, distanceMeters float64) []K {
	return r.Search(BoundAround(lon, lat, distanceMeters))
}

// Size returns the number of items in the RTree
func (r *RTree[K]) Size() int {
	return r.tree.Len()
}

// BoundAround returns a lon/lat box that contains every surface point within distanceMeters of (lon, lat).
// Near the poles the box widens to the full longitude range.
func BoundAround(lon, lat, distanceMeters float64) orb.Bound {
	// Convert distance to approximate degrees, padded against the chord/arc difference
	metersPerDegreeLat := EarthRadiusMeters * math.Pi / 180.0
	deltaLat := distanceMeters/metersPerDegreeLat*1.01 + 1e-9

	minLat := math.Max(lat-deltaLat, -90)
	maxLat := math.Min(lat+deltaLat, 90)
	// Adjust for latitude at the edge of the box closest to a pole
	cosLat := math.Min(math.Cos(minLat*math.Pi/180.0), math.Cos(maxLat*math.Pi/180.0))
	if cosLat < 1e-6 {
		return orb.Bound{Min: orb.Point{-180, minLat}, Max: orb.Point{180, maxLat}}
	}
	deltaLon := deltaLat / cosLat
	if deltaLon >= 180 {
		return orb.Bound{Min: orb.Point{-180, minLat}, Max: orb.Point{180, maxLat}}
	}
	return orb.Bound{Min: orb.Point{lon - deltaLon, minLat}, Max: orb.Point{lon + deltaLon, maxLat}}
}

// BoundOfPoints returns the lon/lat bounding box of Earth-centred points
func BoundOfPoints(points []Vector) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{}
	}
	lat, lon := ToLatLon(points[0])
	b := orb.Bound{Min: orb.Point{lon, lat}, Max: orb.Point{lon, lat}}
	for _, p := range points[1:] {
		lat, lon := ToLatLon(p)
		b = b.Extend(orb.Point{lon, lat})
	}
	return b
}
