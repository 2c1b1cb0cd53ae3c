package routing

import (
	geojson "github.com/paulmach/go.geojson"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
)

// PathfindResult is the outcome of a shortest path query. The zero value means no path was found.
type PathfindResult struct {
	IsPathFound         bool
	PathDirectedEdgeIDs []network.DirectedEdgeID
	// Position on the first edge the path leaves from
	StartParameter float64
	// Position on the last edge the path arrives at
	EndParameter   float64
	DistanceMeters float64
	// Centerline of the whole path, with cumulative params spanning [0, 1]
	PathPoints      []geom.Vector
	PathPointParams []float64
}

// PointAt samples the path geometry at t in [0, 1].
func (r PathfindResult) PointAt(t float64) (geom.Vector, error) {
	return geom.PointAt(r.PathPoints, r.PathPointParams, t)
}

// DirectionAt returns the direction of travel at t in [0, 1].
func (r PathfindResult) DirectionAt(t float64) (geom.Vector, error) {
	return geom.DirectionAt(r.PathPoints, r.PathPointParams, t)
}

// GeoJSON renders the path as a LineString feature.
func (r PathfindResult) GeoJSON() *geojson.Feature {
	edges := make([]string, 0, len(r.PathDirectedEdgeIDs))
	for _, id := range r.PathDirectedEdgeIDs {
		edges = append(edges, id.String())
	}
	return geom.LineStringFeature(r.PathPoints, map[string]interface{}{
		"found":           r.IsPathFound,
		"distance_meters": r.DistanceMeters,
		"edges":           edges,
	})
}

// EncodedPolyline renders the path with Google's encoded polyline algorithm.
func (r PathfindResult) EncodedPolyline() string {
	return geom.EncodePolyline(r.PathPoints)
}
