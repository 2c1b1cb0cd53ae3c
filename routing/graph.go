package routing

import (
	"kuanb/gosm-transport/network"
)

// Graph is what matching and pathfinding read: the resident entities plus the way-to-edge relation.
type Graph interface {
	network.Reader
	// DirectedEdgesOfWay returns the resident edges traversing the way, sorted by id.
	DirectedEdgesOfWay(id network.WayID) []network.DirectedEdgeID
}

// SpatialIndex narrows candidate ways to those near a point. Graphs without one are scanned in full.
type SpatialIndex interface {
	WaysNear(net network.NetworkType, lat, lon, radiusMeters float64) []network.WayID
}

// traversable reports whether the edge may be used for travel, and its full length
func traversable(g Graph, e network.DirectedEdge) (float64, bool) {
	if e.IsLink() {
		return 0, true
	}
	w, ok := g.Way(e.WayID)
	if !ok || w.WayDirection == network.ClosedInBothDirections {
		return 0, false
	}
	return w.LengthMeters, true
}

// partnerOf returns the edge traversing the same way in the opposite direction
func partnerOf(g Graph, e network.DirectedEdge) (network.DirectedEdge, bool) {
	if e.IsLink() {
		return network.EmptyDirectedEdge, false
	}
	for _, id := range g.DirectedEdgesOfWay(e.WayID) {
		if id == e.ID {
			continue
		}
		other, ok := g.DirectedEdge(id)
		if ok && other.IsWayReversed != e.IsWayReversed {
			return other, true
		}
	}
	return network.EmptyDirectedEdge, false
}
