package routing

import (
	"math"
	"sort"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
)

// PositionerPointOnGraph is the best match of a positioner input on the graph.
type PositionerPointOnGraph struct {
	IsMatched                bool
	DirectedEdgeID           network.DirectedEdgeID
	ParameterizedPointOnEdge float64
	WayID                    network.WayID
	ParameterizedPointOnWay  float64
	PointOnGraph             geom.Vector
	// Perpendicular distance from the input to PointOnGraph
	DistanceMeters float64
	// Direction of travel along the matched edge, clockwise from north
	HeadingOnGraphDegrees float64
	// Deviation from the input heading; 0 when the input has no heading
	HeadingDeviationDegrees float64
}

// UnmatchedPoint is returned while nothing on the graph matches the input.
var UnmatchedPoint = PositionerPointOnGraph{
	DirectedEdgeID: network.EmptyDirectedEdgeID,
	WayID:          network.EmptyWayID,
}

// Candidate represents a potential way match for an input point
type Candidate struct {
	Way        network.Way
	Edges      []network.DirectedEdge
	Projection geom.PolylineProjection
	// Heading of the centerline tangent, first point towards last
	TangentHeading float64
	HasTangent     bool
	// Smallest deviation of either tangent direction from the input heading
	HeadingDeviation float64
}

// matchInput is what a single match is computed from
type matchInput struct {
	network                network.NetworkType
	lat, lon               float64
	heading                *float64
	maxDistanceMeters      float64
	maxHeadingDeviationDeg float64
}

// findCandidates projects the input onto every resident way of the network and keeps those within the thresholds
func findCandidates(g Graph, in matchInput) []Candidate {
	point := geom.FromLatLon(in.lat, in.lon)

	var wayIDs []network.WayID
	// Use the spatial index for fast lookup if available
	if idx, ok := g.(SpatialIndex); ok {
		wayIDs = idx.WaysNear(in.network, in.lat, in.lon, in.maxDistanceMeters)
	} else {
		// Fallback to brute force search
		wayIDs = g.WayIDs(in.network)
	}

	candidates := make([]Candidate, 0)
	for _, id := range wayIDs {
		way, ok := g.Way(id)
		if !ok {
			continue
		}
		edges := make([]network.DirectedEdge, 0, 2)
		for _, eid := range g.DirectedEdgesOfWay(id) {
			if e, ok := g.DirectedEdge(eid); ok {
				edges = append(edges, e)
			}
		}
		if len(edges) == 0 || way.WayDirection == network.ClosedInBothDirections {
			continue
		}
		proj, err := geom.ProjectOntoPolyline(point, way.CenterLinePoints, way.CenterLineSplineParams)
		if err != nil || proj.Distance > in.maxDistanceMeters {
			continue
		}

		c := Candidate{Way: way, Edges: edges, Projection: proj}
		tangent := geom.Direction(way.CenterLinePoints[proj.Segment], way.CenterLinePoints[proj.Segment+1])
		if tangent.Norm2() == 0 {
			tangent, _ = way.DirectionAt(proj.Parameter)
		}
		c.TangentHeading, c.HasTangent = geom.HeadingDegrees(proj.Point, tangent)

		if in.heading != nil {
			if !c.HasTangent {
				// the direction cannot be checked
				c.HeadingDeviation = 180
			} else {
				c.HeadingDeviation = math.Min(
					geom.HeadingDeviation(c.TangentHeading, *in.heading),
					geom.HeadingDeviation(geom.ReverseHeading(c.TangentHeading), *in.heading),
				)
			}
			if c.HeadingDeviation > in.maxHeadingDeviationDeg {
				continue
			}
		}
		candidates = append(candidates, c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Projection.Distance != b.Projection.Distance {
			return a.Projection.Distance < b.Projection.Distance
		}
		if a.HeadingDeviation != b.HeadingDeviation {
			return a.HeadingDeviation < b.HeadingDeviation
		}
		return a.Way.ID.Less(b.Way.ID)
	})
	return candidates
}

// resolve turns a way candidate into a point on one of its directed edges
func resolve(c Candidate, heading *float64) PositionerPointOnGraph {
	best := c.Edges[0]
	bestDev := 0.0
	if heading != nil && c.HasTangent {
		bestDev = math.Inf(1)
		for _, e := range c.Edges {
			dev := geom.HeadingDeviation(edgeHeading(c, e), *heading)
			if dev < bestDev {
				best, bestDev = e, dev
			}
		}
	} else if heading != nil {
		bestDev = c.HeadingDeviation
	}

	edgeParam := c.Projection.Parameter
	if best.IsWayReversed {
		edgeParam = 1 - edgeParam
	}
	return PositionerPointOnGraph{
		IsMatched:                true,
		DirectedEdgeID:           best.ID,
		ParameterizedPointOnEdge: edgeParam,
		WayID:                    c.Way.ID,
		ParameterizedPointOnWay:  c.Projection.Parameter,
		PointOnGraph:             c.Projection.Point,
		DistanceMeters:           c.Projection.Distance,
		HeadingOnGraphDegrees:    edgeHeading(c, best),
		HeadingDeviationDegrees:  bestDev,
	}
}

func edgeHeading(c Candidate, e network.DirectedEdge) float64 {
	if e.IsWayReversed {
		return geom.ReverseHeading(c.TangentHeading)
	}
	return c.TangentHeading
}

func match(g Graph, in matchInput) PositionerPointOnGraph {
	candidates := findCandidates(g, in)
	if len(candidates) == 0 {
		return UnmatchedPoint
	}
	return resolve(candidates[0], in.heading)
}
