package network

import (
	"github.com/pkg/errors"

	"kuanb/gosm-transport/geom"
)

// WayDirection tells which traversal directions a way permits.
type WayDirection uint8

const (
	Bidirectional = WayDirection(iota)
	OneWay
	ClosedInBothDirections
)

func (d WayDirection) String() string {
	switch d {
	case Bidirectional:
		return "bidirectional"
	case OneWay:
		return "one_way"
	case ClosedInBothDirections:
		return "closed"
	default:
		return "undefined"
	}
}

// Node is a graph vertex
type Node struct {
	ID       NodeID
	Position geom.Vector
	// Edges leaving this node
	IncidentDirectedEdges []DirectedEdgeID
}

// DirectedEdge is one permitted direction of travel along a way, or a zero-length link across a cell boundary
type DirectedEdge struct {
	ID      DirectedEdgeID
	NodeIDA NodeID
	// Empty for a link edge whose far cell is not resident
	NodeIDB       NodeID
	WayID         WayID
	IsWayReversed bool
}

// IsLink reports whether the edge is a cell-boundary link edge.
func (e DirectedEdge) IsLink() bool {
	return e.WayID.IsEmpty()
}

// IsResolved reports whether the far end of the edge is known.
func (e DirectedEdge) IsResolved() bool {
	return !e.NodeIDB.IsEmpty()
}

// Way is the undirected centerline and attributes of a road or track segment
type Way struct {
	ID                       WayID
	CenterLinePoints         []geom.Vector
	CenterLineSplineParams   []float64
	LengthMeters             float64
	HalfWidthMeters          float64
	WayDirection             WayDirection
	Classification           string
	AverageSpeedKph          float64
	ApproximateSpeedLimitKph float64
}

// Empty values returned in place of entities that could not be found.
var (
	EmptyNode         = Node{ID: EmptyNodeID}
	EmptyDirectedEdge = DirectedEdge{ID: EmptyDirectedEdgeID, NodeIDA: EmptyNodeID, NodeIDB: EmptyNodeID, WayID: EmptyWayID}
	EmptyWay          = Way{ID: EmptyWayID}
)

// Validate checks the centerline arrays of the way.
func (w *Way) Validate() error {
	if err := geom.ValidatePolyline(w.CenterLinePoints, w.CenterLineSplineParams); err != nil {
		return errors.Wrapf(err, "way %s", w.ID)
	}
	prev := 0.0
	for i, p := range w.CenterLineSplineParams {
		if p < prev || p > 1 {
			return errors.Wrapf(geom.ErrInvalidPolyline, "way %s: spline param %d = %f not in [%f, 1]", w.ID, i, p, prev)
		}
		prev = p
	}
	for i, p := range w.CenterLinePoints {
		if !geom.IsFinite(p) {
			return errors.Wrapf(geom.ErrInvalidPolyline, "way %s: point %d is not finite", w.ID, i)
		}
	}
	if w.LengthMeters < 0 {
		return errors.Errorf("way %s: negative length %f", w.ID, w.LengthMeters)
	}
	return nil
}

// PointAt samples the centerline at way parameter t.
func (w *Way) PointAt(t float64) (geom.Vector, error) {
	return geom.PointAt(w.CenterLinePoints, w.CenterLineSplineParams, t)
}

// DirectionAt returns the centerline tangent at way parameter t, pointing from the first point towards the last.
func (w *Way) DirectionAt(t float64) (geom.Vector, error) {
	return geom.DirectionAt(w.CenterLinePoints, w.CenterLineSplineParams, t)
}
