package routing

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kuanb/gosm-transport/network"
)

// PositionerOptions configures a positioner.
type PositionerOptions struct {
	Network   network.NetworkType
	Latitude  float64
	Longitude float64
	// Optional compass heading of the input, clockwise from north in degrees
	Heading                                  *float64
	MaxDistanceToMatchedPointMeters          float64
	MaxHeadingDeviationToMatchedPointDegrees float64
}

// DefaultPositionerOptions returns options with the default match thresholds
func DefaultPositionerOptions() PositionerOptions {
	return PositionerOptions{
		Network:                                  network.Road,
		MaxDistanceToMatchedPointMeters:          35.0, // max 35m from input point
		MaxHeadingDeviationToMatchedPointDegrees: 45.0,
	}
}

// Validate rejects options no positioner can work with.
func (o PositionerOptions) Validate() error {
	if !o.Network.Valid() {
		return errors.Wrapf(ErrInvalidOptions, "network type %d", o.Network)
	}
	if err := validateCoordinates(o.Latitude, o.Longitude); err != nil {
		return err
	}
	if o.Heading != nil && (math.IsNaN(*o.Heading) || math.IsInf(*o.Heading, 0)) {
		return errors.Wrap(ErrInvalidOptions, "heading is not finite")
	}
	if !(o.MaxDistanceToMatchedPointMeters >= 0) || math.IsInf(o.MaxDistanceToMatchedPointMeters, 0) {
		return errors.Wrapf(ErrInvalidOptions, "max distance %f", o.MaxDistanceToMatchedPointMeters)
	}
	if !(o.MaxHeadingDeviationToMatchedPointDegrees >= 0) {
		return errors.Wrapf(ErrInvalidOptions, "max heading deviation %f", o.MaxHeadingDeviationToMatchedPointDegrees)
	}
	return nil
}

func validateCoordinates(lat, lon float64) error {
	if !(lat >= -90 && lat <= 90) {
		return errors.Wrapf(ErrInvalidOptions, "latitude %f", lat)
	}
	if !(lon >= -180 && lon <= 180) {
		return errors.Wrapf(ErrInvalidOptions, "longitude %f", lon)
	}
	return nil
}

// Positioner keeps the best match of an input coordinate on one network up to date.
// It re-matches whenever its input changes and, once attached, whenever a cell of its network changes.
type Positioner struct {
	graph  Graph
	opts   PositionerOptions
	logger *zap.Logger

	source network.EventSource
	token  network.Token

	current   PositionerPointOnGraph
	observers network.Observers[PositionerPointOnGraph]
}

// NewPositioner creates a positioner and computes its first match. A nil logger disables logging.
func NewPositioner(g Graph, opts PositionerOptions, logger *zap.Logger) (*Positioner, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Heading != nil {
		h := *opts.Heading
		opts.Heading = &h
	}
	p := &Positioner{graph: g, opts: opts, logger: logger, current: UnmatchedPoint}
	p.current = match(g, p.input())
	return p, nil
}

func (p *Positioner) input() matchInput {
	return matchInput{
		network:                p.opts.Network,
		lat:                    p.opts.Latitude,
		lon:                    p.opts.Longitude,
		heading:                p.opts.Heading,
		maxDistanceMeters:      p.opts.MaxDistanceToMatchedPointMeters,
		maxHeadingDeviationDeg: p.opts.MaxHeadingDeviationToMatchedPointDegrees,
	}
}

// Attach re-runs the match after every event of the positioner's network published by source.
func (p *Positioner) Attach(source network.EventSource) {
	p.Detach()
	p.source = source
	p.token = source.Subscribe(func(e network.CellEvent) {
		if e.Network == p.opts.Network {
			p.Rematch()
		}
	})
}

// Detach stops following graph changes.
func (p *Positioner) Detach() {
	if p.source != nil {
		p.source.Unsubscribe(p.token)
		p.source = nil
		p.token = 0
	}
}

// Close detaches the positioner and drops its subscribers.
func (p *Positioner) Close() {
	p.Detach()
	p.observers.Clear()
}

// Subscribe registers fn to be called with the new match whenever it changes.
func (p *Positioner) Subscribe(fn func(PositionerPointOnGraph)) network.Token {
	return p.observers.Subscribe(fn)
}

// Unsubscribe removes a subscription made with Subscribe.
func (p *Positioner) Unsubscribe(token network.Token) bool {
	return p.observers.Unsubscribe(token)
}

// Options returns a copy of the current input and thresholds.
func (p *Positioner) Options() PositionerOptions {
	opts := p.opts
	if opts.Heading != nil {
		h := *opts.Heading
		opts.Heading = &h
	}
	return opts
}

// SetInputCoordinates moves the input point and re-matches.
func (p *Positioner) SetInputCoordinates(lat, lon float64) error {
	if err := validateCoordinates(lat, lon); err != nil {
		return err
	}
	p.opts.Latitude, p.opts.Longitude = lat, lon
	p.Rematch()
	return nil
}

// SetInputHeading sets the input heading in degrees clockwise from north and re-matches.
func (p *Positioner) SetInputHeading(heading float64) error {
	if math.IsNaN(heading) || math.IsInf(heading, 0) {
		return errors.Wrap(ErrInvalidOptions, "heading is not finite")
	}
	p.opts.Heading = &heading
	p.Rematch()
	return nil
}

// ClearInputHeading drops the heading constraint and re-matches.
func (p *Positioner) ClearInputHeading() {
	p.opts.Heading = nil
	p.Rematch()
}

// IsMatched reports whether the input currently matches a point on the graph.
func (p *Positioner) IsMatched() bool {
	return p.current.IsMatched
}

// PointOnGraph returns the current best match, or UnmatchedPoint.
func (p *Positioner) PointOnGraph() PositionerPointOnGraph {
	return p.current
}

// Rematch recomputes the match and notifies subscribers if it changed.
func (p *Positioner) Rematch() {
	next := match(p.graph, p.input())
	if next == p.current {
		return
	}
	p.current = next
	p.logger.Debug("positioner match changed",
		zap.Bool("matched", next.IsMatched),
		zap.Stringer("edge", next.DirectedEdgeID),
		zap.Float64("distance_meters", next.DistanceMeters))
	p.observers.Notify(next)
}
