package routing

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/network/networktest"
)

// just south of the middle of AB
const inputLat, inputLon = -0.0001, 0.0005

func positionerOptions(lat, lon float64, heading *float64) PositionerOptions {
	opts := DefaultPositionerOptions()
	opts.Latitude, opts.Longitude = lat, lon
	opts.Heading = heading
	return opts
}

func heading(deg float64) *float64 { return &deg }

func TestPositionerMatchesNearestWay(t *testing.T) {
	s := newSquare(allBidirectional())

	p, err := NewPositioner(s.store, positionerOptions(inputLat, inputLon, nil), nil)
	require.NoError(t, err)
	m := p.PointOnGraph()
	require.True(t, m.IsMatched)
	assert.True(t, p.IsMatched())
	assert.Equal(t, s.ab, m.WayID)
	// without a heading the lower edge id wins
	assert.Equal(t, s.edge(s.ab, false), m.DirectedEdgeID)
	assert.InDelta(t, 0.5, m.ParameterizedPointOnEdge, 1e-3)
	assert.InDelta(t, 0.5, m.ParameterizedPointOnWay, 1e-3)
	assert.InDelta(t, 11.1, m.DistanceMeters, 0.2)
	assert.InDelta(t, 90, m.HeadingOnGraphDegrees, 0.5)
	assert.Equal(t, 0.0, m.HeadingDeviationDegrees)
}

func TestPositionerHeadingSelectsEdge(t *testing.T) {
	s := newSquare(allBidirectional())

	p, err := NewPositioner(s.store, positionerOptions(inputLat, inputLon, heading(270)), nil)
	require.NoError(t, err)
	m := p.PointOnGraph()
	require.True(t, m.IsMatched)
	assert.Equal(t, s.edge(s.ab, true), m.DirectedEdgeID)
	assert.InDelta(t, 0.5, m.ParameterizedPointOnEdge, 1e-3)
	assert.InDelta(t, 270, m.HeadingOnGraphDegrees, 0.5)
	assert.InDelta(t, 0, m.HeadingDeviationDegrees, 0.5)

	require.NoError(t, p.SetInputHeading(80))
	m = p.PointOnGraph()
	require.True(t, m.IsMatched)
	assert.Equal(t, s.edge(s.ab, false), m.DirectedEdgeID)
	assert.InDelta(t, 10, m.HeadingDeviationDegrees, 0.5)

	// perpendicular to every nearby way
	require.NoError(t, p.SetInputHeading(0))
	assert.False(t, p.IsMatched())
	assert.Equal(t, UnmatchedPoint, p.PointOnGraph())

	p.ClearInputHeading()
	assert.True(t, p.IsMatched())
}

func TestPositionerOneWayHeading(t *testing.T) {
	dirs := allBidirectional()
	dirs.ab = network.OneWay
	s := newSquare(dirs)

	// the way itself passes the heading filter, its only edge is chosen even against the heading
	p, err := NewPositioner(s.store, positionerOptions(inputLat, inputLon, heading(270)), nil)
	require.NoError(t, err)
	m := p.PointOnGraph()
	require.True(t, m.IsMatched)
	assert.Equal(t, s.edge(s.ab, false), m.DirectedEdgeID)
	assert.InDelta(t, 180, m.HeadingDeviationDegrees, 0.5)
}

func TestPositionerDistanceThreshold(t *testing.T) {
	s := newSquare(allBidirectional())

	p, err := NewPositioner(s.store, positionerOptions(inputLat, inputLon, nil), nil)
	require.NoError(t, err)
	d := p.PointOnGraph().DistanceMeters

	opts := positionerOptions(inputLat, inputLon, nil)
	opts.MaxDistanceToMatchedPointMeters = d
	p, err = NewPositioner(s.store, opts, nil)
	require.NoError(t, err)
	assert.True(t, p.IsMatched())

	opts.MaxDistanceToMatchedPointMeters = d - 1e-6
	p, err = NewPositioner(s.store, opts, nil)
	require.NoError(t, err)
	assert.False(t, p.IsMatched())
}

func TestPositionerInvalidInput(t *testing.T) {
	s := newSquare(allBidirectional())

	_, err := NewPositioner(s.store, positionerOptions(91, 0, nil), nil)
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	opts := positionerOptions(inputLat, inputLon, nil)
	opts.MaxDistanceToMatchedPointMeters = -1
	_, err = NewPositioner(s.store, opts, nil)
	assert.True(t, errors.Is(err, ErrInvalidOptions))

	p, err := NewPositioner(s.store, positionerOptions(inputLat, inputLon, nil), nil)
	require.NoError(t, err)
	before := p.PointOnGraph()
	assert.Error(t, p.SetInputCoordinates(0, 181))
	assert.Equal(t, before, p.PointOnGraph())
	assert.Equal(t, inputLon, p.Options().Longitude)
}

func TestPositionerFollowsGraphChanges(t *testing.T) {
	s := newSquare(allBidirectional())
	s.store.OnCellRemoved(network.Road, s.cell)

	far := networktest.NewBuilder(network.Road, networktest.Cell(0.0205, 0.0205))
	far.Way(far.Node(0.0200, 0.0200), far.Node(0.0200, 0.0210), network.Bidirectional)
	s.source.Put(far.Tile())

	p, err := NewPositioner(s.store, positionerOptions(inputLat, inputLon, nil), nil)
	require.NoError(t, err)
	assert.False(t, p.IsMatched())

	p.Attach(s.store)
	var seen []PositionerPointOnGraph
	p.Subscribe(func(m PositionerPointOnGraph) { seen = append(seen, m) })

	s.store.OnCellAdded(network.Road, s.cell)
	require.Len(t, seen, 1)
	assert.True(t, seen[0].IsMatched)
	matched := p.PointOnGraph()

	// an unrelated cell coming and going leaves the match alone
	s.store.OnCellAdded(network.Road, networktest.Cell(0.0205, 0.0205))
	s.store.OnCellRemoved(network.Road, networktest.Cell(0.0205, 0.0205))
	assert.Len(t, seen, 1)
	assert.Equal(t, matched, p.PointOnGraph())

	s.store.OnCellRemoved(network.Road, s.cell)
	require.Len(t, seen, 2)
	assert.Equal(t, UnmatchedPoint, seen[1])

	p.Close()
	s.store.OnCellAdded(network.Road, s.cell)
	assert.Len(t, seen, 2)
	assert.False(t, p.IsMatched())
}

func TestPositionerIsDeterministic(t *testing.T) {
	s := newSquare(allBidirectional())
	opts := positionerOptions(0.0005, 0.0005, heading(45))
	opts.MaxDistanceToMatchedPointMeters = 100

	p1, err := NewPositioner(s.store, opts, nil)
	require.NoError(t, err)
	p2, err := NewPositioner(s.store, opts, nil)
	require.NoError(t, err)
	assert.Equal(t, p1.PointOnGraph(), p2.PointOnGraph())

	p1.Rematch()
	assert.Equal(t, p2.PointOnGraph(), p1.PointOnGraph())
}

func TestHMMMatchesTraceAlongWay(t *testing.T) {
	s := newSquare(allBidirectional())
	m := NewHMMMapMatcher(s.store, network.Road)

	trace := m.Match([]Coordinate{
		{Lat: -0.00005, Lon: 0.0002},
		{Lat: -0.00005, Lon: 0.0005},
		{Lat: -0.00005, Lon: 0.0008},
	})
	require.Len(t, trace.Points, 3)
	for _, pt := range trace.Points {
		assert.True(t, pt.IsMatched)
		assert.Equal(t, s.ab, pt.WayID)
	}
	assert.Less(t, trace.Points[0].ParameterizedPointOnWay, trace.Points[2].ParameterizedPointOnWay)
	assert.GreaterOrEqual(t, trace.Confidence, 0.0)
	assert.LessOrEqual(t, trace.Confidence, 1.0)

	assert.Empty(t, m.Match(nil).Points)
	// an observation far from every way breaks the trace
	assert.Empty(t, m.Match([]Coordinate{{Lat: 0.5, Lon: 0.5}}).Points)
}
