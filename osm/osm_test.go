package osm

import (
	"testing"

	"github.com/qedus/osmpbf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/streaming"
)

func TestProfileOf(t *testing.T) {
	p, ok := ProfileOf(map[string]string{"highway": "residential"})
	require.True(t, ok)
	assert.Equal(t, network.Road, p.Network)
	assert.Equal(t, network.Bidirectional, p.Direction)
	assert.Equal(t, 30.0, p.ApproximateSpeedLimitKph)
	assert.InDelta(t, 18.0, p.AverageSpeedKph, 1e-9)
	assert.Equal(t, 3.5, p.HalfWidthMeters)

	p, ok = ProfileOf(map[string]string{"highway": "motorway", "maxspeed": "70 mph", "lanes": "3"})
	require.True(t, ok)
	assert.Equal(t, network.OneWay, p.Direction)
	assert.InDelta(t, 112.65, p.ApproximateSpeedLimitKph, 0.01)
	assert.Equal(t, 5.25, p.HalfWidthMeters)

	p, ok = ProfileOf(map[string]string{"highway": "primary", "oneway": "-1"})
	require.True(t, ok)
	assert.Equal(t, network.OneWay, p.Direction)
	assert.True(t, p.Reversed)

	p, ok = ProfileOf(map[string]string{"highway": "service", "access": "no"})
	require.True(t, ok)
	assert.Equal(t, network.ClosedInBothDirections, p.Direction)

	p, ok = ProfileOf(map[string]string{"railway": "tram", "maxspeed": "40 km/h"})
	require.True(t, ok)
	assert.Equal(t, network.Tram, p.Network)
	assert.Equal(t, 40.0, p.ApproximateSpeedLimitKph)

	p, ok = ProfileOf(map[string]string{"railway": "rail"})
	require.True(t, ok)
	assert.Equal(t, network.Rail, p.Network)

	for _, tags := range []map[string]string{{"highway": "footway"}, {"building": "yes"}, {"railway": "abandoned"}} {
		_, ok := ProfileOf(tags)
		assert.False(t, ok, tags)
	}
}

func TestParseMaxSpeed(t *testing.T) {
	for in, want := range map[string]float64{"50": 50, "50 km/h": 50, "30 mph": 48.28032} {
		got, ok := parseMaxSpeed(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-6, in)
	}
	for _, in := range []string{"", "signals", "-5", "none"} {
		_, ok := parseMaxSpeed(in)
		assert.False(t, ok, in)
	}
}

// grid lays out nodes 1..6 in two rows just north of the equator
func grid(c *collector) {
	for id, ll := range map[int64][2]float64{
		1: {0.0005, 0.0010}, 2: {0.0005, 0.0020}, 3: {0.0005, 0.0030},
		4: {0.0015, 0.0020}, 5: {0.0015, 0.0030}, 6: {0.0015, 0.0040},
	} {
		c.addNode(&osmpbf.Node{ID: id, Lat: ll[0], Lon: ll[1]})
	}
}

func TestCollectorSplitsAtJunctions(t *testing.T) {
	c := newCollector(zap.NewNop())
	grid(c)
	c.addWay(&osmpbf.Way{ID: 10, NodeIDs: []int64{1, 2, 3}, Tags: map[string]string{"highway": "residential"}})
	c.addWay(&osmpbf.Way{ID: 11, NodeIDs: []int64{2, 4}, Tags: map[string]string{"highway": "residential", "oneway": "-1"}})
	// shares node 3 but on another network, so it does not split way 10 there
	c.addWay(&osmpbf.Way{ID: 12, NodeIDs: []int64{3, 5, 99}, Tags: map[string]string{"railway": "tram"}})
	c.addWay(&osmpbf.Way{ID: 13, NodeIDs: []int64{5, 6}, Tags: map[string]string{"highway": "footway"}})

	g := c.build()
	require.Len(t, g.Ways, 4)
	assert.Len(t, g.Nodes, 5)

	ab, bc, db, tram := g.Ways[0], g.Ways[1], g.Ways[2], g.Ways[3]
	assert.Equal(t, [2]int64{1, 2}, [2]int64{ab.From, ab.To})
	assert.Equal(t, [2]int64{2, 3}, [2]int64{bc.From, bc.To})
	assert.Len(t, bc.Line, 2)

	// the reversed one-way runs against its node order
	assert.Equal(t, [2]int64{4, 2}, [2]int64{db.From, db.To})
	assert.Equal(t, network.OneWay, db.Direction)
	assert.Equal(t, 0.0015, db.Line[0].Lat())

	// node 99 is missing from the extract and left out of the line
	assert.Equal(t, network.Tram, tram.Network)
	assert.Equal(t, [2]int64{3, 5}, [2]int64{tram.From, tram.To})
	assert.Len(t, tram.Line, 2)
}

func TestSourceWaysTileIntoConnectedGraph(t *testing.T) {
	c := newCollector(zap.NewNop())
	grid(c)
	c.addWay(&osmpbf.Way{ID: 10, NodeIDs: []int64{1, 2, 3}, Tags: map[string]string{"highway": "residential"}})
	c.addWay(&osmpbf.Way{ID: 11, NodeIDs: []int64{2, 4}, Tags: map[string]string{"highway": "residential"}})

	tiler, err := streaming.NewTiler(16)
	require.NoError(t, err)
	set := tiler.Tile(c.build().Ways)
	cells := set.Cells(network.Road)
	require.Len(t, cells, 1)

	tile, ok := set.Tile(network.Road, cells[0], nil)
	require.True(t, ok)
	assert.Len(t, tile.Ways, 3)
	assert.Len(t, tile.Nodes, 4)
	// node 2 joins all three ways
	junction := 0
	for _, n := range tile.Nodes {
		if len(n.IncidentDirectedEdges) == 3 {
			junction++
		}
	}
	assert.Equal(t, 1, junction)
}
