package streaming

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
)

const zoom = 16

var (
	west = network.CellAt(orb.Point{0.0005, 0.0005}, zoom)
	east = network.CellAt(orb.Point{0.0060, 0.0005}, zoom)
)

// crossing is a single street running east across the boundary between west and east
func crossing() []SourceWay {
	return []SourceWay{{
		ID:             1,
		Network:        network.Road,
		From:           100,
		To:             101,
		Line:           orb.LineString{{0.0040, 0.0005}, {0.0070, 0.0005}},
		Direction:      network.Bidirectional,
		Classification: "residential",
	}}
}

func tileSet(t *testing.T, ways []SourceWay) *TileSet {
	tiler, err := NewTiler(zoom)
	require.NoError(t, err)
	return tiler.Tile(ways)
}

func TestTilerCutsAtCellBoundary(t *testing.T) {
	set := tileSet(t, crossing())
	assert.Equal(t, []network.NetworkType{network.Road}, set.Networks())
	assert.ElementsMatch(t, []network.CellKey{west, east}, set.Cells(network.Road))

	w, ok := set.Tile(network.Road, west, nil)
	require.True(t, ok)
	e, ok := set.Tile(network.Road, east, nil)
	require.True(t, ok)

	for _, tile := range []*network.Tile{w, e} {
		// a junction and a border node, one way, two way edges and one link
		assert.Len(t, tile.Nodes, 2)
		require.Len(t, tile.Ways, 1)
		assert.Len(t, tile.DirectedEdges, 3)
		assert.NoError(t, tile.Ways[0].Validate())
		for _, edge := range tile.DirectedEdges {
			assert.Equal(t, tile.Cell, edge.ID.Cell)
			assert.Equal(t, tile.Cell, edge.NodeIDA.Cell)
		}
	}

	link := w.DirectedEdges[2]
	assert.True(t, link.IsLink())
	assert.False(t, link.IsResolved())
	far, ok := set.LinkTarget(link.ID)
	require.True(t, ok)
	assert.Equal(t, east, far.Cell)
	back, ok := set.LinkTarget(e.DirectedEdges[2].ID)
	require.True(t, ok)
	assert.Equal(t, link.NodeIDA, back)

	// the border nodes sit on the boundary
	a := w.Nodes[link.NodeIDA.LocalIndex].Position
	b := e.Nodes[far.LocalIndex].Position
	assert.Less(t, a.Sub(b).Norm(), 1e-3)

	total := geom.GreatCircleDistance(0.0040, 0.0005, 0.0070, 0.0005)
	assert.InDelta(t, total, w.Ways[0].LengthMeters+e.Ways[0].LengthMeters, 0.01)
}

func TestTilerJoinsWaysAtJunctions(t *testing.T) {
	ways := []SourceWay{
		{ID: 2, Network: network.Road, From: 1, To: 2, Line: orb.LineString{{0.0010, 0.0010}, {0.0020, 0.0010}}, Direction: network.OneWay},
		{ID: 1, Network: network.Road, From: 2, To: 3, Line: orb.LineString{{0.0020, 0.0010}, {0.0020, 0.0020}}},
		{ID: 3, Network: network.Rail, From: 2, To: 4, Line: orb.LineString{{0.0020, 0.0010}, {0.0030, 0.0010}}},
		{ID: 4, Network: network.Road, From: 5, To: 6, Line: orb.LineString{{0.0020, 0.0010}}},
	}
	set := tileSet(t, ways)

	road, ok := set.Tile(network.Road, west, nil)
	require.True(t, ok)
	// three junctions, the shared one only once
	assert.Len(t, road.Nodes, 3)
	assert.Len(t, road.Ways, 2)
	// way 1 is tiled first: two edges, then the one-way: one edge
	assert.Len(t, road.DirectedEdges, 3)
	assert.Equal(t, network.OneWay, road.Ways[1].WayDirection)

	rail, ok := set.Tile(network.Rail, west, nil)
	require.True(t, ok)
	assert.Len(t, rail.Nodes, 2)

	nodes, edges, ways2 := set.Counts(network.Road)
	assert.Equal(t, [3]int{3, 3, 2}, [3]int{nodes, edges, ways2})
}

func TestTilerRejectsDeepZoom(t *testing.T) {
	_, err := NewTiler(network.MaxZoom + 1)
	assert.Error(t, err)
}

// recorder forwards events to a store and keeps their order
type recorder struct {
	store  *network.Store
	events []string
}

func (r *recorder) OnCellAdded(net network.NetworkType, cell network.CellKey) {
	r.events = append(r.events, fmt.Sprintf("added %s", cell))
	r.store.OnCellAdded(net, cell)
}

func (r *recorder) OnCellRemoved(net network.NetworkType, cell network.CellKey) {
	r.events = append(r.events, fmt.Sprintf("removed %s", cell))
	r.store.OnCellRemoved(net, cell)
}

func (r *recorder) OnCellUpdated(net network.NetworkType, cell network.CellKey) {
	r.events = append(r.events, fmt.Sprintf("updated %s", cell))
	r.store.OnCellUpdated(net, cell)
}

func (r *recorder) take() []string {
	out := r.events
	r.events = nil
	return out
}

func linkOf(t *testing.T, store *network.Store, cell network.CellKey) network.DirectedEdge {
	for _, id := range store.DirectedEdgeIDsInCell(network.Road, cell) {
		e, ok := store.DirectedEdge(id)
		require.True(t, ok)
		if e.IsLink() {
			return e
		}
	}
	t.Fatalf("no link edge in %s", cell)
	return network.EmptyDirectedEdge
}

func TestEngineStreamsCells(t *testing.T) {
	engine := NewEngine(tileSet(t, crossing()))
	store := network.NewStore(engine)
	rec := &recorder{store: store}
	engine.SetListener(rec)

	engine.SetResident(network.Road, []network.CellKey{west})
	assert.Equal(t, []string{"added " + west.String()}, rec.take())
	assert.False(t, linkOf(t, store, west).IsResolved())

	engine.SetResident(network.Road, []network.CellKey{west, east})
	assert.Equal(t, []string{"added " + east.String(), "updated " + west.String()}, rec.take())
	assert.True(t, linkOf(t, store, west).IsResolved())
	assert.True(t, linkOf(t, store, east).IsResolved())
	assert.Equal(t, east, linkOf(t, store, west).NodeIDB.Cell)

	// nothing changes, nothing is reported
	engine.SetResident(network.Road, []network.CellKey{east, west})
	assert.Empty(t, rec.take())

	engine.SetResident(network.Road, []network.CellKey{west})
	assert.Equal(t, []string{"removed " + east.String(), "updated " + west.String()}, rec.take())
	assert.False(t, linkOf(t, store, west).IsResolved())
	assert.False(t, store.IsResident(network.Road, east))

	_, ok := engine.Tile(network.Road, east)
	assert.False(t, ok)

	engine.Clear()
	assert.Equal(t, []string{"removed " + west.String()}, rec.take())
	assert.Empty(t, store.NodeIDs(network.Road))
}

func TestEngineFocus(t *testing.T) {
	engine := NewEngine(tileSet(t, crossing()))
	store := network.NewStore(engine)
	rec := &recorder{store: store}
	engine.SetListener(rec)

	engine.SetFocus(0.0005, 0.0060, 0)
	assert.Equal(t, []network.CellKey{east}, engine.ResidentCells(network.Road))

	// moving one cell west with radius one keeps both
	engine.SetFocus(0.0005, 0.0005, 1)
	assert.ElementsMatch(t, []network.CellKey{west, east}, engine.ResidentCells(network.Road))
	assert.Equal(t, []string{"added " + east.String(), "added " + west.String(), "updated " + east.String()}, rec.take())

	engine.SetFocus(10, 10, 1)
	assert.Empty(t, engine.ResidentCells(network.Road))
	assert.Empty(t, store.ResidentCells(network.Road))
}
