// Package networktest provides tile fixtures and an in-memory TileSource for tests.
package networktest

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
)

// Zoom is the tile level fixtures use by default.
const Zoom = maptile.Zoom(16)

// Cell returns the fixture cell containing the lon/lat point.
func Cell(lon, lat float64) network.CellKey {
	return network.CellAt(orb.Point{lon, lat}, Zoom)
}

// Builder assembles the tile of one cell.
type Builder struct {
	tile  network.Tile
	nodes map[network.NodeID]int
	ways  map[network.WayID]int
}

// NewBuilder starts an empty tile.
func NewBuilder(net network.NetworkType, cell network.CellKey) *Builder {
	return &Builder{
		tile:  network.Tile{Cell: cell, Network: net},
		nodes: make(map[network.NodeID]int),
		ways:  make(map[network.WayID]int),
	}
}

// Node adds a node on the sphere surface.
func (b *Builder) Node(lat, lon float64) network.NodeID {
	id := network.NodeID{Cell: b.tile.Cell, Network: b.tile.Network, LocalIndex: int32(len(b.tile.Nodes))}
	b.nodes[id] = len(b.tile.Nodes)
	b.tile.Nodes = append(b.tile.Nodes, network.Node{ID: id, Position: geom.FromLatLon(lat, lon)})
	return id
}

// Way adds a way from node a to node c through optional lon/lat vertices, with the directed edges its
// direction permits. The forward edge runs a to c.
func (b *Builder) Way(a, c network.NodeID, dir network.WayDirection, via ...orb.Point) network.WayID {
	points := []geom.Vector{b.tile.Nodes[b.nodes[a]].Position}
	for _, p := range via {
		points = append(points, geom.FromLatLon(p.Lat(), p.Lon()))
	}
	points = append(points, b.tile.Nodes[b.nodes[c]].Position)

	id := network.WayID{Cell: b.tile.Cell, Network: b.tile.Network, LocalIndex: int32(len(b.tile.Ways))}
	b.ways[id] = len(b.tile.Ways)
	b.tile.Ways = append(b.tile.Ways, network.Way{
		ID:                       id,
		CenterLinePoints:         points,
		CenterLineSplineParams:   geom.CumulativeParams(points),
		LengthMeters:             geom.PolylineLength(points),
		HalfWidthMeters:          3.5,
		WayDirection:             dir,
		Classification:           "residential",
		AverageSpeedKph:          40,
		ApproximateSpeedLimitKph: 50,
	})

	switch dir {
	case network.Bidirectional:
		b.edge(a, c, id, false)
		b.edge(c, a, id, true)
	case network.OneWay:
		b.edge(a, c, id, false)
	}
	return id
}

// SetLength overrides the length of a way.
func (b *Builder) SetLength(id network.WayID, meters float64) {
	b.tile.Ways[b.ways[id]].LengthMeters = meters
}

// Link adds a zero-length link edge leaving node from. to may be network.EmptyNodeID.
func (b *Builder) Link(from, to network.NodeID) network.DirectedEdgeID {
	return b.edge(from, to, network.EmptyWayID, false)
}

// Resolve sets the far node of a link edge.
func (b *Builder) Resolve(id network.DirectedEdgeID, to network.NodeID) {
	b.tile.DirectedEdges[id.LocalIndex].NodeIDB = to
}

func (b *Builder) edge(from, to network.NodeID, way network.WayID, reversed bool) network.DirectedEdgeID {
	id := network.DirectedEdgeID{Cell: b.tile.Cell, Network: b.tile.Network, LocalIndex: int32(len(b.tile.DirectedEdges))}
	b.tile.DirectedEdges = append(b.tile.DirectedEdges, network.DirectedEdge{
		ID:            id,
		NodeIDA:       from,
		NodeIDB:       to,
		WayID:         way,
		IsWayReversed: reversed,
	})
	n := &b.tile.Nodes[b.nodes[from]]
	n.IncidentDirectedEdges = append(n.IncidentDirectedEdges, id)
	return id
}

// Tile returns a copy of the tile built so far.
func (b *Builder) Tile() *network.Tile {
	t := network.Tile{
		Cell:          b.tile.Cell,
		Network:       b.tile.Network,
		Nodes:         make([]network.Node, len(b.tile.Nodes)),
		DirectedEdges: append([]network.DirectedEdge(nil), b.tile.DirectedEdges...),
		Ways:          append([]network.Way(nil), b.tile.Ways...),
	}
	for i, n := range b.tile.Nodes {
		n.IncidentDirectedEdges = append([]network.DirectedEdgeID(nil), n.IncidentDirectedEdges...)
		t.Nodes[i] = n
	}
	return &t
}

type tileKey struct {
	network network.NetworkType
	cell    network.CellKey
}

// Source is a TileSource over tiles put into it.
type Source struct {
	tiles map[tileKey]*network.Tile
}

// NewSource creates an empty Source.
func NewSource(tiles ...*network.Tile) *Source {
	s := &Source{tiles: make(map[tileKey]*network.Tile)}
	for _, t := range tiles {
		s.Put(t)
	}
	return s
}

// Put makes a tile available, replacing any previous payload of its cell.
func (s *Source) Put(t *network.Tile) {
	s.tiles[tileKey{network: t.Network, cell: t.Cell}] = t
}

// Delete withdraws the payload of a cell.
func (s *Source) Delete(net network.NetworkType, cell network.CellKey) {
	delete(s.tiles, tileKey{network: net, cell: cell})
}

func (s *Source) Tile(net network.NetworkType, cell network.CellKey) (*network.Tile, bool) {
	t, ok := s.tiles[tileKey{network: net, cell: cell}]
	return t, ok
}
