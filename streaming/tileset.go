package streaming

import (
	"sort"

	"github.com/paulmach/orb/maptile"

	"kuanb/gosm-transport/network"
)

type cellRef struct {
	network network.NetworkType
	cell    network.CellKey
}

// TileSet holds the tiles of every cell with data, with their link edges unresolved,
// and the node each link edge leads to once the far cell is resident.
type TileSet struct {
	zoom  maptile.Zoom
	tiles map[cellRef]*tileBuilder
	links map[network.DirectedEdgeID]network.NodeID
}

func newTileSet(z maptile.Zoom) *TileSet {
	return &TileSet{
		zoom:  z,
		tiles: make(map[cellRef]*tileBuilder),
		links: make(map[network.DirectedEdgeID]network.NodeID),
	}
}

func (s *TileSet) builder(net network.NetworkType, cell network.CellKey) *tileBuilder {
	ref := cellRef{network: net, cell: cell}
	b, ok := s.tiles[ref]
	if !ok {
		b = &tileBuilder{tile: network.Tile{Cell: cell, Network: net}}
		s.tiles[ref] = b
	}
	return b
}

// link joins two border nodes in different cells with a pair of unresolved link edges
func (s *TileSet) link(a, b network.NodeID) {
	ab := s.builder(a.Network, a.Cell).edge(a, network.EmptyNodeID, network.EmptyWayID, false)
	ba := s.builder(b.Network, b.Cell).edge(b, network.EmptyNodeID, network.EmptyWayID, false)
	s.links[ab] = b
	s.links[ba] = a
}

// Zoom returns the tile level of the cells.
func (s *TileSet) Zoom() maptile.Zoom {
	return s.zoom
}

// Networks returns the networks with at least one cell, in order.
func (s *TileSet) Networks() []network.NetworkType {
	seen := make(map[network.NetworkType]struct{})
	nets := make([]network.NetworkType, 0, len(network.NetworkTypes))
	for ref := range s.tiles {
		if _, ok := seen[ref.network]; !ok {
			seen[ref.network] = struct{}{}
			nets = append(nets, ref.network)
		}
	}
	sort.Slice(nets, func(i, j int) bool { return nets[i] < nets[j] })
	return nets
}

// Cells returns the cells of the network holding data, in key order.
func (s *TileSet) Cells(net network.NetworkType) []network.CellKey {
	cells := make([]network.CellKey, 0)
	for ref := range s.tiles {
		if ref.network == net {
			cells = append(cells, ref.cell)
		}
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	return cells
}

// Has reports whether the cell of the network holds data.
func (s *TileSet) Has(net network.NetworkType, cell network.CellKey) bool {
	_, ok := s.tiles[cellRef{network: net, cell: cell}]
	return ok
}

// LinkTarget returns the border node a link edge leads to.
func (s *TileSet) LinkTarget(id network.DirectedEdgeID) (network.NodeID, bool) {
	n, ok := s.links[id]
	return n, ok
}

// Tile returns the cell payload with every link edge resolved for which resident reports true.
// Nodes and ways are shared with the set and must not be modified.
func (s *TileSet) Tile(net network.NetworkType, cell network.CellKey, resident func(network.CellKey) bool) (*network.Tile, bool) {
	b, ok := s.tiles[cellRef{network: net, cell: cell}]
	if !ok {
		return nil, false
	}
	t := b.tile
	t.DirectedEdges = append([]network.DirectedEdge(nil), b.tile.DirectedEdges...)
	for i, e := range t.DirectedEdges {
		if !e.IsLink() {
			continue
		}
		if far, ok := s.links[e.ID]; ok && resident != nil && resident(far.Cell) {
			t.DirectedEdges[i].NodeIDB = far
		}
	}
	return &t, true
}

// resolvedLinks returns the far nodes of the cell's link edges that resident reports true for
func (s *TileSet) resolvedLinks(net network.NetworkType, cell network.CellKey, resident func(network.CellKey) bool) map[network.DirectedEdgeID]network.NodeID {
	out := make(map[network.DirectedEdgeID]network.NodeID)
	b, ok := s.tiles[cellRef{network: net, cell: cell}]
	if !ok {
		return out
	}
	for _, e := range b.tile.DirectedEdges {
		if !e.IsLink() {
			continue
		}
		if far, ok := s.links[e.ID]; ok && resident(far.Cell) {
			out[e.ID] = far
		}
	}
	return out
}

// Counts returns the number of nodes, directed edges and ways of the network across all cells.
func (s *TileSet) Counts(net network.NetworkType) (nodes, edges, ways int) {
	for ref, b := range s.tiles {
		if ref.network == net {
			nodes += len(b.tile.Nodes)
			edges += len(b.tile.DirectedEdges)
			ways += len(b.tile.Ways)
		}
	}
	return nodes, edges, ways
}
