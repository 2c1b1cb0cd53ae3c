package routing

import (
	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/network/networktest"
)

const side = 100.0

// square is a unit block A-B-C-D (counter-clockwise from the south west corner) with no diagonal.
// Every way runs in the listed direction and is forced to side meters long.
type square struct {
	cell       network.CellKey
	builder    *networktest.Builder
	source     *networktest.Source
	store      *network.Store
	a, b, c, d network.NodeID
	ab, bc     network.WayID
	cd, da     network.WayID
}

type squareDirections struct {
	ab, bc, cd, da network.WayDirection
	// build BC from C to B, so a one-way BC only runs C to B
	reverseBC bool
}

func allBidirectional() squareDirections {
	return squareDirections{
		ab: network.Bidirectional,
		bc: network.Bidirectional,
		cd: network.Bidirectional,
		da: network.Bidirectional,
	}
}

func newSquare(dirs squareDirections) *square {
	s := &square{cell: networktest.Cell(0.0005, 0.0005)}
	s.builder = networktest.NewBuilder(network.Road, s.cell)
	s.a = s.builder.Node(0.0000, 0.0000)
	s.b = s.builder.Node(0.0000, 0.0010)
	s.c = s.builder.Node(0.0010, 0.0010)
	s.d = s.builder.Node(0.0010, 0.0000)
	s.ab = s.builder.Way(s.a, s.b, dirs.ab)
	if dirs.reverseBC {
		s.bc = s.builder.Way(s.c, s.b, dirs.bc)
	} else {
		s.bc = s.builder.Way(s.b, s.c, dirs.bc)
	}
	s.cd = s.builder.Way(s.c, s.d, dirs.cd)
	s.da = s.builder.Way(s.d, s.a, dirs.da)
	for _, w := range []network.WayID{s.ab, s.bc, s.cd, s.da} {
		s.builder.SetLength(w, side)
	}
	s.source = networktest.NewSource(s.builder.Tile())
	s.store = network.NewStore(s.source)
	s.store.OnCellAdded(network.Road, s.cell)
	return s
}

// edge returns the directed edge traversing way w, forward or reversed
func (s *square) edge(w network.WayID, reversed bool) network.DirectedEdgeID {
	for _, id := range s.store.DirectedEdgesOfWay(w) {
		e, _ := s.store.DirectedEdge(id)
		if e.IsWayReversed == reversed {
			return id
		}
	}
	return network.EmptyDirectedEdgeID
}
