// Package graph maintains a derived, streaming-consistent view of one transport network.
package graph

import (
	"sort"

	"go.uber.org/zap"

	"kuanb/gosm-transport/network"
)

// TransportGraph mirrors the resident nodes, directed edges and ways of a single network type.
// It only reacts to cell events delivered to it and pulls entities by id from its reader.
type TransportGraph struct {
	network network.NetworkType
	reader  network.Reader
	logger  *zap.Logger

	source network.EventSource
	token  network.Token

	nodes map[network.NodeID]network.Node
	edges map[network.DirectedEdgeID]network.DirectedEdge
	ways  map[network.WayID]network.Way

	observers network.Observers[network.CellEvent]
}

// Option configures a TransportGraph
type Option func(*TransportGraph)

// WithLogger sets the logger used to report skipped entities.
func WithLogger(logger *zap.Logger) Option {
	return func(g *TransportGraph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates an empty view of net. Cells already resident are not loaded; deliver their events through Apply.
func New(net network.NetworkType, reader network.Reader, opts ...Option) *TransportGraph {
	g := &TransportGraph{
		network: net,
		reader:  reader,
		logger:  zap.NewNop(),
		nodes:   make(map[network.NodeID]network.Node),
		edges:   make(map[network.DirectedEdgeID]network.DirectedEdge),
		ways:    make(map[network.WayID]network.Way),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Attach subscribes the view to source so events are applied as they are published.
func (g *TransportGraph) Attach(source network.EventSource) {
	g.Detach()
	g.source = source
	g.token = source.Subscribe(g.Apply)
}

// Detach stops following the event source the view was attached to.
func (g *TransportGraph) Detach() {
	if g.source != nil {
		g.source.Unsubscribe(g.token)
		g.source = nil
		g.token = 0
	}
}

// Network returns the network type the view tracks.
func (g *TransportGraph) Network() network.NetworkType {
	return g.network
}

// Subscribe registers fn for the view's own change events, raised after each applied cell event.
func (g *TransportGraph) Subscribe(fn func(network.CellEvent)) network.Token {
	return g.observers.Subscribe(fn)
}

// Unsubscribe removes a subscription made with Subscribe.
func (g *TransportGraph) Unsubscribe(token network.Token) bool {
	return g.observers.Unsubscribe(token)
}

// Apply processes one cell event. Events of other networks are ignored.
func (g *TransportGraph) Apply(e network.CellEvent) {
	if e.Network != g.network {
		return
	}
	switch e.Kind {
	case network.CellAdded:
		g.cellAdded(e.Cell)
	case network.CellRemoved:
		g.cellRemoved(e.Cell)
	case network.CellUpdated:
		g.cellUpdated(e.Cell)
	default:
		return
	}
	g.observers.Notify(e)
}

// cellAdded replaces whatever the view held for the cell with its current contents.
func (g *TransportGraph) cellAdded(cell network.CellKey) {
	g.cellRemoved(cell)
	for _, id := range g.reader.NodeIDsInCell(g.network, cell) {
		if n, ok := g.reader.Node(id); ok {
			g.nodes[id] = n
		} else {
			g.logger.Warn("listed node not found, skipping", zap.Stringer("node", id))
		}
	}
	for _, id := range g.reader.WayIDsInCell(g.network, cell) {
		if w, ok := g.reader.Way(id); ok {
			g.ways[id] = w
		} else {
			g.logger.Warn("listed way not found, skipping", zap.Stringer("way", id))
		}
	}
	g.refreshEdges(cell)
}

func (g *TransportGraph) cellRemoved(cell network.CellKey) {
	for id := range g.nodes {
		if id.Cell == cell {
			delete(g.nodes, id)
		}
	}
	for id := range g.edges {
		if id.Cell == cell {
			delete(g.edges, id)
		}
	}
	for id := range g.ways {
		if id.Cell == cell {
			delete(g.ways, id)
		}
	}
}

// cellUpdated re-reads directed edges only; node and way sets do not change on update.
func (g *TransportGraph) cellUpdated(cell network.CellKey) {
	g.refreshEdges(cell)
}

func (g *TransportGraph) refreshEdges(cell network.CellKey) {
	listed := g.reader.DirectedEdgeIDsInCell(g.network, cell)
	keep := make(map[network.DirectedEdgeID]struct{}, len(listed))
	for _, id := range listed {
		e, ok := g.reader.DirectedEdge(id)
		if !ok {
			g.logger.Warn("listed edge not found, skipping", zap.Stringer("edge", id))
			continue
		}
		g.edges[id] = e
		keep[id] = struct{}{}
	}
	for id := range g.edges {
		if _, ok := keep[id]; !ok && id.Cell == cell {
			delete(g.edges, id)
		}
	}
}

func (g *TransportGraph) Node(id network.NodeID) (network.Node, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return network.EmptyNode, false
	}
	return n, true
}

func (g *TransportGraph) DirectedEdge(id network.DirectedEdgeID) (network.DirectedEdge, bool) {
	e, ok := g.edges[id]
	if !ok {
		return network.EmptyDirectedEdge, false
	}
	return e, true
}

func (g *TransportGraph) Way(id network.WayID) (network.Way, bool) {
	w, ok := g.ways[id]
	if !ok {
		return network.EmptyWay, false
	}
	return w, true
}

// NodeIDs returns the ids of every node in the view, sorted.
func (g *TransportGraph) NodeIDs() []network.NodeID {
	ids := make([]network.NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// DirectedEdgeIDs returns the ids of every directed edge in the view, sorted.
func (g *TransportGraph) DirectedEdgeIDs() []network.DirectedEdgeID {
	ids := make([]network.DirectedEdgeID, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// WayIDs returns the ids of every way in the view, sorted.
func (g *TransportGraph) WayIDs() []network.WayID {
	ids := make([]network.WayID, 0, len(g.ways))
	for id := range g.ways {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Len returns the number of nodes, directed edges and ways in the view.
func (g *TransportGraph) Len() (nodes, edges, ways int) {
	return len(g.nodes), len(g.edges), len(g.ways)
}
