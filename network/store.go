package network

import (
	"sort"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"kuanb/gosm-transport/geom"
)

type cellRef struct {
	network NetworkType
	cell    CellKey
}

// cellEntry holds the ids of everything one resident cell contributed
type cellEntry struct {
	nodes []NodeID
	edges []DirectedEdgeID
	ways  []WayID
}

// Store is the authoritative collection of resident entities, kept in step with the streaming engine.
// It is mutated only by the CellListener methods; reads must not overlap with an event being applied.
type Store struct {
	source TileSource
	logger *zap.Logger

	cells    map[cellRef]*cellEntry
	nodes    map[NodeID]Node
	edges    map[DirectedEdgeID]DirectedEdge
	ways     map[WayID]Way
	wayEdges map[WayID][]DirectedEdgeID

	wayIndex  map[NetworkType]*geom.RTree[WayID]
	wayBounds map[WayID]orb.Bound

	observers Observers[CellEvent]
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the logger used for soft failures and lifecycle tracing.
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore creates an empty store that pulls cell payloads from source.
func NewStore(source TileSource, opts ...StoreOption) *Store {
	s := &Store{
		source:    source,
		logger:    zap.NewNop(),
		cells:     make(map[cellRef]*cellEntry),
		nodes:     make(map[NodeID]Node),
		edges:     make(map[DirectedEdgeID]DirectedEdge),
		ways:      make(map[WayID]Way),
		wayEdges:  make(map[WayID][]DirectedEdgeID),
		wayIndex:  make(map[NetworkType]*geom.RTree[WayID]),
		wayBounds: make(map[WayID]orb.Bound),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for cell events; fn runs after the store has applied the event.
func (s *Store) Subscribe(fn func(CellEvent)) Token {
	return s.observers.Subscribe(fn)
}

// Unsubscribe removes a subscription made with Subscribe.
func (s *Store) Unsubscribe(token Token) bool {
	return s.observers.Unsubscribe(token)
}

// OnCellAdded loads the cell payload. Adding a resident cell again replaces its contents.
func (s *Store) OnCellAdded(network NetworkType, cell CellKey) {
	tile, ok := s.source.Tile(network, cell)
	if !ok {
		s.logger.Warn("cell added but no payload available",
			zap.Stringer("network", network), zap.Stringer("cell", cell))
		return
	}
	ref := cellRef{network: network, cell: cell}
	if _, resident := s.cells[ref]; resident {
		s.dropCell(ref)
	}
	s.loadCell(ref, tile)
	s.logger.Debug("cell added",
		zap.Stringer("network", network), zap.Stringer("cell", cell),
		zap.Int("nodes", len(s.cells[ref].nodes)),
		zap.Int("edges", len(s.cells[ref].edges)),
		zap.Int("ways", len(s.cells[ref].ways)))
	s.observers.Notify(CellEvent{Kind: CellAdded, Network: network, Cell: cell})
}

// OnCellRemoved drops everything the cell contributed.
func (s *Store) OnCellRemoved(network NetworkType, cell CellKey) {
	ref := cellRef{network: network, cell: cell}
	if _, resident := s.cells[ref]; !resident {
		s.logger.Debug("removal of non-resident cell ignored",
			zap.Stringer("network", network), zap.Stringer("cell", cell))
		return
	}
	s.dropCell(ref)
	s.logger.Debug("cell removed", zap.Stringer("network", network), zap.Stringer("cell", cell))
	s.observers.Notify(CellEvent{Kind: CellRemoved, Network: network, Cell: cell})
}

// OnCellUpdated reloads the directed edges of a resident cell. Nodes and ways are left untouched.
//
// A link edge that was resolved keeps its far node when the update reports it unresolved while the far
// cell is still resident.
func (s *Store) OnCellUpdated(network NetworkType, cell CellKey) {
	ref := cellRef{network: network, cell: cell}
	entry, resident := s.cells[ref]
	if !resident {
		s.logger.Warn("update of non-resident cell ignored",
			zap.Stringer("network", network), zap.Stringer("cell", cell))
		return
	}
	tile, ok := s.source.Tile(network, cell)
	if !ok {
		s.logger.Warn("cell updated but no payload available",
			zap.Stringer("network", network), zap.Stringer("cell", cell))
		return
	}

	previous := make(map[DirectedEdgeID]DirectedEdge, len(entry.edges))
	for _, id := range entry.edges {
		previous[id] = s.edges[id]
		delete(s.edges, id)
	}
	for _, id := range entry.ways {
		delete(s.wayEdges, id)
	}
	entry.edges = entry.edges[:0]

	for _, e := range tile.DirectedEdges {
		if !s.acceptEdge(ref, e) {
			continue
		}
		if old, had := previous[e.ID]; had && old.IsResolved() && !e.IsResolved() {
			if _, farResident := s.cells[cellRef{network: network, cell: old.NodeIDB.Cell}]; farResident {
				s.logger.Warn("update would unresolve link edge into resident cell, keeping resolution",
					zap.Stringer("edge", e.ID), zap.Stringer("node", old.NodeIDB))
				e.NodeIDB = old.NodeIDB
			}
		}
		s.insertEdge(entry, e)
	}
	s.logger.Debug("cell updated",
		zap.Stringer("network", network), zap.Stringer("cell", cell), zap.Int("edges", len(entry.edges)))
	s.observers.Notify(CellEvent{Kind: CellUpdated, Network: network, Cell: cell})
}

func (s *Store) loadCell(ref cellRef, tile *Tile) {
	entry := &cellEntry{}
	s.cells[ref] = entry

	for _, w := range tile.Ways {
		if !s.owns(ref, w.ID.Network, w.ID.Cell, w.ID.IsEmpty()) {
			s.logger.Warn("way outside its cell skipped", zap.Stringer("cell", ref.cell), zap.Stringer("way", w.ID))
			continue
		}
		if err := w.Validate(); err != nil {
			s.logger.Warn("invalid way skipped", zap.Error(err))
			continue
		}
		if _, dup := s.ways[w.ID]; dup {
			continue
		}
		s.ways[w.ID] = w
		entry.ways = append(entry.ways, w.ID)

		b := geom.BoundOfPoints(w.CenterLinePoints)
		s.wayBounds[w.ID] = b
		s.spatialIndex(ref.network).Insert(w.ID, b)
	}
	for _, n := range tile.Nodes {
		if !s.owns(ref, n.ID.Network, n.ID.Cell, n.ID.IsEmpty()) {
			s.logger.Warn("node outside its cell skipped", zap.Stringer("cell", ref.cell), zap.Stringer("node", n.ID))
			continue
		}
		if _, dup := s.nodes[n.ID]; dup {
			continue
		}
		s.nodes[n.ID] = n
		entry.nodes = append(entry.nodes, n.ID)
	}
	for _, e := range tile.DirectedEdges {
		if s.acceptEdge(ref, e) {
			s.insertEdge(entry, e)
		}
	}
}

func (s *Store) owns(ref cellRef, network NetworkType, cell CellKey, empty bool) bool {
	return !empty && network == ref.network && cell == ref.cell
}

func (s *Store) acceptEdge(ref cellRef, e DirectedEdge) bool {
	if !s.owns(ref, e.ID.Network, e.ID.Cell, e.ID.IsEmpty()) {
		s.logger.Warn("edge outside its cell skipped", zap.Stringer("cell", ref.cell), zap.Stringer("edge", e.ID))
		return false
	}
	if e.NodeIDA.IsEmpty() {
		s.logger.Warn("edge without start node skipped", zap.Stringer("edge", e.ID))
		return false
	}
	if _, dup := s.edges[e.ID]; dup {
		return false
	}
	return true
}

func (s *Store) insertEdge(entry *cellEntry, e DirectedEdge) {
	s.edges[e.ID] = e
	entry.edges = append(entry.edges, e.ID)
	if !e.IsLink() {
		s.wayEdges[e.WayID] = append(s.wayEdges[e.WayID], e.ID)
	}
}

func (s *Store) dropCell(ref cellRef) {
	entry := s.cells[ref]
	for _, id := range entry.nodes {
		delete(s.nodes, id)
	}
	for _, id := range entry.edges {
		delete(s.edges, id)
	}
	for _, id := range entry.ways {
		delete(s.ways, id)
		delete(s.wayEdges, id)
		if b, ok := s.wayBounds[id]; ok {
			s.spatialIndex(ref.network).Delete(id, b)
			delete(s.wayBounds, id)
		}
	}
	delete(s.cells, ref)
}

func (s *Store) spatialIndex(network NetworkType) *geom.RTree[WayID] {
	idx, ok := s.wayIndex[network]
	if !ok {
		idx = geom.NewRTree[WayID]()
		s.wayIndex[network] = idx
	}
	return idx
}

// IsResident reports whether the cell of the network is currently loaded.
func (s *Store) IsResident(network NetworkType, cell CellKey) bool {
	_, ok := s.cells[cellRef{network: network, cell: cell}]
	return ok
}

// ResidentCells returns the loaded cells of a network in key order.
func (s *Store) ResidentCells(network NetworkType) []CellKey {
	cells := make([]CellKey, 0)
	for ref := range s.cells {
		if ref.network == network {
			cells = append(cells, ref.cell)
		}
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	return cells
}

func (s *Store) NodeIDsInCell(network NetworkType, cell CellKey) []NodeID {
	entry, ok := s.cells[cellRef{network: network, cell: cell}]
	if !ok {
		return nil
	}
	return append([]NodeID(nil), entry.nodes...)
}

func (s *Store) DirectedEdgeIDsInCell(network NetworkType, cell CellKey) []DirectedEdgeID {
	entry, ok := s.cells[cellRef{network: network, cell: cell}]
	if !ok {
		return nil
	}
	return append([]DirectedEdgeID(nil), entry.edges...)
}

func (s *Store) WayIDsInCell(network NetworkType, cell CellKey) []WayID {
	entry, ok := s.cells[cellRef{network: network, cell: cell}]
	if !ok {
		return nil
	}
	return append([]WayID(nil), entry.ways...)
}

// NodeIDs returns every resident node id of the network, sorted.
func (s *Store) NodeIDs(network NetworkType) []NodeID {
	ids := make([]NodeID, 0)
	for ref, entry := range s.cells {
		if ref.network == network {
			ids = append(ids, entry.nodes...)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// DirectedEdgeIDs returns every resident directed edge id of the network, sorted.
func (s *Store) DirectedEdgeIDs(network NetworkType) []DirectedEdgeID {
	ids := make([]DirectedEdgeID, 0)
	for ref, entry := range s.cells {
		if ref.network == network {
			ids = append(ids, entry.edges...)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// WayIDs returns every resident way id of the network, sorted.
func (s *Store) WayIDs(network NetworkType) []WayID {
	ids := make([]WayID, 0)
	for ref, entry := range s.cells {
		if ref.network == network {
			ids = append(ids, entry.ways...)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

func (s *Store) Node(id NodeID) (Node, bool) {
	n, ok := s.nodes[id]
	if !ok {
		return EmptyNode, false
	}
	return n, true
}

func (s *Store) DirectedEdge(id DirectedEdgeID) (DirectedEdge, bool) {
	e, ok := s.edges[id]
	if !ok {
		return EmptyDirectedEdge, false
	}
	return e, true
}

func (s *Store) Way(id WayID) (Way, bool) {
	w, ok := s.ways[id]
	if !ok {
		return EmptyWay, false
	}
	return w, true
}

// DirectedEdgesOfWay returns the resident directed edges traversing the way, sorted by id.
func (s *Store) DirectedEdgesOfWay(id WayID) []DirectedEdgeID {
	ids := append([]DirectedEdgeID(nil), s.wayEdges[id]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// WaysNear returns the ways of the network whose bounding box comes within radiusMeters of the point.
// The result is a superset of the ways actually within the radius.
func (s *Store) WaysNear(network NetworkType, lat, lon, radiusMeters float64) []WayID {
	idx, ok := s.wayIndex[network]
	if !ok {
		return nil
	}
	ids := idx.SearchNearPoint(lon, lat, radiusMeters)
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Counts returns the number of resident nodes, directed edges and ways of the network.
func (s *Store) Counts(network NetworkType) (nodes, edges, ways int) {
	for ref, entry := range s.cells {
		if ref.network == network {
			nodes += len(entry.nodes)
			edges += len(entry.edges)
			ways += len(entry.ways)
		}
	}
	return nodes, edges, ways
}
