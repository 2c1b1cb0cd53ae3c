package network

// Tile is the payload of one cell of one network, as delivered by the streaming engine.
type Tile struct {
	Cell          CellKey
	Network       NetworkType
	Nodes         []Node
	DirectedEdges []DirectedEdge
	Ways          []Way
}

// TileSource is the pull side of the streaming engine: the payload of a resident cell.
type TileSource interface {
	// Tile returns false when the cell is not resident.
	Tile(network NetworkType, cell CellKey) (*Tile, bool)
}

// CellListener is the push side of the streaming engine.
type CellListener interface {
	OnCellAdded(network NetworkType, cell CellKey)
	OnCellRemoved(network NetworkType, cell CellKey)
	// OnCellUpdated signals that the directed edges of a resident cell changed, e.g. a link edge was resolved.
	OnCellUpdated(network NetworkType, cell CellKey)
}

// Reader is the read-only query surface over resident entities.
// Lookups of unknown or no longer resident ids return false, never an error.
type Reader interface {
	NodeIDsInCell(network NetworkType, cell CellKey) []NodeID
	DirectedEdgeIDsInCell(network NetworkType, cell CellKey) []DirectedEdgeID
	WayIDsInCell(network NetworkType, cell CellKey) []WayID

	NodeIDs(network NetworkType) []NodeID
	DirectedEdgeIDs(network NetworkType) []DirectedEdgeID
	WayIDs(network NetworkType) []WayID

	Node(id NodeID) (Node, bool)
	DirectedEdge(id DirectedEdgeID) (DirectedEdge, bool)
	Way(id WayID) (Way, bool)
}

// EventSource publishes cell lifecycle events after they have been applied.
type EventSource interface {
	Subscribe(fn func(CellEvent)) Token
	Unsubscribe(token Token) bool
}
