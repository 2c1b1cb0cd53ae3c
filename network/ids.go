package network

import "fmt"

// NodeID identifies a node. LocalIndex is only unique within its cell and network.
type NodeID struct {
	Cell       CellKey
	Network    NetworkType
	LocalIndex int32
}

// DirectedEdgeID identifies a directed edge. LocalIndex is only unique within its cell and network.
type DirectedEdgeID struct {
	Cell       CellKey
	Network    NetworkType
	LocalIndex int32
}

// WayID identifies a way. LocalIndex is only unique within its cell and network.
type WayID struct {
	Cell       CellKey
	Network    NetworkType
	LocalIndex int32
}

// Sentinels meaning "no reference". Any id without a valid network, the zero id included, is empty.
var (
	EmptyNodeID         = NodeID{LocalIndex: -1}
	EmptyDirectedEdgeID = DirectedEdgeID{LocalIndex: -1}
	EmptyWayID          = WayID{LocalIndex: -1}
)

func (id NodeID) IsEmpty() bool         { return isEmpty(id.Network, id.LocalIndex) }
func (id DirectedEdgeID) IsEmpty() bool { return isEmpty(id.Network, id.LocalIndex) }
func (id WayID) IsEmpty() bool          { return isEmpty(id.Network, id.LocalIndex) }

func isEmpty(network NetworkType, local int32) bool {
	return local < 0 || !network.Valid()
}

func (id NodeID) String() string         { return formatID("node", id.Cell, id.Network, id.LocalIndex) }
func (id DirectedEdgeID) String() string { return formatID("edge", id.Cell, id.Network, id.LocalIndex) }
func (id WayID) String() string          { return formatID("way", id.Cell, id.Network, id.LocalIndex) }

func formatID(kind string, cell CellKey, network NetworkType, local int32) string {
	if isEmpty(network, local) {
		return kind + ":empty"
	}
	return fmt.Sprintf("%s:%s:%s:%d", kind, network, cell, local)
}

// Less orders ids by cell, network, then local index.
func (id NodeID) Less(o NodeID) bool {
	return lessKey(id.Cell, id.Network, id.LocalIndex, o.Cell, o.Network, o.LocalIndex)
}

// Less orders ids by cell, network, then local index.
func (id DirectedEdgeID) Less(o DirectedEdgeID) bool {
	return lessKey(id.Cell, id.Network, id.LocalIndex, o.Cell, o.Network, o.LocalIndex)
}

// Less orders ids by cell, network, then local index.
func (id WayID) Less(o WayID) bool {
	return lessKey(id.Cell, id.Network, id.LocalIndex, o.Cell, o.Network, o.LocalIndex)
}

func lessKey(c1 CellKey, n1 NetworkType, l1 int32, c2 CellKey, n2 NetworkType, l2 int32) bool {
	if c1 != c2 {
		return c1 < c2
	}
	if n1 != n2 {
		return n1 < n2
	}
	return l1 < l2
}
