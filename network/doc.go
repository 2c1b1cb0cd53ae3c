// Package network holds the tiled transport graph data model and its authoritative store.
//
// The graph is partitioned into cells (map tiles). Every node, directed edge and way belongs to exactly one
// cell and one network type, and is identified by its cell, network and a cell-local index. The Store mirrors
// the cells an external streaming engine reports as resident: the engine pushes cell lifecycle events through
// CellListener and the Store pulls the cell payloads back through TileSource.
package network
