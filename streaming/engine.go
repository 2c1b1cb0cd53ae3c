package streaming

import (
	"maps"
	"sort"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"kuanb/gosm-transport/network"
)

// Engine decides which cells are resident and tells a listener about every change.
// It serves the payloads of resident cells, with link edges resolved only towards resident cells.
//
// Events are delivered synchronously, removals first, then additions, then updates of cells whose link
// resolution changed. Engine is not safe for concurrent use.
type Engine struct {
	tiles    *TileSet
	logger   *zap.Logger
	listener network.CellListener

	resident map[cellRef]struct{}
	// link resolution each resident cell was last served with
	served map[cellRef]map[network.DirectedEdgeID]network.NodeID
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithEngineLogger sets the logger for residency changes.
func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine over tiles with no resident cells.
func NewEngine(tiles *TileSet, opts ...EngineOption) *Engine {
	e := &Engine{
		tiles:    tiles,
		logger:   zap.NewNop(),
		resident: make(map[cellRef]struct{}),
		served:   make(map[cellRef]map[network.DirectedEdgeID]network.NodeID),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetListener sets the receiver of cell events. Cells already resident are not replayed.
func (e *Engine) SetListener(l network.CellListener) {
	e.listener = l
}

// Tiles returns the tile set the engine streams from.
func (e *Engine) Tiles() *TileSet {
	return e.tiles
}

// Tile serves the payload of a resident cell.
func (e *Engine) Tile(net network.NetworkType, cell network.CellKey) (*network.Tile, bool) {
	if _, ok := e.resident[cellRef{network: net, cell: cell}]; !ok {
		return nil, false
	}
	return e.tiles.Tile(net, cell, e.isResident(net))
}

func (e *Engine) isResident(net network.NetworkType) func(network.CellKey) bool {
	return func(cell network.CellKey) bool {
		_, ok := e.resident[cellRef{network: net, cell: cell}]
		return ok
	}
}

// ResidentCells returns the resident cells of the network in key order.
func (e *Engine) ResidentCells(net network.NetworkType) []network.CellKey {
	cells := make([]network.CellKey, 0, len(e.resident))
	for ref := range e.resident {
		if ref.network == net {
			cells = append(cells, ref.cell)
		}
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })
	return cells
}

// SetFocus makes resident, on every network, the cells with data within radius cells of the one containing the point.
func (e *Engine) SetFocus(lat, lon float64, radius int) {
	center := network.CellAt(orb.Point{lon, lat}, e.tiles.Zoom())
	around := center.Neighbors(radius)
	want := make(map[cellRef]struct{})
	for _, net := range e.tiles.Networks() {
		for _, cell := range around {
			if e.tiles.Has(net, cell) {
				want[cellRef{network: net, cell: cell}] = struct{}{}
			}
		}
	}
	e.logger.Debug("focus moved",
		zap.Float64("lat", lat), zap.Float64("lon", lon),
		zap.Stringer("cell", center), zap.Int("radius", radius))
	e.apply(want)
}

// SetResident replaces the resident cells of one network. Cells without data are ignored.
func (e *Engine) SetResident(net network.NetworkType, cells []network.CellKey) {
	want := make(map[cellRef]struct{})
	for ref := range e.resident {
		if ref.network != net {
			want[ref] = struct{}{}
		}
	}
	for _, cell := range cells {
		if e.tiles.Has(net, cell) {
			want[cellRef{network: net, cell: cell}] = struct{}{}
		}
	}
	e.apply(want)
}

// Clear removes every resident cell.
func (e *Engine) Clear() {
	e.apply(map[cellRef]struct{}{})
}

func (e *Engine) apply(want map[cellRef]struct{}) {
	var removed, added, kept []cellRef
	for ref := range e.resident {
		if _, ok := want[ref]; ok {
			kept = append(kept, ref)
		} else {
			removed = append(removed, ref)
		}
	}
	for ref := range want {
		if _, ok := e.resident[ref]; !ok {
			added = append(added, ref)
		}
	}
	sortRefs(removed)
	sortRefs(added)
	sortRefs(kept)

	for _, ref := range removed {
		delete(e.resident, ref)
		delete(e.served, ref)
		if e.listener != nil {
			e.listener.OnCellRemoved(ref.network, ref.cell)
		}
	}
	for _, ref := range added {
		e.resident[ref] = struct{}{}
	}
	for _, ref := range added {
		e.served[ref] = e.tiles.resolvedLinks(ref.network, ref.cell, e.isResident(ref.network))
		if e.listener != nil {
			e.listener.OnCellAdded(ref.network, ref.cell)
		}
	}
	var updated int
	for _, ref := range kept {
		links := e.tiles.resolvedLinks(ref.network, ref.cell, e.isResident(ref.network))
		if maps.Equal(links, e.served[ref]) {
			continue
		}
		e.served[ref] = links
		updated++
		if e.listener != nil {
			e.listener.OnCellUpdated(ref.network, ref.cell)
		}
	}
	if len(removed)+len(added)+updated > 0 {
		e.logger.Info("resident cells changed",
			zap.Int("removed", len(removed)), zap.Int("added", len(added)),
			zap.Int("updated", updated), zap.Int("resident", len(e.resident)))
	}
}

func sortRefs(refs []cellRef) {
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].network != refs[j].network {
			return refs[i].network < refs[j].network
		}
		return refs[i].cell < refs[j].cell
	})
}
