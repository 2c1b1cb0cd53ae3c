package streaming

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
)

// bisection steps when locating a cell boundary along a segment, well below a millimetre at street scale
const boundarySteps = 48

// SourceWay is a way of the source data between two junctions, before it is cut into cells.
type SourceWay struct {
	ID      int64
	Network network.NetworkType
	// Source ids of the junctions at either end; ways sharing a junction id are connected there
	From, To int64
	// Lon/lat centerline from From to To
	Line                     orb.LineString
	Direction                network.WayDirection
	Classification           string
	HalfWidthMeters          float64
	AverageSpeedKph          float64
	ApproximateSpeedLimitKph float64
}

// Tiler cuts source ways at cell boundaries into per-cell tiles.
type Tiler struct {
	zoom   maptile.Zoom
	logger *zap.Logger
}

// TilerOption configures a Tiler
type TilerOption func(*Tiler)

// WithTilerLogger sets the logger for skipped source ways.
func WithTilerLogger(logger *zap.Logger) TilerOption {
	return func(t *Tiler) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTiler creates a tiler producing cells at zoom z.
func NewTiler(z maptile.Zoom, opts ...TilerOption) (*Tiler, error) {
	if z > network.MaxZoom {
		return nil, errors.Wrapf(network.ErrInvalidCellKey, "zoom %d above %d", z, network.MaxZoom)
	}
	t := &Tiler{zoom: z, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Zoom returns the tile level of the cells the tiler produces.
func (t *Tiler) Zoom() maptile.Zoom {
	return t.zoom
}

type junctionKey struct {
	network network.NetworkType
	id      int64
}

// piece is the part of a source way inside one cell
type piece struct {
	cell   network.CellKey
	line   orb.LineString
	from   network.NodeID
	to     network.NodeID
	entry  bool // from is a border node
	exit   bool // to is a border node
	source *SourceWay
}

// Tile cuts the ways into cells. Every cut leaves a border node on either side, joined by a pair of link edges
// that start out unresolved. Ways are processed in id order so the result does not depend on input order.
func (t *Tiler) Tile(ways []SourceWay) *TileSet {
	sorted := append([]SourceWay(nil), ways...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Network != sorted[j].Network {
			return sorted[i].Network < sorted[j].Network
		}
		return sorted[i].ID < sorted[j].ID
	})

	set := newTileSet(t.zoom)
	junctions := make(map[junctionKey]network.NodeID)
	junction := func(net network.NetworkType, id int64, at orb.Point) network.NodeID {
		k := junctionKey{network: net, id: id}
		cell := network.CellAt(at, t.zoom)
		if n, ok := junctions[k]; ok {
			if n.Cell == cell {
				return n
			}
			t.logger.Debug("junction shared across cells, ways not connected", zap.Int64("junction", id))
			return set.builder(net, cell).node(at)
		}
		n := set.builder(net, cell).node(at)
		junctions[k] = n
		return n
	}

	var skipped int
	for i := range sorted {
		w := &sorted[i]
		if len(w.Line) < 2 || !w.Network.Valid() {
			skipped++
			t.logger.Debug("source way skipped", zap.Int64("way", w.ID), zap.Int("points", len(w.Line)))
			continue
		}
		pieces := t.cut(w)

		from := junction(w.Network, w.From, w.Line[0])
		pieces[0].from = from
		for j := range pieces {
			p := &pieces[j]
			b := set.builder(w.Network, p.cell)
			if p.entry {
				p.from = b.node(p.line[0])
			}
			if p.exit {
				p.to = b.node(p.line[len(p.line)-1])
			} else {
				p.to = junction(w.Network, w.To, w.Line[len(w.Line)-1])
			}
			b.way(p)
			if j > 0 {
				set.link(pieces[j-1].to, p.from)
			}
		}
	}
	if skipped > 0 {
		t.logger.Warn("source ways skipped", zap.Int("count", skipped))
	}
	t.logger.Info("tiled source ways",
		zap.Int("ways", len(sorted)-skipped), zap.Int("cells", len(set.tiles)), zap.Uint32("zoom", uint32(t.zoom)))
	return set
}

// cut splits the line of w wherever it leaves a cell
func (t *Tiler) cut(w *SourceWay) []piece {
	pieces := make([]piece, 0, 1)
	cur := piece{cell: network.CellAt(w.Line[0], t.zoom), line: orb.LineString{w.Line[0]}, source: w}
	for i := 1; i < len(w.Line); i++ {
		a, b := w.Line[i-1], w.Line[i]
		// a rectangle is left at most once per segment, so each step moves to a new cell
		for steps := 0; network.CellAt(b, t.zoom) != cur.cell && steps < 4*(1<<t.zoom); steps++ {
			in, out := t.boundary(a, b, cur.cell)
			cur.line = append(cur.line, in)
			cur.exit = true
			pieces = append(pieces, cur)
			cur = piece{cell: network.CellAt(out, t.zoom), line: orb.LineString{out}, entry: true, source: w}
			a = out
		}
		cur.line = append(cur.line, b)
	}
	return append(pieces, cur)
}

// boundary returns the last point of segment a-b inside cell and the first point past it
func (t *Tiler) boundary(a, b orb.Point, cell network.CellKey) (orb.Point, orb.Point) {
	lo, hi := 0.0, 1.0
	for i := 0; i < boundarySteps; i++ {
		mid := (lo + hi) / 2
		if network.CellAt(lerp(a, b, mid), t.zoom) == cell {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lerp(a, b, lo), lerp(a, b, hi)
}

func lerp(a, b orb.Point, f float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*f, a[1] + (b[1]-a[1])*f}
}

// tileBuilder accumulates the entities of one cell
type tileBuilder struct {
	tile network.Tile
}

func (b *tileBuilder) node(at orb.Point) network.NodeID {
	id := network.NodeID{Cell: b.tile.Cell, Network: b.tile.Network, LocalIndex: int32(len(b.tile.Nodes))}
	b.tile.Nodes = append(b.tile.Nodes, network.Node{ID: id, Position: geom.FromLatLon(at.Lat(), at.Lon())})
	return id
}

func (b *tileBuilder) way(p *piece) network.WayID {
	points := make([]geom.Vector, len(p.line))
	for i, pt := range p.line {
		points[i] = geom.FromLatLon(pt.Lat(), pt.Lon())
	}
	src := p.source
	id := network.WayID{Cell: b.tile.Cell, Network: b.tile.Network, LocalIndex: int32(len(b.tile.Ways))}
	b.tile.Ways = append(b.tile.Ways, network.Way{
		ID:                       id,
		CenterLinePoints:         points,
		CenterLineSplineParams:   geom.CumulativeParams(points),
		LengthMeters:             geom.PolylineLength(points),
		HalfWidthMeters:          src.HalfWidthMeters,
		WayDirection:             src.Direction,
		Classification:           src.Classification,
		AverageSpeedKph:          src.AverageSpeedKph,
		ApproximateSpeedLimitKph: src.ApproximateSpeedLimitKph,
	})
	switch src.Direction {
	case network.Bidirectional:
		b.edge(p.from, p.to, id, false)
		b.edge(p.to, p.from, id, true)
	case network.OneWay:
		b.edge(p.from, p.to, id, false)
	}
	return id
}

func (b *tileBuilder) edge(from, to network.NodeID, way network.WayID, reversed bool) network.DirectedEdgeID {
	id := network.DirectedEdgeID{Cell: b.tile.Cell, Network: b.tile.Network, LocalIndex: int32(len(b.tile.DirectedEdges))}
	b.tile.DirectedEdges = append(b.tile.DirectedEdges, network.DirectedEdge{
		ID:            id,
		NodeIDA:       from,
		NodeIDB:       to,
		WayID:         way,
		IsWayReversed: reversed,
	})
	n := &b.tile.Nodes[from.LocalIndex]
	n.IncidentDirectedEdges = append(n.IncidentDirectedEdges, id)
	return id
}
