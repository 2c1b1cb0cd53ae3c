package routing

import (
	"container/heap"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
)

// ErrInvalidOptions is returned for option values no query could accept.
var ErrInvalidOptions = errors.New("invalid options")

// PathfindOptions describes a shortest path query between two points on the graph.
// Parameters are positions along their directed edge, 0 at its start node and 1 at its end node.
type PathfindOptions struct {
	StartDirectedEdgeID network.DirectedEdgeID
	StartParameter      float64
	GoalDirectedEdgeID  network.DirectedEdgeID
	GoalParameter       float64
	// Allow leaving the start point against the direction of the start edge
	AllowUTurnAtStart bool
	// Allow arriving at the goal point against the direction of the goal edge
	AllowUTurnAtGoal bool
}

// Validate rejects options that are malformed regardless of the graph contents.
func (o PathfindOptions) Validate() error {
	if o.StartDirectedEdgeID.IsEmpty() {
		return errors.Wrap(ErrInvalidOptions, "start edge not set")
	}
	if o.GoalDirectedEdgeID.IsEmpty() {
		return errors.Wrap(ErrInvalidOptions, "goal edge not set")
	}
	if o.StartDirectedEdgeID.Network != o.GoalDirectedEdgeID.Network {
		return errors.Wrapf(ErrInvalidOptions, "start on %s network, goal on %s network",
			o.StartDirectedEdgeID.Network, o.GoalDirectedEdgeID.Network)
	}
	if !unitParameter(o.StartParameter) {
		return errors.Wrapf(ErrInvalidOptions, "start parameter %f outside [0, 1]", o.StartParameter)
	}
	if !unitParameter(o.GoalParameter) {
		return errors.Wrapf(ErrInvalidOptions, "goal parameter %f outside [0, 1]", o.GoalParameter)
	}
	return nil
}

func unitParameter(p float64) bool {
	return !math.IsNaN(p) && p >= 0 && p <= 1
}

// Pathfinder runs shortest path queries over the resident graph.
type Pathfinder struct {
	graph  Graph
	logger *zap.Logger
}

// NewPathfinder creates a pathfinder reading from g. A nil logger disables logging.
func NewPathfinder(g Graph, logger *zap.Logger) *Pathfinder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pathfinder{graph: g, logger: logger}
}

type endpoint struct {
	edge   network.DirectedEdge
	param  float64
	length float64
}

// FindShortestPath searches the currently resident directed edges with Dijkstra's algorithm.
// An unreachable goal, or a start or goal edge that is not resident, yields a result with IsPathFound false.
// Only malformed options produce an error.
func (p *Pathfinder) FindShortestPath(opts PathfindOptions) (PathfindResult, error) {
	if err := opts.Validate(); err != nil {
		return PathfindResult{}, err
	}
	seeds, ok := p.endpoints(opts.StartDirectedEdgeID, opts.StartParameter, opts.AllowUTurnAtStart)
	if !ok {
		p.logger.Debug("start edge not resident", zap.Stringer("edge", opts.StartDirectedEdgeID))
		return PathfindResult{}, nil
	}
	targets, ok := p.endpoints(opts.GoalDirectedEdgeID, opts.GoalParameter, opts.AllowUTurnAtGoal)
	if !ok {
		p.logger.Debug("goal edge not resident", zap.Stringer("edge", opts.GoalDirectedEdgeID))
		return PathfindResult{}, nil
	}

	dist := make(map[network.DirectedEdgeID]float64)
	prev := make(map[network.DirectedEdgeID]network.DirectedEdgeID)
	seedOf := make(map[network.DirectedEdgeID]int)
	settled := make(map[network.DirectedEdgeID]bool)

	pq := &priorityQueue{}
	heap.Init(pq)
	seq := 0
	push := func(item *pqItem) {
		item.seq = seq
		seq++
		heap.Push(pq, item)
	}

	for si, s := range seeds {
		cost := (1 - s.param) * s.length
		if old, ok := dist[s.edge.ID]; !ok || cost < old {
			dist[s.edge.ID] = cost
			seedOf[s.edge.ID] = si
			push(&pqItem{edge: s.edge.ID, cost: cost, target: -1, seed: si, via: network.EmptyDirectedEdgeID})
		}
		// start and goal on the same edge, goal ahead of start
		for ti, t := range targets {
			if t.edge.ID == s.edge.ID && t.param >= s.param {
				push(&pqItem{edge: t.edge.ID, cost: (t.param - s.param) * s.length, target: ti, seed: si, via: network.EmptyDirectedEdgeID})
			}
		}
	}

	for pq.Len() > 0 {
		item := heap.Pop(pq).(*pqItem)
		if item.target >= 0 {
			return p.buildResult(item, seeds, targets, prev, seedOf), nil
		}
		if settled[item.edge] || item.cost > dist[item.edge] {
			continue
		}
		settled[item.edge] = true

		e, ok := p.graph.DirectedEdge(item.edge)
		if !ok || !e.IsResolved() {
			// unresolved link edges and edges leaving the resident graph are dead ends
			continue
		}
		node, ok := p.graph.Node(e.NodeIDB)
		if !ok {
			continue
		}
		for _, nextID := range node.IncidentDirectedEdges {
			next, ok := p.graph.DirectedEdge(nextID)
			if !ok || next.NodeIDA != node.ID {
				continue
			}
			length, ok := traversable(p.graph, next)
			if !ok {
				continue
			}
			for ti, t := range targets {
				if t.edge.ID == next.ID {
					push(&pqItem{edge: next.ID, cost: item.cost + t.param*length, target: ti, via: item.edge, seed: -1})
				}
			}
			nd := item.cost + length
			if old, seen := dist[next.ID]; !seen || nd < old {
				dist[next.ID] = nd
				prev[next.ID] = item.edge
				push(&pqItem{edge: next.ID, cost: nd, target: -1, seed: -1, via: network.EmptyDirectedEdgeID})
			}
		}
	}
	p.logger.Debug("no path found",
		zap.Stringer("start", opts.StartDirectedEdgeID), zap.Stringer("goal", opts.GoalDirectedEdgeID),
		zap.Int("settled", len(settled)))
	return PathfindResult{}, nil
}

// endpoints returns the edge and, when a U-turn is allowed, its opposite partner at the mirrored parameter
func (p *Pathfinder) endpoints(id network.DirectedEdgeID, param float64, allowUTurn bool) ([]endpoint, bool) {
	e, ok := p.graph.DirectedEdge(id)
	if !ok {
		return nil, false
	}
	length, ok := traversable(p.graph, e)
	if !ok {
		return nil, false
	}
	out := []endpoint{{edge: e, param: param, length: length}}
	if allowUTurn {
		if partner, ok := partnerOf(p.graph, e); ok {
			if plen, ok := traversable(p.graph, partner); ok {
				out = append(out, endpoint{edge: partner, param: 1 - param, length: plen})
			}
		}
	}
	return out, true
}

func (p *Pathfinder) buildResult(
	goal *pqItem,
	seeds, targets []endpoint,
	prev map[network.DirectedEdgeID]network.DirectedEdgeID,
	seedOf map[network.DirectedEdgeID]int,
) PathfindResult {
	var edges []network.DirectedEdgeID
	var startParam float64
	if goal.via.IsEmpty() {
		edges = []network.DirectedEdgeID{goal.edge}
		startParam = seeds[goal.seed].param
	} else {
		cur := goal.via
		edges = append(edges, cur)
		for {
			before, ok := prev[cur]
			if !ok {
				break
			}
			edges = append(edges, before)
			cur = before
		}
		for i, j := 0, len(edges)-1; i < j; i, j = i+1, j-1 {
			edges[i], edges[j] = edges[j], edges[i]
		}
		edges = append(edges, goal.edge)
		startParam = seeds[seedOf[cur]].param
	}
	endParam := targets[goal.target].param

	points := p.assemble(edges, startParam, endParam)
	return PathfindResult{
		IsPathFound:         true,
		PathDirectedEdgeIDs: edges,
		StartParameter:      startParam,
		EndParameter:        endParam,
		DistanceMeters:      goal.cost,
		PathPoints:          points,
		PathPointParams:     geom.CumulativeParams(points),
	}
}

// assemble concatenates the centerlines of the traversed ways, clipped at both ends
func (p *Pathfinder) assemble(edges []network.DirectedEdgeID, startParam, endParam float64) []geom.Vector {
	points := make([]geom.Vector, 0)
	last := len(edges) - 1
	for i, id := range edges {
		e, ok := p.graph.DirectedEdge(id)
		if !ok || e.IsLink() {
			continue
		}
		w, ok := p.graph.Way(e.WayID)
		if !ok {
			continue
		}
		pts, prm := w.CenterLinePoints, w.CenterLineSplineParams
		if e.IsWayReversed {
			pts, prm = geom.Reverse(pts, prm)
		}
		t0, t1 := 0.0, 1.0
		if i == 0 {
			t0 = startParam
		}
		if i == last {
			t1 = endParam
		}
		segment, err := geom.Slice(pts, prm, t0, t1)
		if err != nil {
			p.logger.Warn("skipping way geometry", zap.Stringer("way", w.ID), zap.Error(err))
			continue
		}
		for _, pt := range segment {
			if len(points) > 0 && geom.ApproxEqual(points[len(points)-1], pt, 1e-6) {
				continue
			}
			points = append(points, pt)
		}
	}
	if len(points) == 0 {
		if e, ok := p.graph.DirectedEdge(edges[0]); ok {
			if n, ok := p.graph.Node(e.NodeIDA); ok {
				points = append(points, n.Position)
			}
		}
	}
	for len(points) > 0 && len(points) < 2 {
		points = append(points, points[0])
	}
	return points
}
