package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"kuanb/gosm-transport/graph"
	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/routing"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = errors.New("session closed")

// Session is the context every caller works through: it receives the streaming engine's cell events, owns the
// network store, the positioners and graph views built on it, and re-raises cell events to subscribers.
//
// Cell events and queries must not overlap; the host serializes them.
type Session struct {
	network.Reader

	id         uuid.UUID
	logger     *zap.Logger
	registerer prometheus.Registerer
	metrics    *Metrics

	store      *network.Store
	pathfinder *routing.Pathfinder

	positioners arena[*routing.Positioner]
	graphs      []*graph.TransportGraph
	observers   network.Observers[network.CellEvent]
	closed      bool
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the session logger. Every entry carries the session id.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegisterer registers the session metrics with r. They are unregistered on Close.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *Session) {
		s.registerer = r
	}
}

// NewSession creates a session pulling cell payloads from source.
func NewSession(source network.TileSource, opts ...Option) (*Session, error) {
	s := &Session{
		id:      uuid.New(),
		logger:  zap.NewNop(),
		metrics: NewMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session", s.id.String()))
	if s.registerer != nil {
		if err := s.metrics.register(s.registerer); err != nil {
			return nil, errors.Wrap(err, "register session metrics")
		}
	}

	s.store = network.NewStore(source, network.WithLogger(s.logger.Named("store")))
	s.Reader = s.store
	s.pathfinder = routing.NewPathfinder(s.store, s.logger.Named("pathfinder"))
	s.logger.Info("session opened")
	return s, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id.String()
}

// Metrics returns the session metrics.
func (s *Session) Metrics() *Metrics {
	return s.metrics
}

// Store returns the network store of the session.
func (s *Session) Store() *network.Store {
	return s.store
}

// OnCellAdded applies a cell added by the streaming engine and re-raises it once graph views and positioners
// have caught up.
func (s *Session) OnCellAdded(net network.NetworkType, cell network.CellKey) {
	if s.closed {
		return
	}
	s.store.OnCellAdded(net, cell)
	if s.store.IsResident(net, cell) {
		s.applied(network.CellEvent{Kind: network.CellAdded, Network: net, Cell: cell})
	}
}

func (s *Session) OnCellRemoved(net network.NetworkType, cell network.CellKey) {
	if s.closed || !s.store.IsResident(net, cell) {
		return
	}
	s.store.OnCellRemoved(net, cell)
	s.applied(network.CellEvent{Kind: network.CellRemoved, Network: net, Cell: cell})
}

func (s *Session) OnCellUpdated(net network.NetworkType, cell network.CellKey) {
	if s.closed || !s.store.IsResident(net, cell) {
		return
	}
	s.store.OnCellUpdated(net, cell)
	s.applied(network.CellEvent{Kind: network.CellUpdated, Network: net, Cell: cell})
}

func (s *Session) applied(e network.CellEvent) {
	s.metrics.RecordCellEvent(e.Network.String(), e.Kind.String())
	nodes, edges, ways := s.store.Counts(e.Network)
	s.metrics.RecordResident(e.Network.String(), nodes, edges, ways)
	s.observers.Notify(e)
}

// Subscribe registers fn for every cell event the session applies.
func (s *Session) Subscribe(fn func(network.CellEvent)) network.Token {
	return s.observers.Subscribe(fn)
}

// SubscribeKind registers fn for cell events of one kind.
func (s *Session) SubscribeKind(kind network.CellEventKind, fn func(network.CellEvent)) network.Token {
	return s.observers.Subscribe(func(e network.CellEvent) {
		if e.Kind == kind {
			fn(e)
		}
	})
}

// Unsubscribe removes a subscription made with Subscribe or SubscribeKind.
func (s *Session) Unsubscribe(token network.Token) bool {
	return s.observers.Unsubscribe(token)
}

// ResidentCells returns the loaded cells of a network in key order.
func (s *Session) ResidentCells(net network.NetworkType) []network.CellKey {
	return s.store.ResidentCells(net)
}

// NewGraph creates a graph view of one network, filled with the cells already resident.
// It follows the session's cell events until Close.
func (s *Session) NewGraph(net network.NetworkType) (*graph.TransportGraph, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if !net.Valid() {
		return nil, errors.Wrapf(routing.ErrInvalidOptions, "network type %d", net)
	}
	g := graph.New(net, s.store, graph.WithLogger(s.logger.Named("graph")))
	for _, cell := range s.store.ResidentCells(net) {
		g.Apply(network.CellEvent{Kind: network.CellAdded, Network: net, Cell: cell})
	}
	g.Attach(s.store)
	s.graphs = append(s.graphs, g)
	return g, nil
}

// CreatePositioner creates a positioner that re-matches whenever a cell of its network changes.
func (s *Session) CreatePositioner(opts routing.PositionerOptions) (Handle, error) {
	if s.closed {
		return Handle{}, ErrSessionClosed
	}
	p, err := routing.NewPositioner(s.store, opts, s.logger.Named("positioner"))
	if err != nil {
		return Handle{}, err
	}
	p.Attach(s.store)
	h := s.positioners.alloc(p)
	s.metrics.Positioners.Set(float64(s.positioners.len()))
	s.logger.Debug("positioner created", zap.Stringer("handle", h), zap.Bool("matched", p.IsMatched()))
	return h, nil
}

// Positioner returns the positioner of a live handle.
func (s *Session) Positioner(h Handle) (*routing.Positioner, error) {
	p, ok := s.positioners.get(h)
	if !ok {
		return nil, errors.Wrapf(ErrUnknownHandle, "positioner %s", h)
	}
	return p, nil
}

// DestroyPositioner stops and frees a positioner. The handle is invalid afterwards.
func (s *Session) DestroyPositioner(h Handle) error {
	p, err := s.positioners.release(h)
	if err != nil {
		return err
	}
	p.Close()
	s.metrics.Positioners.Set(float64(s.positioners.len()))
	s.logger.Debug("positioner destroyed", zap.Stringer("handle", h))
	return nil
}

// Positioners returns the live positioner handles.
func (s *Session) Positioners() []Handle {
	return s.positioners.handles()
}

// FindShortestPath runs a shortest path query against the resident graph.
func (s *Session) FindShortestPath(opts routing.PathfindOptions) (routing.PathfindResult, error) {
	if s.closed {
		return routing.PathfindResult{}, ErrSessionClosed
	}
	start := time.Now()
	res, err := s.pathfinder.FindShortestPath(opts)
	outcome := "found"
	switch {
	case err != nil:
		outcome = "invalid"
	case !res.IsPathFound:
		outcome = "not_found"
	}
	s.metrics.RecordPathfind(outcome, time.Since(start))
	return res, err
}

// MatchTrace matches a whole trace of observations on one network.
func (s *Session) MatchTrace(net network.NetworkType, coords []routing.Coordinate) (routing.TraceMatch, error) {
	if s.closed {
		return routing.TraceMatch{}, ErrSessionClosed
	}
	start := time.Now()
	m := routing.NewHMMMapMatcher(s.store, net).Match(coords)
	s.metrics.RecordMatch(time.Since(start))
	return m, nil
}

// Close frees every positioner and graph view, drops all subscriptions and unregisters the metrics.
// Closing twice is a no-op.
func (s *Session) Close() {
	if s.closed {
		return
	}
	for _, h := range s.positioners.handles() {
		if err := s.DestroyPositioner(h); err != nil {
			s.logger.Warn("destroy positioner", zap.Error(err))
		}
	}
	for _, g := range s.graphs {
		g.Detach()
	}
	s.graphs = nil
	s.observers.Clear()
	if s.registerer != nil {
		s.metrics.unregister(s.registerer)
	}
	s.closed = true
	s.logger.Info("session closed")
}
