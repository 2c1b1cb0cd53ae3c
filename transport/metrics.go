package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the counters and gauges a session records
type Metrics struct {
	CellEvents       *prometheus.CounterVec
	ResidentEntities *prometheus.GaugeVec
	Positioners      prometheus.Gauge
	PathfindTotal    *prometheus.CounterVec
	PathfindDuration prometheus.Histogram
	MatchDuration    prometheus.Histogram
}

// NewMetrics creates the session metrics. They are not registered.
func NewMetrics() *Metrics {
	return &Metrics{
		CellEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosm",
				Subsystem: "cells",
				Name:      "events_total",
				Help:      "Cell lifecycle events applied to the network store",
			},
			[]string{"network", "kind"},
		),

		ResidentEntities: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gosm",
				Subsystem: "store",
				Name:      "resident_entities",
				Help:      "Resident nodes, directed edges and ways",
			},
			[]string{"network", "entity"},
		),

		Positioners: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "gosm",
				Subsystem: "positioner",
				Name:      "active",
				Help:      "Positioners currently allocated",
			},
		),

		PathfindTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gosm",
				Subsystem: "pathfind",
				Name:      "queries_total",
				Help:      "Shortest path queries by outcome (found, not_found, invalid)",
			},
			[]string{"outcome"},
		),

		PathfindDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gosm",
				Subsystem: "pathfind",
				Name:      "duration_seconds",
				Help:      "Shortest path query duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),

		MatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "gosm",
				Subsystem: "match",
				Name:      "duration_seconds",
				Help:      "Trace match duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.CellEvents, m.ResidentEntities, m.Positioners, m.PathfindTotal, m.PathfindDuration, m.MatchDuration,
	}
}

// register adds every metric to r. On failure the metrics registered so far are removed again.
func (m *Metrics) register(r prometheus.Registerer) error {
	collectors := m.collectors()
	for i, c := range collectors {
		if err := r.Register(c); err != nil {
			for _, done := range collectors[:i] {
				r.Unregister(done)
			}
			return err
		}
	}
	return nil
}

func (m *Metrics) unregister(r prometheus.Registerer) {
	for _, c := range m.collectors() {
		r.Unregister(c)
	}
}

// RecordCellEvent increments the cell event counter
func (m *Metrics) RecordCellEvent(network, kind string) {
	m.CellEvents.WithLabelValues(network, kind).Inc()
}

// RecordResident updates the resident entity gauges of a network
func (m *Metrics) RecordResident(network string, nodes, edges, ways int) {
	m.ResidentEntities.WithLabelValues(network, "node").Set(float64(nodes))
	m.ResidentEntities.WithLabelValues(network, "directed_edge").Set(float64(edges))
	m.ResidentEntities.WithLabelValues(network, "way").Set(float64(ways))
}

// RecordPathfind counts a shortest path query and its duration
func (m *Metrics) RecordPathfind(outcome string, duration time.Duration) {
	m.PathfindTotal.WithLabelValues(outcome).Inc()
	m.PathfindDuration.Observe(duration.Seconds())
}

// RecordMatch records the duration of a trace match
func (m *Metrics) RecordMatch(duration time.Duration) {
	m.MatchDuration.Observe(duration.Seconds())
}
