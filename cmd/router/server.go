package main

import (
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"

	geojson "github.com/paulmach/go.geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"kuanb/gosm-transport/geom"
	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/routing"
	"kuanb/gosm-transport/streaming"
	"kuanb/gosm-transport/transport"
)

// Server answers HTTP requests against a streaming session.
// Streaming and queries share the session, so every request holds mu.
type Server struct {
	mu      sync.Mutex
	config  Config
	engine  *streaming.Engine
	session *transport.Session
	logger  *zap.Logger
}

func NewServer(config Config, engine *streaming.Engine, session *transport.Session, logger *zap.Logger) *Server {
	return &Server{config: config, engine: engine, session: session, logger: logger}
}

// Routes registers the request handlers on mux
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/match", s.handleMatch)
	mux.HandleFunc("/route", s.handleRoute)
	mux.HandleFunc("/stream", s.handleStream)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
}

// randomColor generates a random hex color string
func randomColor() string {
	const letters = "0123456789ABCDEF"
	b := make([]byte, 7)
	b[0] = '#'
	for i := 1; i < 7; i++ {
		b[i] = letters[rand.Intn(16)]
	}
	return string(b)
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func networkParam(r *http.Request) (network.NetworkType, error) {
	v := r.URL.Query().Get("network")
	if v == "" {
		return network.Road, nil
	}
	return network.ParseNetworkType(v)
}

// latLonParam reads a "lat,lon" query parameter
func latLonParam(r *http.Request, name string) (float64, float64, error) {
	parts := strings.Split(r.URL.Query().Get(name), ",")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("%s must be lat,lon", name)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "%s latitude", name)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "%s longitude", name)
	}
	return lat, lon, nil
}

// traceCoordinates collects the observations of every point and line feature in order
func traceCoordinates(fc *geojson.FeatureCollection) []routing.Coordinate {
	var coords []routing.Coordinate
	add := func(positions ...[]float64) {
		for _, p := range positions {
			if len(p) >= 2 {
				coords = append(coords, routing.Coordinate{Lon: p[0], Lat: p[1]})
			}
		}
	}
	for _, feature := range fc.Features {
		g := feature.Geometry
		if g == nil {
			continue
		}
		switch {
		case g.IsPoint():
			add(g.Point)
		case g.IsMultiPoint():
			add(g.MultiPoint...)
		case g.IsLineString():
			add(g.LineString...)
		case g.IsMultiLineString():
			for _, line := range g.MultiLineString {
				add(line...)
			}
		}
	}
	return coords
}

// handleMatch matches a GeoJSON trace and returns the matched points and the ways they lie on
func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	net, err := networkParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		http.Error(w, "Invalid GeoJSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	coords := traceCoordinates(fc)
	if len(coords) == 0 {
		http.Error(w, "No coordinates found in GeoJSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.Info("processing match request", zap.Int("coordinates", len(coords)), zap.Stringer("network", net))

	match, err := s.session.MatchTrace(net, coords)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	out := geojson.NewFeatureCollection()
	seen := make(map[network.WayID]bool)
	for i, p := range match.Points {
		out.AddFeature(geom.PointFeature(p.PointOnGraph, map[string]interface{}{
			"observation":     i,
			"edge_id":         p.DirectedEdgeID.String(),
			"way_id":          p.WayID.String(),
			"distance_meters": p.DistanceMeters,
		}))
		if seen[p.WayID] {
			continue
		}
		seen[p.WayID] = true
		way, ok := s.session.Way(p.WayID)
		if !ok {
			continue
		}
		out.AddFeature(geom.LineStringFeature(way.CenterLinePoints, map[string]interface{}{
			"matched":        true,
			"way_id":         way.ID.String(),
			"classification": way.Classification,
			"stroke":         randomColor(),
		}))
	}

	s.writeJSON(w, map[string]interface{}{
		"type":       "FeatureCollection",
		"features":   out.Features,
		"confidence": match.Confidence,
	})
}

// position matches a single point with a short lived positioner
func (s *Server) position(net network.NetworkType, lat, lon float64) (routing.PositionerPointOnGraph, error) {
	h, err := s.session.CreatePositioner(s.config.positionerOptions(net, lat, lon))
	if err != nil {
		return routing.PositionerPointOnGraph{}, err
	}
	defer func() {
		if err := s.session.DestroyPositioner(h); err != nil {
			s.logger.Warn("destroy positioner", zap.Error(err))
		}
	}()
	p, err := s.session.Positioner(h)
	if err != nil {
		return routing.PositionerPointOnGraph{}, err
	}
	return p.PointOnGraph(), nil
}

// handleRoute finds the shortest path between two points given as from=lat,lon and to=lat,lon
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	net, err := networkParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fromLat, fromLon, err := latLonParam(r, "from")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	toLat, toLon, err := latLonParam(r, "to")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	uTurn, _ := strconv.ParseBool(r.URL.Query().Get("uturn"))

	s.mu.Lock()
	defer s.mu.Unlock()

	start, err := s.position(net, fromLat, fromLon)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	goal, err := s.position(net, toLat, toLon)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !start.IsMatched || !goal.IsMatched {
		http.Error(w, "No road near the start or goal", http.StatusNotFound)
		return
	}

	res, err := s.session.FindShortestPath(routing.PathfindOptions{
		StartDirectedEdgeID: start.DirectedEdgeID,
		StartParameter:      start.ParameterizedPointOnEdge,
		GoalDirectedEdgeID:  goal.DirectedEdgeID,
		GoalParameter:       goal.ParameterizedPointOnEdge,
		AllowUTurnAtStart:   uTurn,
		AllowUTurnAtGoal:    uTurn,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.logger.Info("route request",
		zap.Bool("found", res.IsPathFound), zap.Float64("distance_meters", res.DistanceMeters),
		zap.Int("edges", len(res.PathDirectedEdgeIDs)))

	feature := res.GeoJSON()
	feature.SetProperty("polyline", res.EncodedPolyline())
	s.writeJSON(w, feature)
}

// handleStream moves the streaming focus to lat, lon and reports the resident cells
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		http.Error(w, "Invalid lat", http.StatusBadRequest)
		return
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		http.Error(w, "Invalid lon", http.StatusBadRequest)
		return
	}
	radius := s.config.Focus.Radius
	if v := q.Get("radius"); v != "" {
		if radius, err = strconv.Atoi(v); err != nil || radius < 0 {
			http.Error(w, "Invalid radius", http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.SetFocus(lat, lon, radius)

	resident := make(map[string][]string)
	for _, net := range network.NetworkTypes {
		for _, cell := range s.session.ResidentCells(net) {
			resident[net.String()] = append(resident[net.String()], cell.String())
		}
	}
	s.writeJSON(w, map[string]interface{}{"cells": resident})
}
