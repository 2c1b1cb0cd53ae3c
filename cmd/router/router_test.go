package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"kuanb/gosm-transport/network"
	"kuanb/gosm-transport/streaming"
	"kuanb/gosm-transport/transport"
)

func TestLoadConfig(t *testing.T) {
	c, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), c)

	path := filepath.Join(t.TempDir(), "router.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen: ":9090"
zoom: 15
focus:
  lat: 52.37
  lon: 4.89
  radius: 3
positioner:
  max_distance_meters: 20
metrics_log_interval: 1m
`), 0o644))
	c, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Listen)
	assert.Equal(t, 15, c.Zoom)
	assert.Equal(t, 3, c.Focus.Radius)
	assert.Equal(t, 52.37, c.Focus.Lat)
	assert.Equal(t, 20.0, c.Positioner.MaxDistanceMeters)
	assert.Equal(t, 45.0, c.Positioner.MaxHeadingDeviationDegrees)
	assert.Equal(t, time.Minute, c.MetricsLogInterval)
	assert.Equal(t, DefaultConfig().PBF, c.PBF)

	for _, bad := range []string{"zoom: 30", "focus: {radius: -1}", "positioner: {max_distance_meters: -5}", "zoom: [1"} {
		require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))
		_, err := LoadConfig(path)
		assert.Error(t, err, bad)
	}

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

// newMux serves a single street running east along lat 0.0005 across two zoom 16 cells
func newMux(t *testing.T) *http.ServeMux {
	tiler, err := streaming.NewTiler(16)
	require.NoError(t, err)
	engine := streaming.NewEngine(tiler.Tile([]streaming.SourceWay{{
		ID:             1,
		Network:        network.Road,
		From:           1,
		To:             2,
		Line:           orb.LineString{{0.0040, 0.0005}, {0.0070, 0.0005}},
		Direction:      network.Bidirectional,
		Classification: "residential",
	}}))
	session, err := transport.NewSession(engine)
	require.NoError(t, err)
	t.Cleanup(session.Close)
	engine.SetListener(session)

	mux := http.NewServeMux()
	NewServer(DefaultConfig(), engine, session, zap.NewNop()).Routes(mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestStreamRouteAndMatch(t *testing.T) {
	mux := newMux(t)

	// nothing is resident before the focus is set
	rec := serve(mux, http.MethodGet, "/route?from=0.0006,0.0045&to=0.0006,0.0065", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(mux, http.MethodPost, "/stream?lat=0.0005&lon=0.005&radius=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var streamed struct {
		Cells map[string][]string `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &streamed))
	assert.Len(t, streamed.Cells["road"], 2)

	rec = serve(mux, http.MethodGet, "/route?from=0.0006,0.0045&to=0.0006,0.0065", "")
	require.Equal(t, http.StatusOK, rec.Code)
	route, err := geojson.UnmarshalFeature(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, true, route.Properties["found"])
	assert.InDelta(t, 222.4, route.Properties["distance_meters"], 1)
	assert.NotEmpty(t, route.Properties["polyline"])
	assert.True(t, route.Geometry.IsLineString())

	rec = serve(mux, http.MethodPost, "/match", `{"type":"FeatureCollection","features":[
		{"type":"Feature","properties":{},"geometry":{"type":"LineString","coordinates":[[0.0045,0.00055],[0.0048,0.00055],[0.0052,0.00055]]}}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var matched struct {
		Features   []*geojson.Feature `json:"features"`
		Confidence float64            `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &matched))
	var points, ways int
	for _, f := range matched.Features {
		if f.Geometry.IsPoint() {
			points++
		} else {
			ways++
		}
	}
	assert.Equal(t, 3, points)
	assert.Equal(t, 1, ways)
}

func TestBadRequests(t *testing.T) {
	mux := newMux(t)
	for _, tc := range []struct {
		method, target, body string
		code                 int
	}{
		{http.MethodGet, "/match", "", http.StatusMethodNotAllowed},
		{http.MethodPost, "/match", "not json", http.StatusBadRequest},
		{http.MethodPost, "/match", `{"type":"FeatureCollection","features":[]}`, http.StatusBadRequest},
		{http.MethodPost, "/match?network=bus", `{}`, http.StatusBadRequest},
		{http.MethodGet, "/route?from=1&to=0,0", "", http.StatusBadRequest},
		{http.MethodGet, "/route?from=100,0&to=0,0", "", http.StatusBadRequest},
		{http.MethodGet, "/stream?lat=x&lon=0", "", http.StatusBadRequest},
		{http.MethodGet, "/stream?lat=0&lon=0&radius=-1", "", http.StatusBadRequest},
		{http.MethodGet, "/health", "", http.StatusOK},
	} {
		rec := serve(mux, tc.method, tc.target, tc.body)
		assert.Equal(t, tc.code, rec.Code, tc.target)
	}
}
