package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indoor-navigator/internal/config"
	"indoor-navigator/internal/logging"
	"indoor-navigator/internal/mapfile"
	"indoor-navigator/internal/metrics"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	s := newServer(config.Default(), logging.New(io.Discard, "error", "text"), metrics.NewRegistry())
	s.load = func() (*mapfile.Document, []mapfile.Warning, error) {
		return mapfile.DemoHallway(), nil, nil
	}
	_, err := s.reload()
	require.NoError(t, err)
	return s
}

func do(t *testing.T, h http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, target, reader))

	var decoded map[string]interface{}
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &decoded))
	}
	return rr, decoded
}

func TestSampleMap(t *testing.T) {
	s := newServer(config.Default(), logging.New(io.Discard, "error", "text"), metrics.NewRegistry())

	snap, err := s.reload()

	require.NoError(t, err)
	assert.Equal(t, 6, snap.graph.Len())
	assert.Equal(t, 10, snap.graph.EdgeCount())
	assert.Empty(t, snap.diagnostics)
	assert.Empty(t, snap.warnings)

	_, resp := do(t, s.handler(), http.MethodPost, "/directions", routeRequest{From: "RP_ENTRANCE", To: "RP_LAB"})
	steps := resp["steps"].([]interface{})
	require.Len(t, steps, 3)
	assert.Equal(t, "left", steps[1].(map[string]interface{})["maneuver"])
	assert.Equal(t, "RP_CORRIDOR_2", steps[1].(map[string]interface{})["at"])
}

func TestHandleRoute(t *testing.T) {
	h := newTestServer(t).handler()

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantPath   []interface{}
		wantCost   float64
	}{
		{
			name:       "through the middle",
			body:       routeRequest{From: "RP_HALLWAY_START", To: "RP_HALLWAY_END"},
			wantStatus: http.StatusOK,
			wantPath:   []interface{}{"RP_HALLWAY_START", "RP_HALLWAY_MIDDLE", "RP_HALLWAY_END"},
			wantCost:   10,
		},
		{
			name:       "same waypoint",
			body:       routeRequest{From: "RP_HALLWAY_MIDDLE", To: "RP_HALLWAY_MIDDLE"},
			wantStatus: http.StatusOK,
			wantPath:   []interface{}{"RP_HALLWAY_MIDDLE"},
		},
		{
			name:       "unknown start",
			body:       routeRequest{From: "RP_ROOF", To: "RP_HALLWAY_END"},
			wantStatus: http.StatusNotFound,
			wantPath:   []interface{}{},
		},
		{
			name:       "missing field",
			body:       map[string]string{"from": "RP_HALLWAY_START"},
			wantStatus: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, resp := do(t, h, http.MethodPost, "/route", tt.body)

			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantPath == nil {
				assert.Equal(t, false, resp["success"])
				return
			}
			assert.Equal(t, tt.wantPath, resp["path"])
			assert.InDelta(t, tt.wantCost, resp["cost"], 1e-9)
		})
	}
}

func TestHandleRoute_Unreachable(t *testing.T) {
	s := newTestServer(t)
	doc := mapfile.DemoHallway()
	doc.AddWaypoint("RP_ISLAND", 50, 50, "Island", "")
	s.install(doc, nil)

	rr, resp := do(t, s.handler(), http.MethodPost, "/route", routeRequest{From: "RP_HALLWAY_START", To: "RP_ISLAND"})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "unreachable", resp["status"])
	assert.Equal(t, "No path found", resp["message"])
}

func TestHandleRoute_MethodNotAllowed(t *testing.T) {
	rr, _ := do(t, newTestServer(t).handler(), http.MethodGet, "/route", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHandleLocate(t *testing.T) {
	s := newTestServer(t)
	h := s.handler()

	t.Run("near start", func(t *testing.T) {
		scan := map[string]interface{}{
			"scan": map[string]int{"BEACON_ID_1": -52, "BEACON_ID_2": -79, "BEACON_ID_3": -91},
			"k":    2,
		}
		rr, resp := do(t, h, http.MethodPost, "/locate", scan)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, true, resp["matched"])
		closest := resp["closest"].(map[string]interface{})
		assert.Equal(t, "RP_HALLWAY_START", closest["id"])
		assert.EqualValues(t, 3, closest["overlap"])
		assert.InDelta(t, 2.449, closest["distance"], 1e-3)

		estimate := resp["estimate"].(map[string]interface{})
		assert.InDelta(t, 0.0, estimate["x"], 1e-9)
		assert.InDelta(t, 2.5, estimate["y"], 1e-9)
		// START and MIDDLE are equally far from the estimate; the first declared wins.
		assert.Equal(t, "RP_HALLWAY_START", resp["snapped"])
		assert.Len(t, resp["ranked"], 2)
	})

	t.Run("empty scan", func(t *testing.T) {
		rr, resp := do(t, h, http.MethodPost, "/locate", map[string]interface{}{"scan": map[string]int{}})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, "Location unknown", resp["message"])
	})

	t.Run("no shared beacon", func(t *testing.T) {
		rr, resp := do(t, h, http.MethodPost, "/locate", map[string]interface{}{"scan": map[string]int{"ELSEWHERE": -40}})

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, false, resp["matched"])
		closest := resp["closest"].(map[string]interface{})
		assert.Equal(t, "RP_HALLWAY_START", closest["id"])
		assert.Nil(t, closest["distance"])
		assert.NotContains(t, resp, "estimate")
	})

	t.Run("k out of range", func(t *testing.T) {
		rr, _ := do(t, h, http.MethodPost, "/locate", map[string]interface{}{"scan": map[string]int{"BEACON_ID_1": -50}, "k": 99})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.LocatesTotal.WithLabelValues("matched")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.LocatesTotal.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.LocatesTotal.WithLabelValues("no_overlap")))
}

func TestHandleNearest(t *testing.T) {
	h := newTestServer(t).handler()

	rr, resp := do(t, h, http.MethodGet, "/nearest?x=0.4&y=6", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	wp := resp["waypoint"].(map[string]interface{})
	assert.Equal(t, "RP_HALLWAY_MIDDLE", wp["id"])
	assert.EqualValues(t, 3, wp["beacons"])

	_, resp = do(t, h, http.MethodGet, "/nearest?x=0&y=6&k=2", nil)
	hits := resp["hits"].([]interface{})
	require.Len(t, hits, 2)
	assert.Equal(t, "RP_HALLWAY_MIDDLE", hits[0].(map[string]interface{})["waypoint"].(map[string]interface{})["id"])
	assert.InDelta(t, 1.0, hits[0].(map[string]interface{})["distance"], 1e-9)

	_, resp = do(t, h, http.MethodGet, "/nearest?x=0&y=0&radius=5", nil)
	assert.Len(t, resp["hits"], 2)

	rr, _ = do(t, h, http.MethodGet, "/nearest?x=0&y=0&k=0", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr, _ = do(t, h, http.MethodGet, "/nearest?x=abc&y=1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr, _ = do(t, h, http.MethodGet, "/nearest?x=1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleWaypoints(t *testing.T) {
	h := newTestServer(t).handler()

	_, all := do(t, h, http.MethodGet, "/waypoints", nil)
	assert.EqualValues(t, 3, all["count"])

	rr, box := do(t, h, http.MethodGet, "/waypoints?minX=-1&minY=4&maxX=1&maxY=11", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, box["count"])
	first := box["waypoints"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "RP_HALLWAY_MIDDLE", first["id"])

	rr, _ = do(t, h, http.MethodGet, "/waypoints?minX=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleDirections(t *testing.T) {
	h := newTestServer(t).handler()

	rr, resp := do(t, h, http.MethodPost, "/directions", routeRequest{From: "RP_HALLWAY_START", To: "RP_HALLWAY_END"})

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	steps := resp["steps"].([]interface{})
	require.Len(t, steps, 2)
	assert.Equal(t, "depart", steps[0].(map[string]interface{})["maneuver"])
	last := steps[1].(map[string]interface{})
	assert.Equal(t, "arrive", last["maneuver"])
	assert.Equal(t, "guidance_end.wav", last["cue"])
	assert.InDelta(t, 10.0, last["distance"], 1e-9)

	rr, _ = do(t, h, http.MethodPost, "/directions", routeRequest{From: "RP_HALLWAY_START", To: "RP_ROOF"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleMapLines(t *testing.T) {
	_, resp := do(t, newTestServer(t).handler(), http.MethodGet, "/map/lines", nil)

	assert.EqualValues(t, 3, resp["numWaypoints"])
	assert.EqualValues(t, 4, resp["numEdges"])
	lines := resp["lines"].([]interface{})
	require.Len(t, lines, 2)
	assert.Equal(t, true, lines[0].(map[string]interface{})["bidirectional"])
}

func TestHandleMapGeoJSON(t *testing.T) {
	rr, _ := do(t, newTestServer(t).handler(), http.MethodGet, "/map/geojson", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/geo+json", rr.Header().Get("Content-Type"))
	var fc map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc["type"])
	assert.Len(t, fc["features"], 5)
}

func TestHandleReload(t *testing.T) {
	s := newTestServer(t)
	h := s.handler()
	before := s.snapshot()

	s.load = func() (*mapfile.Document, []mapfile.Warning, error) {
		return nil, nil, errors.Join(mapfile.ErrMalformedMap, errors.New("missing coordinates"))
	}
	rr, _ := do(t, h, http.MethodPost, "/reload", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Same(t, before, s.snapshot(), "a failed reload keeps the active map")

	s.load = func() (*mapfile.Document, []mapfile.Warning, error) {
		doc := mapfile.DemoHallway()
		doc.AddWaypoint("RP_LAB", 5, 10, "Lab", "")
		return doc, []mapfile.Warning{{Subject: "RP_ROOF", Detail: "fingerprint for undeclared waypoint"}}, nil
	}
	rr, resp := do(t, h, http.MethodPost, "/reload", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 4, resp["numWaypoints"])
	assert.Len(t, resp["warnings"], 1)
	assert.NotSame(t, before, s.snapshot())

	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.MapReloads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.MapReloads.WithLabelValues("error")))
}

func TestHandleHealth(t *testing.T) {
	empty := newServer(config.Default(), logging.New(io.Discard, "error", "text"), metrics.NewRegistry())
	_, resp := do(t, empty.handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, "waiting for map", resp["status"])
	assert.Equal(t, false, resp["hasMap"])

	rr, _ := do(t, empty.handler(), http.MethodPost, "/route", routeRequest{From: "a", To: "b"})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	_, resp = do(t, newTestServer(t).handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, "ready", resp["status"])
	assert.EqualValues(t, 3, resp["numWaypoints"])
}

func TestMiddleware(t *testing.T) {
	s := newTestServer(t)
	h := s.handler()

	t.Run("preflight", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/route", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("request id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Len(t, rr.Header().Get("X-Request-ID"), 36)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "trace-42")
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "trace-42", rr.Header().Get("X-Request-ID"))

		req = httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("X-Request-ID", "<script>")
		rr = httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, "script", rr.Header().Get("X-Request-ID"))
	})

	t.Run("metrics", func(t *testing.T) {
		do(t, h, http.MethodGet, "/no/such/page", nil)

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		body := rr.Body.String()
		assert.Contains(t, body, `indoornav_http_requests_total{method="GET",path="/health",status="200"} 3`)
		assert.Contains(t, body, `path="other",status="404"`)
		assert.Contains(t, body, "indoornav_map_waypoints 3")
	})
}
