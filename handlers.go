package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"

	"indoor-navigator/internal/guidance"
	"indoor-navigator/internal/locate"
	"indoor-navigator/internal/mapfile"
	"indoor-navigator/internal/navgraph"
	"indoor-navigator/internal/pathfind"
	"indoor-navigator/internal/spatial"
)

var validate = validator.New()

var knownPaths = map[string]struct{}{
	"/route":       {},
	"/locate":      {},
	"/nearest":     {},
	"/waypoints":   {},
	"/directions":  {},
	"/map/lines":   {},
	"/map/geojson": {},
	"/reload":      {},
	"/health":      {},
	"/metrics":     {},
}

func (s *server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/route", s.routeHandler)
	mux.HandleFunc("/locate", s.locateHandler)
	mux.HandleFunc("/nearest", s.nearestHandler)
	mux.HandleFunc("/waypoints", s.waypointsHandler)
	mux.HandleFunc("/directions", s.directionsHandler)
	mux.HandleFunc("/map/lines", s.mapLinesHandler)
	mux.HandleFunc("/map/geojson", s.mapGeoJSONHandler)
	mux.HandleFunc("/reload", s.reloadHandler)
	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", s.metrics.Handler())
	return mux
}

type routeRequest struct {
	From string `json:"from" validate:"required"`
	To   string `json:"to" validate:"required"`
}

type routeResponse struct {
	Success     bool                   `json:"success"`
	Message     string                 `json:"message,omitempty"`
	Status      string                 `json:"status"`
	Path        []string               `json:"path"`
	Coordinates []navgraph.Coordinates `json:"coordinates,omitempty"`
	Cost        float64                `json:"cost"`
	Explored    int                    `json:"explored"`
	// Nearby lists waypoints inside the route's padded bounding box.
	Nearby []string `json:"nearby,omitempty"`
}

// nearbyMargin pads the route box used for Nearby.
const nearbyMargin = 2.0

type locateRequest struct {
	Scan locate.Scan `json:"scan"`
	K    int         `json:"k,omitempty" validate:"gte=0,lte=50"`
}

type matchView struct {
	ID         string   `json:"id"`
	Descriptor string   `json:"descriptor,omitempty"`
	Distance   *float64 `json:"distance"`
	Overlap    int      `json:"overlap"`
}

type locateResponse struct {
	Success  bool                  `json:"success"`
	Message  string                `json:"message,omitempty"`
	Matched  bool                  `json:"matched"`
	Closest  *matchView            `json:"closest,omitempty"`
	Estimate *navgraph.Coordinates `json:"estimate,omitempty"`
	Snapped  string                `json:"snapped,omitempty"`
	Ranked   []matchView           `json:"ranked,omitempty"`
}

type waypointView struct {
	ID          string               `json:"id"`
	Coordinates navgraph.Coordinates `json:"coordinates"`
	Descriptor  string               `json:"descriptor,omitempty"`
	Audio       string               `json:"audio,omitempty"`
	Beacons     int                  `json:"beacons"`
}

type lineView struct {
	From          string               `json:"from"`
	To            string               `json:"to"`
	Start         navgraph.Coordinates `json:"start"`
	End           navgraph.Coordinates `json:"end"`
	Bidirectional bool                 `json:"bidirectional"`
}

// POST /route - shortest path between two waypoints
func (s *server) routeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req routeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.requireMap(w)
	if !ok {
		return
	}

	res := s.search(snap.graph, req.From, req.To)
	resp := newRouteResponse(snap.graph, res)
	if res.Status == pathfind.Found {
		resp.Nearby = nearby(snap, res.Path)
	}
	writeJSON(w, routeStatusCode(res.Status), resp)
}

// nearby returns the waypoints off the path that lie within the box spanned
// by its two ends.
func nearby(snap *mapSnapshot, path []string) []string {
	start, _ := snap.graph.Waypoint(path[0])
	end, _ := snap.graph.Waypoint(path[len(path)-1])
	onPath := make(map[string]bool, len(path))
	for _, id := range path {
		onPath[id] = true
	}

	var ids []string
	for _, wp := range snap.index.QueryRegion(spatial.RouteBound(start.Coordinates, end.Coordinates, nearbyMargin)) {
		if !onPath[wp.ID] {
			ids = append(ids, wp.ID)
		}
	}
	return ids
}

func (s *server) search(g *navgraph.Graph, from, to string) pathfind.Result {
	start := time.Now()
	res := pathfind.Search(g, from, to)
	s.metrics.RecordRoute(res.Status.String(), res.Explored, time.Since(start))

	if res.Status != pathfind.Found {
		s.log.Info("route_not_found", "from", from, "to", to, "status", res.Status.String(), "explored", res.Explored)
	} else {
		s.log.Debug("route_found", "from", from, "to", to, "hops", len(res.Path)-1, "cost", res.Cost)
	}
	return res
}

func newRouteResponse(g *navgraph.Graph, res pathfind.Result) routeResponse {
	resp := routeResponse{
		Success:  res.Status == pathfind.Found,
		Status:   res.Status.String(),
		Path:     res.Path,
		Cost:     res.Cost,
		Explored: res.Explored,
	}
	switch res.Status {
	case pathfind.Found:
		resp.Coordinates = make([]navgraph.Coordinates, 0, len(res.Path))
		for _, id := range res.Path {
			wp, _ := g.Waypoint(id)
			resp.Coordinates = append(resp.Coordinates, wp.Coordinates)
		}
	case pathfind.UnknownStart:
		resp.Message = "Unknown start waypoint"
	case pathfind.UnknownEnd:
		resp.Message = "Unknown destination waypoint"
	default:
		resp.Message = "No path found"
	}
	if resp.Path == nil {
		resp.Path = []string{}
	}
	return resp
}

func routeStatusCode(status pathfind.Status) int {
	switch status {
	case pathfind.UnknownStart, pathfind.UnknownEnd:
		return http.StatusNotFound
	default:
		return http.StatusOK
	}
}

// POST /locate - closest waypoint and k-NN estimate for a scan
func (s *server) locateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req locateRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.requireMap(w)
	if !ok {
		return
	}
	k := req.K
	if k == 0 {
		k = s.cfg.KNN
	}

	start := time.Now()
	match, found := locate.Locate(snap.graph, req.Scan)
	estimate, ranked, estimated := locate.Estimate(snap.graph, req.Scan, k)

	status := "matched"
	switch {
	case !found:
		status = "unknown"
	case !match.Matched():
		status = "no_overlap"
	}
	s.metrics.RecordLocate(status, match.Overlap, time.Since(start))

	if !found {
		s.log.Info("location_unknown", "beacons", len(req.Scan))
		writeJSON(w, http.StatusOK, locateResponse{Message: "Location unknown"})
		return
	}

	resp := locateResponse{
		Success: true,
		Matched: match.Matched(),
		Closest: newMatchView(snap.graph, match),
	}
	if !match.Matched() {
		resp.Message = "No beacon in common with any fingerprint"
	}
	if estimated {
		resp.Estimate = &estimate
		if hit, ok := snap.index.Nearest(estimate); ok {
			resp.Snapped = hit.Waypoint.ID
		}
		for _, m := range ranked {
			resp.Ranked = append(resp.Ranked, *newMatchView(snap.graph, m))
		}
	}
	s.log.Debug("location_matched", "waypoint", match.ID, "overlap", match.Overlap, "snapped", resp.Snapped)
	writeJSON(w, http.StatusOK, resp)
}

func newMatchView(g *navgraph.Graph, m locate.Match) *matchView {
	wp, _ := g.Waypoint(m.ID)
	v := &matchView{ID: m.ID, Descriptor: wp.Descriptor, Overlap: m.Overlap}
	// JSON has no infinity; no shared beacon encodes as null.
	if !math.IsInf(m.Distance, 0) {
		d := m.Distance
		v.Distance = &d
	}
	return v
}

type hitView struct {
	Waypoint waypointView `json:"waypoint"`
	Distance float64      `json:"distance"`
}

// GET /nearest?x=..&y=..[&k=..|&radius=..] - waypoints closest to a position
func (s *server) nearestHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	vals, err := floatParams(r, "x", "y")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.requireMap(w)
	if !ok {
		return
	}
	at := navgraph.Coordinates{X: vals[0], Y: vals[1]}

	q := r.URL.Query()
	if q.Has("k") || q.Has("radius") {
		var hits []spatial.Hit
		if q.Has("radius") {
			radius, err := floatParams(r, "radius")
			if err != nil || radius[0] < 0 {
				writeError(w, http.StatusBadRequest, "query parameter \"radius\" must be a non-negative number")
				return
			}
			hits = snap.index.Within(at, radius[0])
		} else {
			k, err := strconv.Atoi(q.Get("k"))
			if err != nil || k < 1 {
				writeError(w, http.StatusBadRequest, "query parameter \"k\" must be a positive integer")
				return
			}
			hits = snap.index.NearestN(at, k)
		}
		views := make([]hitView, 0, len(hits))
		for _, h := range hits {
			views = append(views, hitView{Waypoint: newWaypointView(h.Waypoint), Distance: h.Distance})
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"hits":    views,
		})
		return
	}

	hit, ok := snap.index.Nearest(at)
	if !ok {
		writeError(w, http.StatusNotFound, "Map has no waypoints")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"waypoint": newWaypointView(hit.Waypoint),
		"distance": hit.Distance,
	})
}

// GET /waypoints[?minX&minY&maxX&maxY] - all waypoints, or those in a box
func (s *server) waypointsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap, ok := s.requireMap(w)
	if !ok {
		return
	}

	waypoints := snap.graph.Waypoints()
	if r.URL.Query().Has("minX") || r.URL.Query().Has("maxX") || r.URL.Query().Has("minY") || r.URL.Query().Has("maxY") {
		vals, err := floatParams(r, "minX", "minY", "maxX", "maxY")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		waypoints = snap.index.QueryRegion(orb.Bound{
			Min: orb.Point{vals[0], vals[1]},
			Max: orb.Point{vals[2], vals[3]},
		})
	}

	views := make([]waypointView, 0, len(waypoints))
	for _, wp := range waypoints {
		views = append(views, newWaypointView(wp))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"waypoints": views,
		"count":     len(views),
	})
}

func newWaypointView(wp navgraph.Waypoint) waypointView {
	return waypointView{
		ID:          wp.ID,
		Coordinates: wp.Coordinates,
		Descriptor:  wp.Descriptor,
		Audio:       wp.Cue,
		Beacons:     wp.Fingerprint.Len(),
	}
}

// POST /directions - route plus turn-by-turn steps
func (s *server) directionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	var req routeRequest
	if err := decodeRequest(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.requireMap(w)
	if !ok {
		return
	}

	res := s.search(snap.graph, req.From, req.To)
	route := newRouteResponse(snap.graph, res)
	if res.Status != pathfind.Found {
		writeJSON(w, routeStatusCode(res.Status), route)
		return
	}

	steps, err := guidance.Directions(snap.graph, res.Path, guidance.Options{
		Tolerance:     s.cfg.SimplifyTolerance,
		TurnThreshold: s.cfg.Guidance.TurnThreshold,
	})
	if err != nil {
		s.log.Error("directions_failed", "from", req.From, "to", req.To, "error", err)
		writeError(w, http.StatusInternalServerError, "Could not build directions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"route":   route,
		"steps":   steps,
	})
}

// GET /map/lines - edges as line segments for visualization
func (s *server) mapLinesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap, ok := s.requireMap(w)
	if !ok {
		return
	}

	segments := snap.graph.Segments()
	lines := make([]lineView, 0, len(segments))
	for _, seg := range segments {
		lines = append(lines, lineView(seg))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"lines":        lines,
		"numWaypoints": snap.graph.Len(),
		"numEdges":     snap.graph.EdgeCount(),
	})
}

// GET /map/geojson - the map as a GeoJSON feature collection
func (s *server) mapGeoJSONHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	snap, ok := s.requireMap(w)
	if !ok {
		return
	}

	data, err := mapfile.GeoJSON(snap.graph).MarshalJSON()
	if err != nil {
		s.log.Error("geojson_encode_failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Could not encode map")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

// POST /reload - read the map files again
func (s *server) reloadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	snap, err := s.reload()
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, mapfile.ErrMalformedMap) || errors.Is(err, mapfile.ErrUnsupportedFormat) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, err.Error())
		return
	}

	diagnostics := make([]string, 0, len(snap.diagnostics))
	for _, d := range snap.diagnostics {
		diagnostics = append(diagnostics, d.String())
	}
	warnings := make([]string, 0, len(snap.warnings))
	for _, wr := range snap.warnings {
		warnings = append(warnings, wr.String())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"numWaypoints": snap.graph.Len(),
		"numEdges":     snap.graph.EdgeCount(),
		"diagnostics":  diagnostics,
		"warnings":     warnings,
		"loadedAt":     snap.loadedAt.UTC().Format(time.RFC3339),
	})
}

// GET /health - Health check endpoint
func (s *server) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()

	body := map[string]interface{}{
		"status": "ready",
		"hasMap": snap != nil,
	}
	if snap == nil {
		body["status"] = "waiting for map"
	} else {
		body["numWaypoints"] = snap.graph.Len()
		body["numEdges"] = snap.graph.EdgeCount()
		body["loadedAt"] = snap.loadedAt.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, body)
}

// requireMap writes a 503 when no map has been loaded yet.
func (s *server) requireMap(w http.ResponseWriter) (*mapSnapshot, bool) {
	snap := s.snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "Map not loaded. Fix the map file and call /reload")
		return nil, false
	}
	return snap, true
}

func decodeRequest(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %v", err)
	}
	if err := validate.Struct(v); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid request: %s fails %s", fieldErrs[0].Field(), fieldErrs[0].Tag())
		}
		return fmt.Errorf("invalid request: %v", err)
	}
	return nil
}

func floatParams(r *http.Request, names ...string) ([]float64, error) {
	q := r.URL.Query()
	vals := make([]float64, len(names))
	for i, name := range names {
		raw := q.Get(name)
		if raw == "" {
			return nil, fmt.Errorf("missing query parameter %q", name)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("query parameter %q must be a finite number", name)
		}
		vals[i] = f
	}
	return vals, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
