// Package metrics holds the Prometheus instruments of the navigation
// service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the service
type Registry struct {
	// HTTP Metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Map Metrics
	MapWaypoints   prometheus.Gauge
	MapEdges       prometheus.Gauge
	MapDiagnostics prometheus.Gauge
	MapReloads     *prometheus.CounterVec
	MapLoadedAt    prometheus.Gauge

	// Query Metrics
	RoutesTotal        *prometheus.CounterVec
	RouteExplored      prometheus.Histogram
	LocatesTotal       *prometheus.CounterVec
	LocateMatchOverlap prometheus.Histogram
	QueryDuration      *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewRegistry creates a registry with every instrument registered, plus the
// Go runtime and process collectors.
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	r.initHTTPMetrics()
	r.initMapMetrics()
	r.initQueryMetrics()
	return r
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "indoornav_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indoornav_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}

func (r *Registry) initMapMetrics() {
	r.MapWaypoints = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "indoornav_map_waypoints",
		Help: "Waypoints in the active map",
	})
	r.MapEdges = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "indoornav_map_edges",
		Help: "Directed edges in the active map",
	})
	r.MapDiagnostics = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "indoornav_map_diagnostics",
		Help: "Records skipped or altered while building the active map",
	})
	r.MapReloads = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "indoornav_map_reloads_total",
			Help: "Map (re)loads by outcome",
		},
		[]string{"status"},
	)
	r.MapLoadedAt = promauto.With(r.registry).NewGauge(prometheus.GaugeOpts{
		Name: "indoornav_map_loaded_timestamp_seconds",
		Help: "Unix time the active map was loaded",
	})
}

func (r *Registry) initQueryMetrics() {
	r.RoutesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "indoornav_routes_total",
			Help: "Route queries by search status",
		},
		[]string{"status"},
	)
	r.RouteExplored = promauto.With(r.registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "indoornav_route_explored_waypoints",
		Help:    "Waypoints expanded per route query",
		Buckets: []float64{1, 5, 10, 50, 100, 500, 1000, 5000},
	})
	r.LocatesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "indoornav_locates_total",
			Help: "Locate queries by outcome",
		},
		[]string{"status"},
	)
	r.LocateMatchOverlap = promauto.With(r.registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "indoornav_locate_shared_beacons",
		Help:    "Beacons shared between a scan and its best match",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
	})
	r.QueryDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indoornav_query_duration_seconds",
			Help:    "Query execution duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
		[]string{"query_type"},
	)
}

// RecordHTTPRequest records an HTTP request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRoute records a route query
func (r *Registry) RecordRoute(status string, explored int, duration time.Duration) {
	r.RoutesTotal.WithLabelValues(status).Inc()
	r.RouteExplored.Observe(float64(explored))
	r.QueryDuration.WithLabelValues("route").Observe(duration.Seconds())
}

// RecordLocate records a locate query
func (r *Registry) RecordLocate(status string, overlap int, duration time.Duration) {
	r.LocatesTotal.WithLabelValues(status).Inc()
	r.LocateMatchOverlap.Observe(float64(overlap))
	r.QueryDuration.WithLabelValues("locate").Observe(duration.Seconds())
}

// RecordMap publishes the shape of a freshly loaded map.
func (r *Registry) RecordMap(waypoints, edges, diagnostics int, loadedAt time.Time) {
	r.MapWaypoints.Set(float64(waypoints))
	r.MapEdges.Set(float64(edges))
	r.MapDiagnostics.Set(float64(diagnostics))
	r.MapLoadedAt.Set(float64(loadedAt.Unix()))
	r.MapReloads.WithLabelValues("ok").Inc()
}

// RecordMapFailure counts a load that was rejected; the active map stays.
func (r *Registry) RecordMapFailure() {
	r.MapReloads.WithLabelValues("error").Inc()
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}
