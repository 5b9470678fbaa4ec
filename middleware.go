package main

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"indoor-navigator/internal/logging"
)

// corsMiddleware adds CORS headers to allow frontend requests
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

const maxRequestIDLen = 64

// sanitizeRequestID keeps alphanumerics, dash, underscore and dot.
func sanitizeRequestID(id string) string {
	var b strings.Builder
	b.Grow(len(id))
	for _, c := range id {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '-' || c == '_' || c == '.' {
			b.WriteRune(c)
		}
	}
	out := b.String()
	if len(out) > maxRequestIDLen {
		out = out[:maxRequestIDLen]
	}
	return out
}

// requestIDMiddleware echoes the caller's X-Request-ID, after sanitizing it,
// or assigns a new one.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeRequestID(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// instrument counts requests per route. Unknown paths share one label so
// scanners cannot blow up the series count.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := logging.NewStatusWriter(w)
		start := time.Now()
		next.ServeHTTP(sw, r)

		path := r.URL.Path
		if _, ok := knownPaths[path]; !ok {
			path = "other"
		}
		s.metrics.RecordHTTPRequest(r.Method, path, strconv.Itoa(sw.Status), time.Since(start))
	})
}
