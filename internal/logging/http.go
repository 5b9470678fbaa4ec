package logging

import (
	"log/slog"
	"net/http"
	"time"
)

// StatusWriter wraps a ResponseWriter to capture the status code and the
// number of bytes written.
type StatusWriter struct {
	http.ResponseWriter
	Status int
	Bytes  int
}

// NewStatusWriter wraps w with a 200 default status.
func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	return &StatusWriter{ResponseWriter: w, Status: http.StatusOK}
}

func (w *StatusWriter) WriteHeader(code int) {
	w.Status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.Bytes += n
	return n, err
}

// AccessMiddleware logs one http_access event per request at debug level.
// Request bodies are never read.
func AccessMiddleware(l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw, ok := w.(*StatusWriter)
			if !ok {
				sw = NewStatusWriter(w)
			}
			start := time.Now()
			next.ServeHTTP(sw, r)
			l.Debug("http_access",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.Status,
				"bytes", sw.Bytes,
				"duration_ms", time.Since(start).Milliseconds(),
				"ip", r.RemoteAddr,
				"request_id", w.Header().Get("X-Request-ID"),
			)
		})
	}
}
