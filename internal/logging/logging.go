// Package logging sets up the process-wide slog logger from LOG_LEVEL and
// LOG_FORMAT, and provides the HTTP access log middleware.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

var defaultLogger *slog.Logger

// ParseLevel maps debug, info, warn and error (any case) to a slog level.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger writing to w, as JSON when format is "json" and as
// key=value text otherwise.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if strings.EqualFold(format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h)
}

// Setup builds the default logger on stderr and installs it as slog's
// default.
func Setup(level, format string) *slog.Logger {
	defaultLogger = New(os.Stderr, level, format)
	slog.SetDefault(defaultLogger)
	return defaultLogger
}

// L returns the default logger, setting it up from the environment on first
// use.
func L() *slog.Logger {
	if defaultLogger == nil {
		return Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
	}
	return defaultLogger
}
