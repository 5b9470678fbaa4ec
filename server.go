package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"indoor-navigator/internal/config"
	"indoor-navigator/internal/logging"
	"indoor-navigator/internal/mapfile"
	"indoor-navigator/internal/metrics"
	"indoor-navigator/internal/navgraph"
	"indoor-navigator/internal/spatial"
)

// mapSnapshot is one loaded map. It is never modified after install, so
// handlers can use it without locking.
type mapSnapshot struct {
	graph       *navgraph.Graph
	index       *spatial.Index
	diagnostics []navgraph.Diagnostic
	warnings    []mapfile.Warning
	loadedAt    time.Time
}

type server struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Registry

	// load reads the map sources; replaced in tests.
	load func() (*mapfile.Document, []mapfile.Warning, error)

	current  atomic.Pointer[mapSnapshot]
	reloadMu sync.Mutex
}

func newServer(cfg config.Config, logger *slog.Logger, reg *metrics.Registry) *server {
	s := &server{cfg: cfg, log: logger, metrics: reg}
	s.load = func() (*mapfile.Document, []mapfile.Warning, error) {
		return mapfile.Load(cfg.MapPath, cfg.RadioMapPath)
	}
	return s
}

// snapshot returns the active map, or nil before the first successful load.
func (s *server) snapshot() *mapSnapshot {
	return s.current.Load()
}

// reload reads the map again and swaps it in. On failure the active map is
// left untouched.
func (s *server) reload() (*mapSnapshot, error) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	doc, warnings, err := s.load()
	if err != nil {
		s.metrics.RecordMapFailure()
		s.log.Error("map_load_failed", "path", s.cfg.MapPath, "error", err)
		return nil, err
	}
	return s.install(doc, warnings), nil
}

func (s *server) install(src navgraph.Source, warnings []mapfile.Warning) *mapSnapshot {
	g, diags := navgraph.Build(src, navgraph.WithLogger(s.log))
	for _, w := range warnings {
		s.log.Warn("radio_map_record_skipped", "subject", w.Subject, "detail", w.Detail)
	}

	snap := &mapSnapshot{
		graph:       g,
		index:       spatial.New(g),
		diagnostics: diags,
		warnings:    warnings,
		loadedAt:    time.Now(),
	}
	s.current.Store(snap)

	s.metrics.RecordMap(g.Len(), g.EdgeCount(), len(diags), snap.loadedAt)
	s.log.Info("map_loaded",
		"path", s.cfg.MapPath,
		"waypoints", g.Len(),
		"edges", g.EdgeCount(),
		"diagnostics", len(diags),
		"warnings", len(warnings),
	)
	return snap
}

// handler is the full middleware chain around the routes.
func (s *server) handler() http.Handler {
	var h http.Handler = s.routes()
	h = corsMiddleware(s.cfg.CORSOrigin, h)
	h = logging.AccessMiddleware(s.log)(h)
	h = s.instrument(h)
	h = requestIDMiddleware(h)
	return h
}

// run serves until ctx is cancelled or SIGINT/SIGTERM arrives, then drains
// open connections. SIGHUP reloads the map.
func (s *server) run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:           s.cfg.Addr,
		Handler:        s.handler(),
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server_starting", "addr", s.cfg.Addr, "cors_origin", s.cfg.CORSOrigin)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
			return s.shutdown(httpServer, "context")
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				s.log.Info("reload_requested", "signal", sig.String())
				_, _ = s.reload()
				continue
			}
			return s.shutdown(httpServer, sig.String())
		}
	}
}

func (s *server) shutdown(httpServer *http.Server, reason string) error {
	s.log.Info("shutdown_started", "reason", reason, "timeout", s.cfg.ShutdownTimeout.String())

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		s.log.Error("shutdown_failed", "error", err)
		return err
	}
	s.log.Info("shutdown_complete")
	return nil
}
