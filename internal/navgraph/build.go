package navgraph

import (
	"fmt"
	"log/slog"
	"math"
)

// WaypointRecord is a waypoint as declared by a map source.
type WaypointRecord struct {
	ID          string
	X, Y        float64
	Descriptor  string
	Cue         string
	Fingerprint []SignalSample
}

// ConnectionRecord is a directed connection as declared by a map source.
type ConnectionRecord struct {
	From     string
	To       string
	Distance float64
}

// Source supplies the records a graph is built from.
type Source interface {
	WaypointRecords() []WaypointRecord
	ConnectionRecords() []ConnectionRecord
}

// Records is a Source backed by plain slices.
type Records struct {
	Waypoints   []WaypointRecord
	Connections []ConnectionRecord
}

func (r Records) WaypointRecords() []WaypointRecord     { return r.Waypoints }
func (r Records) ConnectionRecords() []ConnectionRecord { return r.Connections }

// DiagnosticKind classifies a record Build accepted with changes or skipped.
type DiagnosticKind int

const (
	// DuplicateWaypoint: a later waypoint reused an id; the first one is kept.
	DuplicateWaypoint DiagnosticKind = iota + 1
	// DuplicateBeacon: a fingerprint listed a beacon twice; the first reading is kept.
	DuplicateBeacon
	// UnknownSource: a connection starts at an undeclared waypoint and was dropped.
	UnknownSource
	// InvalidDistance: a connection had a negative or non-finite distance and was dropped.
	InvalidDistance
)

func (k DiagnosticKind) String() string {
	switch k {
	case DuplicateWaypoint:
		return "duplicate_waypoint"
	case DuplicateBeacon:
		return "duplicate_beacon"
	case UnknownSource:
		return "unknown_source"
	case InvalidDistance:
		return "invalid_distance"
	default:
		return "unknown"
	}
}

// Diagnostic reports a problem Build recovered from.
type Diagnostic struct {
	Kind    DiagnosticKind
	Subject string // waypoint id, or "from->to" for connections
	Detail  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s: %s", d.Kind, d.Subject, d.Detail)
}

// Option configures Build.
type Option func(*buildOptions)

type buildOptions struct {
	logger *slog.Logger
}

// WithLogger emits every diagnostic as a warning on l in addition to
// returning it. Build is silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(o *buildOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// Build constructs a graph from src. It never fails: records it cannot use
// are skipped and reported as diagnostics.
//
// A connection is dropped when its From id is not a declared waypoint. Its To
// id is not checked, so edges may point at ids that have no waypoint;
// searches treat such neighbours as dead ends.
func Build(src Source, opts ...Option) (*Graph, []Diagnostic) {
	cfg := buildOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}

	g := &Graph{
		index:     make(map[string]int),
		adjacency: make(map[string][]Neighbor),
	}
	var diags []Diagnostic
	report := func(d Diagnostic) {
		diags = append(diags, d)
		cfg.logger.Warn("map_record_skipped",
			"kind", d.Kind.String(),
			"subject", d.Subject,
			"detail", d.Detail,
		)
	}

	// 1. Waypoints
	for _, rec := range src.WaypointRecords() {
		if _, exists := g.index[rec.ID]; exists {
			report(Diagnostic{Kind: DuplicateWaypoint, Subject: rec.ID, Detail: "waypoint id declared more than once"})
			continue
		}

		fp, dropped := NewFingerprint(rec.Fingerprint)
		for _, beacon := range dropped {
			report(Diagnostic{Kind: DuplicateBeacon, Subject: rec.ID, Detail: "beacon " + beacon + " listed more than once"})
		}

		g.index[rec.ID] = len(g.waypoints)
		g.waypoints = append(g.waypoints, Waypoint{
			ID:          rec.ID,
			Coordinates: Coordinates{X: rec.X, Y: rec.Y},
			Descriptor:  rec.Descriptor,
			Cue:         rec.Cue,
			Fingerprint: fp,
		})
	}

	// 2. Connections
	for _, rec := range src.ConnectionRecords() {
		subject := rec.From + "->" + rec.To
		if _, ok := g.index[rec.From]; !ok {
			report(Diagnostic{Kind: UnknownSource, Subject: subject, Detail: "from id is not a declared waypoint"})
			continue
		}
		if rec.Distance < 0 || math.IsNaN(rec.Distance) || math.IsInf(rec.Distance, 0) {
			report(Diagnostic{Kind: InvalidDistance, Subject: subject, Detail: fmt.Sprintf("distance %v", rec.Distance)})
			continue
		}
		g.adjacency[rec.From] = append(g.adjacency[rec.From], Neighbor{ID: rec.To, Weight: rec.Distance})
		g.edges++
	}

	return g, diags
}
