package main

import (
	"log/slog"
	"math"
	"time"

	"indoor-navigator/internal/guidance"
	"indoor-navigator/internal/navgraph"
)

// walkEvent is a non-silent cue produced during a simulated walk.
type walkEvent struct {
	Elapsed  time.Duration
	Position navgraph.Coordinates
	Cue      guidance.Cue
}

// walk samples the route polyline every step units. The walker keeps the
// previous heading for the first sample after a corner, the way a person
// only turns once told to.
func walk(g *navgraph.Graph, path []string, step float64) []guidance.Pose {
	coords := make([]navgraph.Coordinates, 0, len(path))
	for _, id := range path {
		if wp, ok := g.Waypoint(id); ok {
			coords = append(coords, wp.Coordinates)
		}
	}
	if len(coords) == 0 {
		return nil
	}

	heading := 0.0
	for i := 1; i < len(coords); i++ {
		if coords[i] != coords[0] {
			heading = coords[0].Bearing(coords[i])
			break
		}
	}

	poses := []guidance.Pose{{Position: coords[0], Heading: heading}}
	for i := 1; i < len(coords); i++ {
		a, b := coords[i-1], coords[i]
		leg := a.Distance(b)
		if leg == 0 {
			continue
		}
		n := int(math.Ceil(leg / step))
		for s := 1; s <= n; s++ {
			f := float64(s) / float64(n)
			p := navgraph.Coordinates{X: a.X + (b.X-a.X)*f, Y: a.Y + (b.Y-a.Y)*f}
			poses = append(poses, guidance.Pose{Position: p, Heading: heading})
			heading = a.Bearing(b)
		}
	}
	return poses
}

// simulate feeds the sampled walk to a Navigator on a fake clock and returns
// every cue it announces. Once the last sample is reached the walker stands
// still until the arrival is announced.
func simulate(g *navgraph.Graph, path []string, cfg guidance.Config, step float64, interval time.Duration, logger *slog.Logger) []walkEvent {
	poses := walk(g, path, step)
	if len(poses) == 0 {
		return nil
	}

	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	now := start
	nav := guidance.NewNavigator(g, path, cfg,
		guidance.WithClock(func() time.Time { return now }),
		guidance.WithLogger(logger),
	)

	var events []walkEvent
	record := func(pose guidance.Pose) {
		if cue := nav.Update(pose); cue.Kind != guidance.Silent {
			events = append(events, walkEvent{Elapsed: now.Sub(start), Position: pose.Position, Cue: cue})
		}
		now = now.Add(interval)
	}

	for _, pose := range poses {
		record(pose)
	}
	// Checkpoints are consumed one per update, so standing still may take a
	// few more updates before the arrival fires.
	last := poses[len(poses)-1]
	for i := 0; i < len(path)+1 && !nav.Arrived(); i++ {
		record(last)
	}
	return events
}
