// Package guidance turns a route into spoken-style walking instructions.
//
// Directions produces the whole list up front from the map geometry;
// Navigator tracks a walker along the route and emits one cue at a time.
// Angles follow the map frame: radians, counter-clockwise from +X, so a
// positive turn is a left turn.
package guidance

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"

	"indoor-navigator/internal/navgraph"
)

// ErrUnknownWaypoint is returned when a route names a waypoint the graph
// does not have.
var ErrUnknownWaypoint = errors.New("unknown waypoint")

// Maneuver is what the walker does at a step.
type Maneuver string

const (
	Depart   Maneuver = "depart"
	Left     Maneuver = "left"
	Right    Maneuver = "right"
	Straight Maneuver = "straight"
	Arrive   Maneuver = "arrive"
)

// Step is one instruction of a route.
type Step struct {
	Maneuver Maneuver `json:"maneuver"`
	At       string   `json:"at"`
	Toward   string   `json:"toward,omitempty"`
	// Distance walked along the route since the previous step.
	Distance float64 `json:"distance"`
	// Angle is the signed change of heading at this step, zero for depart
	// and arrive.
	Angle float64 `json:"angle"`
	Cue   string  `json:"cue,omitempty"`
}

// Options tune Directions. Zero fields fall back to the defaults.
type Options struct {
	// Tolerance is the Douglas-Peucker distance below which an intermediate
	// waypoint counts as lying on a straight stretch.
	Tolerance float64
	// TurnThreshold is the smallest heading change, in radians, reported as
	// a turn rather than straight on.
	TurnThreshold float64
}

const (
	DefaultTolerance     = 0.5
	DefaultTurnThreshold = 0.35 // about 20 degrees
)

func (o Options) withDefaults() Options {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.TurnThreshold <= 0 {
		o.TurnThreshold = DefaultTurnThreshold
	}
	return o
}

// Directions builds the instruction list for path. Waypoints on a straight
// stretch are folded into the surrounding step; every remaining corner
// becomes a left, right or straight step. The list always starts with a
// depart step and ends with an arrive step at the destination.
func Directions(g *navgraph.Graph, path []string, opts Options) ([]Step, error) {
	if len(path) == 0 {
		return nil, nil
	}
	opts = opts.withDefaults()

	waypoints := make([]navgraph.Waypoint, len(path))
	for i, id := range path {
		wp, ok := g.Waypoint(id)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownWaypoint, id)
		}
		waypoints[i] = wp
	}

	last := waypoints[len(waypoints)-1]
	if len(waypoints) == 1 {
		return []Step{{Maneuver: Arrive, At: last.ID, Cue: last.Cue}}, nil
	}

	corners := keptCorners(waypoints, opts.Tolerance)

	steps := make([]Step, 0, len(corners))
	steps = append(steps, Step{
		Maneuver: Depart,
		At:       waypoints[0].ID,
		Toward:   waypoints[corners[1]].ID,
		Cue:      waypoints[0].Cue,
	})

	prev := 0
	for k := 1; k < len(corners)-1; k++ {
		before, at, after := waypoints[corners[k-1]], waypoints[corners[k]], waypoints[corners[k+1]]
		angle := navgraph.NormalizeAngle(
			at.Coordinates.Bearing(after.Coordinates) - before.Coordinates.Bearing(at.Coordinates),
		)

		steps = append(steps, Step{
			Maneuver: classify(angle, opts.TurnThreshold),
			At:       at.ID,
			Toward:   after.ID,
			Distance: walked(waypoints, prev, corners[k]),
			Angle:    angle,
			Cue:      at.Cue,
		})
		prev = corners[k]
	}

	steps = append(steps, Step{
		Maneuver: Arrive,
		At:       last.ID,
		Distance: walked(waypoints, prev, len(waypoints)-1),
		Cue:      last.Cue,
	})
	return steps, nil
}

func classify(angle, threshold float64) Maneuver {
	switch {
	case angle > threshold:
		return Left
	case angle < -threshold:
		return Right
	default:
		return Straight
	}
}

// keptCorners returns the indices of waypoints that survive simplification,
// always including the first and last one. Consecutive waypoints sharing a
// position are collapsed first since they have no bearing between them.
func keptCorners(waypoints []navgraph.Waypoint, tolerance float64) []int {
	distinct := make([]int, 0, len(waypoints))
	ls := make(orb.LineString, 0, len(waypoints))
	for i, wp := range waypoints {
		p := wp.Coordinates.Point()
		if len(ls) > 0 && ls[len(ls)-1].Equal(p) {
			if i == len(waypoints)-1 && len(distinct) > 1 {
				distinct[len(distinct)-1] = i
			}
			continue
		}
		distinct = append(distinct, i)
		ls = append(ls, p)
	}
	if len(ls) <= 2 {
		return []int{0, len(waypoints) - 1}
	}

	// The simplifier keeps an ordered subset of the points; walk both lists
	// together to recover which waypoints those were.
	simplified := simplify.DouglasPeucker(tolerance).LineString(ls.Clone())
	kept := make([]int, 0, len(simplified))
	j := 0
	for _, p := range simplified {
		for j < len(distinct) && !waypoints[distinct[j]].Coordinates.Point().Equal(p) {
			j++
		}
		if j == len(distinct) {
			break
		}
		kept = append(kept, distinct[j])
		j++
	}

	if len(kept) == 0 || kept[0] != 0 {
		kept = append([]int{0}, kept...)
	}
	if kept[len(kept)-1] != len(waypoints)-1 {
		kept = append(kept, len(waypoints)-1)
	}
	return kept
}

func walked(waypoints []navgraph.Waypoint, from, to int) float64 {
	var d float64
	for i := from; i < to; i++ {
		d += waypoints[i].Coordinates.Distance(waypoints[i+1].Coordinates)
	}
	return d
}

// Degrees converts a turn angle to degrees for display.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
