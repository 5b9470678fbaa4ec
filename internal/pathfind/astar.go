// Package pathfind computes walking routes between waypoints with A*.
//
// The heuristic is the straight-line distance to the destination. It never
// overestimates as long as every edge weight is at least the straight-line
// distance between its endpoints, which holds for corridor walking distances.
// Maps that violate this still get a route, but it may not be the shortest.
// The condition is not checked at runtime.
package pathfind

import (
	"container/heap"
	"math"
	"slices"

	"indoor-navigator/internal/navgraph"
)

// Status tells why a search ended.
type Status int

const (
	Found Status = iota
	UnknownStart
	UnknownEnd
	Unreachable
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case UnknownStart:
		return "unknown_start"
	case UnknownEnd:
		return "unknown_end"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Result is the outcome of a search. Path is nil unless Status is Found.
type Result struct {
	Path     []string
	Cost     float64
	Explored int // waypoints expanded
	Status   Status
}

// Heuristic estimates the remaining cost between two positions.
type Heuristic func(from, to navgraph.Coordinates) float64

// Euclidean is the default heuristic.
func Euclidean(from, to navgraph.Coordinates) float64 {
	return from.Distance(to)
}

// Zero turns the search into Dijkstra's algorithm.
func Zero(_, _ navgraph.Coordinates) float64 {
	return 0
}

// Option configures a search.
type Option func(*options)

type options struct {
	heuristic Heuristic
}

// WithHeuristic replaces the straight-line heuristic.
func WithHeuristic(h Heuristic) Option {
	return func(o *options) {
		if h != nil {
			o.heuristic = h
		}
	}
}

// FindPath returns the lowest-cost sequence of waypoint ids from start to end.
// It reports false when either id is unknown or no directed path exists.
func FindPath(g *navgraph.Graph, start, end string, opts ...Option) ([]string, bool) {
	res := Search(g, start, end, opts...)
	return res.Path, res.Status == Found
}

// Search runs A* from start to end over the directed edges of g.
//
// Among entries with equal f = g + h the one pushed first is expanded first,
// and a path only replaces another when it is strictly cheaper, so the result
// is the same on every run.
func Search(g *navgraph.Graph, start, end string, opts ...Option) Result {
	cfg := options{heuristic: Euclidean}
	for _, opt := range opts {
		opt(&cfg)
	}

	startWP, ok := g.Waypoint(start)
	if !ok {
		return Result{Status: UnknownStart}
	}
	endWP, ok := g.Waypoint(end)
	if !ok {
		return Result{Status: UnknownEnd}
	}

	s := &search{
		g:         g,
		goal:      endWP.Coordinates,
		heuristic: cfg.heuristic,
		gScore:    map[string]float64{start: 0},
		cameFrom:  make(map[string]string),
	}
	s.push(start, 0, cfg.heuristic(startWP.Coordinates, endWP.Coordinates))

	for s.open.Len() > 0 {
		current := heap.Pop(&s.open).(*node)

		// Stale entry: a cheaper path to this waypoint was pushed after it.
		if current.G > s.gScore[current.ID] {
			continue
		}
		s.explored++

		if current.ID == end {
			return Result{
				Path:     s.reconstruct(end),
				Cost:     current.G,
				Explored: s.explored,
				Status:   Found,
			}
		}

		s.relax(current)
	}

	return Result{Explored: s.explored, Status: Unreachable}
}

// search holds the mutable state of one A* run.
type search struct {
	g         *navgraph.Graph
	goal      navgraph.Coordinates
	heuristic Heuristic
	open      priorityQueue
	gScore    map[string]float64
	cameFrom  map[string]string
	seq       uint64
	explored  int
}

func (s *search) push(id string, g, h float64) {
	heap.Push(&s.open, &node{ID: id, G: g, F: g + h, seq: s.seq})
	s.seq++
}

// relax offers every outgoing edge of current as a path to its neighbour.
// A neighbour with no waypoint has no coordinates and no edges of its own,
// so it is skipped as a dead end.
func (s *search) relax(current *node) {
	for _, edge := range s.g.Neighbors(current.ID) {
		neighbor, ok := s.g.Waypoint(edge.ID)
		if !ok {
			continue
		}

		tentativeG := current.G + edge.Weight
		if best, seen := s.gScore[edge.ID]; seen && tentativeG >= best {
			continue
		}

		s.gScore[edge.ID] = tentativeG
		s.cameFrom[edge.ID] = current.ID
		s.push(edge.ID, tentativeG, s.heuristic(neighbor.Coordinates, s.goal))
	}
}

func (s *search) reconstruct(end string) []string {
	path := []string{end}
	for current := end; ; {
		prev, ok := s.cameFrom[current]
		if !ok {
			break
		}
		path = append(path, prev)
		current = prev
	}
	slices.Reverse(path)
	return path
}

// Cost sums the edge weights along path. When a waypoint has several edges to
// the same neighbour the cheapest one counts. It reports false if a step has
// no edge in g.
func Cost(g *navgraph.Graph, path []string) (float64, bool) {
	if len(path) == 0 {
		return 0, false
	}
	if _, ok := g.Waypoint(path[0]); !ok {
		return 0, false
	}

	total := 0.0
	for i := 1; i < len(path); i++ {
		step := math.Inf(1)
		for _, n := range g.Neighbors(path[i-1]) {
			if n.ID == path[i] && n.Weight < step {
				step = n.Weight
			}
		}
		if math.IsInf(step, 1) {
			return 0, false
		}
		total += step
	}
	return total, true
}
