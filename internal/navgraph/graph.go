package navgraph

import (
	"slices"

	"github.com/paulmach/orb"
)

// Waypoint is a named location in the indoor map (a reference point).
type Waypoint struct {
	ID          string
	Coordinates Coordinates
	Descriptor  string
	Cue         string // audio cue played on arrival, may be empty
	Fingerprint Fingerprint
}

// Neighbor is the target and walking distance of an outgoing edge.
type Neighbor struct {
	ID     string
	Weight float64
}

// Graph holds the waypoints of a map and the directed edges between them.
// It is read-only once Build returns, so concurrent queries need no locking.
// A nil *Graph behaves like an empty graph.
type Graph struct {
	waypoints []Waypoint
	index     map[string]int
	adjacency map[string][]Neighbor
	edges     int
}

// Waypoint looks up a waypoint by id.
func (g *Graph) Waypoint(id string) (Waypoint, bool) {
	if g == nil {
		return Waypoint{}, false
	}
	i, ok := g.index[id]
	if !ok {
		return Waypoint{}, false
	}
	return g.waypoints[i], true
}

// Waypoints returns every waypoint in the order it was declared.
func (g *Graph) Waypoints() []Waypoint {
	if g == nil {
		return nil
	}
	return slices.Clone(g.waypoints)
}

// Neighbors returns the outgoing edges of id in declaration order. Unknown ids
// and waypoints without edges both yield an empty slice; pair with Waypoint
// when the difference matters.
func (g *Graph) Neighbors(id string) []Neighbor {
	if g == nil {
		return nil
	}
	return slices.Clone(g.adjacency[id])
}

// Len returns the number of waypoints.
func (g *Graph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.waypoints)
}

// EdgeCount returns the number of directed edges kept by Build.
func (g *Graph) EdgeCount() int {
	if g == nil {
		return 0
	}
	return g.edges
}

// Bound returns the bounding box of all waypoint coordinates.
func (g *Graph) Bound() orb.Bound {
	cs := make([]Coordinates, 0, g.Len())
	for _, wp := range g.Waypoints() {
		cs = append(cs, wp.Coordinates)
	}
	return Bound(cs)
}

// Segment is an edge drawn between two known waypoints.
type Segment struct {
	From, To      string
	Start, End    Coordinates
	Bidirectional bool
}

// Segments returns the edges as line segments for visualization. A pair of
// opposite edges collapses into one bidirectional segment; edges pointing at
// an undeclared waypoint are left out since they have no end point.
func (g *Graph) Segments() []Segment {
	if g == nil {
		return nil
	}

	type pair struct{ a, b string }
	seen := make(map[pair]int)
	segments := make([]Segment, 0, g.edges)

	for _, wp := range g.waypoints {
		for _, n := range g.adjacency[wp.ID] {
			to, ok := g.Waypoint(n.ID)
			if !ok {
				continue
			}
			if i, ok := seen[pair{n.ID, wp.ID}]; ok {
				segments[i].Bidirectional = true
				continue
			}
			if _, ok := seen[pair{wp.ID, n.ID}]; ok {
				continue
			}
			seen[pair{wp.ID, n.ID}] = len(segments)
			segments = append(segments, Segment{
				From:  wp.ID,
				To:    n.ID,
				Start: wp.Coordinates,
				End:   to.Coordinates,
			})
		}
	}

	return segments
}
