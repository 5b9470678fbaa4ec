// Package spatial indexes waypoint coordinates for position queries.
package spatial

import (
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"indoor-navigator/internal/navgraph"
)

// snap widens query rectangles so points lying exactly on the boundary are
// still reported; rtreego treats touching rectangles as disjoint.
const snap = 1e-9

// waypointEntry wraps a waypoint for R-tree storage
type waypointEntry struct {
	waypoint navgraph.Waypoint
	order    int // declaration order, breaks distance ties
	bbox     rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (e *waypointEntry) Bounds() rtreego.Rect {
	return e.bbox
}

// Hit is a waypoint found by a query together with its distance to the
// query point.
type Hit struct {
	Waypoint navgraph.Waypoint
	Distance float64
}

// Index answers nearest-waypoint and region queries over a graph. Like the
// graph it is built from, it is read-only after New.
type Index struct {
	tree *rtreego.Rtree
	size int
}

// New indexes every waypoint of g.
func New(g *navgraph.Graph) *Index {
	waypoints := g.Waypoints()
	objs := make([]rtreego.Spatial, 0, len(waypoints))
	for i, wp := range waypoints {
		objs = append(objs, &waypointEntry{
			waypoint: wp,
			order:    i,
			bbox:     toPoint(wp.Coordinates).ToRect(0),
		})
	}

	return &Index{
		tree: rtreego.NewTree(2, 25, 50, objs...), // 2D, min 25, max 50 entries per node
		size: len(objs),
	}
}

// Len returns the number of indexed waypoints.
func (idx *Index) Len() int {
	return idx.size
}

// Nearest returns the waypoint closest to c. Of several waypoints at the same
// distance the first declared one wins. It reports false on an empty index.
func (idx *Index) Nearest(c navgraph.Coordinates) (Hit, bool) {
	if idx.size == 0 {
		return Hit{}, false
	}

	found := idx.tree.NearestNeighbor(toPoint(c))
	if found == nil {
		return Hit{}, false
	}
	d := c.Distance(found.(*waypointEntry).waypoint.Coordinates)

	// Gather everything at that distance so ties resolve by declaration order
	// instead of tree layout.
	hits := idx.within(c, d)
	if len(hits) == 0 {
		return Hit{Waypoint: found.(*waypointEntry).waypoint, Distance: d}, true
	}
	return hits[0], true
}

// NearestN returns up to k waypoints ordered by distance to c, ties in
// declaration order.
func (idx *Index) NearestN(c navgraph.Coordinates, k int) []Hit {
	if k <= 0 || idx.size == 0 {
		return nil
	}

	// The tree only fixes the k-th distance; which of several tied waypoints
	// it returns depends on its layout.
	var radius float64
	for _, item := range idx.tree.NearestNeighbors(k, toPoint(c)) {
		if item == nil {
			continue
		}
		radius = math.Max(radius, c.Distance(item.(*waypointEntry).waypoint.Coordinates))
	}

	hits := idx.within(c, radius)
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

// Within returns the waypoints no farther than radius from c, nearest first.
func (idx *Index) Within(c navgraph.Coordinates, radius float64) []Hit {
	if radius < 0 || math.IsNaN(radius) {
		return nil
	}
	return idx.within(c, radius)
}

func (idx *Index) within(c navgraph.Coordinates, radius float64) []Hit {
	tol := radius + snap*math.Max(1, radius)
	results := idx.tree.SearchIntersect(toPoint(c).ToRect(tol))

	type ranked struct {
		hit   Hit
		order int
	}
	matches := make([]ranked, 0, len(results))
	for _, item := range results {
		entry := item.(*waypointEntry)
		d := c.Distance(entry.waypoint.Coordinates)
		if d > tol {
			continue
		}
		matches = append(matches, ranked{Hit{Waypoint: entry.waypoint, Distance: d}, entry.order})
	}

	slices.SortFunc(matches, func(a, b ranked) int {
		switch {
		case a.hit.Distance < b.hit.Distance:
			return -1
		case a.hit.Distance > b.hit.Distance:
			return 1
		default:
			return a.order - b.order
		}
	})

	hits := make([]Hit, len(matches))
	for i, m := range matches {
		hits[i] = m.hit
	}
	return hits
}

// QueryRegion returns the waypoints inside the given bounds, in declaration
// order.
func (idx *Index) QueryRegion(b orb.Bound) []navgraph.Waypoint {
	if idx.size == 0 || b.IsEmpty() {
		return nil
	}

	bbox, err := rtreego.NewRectFromPoints(
		rtreego.Point{b.Min.X() - snap, b.Min.Y() - snap},
		rtreego.Point{b.Max.X() + snap, b.Max.Y() + snap},
	)
	if err != nil {
		return nil
	}

	results := idx.tree.SearchIntersect(bbox)
	entries := make([]*waypointEntry, 0, len(results))
	for _, item := range results {
		entries = append(entries, item.(*waypointEntry))
	}
	slices.SortFunc(entries, func(a, b *waypointEntry) int { return a.order - b.order })

	waypoints := make([]navgraph.Waypoint, len(entries))
	for i, e := range entries {
		waypoints[i] = e.waypoint
	}
	return waypoints
}

// RouteBound returns the bounding box of a route between two positions,
// grown by margin on every side.
func RouteBound(start, end navgraph.Coordinates, margin float64) orb.Bound {
	return navgraph.Bound([]navgraph.Coordinates{start, end}).Pad(margin)
}

func toPoint(c navgraph.Coordinates) rtreego.Point {
	return rtreego.Point{c.X, c.Y}
}
