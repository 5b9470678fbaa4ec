// Package locate matches a live BLE scan against the fingerprints recorded at
// each waypoint.
//
// Distance between a scan and a fingerprint is the Euclidean distance over
// the beacons both of them contain; beacons seen on only one side are
// ignored. A fingerprint sharing no beacon with the scan is infinitely far.
package locate

import (
	"math"
	"slices"

	"indoor-navigator/internal/navgraph"
)

// Scan maps a beacon id to its live RSSI reading.
type Scan map[string]int

// Match is a waypoint scored against a scan.
type Match struct {
	ID       string
	Distance float64
	Overlap  int // beacons shared by the scan and the fingerprint
}

// Matched reports whether at least one beacon was shared. A match without
// overlap carries no positional information.
func (m Match) Matched() bool { return m.Overlap > 0 }

// Distance returns the signal-space distance between fp and scan, and the
// number of beacons the two have in common. With no beacon in common the
// distance is +Inf.
func Distance(fp navgraph.Fingerprint, scan Scan) (float64, int) {
	var sum int64
	shared := 0
	for beacon, live := range scan {
		stored, ok := fp.RSSI(beacon)
		if !ok {
			continue
		}
		diff := int64(stored - live)
		sum += diff * diff
		shared++
	}

	if shared == 0 {
		return math.Inf(1), 0
	}
	return math.Sqrt(float64(sum)), shared
}

// FindClosest returns the id of the waypoint whose fingerprint is nearest to
// scan. It reports false for an empty scan or a graph without waypoints.
//
// Waypoints are compared in declaration order and only a strictly smaller
// distance replaces the current best, so the first of several equal matches
// wins. When no fingerprint shares a beacon with the scan the first waypoint
// is returned; use Locate to tell that case apart.
func FindClosest(g *navgraph.Graph, scan Scan) (string, bool) {
	m, ok := Locate(g, scan)
	return m.ID, ok
}

// Locate is FindClosest with the winning distance and overlap attached.
func Locate(g *navgraph.Graph, scan Scan) (Match, bool) {
	if len(scan) == 0 {
		return Match{}, false
	}

	var best Match
	found := false
	for _, wp := range g.Waypoints() {
		d, shared := Distance(wp.Fingerprint, scan)
		if !found || d < best.Distance {
			best = Match{ID: wp.ID, Distance: d, Overlap: shared}
			found = true
		}
	}
	return best, found
}

// Rank returns up to k waypoints sharing at least one beacon with scan,
// nearest first. Equal distances keep declaration order. k <= 0 returns
// every matching waypoint.
func Rank(g *navgraph.Graph, scan Scan, k int) []Match {
	if len(scan) == 0 {
		return nil
	}

	var matches []Match
	for _, wp := range g.Waypoints() {
		d, shared := Distance(wp.Fingerprint, scan)
		if shared == 0 {
			continue
		}
		matches = append(matches, Match{ID: wp.ID, Distance: d, Overlap: shared})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		default:
			return 0
		}
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// Estimate averages the coordinates of the k nearest matches, the k-NN
// position estimate. It reports false when no waypoint shares a beacon with
// the scan.
func Estimate(g *navgraph.Graph, scan Scan, k int) (navgraph.Coordinates, []Match, bool) {
	if k < 1 {
		k = 1
	}
	matches := Rank(g, scan, k)
	if len(matches) == 0 {
		return navgraph.Coordinates{}, nil, false
	}

	var sumX, sumY float64
	for _, m := range matches {
		wp, _ := g.Waypoint(m.ID)
		sumX += wp.Coordinates.X
		sumY += wp.Coordinates.Y
	}
	n := float64(len(matches))
	return navgraph.Coordinates{X: sumX / n, Y: sumY / n}, matches, true
}
