package navgraph

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Coordinates is a position on the floor plan, in the map's planar unit
// (feet or meters, consistent within one map).
type Coordinates struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Point converts the coordinates to an orb point.
func (c Coordinates) Point() orb.Point {
	return orb.Point{c.X, c.Y}
}

// FromPoint converts an orb point back to coordinates.
func FromPoint(p orb.Point) Coordinates {
	return Coordinates{X: p.X(), Y: p.Y()}
}

// Distance calculates Euclidean distance between two points
func (c Coordinates) Distance(other Coordinates) float64 {
	return planar.Distance(c.Point(), other.Point())
}

// Bearing returns the direction of travel from c to other in radians,
// counter-clockwise from the +X axis.
func (c Coordinates) Bearing(other Coordinates) float64 {
	return math.Atan2(other.Y-c.Y, other.X-c.X)
}

// NormalizeAngle wraps an angle in radians into [-π, π].
func NormalizeAngle(angle float64) float64 {
	return math.Remainder(angle, 2*math.Pi)
}

// Bound returns the axis-aligned bounding box of the given coordinates.
func Bound(cs []Coordinates) orb.Bound {
	mp := make(orb.MultiPoint, 0, len(cs))
	for _, c := range cs {
		mp = append(mp, c.Point())
	}
	return mp.Bound()
}
