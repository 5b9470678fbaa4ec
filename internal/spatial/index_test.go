package spatial_test

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indoor-navigator/internal/navgraph"
	"indoor-navigator/internal/spatial"
)

func corridor(t *testing.T) *spatial.Index {
	t.Helper()
	g, diags := navgraph.Build(navgraph.Records{Waypoints: []navgraph.WaypointRecord{
		{ID: "A", X: 0, Y: 0},
		{ID: "B", X: 10, Y: 20},
		{ID: "C", X: 30, Y: 10},
		{ID: "D", X: 40, Y: 0},
	}})
	require.Empty(t, diags)
	return spatial.New(g)
}

func ids(hits []spatial.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Waypoint.ID
	}
	return out
}

func TestNearest(t *testing.T) {
	idx := corridor(t)

	tests := []struct {
		at   navgraph.Coordinates
		want string
	}{
		{navgraph.Coordinates{X: 1, Y: 1}, "A"},
		{navgraph.Coordinates{X: 12, Y: 18}, "B"},
		{navgraph.Coordinates{X: 29, Y: 9}, "C"},
		{navgraph.Coordinates{X: 100, Y: -5}, "D"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.at), func(t *testing.T) {
			hit, ok := idx.Nearest(tt.at)
			require.True(t, ok)
			assert.Equal(t, tt.want, hit.Waypoint.ID)
		})
	}

	hit, _ := idx.Nearest(navgraph.Coordinates{X: 10, Y: 20})
	assert.Zero(t, hit.Distance)
}

func TestNearest_TieKeepsDeclarationOrder(t *testing.T) {
	g, _ := navgraph.Build(navgraph.Records{Waypoints: []navgraph.WaypointRecord{
		{ID: "west", X: -1}, {ID: "east", X: 1},
	}})
	idx := spatial.New(g)

	hit, ok := idx.Nearest(navgraph.Coordinates{})

	require.True(t, ok)
	assert.Equal(t, "west", hit.Waypoint.ID)
	assert.InDelta(t, 1.0, hit.Distance, 1e-12)
}

func TestNearest_Empty(t *testing.T) {
	idx := spatial.New(nil)

	_, ok := idx.Nearest(navgraph.Coordinates{})

	assert.False(t, ok)
	assert.Zero(t, idx.Len())
	assert.Nil(t, idx.NearestN(navgraph.Coordinates{}, 3))
	assert.Nil(t, idx.QueryRegion(orb.Bound{Max: orb.Point{1, 1}}))
}

func TestNearestN(t *testing.T) {
	idx := corridor(t)

	hits := idx.NearestN(navgraph.Coordinates{X: 35, Y: 5}, 2)

	assert.Equal(t, []string{"C", "D"}, ids(hits), "equally far, declaration order")
	assert.Len(t, idx.NearestN(navgraph.Coordinates{}, 10), 4)
	assert.Nil(t, idx.NearestN(navgraph.Coordinates{}, 0))
}

func TestNearestN_TiesInDeclarationOrder(t *testing.T) {
	records := navgraph.Records{}
	for i := range 60 {
		wp := navgraph.WaypointRecord{ID: fmt.Sprintf("W%02d", i), X: 1}
		if i%2 == 1 {
			wp.X, wp.Y = 0, -1
		}
		records.Waypoints = append(records.Waypoints, wp)
	}
	records.Waypoints = append(records.Waypoints, navgraph.WaypointRecord{ID: "FAR", X: 5})
	g, _ := navgraph.Build(records)
	idx := spatial.New(g)

	hits := idx.NearestN(navgraph.Coordinates{}, 3)

	assert.Equal(t, []string{"W00", "W01", "W02"}, ids(hits))
	for _, h := range hits {
		assert.Equal(t, 1.0, h.Distance)
	}
	nearest, _ := idx.Nearest(navgraph.Coordinates{})
	assert.Equal(t, hits[0].Waypoint.ID, nearest.Waypoint.ID)
	assert.Len(t, idx.NearestN(navgraph.Coordinates{}, 100), 61)
}

func TestWithin(t *testing.T) {
	idx := corridor(t)

	hits := idx.Within(navgraph.Coordinates{X: 35, Y: 5}, 8)
	assert.Equal(t, []string{"C", "D"}, ids(hits))

	// exactly on the radius
	hits = idx.Within(navgraph.Coordinates{X: 0, Y: 10}, 10)
	assert.Equal(t, []string{"A"}, ids(hits))

	assert.Empty(t, idx.Within(navgraph.Coordinates{X: 20, Y: 40}, 1))
	assert.Nil(t, idx.Within(navgraph.Coordinates{}, -1))
}

func TestQueryRegion(t *testing.T) {
	idx := corridor(t)

	got := idx.QueryRegion(orb.Bound{Min: orb.Point{5, 0}, Max: orb.Point{40, 20}})

	require.Len(t, got, 3)
	assert.Equal(t, "B", got[0].ID)
	assert.Equal(t, "C", got[1].ID)
	assert.Equal(t, "D", got[2].ID)
}

func TestRouteBound(t *testing.T) {
	b := spatial.RouteBound(navgraph.Coordinates{X: 10, Y: 0}, navgraph.Coordinates{X: 0, Y: 5}, 1)

	assert.Equal(t, orb.Point{-1, -1}, b.Min)
	assert.Equal(t, orb.Point{11, 6}, b.Max)
}

func TestIndex_ManyWaypoints(t *testing.T) {
	records := navgraph.Records{}
	for i := range 200 {
		records.Waypoints = append(records.Waypoints, navgraph.WaypointRecord{
			ID: fmt.Sprintf("RP-%03d", i),
			X:  float64(i % 20),
			Y:  float64(i / 20),
		})
	}
	g, _ := navgraph.Build(records)
	idx := spatial.New(g)

	hit, ok := idx.Nearest(navgraph.Coordinates{X: 7.2, Y: 3.9})

	require.True(t, ok)
	assert.Equal(t, "RP-087", hit.Waypoint.ID)
	assert.Equal(t, 200, idx.Len())
	assert.Len(t, idx.QueryRegion(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 1}}), 10)
}
