package navgraph_test

import (
	"bytes"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"indoor-navigator/internal/navgraph"
)

func hallway() navgraph.Records {
	return navgraph.Records{
		Waypoints: []navgraph.WaypointRecord{
			{ID: "JB-3-HW-CENTER", X: 50, Y: 20, Descriptor: "You are in the main hallway.",
				Fingerprint: []navgraph.SignalSample{{BeaconID: "C0:98:E5:54:00:01", RSSI: -65}}},
			{ID: "JB-355", X: 50, Y: 35, Descriptor: "You are outside room 355.",
				Fingerprint: []navgraph.SignalSample{{BeaconID: "C0:98:E5:54:00:01", RSSI: -58}}},
		},
		Connections: []navgraph.ConnectionRecord{
			{From: "JB-3-HW-CENTER", To: "JB-355", Distance: 15},
			{From: "JB-355", To: "JB-3-HW-CENTER", Distance: 15},
		},
	}
}

func TestGraph_WaypointLookup(t *testing.T) {
	g, diags := navgraph.Build(hallway())
	require.Empty(t, diags)

	wp, ok := g.Waypoint("JB-355")
	require.True(t, ok)
	assert.Equal(t, "You are outside room 355.", wp.Descriptor)
	assert.Equal(t, navgraph.Coordinates{X: 50, Y: 35}, wp.Coordinates)

	rssi, ok := wp.Fingerprint.RSSI("C0:98:E5:54:00:01")
	require.True(t, ok)
	assert.Equal(t, -58, rssi)

	_, ok = g.Waypoint("JB-999")
	assert.False(t, ok)
}

func TestGraph_Neighbors(t *testing.T) {
	g, _ := navgraph.Build(hallway())

	assert.Equal(t, []navgraph.Neighbor{{ID: "JB-355", Weight: 15}}, g.Neighbors("JB-3-HW-CENTER"))
	assert.Empty(t, g.Neighbors("JB-999"))
	assert.Equal(t, 2, g.EdgeCount())
}

func TestGraph_NeighborsAreCopies(t *testing.T) {
	g, _ := navgraph.Build(hallway())

	n := g.Neighbors("JB-355")
	n[0].Weight = 1000

	assert.Equal(t, 15.0, g.Neighbors("JB-355")[0].Weight)
}

func TestGraph_WaypointsKeepDeclarationOrder(t *testing.T) {
	src := navgraph.Records{Waypoints: []navgraph.WaypointRecord{
		{ID: "z"}, {ID: "a"}, {ID: "m"},
	}}
	g, _ := navgraph.Build(src)

	for i := 0; i < 3; i++ {
		ids := make([]string, 0, 3)
		for _, wp := range g.Waypoints() {
			ids = append(ids, wp.ID)
		}
		assert.Equal(t, []string{"z", "a", "m"}, ids)
	}
}

func TestGraph_NilIsEmpty(t *testing.T) {
	var g *navgraph.Graph

	_, ok := g.Waypoint("A")
	assert.False(t, ok)
	assert.Empty(t, g.Waypoints())
	assert.Empty(t, g.Neighbors("A"))
	assert.Zero(t, g.Len())
	assert.Zero(t, g.EdgeCount())
	assert.Empty(t, g.Segments())
}

func TestBuild_DropsUnknownSource(t *testing.T) {
	src := hallway()
	src.Connections = append(src.Connections, navgraph.ConnectionRecord{From: "GHOST", To: "JB-355", Distance: 3})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	g, diags := navgraph.Build(src, navgraph.WithLogger(logger))

	require.Len(t, diags, 1)
	assert.Equal(t, navgraph.UnknownSource, diags[0].Kind)
	assert.Equal(t, "GHOST->JB-355", diags[0].Subject)
	assert.Equal(t, 2, g.EdgeCount())
	assert.Empty(t, g.Neighbors("GHOST"))
	assert.Contains(t, buf.String(), "map_record_skipped")
	assert.Contains(t, buf.String(), "unknown_source")
}

func TestBuild_KeepsDanglingTarget(t *testing.T) {
	src := hallway()
	src.Connections = append(src.Connections, navgraph.ConnectionRecord{From: "JB-355", To: "STAIRS", Distance: 4})

	g, diags := navgraph.Build(src)

	assert.Empty(t, diags)
	assert.Contains(t, g.Neighbors("JB-355"), navgraph.Neighbor{ID: "STAIRS", Weight: 4})
	_, ok := g.Waypoint("STAIRS")
	assert.False(t, ok)
}

func TestBuild_DuplicateWaypointKeepsFirst(t *testing.T) {
	src := navgraph.Records{Waypoints: []navgraph.WaypointRecord{
		{ID: "A", X: 1, Descriptor: "first"},
		{ID: "A", X: 2, Descriptor: "second"},
	}}

	g, diags := navgraph.Build(src)

	require.Len(t, diags, 1)
	assert.Equal(t, navgraph.DuplicateWaypoint, diags[0].Kind)
	wp, _ := g.Waypoint("A")
	assert.Equal(t, "first", wp.Descriptor)
	assert.Equal(t, 1, g.Len())
}

func TestBuild_DuplicateBeaconKeepsFirst(t *testing.T) {
	src := navgraph.Records{Waypoints: []navgraph.WaypointRecord{{
		ID: "A",
		Fingerprint: []navgraph.SignalSample{
			{BeaconID: "b1", RSSI: -60},
			{BeaconID: "b1", RSSI: -90},
			{BeaconID: "b2", RSSI: -70},
		},
	}}}

	g, diags := navgraph.Build(src)

	require.Len(t, diags, 1)
	assert.Equal(t, navgraph.DuplicateBeacon, diags[0].Kind)
	wp, _ := g.Waypoint("A")
	assert.Equal(t, 2, wp.Fingerprint.Len())
	rssi, _ := wp.Fingerprint.RSSI("b1")
	assert.Equal(t, -60, rssi)
}

func TestBuild_RejectsInvalidDistance(t *testing.T) {
	src := hallway()
	src.Connections = append(src.Connections,
		navgraph.ConnectionRecord{From: "JB-355", To: "JB-3-HW-CENTER", Distance: -1},
		navgraph.ConnectionRecord{From: "JB-355", To: "JB-3-HW-CENTER", Distance: math.NaN()},
	)

	g, diags := navgraph.Build(src)

	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, navgraph.InvalidDistance, d.Kind)
	}
	assert.Len(t, g.Neighbors("JB-355"), 1)
}

func TestGraph_Segments(t *testing.T) {
	src := hallway()
	src.Waypoints = append(src.Waypoints, navgraph.WaypointRecord{ID: "JB-360", X: 60, Y: 35})
	src.Connections = append(src.Connections,
		navgraph.ConnectionRecord{From: "JB-355", To: "JB-360", Distance: 10},
		navgraph.ConnectionRecord{From: "JB-360", To: "NOWHERE", Distance: 1},
	)
	g, _ := navgraph.Build(src)

	segments := g.Segments()

	require.Len(t, segments, 2)
	assert.Equal(t, "JB-3-HW-CENTER", segments[0].From)
	assert.True(t, segments[0].Bidirectional)
	assert.Equal(t, "JB-360", segments[1].To)
	assert.False(t, segments[1].Bidirectional)
}

func TestGraph_Bound(t *testing.T) {
	g, _ := navgraph.Build(hallway())

	b := g.Bound()

	assert.Equal(t, 50.0, b.Min.X())
	assert.Equal(t, 20.0, b.Min.Y())
	assert.Equal(t, 35.0, b.Max.Y())
}
