package mapfile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"indoor-navigator/internal/navgraph"
)

// GeoJSON exports a built graph for map viewers: one Point feature per
// waypoint and one LineString feature per segment. Coordinates stay in the
// floor plan's planar frame.
func GeoJSON(g *navgraph.Graph) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	for _, wp := range g.Waypoints() {
		f := geojson.NewFeature(wp.Coordinates.Point())
		f.ID = wp.ID
		f.Properties["kind"] = "waypoint"
		f.Properties["id"] = wp.ID
		f.Properties["descriptor"] = wp.Descriptor
		if wp.Cue != "" {
			f.Properties["audio"] = wp.Cue
		}
		f.Properties["beacons"] = wp.Fingerprint.Len()
		fc.Append(f)
	}

	for _, s := range g.Segments() {
		f := geojson.NewFeature(orb.LineString{s.Start.Point(), s.End.Point()})
		f.Properties["kind"] = "connection"
		f.Properties["from"] = s.From
		f.Properties["to"] = s.To
		f.Properties["bidirectional"] = s.Bidirectional
		f.Properties["length"] = s.Start.Distance(s.End)
		fc.Append(f)
	}

	return fc
}

// Route returns a single LineString feature tracing path through g, or nil
// if the path is empty or names an unknown waypoint.
func Route(g *navgraph.Graph, path []string) *geojson.Feature {
	if len(path) == 0 {
		return nil
	}
	ls := make(orb.LineString, 0, len(path))
	for _, id := range path {
		wp, ok := g.Waypoint(id)
		if !ok {
			return nil
		}
		ls = append(ls, wp.Coordinates.Point())
	}

	f := geojson.NewFeature(ls)
	f.Properties["kind"] = "route"
	f.Properties["from"] = path[0]
	f.Properties["to"] = path[len(path)-1]
	return f
}
