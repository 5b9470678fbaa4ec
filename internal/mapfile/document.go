// Package mapfile reads and writes indoor map files and turns them into the
// records navgraph.Build consumes.
//
// Two layouts are understood. The document layout keeps everything in one
// file:
//
//	{
//	  "reference_points": [
//	    {"id": "A", "coordinates": {"x": 0, "y": 0}, "descriptor": "Start",
//	     "ble_fingerprint": [{"mac_address": "beacon_1", "avg_rssi": -60}]}
//	  ],
//	  "connections": [{"from": "A", "to": "B", "distance": 22.3}]
//	}
//
// The campus layout splits the walkable graph and the radio map into two
// files, see CampusMap and RadioMap. Either layout may be written as JSON or
// YAML; the file extension decides.
package mapfile

import (
	"errors"
	"fmt"
	"slices"
	"sort"

	"indoor-navigator/internal/navgraph"
)

var (
	// ErrMalformedMap is returned when a map file cannot be decoded or lacks
	// a required field.
	ErrMalformedMap = errors.New("malformed map")
	// ErrUnsupportedFormat is returned for file extensions other than
	// .json, .yaml and .yml.
	ErrUnsupportedFormat = errors.New("unsupported map format")
	// ErrUnknownWaypoint is returned by the builder methods when an id does
	// not name a reference point of the document.
	ErrUnknownWaypoint = errors.New("unknown waypoint")
)

// Beacon is one stored fingerprint reading.
type Beacon struct {
	MACAddress string `json:"mac_address" yaml:"mac_address" validate:"required"`
	AvgRSSI    int    `json:"avg_rssi" yaml:"avg_rssi"`
}

// ReferencePoint is a waypoint as written in a map file.
type ReferencePoint struct {
	ID             string                `json:"id" yaml:"id" validate:"required"`
	Coordinates    *navgraph.Coordinates `json:"coordinates" yaml:"coordinates" validate:"required"`
	Descriptor     string                `json:"descriptor" yaml:"descriptor"`
	Audio          string                `json:"audio,omitempty" yaml:"audio,omitempty"`
	BLEFingerprint []Beacon              `json:"ble_fingerprint" yaml:"ble_fingerprint" validate:"dive"`
}

// Connection is a directed walkable link.
type Connection struct {
	From     string   `json:"from" yaml:"from" validate:"required"`
	To       string   `json:"to" yaml:"to" validate:"required"`
	Distance *float64 `json:"distance" yaml:"distance" validate:"required,gte=0"`
}

// Document is a map in the document layout. It implements navgraph.Source.
type Document struct {
	ReferencePoints []ReferencePoint `json:"reference_points" yaml:"reference_points" validate:"required,dive"`
	Connections     []Connection     `json:"connections" yaml:"connections" validate:"required,dive"`
}

// NewDocument returns an empty document ready for the builder methods.
func NewDocument() *Document {
	return &Document{
		ReferencePoints: []ReferencePoint{},
		Connections:     []Connection{},
	}
}

// WaypointRecords implements navgraph.Source.
func (d *Document) WaypointRecords() []navgraph.WaypointRecord {
	records := make([]navgraph.WaypointRecord, 0, len(d.ReferencePoints))
	for _, rp := range d.ReferencePoints {
		rec := navgraph.WaypointRecord{
			ID:         rp.ID,
			Descriptor: rp.Descriptor,
			Cue:        rp.Audio,
		}
		if rp.Coordinates != nil {
			rec.X, rec.Y = rp.Coordinates.X, rp.Coordinates.Y
		}
		for _, b := range rp.BLEFingerprint {
			rec.Fingerprint = append(rec.Fingerprint, navgraph.SignalSample{BeaconID: b.MACAddress, RSSI: b.AvgRSSI})
		}
		records = append(records, rec)
	}
	return records
}

// ConnectionRecords implements navgraph.Source.
func (d *Document) ConnectionRecords() []navgraph.ConnectionRecord {
	records := make([]navgraph.ConnectionRecord, 0, len(d.Connections))
	for _, c := range d.Connections {
		rec := navgraph.ConnectionRecord{From: c.From, To: c.To}
		if c.Distance != nil {
			rec.Distance = *c.Distance
		}
		records = append(records, rec)
	}
	return records
}

func (d *Document) find(id string) int {
	return slices.IndexFunc(d.ReferencePoints, func(rp ReferencePoint) bool { return rp.ID == id })
}

// AddWaypoint adds a reference point, or replaces the one with the same id
// in place. It reports whether an existing point was replaced.
func (d *Document) AddWaypoint(id string, x, y float64, descriptor, audio string) bool {
	rp := ReferencePoint{
		ID:             id,
		Coordinates:    &navgraph.Coordinates{X: x, Y: y},
		Descriptor:     descriptor,
		Audio:          audio,
		BLEFingerprint: []Beacon{},
	}
	if i := d.find(id); i >= 0 {
		d.ReferencePoints[i] = rp
		return true
	}
	d.ReferencePoints = append(d.ReferencePoints, rp)
	return false
}

// Connect links a and b in both directions, weighted by the straight-line
// distance between them, and returns that distance.
func (d *Document) Connect(a, b string) (float64, error) {
	ia, ib := d.find(a), d.find(b)
	if ia < 0 {
		return 0, fmt.Errorf("connect %s-%s: %w: %q", a, b, ErrUnknownWaypoint, a)
	}
	if ib < 0 {
		return 0, fmt.Errorf("connect %s-%s: %w: %q", a, b, ErrUnknownWaypoint, b)
	}

	dist := d.ReferencePoints[ia].Coordinates.Distance(*d.ReferencePoints[ib].Coordinates)
	d.Connections = append(d.Connections,
		Connection{From: a, To: b, Distance: &dist},
		Connection{From: b, To: a, Distance: &dist},
	)
	return dist, nil
}

// AddFingerprint replaces the stored readings of a reference point. Beacons
// are written in id order so saved files are stable.
func (d *Document) AddFingerprint(id string, signals map[string]int) error {
	i := d.find(id)
	if i < 0 {
		return fmt.Errorf("fingerprint: %w: %q", ErrUnknownWaypoint, id)
	}
	d.ReferencePoints[i].BLEFingerprint = beaconsOf(signals)
	return nil
}

func beaconsOf(signals map[string]int) []Beacon {
	ids := make([]string, 0, len(signals))
	for id := range signals {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	beacons := make([]Beacon, 0, len(ids))
	for _, id := range ids {
		beacons = append(beacons, Beacon{MACAddress: id, AvgRSSI: signals[id]})
	}
	return beacons
}

// DemoHallway returns the three-point hallway used for demos and smoke
// tests: START (0,0), MIDDLE (0,5) and END (0,10), connected in a line so
// START to END must pass MIDDLE.
func DemoHallway() *Document {
	doc := NewDocument()
	doc.AddWaypoint("RP_HALLWAY_START", 0, 0, "Start of Hallway", "guidance_start.wav")
	doc.AddWaypoint("RP_HALLWAY_MIDDLE", 0, 5, "Middle of Hallway", "guidance_middle.wav")
	doc.AddWaypoint("RP_HALLWAY_END", 0, 10, "End of Hallway", "guidance_end.wav")

	// Ids are known, errors are impossible.
	_, _ = doc.Connect("RP_HALLWAY_START", "RP_HALLWAY_MIDDLE")
	_, _ = doc.Connect("RP_HALLWAY_MIDDLE", "RP_HALLWAY_END")

	_ = doc.AddFingerprint("RP_HALLWAY_START", map[string]int{"BEACON_ID_1": -50, "BEACON_ID_2": -80, "BEACON_ID_3": -90})
	_ = doc.AddFingerprint("RP_HALLWAY_MIDDLE", map[string]int{"BEACON_ID_1": -65, "BEACON_ID_2": -65, "BEACON_ID_3": -85})
	_ = doc.AddFingerprint("RP_HALLWAY_END", map[string]int{"BEACON_ID_1": -90, "BEACON_ID_2": -50, "BEACON_ID_3": -80})
	return doc
}
