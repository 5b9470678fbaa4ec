package mapfile

import (
	"fmt"
	"sort"

	"indoor-navigator/internal/navgraph"
)

// CampusMap is the walkable graph of the campus layout. Each node lists its
// neighbors with the walking distance to them.
type CampusMap struct {
	Nodes []CampusNode `json:"nodes" yaml:"nodes" validate:"required,dive"`
}

// CampusNode is a node of a CampusMap.
type CampusNode struct {
	ID        string             `json:"id" yaml:"id" validate:"required"`
	X         *float64           `json:"x" yaml:"x" validate:"required"`
	Y         *float64           `json:"y" yaml:"y" validate:"required"`
	Name      string             `json:"name" yaml:"name"`
	Audio     string             `json:"audio" yaml:"audio"`
	Neighbors map[string]float64 `json:"neighbors" yaml:"neighbors" validate:"dive,keys,required,endkeys,gte=0"`
}

// RadioMap is the fingerprint half of the campus layout.
type RadioMap struct {
	Fingerprints []RadioFingerprint `json:"fingerprints" yaml:"fingerprints" validate:"required,dive"`
}

// RadioFingerprint holds the readings recorded at one reference point.
type RadioFingerprint struct {
	RPID    string         `json:"rp_id" yaml:"rp_id" validate:"required"`
	X       *float64       `json:"x" yaml:"x" validate:"required"`
	Y       *float64       `json:"y" yaml:"y" validate:"required"`
	Signals map[string]int `json:"signals" yaml:"signals"`
}

// Warning is a recoverable problem found while merging map files.
type Warning struct {
	Subject string
	Detail  string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Subject, w.Detail)
}

// Document converts the campus graph to the document layout. Node order is
// kept; neighbors become connections in id order since JSON objects carry no
// order. Every node must have both coordinates, which decoding enforces.
func (m CampusMap) Document() *Document {
	doc := NewDocument()
	for _, n := range m.Nodes {
		doc.ReferencePoints = append(doc.ReferencePoints, ReferencePoint{
			ID:             n.ID,
			Coordinates:    &navgraph.Coordinates{X: *n.X, Y: *n.Y},
			Descriptor:     n.Name,
			Audio:          n.Audio,
			BLEFingerprint: []Beacon{},
		})

		targets := make([]string, 0, len(n.Neighbors))
		for id := range n.Neighbors {
			targets = append(targets, id)
		}
		sort.Strings(targets)
		for _, to := range targets {
			dist := n.Neighbors[to]
			doc.Connections = append(doc.Connections, Connection{From: n.ID, To: to, Distance: &dist})
		}
	}
	return doc
}

// ApplyRadioMap stores each radio fingerprint on its reference point.
// Fingerprints for ids the document does not have are skipped and reported.
func (d *Document) ApplyRadioMap(radio RadioMap) []Warning {
	var warnings []Warning
	for _, fp := range radio.Fingerprints {
		if err := d.AddFingerprint(fp.RPID, fp.Signals); err != nil {
			warnings = append(warnings, Warning{
				Subject: fp.RPID,
				Detail:  "fingerprint for a waypoint the map does not declare",
			})
		}
	}
	return warnings
}

// Campus splits the document into the campus layout. Only the first
// connection per from/to pair survives, as a neighbor map holds one
// distance per target.
func (d *Document) Campus() (CampusMap, RadioMap) {
	campus := CampusMap{Nodes: make([]CampusNode, 0, len(d.ReferencePoints))}
	radio := RadioMap{Fingerprints: []RadioFingerprint{}}
	index := make(map[string]int, len(d.ReferencePoints))

	for _, rp := range d.ReferencePoints {
		var x, y *float64
		if rp.Coordinates != nil {
			x, y = &rp.Coordinates.X, &rp.Coordinates.Y
		}
		if _, dup := index[rp.ID]; !dup {
			index[rp.ID] = len(campus.Nodes)
			campus.Nodes = append(campus.Nodes, CampusNode{
				ID: rp.ID, X: x, Y: y, Name: rp.Descriptor, Audio: rp.Audio,
				Neighbors: map[string]float64{},
			})
		}

		if len(rp.BLEFingerprint) > 0 {
			signals := make(map[string]int, len(rp.BLEFingerprint))
			for _, b := range rp.BLEFingerprint {
				if _, seen := signals[b.MACAddress]; !seen {
					signals[b.MACAddress] = b.AvgRSSI
				}
			}
			radio.Fingerprints = append(radio.Fingerprints, RadioFingerprint{RPID: rp.ID, X: x, Y: y, Signals: signals})
		}
	}

	for _, c := range d.Connections {
		i, ok := index[c.From]
		if !ok || c.Distance == nil {
			continue
		}
		if _, seen := campus.Nodes[i].Neighbors[c.To]; !seen {
			campus.Nodes[i].Neighbors[c.To] = *c.Distance
		}
	}
	return campus, radio
}
