package navgraph

import "slices"

// SignalSample is one averaged beacon reading, RSSI in dBm (typically negative).
type SignalSample struct {
	BeaconID string
	RSSI     int
}

// Fingerprint is the radio signature recorded at a waypoint.
//
// Beacon ids are unique within a fingerprint. NewFingerprint keeps the first
// reading of a beacon and drops later ones. The beacon lookup is built once,
// so matching a scan against many fingerprints never rebuilds it.
type Fingerprint struct {
	samples []SignalSample
	rssi    map[string]int
}

// NewFingerprint builds a fingerprint from samples in the given order. The
// second return value lists beacon ids that were dropped as duplicates.
func NewFingerprint(samples []SignalSample) (Fingerprint, []string) {
	fp := Fingerprint{
		samples: make([]SignalSample, 0, len(samples)),
		rssi:    make(map[string]int, len(samples)),
	}

	var dropped []string
	for _, s := range samples {
		if _, dup := fp.rssi[s.BeaconID]; dup {
			dropped = append(dropped, s.BeaconID)
			continue
		}
		fp.rssi[s.BeaconID] = s.RSSI
		fp.samples = append(fp.samples, s)
	}

	return fp, dropped
}

// Len returns the number of distinct beacons in the fingerprint.
func (f Fingerprint) Len() int { return len(f.samples) }

// Empty reports whether the waypoint carries no radio data.
func (f Fingerprint) Empty() bool { return len(f.samples) == 0 }

// RSSI returns the stored reading for a beacon.
func (f Fingerprint) RSSI(beaconID string) (int, bool) {
	v, ok := f.rssi[beaconID]
	return v, ok
}

// Samples returns the readings in recorded order.
func (f Fingerprint) Samples() []SignalSample {
	return slices.Clone(f.samples)
}
