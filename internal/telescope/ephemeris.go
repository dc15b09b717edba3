// Package telescope implements the C10 per-job telescope task driver: the
// lead-point pointing loop, capture dispatch, and the completion callback
// chain linking the imaging, processing and upload queues together.
// Grounded on original_source/citrascope/tasks/scope/{base,tracking}_telescope_task.py
// for the lead-point estimator shape and the callback-chain sequencing.
package telescope

import "time"

// GroundStation is the observer position used to compute topocentric
// satellite positions.
type GroundStation struct {
	Latitude  float64
	Longitude float64
	AltitudeM float64
}

// ElementSet identifies the orbital elements a position estimate is computed
// against.
type ElementSet struct {
	CreationEpoch time.Time
	Line1         string
	Line2         string
}

// TargetPosition is a satellite's topocentric position at some instant.
type TargetPosition struct {
	RADeg  float64
	DecDeg float64
}

// Ephemeris computes a satellite's topocentric position at a given time from
// its orbital elements and the observer's ground station. The orbital
// mechanics themselves (SGP4 propagation, topocentric transforms) are an
// external collaborator's concern, not this core's — this interface is the
// narrow contract the telescope task driver needs satisfied, the same way
// the processing chain only needs the Processor contract satisfied.
type Ephemeris interface {
	TargetAt(elements ElementSet, station GroundStation, at time.Time) (TargetPosition, error)
}
