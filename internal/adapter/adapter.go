// Package adapter defines the hardware adapter contract (C8): the narrow
// interface surface every telescope/camera backend implements, plus optional
// capability interfaces a concrete adapter may additionally satisfy. Grounded
// on original_source/citrascope/hardware/abstract_astro_hardware_adapter.py
// for the method surface, and on the teacher's pkg/plugin/lifecycle.go for
// the context-aware base-interface-plus-capability-interface shape (the
// teacher's own Plugin/Capturer/Reporter split).
package adapter

import "context"

// ObservationStrategy tells the scheduler whether it must drive pointing
// itself (Manual) or whether the adapter runs a full tracking sequence given
// only the satellite identity (SequenceToController).
type ObservationStrategy int

const (
	Manual ObservationStrategy = iota
	SequenceToController
)

// FilterConfig describes one filter-wheel position.
type FilterConfig struct {
	Name          string
	FocusPosition int
	Enabled       bool
}

// Adapter is the base lifecycle + pointing + capture contract every hardware
// backend must implement.
type Adapter interface {
	Name() string

	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	IsTelescopeConnected() bool
	IsCameraConnected() bool

	ObservationStrategy() ObservationStrategy

	// PerformObservationSequence drives an entire pass for hardware whose
	// observation strategy is SequenceToController, returning the captured
	// image path.
	PerformObservationSequence(ctx context.Context, taskID, satelliteID string) (string, error)

	PointTelescope(ctx context.Context, raDeg, decDeg float64) error
	TelescopeDirection(ctx context.Context) (raDeg, decDeg float64, err error)
	TelescopeIsMoving(ctx context.Context) (bool, error)

	TakeImage(ctx context.Context, taskID string, exposureSeconds float64) (string, error)

	SetCustomTrackingRate(ctx context.Context, raRate, decRate float64) error
	TrackingRate(ctx context.Context) (raRate, decRate float64, err error)

	PerformAlignment(ctx context.Context, targetRA, targetDec float64) (bool, error)
}

// AutofocusCapable is implemented by adapters that can run a focus routine.
type AutofocusCapable interface {
	DoAutofocus(ctx context.Context) error
}

// FilterManaged is implemented by adapters with a filter wheel and per-filter
// focus offsets.
type FilterManaged interface {
	FilterConfig(ctx context.Context) (map[string]FilterConfig, error)
	SelectFilter(ctx context.Context, filterID string) error
}

// PlateSolveCorrectable is implemented by adapters that can fold a plate-solve
// result back into their pointing model, correcting accumulated mount error.
// expectedRA/DecDeg is the position the driver had commanded the mount to;
// the difference between that and the solved center is the pointing error.
type PlateSolveCorrectable interface {
	UpdateFromPlateSolve(ctx context.Context, raCenterDeg, decCenterDeg, expectedRADeg, expectedDecDeg float64) error
}

// SupportsPlateSolveCorrection reports whether an adapter implements PlateSolveCorrectable.
func SupportsPlateSolveCorrection(a Adapter) bool {
	_, ok := a.(PlateSolveCorrectable)
	return ok
}

// SupportsAutofocus reports whether an adapter implements AutofocusCapable.
func SupportsAutofocus(a Adapter) bool {
	_, ok := a.(AutofocusCapable)
	return ok
}

// SupportsFilterManagement reports whether an adapter implements FilterManaged.
func SupportsFilterManagement(a Adapter) bool {
	_, ok := a.(FilterManaged)
	return ok
}

// AngularDistance computes the great-circle angle, in degrees, between two
// (RA, Dec) points via the spherical law of cosines, matching
// angular_distance in abstract_astro_hardware_adapter.py including its
// cosine clamp for numerical safety near antipodal points.
func AngularDistance(ra1, dec1, ra2, dec2 float64) float64 {
	return angularDistance(ra1, dec1, ra2, dec2)
}
