// Package task implements the Task model (C10 data) and the central registry
// tracking which stage bucket (scheduled/imaging/processing/upload/done) each
// task currently occupies. Grounded on the teacher's internal/task/task.go
// for its mutex-guarded state/stats pattern and on
// original_source/citrascope/tasks/task.py for the Task field shape.
package task

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// State is a task's position in the C10 FSM.
type State string

const (
	StateScheduled  State = "scheduled"
	StateSlewing    State = "slewing"
	StateImaging    State = "imaging"
	StateProcessing State = "processing"
	StateUploading  State = "uploading"
	StateComplete   State = "complete"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// ElementSet identifies the satellite orbital element set a task targets.
type ElementSet struct {
	CreationEpoch time.Time
	Line1         string
	Line2         string
}

// Task is one scheduled observation job: a satellite pass assigned to this
// ground station's telescope for a start/stop window.
type Task struct {
	ID              string
	SatelliteID     string
	GroundStationID string
	StartEpoch      time.Time
	StopEpoch       time.Time
	FilterName      string
	ExposureSeconds float64

	mu              sync.Mutex
	state           State
	failureReason   string
	imagePath       string
	elements        *ElementSet
	expectedRADeg   float64
	expectedDecDeg  float64
	hasExpectedFix  bool

	cancelRequested atomic.Bool
}

// New constructs a Task in StateScheduled.
func New(id, satelliteID, groundStationID string, start, stop time.Time, filter string, exposureSeconds float64) *Task {
	return &Task{
		ID:              id,
		SatelliteID:     satelliteID,
		GroundStationID: groundStationID,
		StartEpoch:      start,
		StopEpoch:       stop,
		FilterName:      filter,
		ExposureSeconds: exposureSeconds,
		state:           StateScheduled,
	}
}

// State returns the task's current FSM state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Transition moves the task to a new state. Transitions into Failed should
// also carry a reason via Fail.
func (t *Task) Transition(next State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = next
}

// Fail transitions the task to StateFailed and records why.
func (t *Task) Fail(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = StateFailed
	t.failureReason = reason
}

// FailureReason returns the last recorded failure reason, if any.
func (t *Task) FailureReason() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.failureReason
}

// SetExpectedPointing records the RA/Dec the driver last commanded the mount
// to, so a later plate-solve result can be compared against it to learn the
// mount's pointing error.
func (t *Task) SetExpectedPointing(raDeg, decDeg float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.expectedRADeg = raDeg
	t.expectedDecDeg = decDeg
	t.hasExpectedFix = true
}

// ExpectedPointing returns the last commanded RA/Dec, if any was recorded.
func (t *Task) ExpectedPointing() (raDeg, decDeg float64, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.expectedRADeg, t.expectedDecDeg, t.hasExpectedFix
}

// ErrCancelled is returned by the telescope task driver when a job aborts
// because RequestCancel was called mid-execution.
var ErrCancelled = fmt.Errorf("task: cancelled")

// SetImagePath records the path of the raw captured image once imaging completes.
func (t *Task) SetImagePath(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.imagePath = path
}

// ImagePath returns the recorded raw image path, if any.
func (t *Task) ImagePath() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.imagePath
}

// SetElements records the orbital element set used to target this task.
func (t *Task) SetElements(e ElementSet) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.elements = &e
}

// Elements returns the recorded element set, if any.
func (t *Task) Elements() (ElementSet, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.elements == nil {
		return ElementSet{}, false
	}
	return *t.elements, true
}

// RequestCancel marks this task for cancellation. The telescope task driver
// checks this at every lead-point loop boundary rather than only reacting to
// daemon shutdown, so an operator can cancel one in-flight pass without
// stopping every other queue worker.
func (t *Task) RequestCancel() { t.cancelRequested.Store(true) }

// IsCancelRequested reports whether RequestCancel has been called.
func (t *Task) IsCancelRequested() bool { return t.cancelRequested.Load() }

// ErrDuplicateTask is returned when Registry.Add is called with an ID already tracked.
var ErrDuplicateTask = fmt.Errorf("task: duplicate task ID")

// ErrUnknownTask is returned when a Registry lookup can't find the given ID.
var ErrUnknownTask = fmt.Errorf("task: unknown task ID")
