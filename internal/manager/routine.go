// Package manager implements the C9 autofocus, alignment and homing
// managers, all sharing one generic request/execute routine shape. Grounded
// on original_source/citrascope/tasks/autofocus_manager.py, whose
// request/cancel/check_and_execute state machine generalizes cleanly to
// alignment and homing (which only differ in trigger semantics and what
// "execute" does).
package manager

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Execute performs the manager's actual routine (focus sweep, plate-solve
// sync, or home-and-park).
type Execute func(ctx context.Context) error

// Routine is the generic request/cancel/execute state machine shared by all
// three C9 managers.
type Routine struct {
	name    string
	execute Execute

	requested atomic.Bool
	running   atomic.Bool
	progress  atomic.Int32

	mu      sync.Mutex
	lastRun time.Time
}

// NewRoutine builds a Routine that runs execute when triggered.
func NewRoutine(name string, execute Execute) *Routine {
	return &Routine{name: name, execute: execute}
}

// Request marks the routine as wanted at the next safe opportunity.
func (r *Routine) Request() { r.requested.Store(true) }

// Cancel withdraws a pending (not yet running) request.
func (r *Routine) Cancel() { r.requested.Store(false) }

// IsRequested reports whether a run is pending.
func (r *Routine) IsRequested() bool { return r.requested.Load() }

// IsRunning reports whether the routine is currently executing.
func (r *Routine) IsRunning() bool { return r.running.Load() }

// Progress returns a 0-100 completion estimate, set by SetProgress during execution.
func (r *Routine) Progress() int32 { return r.progress.Load() }

// SetProgress lets an in-progress Execute report how far along it is.
func (r *Routine) SetProgress(pct int32) { r.progress.Store(pct) }

// LastRun returns the time the routine last completed (success or failure).
func (r *Routine) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

// CheckAndExecute atomically consumes a pending request and runs it, unless
// imagingBusy is true, in which case the request is left pending (re-set, not
// dropped) so it retries on a later check rather than being silently lost
// because the imaging queue happened to be mid-capture.
func (r *Routine) CheckAndExecute(ctx context.Context, imagingBusy bool) error {
	if !r.requested.CompareAndSwap(true, false) {
		return nil
	}
	if imagingBusy {
		r.requested.Store(true)
		return nil
	}

	r.running.Store(true)
	r.progress.Store(0)
	defer func() {
		r.running.Store(false)
		r.progress.Store(100)
		r.mu.Lock()
		r.lastRun = time.Now()
		r.mu.Unlock()
	}()

	return r.execute(ctx)
}

// ShouldRunScheduled reports whether enough time has elapsed since LastRun to
// justify a proactive (non-operator-requested) run, per interval.
func (r *Routine) ShouldRunScheduled(interval time.Duration) bool {
	if interval <= 0 {
		return false
	}
	r.mu.Lock()
	last := r.lastRun
	r.mu.Unlock()
	if last.IsZero() {
		return true
	}
	return time.Since(last) >= interval
}
