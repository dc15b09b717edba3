package manager

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

func logManagerError(name string, err error) {
	slog.Warn("manager routine failed", "manager", name, "error", err)
}

// named is satisfied by all three concrete managers: a uniform request/run
// surface plus a status snapshot, so Set can drive them identically.
type named interface {
	Request()
	Cancel()
	IsRequested() bool
	IsRunning() bool
	CheckAndExecute(ctx context.Context, imagingBusy bool) error
}

// Status is a point-in-time snapshot of one managed routine.
type Status struct {
	Requested bool      `json:"requested"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"last_run,omitempty"`
}

// Set bundles the C9 autofocus, alignment, and homing managers behind one
// name-keyed surface, so the command and control-api packages need only one
// interface (ManagerSource) instead of three manager-specific ones.
type Set struct {
	autofocus *AutofocusManager
	alignment *AlignmentManager
	homing    *HomingManager
}

// NewSet builds a Set over the three concrete managers. Any of them may be
// nil if the adapter in use doesn't support that capability; Trigger and
// CheckAndExecuteAll skip nil members.
func NewSet(autofocus *AutofocusManager, alignment *AlignmentManager, homing *HomingManager) *Set {
	return &Set{autofocus: autofocus, alignment: alignment, homing: homing}
}

func (s *Set) byName(name string) (named, error) {
	switch name {
	case "autofocus":
		if s.autofocus == nil {
			return nil, fmt.Errorf("manager: autofocus not available on this adapter")
		}
		return s.autofocus, nil
	case "alignment":
		if s.alignment == nil {
			return nil, fmt.Errorf("manager: alignment not available on this adapter")
		}
		return s.alignment, nil
	case "homing":
		if s.homing == nil {
			return nil, fmt.Errorf("manager: homing not available on this adapter")
		}
		return s.homing, nil
	default:
		return nil, fmt.Errorf("manager: unknown manager %q", name)
	}
}

// Trigger requests the named manager run at the next safe opportunity.
func (s *Set) Trigger(name string) error {
	m, err := s.byName(name)
	if err != nil {
		return err
	}
	m.Request()
	return nil
}

// Status reports every available manager's current state.
func (s *Set) Status() map[string]Status {
	out := make(map[string]Status, 3)
	if s.autofocus != nil {
		out["autofocus"] = Status{Requested: s.autofocus.IsRequested(), Running: s.autofocus.IsRunning(), LastRun: s.autofocus.routine.LastRun()}
	}
	if s.alignment != nil {
		out["alignment"] = Status{Requested: s.alignment.IsRequested(), Running: s.alignment.IsRunning(), LastRun: s.alignment.routine.LastRun()}
	}
	if s.homing != nil {
		out["homing"] = Status{Requested: s.homing.IsRequested(), Running: s.homing.IsRunning(), LastRun: s.homing.routine.LastRun()}
	}
	return out
}

// AnyActive reports whether any managed routine is currently requested or
// running. The scheduler consults this before dispatching a new imaging job:
// a focus sweep or homing slew in flight (or about to be) must not be
// interrupted by a capture sharing the same mount.
func (s *Set) AnyActive() bool {
	var members []named
	if s.autofocus != nil {
		members = append(members, s.autofocus)
	}
	if s.alignment != nil {
		members = append(members, s.alignment)
	}
	if s.homing != nil {
		members = append(members, s.homing)
	}
	for _, m := range members {
		if m.IsRequested() || m.IsRunning() {
			return true
		}
	}
	return false
}

// CheckAndExecuteAll runs every manager's pending request, in priority order
// homing, alignment, autofocus (a pending home request takes precedence over
// a cosmetic focus sweep). imagingBusy gates all three identically: none of
// them may slew or adjust focus while a capture is in flight.
func (s *Set) CheckAndExecuteAll(ctx context.Context, imagingBusy bool) {
	if s.homing != nil {
		if err := s.homing.CheckAndExecute(ctx, imagingBusy); err != nil {
			logManagerError("homing", err)
		}
	}
	if s.alignment != nil {
		if err := s.alignment.CheckAndExecute(ctx, imagingBusy); err != nil {
			logManagerError("alignment", err)
		}
	}
	if s.autofocus != nil {
		if s.autofocus.ShouldRunScheduled() {
			s.autofocus.Request()
		}
		if err := s.autofocus.CheckAndExecute(ctx, imagingBusy); err != nil {
			logManagerError("autofocus", err)
		}
	}
}
