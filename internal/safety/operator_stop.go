package safety

import (
	"context"
	"sync/atomic"
)

// OperatorStopCheck reports Emergency whenever an operator has requested a
// manual stop (e.g. via the UDS control socket), and Safe otherwise. Grounded
// on operator_stop_check.py's simple flag-check shape.
type OperatorStopCheck struct {
	requested atomic.Bool
}

// NewOperatorStopCheck returns a check with no stop requested.
func NewOperatorStopCheck() *OperatorStopCheck {
	return &OperatorStopCheck{}
}

func (c *OperatorStopCheck) Name() string { return "operator_stop" }

// RequestStop marks a manual stop as requested. Idempotent.
func (c *OperatorStopCheck) RequestStop() { c.requested.Store(true) }

// ClearStop clears a previously requested manual stop.
func (c *OperatorStopCheck) ClearStop() { c.requested.Store(false) }

// IsRequested reports whether a manual stop is currently in effect.
func (c *OperatorStopCheck) IsRequested() bool { return c.requested.Load() }

func (c *OperatorStopCheck) Evaluate(_ context.Context) Result {
	if c.requested.Load() {
		return Result{Check: c.Name(), Severity: Emergency, Reason: "operator stop requested"}
	}
	return Result{Check: c.Name(), Severity: Safe}
}

// CheckProposedAction blocks every action type while a stop is latched.
func (c *OperatorStopCheck) CheckProposedAction(_ string, _ map[string]any) bool {
	return !c.requested.Load()
}
