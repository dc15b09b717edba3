package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/citra-space/citrascope/internal/adapter"
)

// defaultAutofocusTarget is the fallback focus star when neither a preset nor
// a custom target is configured, matching autofocus_manager.py's hardcoded
// fallback.
const defaultAutofocusTarget = "mirach"

// AutofocusManager wraps a Routine around an Adapter's optional autofocus
// capability, resolving which target star to focus on from a three-level
// priority: explicit custom target, named preset, or the fallback star.
type AutofocusManager struct {
	routine      *Routine
	adapter      adapter.Adapter
	scheduledGap time.Duration

	presets map[string]string
	custom  string
	preset  string
}

// NewAutofocusManager builds a manager; scheduledGap is the interval used by
// ShouldRunScheduled (0 disables proactive scheduling).
func NewAutofocusManager(a adapter.Adapter, scheduledGap time.Duration, presets map[string]string) *AutofocusManager {
	m := &AutofocusManager{adapter: a, scheduledGap: scheduledGap, presets: presets}
	m.routine = NewRoutine("autofocus", m.run)
	return m
}

// SetTarget configures the custom/preset target for the next run. Passing
// empty strings for both falls back to defaultAutofocusTarget.
func (m *AutofocusManager) SetTarget(custom, preset string) {
	m.custom = custom
	m.preset = preset
}

func (m *AutofocusManager) resolveTarget() string {
	if m.custom != "" {
		return m.custom
	}
	if m.preset != "" {
		if target, ok := m.presets[m.preset]; ok {
			return target
		}
	}
	return defaultAutofocusTarget
}

func (m *AutofocusManager) run(ctx context.Context) error {
	af, ok := m.adapter.(adapter.AutofocusCapable)
	if !ok {
		return fmt.Errorf("autofocus: adapter %s does not support autofocus", m.adapter.Name())
	}
	_ = m.resolveTarget() // the resolved target is not passed to DoAutofocus, which picks its own focus star
	return af.DoAutofocus(ctx)
}

// Request, Cancel, IsRequested, IsRunning, CheckAndExecute and
// ShouldRunScheduled delegate to the embedded Routine.
func (m *AutofocusManager) Request()       { m.routine.Request() }
func (m *AutofocusManager) Cancel()        { m.routine.Cancel() }
func (m *AutofocusManager) IsRequested() bool { return m.routine.IsRequested() }
func (m *AutofocusManager) IsRunning() bool   { return m.routine.IsRunning() }

func (m *AutofocusManager) CheckAndExecute(ctx context.Context, imagingBusy bool) error {
	return m.routine.CheckAndExecute(ctx, imagingBusy)
}

func (m *AutofocusManager) ShouldRunScheduled() bool {
	return m.routine.ShouldRunScheduled(m.scheduledGap)
}
