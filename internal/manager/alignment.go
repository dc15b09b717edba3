package manager

import (
	"context"
	"fmt"

	"github.com/citra-space/citrascope/internal/adapter"
)

// AlignmentManager wraps a Routine around an Adapter's plate-solve-based
// alignment. Unlike autofocus it has no scheduled trigger, matching
// alignment_manager.py: it only ever runs on operator request.
type AlignmentManager struct {
	routine *Routine
	adapter adapter.Adapter
	target  struct{ ra, dec float64 }
}

// NewAlignmentManager builds a manager with a 0/0 RA/Dec target; call
// SetTarget to choose where the next run syncs.
func NewAlignmentManager(a adapter.Adapter) *AlignmentManager {
	m := &AlignmentManager{adapter: a}
	m.routine = NewRoutine("alignment", m.run)
	return m
}

// SetTarget configures the RA/Dec the next alignment run will sync to.
func (m *AlignmentManager) SetTarget(raDeg, decDeg float64) {
	m.target.ra, m.target.dec = raDeg, decDeg
}

func (m *AlignmentManager) run(ctx context.Context) error {
	ok, err := m.adapter.PerformAlignment(ctx, m.target.ra, m.target.dec)
	if err != nil {
		return fmt.Errorf("alignment: %w", err)
	}
	if !ok {
		return fmt.Errorf("alignment: adapter reported failure")
	}
	return nil
}

func (m *AlignmentManager) Request()          { m.routine.Request() }
func (m *AlignmentManager) Cancel()           { m.routine.Cancel() }
func (m *AlignmentManager) IsRequested() bool { return m.routine.IsRequested() }
func (m *AlignmentManager) IsRunning() bool   { return m.routine.IsRunning() }

func (m *AlignmentManager) CheckAndExecute(ctx context.Context, imagingBusy bool) error {
	return m.routine.CheckAndExecute(ctx, imagingBusy)
}
