package manager

import (
	"context"

	"github.com/citra-space/citrascope/internal/adapter"
)

// HomingManager parks the mount at its cable-safe home position. Grounded on
// homing_manager.py: request-only, typically invoked at daemon startup
// (before any cable-wrap assumptions can be trusted) and shutdown.
type HomingManager struct {
	routine  *Routine
	adapter  adapter.Adapter
	homeRA   float64
	homeDec  float64
}

// NewHomingManager builds a manager that points the mount to (homeRA, homeDec)
// when run.
func NewHomingManager(a adapter.Adapter, homeRA, homeDec float64) *HomingManager {
	m := &HomingManager{adapter: a, homeRA: homeRA, homeDec: homeDec}
	m.routine = NewRoutine("homing", m.run)
	return m
}

func (m *HomingManager) run(ctx context.Context) error {
	return m.adapter.PointTelescope(ctx, m.homeRA, m.homeDec)
}

func (m *HomingManager) Request()          { m.routine.Request() }
func (m *HomingManager) Cancel()           { m.routine.Cancel() }
func (m *HomingManager) IsRequested() bool { return m.routine.IsRequested() }
func (m *HomingManager) IsRunning() bool   { return m.routine.IsRunning() }

func (m *HomingManager) CheckAndExecute(ctx context.Context, imagingBusy bool) error {
	return m.routine.CheckAndExecute(ctx, imagingBusy)
}
