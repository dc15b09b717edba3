package safety

import (
	"context"
	"fmt"
)

// TimeSource reports the local clock's offset from a trusted reference
// (NTP/chrony), in milliseconds. Implemented by internal/timehealth; declared
// here so safety has no import dependency on it.
type TimeSource interface {
	OffsetMillis(ctx context.Context) (int64, error)
}

// TimeHealthCheck reports severity based on clock offset from a time source,
// grounded on time_health_check.py. A large enough offset invalidates
// ephemeris-driven pointing, so this fails closed to QueueStop on error.
type TimeHealthCheck struct {
	source  TimeSource
	warnMs  int64
	stopMs  int64
}

// NewTimeHealthCheck returns a check wrapping source.
func NewTimeHealthCheck(source TimeSource, warnMs, stopMs int64) *TimeHealthCheck {
	return &TimeHealthCheck{source: source, warnMs: warnMs, stopMs: stopMs}
}

func (c *TimeHealthCheck) Name() string { return "time_health" }

func (c *TimeHealthCheck) Evaluate(ctx context.Context) Result {
	offsetMs, err := c.source.OffsetMillis(ctx)
	if err != nil {
		return Result{
			Check:    c.Name(),
			Severity: QueueStop,
			Reason:   fmt.Sprintf("time source unavailable: %v", err),
		}
	}

	abs := offsetMs
	if abs < 0 {
		abs = -abs
	}

	switch {
	case abs >= c.stopMs:
		return Result{
			Check:    c.Name(),
			Severity: QueueStop,
			Reason:   fmt.Sprintf("clock offset %dms exceeds stop threshold %dms", offsetMs, c.stopMs),
		}
	case abs >= c.warnMs:
		return Result{
			Check:    c.Name(),
			Severity: Warn,
			Reason:   fmt.Sprintf("clock offset %dms exceeds warn threshold %dms", offsetMs, c.warnMs),
		}
	default:
		return Result{Check: c.Name(), Severity: Safe}
	}
}

// CheckProposedAction doesn't gate individual action kinds; a stale clock is
// already surfaced through Evaluate's QueueStop severity.
func (c *TimeHealthCheck) CheckProposedAction(_ string, _ map[string]any) bool {
	return true
}
