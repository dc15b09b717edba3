package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrCableWrapStalled is returned by ExecuteAction when the mount's sampled
// azimuth hasn't meaningfully moved for stallCount consecutive unwind polls,
// even though the mount was commanded to move — a likely cable bind or
// obstruction.
var ErrCableWrapStalled = errors.New("cable wrap unwind stalled")

// slewBlockMarginDeg is the headroom, short of the soft limit, at which a new
// slew is refused: a single slew can add up to ~180 deg of wrap, so refusing
// only once the soft limit is already crossed would be too late.
const slewBlockMarginDeg = 10.0

// unwindPollInterval is how often ExecuteAction samples the mount's azimuth
// and issues the next step command. A var, not a const, so tests can shrink
// it rather than running a real unwind at wall-clock speed.
var unwindPollInterval = 500 * time.Millisecond

// unwindRateDegPerSec is the commanded unwind rate; combined with
// unwindPollInterval it bounds how far each step asks the mount to travel.
const unwindRateDegPerSec = 7.0

// MountUnwinder is the minimal mount surface a defensive cable-wrap unwind
// needs: command a step toward an azimuth and read back where the mount
// actually ended up. Grounded on cable_wrap_check.py's start_move/get_azimuth
// pairing, adapted to the blocking point-and-read primitive citrascope's
// adapter contract exposes instead of continuous directional motion.
type MountUnwinder interface {
	PointAzimuth(ctx context.Context, azDeg float64) error
	CurrentAzimuth(ctx context.Context) (float64, error)
}

// cableWrapState is the on-disk wire format, written atomically via
// temp-file + rename, the same pattern as the teacher's FileTaskStore.Save.
type cableWrapState struct {
	CumulativeDeg float64   `json:"cumulative_deg"`
	LastRawAzDeg  float64   `json:"last_raw_az_deg"`
	HasReading    bool      `json:"has_reading"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CableWrapCheck tracks the mount's cumulative azimuth travel relative to its
// cable-safe home position and reports severity against a soft (QueueStop)
// and hard (Emergency) limit. Grounded on cable_wrap_check.py's shortest-arc
// unwind algorithm.
type CableWrapCheck struct {
	statePath string

	softLimitDeg    float64
	hardLimitDeg    float64
	travelBudgetDeg float64
	convergenceDeg  float64
	stallDeltaDeg   float64
	stallCount      int

	mu         sync.Mutex
	cumulative float64
	lastRaw    float64
	hasReading bool
	unwinding  bool
}

// NewCableWrapCheck loads any persisted cumulative-angle state from
// statePath (starting fresh if absent) and returns a ready check.
func NewCableWrapCheck(statePath string, softLimitDeg, hardLimitDeg, travelBudgetDeg, convergenceDeg, stallDeltaDeg float64, stallCount int) (*CableWrapCheck, error) {
	c := &CableWrapCheck{
		statePath:       statePath,
		softLimitDeg:    softLimitDeg,
		hardLimitDeg:    hardLimitDeg,
		travelBudgetDeg: travelBudgetDeg,
		convergenceDeg:  convergenceDeg,
		stallDeltaDeg:   stallDeltaDeg,
		stallCount:      stallCount,
	}

	state, err := loadCableWrapState(statePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("cable wrap: load state: %w", err)
	}
	if err == nil {
		c.cumulative = state.CumulativeDeg
		c.lastRaw = state.LastRawAzDeg
		c.hasReading = state.HasReading
	}
	return c, nil
}

func (c *CableWrapCheck) Name() string { return "cable_wrap" }

// signedShortestArc returns the signed delta, in (-180, 180], needed to go
// from a "from" azimuth degree to a "to" azimuth degree the short way around
// the compass.
func signedShortestArc(from, to float64) float64 {
	d := math.Mod(to-from, 360)
	if d > 180 {
		d -= 360
	} else if d <= -180 {
		d += 360
	}
	return d
}

// Update folds a new raw mount azimuth reading (expected in [0,360)) into the
// cumulative cable-wrap angle and persists the new state.
func (c *CableWrapCheck) Update(rawAzDeg float64) error {
	c.mu.Lock()
	if c.hasReading {
		delta := signedShortestArc(c.lastRaw, rawAzDeg)
		c.cumulative += delta
	}
	c.lastRaw = rawAzDeg
	c.hasReading = true
	cumulative := c.cumulative
	c.mu.Unlock()

	return c.persist(cumulative, rawAzDeg)
}

// Cumulative returns the current cumulative wrap angle in degrees, signed:
// positive is clockwise travel past the home position, negative counter-
// clockwise.
func (c *CableWrapCheck) Cumulative() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cumulative
}

func (c *CableWrapCheck) Evaluate(_ context.Context) Result {
	c.mu.Lock()
	unwinding := c.unwinding
	abs := math.Abs(c.cumulative)
	c.mu.Unlock()

	// While a defensive unwind is running, report QueueStop regardless of the
	// threshold crossed so the watchdog doesn't fight the unwind with an
	// abort: an unwind in progress is already the corrective action.
	if unwinding {
		return Result{Check: c.Name(), Severity: QueueStop, Reason: "cable wrap unwind in progress"}
	}

	switch {
	case abs >= c.hardLimitDeg:
		return Result{
			Check:    c.Name(),
			Severity: Emergency,
			Reason:   fmt.Sprintf("cumulative wrap %.1f deg at/past hard limit %.1f deg", abs, c.hardLimitDeg),
		}
	case abs >= c.softLimitDeg:
		return Result{
			Check:    c.Name(),
			Severity: QueueStop,
			Reason:   fmt.Sprintf("cumulative wrap %.1f deg at/past soft limit %.1f deg", abs, c.softLimitDeg),
		}
	default:
		return Result{Check: c.Name(), Severity: Safe}
	}
}

// CheckProposedAction blocks a proposed slew once headroom to the soft limit
// is under the slew-block margin, since a single slew can add up to ~180 deg
// of wrap; every other action kind is unaffected. Always blocks while an
// unwind is in progress.
func (c *CableWrapCheck) CheckProposedAction(kind string, _ map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unwinding {
		return false
	}
	if kind != "slew" {
		return true
	}
	abs := math.Abs(c.cumulative)
	if abs >= c.softLimitDeg {
		return false
	}
	return c.softLimitDeg-abs >= slewBlockMarginDeg
}

// Reset clears cumulative wrap state back to zero, e.g. once a defensive
// unwind completes or an operator confirms the cables are physically clear.
func (c *CableWrapCheck) Reset() {
	c.mu.Lock()
	c.cumulative = 0
	c.lastRaw = 0
	c.hasReading = false
	c.mu.Unlock()

	if err := c.persist(0, 0); err != nil {
		slog.Warn("cable wrap: failed to persist reset state", "error", err)
	}
}

// ExecuteAction performs a defensive directional unwind: command the mount
// back toward its cable-safe home in the direction opposite the accumulated
// wrap, sampling its actual azimuth after every step so stall detection
// reflects what the mount really did, not what was commanded. Guarded
// against re-entry; a second call while one is already running is a no-op.
func (c *CableWrapCheck) ExecuteAction(ctx context.Context, mount MountUnwinder) error {
	c.mu.Lock()
	if c.unwinding {
		c.mu.Unlock()
		return nil
	}
	c.unwinding = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.unwinding = false
		c.mu.Unlock()
		c.Reset()
	}()

	return c.runUnwind(ctx, mount)
}

func (c *CableWrapCheck) runUnwind(ctx context.Context, mount MountUnwinder) error {
	c.mu.Lock()
	direction := -1.0
	if c.cumulative < 0 {
		direction = 1.0
	}
	startAz := c.lastRaw
	c.mu.Unlock()

	step := unwindRateDegPerSec * unwindPollInterval.Seconds()
	recent := []float64{startAz}
	var travel float64

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(unwindPollInterval):
		}

		c.mu.Lock()
		target := math.Mod(c.lastRaw+direction*step, 360)
		c.mu.Unlock()
		if target < 0 {
			target += 360
		}

		if err := mount.PointAzimuth(ctx, target); err != nil {
			return fmt.Errorf("cable wrap: unwind command failed: %w", err)
		}
		az, err := mount.CurrentAzimuth(ctx)
		if err != nil {
			return fmt.Errorf("cable wrap: unwind lost azimuth reading: %w", err)
		}

		c.mu.Lock()
		delta := signedShortestArc(c.lastRaw, az)
		c.cumulative += delta
		c.lastRaw = az
		cumulative := c.cumulative
		c.mu.Unlock()
		travel += math.Abs(delta)

		if err := c.persist(cumulative, az); err != nil {
			slog.Warn("cable wrap: failed to persist unwind progress", "error", err)
		}

		// Stall detection uses wrapped pairwise deltas between sampled
		// readings, not the commanded step size, so a physically stuck mount
		// (azimuth not actually changing) is caught even straddling 0/360.
		recent = append(recent, az)
		if len(recent) > c.stallCount {
			recent = recent[len(recent)-c.stallCount:]
		}
		if len(recent) == c.stallCount {
			maxStep := 0.0
			for i := 0; i < len(recent)-1; i++ {
				s := math.Abs(signedShortestArc(recent[i], recent[i+1]))
				if s > maxStep {
					maxStep = s
				}
			}
			if maxStep < c.stallDeltaDeg {
				return ErrCableWrapStalled
			}
		}

		if travel > c.travelBudgetDeg {
			return fmt.Errorf("cable wrap: unwind travel budget exceeded (%.1f deg > %.1f deg)", travel, c.travelBudgetDeg)
		}
		if math.Abs(cumulative) <= c.convergenceDeg {
			return nil
		}
	}
}

func (c *CableWrapCheck) persist(cumulative, lastRaw float64) error {
	state := cableWrapState{
		CumulativeDeg: cumulative,
		LastRawAzDeg:  lastRaw,
		HasReading:    true,
		UpdatedAt:     time.Now(),
	}
	return saveCableWrapState(c.statePath, state)
}

func loadCableWrapState(path string) (cableWrapState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cableWrapState{}, err
	}
	var state cableWrapState
	if err := json.Unmarshal(data, &state); err != nil {
		return cableWrapState{}, fmt.Errorf("unmarshal %q: %w", path, err)
	}
	return state, nil
}

func saveCableWrapState(path string, state cableWrapState) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cable wrap state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".cable_wrap.*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename to %q: %w", path, err)
	}
	return nil
}
