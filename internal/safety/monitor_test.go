package safety

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCheck struct {
	name     string
	severity atomic.Int32
	reason   string
}

func newFakeCheck(name string) *fakeCheck { return &fakeCheck{name: name} }

type fakePanicCheck struct {
	name string
}

func (f *fakePanicCheck) Name() string                                       { return f.name }
func (f *fakePanicCheck) Evaluate(_ context.Context) Result                  { panic("boom") }
func (f *fakePanicCheck) CheckProposedAction(_ string, _ map[string]any) bool { panic("boom") }

func (f *fakeCheck) Name() string     { return f.name }
func (f *fakeCheck) set(sev Severity) { f.severity.Store(int32(sev)) }
func (f *fakeCheck) Evaluate(_ context.Context) Result {
	return Result{Check: f.name, Severity: Severity(f.severity.Load()), Reason: f.reason}
}
func (f *fakeCheck) CheckProposedAction(_ string, _ map[string]any) bool {
	return Severity(f.severity.Load()) < QueueStop
}

func TestMonitor_ReducesToHighestSeverity(t *testing.T) {
	a := newFakeCheck("a")
	b := newFakeCheck("b")
	b.set(Warn)

	m := NewMonitor(5*time.Millisecond, nil, a, b)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool { return m.Current().Severity == Warn }, time.Second, time.Millisecond)
}

func TestMonitor_IsActionSafeFalseAtQueueStop(t *testing.T) {
	a := newFakeCheck("a")
	a.set(QueueStop)
	m := NewMonitor(5*time.Millisecond, nil, a)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool { return !m.IsActionSafe("slew", nil) }, time.Second, time.Millisecond)
}

func TestMonitor_IsActionSafeConsultsPerCheckGate(t *testing.T) {
	a := newFakeCheck("a") // stays Safe throughout
	gate := &fakeGateCheck{name: "gate", allow: map[string]bool{"slew": false, "capture": true}}

	m := NewMonitor(5*time.Millisecond, nil, a, gate)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool { return m.Current().Severity == Safe }, time.Second, time.Millisecond)
	assert.False(t, m.IsActionSafe("slew", nil))
	assert.True(t, m.IsActionSafe("capture", nil))
}

func TestMonitor_TickSurvivesPanickingCheck(t *testing.T) {
	a := newFakeCheck("a")
	bad := &fakePanicCheck{name: "bad"}

	m := NewMonitor(5*time.Millisecond, nil, a, bad)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, func() bool { return m.Current().Severity == QueueStop }, time.Second, time.Millisecond)
	assert.False(t, m.IsActionSafe("slew", nil))
	assert.True(t, m.WatchdogHealthy())
}

func TestMonitor_WatchdogHealthyRequiresRecentHeartbeat(t *testing.T) {
	a := newFakeCheck("a")
	m := NewMonitor(5*time.Millisecond, nil, a)
	assert.False(t, m.WatchdogHealthy()) // never ticked yet

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	require.Eventually(t, m.WatchdogHealthy, time.Second, time.Millisecond)
	assert.Greater(t, m.LastHeartbeatMonotonicNs(), int64(0))
}

// fakeGateCheck always reports Safe but vetoes specific action kinds through
// CheckProposedAction, exercising the pre-action gate independent of severity.
type fakeGateCheck struct {
	name  string
	allow map[string]bool
}

func (f *fakeGateCheck) Name() string { return f.name }
func (f *fakeGateCheck) Evaluate(_ context.Context) Result {
	return Result{Check: f.name, Severity: Safe}
}
func (f *fakeGateCheck) CheckProposedAction(kind string, _ map[string]any) bool {
	ok, known := f.allow[kind]
	if !known {
		return true
	}
	return ok
}

func TestMonitor_AbortFiresExactlyOncePerEmergencyTransition(t *testing.T) {
	var abortCount atomic.Int32
	check := newFakeCheck("a")

	m := NewMonitor(2*time.Millisecond, func(worst Result) { abortCount.Add(1) }, check)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	defer m.Stop()

	check.set(Emergency)
	// Let many ticks pass while still in EMERGENCY - abort must not re-fire.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), abortCount.Load())

	// Drop below emergency and re-enter: abort fires again, exactly once.
	check.set(Safe)
	time.Sleep(20 * time.Millisecond)
	check.set(Emergency)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(2), abortCount.Load())
}
