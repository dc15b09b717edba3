package safety

import (
	"context"
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOperatorStopCheck_RequestAndClear(t *testing.T) {
	c := NewOperatorStopCheck()
	assert.Equal(t, Safe, c.Evaluate(context.Background()).Severity)
	assert.True(t, c.CheckProposedAction("slew", nil))

	c.RequestStop()
	assert.Equal(t, Emergency, c.Evaluate(context.Background()).Severity)
	assert.True(t, c.IsRequested())
	assert.False(t, c.CheckProposedAction("slew", nil))
	assert.False(t, c.CheckProposedAction("capture", nil))

	c.ClearStop()
	assert.Equal(t, Safe, c.Evaluate(context.Background()).Severity)
	assert.True(t, c.CheckProposedAction("slew", nil))
}

func TestDiskSpaceCheck_Thresholds(t *testing.T) {
	c := NewDiskSpaceCheck("/images", 500, 2000)

	mkStatfs := func(freeMB int64) func(string, *syscall.Statfs_t) error {
		return func(_ string, stat *syscall.Statfs_t) error {
			stat.Bsize = 1024
			stat.Bavail = uint64(freeMB * 1024)
			return nil
		}
	}

	c.statfsFunc = mkStatfs(5000)
	assert.Equal(t, Safe, c.Evaluate(context.Background()).Severity)
	assert.True(t, c.CheckProposedAction("capture", nil))

	c.statfsFunc = mkStatfs(1000)
	assert.Equal(t, Warn, c.Evaluate(context.Background()).Severity)
	assert.True(t, c.CheckProposedAction("capture", nil))

	c.statfsFunc = mkStatfs(100)
	assert.Equal(t, QueueStop, c.Evaluate(context.Background()).Severity)
	assert.False(t, c.CheckProposedAction("capture", nil))
	assert.True(t, c.CheckProposedAction("slew", nil))

	c.statfsFunc = func(_ string, _ *syscall.Statfs_t) error { return errors.New("boom") }
	assert.Equal(t, QueueStop, c.Evaluate(context.Background()).Severity)
}

type fakeTimeSource struct {
	offsetMs int64
	err      error
}

func (f fakeTimeSource) OffsetMillis(_ context.Context) (int64, error) { return f.offsetMs, f.err }

func TestTimeHealthCheck_Thresholds(t *testing.T) {
	c := NewTimeHealthCheck(fakeTimeSource{offsetMs: 10}, 500, 2000)
	assert.Equal(t, Safe, c.Evaluate(context.Background()).Severity)

	c = NewTimeHealthCheck(fakeTimeSource{offsetMs: 800}, 500, 2000)
	assert.Equal(t, Warn, c.Evaluate(context.Background()).Severity)

	c = NewTimeHealthCheck(fakeTimeSource{offsetMs: -3000}, 500, 2000)
	assert.Equal(t, QueueStop, c.Evaluate(context.Background()).Severity)

	c = NewTimeHealthCheck(fakeTimeSource{err: errors.New("no ntp")}, 500, 2000)
	assert.Equal(t, QueueStop, c.Evaluate(context.Background()).Severity)
}
