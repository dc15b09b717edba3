package manager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutine_RequestThenExecuteClearsRequest(t *testing.T) {
	ran := false
	r := NewRoutine("test", func(ctx context.Context) error {
		ran = true
		return nil
	})
	r.Request()
	require.True(t, r.IsRequested())

	require.NoError(t, r.CheckAndExecute(context.Background(), false))
	assert.True(t, ran)
	assert.False(t, r.IsRequested())
	assert.False(t, r.IsRunning())
	assert.False(t, r.LastRun().IsZero())
}

func TestRoutine_BusyImagingReSetsRequestInsteadOfDropping(t *testing.T) {
	ran := false
	r := NewRoutine("test", func(ctx context.Context) error {
		ran = true
		return nil
	})
	r.Request()

	require.NoError(t, r.CheckAndExecute(context.Background(), true))
	assert.False(t, ran)
	assert.True(t, r.IsRequested(), "request must be re-set, not dropped, when imaging is busy")

	require.NoError(t, r.CheckAndExecute(context.Background(), false))
	assert.True(t, ran)
}

func TestRoutine_NoRequestIsNoop(t *testing.T) {
	called := false
	r := NewRoutine("test", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, r.CheckAndExecute(context.Background(), false))
	assert.False(t, called)
}

func TestRoutine_LastRunRecordedEvenOnFailure(t *testing.T) {
	r := NewRoutine("test", func(ctx context.Context) error {
		return errors.New("boom")
	})
	r.Request()
	err := r.CheckAndExecute(context.Background(), false)
	assert.Error(t, err)
	assert.False(t, r.LastRun().IsZero())
}

func TestRoutine_ShouldRunScheduled(t *testing.T) {
	r := NewRoutine("test", func(ctx context.Context) error { return nil })
	assert.True(t, r.ShouldRunScheduled(time.Millisecond))

	r.Request()
	require.NoError(t, r.CheckAndExecute(context.Background(), false))
	assert.False(t, r.ShouldRunScheduled(time.Hour))
	time.Sleep(2 * time.Millisecond)
	assert.True(t, r.ShouldRunScheduled(time.Millisecond))
}
