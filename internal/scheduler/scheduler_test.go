package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_PopReadyOrdersByStartEpoch(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("late", now.Add(2*time.Hour), now.Add(3*time.Hour))
	s.Add("early", now.Add(-time.Hour), now.Add(time.Hour))

	job := s.PopReady(now)
	require.NotNil(t, job)
	assert.Equal(t, "early", job.TaskID)

	assert.Nil(t, s.PopReady(now))
}

func TestScheduler_TieBreaksOnStopEpochThenID(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("b", now, now.Add(2*time.Hour))
	s.Add("a", now, now.Add(time.Hour))

	job := s.PopReady(now)
	require.NotNil(t, job)
	assert.Equal(t, "a", job.TaskID)
}

func TestScheduler_PauseSuppressesPopReady(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("job1", now.Add(-time.Minute), now.Add(time.Minute))
	s.Pause()
	assert.Nil(t, s.PopReady(now))
	s.Resume()
	assert.NotNil(t, s.PopReady(now))
}

func TestScheduler_RemoveAndClear(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("job1", now, now.Add(time.Hour))
	s.Add("job2", now, now.Add(time.Hour))

	require.NoError(t, s.Remove("job1"))
	assert.ErrorIs(t, s.Remove("job1"), ErrUnknownJob)
	assert.Equal(t, 1, s.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_ReAddingReplacesWindow(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("job1", now.Add(time.Hour), now.Add(2*time.Hour))
	s.Add("job1", now.Add(-time.Minute), now.Add(time.Minute))

	assert.Equal(t, 1, s.Len())
	job := s.PopReady(now)
	require.NotNil(t, job)
	assert.Equal(t, "job1", job.TaskID)
}

func TestScheduler_ReconcileEvictsUnknownTasksExceptCurrent(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("keep", now.Add(time.Hour), now.Add(2*time.Hour))
	s.Add("drop", now.Add(time.Hour), now.Add(2*time.Hour))
	s.Add("current", now.Add(time.Hour), now.Add(2*time.Hour))
	s.SetCurrent("current")

	evicted := s.Reconcile(map[string]struct{}{"keep": {}})

	assert.ElementsMatch(t, []string{"drop"}, evicted)
	assert.Equal(t, 2, s.Len()) // keep + current survive
}

func TestScheduler_AutomatedToggleGatesPopReady(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("job1", now.Add(-time.Minute), now.Add(time.Minute))

	s.SetAutomated(false)
	assert.Nil(t, s.PopReady(now))
	s.SetAutomated(true)
	assert.NotNil(t, s.PopReady(now))
}

func TestScheduler_RequeueMakesJobPoppableAgain(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("job1", now.Add(-time.Minute), now.Add(time.Minute))

	job := s.PopReady(now)
	require.NotNil(t, job)
	assert.Nil(t, s.PopReady(now))

	s.Requeue(job)
	assert.Equal(t, 1, s.Len())
	again := s.PopReady(now)
	require.NotNil(t, again)
	assert.Equal(t, "job1", again.TaskID)
}

func TestScheduler_CurrentTaskTracking(t *testing.T) {
	s := New()
	assert.False(t, s.IsCurrent("a"))
	s.SetCurrent("a")
	assert.True(t, s.IsCurrent("a"))
	assert.False(t, s.IsCurrent("b"))
	s.ClearCurrent()
	assert.False(t, s.IsCurrent("a"))
}

func TestRunner_DispatchesReadyJobs(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("job1", now.Add(-time.Second), now.Add(time.Minute))

	dispatched := make(chan string, 1)
	r := NewRunner(s, func(job *Job) { dispatched <- job.TaskID }, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	select {
	case id := <-dispatched:
		assert.Equal(t, "job1", id)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestRunner_GateFailureRequeuesInsteadOfDispatching(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("job1", now.Add(-time.Second), now.Add(time.Minute))

	var dispatchCount atomic.Int32
	r := NewRunner(s, func(job *Job) { dispatchCount.Add(1) }, 5*time.Millisecond)

	var gateCalls atomic.Int32
	r.SetGate(func(job *Job) (bool, string) {
		gateCalls.Add(1)
		return false, "safety monitor reports unsafe"
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.Eventually(t, func() bool { return gateCalls.Load() > 0 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), dispatchCount.Load())
	assert.Equal(t, 1, s.Len()) // job was requeued, not dropped
}

func TestRunner_AbandonsJobsPastTheirStopWindow(t *testing.T) {
	s := New()
	now := time.Now()
	s.Add("expired", now.Add(-time.Minute), now.Add(-time.Second))

	var dispatchCount atomic.Int32
	r := NewRunner(s, func(job *Job) { dispatchCount.Add(1) }, 5*time.Millisecond)

	abandoned := make(chan string, 1)
	r.SetAbandonFunc(func(job *Job) { abandoned <- job.TaskID })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	select {
	case id := <-abandoned:
		assert.Equal(t, "expired", id)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for abandon")
	}
	assert.Equal(t, int32(0), dispatchCount.Load())
}
