package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Dispatch is invoked once a job's start time arrives and it has cleared the
// gate. It runs asynchronously from the runner's perspective: Dispatch should
// hand the job off (e.g. to the imaging queue) and return quickly rather than
// block the loop.
type Dispatch func(job *Job)

// Gate is consulted for every ready job before it dispatches. It reports
// whether the job may proceed right now and, if not, a reason for logging.
// A nil Gate allows everything through.
type Gate func(job *Job) (ok bool, reason string)

// AbandonFunc is invoked for a ready job whose stop window has already
// passed by the time it was popped: it must never be dispatched, only
// reported as abandoned (e.g. marked Failed on the dispatch server).
type AbandonFunc func(job *Job)

// Runner drives the scheduler: it wakes either when the next job is due or
// on a fixed poll tick (to notice newly Added jobs without a long sleep),
// whichever comes first.
type Runner struct {
	sched    *Scheduler
	dispatch Dispatch
	tick     time.Duration

	gate    Gate
	abandon AbandonFunc
}

// NewRunner builds a Runner that checks the scheduler at least every tick.
func NewRunner(sched *Scheduler, dispatch Dispatch, tick time.Duration) *Runner {
	if tick <= 0 {
		tick = time.Second
	}
	return &Runner{sched: sched, dispatch: dispatch, tick: tick}
}

// SetGate installs the pre-dispatch gate (safety, manager activity, ...). A
// job that fails the gate is requeued rather than dropped or dispatched.
func (r *Runner) SetGate(gate Gate) { r.gate = gate }

// SetAbandonFunc installs the callback for jobs whose window already closed
// before they could be dispatched.
func (r *Runner) SetAbandonFunc(fn AbandonFunc) { r.abandon = fn }

// Run blocks, dispatching ready jobs, until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	timer := time.NewTimer(r.tick)
	defer timer.Stop()

	for {
		now := time.Now()
	dispatchLoop:
		for {
			job := r.sched.PopReady(now)
			if job == nil {
				break
			}

			if !job.StopEpoch.After(now) {
				slog.Warn("abandoning job, stop window already passed", "task_id", job.TaskID, "stop", job.StopEpoch)
				if r.abandon != nil {
					r.abandon(job)
				}
				continue
			}

			if r.gate != nil {
				if ok, reason := r.gate(job); !ok {
					slog.Info("deferring job, gate refused dispatch", "task_id", job.TaskID, "reason", reason)
					r.sched.Requeue(job)
					// Stop popping for this tick: a gate failure for the
					// earliest job is very likely to hold for the rest too,
					// and re-popping the job we just requeued would spin.
					break dispatchLoop
				}
			}

			slog.Info("dispatching job", "task_id", job.TaskID, "start", job.StartEpoch, "stop", job.StopEpoch)
			r.sched.SetCurrent(job.TaskID)
			r.dispatch(job)
		}

		wait := r.tick
		if next, ok := r.sched.PeekNext(); ok {
			if d := time.Until(next); d < wait {
				if d < 0 {
					d = 0
				}
				wait = d
			}
		}
		timer.Reset(wait)

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}
}
