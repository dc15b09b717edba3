package scheduler

import (
	"container/heap"
	"fmt"
	"sync"
	"time"
)

// ErrUnknownJob is returned when Remove is called with an ID not in the heap.
var ErrUnknownJob = fmt.Errorf("scheduler: unknown job")

// Scheduler holds the pending-job min-heap and a paused flag. Runner consults
// it to decide what to dispatch and when.
type Scheduler struct {
	mu        sync.Mutex
	jobs      jobHeap
	byID      map[string]*Job
	paused    bool
	automated bool
	current   string // task ID of the job currently being dispatched, if any
}

// New returns an empty Scheduler, with automated scheduling enabled by
// default.
func New() *Scheduler {
	s := &Scheduler{byID: make(map[string]*Job), automated: true}
	heap.Init(&s.jobs)
	return s
}

// Add inserts a new job. Re-adding an existing task ID replaces its window.
func (s *Scheduler) Add(taskID string, start, stop time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[taskID]; ok {
		heap.Remove(&s.jobs, existing.index)
		delete(s.byID, taskID)
	}

	job := &Job{TaskID: taskID, StartEpoch: start, StopEpoch: stop}
	heap.Push(&s.jobs, job)
	s.byID[taskID] = job
}

// Remove drops a pending job by task ID.
func (s *Scheduler) Remove(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[taskID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, taskID)
	}
	heap.Remove(&s.jobs, job.index)
	delete(s.byID, taskID)
	return nil
}

// Clear drops every pending job.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = jobHeap{}
	s.byID = make(map[string]*Job)
}

// Pause stops PopReady from returning jobs until Resume is called. Jobs
// already in the heap stay there.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Resume re-enables PopReady.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// IsPaused reports whether the scheduler is currently paused.
func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// SetAutomated toggles whether the runner is allowed to dispatch jobs at
// all, independent of pause: pause reflects a safety-driven halt, automated
// reflects an operator's standing choice (the dispatch server's PATCH
// /telescopes toggle). Both must allow dispatch for a job to run.
func (s *Scheduler) SetAutomated(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.automated = on
}

// IsAutomated reports whether automated scheduling is currently enabled.
func (s *Scheduler) IsAutomated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.automated
}

// SetCurrent designates taskID as the job currently being handled by the
// pipeline, exempting it from Reconcile's eviction even if a later server
// poll temporarily omits it from the authoritative task list.
func (s *Scheduler) SetCurrent(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = taskID
}

// ClearCurrent drops the current-task designation once its pipeline pass
// reaches a terminal outcome.
func (s *Scheduler) ClearCurrent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = ""
}

// IsCurrent reports whether taskID is the designated current task.
func (s *Scheduler) IsCurrent(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != "" && s.current == taskID
}

// Requeue reinserts a job that was popped but could not be dispatched (a
// gate failure, not an expired window), so it's retried on a later tick
// without losing its place or being treated as a late re-poll.
func (s *Scheduler) Requeue(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[job.TaskID]; exists {
		return
	}
	heap.Push(&s.jobs, job)
	s.byID[job.TaskID] = job
}

// Reconcile drops every pending job whose task ID is absent from known,
// except the designated current task, which is never evicted mid-flight.
// known should hold every task ID the dispatch server currently lists with
// status Pending or Scheduled. It returns the evicted task IDs.
func (s *Scheduler) Reconcile(known map[string]struct{}) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for taskID, job := range s.byID {
		if taskID == s.current {
			continue
		}
		if _, ok := known[taskID]; ok {
			continue
		}
		heap.Remove(&s.jobs, job.index)
		delete(s.byID, taskID)
		evicted = append(evicted, taskID)
	}
	return evicted
}

// PopReady pops and returns the earliest job whose StartEpoch has arrived, or
// nil if the heap is empty, paused, or the earliest job hasn't started yet.
func (s *Scheduler) PopReady(now time.Time) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || !s.automated || len(s.jobs) == 0 {
		return nil
	}
	top := s.jobs[0]
	if top.StartEpoch.After(now) {
		return nil
	}
	job := heap.Pop(&s.jobs).(*Job)
	delete(s.byID, job.TaskID)
	return job
}

// PeekNext returns the earliest job's start time without removing it, for
// computing how long the runner should sleep.
func (s *Scheduler) PeekNext() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return time.Time{}, false
	}
	return s.jobs[0].StartEpoch, true
}

// Len returns the number of pending jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}
