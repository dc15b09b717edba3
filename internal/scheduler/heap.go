// Package scheduler implements the C7 scheduler: a min-heap of pending jobs
// ordered by (start epoch, stop epoch, id), a poller that fetches new tasks
// from the dispatch server, and a runner that dispatches jobs as their start
// time arrives. Grounded on the teacher's internal/scheduler/{scheduler,job}.go
// for the goroutine-driven scheduler shape, generalized from its singleton
// job map to a real container/heap priority queue per spec.md §4.7 (richer
// than either the teacher's prototype or original_source's
// tasks/runner.py TaskManager, both of which lack safety gating and the
// pause/clear semantics spec.md requires).
package scheduler

import (
	"container/heap"
	"time"
)

// Job is one heap entry: a task ID and the window it's scheduled to run in.
type Job struct {
	TaskID     string
	StartEpoch time.Time
	StopEpoch  time.Time

	index int // managed by container/heap
}

// jobHeap implements heap.Interface, ordering by (StartEpoch, StopEpoch, TaskID).
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if !h[i].StartEpoch.Equal(h[j].StartEpoch) {
		return h[i].StartEpoch.Before(h[j].StartEpoch)
	}
	if !h[i].StopEpoch.Equal(h[j].StopEpoch) {
		return h[i].StopEpoch.Before(h[j].StopEpoch)
	}
	return h[i].TaskID < h[j].TaskID
}

func (h jobHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *jobHeap) Push(x any) {
	job := x.(*Job)
	job.index = len(*h)
	*h = append(*h, job)
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	job.index = -1
	*h = old[:n-1]
	return job
}

var _ heap.Interface = (*jobHeap)(nil)
