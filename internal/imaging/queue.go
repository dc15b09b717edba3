// Package imaging implements the C4 imaging queue: a single-worker queue
// that drives the telescope task driver's capture phase for each scheduled
// task and routes the captured frame on to processing. Grounded on the
// worker-count-fixed-at-one shape of original_source/citrascope/tasks/
// imaging_queue.py (only one exposure can be in flight against the mount at
// a time) and on internal/queue.Queue[T] for the retry/backoff mechanics.
package imaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/citra-space/citrascope/internal/apiclient"
	"github.com/citra-space/citrascope/internal/queue"
	"github.com/citra-space/citrascope/internal/task"
)

// Executor drives one task's capture phase to completion, returning the raw
// image path. Implemented by the C10 telescope task driver.
type Executor interface {
	Execute(ctx context.Context, taskID string) (imagePath string, err error)
}

// CompletionFunc is invoked once a task's imaging succeeds, handing the
// captured image path on to the processing stage.
type CompletionFunc func(taskID, imagePath string)

// Queue is the C4 imaging queue. Its worker count is always 1: the mount and
// camera are a single shared resource and only one exposure can be driven at
// a time, no matter how many tasks are scheduled concurrently.
type Queue struct {
	inner      *queue.Queue[string]
	executor   Executor
	tasks      *task.Registry
	client     *apiclient.Client
	onComplete CompletionFunc
	onSettled  func(taskID string)
}

// Config configures the imaging queue's retry budget.
type Config struct {
	MaxRetries    int
	QueueCapacity int
}

// New constructs the imaging queue.
func New(cfg Config, executor Executor, tasks *task.Registry, client *apiclient.Client, onComplete CompletionFunc) *Queue {
	q := &Queue{executor: executor, tasks: tasks, client: client, onComplete: onComplete}
	q.inner = queue.New("imaging", queue.Config{
		Workers:       1,
		MaxRetries:    cfg.MaxRetries,
		QueueCapacity: cfg.QueueCapacity,
	}, q.executeWork,
		queue.WithOnSuccess(q.onSuccess),
		queue.WithOnPermanentFailure(q.onPermanentFailure),
	)
	return q
}

// Start launches the single worker.
func (q *Queue) Start(ctx context.Context) { q.inner.Start(ctx) }

// Stop drains in-flight work to a terminal outcome.
func (q *Queue) Stop() { q.inner.Stop() }

// Enqueue admits a scheduled task for imaging.
func (q *Queue) Enqueue(taskID string) (string, error) {
	return q.inner.Enqueue(taskID)
}

// Stats returns queue counters.
func (q *Queue) Stats() queue.Stats { return q.inner.Stats() }

// SetOnSettled registers a hook fired once a task's imaging reaches a
// terminal outcome, success or permanent failure, identified by task ID.
// The scheduler uses this to know when it may stop protecting the task from
// poller eviction and treat the mount as free for the next dispatch.
func (q *Queue) SetOnSettled(fn func(taskID string)) {
	q.onSettled = fn
}

func (q *Queue) executeWork(ctx context.Context, item *queue.Item[string]) error {
	taskID := item.Payload

	t, err := q.tasks.Get(taskID)
	if err != nil {
		return fmt.Errorf("imaging: %w", err)
	}
	t.Transition(task.StateImaging)
	_ = q.tasks.MoveToBucket(taskID, task.BucketImaging)
	if q.client != nil {
		_ = q.client.UpdateTaskStatus(ctx, taskID, "Starting imaging...")
	}

	imagePath, err := q.executor.Execute(ctx, taskID)
	if err != nil {
		return fmt.Errorf("imaging: execute: %w", err)
	}
	t.SetImagePath(imagePath)
	return nil
}

func (q *Queue) onSuccess(item *queue.Item[string]) {
	taskID := item.Payload
	t, err := q.tasks.Get(taskID)
	if err != nil {
		slog.Warn("imaging queue: succeeded item references unknown task", "task_id", taskID)
		return
	}
	if q.onComplete != nil {
		q.onComplete(taskID, t.ImagePath())
	}
	if q.onSettled != nil {
		q.onSettled(taskID)
	}
}

// onPermanentFailure marks the task failed both locally and on the dispatch
// server, and drops it from every stage bucket: imaging cannot fail open the
// way processing can, since there is no raw frame to fall back to.
func (q *Queue) onPermanentFailure(item *queue.Item[string], err error) {
	taskID := item.Payload
	slog.Warn("imaging queue: task permanently failed", "task_id", taskID, "error", err)

	t, getErr := q.tasks.Get(taskID)
	if getErr != nil {
		return
	}
	t.Fail("Imaging permanently failed: " + err.Error())
	q.tasks.Remove(taskID)

	if q.client != nil {
		if markErr := q.client.MarkTaskFailed(context.Background(), taskID, "Imaging permanently failed: "+err.Error()); markErr != nil {
			slog.Warn("imaging queue: failed to report failure to dispatch server", "task_id", taskID, "error", markErr)
		}
	}
	if q.onSettled != nil {
		q.onSettled(taskID)
	}
}
