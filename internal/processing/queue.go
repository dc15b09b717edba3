package processing

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/citra-space/citrascope/internal/queue"
	"github.com/citra-space/citrascope/internal/task"
)

// Job is one capture handed to the processing queue.
type Job struct {
	TaskID            string
	ImagePath         string
	TelescopeName     string
	GroundStationName string
}

// CompletionFunc is invoked exactly once per job once it reaches a terminal
// outcome: agg is nil when the job fails open (retries exhausted, raw image
// uploaded unprocessed) per spec, non-nil otherwise.
type CompletionFunc func(job Job, agg *Aggregated)

// Queue wraps the generic retrying work queue with the per-job working
// directory lifecycle and the chain registry described in spec: each job
// gets its own scratch directory under imagesRoot/../processing/<task-id>/,
// deleted once the job reaches either terminal outcome.
type Queue struct {
	inner      *queue.Queue[Job]
	registry   *Registry
	imagesRoot string
	onComplete CompletionFunc
	tasks      *task.Registry

	resultsMu sync.Mutex
	results   map[string]Aggregated
}

// Config configures the processing queue's worker pool and retry budget.
type Config struct {
	Workers       int
	MaxRetries    int
	QueueCapacity int
}

// New constructs the processing queue. imagesRoot is the raw-capture storage
// root; working directories are created as siblings under "processing/".
func New(cfg Config, registry *Registry, tasks *task.Registry, imagesRoot string, onComplete CompletionFunc) *Queue {
	q := &Queue{
		registry:   registry,
		imagesRoot: imagesRoot,
		onComplete: onComplete,
		tasks:      tasks,
	}
	q.inner = queue.New("processing", queue.Config{
		Workers:       cfg.Workers,
		MaxRetries:    cfg.MaxRetries,
		QueueCapacity: cfg.QueueCapacity,
	}, q.executeWork,
		queue.WithOnSuccess(q.onSuccess),
		queue.WithOnPermanentFailure(q.onPermanentFailure),
	)
	return q
}

// Start launches the worker pool.
func (q *Queue) Start(ctx context.Context) { q.inner.Start(ctx) }

// Stop drains in-flight jobs to a terminal outcome, then returns.
func (q *Queue) Stop() { q.inner.Stop() }

// Enqueue admits a capture for processing.
func (q *Queue) Enqueue(job Job) (string, error) {
	return q.inner.Enqueue(job)
}

// Stats returns queue counters.
func (q *Queue) Stats() queue.Stats { return q.inner.Stats() }

func (q *Queue) workingDir(taskID string) string {
	return filepath.Join(q.imagesRoot, "..", "processing", taskID)
}

func (q *Queue) executeWork(ctx context.Context, item *queue.Item[Job]) error {
	job := item.Payload

	if t, err := q.tasks.Get(job.TaskID); err == nil {
		t.Transition(task.StateProcessing)
		_ = q.tasks.MoveToBucket(job.TaskID, task.BucketProcessing)
	}

	workDir := q.workingDir(job.TaskID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("processing: create working dir: %w", err)
	}

	workingImage := filepath.Join(workDir, filepath.Base(job.ImagePath))
	if err := copyFile(job.ImagePath, workingImage); err != nil {
		return fmt.Errorf("processing: stage working copy: %w", err)
	}

	pc := &Context{
		TaskID:            job.TaskID,
		ImagePath:         job.ImagePath,
		WorkingImagePath:  workingImage,
		WorkingDir:        workDir,
		TelescopeName:     job.TelescopeName,
		GroundStationName: job.GroundStationName,
	}

	agg, err := q.registry.ProcessAll(ctx, pc)
	if err != nil {
		return err
	}

	q.stashResult(job.TaskID, agg)
	return nil
}

// stashResult holds the most recent Aggregated per task ID so onSuccess can
// hand it to the completion callback without threading it back through the
// generic queue's Handler signature.
func (q *Queue) stashResult(taskID string, agg Aggregated) {
	q.resultsMu.Lock()
	defer q.resultsMu.Unlock()
	if q.results == nil {
		q.results = make(map[string]Aggregated)
	}
	q.results[taskID] = agg
}

func (q *Queue) takeResult(taskID string) (Aggregated, bool) {
	q.resultsMu.Lock()
	defer q.resultsMu.Unlock()
	agg, ok := q.results[taskID]
	delete(q.results, taskID)
	return agg, ok
}

func (q *Queue) onSuccess(item *queue.Item[Job]) {
	job := item.Payload
	defer q.cleanupWorkDir(job.TaskID)

	agg, ok := q.takeResult(job.TaskID)
	if !ok {
		slog.Warn("processing queue: succeeded item missing stashed result", "task_id", job.TaskID)
		agg = Aggregated{ShouldUpload: true}
	}
	if q.onComplete != nil {
		q.onComplete(job, &agg)
	}
}

// onPermanentFailure fails open per spec: the caller proceeds with the raw,
// unprocessed image rather than dropping the capture.
func (q *Queue) onPermanentFailure(item *queue.Item[Job], err error) {
	job := item.Payload
	defer q.cleanupWorkDir(job.TaskID)

	slog.Warn("processing queue: job failed open, uploading raw image", "task_id", job.TaskID, "error", err)
	if q.onComplete != nil {
		q.onComplete(job, nil)
	}
}

func (q *Queue) cleanupWorkDir(taskID string) {
	if err := os.RemoveAll(q.workingDir(taskID)); err != nil {
		slog.Warn("processing queue: failed to clean up working dir", "task_id", taskID, "error", err)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := out.ReadFrom(in); err != nil {
		return err
	}
	return out.Close()
}
