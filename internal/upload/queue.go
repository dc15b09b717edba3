// Package upload implements the C6 upload queue: the final pipeline stage,
// which enriches a capture's FITS header, ships it to the dispatch server,
// and reports any processor-extracted observation data alongside it.
// Grounded on original_source/citrascope/tasks/upload_queue.py's
// should_upload short-circuit and its enrich-then-upload-then-report-status
// sequencing.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/citra-space/citrascope/internal/apiclient"
	"github.com/citra-space/citrascope/internal/fits"
	"github.com/citra-space/citrascope/internal/location"
	"github.com/citra-space/citrascope/internal/processing"
	"github.com/citra-space/citrascope/internal/queue"
	"github.com/citra-space/citrascope/internal/task"
)

// Mirror optionally ships a copy of an uploaded capture somewhere outside
// the dispatch server, e.g. an S3-compatible bucket. Implemented by
// internal/s3stage.Stage.
type Mirror interface {
	MirrorFile(ctx context.Context, key, localPath string) error
}

// Job is one capture handed to the upload queue.
type Job struct {
	TaskID             string
	ImagePath          string
	SatelliteName      string
	GroundStationName  string
	TelescopeName      string
	AssignedFilterName string
	// ShouldUpload is the processing stage's aggregated verdict (true if
	// processing was skipped entirely, i.e. a fail-open capture).
	ShouldUpload  bool
	SkipReason    string
	ExtractedData map[string]any
}

// LocationSource supplies the current ground-station position for header
// enrichment. Implemented by internal/location.Service.
type LocationSource interface {
	CurrentLocation() (location.Location, bool)
}

// Queue is the C6 upload queue.
type Queue struct {
	inner    *queue.Queue[Job]
	client   *apiclient.Client
	tasks    *task.Registry
	location LocationSource
	mirror   Mirror
}

// Config configures the upload queue's worker pool and retry budget.
type Config struct {
	Workers       int
	MaxRetries    int
	QueueCapacity int
}

// New constructs the upload queue. mirror may be nil, in which case no
// off-site copy is made.
func New(cfg Config, client *apiclient.Client, tasks *task.Registry, loc LocationSource, mirror Mirror) *Queue {
	q := &Queue{client: client, tasks: tasks, location: loc, mirror: mirror}
	q.inner = queue.New("upload", queue.Config{
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

// Stop drains in-flight jobs to a terminal outcome.
func (q *Queue) Stop() { q.inner.Stop() }

// Enqueue admits a capture for upload.
func (q *Queue) Enqueue(job Job) (string, error) {
	return q.inner.Enqueue(job)
}

// Stats returns queue counters.
func (q *Queue) Stats() queue.Stats { return q.inner.Stats() }

// FromAggregated builds the ShouldUpload/SkipReason/ExtractedData fields of
// a Job from a processing.Aggregated result, or defaults to "upload raw"
// when agg is nil (the processing queue failed open).
func FromAggregated(agg *processing.Aggregated) (shouldUpload bool, skipReason string, extracted map[string]any) {
	if agg == nil {
		return true, "", nil
	}
	return agg.ShouldUpload, agg.SkipReason, agg.ExtractedData
}

func (q *Queue) executeWork(ctx context.Context, item *queue.Item[Job]) error {
	job := item.Payload

	t, err := q.tasks.Get(job.TaskID)
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	t.Transition(task.StateUploading)
	_ = q.tasks.MoveToBucket(job.TaskID, task.BucketUpload)

	if !job.ShouldUpload {
		slog.Info("upload queue: skipping rejected capture", "task_id", job.TaskID, "reason", job.SkipReason)
		if err := q.client.MarkTaskComplete(ctx, job.TaskID); err != nil {
			return fmt.Errorf("upload: mark complete (skipped): %w", err)
		}
		return nil
	}

	fits.Enrich(job.ImagePath, &fits.TaskContext{
		TaskID:             job.TaskID,
		SatelliteName:      job.SatelliteName,
		GroundStationName:  job.GroundStationName,
		TelescopeName:      job.TelescopeName,
		AssignedFilterName: job.AssignedFilterName,
	}, q.currentLocation())

	if _, err := q.client.UploadImage(ctx, job.TaskID, job.ImagePath); err != nil {
		return fmt.Errorf("upload: upload image: %w", err)
	}

	if q.mirror != nil {
		key := job.TaskID + "/" + filepath.Base(job.ImagePath)
		if err := q.mirror.MirrorFile(ctx, key, job.ImagePath); err != nil {
			slog.Warn("s3 mirror failed, upload itself already succeeded", "task_id", job.TaskID, "error", err)
		}
	}

	if len(job.ExtractedData) > 0 {
		if err := q.client.PostOpticalObservation(ctx, job.TaskID, job.ExtractedData); err != nil {
			return fmt.Errorf("upload: post optical observation: %w", err)
		}
	}

	if err := q.client.MarkTaskComplete(ctx, job.TaskID); err != nil {
		return fmt.Errorf("upload: mark complete: %w", err)
	}
	return nil
}

func (q *Queue) currentLocation() *fits.Location {
	if q.location == nil {
		return nil
	}
	loc, ok := q.location.CurrentLocation()
	if !ok {
		return nil
	}
	return &fits.Location{
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Altitude:  loc.Altitude,
		Source:    string(loc.Source),
	}
}

func (q *Queue) onSuccess(item *queue.Item[Job]) {
	job := item.Payload
	t, err := q.tasks.Get(job.TaskID)
	if err != nil {
		return
	}
	t.Transition(task.StateComplete)
	q.tasks.Remove(job.TaskID)
}

// onPermanentFailure marks the task failed both locally and on the dispatch
// server, and removes it from every stage bucket.
func (q *Queue) onPermanentFailure(item *queue.Item[Job], err error) {
	job := item.Payload
	slog.Warn("upload queue: task permanently failed", "task_id", job.TaskID, "error", err)

	t, getErr := q.tasks.Get(job.TaskID)
	if getErr != nil {
		return
	}
	t.Fail("Upload permanently failed: " + err.Error())
	q.tasks.Remove(job.TaskID)

	if markErr := q.client.MarkTaskFailed(context.Background(), job.TaskID, "Upload permanently failed: "+err.Error()); markErr != nil {
		slog.Warn("upload queue: failed to report failure to dispatch server", "task_id", job.TaskID, "error", markErr)
	}
}
