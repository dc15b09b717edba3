package telescope

import (
	"context"
	"log/slog"

	"github.com/citra-space/citrascope/internal/adapter"
	"github.com/citra-space/citrascope/internal/apiclient"
	"github.com/citra-space/citrascope/internal/imaging"
	"github.com/citra-space/citrascope/internal/processing"
	"github.com/citra-space/citrascope/internal/task"
	"github.com/citra-space/citrascope/internal/upload"
)

// StationInfo names the station/telescope this daemon instance represents,
// stamped onto processing and upload jobs for FITS enrichment and logging.
type StationInfo struct {
	TelescopeName     string
	GroundStationName string
}

// WireConfig bundles everything Wire needs to build and link the C4/C5/C6
// queues around a shared Driver.
type WireConfig struct {
	Client     *apiclient.Client
	Adapter    adapter.Adapter
	Tasks      *task.Registry
	Registry   *processing.Registry
	Location   upload.LocationSource
	Mirror     upload.Mirror
	ImagesRoot string
	Station    StationInfo

	Imaging    imaging.Config
	Processing processing.Config
	Upload     upload.Config
}

// Pipeline holds the three linked queues produced by Wire, started and
// stopped together. Each task moves through imaging, processing and upload
// in that order, one stage handing it to the next on success.
type Pipeline struct {
	Imaging    *imaging.Queue
	Processing *processing.Queue
	Upload     *upload.Queue
}

// Start launches every queue's worker pool.
func (p *Pipeline) Start(ctx context.Context) {
	p.Upload.Start(ctx)
	p.Processing.Start(ctx)
	p.Imaging.Start(ctx)
}

// Stop drains every queue's in-flight work to a terminal outcome. Stopped in
// pipeline order (imaging, processing, upload) so upstream stages don't hand
// off work to an already-drained downstream queue.
func (p *Pipeline) Stop() {
	p.Imaging.Stop()
	p.Processing.Stop()
	p.Upload.Stop()
}

// Wire builds the imaging/processing/upload queue trio and links their
// completion callbacks into the chain described in spec: imaging success
// hands the raw frame to processing; processing success checks for a
// plate-solve correction, applies it to the adapter if supported, and
// forwards the (possibly fail-open) result to upload; upload's own
// success/failure paths already remove the task from every stage bucket.
func Wire(cfg WireConfig, executor imaging.Executor) *Pipeline {
	uploadQ := upload.New(cfg.Upload, cfg.Client, cfg.Tasks, cfg.Location, cfg.Mirror)

	var processingQ *processing.Queue
	onProcessingComplete := func(job processing.Job, agg *processing.Aggregated) {
		if agg != nil && !agg.ShouldUpload {
			slog.Info("telescope coordinator: capture rejected by processing, skipping upload",
				"task_id", job.TaskID, "skip_reason", agg.SkipReason)
			if err := cfg.Client.MarkTaskComplete(context.Background(), job.TaskID); err != nil {
				slog.Warn("telescope coordinator: failed to mark rejected task complete", "task_id", job.TaskID, "error", err)
			}
			if t, err := cfg.Tasks.Get(job.TaskID); err == nil {
				t.Transition(task.StateComplete)
			}
			cfg.Tasks.Remove(job.TaskID)
			return
		}

		applyPlateSolveCorrection(cfg, job.TaskID, agg)

		shouldUpload, skipReason, extracted := upload.FromAggregated(agg)
		if _, err := uploadQ.Enqueue(upload.Job{
			TaskID:             job.TaskID,
			ImagePath:          job.ImagePath,
			SatelliteName:      satelliteName(cfg, job.TaskID),
			GroundStationName:  cfg.Station.GroundStationName,
			TelescopeName:      cfg.Station.TelescopeName,
			AssignedFilterName: filterName(cfg, job.TaskID),
			ShouldUpload:       shouldUpload,
			SkipReason:         skipReason,
			ExtractedData:      extracted,
		}); err != nil {
			slog.Warn("telescope coordinator: failed to enqueue upload", "task_id", job.TaskID, "error", err)
		}
	}
	processingQ = processing.New(cfg.Processing, cfg.Registry, cfg.Tasks, cfg.ImagesRoot, onProcessingComplete)

	onImagingComplete := func(taskID, imagePath string) {
		if _, err := processingQ.Enqueue(processing.Job{
			TaskID:             taskID,
			ImagePath:          imagePath,
			TelescopeName:      cfg.Station.TelescopeName,
			GroundStationName:  cfg.Station.GroundStationName,
		}); err != nil {
			slog.Warn("telescope coordinator: failed to enqueue processing", "task_id", taskID, "error", err)
		}
	}
	imagingQ := imaging.New(cfg.Imaging, executor, cfg.Tasks, cfg.Client, onImagingComplete)

	return &Pipeline{Imaging: imagingQ, Processing: processingQ, Upload: uploadQ}
}

// applyPlateSolveCorrection checks an aggregated processing result for a
// plate_solver.ra_center_deg/dec_center_deg pair and, if the hardware
// adapter supports it, feeds it back along with the originally commanded
// pointing so the mount model can learn its pointing error.
func applyPlateSolveCorrection(cfg WireConfig, taskID string, agg *processing.Aggregated) {
	if agg == nil {
		return
	}
	ra, dec, ok := processing.PlateSolveRACenter(*agg)
	if !ok {
		return
	}
	corrector, supports := cfg.Adapter.(adapter.PlateSolveCorrectable)
	if !supports {
		return
	}

	t, err := cfg.Tasks.Get(taskID)
	if err != nil {
		return
	}
	expectedRA, expectedDec, hasExpected := t.ExpectedPointing()
	if !hasExpected {
		return
	}

	if err := corrector.UpdateFromPlateSolve(context.Background(), ra, dec, expectedRA, expectedDec); err != nil {
		slog.Warn("telescope coordinator: failed to apply plate-solve correction", "task_id", taskID, "error", err)
	}
}

func satelliteName(cfg WireConfig, taskID string) string {
	t, err := cfg.Tasks.Get(taskID)
	if err != nil {
		return ""
	}
	return t.SatelliteID
}

func filterName(cfg WireConfig, taskID string) string {
	t, err := cfg.Tasks.Get(taskID)
	if err != nil {
		return ""
	}
	return t.FilterName
}
