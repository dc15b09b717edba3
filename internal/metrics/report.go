package metrics

import (
	"github.com/citra-space/citrascope/internal/queue"
	"github.com/citra-space/citrascope/internal/safety"
	"github.com/citra-space/citrascope/internal/task"
)

// RecordQueueStats exports one queue's counters under the given label. Called
// periodically by the daemon for each of the imaging/processing/upload queues.
func RecordQueueStats(queueName string, stats queue.Stats) {
	QueueDepth.WithLabelValues(queueName).Set(float64(stats.Depth))
	QueueInFlight.WithLabelValues(queueName).Set(float64(stats.InFlight))
	QueueRetriesTotal.WithLabelValues(queueName).Set(float64(stats.Retries))
	QueuePermanentFailuresTotal.WithLabelValues(queueName).Set(float64(stats.PermanentFailures))
	QueueSucceededTotal.WithLabelValues(queueName).Set(float64(stats.Succeeded))
}

// RecordSafetyResults exports the monitor's per-check severities and its
// single worst severity.
func RecordSafetyResults(results []safety.Result) {
	worst := safety.Safe
	for _, r := range results {
		SafetyCheckSeverity.WithLabelValues(r.Check).Set(float64(r.Severity))
		if r.Severity > worst {
			worst = r.Severity
		}
	}
	SafetySeverity.Set(float64(worst))
}

// RecordTaskStageCounts exports the current population of every stage bucket.
func RecordTaskStageCounts(registry *task.Registry) {
	for _, bucket := range []task.Bucket{
		task.BucketScheduled,
		task.BucketImaging,
		task.BucketProcessing,
		task.BucketUpload,
		task.BucketDone,
	} {
		TaskStageCount.WithLabelValues(string(bucket)).Set(float64(len(registry.ListBucket(bucket))))
	}
}
