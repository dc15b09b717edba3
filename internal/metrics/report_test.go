package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citra-space/citrascope/internal/queue"
	"github.com/citra-space/citrascope/internal/safety"
	"github.com/citra-space/citrascope/internal/task"
)

func TestRecordQueueStats_ExportsAllCounters(t *testing.T) {
	RecordQueueStats("imaging-report-test", queue.Stats{
		Enqueued:          5,
		Succeeded:         3,
		PermanentFailures: 1,
		Retries:           2,
		InFlight:          1,
		Depth:             4,
	})

	assert.Equal(t, float64(4), testutil.ToFloat64(QueueDepth.WithLabelValues("imaging-report-test")))
	assert.Equal(t, float64(1), testutil.ToFloat64(QueueInFlight.WithLabelValues("imaging-report-test")))
	assert.Equal(t, float64(2), testutil.ToFloat64(QueueRetriesTotal.WithLabelValues("imaging-report-test")))
	assert.Equal(t, float64(1), testutil.ToFloat64(QueuePermanentFailuresTotal.WithLabelValues("imaging-report-test")))
	assert.Equal(t, float64(3), testutil.ToFloat64(QueueSucceededTotal.WithLabelValues("imaging-report-test")))
}

func TestRecordSafetyResults_ExportsWorstSeverity(t *testing.T) {
	RecordSafetyResults([]safety.Result{
		{Check: "disk_space-report-test", Severity: safety.Safe},
		{Check: "cable_wrap-report-test", Severity: safety.QueueStop},
	})

	assert.Equal(t, float64(safety.Safe), testutil.ToFloat64(SafetyCheckSeverity.WithLabelValues("disk_space-report-test")))
	assert.Equal(t, float64(safety.QueueStop), testutil.ToFloat64(SafetyCheckSeverity.WithLabelValues("cable_wrap-report-test")))
	assert.Equal(t, float64(safety.QueueStop), testutil.ToFloat64(SafetySeverity))
}

func TestRecordTaskStageCounts_ExportsEachBucket(t *testing.T) {
	registry := task.NewRegistry()
	tk := task.New("report-test-task", "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 1.0)
	require.NoError(t, registry.Add(tk))
	require.NoError(t, registry.MoveToBucket("report-test-task", task.BucketImaging))

	RecordTaskStageCounts(registry)

	assert.Equal(t, float64(1), testutil.ToFloat64(TaskStageCount.WithLabelValues(string(task.BucketImaging))))
	assert.Equal(t, float64(0), testutil.ToFloat64(TaskStageCount.WithLabelValues(string(task.BucketScheduled))))
}
