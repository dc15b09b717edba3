package processing

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citra-space/citrascope/internal/task"
)

func writeTempImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake-fits-bytes"), 0o644))
	return path
}

type captured struct {
	mu   sync.Mutex
	jobs []Job
	aggs []*Aggregated
}

func (c *captured) record(job Job, agg *Aggregated) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jobs = append(c.jobs, job)
	c.aggs = append(c.aggs, agg)
}

func (c *captured) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.jobs)
}

func newTestTask(t *testing.T, tasks *task.Registry, id string) {
	t.Helper()
	tk := task.New(id, "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	require.NoError(t, tasks.Add(tk))
}

func TestProcessingQueue_SuccessDeliversAggregatedResultAndCleansWorkingDir(t *testing.T) {
	root := t.TempDir()
	imagesRoot := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(imagesRoot, 0o755))
	imagePath := writeTempImage(t, imagesRoot, "capture-1.fits")

	registry := NewRegistry(&QualityChecker{
		PixelStats: func(imagePath string) (float64, float64, float64, error) {
			return 40000, 500, 50, nil
		},
	})

	tasks := task.NewRegistry()
	newTestTask(t, tasks, "task-1")

	cap := &captured{}
	q := New(Config{Workers: 1, MaxRetries: 1, QueueCapacity: 8}, registry, tasks, imagesRoot, cap.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	_, err := q.Enqueue(Job{TaskID: "task-1", ImagePath: imagePath})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return cap.count() == 1 }, time.Second, 10*time.Millisecond)

	cap.mu.Lock()
	agg := cap.aggs[0]
	cap.mu.Unlock()
	require.NotNil(t, agg)
	assert.True(t, agg.ShouldUpload)
	assert.Equal(t, 40000.0, agg.ExtractedData["quality_checker.max_pixel_value"])

	_, statErr := os.Stat(q.workingDir("task-1"))
	assert.True(t, os.IsNotExist(statErr), "working directory should be removed after completion")
}

func TestProcessingQueue_PermanentFailureFailsOpenWithNilAggregate(t *testing.T) {
	root := t.TempDir()
	imagesRoot := filepath.Join(root, "images")
	require.NoError(t, os.MkdirAll(imagesRoot, 0o755))
	imagePath := writeTempImage(t, imagesRoot, "capture-2.fits")

	registry := NewRegistry(&QualityChecker{
		PixelStats: func(imagePath string) (float64, float64, float64, error) {
			return 0, 0, 0, assertErr
		},
	})

	tasks := task.NewRegistry()
	newTestTask(t, tasks, "task-2")

	cap := &captured{}
	q := New(Config{Workers: 1, MaxRetries: 0, QueueCapacity: 8}, registry, tasks, imagesRoot, cap.record)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	_, err := q.Enqueue(Job{TaskID: "task-2", ImagePath: imagePath})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return cap.count() == 1 }, time.Second, 10*time.Millisecond)

	cap.mu.Lock()
	agg := cap.aggs[0]
	cap.mu.Unlock()
	assert.Nil(t, agg, "failed-open completion must hand back a nil aggregate")

	_, statErr := os.Stat(q.workingDir("task-2"))
	assert.True(t, os.IsNotExist(statErr), "working directory should be removed after a permanent failure too")
}

var assertErr = &stubError{"pixel decode failed"}

type stubError struct{ msg string }

func (e *stubError) Error() string { return e.msg }
