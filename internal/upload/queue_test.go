package upload

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citra-space/citrascope/internal/apiclient"
	"github.com/citra-space/citrascope/internal/location"
	"github.com/citra-space/citrascope/internal/processing"
	"github.com/citra-space/citrascope/internal/task"
)

func newTestTask(t *testing.T, tasks *task.Registry, id string) {
	t.Helper()
	tk := task.New(id, "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	require.NoError(t, tasks.Add(tk))
}

func writeTempFITS(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	// Non-FITS placeholder content is enough: fits.Enrich logs and returns on
	// parse failure rather than raising, so the upload path still proceeds.
	require.NoError(t, os.WriteFile(path, []byte("not-a-real-fits-file"), 0o644))
	return path
}

type noLocation struct{}

func (noLocation) CurrentLocation() (location.Location, bool) { return location.Location{}, false }

func TestUploadQueue_SkippedCaptureMarksCompleteWithoutUploading(t *testing.T) {
	var uploadCalled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tasks/task-1/image" {
			uploadCalled.Store(true)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	newTestTask(t, tasks, "task-1")

	dir := t.TempDir()
	imagePath := writeTempFITS(t, dir, "capture.fits")

	q := New(Config{Workers: 1, MaxRetries: 1, QueueCapacity: 8}, client, tasks, noLocation{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	_, err := q.Enqueue(Job{TaskID: "task-1", ImagePath: imagePath, ShouldUpload: false, SkipReason: "quality_checker: too dark"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, getErr := tasks.Get("task-1")
		return getErr != nil
	}, time.Second, 10*time.Millisecond)

	assert.False(t, uploadCalled.Load(), "a rejected capture must not be uploaded")
}

func TestUploadQueue_AcceptedCaptureUploadsAndPostsObservation(t *testing.T) {
	var uploadCalled, observationCalled atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/tasks/task-2/image":
			uploadCalled.Store(true)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"image_path":"s3://bucket/task-2.fits"}`))
		case "/observations/optical":
			observationCalled.Store(true)
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	newTestTask(t, tasks, "task-2")

	dir := t.TempDir()
	imagePath := writeTempFITS(t, dir, "capture.fits")

	q := New(Config{Workers: 1, MaxRetries: 1, QueueCapacity: 8}, client, tasks, noLocation{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	shouldUpload, _, extracted := FromAggregated(&processing.Aggregated{
		ShouldUpload:  true,
		ExtractedData: map[string]any{"plate_solver.ra_center_deg": 83.6},
	})

	_, err := q.Enqueue(Job{TaskID: "task-2", ImagePath: imagePath, ShouldUpload: shouldUpload, ExtractedData: extracted})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, getErr := tasks.Get("task-2")
		return getErr != nil
	}, time.Second, 10*time.Millisecond)

	assert.True(t, uploadCalled.Load())
	assert.True(t, observationCalled.Load())
}

type fakeMirror struct {
	calls atomic.Int32
	key   atomic.Value
}

func (m *fakeMirror) MirrorFile(ctx context.Context, key, localPath string) error {
	m.calls.Add(1)
	m.key.Store(key)
	return nil
}

func TestUploadQueue_MirrorsSuccessfulUploadWhenConfigured(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tasks/task-3/image" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"image_path":"s3://bucket/task-3.fits"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	newTestTask(t, tasks, "task-3")

	dir := t.TempDir()
	imagePath := writeTempFITS(t, dir, "capture.fits")

	mirror := &fakeMirror{}
	q := New(Config{Workers: 1, MaxRetries: 1, QueueCapacity: 8}, client, tasks, noLocation{}, mirror)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)
	defer q.Stop()

	_, err := q.Enqueue(Job{TaskID: "task-3", ImagePath: imagePath, ShouldUpload: true})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return mirror.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "task-3/capture.fits", mirror.key.Load())
}

func TestFromAggregated_NilMeansUploadRaw(t *testing.T) {
	shouldUpload, skipReason, extracted := FromAggregated(nil)
	assert.True(t, shouldUpload)
	assert.Empty(t, skipReason)
	assert.Nil(t, extracted)
}
