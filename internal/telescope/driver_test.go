package telescope

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citra-space/citrascope/internal/adapter"
	"github.com/citra-space/citrascope/internal/adapter/simulated"
	"github.com/citra-space/citrascope/internal/apiclient"
	"github.com/citra-space/citrascope/internal/location"
	"github.com/citra-space/citrascope/internal/task"
)

// fixedEphemeris always reports the satellite at the same RA/Dec, so the
// lead-point loop converges in one attempt once the mount points there.
type fixedEphemeris struct {
	position TargetPosition
}

func (f fixedEphemeris) TargetAt(elements ElementSet, station GroundStation, at time.Time) (TargetPosition, error) {
	return f.position, nil
}

type fixedLocation struct {
	loc location.Location
	ok  bool
}

func (f fixedLocation) CurrentLocation() (location.Location, bool) { return f.loc, f.ok }

func newElementSetServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"creation_epoch":"2026-01-01T00:00:00Z","line1":"1 25544U","line2":"2 25544"}]`))
	}))
}

func testConfig() Config {
	return Config{
		SlewRateDegPerSec:     5.0,
		LeadPointMaxAttempts:  10,
		LeadPointMaxProximity: 0.3,
		EstimatorMaxIters:     5,
		EstimatorTolerance:    100 * time.Millisecond,
		MovementPollInterval:  time.Millisecond,
	}
}

func TestDriver_ExecuteConvergesAndCapturesImage(t *testing.T) {
	srv := newElementSetServer(t)
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	tk := task.New("task-1", "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	require.NoError(t, tasks.Add(tk))

	ad := simulated.New(t.TempDir())
	require.NoError(t, ad.Connect(context.Background()))

	eph := fixedEphemeris{position: TargetPosition{RADeg: 83.6, DecDeg: 22.0}}
	loc := fixedLocation{loc: location.Location{Latitude: 34.2, Longitude: -118.5, Altitude: 300}, ok: true}

	driver := New(testConfig(), client, ad, eph, loc, tasks)

	imagePath, err := driver.Execute(context.Background(), "task-1")
	require.NoError(t, err)
	assert.NotEmpty(t, imagePath)

	ra, dec, ok := tk.ExpectedPointing()
	require.True(t, ok)
	assert.InDelta(t, 83.6, ra, 0.001)
	assert.InDelta(t, 22.0, dec, 0.001)
}

func TestDriver_ExecuteFailsWhenLocationUnavailable(t *testing.T) {
	srv := newElementSetServer(t)
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	tk := task.New("task-2", "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	require.NoError(t, tasks.Add(tk))

	ad := simulated.New(t.TempDir())
	eph := fixedEphemeris{position: TargetPosition{RADeg: 83.6, DecDeg: 22.0}}
	loc := fixedLocation{ok: false}

	driver := New(testConfig(), client, ad, eph, loc, tasks)

	_, err := driver.Execute(context.Background(), "task-2")
	assert.Error(t, err)
}

func TestDriver_ExecuteRespectsCancellation(t *testing.T) {
	srv := newElementSetServer(t)
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	tk := task.New("task-3", "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	require.NoError(t, tasks.Add(tk))
	tk.RequestCancel()

	ad := simulated.New(t.TempDir())
	eph := fixedEphemeris{position: TargetPosition{RADeg: 83.6, DecDeg: 22.0}}
	loc := fixedLocation{loc: location.Location{Latitude: 34.2, Longitude: -118.5, Altitude: 300}, ok: true}

	driver := New(testConfig(), client, ad, eph, loc, tasks)

	_, err := driver.Execute(context.Background(), "task-3")
	assert.ErrorIs(t, err, task.ErrCancelled)
}

func TestDriver_ReusesCachedElementSetAcrossTasksForSameSatellite(t *testing.T) {
	var requestCount atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"creation_epoch":"2026-01-01T00:00:00Z","line1":"1 25544U","line2":"2 25544"}]`))
	}))
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	tkA := task.New("task-5a", "sat-shared", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	tkB := task.New("task-5b", "sat-shared", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	require.NoError(t, tasks.Add(tkA))
	require.NoError(t, tasks.Add(tkB))

	ad := simulated.New(t.TempDir())
	require.NoError(t, ad.Connect(context.Background()))
	eph := fixedEphemeris{position: TargetPosition{RADeg: 83.6, DecDeg: 22.0}}
	loc := fixedLocation{loc: location.Location{Latitude: 34.2, Longitude: -118.5, Altitude: 300}, ok: true}

	driver := New(testConfig(), client, ad, eph, loc, tasks)

	_, err := driver.Execute(context.Background(), "task-5a")
	require.NoError(t, err)
	_, err = driver.Execute(context.Background(), "task-5b")
	require.NoError(t, err)

	assert.Equal(t, int32(1), requestCount.Load(), "second task for the same satellite should reuse the cached element set")
}

func TestDriver_SequenceToControllerAdaptersSkipLeadPointLoop(t *testing.T) {
	srv := newElementSetServer(t)
	defer srv.Close()

	client := apiclient.New(srv.URL, "", 2*time.Second)
	tasks := task.NewRegistry()
	tk := task.New("task-4", "sat-1", "gs-1", time.Now(), time.Now().Add(time.Minute), "clear", 5.0)
	require.NoError(t, tasks.Add(tk))

	ad := &sequenceAdapter{imagePath: "/images/task-4-sequence.fits"}
	eph := fixedEphemeris{position: TargetPosition{RADeg: 83.6, DecDeg: 22.0}}
	loc := fixedLocation{ok: false} // must not even be consulted

	driver := New(testConfig(), client, ad, eph, loc, tasks)

	imagePath, err := driver.Execute(context.Background(), "task-4")
	require.NoError(t, err)
	assert.Equal(t, "/images/task-4-sequence.fits", imagePath)
}

// sequenceAdapter is a minimal adapter.Adapter implementing SequenceToController.
type sequenceAdapter struct {
	imagePath string
}

func (a *sequenceAdapter) Name() string                                           { return "sequence-stub" }
func (a *sequenceAdapter) Connect(context.Context) error                          { return nil }
func (a *sequenceAdapter) Disconnect(context.Context) error                       { return nil }
func (a *sequenceAdapter) IsTelescopeConnected() bool                             { return true }
func (a *sequenceAdapter) IsCameraConnected() bool                                { return true }
func (a *sequenceAdapter) ObservationStrategy() adapter.ObservationStrategy       { return adapter.SequenceToController }
func (a *sequenceAdapter) PerformObservationSequence(_ context.Context, taskID, satelliteID string) (string, error) {
	return a.imagePath, nil
}
func (a *sequenceAdapter) PointTelescope(context.Context, float64, float64) error { return nil }
func (a *sequenceAdapter) TelescopeDirection(context.Context) (float64, float64, error) {
	return 0, 0, nil
}
func (a *sequenceAdapter) TelescopeIsMoving(context.Context) (bool, error) { return false, nil }
func (a *sequenceAdapter) TakeImage(context.Context, string, float64) (string, error) {
	return a.imagePath, nil
}
func (a *sequenceAdapter) SetCustomTrackingRate(context.Context, float64, float64) error { return nil }
func (a *sequenceAdapter) TrackingRate(context.Context) (float64, float64, error)        { return 0, 0, nil }
func (a *sequenceAdapter) PerformAlignment(context.Context, float64, float64) (bool, error) {
	return true, nil
}

var _ adapter.Adapter = (*sequenceAdapter)(nil)
