// Package simulated provides a reference Adapter implementation with no real
// hardware dependency, used by tests and by operators without a telescope
// attached. Grounded on original_source/citrascope/hardware/dummy_adapter.py.
package simulated

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/citra-space/citrascope/internal/adapter"
)

func init() {
	adapter.Register("simulated", func(settings map[string]any) (adapter.Adapter, error) {
		imagesDir, _ := settings["images_dir"].(string)
		if imagesDir == "" {
			imagesDir = "/tmp/citrascope-images"
		}
		return New(imagesDir), nil
	})
}

// Adapter simulates a telescope + camera: pointing is instantaneous (after a
// simulated slew delay), and TakeImage writes a dummy placeholder file.
type Adapter struct {
	imagesDir string

	mu         sync.Mutex
	connected  bool
	raDeg      float64
	decDeg     float64
	raRate     float64
	decRate    float64
	moving     bool
	filterID   string
	filterMap  map[string]adapter.FilterConfig
}

// New returns a simulated adapter rooted at imagesDir for saved frames.
func New(imagesDir string) *Adapter {
	return &Adapter{
		imagesDir: imagesDir,
		filterMap: map[string]adapter.FilterConfig{
			"1": {Name: "Luminance", FocusPosition: 9000, Enabled: true},
			"2": {Name: "Red", FocusPosition: 9050, Enabled: true},
		},
	}
}

func (a *Adapter) Name() string { return "simulated" }

func (a *Adapter) Connect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = true
	return nil
}

func (a *Adapter) Disconnect(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.connected = false
	return nil
}

func (a *Adapter) IsTelescopeConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

func (a *Adapter) IsCameraConnected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connected
}

// ObservationStrategy reports Manual: the simulated adapter expects the
// scheduler/telescope driver to command pointing itself.
func (a *Adapter) ObservationStrategy() adapter.ObservationStrategy {
	return adapter.Manual
}

func (a *Adapter) PerformObservationSequence(_ context.Context, taskID, _ string) (string, error) {
	return "", fmt.Errorf("simulated adapter uses Manual strategy, PerformObservationSequence unsupported for task %s", taskID)
}

func (a *Adapter) PointTelescope(_ context.Context, raDeg, decDeg float64) error {
	a.mu.Lock()
	a.moving = true
	a.mu.Unlock()

	// Simulate a brief slew.
	time.Sleep(10 * time.Millisecond)

	a.mu.Lock()
	defer a.mu.Unlock()
	a.raDeg = raDeg
	a.decDeg = decDeg
	a.moving = false
	return nil
}

func (a *Adapter) TelescopeDirection(_ context.Context) (float64, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raDeg, a.decDeg, nil
}

func (a *Adapter) TelescopeIsMoving(_ context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.moving, nil
}

func (a *Adapter) TakeImage(_ context.Context, taskID string, exposureSeconds float64) (string, error) {
	time.Sleep(time.Duration(exposureSeconds*10) * time.Millisecond)
	if err := os.MkdirAll(a.imagesDir, 0o755); err != nil {
		return "", fmt.Errorf("simulated: create images dir: %w", err)
	}
	path := filepath.Join(a.imagesDir, fmt.Sprintf("%s-%d.fits", taskID, rand.Int63()))
	if err := os.WriteFile(path, []byte("SIMPLE  =                    T"), 0o644); err != nil {
		return "", fmt.Errorf("simulated: write placeholder image: %w", err)
	}
	return path, nil
}

func (a *Adapter) SetCustomTrackingRate(_ context.Context, raRate, decRate float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raRate = raRate
	a.decRate = decRate
	return nil
}

func (a *Adapter) TrackingRate(_ context.Context) (float64, float64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.raRate, a.decRate, nil
}

func (a *Adapter) PerformAlignment(_ context.Context, targetRA, targetDec float64) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raDeg, a.decDeg = targetRA, targetDec
	return true, nil
}

// UpdateFromPlateSolve implements adapter.PlateSolveCorrectable: the
// simulated adapter has no real mount model to correct, so it simply snaps
// its reported pointing to the solved center. expectedRA/DecDeg (the
// originally commanded position) is accepted to satisfy the contract but
// unused, since there is no pointing-error model to feed.
func (a *Adapter) UpdateFromPlateSolve(_ context.Context, raCenterDeg, decCenterDeg, _, _ float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.raDeg, a.decDeg = raCenterDeg, decCenterDeg
	return nil
}

// DoAutofocus implements adapter.AutofocusCapable.
func (a *Adapter) DoAutofocus(_ context.Context) error {
	time.Sleep(5 * time.Millisecond)
	return nil
}

// FilterConfig implements adapter.FilterManaged.
func (a *Adapter) FilterConfig(_ context.Context) (map[string]adapter.FilterConfig, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[string]adapter.FilterConfig, len(a.filterMap))
	for k, v := range a.filterMap {
		out[k] = v
	}
	return out, nil
}

// SelectFilter implements adapter.FilterManaged.
func (a *Adapter) SelectFilter(_ context.Context, filterID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.filterMap[filterID]; !ok {
		return fmt.Errorf("simulated: unknown filter %q", filterID)
	}
	a.filterID = filterID
	return nil
}

var (
	_ adapter.Adapter               = (*Adapter)(nil)
	_ adapter.AutofocusCapable      = (*Adapter)(nil)
	_ adapter.FilterManaged         = (*Adapter)(nil)
	_ adapter.PlateSolveCorrectable = (*Adapter)(nil)
)
