// Package location resolves the ground station's current position,
// preferring a live GPS fix over the static ground-station record when one
// is available and strong enough to trust.
package location

import (
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

// Fix is a single GPS reading reported by gpsd.
type Fix struct {
	Latitude   float64
	Longitude  float64
	Altitude   float64
	FixMode    int // 0=no fix, 2=2D, 3=3D
	Satellites int
	Timestamp  time.Time
}

// IsStrong reports whether this fix is trustworthy enough to act on: a 3D
// fix backed by at least 4 satellites.
func (f Fix) IsStrong() bool {
	return f.FixMode >= 3 && f.Satellites >= 4
}

type tpvMessage struct {
	Class string   `json:"class"`
	Mode  int      `json:"mode"`
	Lat   *float64 `json:"lat"`
	Lon   *float64 `json:"lon"`
	Alt   *float64 `json:"alt"`
}

type skySatellite struct {
	Used bool `json:"used"`
}

type skyMessage struct {
	Class      string         `json:"class"`
	USat       *int           `json:"uSat"`
	Satellites []skySatellite `json:"satellites"`
}

// GPSMonitor polls gpsd via gpspipe on a background goroutine and caches the
// latest fix for thread-safe reads.
type GPSMonitor struct {
	checkInterval time.Duration
	onFixChanged  func(Fix)

	mu          sync.RWMutex
	currentFix  *Fix
	lastFixMode atomic.Int32

	stopCh chan struct{}
	doneCh chan struct{}
	runner func(ctx context.Context) (*Fix, error)
}

// NewGPSMonitor builds a monitor. onFixChanged, if non-nil, fires whenever a
// fix is read whose mode (2D/3D) differs from the last reported one. Losing
// the fix does not fire it; it only resets the tracked mode, so the next fix
// fires again.
func NewGPSMonitor(checkInterval time.Duration, onFixChanged func(Fix)) *GPSMonitor {
	m := &GPSMonitor{
		checkInterval: checkInterval,
		onFixChanged:  onFixChanged,
	}
	m.runner = m.queryGpsd
	return m
}

// IsAvailable reports whether the gpspipe binary can be found on PATH.
func (m *GPSMonitor) IsAvailable() bool {
	_, err := exec.LookPath("gpspipe")
	return err == nil
}

// Start begins the background polling loop. Safe to call only once; call
// Stop before a subsequent Start.
func (m *GPSMonitor) Start(ctx context.Context) {
	if m.stopCh != nil {
		slog.Warn("gps monitor already running")
		return
	}
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.loop(ctx)
	slog.Info("gps monitor started", "check_interval", m.checkInterval)
}

// Stop halts the background loop and waits for it to exit.
func (m *GPSMonitor) Stop() {
	if m.stopCh == nil {
		return
	}
	close(m.stopCh)
	<-m.doneCh
	m.stopCh = nil
}

// CurrentFix returns the most recently observed fix, or nil if none yet.
func (m *GPSMonitor) CurrentFix() *Fix {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.currentFix == nil {
		return nil
	}
	fix := *m.currentFix
	return &fix
}

func (m *GPSMonitor) loop(ctx context.Context) {
	defer close(m.doneCh)
	m.check(ctx)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *GPSMonitor) check(ctx context.Context) {
	fix, err := m.runner(ctx)
	if err != nil {
		slog.Error("gps check failed", "error", err)
		m.mu.Lock()
		m.currentFix = nil
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.currentFix = fix
	m.mu.Unlock()

	if fix == nil {
		m.lastFixMode.Store(0)
		return
	}

	if m.onFixChanged != nil && int32(fix.FixMode) != m.lastFixMode.Load() {
		m.lastFixMode.Store(int32(fix.FixMode))
		m.onFixChanged(*fix)
	}
}

// queryGpsd shells out to gpspipe and parses its JSON stream for the latest
// TPV (position) and SKY (satellite count) messages.
func (m *GPSMonitor) queryGpsd(ctx context.Context) (*Fix, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(cctx, "gpspipe", "-w", "-n", "10")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return nil, nil
	}

	fix := Fix{Timestamp: time.Now()}
	haveSat := false
	havePosition := false

	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		if line == "" {
			continue
		}

		var class struct {
			Class string `json:"class"`
		}
		if err := json.Unmarshal([]byte(line), &class); err != nil {
			continue
		}

		switch class.Class {
		case "TPV":
			var tpv tpvMessage
			if err := json.Unmarshal([]byte(line), &tpv); err != nil {
				continue
			}
			fix.FixMode = tpv.Mode
			if tpv.Lat != nil {
				fix.Latitude = *tpv.Lat
				havePosition = true
			}
			if tpv.Lon != nil {
				fix.Longitude = *tpv.Lon
			}
			if tpv.Alt != nil {
				fix.Altitude = *tpv.Alt
			}
		case "SKY":
			var sky skyMessage
			if err := json.Unmarshal([]byte(line), &sky); err != nil {
				continue
			}
			if sky.USat != nil {
				fix.Satellites = *sky.USat
				haveSat = true
			} else if !haveSat {
				used := 0
				for _, s := range sky.Satellites {
					if s.Used {
						used++
					}
				}
				fix.Satellites = used
			}
		}
	}

	if !havePosition {
		return nil, nil
	}
	return &fix, nil
}
