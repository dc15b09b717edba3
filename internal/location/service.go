package location

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Source identifies where a Location reading came from.
type Source string

const (
	SourceGPS           Source = "gps"
	SourceGroundStation Source = "ground_station"
)

// Location is the resolved ground-station position along with which source
// produced it.
type Location struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Source    Source
}

// GroundStationUpdater pushes a refreshed location to the remote dispatch
// server when GPS reports a strong fix. Implemented by internal/apiclient.
type GroundStationUpdater interface {
	UpdateGroundStationLocation(ctx context.Context, groundStationID string, lat, lon, alt float64) error
}

// Record is the static ground-station position (the daemon seeds it from
// config), used as the fallback location for fixed installations without GPS.
type Record struct {
	ID        string
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Service resolves the ground station's current location, preferring a
// live strong GPS fix over the static ground-station record. Mobile ground
// stations rely on GPS; fixed ones never get a fix and always fall back.
type Service struct {
	updater                   GroundStationUpdater
	gpsLocationUpdatesEnabled bool
	gpsUpdateInterval         time.Duration

	gps *GPSMonitor

	mu              sync.Mutex
	groundStation   *Record
	lastGPSPushedAt time.Time
}

// NewService builds a Service and starts GPS monitoring if gpspipe is
// available on this host; otherwise it runs in ground-station-only mode.
func NewService(ctx context.Context, updater GroundStationUpdater, gpsCheckInterval, gpsUpdateInterval time.Duration, gpsLocationUpdatesEnabled bool) *Service {
	s := &Service{
		updater:                   updater,
		gpsLocationUpdatesEnabled: gpsLocationUpdatesEnabled,
		gpsUpdateInterval:         gpsUpdateInterval,
	}

	monitor := NewGPSMonitor(gpsCheckInterval, s.onFixChanged)
	if monitor.IsAvailable() {
		monitor.Start(ctx)
		s.gps = monitor
		slog.Info("gps monitoring started by location service")
	} else {
		slog.Info("gps not available, location service using ground-station-only mode")
	}

	return s
}

// Stop halts GPS monitoring, if running.
func (s *Service) Stop() {
	if s.gps != nil {
		s.gps.Stop()
		s.gps = nil
	}
}

// SetGroundStation records the static ground-station position used as the
// fallback location.
func (s *Service) SetGroundStation(r Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groundStation = &r
}

// onFixChanged is invoked by GPSMonitor when fix mode changes. It pushes the
// new location to the dispatch server, rate-limited by gpsUpdateInterval.
func (s *Service) onFixChanged(fix Fix) {
	if !s.gpsLocationUpdatesEnabled || !fix.IsStrong() {
		return
	}

	s.mu.Lock()
	if time.Since(s.lastGPSPushedAt) < s.gpsUpdateInterval {
		s.mu.Unlock()
		return
	}
	gs := s.groundStation
	s.mu.Unlock()

	if s.updater == nil || gs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.updater.UpdateGroundStationLocation(ctx, gs.ID, fix.Latitude, fix.Longitude, fix.Altitude); err != nil {
		slog.Error("failed to push gps location to dispatch server", "error", err)
		return
	}

	s.mu.Lock()
	s.groundStation.Latitude = fix.Latitude
	s.groundStation.Longitude = fix.Longitude
	s.groundStation.Altitude = fix.Altitude
	s.lastGPSPushedAt = time.Now()
	s.mu.Unlock()

	slog.Info("updated ground station location from gps",
		"latitude", fix.Latitude, "longitude", fix.Longitude, "altitude", fix.Altitude)
}

// CurrentLocation returns the best available location: a live strong GPS fix
// if enabled and present, otherwise the cached ground-station record. Returns
// false if neither source has anything to offer.
func (s *Service) CurrentLocation() (Location, bool) {
	if s.gpsLocationUpdatesEnabled && s.gps != nil {
		if fix := s.gps.CurrentFix(); fix != nil && fix.IsStrong() {
			return Location{
				Latitude:  fix.Latitude,
				Longitude: fix.Longitude,
				Altitude:  fix.Altitude,
				Source:    SourceGPS,
			}, true
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.groundStation != nil {
		return Location{
			Latitude:  s.groundStation.Latitude,
			Longitude: s.groundStation.Longitude,
			Altitude:  s.groundStation.Altitude,
			Source:    SourceGroundStation,
		}, true
	}

	return Location{}, false
}
