package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUpdater struct {
	calls []Record
}

func (f *fakeUpdater) UpdateGroundStationLocation(ctx context.Context, groundStationID string, lat, lon, alt float64) error {
	f.calls = append(f.calls, Record{ID: groundStationID, Latitude: lat, Longitude: lon, Altitude: alt})
	return nil
}

func newTestService(updater GroundStationUpdater, enabled bool) *Service {
	return &Service{
		updater:                   updater,
		gpsLocationUpdatesEnabled: enabled,
		gpsUpdateInterval:         time.Minute,
	}
}

func TestService_FallsBackToGroundStationWithoutGPS(t *testing.T) {
	s := newTestService(nil, true)
	s.SetGroundStation(Record{ID: "gs1", Latitude: 10, Longitude: 20, Altitude: 30})

	loc, ok := s.CurrentLocation()
	require.True(t, ok)
	assert.Equal(t, SourceGroundStation, loc.Source)
	assert.Equal(t, 10.0, loc.Latitude)
}

func TestService_NoLocationAvailableReturnsFalse(t *testing.T) {
	s := newTestService(nil, true)
	_, ok := s.CurrentLocation()
	assert.False(t, ok)
}

func TestService_StrongGPSFixPreferredOverGroundStation(t *testing.T) {
	s := newTestService(nil, true)
	s.SetGroundStation(Record{ID: "gs1", Latitude: 10, Longitude: 20, Altitude: 30})
	s.gps = NewGPSMonitor(time.Hour, nil)
	s.gps.currentFix = &Fix{Latitude: 1, Longitude: 2, Altitude: 3, FixMode: 3, Satellites: 5}

	loc, ok := s.CurrentLocation()
	require.True(t, ok)
	assert.Equal(t, SourceGPS, loc.Source)
	assert.Equal(t, 1.0, loc.Latitude)
}

func TestService_OnFixChangedPushesUpdateWhenEnabledAndStrong(t *testing.T) {
	updater := &fakeUpdater{}
	s := newTestService(updater, true)
	s.SetGroundStation(Record{ID: "gs1", Latitude: 0, Longitude: 0, Altitude: 0})

	s.onFixChanged(Fix{Latitude: 5, Longitude: 6, Altitude: 7, FixMode: 3, Satellites: 4})

	require.Len(t, updater.calls, 1)
	assert.Equal(t, "gs1", updater.calls[0].ID)
	assert.Equal(t, 5.0, updater.calls[0].Latitude)
}

func TestService_OnFixChangedSkipsWeakFix(t *testing.T) {
	updater := &fakeUpdater{}
	s := newTestService(updater, true)
	s.SetGroundStation(Record{ID: "gs1"})

	s.onFixChanged(Fix{FixMode: 2, Satellites: 4})

	assert.Empty(t, updater.calls)
}

func TestService_OnFixChangedRateLimited(t *testing.T) {
	updater := &fakeUpdater{}
	s := newTestService(updater, true)
	s.SetGroundStation(Record{ID: "gs1"})

	strong := Fix{Latitude: 1, Longitude: 2, Altitude: 3, FixMode: 3, Satellites: 4}
	s.onFixChanged(strong)
	s.onFixChanged(strong)

	assert.Len(t, updater.calls, 1)
}

func TestService_OnFixChangedDisabledDoesNothing(t *testing.T) {
	updater := &fakeUpdater{}
	s := newTestService(updater, false)
	s.SetGroundStation(Record{ID: "gs1"})

	s.onFixChanged(Fix{Latitude: 1, Longitude: 2, FixMode: 3, Satellites: 5})

	assert.Empty(t, updater.calls)
}
