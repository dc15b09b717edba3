package location

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFix_IsStrong(t *testing.T) {
	assert.True(t, Fix{FixMode: 3, Satellites: 4}.IsStrong())
	assert.False(t, Fix{FixMode: 3, Satellites: 3}.IsStrong())
	assert.False(t, Fix{FixMode: 2, Satellites: 10}.IsStrong())
}

func TestGPSMonitor_CheckUpdatesCurrentFixAndFiresCallbackOnModeChange(t *testing.T) {
	var seen []Fix
	m := NewGPSMonitor(0, func(f Fix) { seen = append(seen, f) })

	fixes := []*Fix{
		{FixMode: 3, Satellites: 5, Latitude: 1, Longitude: 2},
		{FixMode: 3, Satellites: 6, Latitude: 1, Longitude: 2},
		nil,
	}
	i := 0
	m.runner = func(ctx context.Context) (*Fix, error) {
		f := fixes[i]
		i++
		return f, nil
	}

	m.check(context.Background())
	m.check(context.Background())
	m.check(context.Background())

	assert.Nil(t, m.CurrentFix())
	if assert.Len(t, seen, 1) {
		assert.Equal(t, 3, seen[0].FixMode)
	}
}

func TestGPSMonitor_IsAvailableRunsLookup(t *testing.T) {
	m := NewGPSMonitor(0, nil)
	_ = m.IsAvailable() // exercises exec.LookPath without asserting a fixed environment-dependent result
}
