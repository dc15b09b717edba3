package timehealth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	offsetMs float64
	err      error
	name     string
}

func (f *fakeSource) Name() string { return f.name }
func (f *fakeSource) OffsetMillis(ctx context.Context) (float64, error) {
	return f.offsetMs, f.err
}

func TestMonitor_CachesLatestOffset(t *testing.T) {
	src := &fakeSource{offsetMs: 42.7, name: "fake"}
	m := NewMonitor(src, time.Hour)
	m.check(context.Background())

	offset, err := m.OffsetMillis(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), offset)
}

func TestMonitor_NoResultYetFailsClosed(t *testing.T) {
	src := &fakeSource{name: "fake"}
	m := NewMonitor(src, time.Hour)

	_, err := m.OffsetMillis(context.Background())
	assert.Error(t, err)
}

func TestMonitor_ErrorFromSourcePropagates(t *testing.T) {
	src := &fakeSource{err: errors.New("network down"), name: "fake"}
	m := NewMonitor(src, time.Hour)
	m.check(context.Background())

	_, err := m.OffsetMillis(context.Background())
	assert.Error(t, err)
}

func TestMonitor_StalePriorSuccessDoesNotMaskNewError(t *testing.T) {
	src := &fakeSource{offsetMs: 5, name: "fake"}
	m := NewMonitor(src, time.Hour)
	m.check(context.Background())

	src.err = errors.New("timeout")
	m.check(context.Background())

	_, err := m.OffsetMillis(context.Background())
	assert.Error(t, err)
}

func TestDetectBest_FallsBackToNTPWhenChronyUnavailable(t *testing.T) {
	src := DetectBest("pool.ntp.org", time.Second)
	require.NotNil(t, src)
	assert.Contains(t, []string{"ntp", "chrony"}, src.Name())
}
