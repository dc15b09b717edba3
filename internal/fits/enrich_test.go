package fits

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFITS(t *testing.T, dir string, extraCards ...string) string {
	t.Helper()
	path := filepath.Join(dir, "test.fits")
	content := minimalFITS(extraCards...) + strings.Repeat("\x00", blockSize) // one data block
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestEnrich_AddsLocationAndTaskMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFITS(t, dir)

	Enrich(path, &TaskContext{
		TaskID:            "task-123",
		SatelliteName:     "ISS",
		GroundStationName: "Station Alpha",
	}, &Location{Latitude: 34.0, Longitude: -118.0, Altitude: 100, Source: "gps"})

	h, err := ReadHeader(path)
	require.NoError(t, err)

	v, ok := h.Get("TASKID")
	require.True(t, ok)
	assert.Equal(t, "task-123", v)

	v, ok = h.Get("OBJECT")
	require.True(t, ok)
	assert.Equal(t, "ISS", v)

	_, ok = h.Get("SITELAT")
	assert.True(t, ok)
}

func TestEnrich_IdempotentWhenTaskIDAlreadyPresent(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFITS(t, dir, padCard("TASKID", "= 'existing-id'"), padCard("OBJECT", "= 'Unchanged'"))

	Enrich(path, &TaskContext{TaskID: "new-id", SatelliteName: "Should not apply"}, nil)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	v, _ := h.Get("OBJECT")
	assert.Equal(t, "Unchanged", v)
}

func TestEnrich_MissingFileDoesNotPanic(t *testing.T) {
	Enrich(filepath.Join(t.TempDir(), "missing.fits"), &TaskContext{TaskID: "x"}, nil)
}

func TestEnrich_PreservesDataAfterHeader(t *testing.T) {
	dir := t.TempDir()
	path := writeTestFITS(t, dir)

	Enrich(path, &TaskContext{TaskID: "t1"}, nil)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\x00")
}
