package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalValidConfig = `
citrascope:
  node:
    telescope_id: "scope-01"
    ground_station_id: "gs-01"
  server:
    base_url: "https://dispatch.example.org"
  images:
    root_dir: "/tmp/citrascope-images"
  safety:
    cable_wrap_state_path: "/tmp/citrascope-cable-wrap.json"
`

func TestLoad_MinimalConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, minimalValidConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "scope-01", cfg.Node.TelescopeID)
	assert.Equal(t, "5s", cfg.Server.PollInterval)
	assert.Equal(t, 180.0, cfg.Safety.CableWrapSoftLimitDeg)
	assert.Equal(t, 270.0, cfg.Safety.CableWrapHardLimitDeg)
	assert.Equal(t, 1, cfg.Queues.Imaging.Workers)
	assert.NotEmpty(t, cfg.Node.Hostname)
	assert.Equal(t, 2.0, cfg.Telescope.SlewRateDegPerSec)
	assert.Equal(t, 10, cfg.Telescope.LeadPointMaxAttempts)
	assert.True(t, cfg.Location.GPSUpdatesEnabled)
}

func TestLoad_MissingRequiredField(t *testing.T) {
	path := writeConfig(t, `
citrascope:
  node:
    telescope_id: "scope-01"
    ground_station_id: "gs-01"
  images:
    root_dir: "/tmp/citrascope-images"
  safety:
    cable_wrap_state_path: "/tmp/citrascope-cable-wrap.json"
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate_HardLimitMustExceedSoftLimit(t *testing.T) {
	path := writeConfig(t, minimalValidConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Safety.CableWrapHardLimitDeg = cfg.Safety.CableWrapSoftLimitDeg
	err = cfg.Validate()
	assert.Error(t, err)
}

func TestValidate_DiskWarnMustExceedMin(t *testing.T) {
	path := writeConfig(t, minimalValidConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.Safety.DiskWarnFreeMB = cfg.Safety.DiskMinFreeMB
	err = cfg.Validate()
	assert.Error(t, err)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
