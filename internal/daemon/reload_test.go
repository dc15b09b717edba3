package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func baseReloadTestConfig(tmpDir, telescopeID, level string) string {
	return `
citrascope:
  node:
    telescope_id: ` + telescopeID + `
    ground_station_id: test-station-001

  server:
    base_url: http://127.0.0.1:19999

  images:
    root_dir: ` + filepath.Join(tmpDir, "images") + `

  safety:
    cable_wrap_state_path: ` + filepath.Join(tmpDir, "cable_wrap.json") + `

  control:
    http_listen: 127.0.0.1:0

  metrics:
    enabled: false

  log:
    level: ` + level + `
    format: text
`
}

func TestDaemon_ReloadLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "images"), 0o755); err != nil {
		t.Fatalf("mkdir images: %v", err)
	}

	configPath := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(baseReloadTestConfig(tmpDir, "test-reload-001", "info")), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	socketPath := filepath.Join(tmpDir, "citrascope.sock")
	pidFile := filepath.Join(tmpDir, "citrascope.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	if d.config.Log.Level != "info" {
		t.Fatalf("expected initial level info, got %s", d.config.Log.Level)
	}

	if err := os.WriteFile(configPath, []byte(baseReloadTestConfig(tmpDir, "test-reload-001", "debug")), 0o644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if d.config.Log.Level != "debug" {
		t.Fatalf("expected level debug after reload, got %s", d.config.Log.Level)
	}
}

// TestDaemon_ReloadDetectsColdFields verifies a changed restart-only field
// (node.hostname here) doesn't fail Reload -- it's applied to d.config
// like everything else, just flagged in the log as requiring a restart to
// actually take effect in the live component graph.
func TestDaemon_ReloadDetectsColdFields(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, "images"), 0o755); err != nil {
		t.Fatalf("mkdir images: %v", err)
	}

	configPath := filepath.Join(tmpDir, "config.yml")
	if err := os.WriteFile(configPath, []byte(baseReloadTestConfig(tmpDir, "test-reload-002", "info")), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	socketPath := filepath.Join(tmpDir, "citrascope.sock")
	pidFile := filepath.Join(tmpDir, "citrascope.pid")

	d, err := New(configPath, socketPath, pidFile)
	if err != nil {
		t.Fatalf("new daemon: %v", err)
	}
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer d.Stop()

	newConfig := `
citrascope:
  node:
    telescope_id: test-reload-002
    ground_station_id: test-station-001
    hostname: renamed-host

  server:
    base_url: http://127.0.0.1:19999

  images:
    root_dir: ` + filepath.Join(tmpDir, "images") + `

  safety:
    cable_wrap_state_path: ` + filepath.Join(tmpDir, "cable_wrap.json") + `

  control:
    http_listen: 127.0.0.1:0

  metrics:
    enabled: false

  log:
    level: info
    format: text
`
	if err := os.WriteFile(configPath, []byte(newConfig), 0o644); err != nil {
		t.Fatalf("write new config: %v", err)
	}

	if err := d.Reload(); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if d.config.Node.Hostname != "renamed-host" {
		t.Fatalf("expected hostname to be updated in config, got %s", d.config.Node.Hostname)
	}
}
