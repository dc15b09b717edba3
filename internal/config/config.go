// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// GlobalConfig is the top-level static configuration, loaded from the
// `citrascope:` root key in YAML.
type GlobalConfig struct {
	Node      NodeConfig      `mapstructure:"node" validate:"required"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Images    ImagesConfig    `mapstructure:"images"`
	Safety    SafetyConfig    `mapstructure:"safety"`
	Queues    QueuesConfig    `mapstructure:"queues"`
	Control   ControlConfig   `mapstructure:"control"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
	S3        S3Config        `mapstructure:"s3"`
	Telescope TelescopeConfig `mapstructure:"telescope"`
	Location  LocationConfig  `mapstructure:"location"`
	Adapter   AdapterConfig   `mapstructure:"adapter"`
}

// AdapterConfig selects the hardware adapter backend (C8) registered under
// internal/adapter, and the driver-specific settings map passed to its
// Factory.
type AdapterConfig struct {
	Name     string         `mapstructure:"name" validate:"required"`
	Settings map[string]any `mapstructure:"settings"`
}

// TelescopeConfig configures the C10 telescope task driver's lead-point loop
// and the C9 autofocus/alignment/homing managers riding on the same mount.
type TelescopeConfig struct {
	SlewRateDegPerSec     float64 `mapstructure:"slew_rate_deg_per_second" validate:"gt=0"`
	LeadPointMaxAttempts  int     `mapstructure:"lead_point_max_attempts" validate:"gt=0"`
	LeadPointMaxProximity float64 `mapstructure:"lead_point_max_proximity_deg" validate:"gt=0"`
	EstimatorMaxIters     int     `mapstructure:"estimator_max_iterations" validate:"gt=0"`
	EstimatorTolerance    string  `mapstructure:"estimator_tolerance"`

	HomeRADeg       float64           `mapstructure:"home_ra_deg"`
	HomeDecDeg      float64           `mapstructure:"home_dec_deg"`
	HomeOnStart     bool              `mapstructure:"home_on_start"`
	AutofocusGap    string            `mapstructure:"autofocus_scheduled_gap"`
	AutofocusPreset map[string]string `mapstructure:"autofocus_presets"`
}

// LocationConfig configures the GPS/ground-station location service. The
// static fields seed the service for fixed, non-GPS installations; when GPS
// updates are enabled they're overwritten as soon as a fix comes in.
type LocationConfig struct {
	GPSCheckInterval  string `mapstructure:"gps_check_interval"`
	GPSUpdateInterval string `mapstructure:"gps_update_interval"`
	GPSUpdatesEnabled bool   `mapstructure:"gps_updates_enabled"`

	StaticLatitudeDeg  float64 `mapstructure:"static_latitude_deg" validate:"gte=-90,lte=90"`
	StaticLongitudeDeg float64 `mapstructure:"static_longitude_deg" validate:"gte=-180,lte=180"`
	StaticAltitudeM    float64 `mapstructure:"static_altitude_m"`
}

// NodeConfig identifies this ground station.
type NodeConfig struct {
	TelescopeID     string `mapstructure:"telescope_id" validate:"required"`
	GroundStationID string `mapstructure:"ground_station_id" validate:"required"`
	Hostname        string `mapstructure:"hostname"`
}

// ServerConfig configures the remote task-dispatch server.
type ServerConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	Token          string `mapstructure:"token"`
	PollInterval   string `mapstructure:"poll_interval"`
	RequestTimeout string `mapstructure:"request_timeout"`
}

// ImagesConfig configures where captured/processed artifacts land on disk.
type ImagesConfig struct {
	RootDir    string `mapstructure:"root_dir" validate:"required"`
	KeepImages bool   `mapstructure:"keep_images"`
}

// SafetyConfig holds thresholds for all C1 safety checks.
type SafetyConfig struct {
	DiskMinFreeMB    int64  `mapstructure:"disk_min_free_mb" validate:"gt=0"`
	DiskWarnFreeMB   int64  `mapstructure:"disk_warn_free_mb" validate:"gt=0"`
	TimeOffsetWarnMs int64  `mapstructure:"time_offset_warn_ms" validate:"gt=0"`
	TimeOffsetStopMs int64  `mapstructure:"time_offset_stop_ms" validate:"gt=0"`
	WatchdogInterval string `mapstructure:"watchdog_interval"`

	CableWrapSoftLimitDeg    float64 `mapstructure:"cable_wrap_soft_limit_deg" validate:"gt=0,lte=360"`
	CableWrapHardLimitDeg    float64 `mapstructure:"cable_wrap_hard_limit_deg" validate:"gt=0,lte=360"`
	CableWrapTravelBudgetDeg float64 `mapstructure:"cable_wrap_travel_budget_deg" validate:"gt=0"`
	CableWrapConvergenceDeg  float64 `mapstructure:"cable_wrap_convergence_deg" validate:"gt=0"`
	CableWrapStallDeltaDeg   float64 `mapstructure:"cable_wrap_stall_delta_deg" validate:"gt=0"`
	CableWrapStallCount      int     `mapstructure:"cable_wrap_stall_count" validate:"gt=0"`
	CableWrapStatePath       string  `mapstructure:"cable_wrap_state_path" validate:"required"`
}

// QueuesConfig configures the three work-item queues (C4-C6).
type QueuesConfig struct {
	Imaging    QueueConfig `mapstructure:"imaging"`
	Processing QueueConfig `mapstructure:"processing"`
	Upload     QueueConfig `mapstructure:"upload"`
}

// QueueConfig configures a single generic work queue (C3).
type QueueConfig struct {
	Workers       int    `mapstructure:"workers" validate:"gte=1"`
	MaxRetries    int    `mapstructure:"max_retries" validate:"gte=0"`
	BackoffMin    string `mapstructure:"backoff_min"`
	BackoffMax    string `mapstructure:"backoff_max"`
	QueueCapacity int    `mapstructure:"queue_capacity" validate:"gte=0"`
}

// ControlConfig configures the local control plane (UDS + HTTP).
type ControlConfig struct {
	Socket     string `mapstructure:"socket"`
	PIDFile    string `mapstructure:"pid_file"`
	HTTPListen string `mapstructure:"http_listen"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format  string           `mapstructure:"format" validate:"oneof=json text"`
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains structured log output destinations.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures rotated file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures lumberjack log rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// S3Config configures the optional off-site artifact mirror.
type S3Config struct {
	Enabled  bool   `mapstructure:"enabled"`
	Bucket   string `mapstructure:"bucket" validate:"required_if=Enabled true"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
	Prefix   string `mapstructure:"prefix"`
}

// configRoot is the top-level wrapper matching the YAML structure `citrascope: ...`.
type configRoot struct {
	CitraScope GlobalConfig `mapstructure:"citrascope"`
}

// Load loads configuration from file.
// The YAML file uses `citrascope:` as root key; env vars use CITRASCOPE_ prefix
// (e.g. CITRASCOPE_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg := root.CitraScope

	if err := cfg.applyRuntimeDefaults(); err != nil {
		return nil, fmt.Errorf("config: runtime defaults: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("citrascope.server.poll_interval", "5s")
	v.SetDefault("citrascope.server.request_timeout", "10s")

	v.SetDefault("citrascope.adapter.name", "simulated")

	v.SetDefault("citrascope.images.keep_images", true)

	v.SetDefault("citrascope.safety.disk_min_free_mb", 500)
	v.SetDefault("citrascope.safety.disk_warn_free_mb", 2000)
	v.SetDefault("citrascope.safety.time_offset_warn_ms", 500)
	v.SetDefault("citrascope.safety.time_offset_stop_ms", 2000)
	v.SetDefault("citrascope.safety.watchdog_interval", "1s")
	v.SetDefault("citrascope.safety.cable_wrap_soft_limit_deg", 180.0)
	v.SetDefault("citrascope.safety.cable_wrap_hard_limit_deg", 270.0)
	v.SetDefault("citrascope.safety.cable_wrap_travel_budget_deg", 360.0)
	v.SetDefault("citrascope.safety.cable_wrap_convergence_deg", 5.0)
	v.SetDefault("citrascope.safety.cable_wrap_stall_delta_deg", 1.0)
	v.SetDefault("citrascope.safety.cable_wrap_stall_count", 3)
	v.SetDefault("citrascope.safety.cable_wrap_state_path", "/var/lib/citrascope/cable_wrap.json")

	for _, stage := range []string{"imaging", "processing", "upload"} {
		v.SetDefault("citrascope.queues."+stage+".workers", 1)
		v.SetDefault("citrascope.queues."+stage+".max_retries", 3)
		v.SetDefault("citrascope.queues."+stage+".backoff_min", "1s")
		v.SetDefault("citrascope.queues."+stage+".backoff_max", "30s")
		v.SetDefault("citrascope.queues."+stage+".queue_capacity", 64)
	}

	v.SetDefault("citrascope.telescope.slew_rate_deg_per_second", 2.0)
	v.SetDefault("citrascope.telescope.lead_point_max_attempts", 10)
	v.SetDefault("citrascope.telescope.lead_point_max_proximity_deg", 0.3)
	v.SetDefault("citrascope.telescope.estimator_max_iterations", 5)
	v.SetDefault("citrascope.telescope.estimator_tolerance", "100ms")
	v.SetDefault("citrascope.telescope.home_on_start", false)
	v.SetDefault("citrascope.telescope.autofocus_scheduled_gap", "0s")

	v.SetDefault("citrascope.location.gps_check_interval", "5s")
	v.SetDefault("citrascope.location.gps_update_interval", "5m")
	v.SetDefault("citrascope.location.gps_updates_enabled", true)

	v.SetDefault("citrascope.control.socket", "/var/run/citrascope.sock")
	v.SetDefault("citrascope.control.pid_file", "/var/run/citrascope.pid")
	v.SetDefault("citrascope.control.http_listen", ":8090")

	v.SetDefault("citrascope.metrics.enabled", true)
	v.SetDefault("citrascope.metrics.listen", ":9091")
	v.SetDefault("citrascope.metrics.path", "/metrics")

	v.SetDefault("citrascope.log.level", "info")
	v.SetDefault("citrascope.log.format", "json")
	v.SetDefault("citrascope.log.outputs.file.enabled", false)
	v.SetDefault("citrascope.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("citrascope.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("citrascope.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("citrascope.log.outputs.file.rotation.compress", true)
}

// applyRuntimeDefaults fills in values that can't be static viper defaults.
func (cfg *GlobalConfig) applyRuntimeDefaults() error {
	if cfg.Node.Hostname == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("get hostname: %w", err)
		}
		cfg.Node.Hostname = hostname
	}
	return nil
}

var validate = validator.New()

// Validate runs struct-tag validation over the loaded config.
func (cfg *GlobalConfig) Validate() error {
	if err := validate.Struct(cfg); err != nil {
		return err
	}
	if cfg.Safety.CableWrapHardLimitDeg <= cfg.Safety.CableWrapSoftLimitDeg {
		return fmt.Errorf("safety.cable_wrap_hard_limit_deg (%.1f) must exceed cable_wrap_soft_limit_deg (%.1f)",
			cfg.Safety.CableWrapHardLimitDeg, cfg.Safety.CableWrapSoftLimitDeg)
	}
	if cfg.Safety.DiskWarnFreeMB <= cfg.Safety.DiskMinFreeMB {
		return fmt.Errorf("safety.disk_warn_free_mb (%d) must exceed disk_min_free_mb (%d)",
			cfg.Safety.DiskWarnFreeMB, cfg.Safety.DiskMinFreeMB)
	}
	return nil
}
