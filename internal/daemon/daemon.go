// Package daemon wires every citrascope component together into the running
// ground-station process: it owns the component graph's lifecycle (start
// order, shutdown order) but leaves each component's own behavior to its
// own package.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/citra-space/citrascope/internal/adapter"
	_ "github.com/citra-space/citrascope/internal/adapter/simulated"
	"github.com/citra-space/citrascope/internal/apiclient"
	"github.com/citra-space/citrascope/internal/command"
	"github.com/citra-space/citrascope/internal/config"
	"github.com/citra-space/citrascope/internal/controlapi"
	"github.com/citra-space/citrascope/internal/imaging"
	logpkg "github.com/citra-space/citrascope/internal/log"
	"github.com/citra-space/citrascope/internal/location"
	"github.com/citra-space/citrascope/internal/manager"
	"github.com/citra-space/citrascope/internal/metrics"
	"github.com/citra-space/citrascope/internal/processing"
	"github.com/citra-space/citrascope/internal/s3stage"
	"github.com/citra-space/citrascope/internal/safety"
	"github.com/citra-space/citrascope/internal/scheduler"
	"github.com/citra-space/citrascope/internal/task"
	"github.com/citra-space/citrascope/internal/telescope"
	"github.com/citra-space/citrascope/internal/timehealth"
	"github.com/citra-space/citrascope/internal/upload"
)

// Daemon wires and owns every component's lifecycle for one running
// ground-station process.
type Daemon struct {
	config     *config.GlobalConfig
	configPath string
	socketPath string
	pidFile    string

	client   *apiclient.Client
	hardware adapter.Adapter
	tasks    *task.Registry
	location *location.Service

	timeMonitor  *timehealth.Monitor
	operatorStop *safety.OperatorStopCheck
	cableWrap    *safety.CableWrapCheck
	safetyMon    *safety.Monitor

	sched    *scheduler.Scheduler
	runner   *scheduler.Runner
	driver   *telescope.Driver
	pipeline *telescope.Pipeline
	managers *manager.Set

	cmdHandler    *command.CommandHandler
	udsServer     *command.UDSServer
	controlServer *controlapi.Server
	metricsServer *metrics.Server

	ctx          context.Context
	cancel       context.CancelFunc
	shutdownChan chan struct{}
	sigChan      chan os.Signal
	bg           sync.WaitGroup
}

// New loads configuration and builds an un-started Daemon.
func New(configPath, socketPath, pidFile string) (*Daemon, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("daemon: load config: %w", err)
	}

	d := &Daemon{
		config:       cfg,
		configPath:   configPath,
		socketPath:   socketPath,
		pidFile:      pidFile,
		shutdownChan: make(chan struct{}),
	}
	d.ctx, d.cancel = context.WithCancel(context.Background())
	return d, nil
}

// Start builds and launches every component. Call Run afterward to block
// until shutdown.
func (d *Daemon) Start() error {
	cfg := d.config

	if err := d.initLogging(); err != nil {
		return fmt.Errorf("daemon: init logging: %w", err)
	}
	slog.Info("starting citrascope daemon",
		"telescope_id", cfg.Node.TelescopeID,
		"ground_station_id", cfg.Node.GroundStationID,
		"hostname", cfg.Node.Hostname,
		"config", d.configPath,
		"socket", d.socketPath,
	)

	// 1. PID file, so operator tooling can find this process immediately.
	if err := d.writePIDFile(); err != nil {
		return fmt.Errorf("daemon: write pid file: %w", err)
	}

	// 2. Metrics, started early so every later component's counters are
	// already scraped from the first tick.
	if err := d.startMetrics(); err != nil {
		return fmt.Errorf("daemon: start metrics: %w", err)
	}

	// 3. Dispatch server client and hardware adapter.
	requestTimeout := durationOr(cfg.Server.RequestTimeout, 10*time.Second)
	d.client = apiclient.New(cfg.Server.BaseURL, cfg.Server.Token, requestTimeout)

	factory, ok := adapter.Get(cfg.Adapter.Name)
	if !ok {
		return fmt.Errorf("daemon: unknown adapter %q (registered: %v)", cfg.Adapter.Name, adapter.List())
	}
	hardware, err := factory(cfg.Adapter.Settings)
	if err != nil {
		return fmt.Errorf("daemon: build adapter %q: %w", cfg.Adapter.Name, err)
	}
	if err := hardware.Connect(d.ctx); err != nil {
		return fmt.Errorf("daemon: connect adapter %q: %w", cfg.Adapter.Name, err)
	}
	d.hardware = hardware

	// 4. Task registry and location service.
	d.tasks = task.NewRegistry()

	gpsCheckInterval := durationOr(cfg.Location.GPSCheckInterval, 5*time.Second)
	gpsUpdateInterval := durationOr(cfg.Location.GPSUpdateInterval, 5*time.Minute)
	d.location = location.NewService(d.ctx, d.client, gpsCheckInterval, gpsUpdateInterval, cfg.Location.GPSUpdatesEnabled)
	d.location.SetGroundStation(location.Record{
		ID:        cfg.Node.GroundStationID,
		Latitude:  cfg.Location.StaticLatitudeDeg,
		Longitude: cfg.Location.StaticLongitudeDeg,
		Altitude:  cfg.Location.StaticAltitudeM,
	})

	// 5. Safety monitor, before anything can queue a hardware action.
	if err := d.startSafety(); err != nil {
		return fmt.Errorf("daemon: start safety monitor: %w", err)
	}

	// 6. Processing chain, telescope driver, and the C4/C5/C6 pipeline.
	registry := processing.NewRegistry(
		&processing.QualityChecker{PixelStats: placeholderPixelStats},
		&processing.PlateSolver{Solve: placeholderPlateSolve},
	)

	var mirror upload.Mirror
	if cfg.S3.Enabled {
		stage, err := s3stage.NewFromEnv(d.ctx, cfg.S3.Bucket, cfg.S3.Prefix, cfg.S3.Endpoint)
		if err != nil {
			slog.Warn("s3 mirror disabled, failed to resolve aws config", "error", err)
		} else {
			mirror = stage
		}
	}

	d.driver = telescope.New(telescope.Config{
		SlewRateDegPerSec:     cfg.Telescope.SlewRateDegPerSec,
		LeadPointMaxAttempts:  cfg.Telescope.LeadPointMaxAttempts,
		LeadPointMaxProximity: cfg.Telescope.LeadPointMaxProximity,
		EstimatorMaxIters:     cfg.Telescope.EstimatorMaxIters,
		EstimatorTolerance:    durationOr(cfg.Telescope.EstimatorTolerance, 100*time.Millisecond),
	}, d.client, d.hardware, telescope.PlaceholderEphemeris{}, d.location, d.tasks)

	d.pipeline = telescope.Wire(telescope.WireConfig{
		Client:     d.client,
		Adapter:    d.hardware,
		Tasks:      d.tasks,
		Registry:   registry,
		Location:   d.location,
		Mirror:     mirror,
		ImagesRoot: cfg.Images.RootDir,
		Station: telescope.StationInfo{
			TelescopeName:     cfg.Node.TelescopeID,
			GroundStationName: cfg.Node.GroundStationID,
		},
		Imaging:    imaging.Config{MaxRetries: cfg.Queues.Imaging.MaxRetries, QueueCapacity: cfg.Queues.Imaging.QueueCapacity},
		Processing: processing.Config{Workers: cfg.Queues.Processing.Workers, MaxRetries: cfg.Queues.Processing.MaxRetries, QueueCapacity: cfg.Queues.Processing.QueueCapacity},
		Upload:     upload.Config{Workers: cfg.Queues.Upload.Workers, MaxRetries: cfg.Queues.Upload.MaxRetries, QueueCapacity: cfg.Queues.Upload.QueueCapacity},
	}, d.driver)
	d.pipeline.Start(d.ctx)

	// 6b. C9 managers (autofocus, alignment, homing), built only for the
	// capabilities this adapter actually supports.
	d.managers = d.buildManagers(cfg, hardware)
	if cfg.Telescope.HomeOnStart {
		if err := d.managers.Trigger("homing"); err != nil {
			slog.Warn("home-on-start requested but homing unavailable", "error", err)
		} else {
			d.managers.CheckAndExecuteAll(d.ctx, false)
		}
	}

	// 7. Scheduler, the poll loop feeding it, and the cable wrap feed.
	d.sched = scheduler.New()
	d.runner = scheduler.NewRunner(d.sched, d.dispatchJob, time.Second)
	d.runner.SetGate(d.dispatchGate)
	d.runner.SetAbandonFunc(d.abandonJob)
	d.pipeline.Imaging.SetOnSettled(func(taskID string) {
		if d.sched.IsCurrent(taskID) {
			d.sched.ClearCurrent()
		}
	})
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		d.runner.Run(d.ctx)
	}()

	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		d.pollTasksLoop(durationOr(cfg.Server.PollInterval, 5*time.Second))
	}()

	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		d.cableWrapFeedLoop(2 * time.Second)
	}()

	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		d.managerHousekeepingLoop(5 * time.Second)
	}()

	// 8. Control plane, last: everything it reports on already exists.
	if err := d.startControlPlane(); err != nil {
		return fmt.Errorf("daemon: start control plane: %w", err)
	}

	slog.Info("citrascope daemon started")
	return nil
}

// startSafety builds every C1 check and the C2 monitor over them.
func (d *Daemon) startSafety() error {
	cfg := d.config.Safety

	disk := safety.NewDiskSpaceCheck(d.config.Images.RootDir, cfg.DiskMinFreeMB, cfg.DiskWarnFreeMB)

	timeSource := timehealth.DetectBest("", 5*time.Second)
	d.timeMonitor = timehealth.NewMonitor(timeSource, 30*time.Second)
	d.timeMonitor.Start(d.ctx)
	timeCheck := safety.NewTimeHealthCheck(d.timeMonitor, cfg.TimeOffsetWarnMs, cfg.TimeOffsetStopMs)

	d.operatorStop = safety.NewOperatorStopCheck()

	cableWrap, err := safety.NewCableWrapCheck(
		cfg.CableWrapStatePath,
		cfg.CableWrapSoftLimitDeg,
		cfg.CableWrapHardLimitDeg,
		cfg.CableWrapTravelBudgetDeg,
		cfg.CableWrapConvergenceDeg,
		cfg.CableWrapStallDeltaDeg,
		cfg.CableWrapStallCount,
	)
	if err != nil {
		return fmt.Errorf("build cable wrap check: %w", err)
	}
	d.cableWrap = cableWrap

	d.safetyMon = safety.NewMonitor(durationOr(cfg.WatchdogInterval, time.Second), d.onSafetyAbort,
		disk, timeCheck, d.operatorStop, d.cableWrap)
	d.safetyMon.Start(d.ctx)
	return nil
}

// onSafetyAbort fires once per transition into Emergency severity: it pauses
// the scheduler so no new pass starts while the mount is in an unsafe state.
// Work already dispatched still runs to a terminal outcome through the
// queues' own retry/fail-open logic.
func (d *Daemon) onSafetyAbort(worst safety.Result) {
	slog.Error("safety emergency, pausing scheduler", "check", worst.Check, "reason", worst.Reason)
	d.sched.Pause()
}

// dispatchGate is the scheduler Runner's Gate: a job that has already passed
// PopReady (not paused, automated scheduling on) still must not dispatch
// while a C9 manager routine is requested or running, or while the safety
// monitor refuses a slew. A refused job is requeued by the runner, not
// dropped, so it's retried on the next tick instead of lost.
func (d *Daemon) dispatchGate(job *scheduler.Job) (bool, string) {
	if d.managers != nil && d.managers.AnyActive() {
		return false, "a C9 manager routine is requested or running"
	}
	if !d.safetyMon.IsActionSafe("slew", map[string]any{"task_id": job.TaskID}) {
		return false, "safety monitor reports unsafe"
	}
	return true, ""
}

// dispatchJob is the scheduler's Dispatch callback: it admits a job that has
// already cleared the gate to the imaging queue.
func (d *Daemon) dispatchJob(job *scheduler.Job) {
	if _, err := d.pipeline.Imaging.Enqueue(job.TaskID); err != nil {
		slog.Warn("failed to enqueue due job for imaging", "task_id", job.TaskID, "error", err)
		d.sched.ClearCurrent()
	}
}

// abandonJob handles a job popped after its stop window already closed: it
// is never dispatched, only reported as a permanent failure, matching the
// lifecycle rule that a task whose window has passed cannot be imaged.
func (d *Daemon) abandonJob(job *scheduler.Job) {
	reason := "stop window passed before dispatch"
	slog.Warn("abandoning expired job", "task_id", job.TaskID, "stop", job.StopEpoch)

	if t, err := d.tasks.Get(job.TaskID); err == nil {
		t.Fail(reason)
		d.tasks.Remove(job.TaskID)
	}
	if err := d.client.MarkTaskFailed(d.ctx, job.TaskID, reason); err != nil {
		slog.Warn("failed to report abandoned task to dispatch server", "task_id", job.TaskID, "error", err)
	}
}

// pollTasksLoop periodically asks the dispatch server for newly assigned
// tasks and admits any not already tracked into the registry and scheduler.
func (d *Daemon) pollTasksLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.pollOnce()
	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce()
		}
	}
}

// pollOnce reconciles the scheduler's heap against the dispatch server's
// authoritative task list: admits new tasks still open for scheduling, and
// evicts heap entries the server no longer lists (dropped or cancelled
// server-side), except the task currently being dispatched.
func (d *Daemon) pollOnce() {
	dtos, err := d.client.PollTasks(d.ctx)
	if err != nil {
		slog.Warn("poll tasks failed", "error", err)
		return
	}

	now := time.Now()
	apiTaskMap := make(map[string]struct{}, len(dtos))
	for _, dto := range dtos {
		if dto.Status != apiclient.TaskStatusPending && dto.Status != apiclient.TaskStatusScheduled {
			continue
		}
		apiTaskMap[dto.ID] = struct{}{}

		if !dto.StopEpoch.After(now) {
			continue // stop already in the past (or exactly now): never admitted
		}
		if _, err := d.tasks.Get(dto.ID); err == nil {
			continue // already tracked
		}

		t := task.New(dto.ID, dto.SatelliteID, dto.GroundStationID, dto.StartEpoch, dto.StopEpoch, dto.FilterName, dto.ExposureSeconds)
		if err := d.tasks.Add(t); err != nil {
			slog.Warn("failed to register newly polled task", "task_id", dto.ID, "error", err)
			continue
		}
		d.sched.Add(dto.ID, dto.StartEpoch, dto.StopEpoch)
		slog.Info("admitted newly polled task", "task_id", dto.ID, "satellite_id", dto.SatelliteID, "start", dto.StartEpoch)
	}

	for _, taskID := range d.sched.Reconcile(apiTaskMap) {
		slog.Info("evicting heap entry no longer listed by dispatch server", "task_id", taskID)
		t, getErr := d.tasks.Get(taskID)
		bucket, bucketErr := d.tasks.BucketOf(taskID)
		if getErr == nil && bucketErr == nil && bucket == task.BucketScheduled {
			t.Transition(task.StateCancelled)
			d.tasks.Remove(taskID)
		}
	}
}

// raAzimuthMount adapts the base adapter.Adapter contract to
// safety.MountUnwinder by treating the commanded RA degree as the azimuth
// proxy, the same convention cableWrapFeedLoop uses to feed readings in:
// the adapter surface has no true alt-az readback, only blocking
// point-and-read primitives, so a defensive unwind can only ever be a
// point-and-block sequence rather than the continuous motion the original
// Python implementation commands.
type raAzimuthMount struct {
	hardware adapter.Adapter
}

func (m raAzimuthMount) PointAzimuth(ctx context.Context, azDeg float64) error {
	_, decDeg, err := m.hardware.TelescopeDirection(ctx)
	if err != nil {
		return err
	}
	return m.hardware.PointTelescope(ctx, azDeg, decDeg)
}

func (m raAzimuthMount) CurrentAzimuth(ctx context.Context) (float64, error) {
	raDeg, _, err := m.hardware.TelescopeDirection(ctx)
	return raDeg, err
}

// cableWrapFeedLoop periodically samples the adapter's reported pointing and
// folds it into the cable wrap check. The adapter surface only reports
// equatorial RA/Dec, not a mount's actual alt-az readback, so the commanded
// RA degree (mod 360) stands in as an azimuth proxy here; a real alt-az mount
// adapter would feed its actual azimuth instead. Once a reading crosses the
// soft limit, it kicks off a defensive unwind in the background rather than
// waiting on an operator.
func (d *Daemon) cableWrapFeedLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			raDeg, _, err := d.hardware.TelescopeDirection(d.ctx)
			if err != nil {
				continue
			}
			if err := d.cableWrap.Update(raDeg); err != nil {
				slog.Warn("cable wrap update failed", "error", err)
			}
			if d.safetyMon.Current().Check == d.cableWrap.Name() && d.safetyMon.Current().Severity >= safety.QueueStop {
				d.triggerCableUnwind()
			}
		}
	}
}

// triggerCableUnwind launches ExecuteAction in the background; ExecuteAction
// itself is re-entry-safe, so an overlapping tick is a harmless no-op.
func (d *Daemon) triggerCableUnwind() {
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		if err := d.cableWrap.ExecuteAction(d.ctx, raAzimuthMount{hardware: d.hardware}); err != nil {
			slog.Error("cable wrap defensive unwind failed", "error", err)
		}
	}()
}

// buildManagers builds a manager.Set populated only with managers the
// configured adapter actually supports: alignment and homing need only the
// base Adapter contract, but autofocus needs adapter.AutofocusCapable.
func (d *Daemon) buildManagers(cfg *config.GlobalConfig, hardware adapter.Adapter) *manager.Set {
	var autofocus *manager.AutofocusManager
	if adapter.SupportsAutofocus(hardware) {
		gap := durationOr(cfg.Telescope.AutofocusGap, 0)
		autofocus = manager.NewAutofocusManager(hardware, gap, cfg.Telescope.AutofocusPreset)
	}
	alignment := manager.NewAlignmentManager(hardware)
	homing := manager.NewHomingManager(hardware, cfg.Telescope.HomeRADeg, cfg.Telescope.HomeDecDeg)
	return manager.NewSet(autofocus, alignment, homing)
}

// managerHousekeepingLoop periodically gives the C9 managers a chance to run
// any pending (operator-requested or scheduled) routine, gated on the
// imaging queue being idle so a focus sweep or homing slew never interrupts
// a capture in progress.
func (d *Daemon) managerHousekeepingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			stats := d.pipeline.Imaging.Stats()
			imagingBusy := stats.InFlight > 0 || stats.Depth > 0
			d.managers.CheckAndExecuteAll(d.ctx, imagingBusy)
		}
	}
}

// startControlPlane builds the UDS command server and the read-only HTTP
// control API over the same live components.
func (d *Daemon) startControlPlane() error {
	cfg := d.config

	cmdQueues := map[string]command.QueueStatsProvider{
		"imaging":    d.pipeline.Imaging,
		"processing": d.pipeline.Processing,
		"upload":     d.pipeline.Upload,
	}
	d.cmdHandler = command.NewCommandHandler(d.tasks, d.safetyMon, cmdQueues, d)
	if d.managers != nil {
		d.cmdHandler.SetManagers(d.managers)
	}
	d.cmdHandler.SetShutdownFunc(func() {
		slog.Info("shutdown triggered via daemon_shutdown command")
		close(d.shutdownChan)
	})

	d.udsServer = command.NewUDSServer(d.socketPath, d.cmdHandler)
	d.bg.Add(1)
	go func() {
		defer d.bg.Done()
		if err := d.udsServer.Start(d.ctx); err != nil {
			slog.Error("uds server stopped with error", "error", err)
		}
	}()

	controlQueues := map[string]controlapi.QueueStatsProvider{
		"imaging":    d.pipeline.Imaging,
		"processing": d.pipeline.Processing,
		"upload":     d.pipeline.Upload,
	}
	d.controlServer = controlapi.New(controlapi.Config{Addr: cfg.Control.HTTPListen}, controlapi.Deps{
		Safety:   d.safetyMon,
		Tasks:    d.tasks,
		Queues:   controlQueues,
		Managers: d.managers,
	})
	d.controlServer.Start(d.ctx)

	return nil
}

// Run blocks until shutdown is triggered by an OS signal, the daemon_shutdown
// command, or external context cancellation. SIGHUP triggers a config
// reload instead of shutdown.
func (d *Daemon) Run() error {
	d.sigChan = make(chan os.Signal, 1)
	signal.Notify(d.sigChan, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)

	slog.Info("daemon running, waiting for signals or commands")

	for {
		select {
		case sig := <-d.sigChan:
			switch sig {
			case syscall.SIGTERM, syscall.SIGINT:
				slog.Info("received shutdown signal", "signal", sig)
				d.Stop()
				return nil
			case syscall.SIGHUP:
				slog.Info("received reload signal")
				if err := d.Reload(); err != nil {
					slog.Error("failed to reload config", "error", err)
				}
			}
		case <-d.shutdownChan:
			slog.Info("shutdown triggered by command")
			d.Stop()
			return nil
		case <-d.ctx.Done():
			slog.Info("context cancelled", "error", d.ctx.Err())
			d.Stop()
			return d.ctx.Err()
		}
	}
}

// Stop gracefully tears down every component in reverse start order.
func (d *Daemon) Stop() {
	slog.Info("initiating graceful shutdown")

	if d.controlServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.controlServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping control api", "error", err)
		}
		cancel()
	}
	if d.udsServer != nil {
		_ = d.udsServer.Stop()
	}

	if d.pipeline != nil {
		d.pipeline.Stop()
	}

	if d.safetyMon != nil {
		d.safetyMon.Stop()
	}
	if d.timeMonitor != nil {
		d.timeMonitor.Stop()
	}
	if d.location != nil {
		d.location.Stop()
	}

	if d.hardware != nil {
		if err := d.hardware.Disconnect(context.Background()); err != nil {
			slog.Error("error disconnecting adapter", "error", err)
		}
	}

	if d.metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := d.metricsServer.Stop(shutdownCtx); err != nil {
			slog.Error("error stopping metrics server", "error", err)
		}
		cancel()
	}

	d.cancel()
	d.bg.Wait()

	if d.sigChan != nil {
		signal.Stop(d.sigChan)
	}

	if err := d.removePIDFile(); err != nil {
		slog.Error("error removing pid file", "error", err)
	}

	slog.Info("daemon stopped gracefully")
}

// Reload re-reads configuration from disk. Only logging is hot-reloaded;
// everything else (queue sizes, adapter selection, listen addresses) requires
// a restart to take effect, since re-wiring the live component graph in place
// would risk dropping in-flight passes.
func (d *Daemon) Reload() error {
	slog.Info("reloading configuration", "path", d.configPath)

	newCfg, err := config.Load(d.configPath)
	if err != nil {
		return fmt.Errorf("daemon: reload config: %w", err)
	}

	oldLevel, oldFormat := d.config.Log.Level, d.config.Log.Format
	logChanged := newCfg.Log.Level != oldLevel || newCfg.Log.Format != oldFormat

	var restartNeeded []string
	if newCfg.Node.Hostname != d.config.Node.Hostname {
		restartNeeded = append(restartNeeded, "node.hostname")
	}
	if newCfg.Control.HTTPListen != d.config.Control.HTTPListen {
		restartNeeded = append(restartNeeded, "control.http_listen")
	}
	if newCfg.Adapter.Name != d.config.Adapter.Name {
		restartNeeded = append(restartNeeded, "adapter.name")
	}

	d.config = newCfg
	if err := d.initLogging(); err != nil {
		slog.Error("failed to reinitialize logging on reload", "error", err)
	}

	slog.Info("configuration reloaded", "log_changed", logChanged, "requires_restart", restartNeeded)
	return nil
}

// TriggerShutdown triggers graceful shutdown from an external caller.
func (d *Daemon) TriggerShutdown() {
	select {
	case d.shutdownChan <- struct{}{}:
	default:
	}
}

func (d *Daemon) initLogging() error {
	return logpkg.Init(d.config.Log)
}

func (d *Daemon) writePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(d.pidFile, data, 0o644); err != nil {
		return fmt.Errorf("write pid file %s: %w", d.pidFile, err)
	}
	return nil
}

func (d *Daemon) removePIDFile() error {
	if d.pidFile == "" {
		return nil
	}
	if err := os.Remove(d.pidFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file %s: %w", d.pidFile, err)
	}
	return nil
}

func (d *Daemon) startMetrics() error {
	if !d.config.Metrics.Enabled {
		slog.Info("metrics server disabled")
		return nil
	}
	d.metricsServer = metrics.NewServer(d.config.Metrics.Listen, d.config.Metrics.Path)
	return d.metricsServer.Start(d.ctx)
}

// durationOr parses s, falling back to def on empty input or a parse error.
func durationOr(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		slog.Warn("invalid duration, using default", "value", s, "default", def, "error", err)
		return def
	}
	return d
}
