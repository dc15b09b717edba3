// Package command implements control plane command handling: a JSON-RPC
// surface over a Unix domain socket for local operator tooling (the cmd/
// CLI) to inspect and control a running daemon.
package command

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/citra-space/citrascope/internal/manager"
	"github.com/citra-space/citrascope/internal/queue"
	"github.com/citra-space/citrascope/internal/safety"
	"github.com/citra-space/citrascope/internal/task"
)

// SafetySource reports the safety monitor's current reduced state.
type SafetySource interface {
	Current() safety.Result
	IsActionSafe(kind string, params map[string]any) bool
	WatchdogHealthy() bool
	LastHeartbeatMonotonicNs() int64
}

// QueueStatsProvider is satisfied by every C4/C5/C6 queue.
type QueueStatsProvider interface {
	Stats() queue.Stats
}

// ConfigReloader reloads global configuration from disk.
type ConfigReloader interface {
	Reload() error
}

// ManagerSource is satisfied by the C9 manager set: the autofocus, alignment
// and homing routines riding on the same mount as the imaging pipeline.
type ManagerSource interface {
	Trigger(name string) error
	Status() map[string]manager.Status
}

// CommandHandler handles control plane commands.
type CommandHandler struct {
	tasks          *task.Registry
	safety         SafetySource
	queues         map[string]QueueStatsProvider
	configReloader ConfigReloader
	managers       ManagerSource
	shutdownFunc   func()
	startTime      time.Time
}

// NewCommandHandler creates a new command handler.
func NewCommandHandler(tasks *task.Registry, safetyMonitor SafetySource, queues map[string]QueueStatsProvider, reloader ConfigReloader) *CommandHandler {
	return &CommandHandler{
		tasks:          tasks,
		safety:         safetyMonitor,
		queues:         queues,
		configReloader: reloader,
		startTime:      time.Now(),
	}
}

// SetManagers registers the C9 manager set so manager_trigger/manager_status
// commands become available. Optional: a daemon whose adapter supports none
// of autofocus/alignment/homing may leave this unset.
func (h *CommandHandler) SetManagers(m ManagerSource) {
	h.managers = m
}

// SetShutdownFunc sets the callback invoked by the daemon_shutdown command.
func (h *CommandHandler) SetShutdownFunc(fn func()) {
	h.shutdownFunc = fn
}

// Command represents a control plane command.
type Command struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
	ID     string          `json:"id"`
}

// Response represents a command response.
type Response struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo represents an error in the response.
type ErrorInfo struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error codes, following JSON-RPC 2.0 reserved ranges.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Handle processes a command and returns a response.
func (h *CommandHandler) Handle(ctx context.Context, cmd Command) Response {
	slog.Info("handling command", "method", cmd.Method, "id", cmd.ID)

	switch cmd.Method {
	case "task_list":
		return h.handleTaskList(cmd)
	case "task_status":
		return h.handleTaskStatus(cmd)
	case "task_cancel":
		return h.handleTaskCancel(cmd)
	case "safety_status":
		return h.handleSafetyStatus(cmd)
	case "queue_stats":
		return h.handleQueueStats(cmd)
	case "config_reload":
		return h.handleConfigReload(cmd)
	case "daemon_status":
		return h.handleDaemonStatus(cmd)
	case "daemon_shutdown":
		return h.handleDaemonShutdown(cmd)
	case "manager_trigger":
		return h.handleManagerTrigger(cmd)
	case "manager_status":
		return h.handleManagerStatus(cmd)
	default:
		return errorResponse(cmd.ID, ErrCodeMethodNotFound, fmt.Sprintf("method %q not found", cmd.Method))
	}
}

func errorResponse(id string, code int, message string) Response {
	return Response{ID: id, Error: &ErrorInfo{Code: code, Message: message}}
}

// handleTaskList lists every task's ID, satellite, state, and stage bucket.
func (h *CommandHandler) handleTaskList(cmd Command) Response {
	ids := h.tasks.All()
	summaries := make([]taskStatusResult, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, h.taskStatusFor(id))
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"tasks": summaries, "count": len(summaries)}}
}

// TaskStatusParams selects which task to report status for. If TaskID is
// empty, every task is returned.
type TaskStatusParams struct {
	TaskID string `json:"task_id,omitempty"`
}

type taskStatusResult struct {
	TaskID        string `json:"task_id"`
	SatelliteID   string `json:"satellite_id"`
	State         string `json:"state"`
	Bucket        string `json:"bucket,omitempty"`
	FailureReason string `json:"failure_reason,omitempty"`
}

func (h *CommandHandler) taskStatusFor(id string) taskStatusResult {
	t, err := h.tasks.Get(id)
	if err != nil {
		return taskStatusResult{TaskID: id, State: "unknown"}
	}
	bucket, _ := h.tasks.BucketOf(id)
	return taskStatusResult{
		TaskID:        t.ID,
		SatelliteID:   t.SatelliteID,
		State:         string(t.State()),
		Bucket:        string(bucket),
		FailureReason: t.FailureReason(),
	}
}

func (h *CommandHandler) handleTaskStatus(cmd Command) Response {
	var params TaskStatusParams
	if len(cmd.Params) > 0 {
		if err := json.Unmarshal(cmd.Params, &params); err != nil {
			return errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
		}
	}

	if params.TaskID != "" {
		if _, err := h.tasks.Get(params.TaskID); err != nil {
			return errorResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("get task failed: %v", err))
		}
		return Response{ID: cmd.ID, Result: h.taskStatusFor(params.TaskID)}
	}

	ids := h.tasks.All()
	summaries := make([]taskStatusResult, 0, len(ids))
	for _, id := range ids {
		summaries = append(summaries, h.taskStatusFor(id))
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"tasks": summaries}}
}

// TaskCancelParams identifies the task an operator wants to abort mid-pass.
type TaskCancelParams struct {
	TaskID string `json:"task_id"`
}

// handleTaskCancel requests cancellation of an in-flight task. The telescope
// task driver checks Task.IsCancelRequested at every lead-point loop
// boundary, so this is best-effort: a task already past its last checkpoint
// (e.g. mid-exposure) runs to completion regardless.
func (h *CommandHandler) handleTaskCancel(cmd Command) Response {
	var params TaskCancelParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if params.TaskID == "" {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, "task_id is required")
	}

	t, err := h.tasks.Get(params.TaskID)
	if err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("get task failed: %v", err))
	}
	t.RequestCancel()

	return Response{ID: cmd.ID, Result: map[string]interface{}{
		"task_id": params.TaskID,
		"status":  "cancel_requested",
	}}
}

// handleSafetyStatus reports the safety monitor's current reduced severity.
func (h *CommandHandler) handleSafetyStatus(cmd Command) Response {
	if h.safety == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "safety monitor not available")
	}
	current := h.safety.Current()
	return Response{ID: cmd.ID, Result: map[string]interface{}{
		"severity":                      current.Severity.String(),
		"check":                         current.Check,
		"reason":                        current.Reason,
		"actions_safe":                  h.safety.IsActionSafe("slew", nil),
		"watchdog_alive":                h.safety.WatchdogHealthy(),
		"watchdog_last_heartbeat_monotonic": h.safety.LastHeartbeatMonotonicNs(),
	}}
}

// handleQueueStats reports the depth/in-flight/retry counters for every
// registered queue (imaging, processing, upload).
func (h *CommandHandler) handleQueueStats(cmd Command) Response {
	stats := make(map[string]queue.Stats, len(h.queues))
	for name, q := range h.queues {
		stats[name] = q.Stats()
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"queues": stats}}
}

// handleConfigReload re-reads configuration from disk, mirroring the SIGHUP
// hot-reload path.
func (h *CommandHandler) handleConfigReload(cmd Command) Response {
	if h.configReloader == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "config reloader not available")
	}
	if err := h.configReloader.Reload(); err != nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, fmt.Sprintf("reload config failed: %v", err))
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "reloaded"}}
}

// handleDaemonShutdown triggers graceful daemon shutdown via the registered callback.
func (h *CommandHandler) handleDaemonShutdown(cmd Command) Response {
	if h.shutdownFunc == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "shutdown handler not registered")
	}

	slog.Info("daemon_shutdown command received, initiating graceful shutdown")
	go h.shutdownFunc() // Non-blocking: let the response be sent first.

	return Response{ID: cmd.ID, Result: map[string]interface{}{"status": "shutting_down"}}
}

// ManagerTriggerParams names which C9 manager (autofocus, alignment, homing)
// an operator wants to request a run of.
type ManagerTriggerParams struct {
	Manager string `json:"manager"`
}

// handleManagerTrigger requests the named manager run at the next point the
// imaging queue is idle.
func (h *CommandHandler) handleManagerTrigger(cmd Command) Response {
	if h.managers == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "no managers available on this adapter")
	}
	var params ManagerTriggerParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, fmt.Sprintf("invalid params: %v", err))
	}
	if err := h.managers.Trigger(params.Manager); err != nil {
		return errorResponse(cmd.ID, ErrCodeInvalidParams, err.Error())
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"manager": params.Manager, "status": "requested"}}
}

// handleManagerStatus reports every available C9 manager's current state.
func (h *CommandHandler) handleManagerStatus(cmd Command) Response {
	if h.managers == nil {
		return errorResponse(cmd.ID, ErrCodeInternalError, "no managers available on this adapter")
	}
	return Response{ID: cmd.ID, Result: map[string]interface{}{"managers": h.managers.Status()}}
}

// handleDaemonStatus returns daemon-level status information.
func (h *CommandHandler) handleDaemonStatus(cmd Command) Response {
	ids := h.tasks.All()
	uptime := time.Since(h.startTime)

	safetySeverity := "UNKNOWN"
	if h.safety != nil {
		safetySeverity = h.safety.Current().Severity.String()
	}

	return Response{ID: cmd.ID, Result: map[string]interface{}{
		"uptime_sec":      int64(uptime.Seconds()),
		"task_count":      len(ids),
		"safety_severity": safetySeverity,
	}}
}
