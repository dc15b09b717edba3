// Package controlapi implements a minimal read-only HTTP control surface for
// remote monitoring dashboards: /healthz, /status, /tasks. It sits alongside
// the Unix-domain-socket command interface (internal/command) rather than
// replacing it — the UDS socket remains the only channel for mutating
// commands (shutdown, cancel, reload); this surface never accepts a write.
package controlapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"

	"github.com/citra-space/citrascope/internal/manager"
	"github.com/citra-space/citrascope/internal/queue"
	"github.com/citra-space/citrascope/internal/safety"
	"github.com/citra-space/citrascope/internal/task"
)

// ManagerSource reports the C9 manager set's current state.
type ManagerSource interface {
	Status() map[string]manager.Status
}

// QueueStatsProvider is satisfied by every C4/C5/C6 queue.
type QueueStatsProvider interface {
	Stats() queue.Stats
}

// SafetySource reports the safety monitor's current reduced state.
type SafetySource interface {
	Current() safety.Result
	IsActionSafe(kind string, params map[string]any) bool
	WatchdogHealthy() bool
	LastHeartbeatMonotonicNs() int64
}

// Config configures the control API's address and CORS policy.
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Deps bundles the read-only collaborators the control API reports on.
type Deps struct {
	Safety   SafetySource
	Tasks    *task.Registry
	Queues   map[string]QueueStatsProvider
	Managers ManagerSource
}

// Server is the C-control-plane HTTP surface.
type Server struct {
	cfg    Config
	deps   Deps
	server *http.Server
}

// New builds a Server. It does not start listening until Start is called.
func New(cfg Config, deps Deps) *Server {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}

	router := chi.NewRouter()
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	s := &Server{cfg: cfg, deps: deps}
	router.Get("/healthz", s.handleHealthz)
	router.Get("/status", s.handleStatus)
	router.Get("/tasks", s.handleTasks)
	router.Get("/managers", s.handleManagers)

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Start launches the HTTP listener in a background goroutine.
func (s *Server) Start(ctx context.Context) {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("controlapi: server error: %v\n", err)
		}
	}()
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	SafetySeverity              string                 `json:"safety_severity"`
	SafetyReason                string                 `json:"safety_reason,omitempty"`
	ActionsSafe                 bool                   `json:"actions_safe"`
	WatchdogAlive                bool                  `json:"watchdog_alive"`
	WatchdogLastHeartbeatMonoNs  int64                 `json:"watchdog_last_heartbeat_monotonic"`
	Queues                       map[string]queue.Stats `json:"queues"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Queues: make(map[string]queue.Stats, len(s.deps.Queues)),
	}
	if s.deps.Safety != nil {
		current := s.deps.Safety.Current()
		resp.SafetySeverity = current.Severity.String()
		resp.SafetyReason = current.Reason
		resp.ActionsSafe = s.deps.Safety.IsActionSafe("slew", nil)
		resp.WatchdogAlive = s.deps.Safety.WatchdogHealthy()
		resp.WatchdogLastHeartbeatMonoNs = s.deps.Safety.LastHeartbeatMonotonicNs()
	}
	for name, q := range s.deps.Queues {
		resp.Queues[name] = q.Stats()
	}
	writeJSON(w, http.StatusOK, resp)
}

type taskSummary struct {
	ID          string `json:"id"`
	SatelliteID string `json:"satellite_id"`
	State       string `json:"state"`
	Bucket      string `json:"bucket"`
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	if s.deps.Tasks == nil {
		writeJSON(w, http.StatusOK, []taskSummary{})
		return
	}

	ids := s.deps.Tasks.All()
	summaries := make([]taskSummary, 0, len(ids))
	for _, id := range ids {
		t, err := s.deps.Tasks.Get(id)
		if err != nil {
			continue
		}
		bucket, _ := s.deps.Tasks.BucketOf(id)
		summaries = append(summaries, taskSummary{
			ID:          t.ID,
			SatelliteID: t.SatelliteID,
			State:       string(t.State()),
			Bucket:      string(bucket),
		})
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleManagers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Managers == nil {
		writeJSON(w, http.StatusOK, map[string]manager.Status{})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Managers.Status())
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
