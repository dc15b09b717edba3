// Package metrics implements Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QueueDepth tracks the current number of pending items in a named queue
	// (imaging, processing, upload).
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citrascope_queue_depth",
			Help: "Current number of items waiting in a work queue",
		},
		[]string{"queue"},
	)

	// QueueInFlight tracks items currently being worked by a queue.
	QueueInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citrascope_queue_in_flight",
			Help: "Current number of items being processed by a work queue",
		},
		[]string{"queue"},
	)

	// QueueRetriesTotal mirrors a queue's cumulative retry count, sampled from
	// queue.Stats rather than incremented directly (the queue package already
	// owns the authoritative counter).
	QueueRetriesTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citrascope_queue_retries_total",
			Help: "Cumulative number of retry attempts issued across a work queue's lifetime",
		},
		[]string{"queue"},
	)

	// QueuePermanentFailuresTotal mirrors a queue's cumulative permanent-failure count.
	QueuePermanentFailuresTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citrascope_queue_permanent_failures_total",
			Help: "Cumulative number of items that failed permanently after exhausting retries",
		},
		[]string{"queue"},
	)

	// QueueSucceededTotal mirrors a queue's cumulative success count.
	QueueSucceededTotal = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citrascope_queue_succeeded_total",
			Help: "Cumulative number of items a work queue completed successfully",
		},
		[]string{"queue"},
	)

	// SafetySeverity reports the monitor's current worst safety severity
	// (0=Safe, 1=Warn, 2=QueueStop, 3=Emergency), mirroring internal/safety.Severity.
	SafetySeverity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citrascope_safety_severity",
			Help: "Current worst safety check severity (0=Safe, 1=Warn, 2=QueueStop, 3=Emergency)",
		},
	)

	// SafetyCheckSeverity reports each individual safety check's last severity.
	SafetyCheckSeverity = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citrascope_safety_check_severity",
			Help: "Last observed severity for an individual safety check (0=Safe, 1=Warn, 2=QueueStop, 3=Emergency)",
		},
		[]string{"check"},
	)

	// CableWrapCumulativeDeg tracks the mount's cumulative azimuth travel
	// relative to its cable-wrap reference point.
	CableWrapCumulativeDeg = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "citrascope_cable_wrap_cumulative_degrees",
			Help: "Cumulative signed azimuth travel since the last cable-wrap unwind, in degrees",
		},
	)

	// TaskStageCount tracks how many tasks currently occupy each pipeline stage bucket.
	TaskStageCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "citrascope_task_stage_count",
			Help: "Current number of tasks occupying each pipeline stage bucket",
		},
		[]string{"stage"},
	)

	// TasksCompletedTotal counts tasks that reached a terminal state.
	TasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citrascope_tasks_completed_total",
			Help: "Total number of tasks that reached a terminal state",
		},
		[]string{"outcome"},
	)

	// SchedulerRunDurationSeconds measures how long each scheduling pass takes.
	SchedulerRunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "citrascope_scheduler_run_duration_seconds",
			Help:    "Duration of each task-scheduling pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DispatchServerRequestDurationSeconds measures latency of calls to the
	// remote dispatch server, by endpoint.
	DispatchServerRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "citrascope_dispatch_server_request_duration_seconds",
			Help:    "Latency of HTTP calls to the remote dispatch server",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// DispatchServerErrorsTotal counts failed dispatch-server calls by endpoint.
	DispatchServerErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citrascope_dispatch_server_errors_total",
			Help: "Total number of failed HTTP calls to the remote dispatch server",
		},
		[]string{"endpoint"},
	)
)

// SeverityValue mirrors internal/safety.Severity as a numeric gauge value,
// since that package's ordering is itself significant (higher means worse)
// but Prometheus gauges only hold float64.
const (
	SeverityValueSafe      = 0
	SeverityValueWarn      = 1
	SeverityValueQueueStop = 2
	SeverityValueEmergency = 3
)
