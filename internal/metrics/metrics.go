package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline outcomes
	AlertsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsalerts_alerts_processed_total",
			Help: "Total number of alerts processed, by status and reason",
		},
		[]string{"status", "reason"},
	)

	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsalerts_dispatch_records_total",
			Help: "Total number of dispatch records written, by reason",
		},
		[]string{"reason"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsalerts_stage_duration_seconds",
			Help:    "Duration of one pipeline stage in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	// Outbound collaborator calls
	CollaboratorRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsalerts_collaborator_requests_total",
			Help: "Total number of requests to external collaborators",
		},
		[]string{"collaborator", "status"},
	)

	// Scheduler runs
	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "newsalerts_run_duration_seconds",
			Help:    "Duration of a full pass over active alerts",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	RunsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "newsalerts_runs_rejected_total",
			Help: "Run requests ignored because a run was already in progress",
		},
	)

	RunInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "newsalerts_run_in_progress",
			Help: "1 while a run is executing",
		},
	)

	// NATS
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsalerts_events_published_total",
			Help: "Total number of NATS messages published",
		},
		[]string{"subject", "status"},
	)

	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsalerts_events_received_total",
			Help: "Total number of NATS messages received",
		},
		[]string{"subject", "status"},
	)

	// Control API
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "newsalerts_http_requests_total",
			Help: "Total number of control API requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "newsalerts_http_request_duration_seconds",
			Help:    "Control API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ApplicationInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "newsalerts_application_info",
			Help: "Application information",
		},
		[]string{"version", "environment"},
	)
)

// Init publishes static build labels.
func Init(version, environment string) {
	ApplicationInfo.WithLabelValues(version, environment).Set(1)
}

// ObserveStage records the time elapsed since started for a pipeline stage.
func ObserveStage(stage string, started time.Time) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}

// ObserveCall counts one collaborator request as ok or error.
func ObserveCall(collaborator string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	CollaboratorRequests.WithLabelValues(collaborator, status).Inc()
}
