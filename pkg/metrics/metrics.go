// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Step execution outcomes.
const (
	OutcomeSuccess    = "success"
	OutcomeTransient  = "transient"
	OutcomeTerminal   = "terminal"
	OutcomeValidation = "validation"
)

var (
	StepExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_step_executions_total",
			Help: "Total number of step executions by service and outcome.",
		},
		[]string{"service", "outcome"},
	)

	StepAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_step_attempts_total",
			Help: "Total number of adapter invocation attempts, retries included.",
		},
		[]string{"service"},
	)

	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinkflow_step_duration_seconds",
			Help:    "Step execution duration across all attempts, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service"},
	)

	WorkflowTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_workflow_transitions_total",
			Help: "Total number of workflow status transitions by target status.",
		},
		[]string{"status"},
	)

	EventsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_events_ingested_total",
			Help: "Total number of ingested events by outcome.",
		},
		[]string{"outcome"},
	)

	EventsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_events_processed_total",
			Help: "Total number of dispatched events by processing status.",
		},
		[]string{"status"},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_webhook_deliveries_total",
			Help: "Total number of webhook deliveries by final status.",
		},
		[]string{"status"},
	)

	SyncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_sync_operations_total",
			Help: "Total number of sync operations by type and final status.",
		},
		[]string{"type", "status"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinkflow_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinkflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(StepExecutionsTotal)
	prometheus.MustRegister(StepAttemptsTotal)
	prometheus.MustRegister(StepDuration)
	prometheus.MustRegister(WorkflowTransitionsTotal)
	prometheus.MustRegister(EventsIngestedTotal)
	prometheus.MustRegister(EventsProcessedTotal)
	prometheus.MustRegister(WebhookDeliveriesTotal)
	prometheus.MustRegister(SyncOperationsTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
}

// Handler returns the Prometheus metrics handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
