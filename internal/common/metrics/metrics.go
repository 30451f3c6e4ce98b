// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job worker metrics.
var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// Workflow store metrics.
var (
	StoreCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_commands_total",
			Help: "Commands applied by the workflow store",
		},
		[]string{"command", "outcome"},
	)

	StaleCompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_stale_completions_total",
			Help: "Completions discarded because their session or attempt was superseded",
		},
		[]string{"command"},
	)

	AsyncOperationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "onboarding_async_operations_in_flight",
			Help: "Remote calls issued by the workflow store that have not completed",
		},
	)
)

// Remote service metrics, client and server side.
var (
	GatewayRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "onboarding_gateway_request_duration_seconds",
			Help: "Duration of remote service calls made by the gateway",
		},
		[]string{"operation", "outcome"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboarding_api_requests_total",
			Help: "HTTP requests served by the onboarding API",
		},
		[]string{"route", "status"},
	)
)
