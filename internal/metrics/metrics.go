// Package metrics holds the process-wide Prometheus registry and the
// counters/histograms shared across stage handlers, the LLM router, and
// the HTTP endpoints, grounded on the WorkerPoolMetrics pattern in
// vasic-digital-SuperAgent's internal/background/metrics.go.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "idp"

var (
	// StageRecords counts records a stage handler was invoked on, by
	// stage name and outcome ("ok", "error").
	StageRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "stage_records_total",
		Help:      "Records dispatched to a stage handler, by stage and outcome.",
	}, []string{"stage", "outcome"})

	// StageDuration measures Handle latency per stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "stage_duration_seconds",
		Help:      "Stage handler Handle() duration in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"stage"})

	// RouterDecisions counts LLM Router backend-selection outcomes by
	// the chosen backend and the strategy that picked it
	// ("explicit", "heuristic", "predictive", "default").
	RouterDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "decisions_total",
		Help:      "LLM Router backend selections, by backend and strategy.",
	}, []string{"backend", "strategy"})

	// EndpointHealth reports the current health-checked-selector view of
	// each registered LLM backend endpoint (1 healthy, 0 unhealthy).
	EndpointHealth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "invoke",
		Name:      "endpoint_healthy",
		Help:      "Health-checked-selector view of an LLM backend endpoint.",
	}, []string{"backend", "endpoint"})

	// CollectionsReaped counts ephemeral vector-store collections dropped
	// by a reaper sweep past their TTL.
	CollectionsReaped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reaper",
		Name:      "collections_reaped_total",
		Help:      "Ephemeral collections dropped past their TTL.",
	})
)
