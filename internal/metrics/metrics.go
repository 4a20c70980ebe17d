package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics.
var (
	JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "executor",
		Name:      "jobs_submitted_total",
		Help:      "Jobs submitted to the background executor, by priority.",
	}, []string{"priority"})

	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "executor",
		Name:      "jobs_completed_total",
		Help:      "Jobs finished by the background executor, by terminal state.",
	}, []string{"state"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gradeflow",
		Subsystem: "executor",
		Name:      "queue_depth",
		Help:      "Current number of queued jobs.",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gradeflow",
		Subsystem: "pipeline",
		Name:      "stage_duration_seconds",
		Help:      "Wall time per pipeline stage.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stage"})
)

// Coordinator metrics.
var (
	TimeoutAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "coordinator",
		Name:      "timeout_adjustments_total",
		Help:      "Timeout adjustments by key and direction.",
	}, []string{"key", "direction"})

	ExternalCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "coordinator",
		Name:      "external_calls_total",
		Help:      "External calls issued under coordinator control.",
	}, []string{"key", "outcome"})
)

// Extraction metrics.
var (
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "extract",
		Name:      "cache_lookups_total",
		Help:      "Extraction cache lookups by outcome.",
	}, []string{"outcome"})

	ExtractionAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "extract",
		Name:      "attempts_total",
		Help:      "Extraction attempts by method and outcome.",
	}, []string{"method", "outcome"})
)

// Recovery metrics.
var (
	HandledErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gradeflow",
		Subsystem: "recovery",
		Name:      "handled_errors_total",
		Help:      "Errors routed through the recovery service, by category and action.",
	}, []string{"category", "action"})
)
