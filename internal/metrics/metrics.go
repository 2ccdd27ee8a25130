package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Classification Prometheus metrics.
var (
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishlens",
			Name:      "fetch_total",
			Help:      "Content fetch attempts by strategy and outcome",
		},
		[]string{"strategy", "outcome"}, // outcome: document, gated, unavailable, blocked
	)

	ScorerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishlens",
			Name:      "scorer_failures_total",
			Help:      "Sub-scorer failures that triggered the degradation policy",
		},
		[]string{"source", "provider"},
	)

	SchemaMismatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishlens",
			Name:      "schema_mismatch_total",
			Help:      "Feature names missing from or dropped by the model schema",
		},
		[]string{"kind", "feature"}, // kind: missing, dropped
	)

	VerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishlens",
			Name:      "verdicts_total",
			Help:      "Verdicts produced by label and fusion mode",
		},
		[]string{"label", "mode"},
	)

	PipelineFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "phishlens",
			Name:      "pipeline_failures_total",
			Help:      "Requests that ended without a verdict",
		},
		[]string{"reason"},
	)

	ClassifyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "phishlens",
			Name:      "classify_duration_seconds",
			Help:      "End-to-end classification latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"mode"},
	)
)

var registerOnce sync.Once

// Register registers phishlens metrics with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(FetchTotal)
		prometheus.MustRegister(ScorerFailuresTotal)
		prometheus.MustRegister(SchemaMismatchTotal)
		prometheus.MustRegister(VerdictsTotal)
		prometheus.MustRegister(PipelineFailuresTotal)
		prometheus.MustRegister(ClassifyDuration)
	})
}
