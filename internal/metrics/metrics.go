// Package metrics registers the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "challenge"

var (
	// Submissions counts submit attempts by variant and outcome.
	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Submission attempts by variant and result.",
	}, []string{"variant", "result"})

	// GradingPaths counts which scoring path produced each result.
	GradingPaths = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "grading_path_total",
		Help:      "Graded answers by scoring path.",
	}, []string{"path"})

	// EvaluatorDuration observes external evaluator latency.
	EvaluatorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "evaluator_duration_seconds",
		Help:      "Latency of answer evaluator calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	}, []string{"outcome"})

	// Transitions counts lifecycle transitions by variant and target status.
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Lifecycle transitions applied.",
	}, []string{"variant", "status"})

	// TickFailures counts entities that failed to transition during a tick.
	TickFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tick_failures_total",
		Help:      "Per-entity failures during TickAll.",
	}, []string{"variant"})
)
