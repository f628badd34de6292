// Package metrics exposes the coordinator's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the coordinator's Prometheus collectors. Constructing it
// against an injected registry keeps tests free of global-registration
// collisions.
type Metrics struct {
	WorkflowsCreated  *prometheus.CounterVec
	WorkflowsFinished *prometheus.CounterVec
	WorkflowDuration  *prometheus.HistogramVec
	StepDuration      *prometheus.HistogramVec
	StepRetries       *prometheus.CounterVec
	ExecutorFailures  *prometheus.CounterVec
	ActiveWorkflows   prometheus.Gauge
	QueuedWorkflows   prometheus.Gauge
}

// New registers the coordinator collectors on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		WorkflowsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduflow",
			Name:      "workflows_created_total",
			Help:      "Workflows created, by template.",
		}, []string{"template"}),

		WorkflowsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduflow",
			Name:      "workflows_finished_total",
			Help:      "Workflows reaching a terminal state, by template and status.",
		}, []string{"template", "status"}),

		WorkflowDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eduflow",
			Name:      "workflow_duration_seconds",
			Help:      "End-to-end workflow execution duration.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"template"}),

		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "eduflow",
			Name:      "step_duration_seconds",
			Help:      "Step execution duration, by executor.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"executor"}),

		StepRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduflow",
			Name:      "step_retries_total",
			Help:      "Step attempt retries, by executor.",
		}, []string{"executor"}),

		ExecutorFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "eduflow",
			Name:      "executor_failures_total",
			Help:      "Failed executor invocations, by executor and failure kind.",
		}, []string{"executor", "kind"}),

		ActiveWorkflows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "eduflow",
			Name:      "active_workflows",
			Help:      "Workflows currently executing.",
		}),

		QueuedWorkflows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "eduflow",
			Name:      "queued_workflows",
			Help:      "Workflows waiting in the priority queue.",
		}),
	}
}

// NewNop returns metrics backed by a throwaway registry, for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
