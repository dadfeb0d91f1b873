package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors reporting orchestrator activity.
// A nil *Metrics is valid and records nothing, so tests and callers that do
// not care about metrics can pass nil.
type Metrics struct {
	completionDuration prometheus.Histogram
	toolInvocations    *prometheus.CounterVec
	runTurns           prometheus.Histogram
	runsTotal          *prometheus.CounterVec
}

// MustNewMetrics constructs a Metrics instance registered with reg. A nil
// reg falls back to the global registry. Registration errors panic, which
// mirrors promauto semantics and surfaces duplicate-name bugs early.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		completionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "briefops",
			Subsystem: "orchestrator",
			Name:      "model_call_duration_seconds",
			Help:      "Duration of language-model completion calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		toolInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefops",
			Subsystem: "orchestrator",
			Name:      "tool_invocations_total",
			Help:      "Tool invocations by capability name and outcome.",
		}, []string{"tool", "outcome"}),
		runTurns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "briefops",
			Subsystem: "orchestrator",
			Name:      "run_turns",
			Help:      "Model turns used per orchestration run.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 21, 50, 100},
		}),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "briefops",
			Subsystem: "orchestrator",
			Name:      "runs_total",
			Help:      "Orchestration runs by terminal state.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.completionDuration, m.toolInvocations, m.runTurns, m.runsTotal)
	return m
}

func (m *Metrics) ObserveCompletion(d time.Duration) {
	if m == nil {
		return
	}
	m.completionDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveInvocation(tool, outcome string) {
	if m == nil {
		return
	}
	m.toolInvocations.WithLabelValues(tool, outcome).Inc()
}

func (m *Metrics) ObserveRun(turns int, outcome string) {
	if m == nil {
		return
	}
	m.runTurns.Observe(float64(turns))
	m.runsTotal.WithLabelValues(outcome).Inc()
}
