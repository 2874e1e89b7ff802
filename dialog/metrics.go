package dialog

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the Prometheus collectors the engine updates during turn
// processing. All metrics are registered under the "dialog" namespace so
// they compose cleanly alongside a host application's own collectors.
type Metrics struct {
	TurnsTotal         *prometheus.CounterVec
	TurnDuration       prometheus.Histogram
	SubgraphSteps      prometheus.Histogram
	CommandOutcomes    *prometheus.CounterVec
	CheckpointErrors   prometheus.Counter
	ActiveFlowDepth    prometheus.Gauge
}

// NewMetrics constructs and registers a Metrics bundle against reg. Passing
// a fresh prometheus.NewRegistry() keeps these collectors isolated from the
// global default registry, which matters when multiple engine instances
// run in the same process (e.g. tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialog",
			Name:      "turns_total",
			Help:      "Total turns processed, labeled by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dialog",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock duration of process_turn calls.",
			Buckets:   prometheus.DefBuckets,
		}),
		SubgraphSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "dialog",
			Name:      "subgraph_steps",
			Help:      "Number of subgraph steps executed per subgraph run.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		CommandOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dialog",
			Name:      "command_outcomes_total",
			Help:      "Command executions, labeled by command kind and result.",
		}, []string{"kind", "result"}),
		CheckpointErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dialog",
			Name:      "checkpoint_errors_total",
			Help:      "Checkpoint load/save failures.",
		}),
		ActiveFlowDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "dialog",
			Name:      "active_flow_stack_depth",
			Help:      "Flow stack depth observed at the end of the most recent turn.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.TurnsTotal, m.TurnDuration, m.SubgraphSteps, m.CommandOutcomes, m.CheckpointErrors, m.ActiveFlowDepth)
	}
	return m
}

// ObserveCommandLog updates CommandOutcomes from a turn's command log
// entries, in one batch after the turn completes.
func (m *Metrics) ObserveCommandLog(entries []CommandLogEntry) {
	if m == nil {
		return
	}
	for _, e := range entries {
		m.CommandOutcomes.WithLabelValues(string(e.Kind), e.Result).Inc()
	}
}
