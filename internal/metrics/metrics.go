package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Snapshot outcomes
const (
	OutcomeComputed   = "computed"
	OutcomeScopeError = "scope_error"
	OutcomeOutOfScope = "out_of_scope"
	OutcomeDataAccess = "data_access_error"
)

// Metrics provides observability for the reconciliation engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	// Aggregation latencies by source
	AggregationLatency *prometheus.HistogramVec

	// Snapshot requests by outcome
	SnapshotOutcome *prometheus.CounterVec

	// Full snapshot computation latency
	SnapshotLatency prometheus.Histogram

	// Label override fetches that degraded to the default vocabulary
	LabelFallbacks prometheus.Counter
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AggregationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventfees_aggregation_duration_seconds",
			Help:    "Duration of a single fee aggregation by source",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"source"}), // participants, team_entries, institution_events, fund_transfers

		SnapshotOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventfees_snapshot_outcomes_total",
			Help: "Snapshot requests by outcome",
		}, []string{"outcome"}),

		SnapshotLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eventfees_snapshot_duration_seconds",
			Help:    "Duration of a full snapshot computation including all aggregations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		LabelFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "eventfees_label_override_fallbacks_total",
			Help: "Label override fetches that failed and fell back to defaults",
		}),
	}
}

func (m *Metrics) ObserveAggregation(source string, d time.Duration) {
	if m != nil {
		m.AggregationLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.SnapshotOutcome.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) ObserveSnapshot(d time.Duration) {
	if m != nil {
		m.SnapshotLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementLabelFallback() {
	if m != nil {
		m.LabelFallbacks.Inc()
	}
}
