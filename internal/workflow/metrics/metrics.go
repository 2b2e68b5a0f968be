package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the workflow engine.
type Metrics struct {
	TransitionsTotal *prometheus.CounterVec
	RejectionsTotal  *prometheus.CounterVec
	ConflictsTotal   prometheus.Counter
}

// New creates and registers all workflow metrics.
func New() *Metrics {
	return &Metrics{
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_transitions_total",
			Help: "Completed case status transitions by from/to status",
		}, []string{"from", "to"}),
		RejectionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "caseflow_transition_rejections_total",
			Help: "Rejected transition attempts by reason code",
		}, []string{"reason"}),
		ConflictsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_transition_conflicts_total",
			Help: "Transitions lost to a concurrent writer",
		}),
	}
}

// IncrementTransition records a completed transition.
func (m *Metrics) IncrementTransition(from, to string) {
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

// IncrementRejection records a rejected transition by reason code.
func (m *Metrics) IncrementRejection(reason string) {
	m.RejectionsTotal.WithLabelValues(reason).Inc()
}

// IncrementConflict records a concurrent-write race loss.
func (m *Metrics) IncrementConflict() {
	m.ConflictsTotal.Inc()
}
