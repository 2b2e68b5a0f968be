package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the breach detector.
type Metrics struct {
	SweepsTotal          prometheus.Counter
	CasesExamined        prometheus.Counter
	BreachesTotal        prometheus.Counter
	EscalationsTriggered prometheus.Counter
}

// New creates and registers all detector metrics.
func New() *Metrics {
	return &Metrics{
		SweepsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_sla_sweeps_total",
			Help: "Completed SLA sweep runs",
		}),
		CasesExamined: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_sla_cases_examined_total",
			Help: "Cases examined across all sweeps",
		}),
		BreachesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_sla_breaches_total",
			Help: "Cases observed past their resolution threshold",
		}),
		EscalationsTriggered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "caseflow_sla_escalations_triggered_total",
			Help: "Escalations raised by the breach detector",
		}),
	}
}

// ObserveSweep records one completed sweep.
func (m *Metrics) ObserveSweep(examined, breaches, escalations int) {
	m.SweepsTotal.Inc()
	m.CasesExamined.Add(float64(examined))
	m.BreachesTotal.Add(float64(breaches))
	m.EscalationsTriggered.Add(float64(escalations))
}
