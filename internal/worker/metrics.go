package worker

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeProcessed   = "processed"
	outcomeSoftFailure = "soft_failure"
	outcomeSkipped     = "skipped"
	outcomeRequeued    = "requeued"
	outcomeDiscarded   = "discarded"
)

// Metrics counts handled commands by disposition outcome.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

// NewMetrics builds the outcome counters and, when reg is non-nil, registers
// them.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paperflow",
			Subsystem: "worker",
			Name:      "commands_total",
			Help:      "Number of handled commands by disposition outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.outcomes)
	}
	return m
}
