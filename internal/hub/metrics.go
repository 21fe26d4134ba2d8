package hub

import (
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	subscribers prometheus.Gauge
	published   prometheus.Counter
	dropped     prometheus.Counter
}

func newMetrics(stream string, reg prometheus.Registerer) *metrics {
	labels := prometheus.Labels{"stream": stream}

	m := &metrics{
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "paperflow",
			Subsystem:   "stream",
			Name:        "subscribers",
			Help:        "Number of currently registered stream subscribers.",
			ConstLabels: labels,
		}),
		published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paperflow",
			Subsystem:   "stream",
			Name:        "published_total",
			Help:        "Number of events fanned out to subscribers.",
			ConstLabels: labels,
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "paperflow",
			Subsystem:   "stream",
			Name:        "dropped_total",
			Help:        "Number of buffered events evicted from slow subscribers.",
			ConstLabels: labels,
		}),
	}

	if reg != nil {
		reg.MustRegister(m.subscribers, m.published, m.dropped)
	}
	return m
}
