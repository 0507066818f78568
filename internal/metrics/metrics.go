// Package metrics holds the Prometheus collectors for chat turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeCanceled = "canceled"
)

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	turns    *prometheus.CounterVec
	deltas   prometheus.Counter
	duration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "turns_total",
			Help:      "Chat turns by kind, framing and outcome.",
		}, []string{"kind", "framing", "outcome"}),
		deltas: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chat",
			Name:      "stream_deltas_total",
			Help:      "Provider deltas forwarded to clients.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Wall time of a chat turn including persistence.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"kind"}),
	}
	reg.MustRegister(m.turns, m.deltas, m.duration)
	return m
}

func (m *Metrics) TurnFinished(kind, framing, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(kind, framing, outcome).Inc()
	m.duration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) Delta() {
	if m == nil {
		return
	}
	m.deltas.Inc()
}
