package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts loop outcomes. A nil *Metrics is valid and records nothing.
type Metrics struct {
	events         prometheus.Counter
	decodeFailures prometheus.Counter
	terminations   *prometheus.CounterVec
	state          prometheus.Gauge
}

// NewMetrics creates the loop collectors and registers them with reg when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextblock_stream_events_total",
			Help: "Decoded transactions handed to the sink",
		}),
		decodeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nextblock_stream_decode_failures_total",
			Help: "Envelopes discarded because their payload did not decode",
		}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nextblock_stream_terminations_total",
			Help: "Loop exits by reason",
		}, []string{"reason"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nextblock_stream_state",
			Help: "Loop state: 0 connecting, 1 streaming, 2 terminated",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.events, m.decodeFailures, m.terminations, m.state)
	}

	return m
}

func (m *Metrics) event() {
	if m != nil {
		m.events.Inc()
	}
}

func (m *Metrics) decodeFailure() {
	if m != nil {
		m.decodeFailures.Inc()
	}
}

func (m *Metrics) terminated(reason string) {
	if m != nil {
		m.terminations.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) setState(s State) {
	if m != nil {
		m.state.Set(float64(s))
	}
}
