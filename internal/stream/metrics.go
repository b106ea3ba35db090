package stream

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects per-source acquisition statistics. All methods are
// nil-safe so the registry can run without instrumentation in tests.
type Metrics struct {
	attemptsTotal  *prometheus.CounterVec
	framesTotal    *prometheus.CounterVec
	connected      *prometheus.GaugeVec
	attemptSeconds *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "stream",
				Name:      "attempts_total",
				Help:      "Connection attempts per source, variant and result.",
			},
			[]string{"source_id", "variant", "result"},
		),
		framesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "camstream",
				Subsystem: "stream",
				Name:      "frames_total",
				Help:      "Frames published per source.",
			},
			[]string{"source_id"},
		),
		connected: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "camstream",
				Subsystem: "stream",
				Name:      "connected",
				Help:      "Whether the source is currently connected (1) or not (0).",
			},
			[]string{"source_id"},
		),
		attemptSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "camstream",
				Subsystem: "stream",
				Name:      "attempt_duration_seconds",
				Help:      "Duration of connection attempts.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"source_id", "variant"},
		),
	}

	if reg != nil {
		reg.MustRegister(m.attemptsTotal, m.framesTotal, m.connected, m.attemptSeconds)
	}
	return m
}

func (m *Metrics) ObserveAttempt(sourceID string, variant VariantKind, result string, dur time.Duration) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(sourceID, string(variant), result).Inc()
	m.attemptSeconds.WithLabelValues(sourceID, string(variant)).Observe(dur.Seconds())
}

func (m *Metrics) IncFrames(sourceID string) {
	if m == nil {
		return
	}
	m.framesTotal.WithLabelValues(sourceID).Inc()
}

func (m *Metrics) SetConnected(sourceID string, connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1.0
	}
	m.connected.WithLabelValues(sourceID).Set(v)
}

// ForgetSource drops all series for a removed source so its stale state
// does not linger on the /metrics endpoint.
func (m *Metrics) ForgetSource(sourceID string) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{"source_id": sourceID}
	m.attemptsTotal.DeletePartialMatch(labels)
	m.framesTotal.DeletePartialMatch(labels)
	m.connected.DeletePartialMatch(labels)
	m.attemptSeconds.DeletePartialMatch(labels)
}
