package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Notification outcomes as recorded per channel.
const (
	OutcomeDelivered = "delivered"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeDuplicate = "duplicate"
)

// DispatchMetrics tracks the notification worker pool.
type DispatchMetrics struct {
	sent       *prometheus.CounterVec
	rejected   prometheus.Counter
	queueDepth prometheus.Gauge
	duration   *prometheus.HistogramVec
}

func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	m := &DispatchMetrics{
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Notification attempts by channel and outcome.",
		}, []string{"channel", "outcome"}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "rejected_total",
			Help:      "Jobs rejected because the dispatch queue was full.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_depth",
			Help:      "Jobs waiting for a dispatch worker.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time spent delivering one notification.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
	}
	reg.MustRegister(m.sent, m.rejected, m.queueDepth, m.duration)
	return m
}

func (m *DispatchMetrics) ObserveSend(channel, outcome string, elapsed time.Duration) {
	if m == nil || m.sent == nil {
		return
	}
	channel = normalizeLabel(channel)
	m.sent.WithLabelValues(channel, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(channel).Observe(elapsed.Seconds())
}

func (m *DispatchMetrics) IncRejected() {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.Inc()
}

func (m *DispatchMetrics) SetQueueDepth(depth int) {
	if m == nil || m.queueDepth == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}
