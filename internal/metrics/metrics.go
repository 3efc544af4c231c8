package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"plexpresence/internal/presence"
)

const namespace = "plexpresence"

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	polls           *prometheus.CounterVec
	pollDuration    prometheus.Histogram
	presenceUpdates *prometheus.CounterVec
	connected       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		polls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "polls_total",
			Help:      "Session polls by outcome",
		}, []string{"result"}),
		pollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "poll_duration_seconds",
			Help:      "Time spent fetching sessions from the media server",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		presenceUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_updates_total",
			Help:      "Presence update and clear calls by outcome",
		}, []string{"op", "result"}),
		connected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "presence_connected",
			Help:      "1 while a presence connection is open",
		}),
	}
}

func (m *Metrics) ObservePoll(result string, took time.Duration) {
	if m == nil {
		return
	}
	m.polls.WithLabelValues(result).Inc()
	m.pollDuration.Observe(took.Seconds())
}

func (m *Metrics) ObservePresence(op string, err error, connected bool) {
	if m == nil {
		return
	}
	m.presenceUpdates.WithLabelValues(op, PresenceResult(err)).Inc()
	if connected {
		m.connected.Set(1)
	} else {
		m.connected.Set(0)
	}
}

// PresenceResult maps a presence error to a low-cardinality label.
func PresenceResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, presence.ErrTooSoon):
		return "too_soon"
	case errors.Is(err, presence.ErrBackoff):
		return "backoff"
	case errors.Is(err, presence.ErrTransportSend):
		return "send_failed"
	default:
		return "error"
	}
}
