package stream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the counters of the streaming layer.
type Metrics struct {
	FramesDelivered prometheus.Counter
	PollsSkipped    prometheus.Counter
	SessionsActive  prometheus.Gauge
	Errors          prometheus.Counter
}

// NewMetrics creates the metrics and registers them with `reg`. A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_frames_delivered_total",
			Help: "Meter frames handed to subscribers.",
		}),
		PollsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_polls_skipped_total",
			Help: "Poll ticks skipped because the previous poll was still in flight.",
		}),
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "stream_sessions_active",
			Help: "Streams currently running.",
		}),
		Errors: factory.NewCounter(prometheus.CounterOpts{
			Name: "stream_errors_total",
			Help: "Streams ended by a failure.",
		}),
	}
}
