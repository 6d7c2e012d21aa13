package browser

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exports session manager counters to Prometheus.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	Launches       *prometheus.CounterVec
	Commands       *prometheus.CounterVec
	CommandSeconds *prometheus.HistogramVec
	Events         *prometheus.CounterVec
	DroppedEvents  prometheus.Counter
	Evictions      prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "chromectl",
			Name:      "sessions_active",
			Help:      "Number of browser sessions in the registry.",
		}),
		Launches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chromectl",
			Name:      "launches_total",
			Help:      "Browser launches by outcome.",
		}, []string{"outcome"}),
		Commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chromectl",
			Name:      "commands_total",
			Help:      "Session commands by operation and outcome.",
		}, []string{"op", "outcome"}),
		CommandSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "chromectl",
			Name:      "command_duration_seconds",
			Help:      "Session command latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"op"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chromectl",
			Name:      "pump_events_total",
			Help:      "Protocol events drained by session pumps.",
		}, []string{"type"}),
		DroppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chromectl",
			Name:      "pump_events_dropped_total",
			Help:      "Events not delivered to slow subscribers.",
		}),
		Evictions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chromectl",
			Name:      "sessions_evicted_total",
			Help:      "Sessions removed because their browser went away.",
		}),
	}
}

func (m *Metrics) recordCommand(op string, err error, seconds float64) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(op, kindLabel(err)).Inc()
	m.CommandSeconds.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) recordLaunch(err error) {
	if m == nil {
		return
	}
	m.Launches.WithLabelValues(kindLabel(err)).Inc()
}

func (m *Metrics) sessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
}

func (m *Metrics) sessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
}

func (m *Metrics) recordEvent(t EventType) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(string(t)).Inc()
}

func (m *Metrics) recordDroppedEvent() {
	if m == nil {
		return
	}
	m.DroppedEvents.Inc()
}

func (m *Metrics) recordEviction() {
	if m == nil {
		return
	}
	m.Evictions.Inc()
}
