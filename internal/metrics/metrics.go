// Package metrics exposes Prometheus counters for the booking client.
package metrics

import (
	"time"

	"github.com/Domenick1991/galaxium/internal/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "galaxium"

type Metrics struct {
	Intents         *prometheus.CounterVec
	Transitions     *prometheus.CounterVec
	RemoteCalls     *prometheus.CounterVec
	RemoteDuration  *prometheus.HistogramVec
	EventsPublished *prometheus.CounterVec
	Notifications   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.DefaultRegisterer
// to serve them from promhttp.Handler.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Intents handled by the booking orchestrator by result.",
		}, []string{"intent", "result"}),

		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Workflow states entered, per flow.",
		}, []string{"flow", "state"}),

		RemoteCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_requests_total",
			Help:      "Requests made to the inventory service by operation and outcome.",
		}, []string{"op", "outcome"}),

		RemoteDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "inventory_request_duration_seconds",
			Help:      "Latency of inventory service requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "booking_events_total",
			Help:      "Booking events handled by type and result.",
		}, []string{"type", "result"}),

		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Passenger notices rendered by the worker.",
		}, []string{"type"}),
	}
}

func (m *Metrics) ObserveIntent(intent, result string) {
	m.Intents.WithLabelValues(intent, result).Inc()
}

func (m *Metrics) ObserveState(flow, state string) {
	m.Transitions.WithLabelValues(flow, state).Inc()
}

// ObserveRemoteCall records one inventory request. An empty kind means success.
func (m *Metrics) ObserveRemoteCall(op string, kind apperr.Kind, elapsed time.Duration) {
	outcome := "ok"
	if kind != "" {
		outcome = string(kind)
	}
	m.RemoteCalls.WithLabelValues(op, outcome).Inc()
	m.RemoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveEvent(eventType string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) ObserveNotification(eventType string) {
	m.Notifications.WithLabelValues(eventType).Inc()
}
