// Package metrics holds the prometheus collectors for realm lifecycle
// transitions and outbound gateway calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeRejected = "rejected"
)

// Metrics tracks transition outcomes, gateway latency and notification delivery.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Transitions         *prometheus.CounterVec
	GatewayCallDuration *prometheus.HistogramVec
	Notifications       *prometheus.CounterVec
}

// New registers all collectors with reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_transitions_total",
			Help: "Realm lifecycle transitions by intent and outcome",
		}, []string{"intent", "outcome"}),
		GatewayCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "steward_gateway_call_duration_seconds",
			Help:    "Duration of calls to external gateways",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"gateway", "operation"}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_notifications_total",
			Help: "Lifecycle notifications by kind and outcome",
		}, []string{"kind", "outcome"}),
	}
}

// IncTransition records the outcome of one lifecycle intent.
func (m *Metrics) IncTransition(intent, outcome string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(intent, outcome).Inc()
}

// ObserveGatewayCall records the duration of a gateway call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveGatewayCall(gateway, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.GatewayCallDuration.WithLabelValues(gateway, operation).Observe(time.Since(start).Seconds())
}

// IncNotification records a notification dispatch or delivery.
func (m *Metrics) IncNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind, outcome).Inc()
}
