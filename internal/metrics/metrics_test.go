package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncTransition("approve", OutcomeSuccess)
	m.IncTransition("approve", OutcomeSuccess)
	m.IncTransition("approve", OutcomeFailure)
	m.IncNotification("create", OutcomeSuccess)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("approve", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("approve", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("create", OutcomeSuccess)))
}

func TestMetrics_GatewayHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveGatewayCall("vcs", "open_pr", time.Now().Add(-time.Second))

	assert.Equal(t, 1, testutil.CollectAndCount(m.GatewayCallDuration))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncTransition("create", OutcomeSuccess)
		m.ObserveGatewayCall("identity", "grant", time.Now())
		m.IncNotification("delete", OutcomeFailure)
	})
}
