package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDeliveryCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDelivery(reg)

	m.ObserveRefresh("connected", 20*time.Millisecond)
	m.ObserveRefresh("disconnected", time.Millisecond)
	m.ObserveRefresh("connected", time.Millisecond)
	m.IncMutation("toggle_delivered", nil)
	m.IncMutation("toggle_delivered", errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshes.WithLabelValues("connected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues("disconnected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("toggle_delivered", "failure")))
}

func TestNilDeliveryIsSafe(t *testing.T) {
	var m *Delivery
	m.ObserveRefresh("connected", time.Second)
	m.IncMutation("assign", nil)

	NewDelivery(nil).IncMutation("assign", nil)
}

func TestHTTPObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTP(reg)

	m.Observe("GET", "/v1/status", "200", 5*time.Millisecond)
	m.Observe("GET", "/v1/status", "200", 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/v1/status", "200")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	var nilHTTP *HTTP
	nilHTTP.Observe("GET", "/", "200", time.Second)
}
