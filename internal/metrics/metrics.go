package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "milk"

// Delivery records aggregator activity: refresh outcomes and remote mutations.
type Delivery struct {
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	mutations       *prometheus.CounterVec
}

// NewDelivery registers the delivery metrics on reg. A nil registerer yields
// a Delivery whose methods are no-ops.
func NewDelivery(reg prometheus.Registerer) *Delivery {
	if reg == nil {
		return &Delivery{}
	}
	refreshes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_refresh_total",
		Help:      "Store refreshes by resulting connectivity state.",
	}, []string{"state"})
	refreshDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_refresh_duration_seconds",
		Help:      "Duration of the parallel customers/agents/assignments fetch.",
		Buckets:   prometheus.DefBuckets,
	})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assignment_mutations_total",
		Help:      "Assignment writes by operation and outcome.",
	}, []string{"op", "outcome"})
	reg.MustRegister(refreshes, refreshDuration, mutations)
	return &Delivery{
		refreshes:       refreshes,
		refreshDuration: refreshDuration,
		mutations:       mutations,
	}
}

// ObserveRefresh counts one refresh ending in state and records its duration.
func (d *Delivery) ObserveRefresh(state string, elapsed time.Duration) {
	if d == nil || d.refreshes == nil {
		return
	}
	d.refreshes.WithLabelValues(state).Inc()
	d.refreshDuration.Observe(elapsed.Seconds())
}

// IncMutation counts one assignment write.
func (d *Delivery) IncMutation(op string, err error) {
	if d == nil || d.mutations == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	d.mutations.WithLabelValues(op, outcome).Inc()
}

// HTTP records API request counts and latency per route.
type HTTP struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewHTTP registers the HTTP metrics on reg. A nil registerer yields no-ops.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	if reg == nil {
		return &HTTP{}
	}
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	reg.MustRegister(requests, duration)
	return &HTTP{requests: requests, duration: duration}
}

func (h *HTTP) Observe(method, route, status string, elapsed time.Duration) {
	if h == nil || h.requests == nil {
		return
	}
	h.requests.WithLabelValues(method, route, status).Inc()
	h.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
