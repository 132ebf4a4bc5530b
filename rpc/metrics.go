package rpc

import "github.com/prometheus/client_golang/prometheus"

// metrics instruments one client. A nil receiver disables every
// method, so call sites never branch.
type metrics struct {
	calls         *prometheus.CounterVec
	notifications *prometheus.CounterVec
	activeSubs    prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigil",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "RPC calls by method and outcome.",
		}, []string{"method", "outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sigil",
			Subsystem: "rpc",
			Name:      "notifications_total",
			Help:      "Subscription notifications by method.",
		}, []string{"method"}),
		activeSubs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sigil",
			Subsystem: "rpc",
			Name:      "active_subscriptions",
			Help:      "Currently live subscriptions.",
		}),
	}
	reg.MustRegister(m.calls, m.notifications, m.activeSubs)
	return m
}

func (m *metrics) call(method, outcome string) {
	if m == nil {
		return
	}
	m.calls.WithLabelValues(method, outcome).Inc()
}

func (m *metrics) notification(method string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(method).Inc()
}

func (m *metrics) subscriptionOpened() {
	if m == nil {
		return
	}
	m.activeSubs.Inc()
}

func (m *metrics) subscriptionClosed() {
	if m == nil {
		return
	}
	m.activeSubs.Dec()
}
