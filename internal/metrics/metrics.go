package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersCreated   prometheus.Counter
	OrdersCancelled prometheus.Counter
	Settlements     *prometheus.CounterVec // result: settled|idempotent|rejected|mismatch|error
	WebhookEvents   *prometheus.CounterVec // result: settled|ignored|idempotent|invalid_signature|error
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce", Name: "orders_created_total",
			Help: "Orders created through checkout.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "commerce", Name: "orders_cancelled_total",
			Help: "User-initiated order cancellations.",
		}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce", Name: "settlements_total",
			Help: "Synchronous payment verifications by result.",
		}, []string{"result"}),
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "commerce", Name: "webhook_events_total",
			Help: "Inbound provider webhook events by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.OrdersCreated, m.OrdersCancelled, m.Settlements, m.WebhookEvents)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
