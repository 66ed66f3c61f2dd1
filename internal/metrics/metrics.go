// Package metrics exposes prometheus instruments for the ledger hot paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

type Metrics struct {
	quotaDecisions     *prometheus.CounterVec
	paymentCallbacks   *prometheus.CounterVec
	reconcileReplays   *prometheus.CounterVec
	ordersCreated      prometheus.Counter
	subscriptionsSwept prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		quotaDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspira",
			Subsystem: "quota",
			Name:      "decisions_total",
			Help:      "Quota admit/deny decisions by metering kind.",
		}, []string{"kind", "allowed"}),
		paymentCallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspira",
			Subsystem: "payment",
			Name:      "callbacks_total",
			Help:      "Payment callback deliveries by outcome.",
		}, []string{"outcome"}),
		reconcileReplays: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "inspira",
			Subsystem: "reconcile",
			Name:      "replays_total",
			Help:      "Reconciliation replays of unprovisioned orders.",
		}, []string{"outcome"}),
		ordersCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "inspira",
			Subsystem: "payment",
			Name:      "orders_created_total",
			Help:      "Payment orders created.",
		}),
		subscriptionsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "inspira",
			Subsystem: "subscription",
			Name:      "expired_total",
			Help:      "Subscriptions expired by the sweep.",
		}),
	}
}

func (m *Metrics) RecordQuotaDecision(kind string, allowed bool) {
	if m == nil {
		return
	}
	value := "false"
	if allowed {
		value = "true"
	}
	m.quotaDecisions.WithLabelValues(kind, value).Inc()
}

func (m *Metrics) RecordPaymentCallback(outcome string) {
	if m == nil {
		return
	}
	m.paymentCallbacks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordReconcileReplay(outcome string) {
	if m == nil {
		return
	}
	m.reconcileReplays.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordOrderCreated() {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
}

func (m *Metrics) RecordSubscriptionsExpired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.subscriptionsSwept.Add(float64(count))
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
