package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// OrderMetrics covers checkout outcomes, stock contention and status changes.
type OrderMetrics struct {
	checkouts   *prometheus.CounterVec
	casRetries  *prometheus.CounterVec
	transitions *prometheus.CounterVec
}

func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	factory := promauto.With(reg)
	return &OrderMetrics{
		checkouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_outcomes_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		casRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_cas_retries_total",
			Help:      "Conditional stock updates that lost a race and retried.",
		}, []string{"operation"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Applied order status transitions.",
		}, []string{"from", "to"}),
	}
}

// IncCheckout counts a checkout outcome (started, placed, failed, expired, rejected).
func (m *OrderMetrics) IncCheckout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncCASRetry counts one lost conditional write.
func (m *OrderMetrics) IncCASRetry(operation string) {
	if m == nil {
		return
	}
	m.casRetries.WithLabelValues(normalizeLabel(operation)).Inc()
}

func (m *OrderMetrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}
