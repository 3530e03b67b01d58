package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// EntrySessionsActive tracks the number of open order-entry sessions.
	EntrySessionsActive prometheus.Gauge
	// LedgerMutationsTotal counts ledger mutations by operation and outcome.
	LedgerMutationsTotal *prometheus.CounterVec
	// OrdersSubmittedTotal counts order submissions by flow and outcome.
	OrdersSubmittedTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks webhook notification outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// ReceiptTasksTotal counts receipt tasks enqueued for the worker.
	ReceiptTasksTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		EntrySessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "entry_sessions_active",
			Help:      "Number of open order-entry sessions.",
		})
		LedgerMutationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_mutations_total",
			Help:      "Count of ledger mutations by operation and result.",
		}, []string{"op", "result"})
		OrdersSubmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_submitted_total",
			Help:      "Count of order submissions by flow and result.",
		}, []string{"flow", "result"})
		WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook notification outcomes.",
		}, []string{"result"})
		ReceiptTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_tasks_total",
			Help:      "Count of receipt tasks enqueued by result.",
		}, []string{"result"})

		mustRegisterCollector(reg, EntrySessionsActive, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Gauge); ok {
				EntrySessionsActive = v
			}
		})
		mustRegisterCollector(reg, LedgerMutationsTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				LedgerMutationsTotal = v
			}
		})
		mustRegisterCollector(reg, OrdersSubmittedTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				OrdersSubmittedTotal = v
			}
		})
		mustRegisterCollector(reg, WebhookDeliveriesTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				WebhookDeliveriesTotal = v
			}
		})
		mustRegisterCollector(reg, ReceiptTasksTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				ReceiptTasksTotal = v
			}
		})
	})
}
