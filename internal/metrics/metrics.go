// Package metrics holds the marketplace's business counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_cart_operations_total",
		Help: "Cart mutations by operation",
	}, []string{"operation"})

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_orders_created_total",
		Help: "Orders assembled from a cart snapshot",
	})

	PaymentsSettled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_payments_total",
		Help: "Settlement attempts by outcome (completed, declined, error, reconciled)",
	}, []string{"outcome"})

	// OrphanedPayments counts completed payments whose order could not be
	// marked paid in the same request.
	OrphanedPayments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketplace_orphaned_payments_total",
		Help: "Completed payments left with a pending order",
	})

	OrdersReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_orders_reconciled_total",
		Help: "Pending orders moved to paid from an existing completed payment, by trigger",
	}, []string{"trigger"})

	CheckoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_checkout_transitions_total",
		Help: "Checkout session status changes by target status",
	}, []string{"status"})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketplace_settlement_duration_seconds",
		Help:    "Time spent settling one payment, provider call included",
		Buckets: prometheus.DefBuckets,
	})
)
