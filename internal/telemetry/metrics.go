package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebhookRecords counts individual transaction records by pipeline outcome
// (processed, skipped, error).
var WebhookRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reconciler_webhook_records_total",
	Help: "Bank transaction records handled, by outcome",
}, []string{"outcome"})

// OrderTransitions counts successful order state transitions.
var OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reconciler_order_transitions_total",
	Help: "Order state transitions, by target state and source",
}, []string{"to_state", "source"})

// ReviewItemsFiled counts rows added to the manual review queue.
var ReviewItemsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reconciler_review_items_total",
	Help: "Manual review items filed, by reason",
}, []string{"reason"})
