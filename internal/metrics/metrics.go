package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Store metrics
	ActionsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convosync_actions_dispatched_total",
			Help: "Actions committed to the store",
		},
		[]string{"kind"},
	)

	// Event stream metrics
	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convosync_events_handled_total",
			Help: "Remote events translated by the orchestrator",
		},
		[]string{"kind"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convosync_events_dropped_total",
			Help: "Malformed or stale remote events discarded",
		},
	)

	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convosync_fetch_failures_total",
			Help: "Supplementary fetch failures",
		},
		[]string{"fetch"}, // "participants", "messages", "unread", "receipts"
	)

	// Session metrics
	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convosync_reconnects_total",
			Help: "Sessions entering the reconnecting state",
		},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "convosync_token_refreshes_total",
			Help: "Token refresh attempts on live sessions",
		},
		[]string{"outcome"}, // "installed" or "unavailable"
	)

	// Receipt metrics
	ReceiptPages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "convosync_receipt_pages_total",
			Help: "Delivery receipt pages fetched",
		},
	)
)
