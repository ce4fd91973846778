// Package metrics provides Prometheus metrics for the inquiry service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ThreadsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inquiry_threads_created_total",
			Help: "Total number of inquiry threads created",
		},
	)

	ThreadsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inquiry_threads_deleted_total",
			Help: "Total number of inquiry threads deleted",
		},
	)

	MessagesAppended = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiry_messages_appended_total",
			Help: "Total number of messages appended, by sender role",
		},
		[]string{"role"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiry_status_transitions_total",
			Help: "Thread status changes",
		},
		[]string{"from", "to"},
	)

	PermissionDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiry_permission_denied_total",
			Help: "Operations rejected by access control",
		},
		[]string{"operation"},
	)

	LiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inquiry_live_subscriptions",
			Help: "Number of active live view subscriptions",
		},
	)

	LiveRefreshErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inquiry_live_refresh_errors_total",
			Help: "Snapshot refreshes that failed and kept the previous snapshot",
		},
	)

	FeedOverflows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inquiry_feed_overflows_total",
			Help: "Changes dropped for a slow subscriber and replaced by a resync",
		},
	)

	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inquiry_notifications_failed_total",
			Help: "Best-effort notification emails that failed to send",
		},
	)
)

// RecordTransition counts a status change; unchanged statuses are ignored.
func RecordTransition(from, to string) {
	if from == to {
		return
	}
	StatusTransitions.WithLabelValues(from, to).Inc()
}
