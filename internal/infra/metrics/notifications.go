package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		adminNotificationsTotal,
		eventsPublishedTotal,
		jobRunsTotal,
	)
}

var (
	adminNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_notifications_total",
			Help: "Notifications sent to payment admins.",
		},
		[]string{"kind", "result"}, // kind: pending_payment | digest
	)

	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events published to the message bus.",
		},
		[]string{"routing_key", "result"},
	)

	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Scheduled job executions.",
		},
		[]string{"job", "result"},
	)
)

func IncAdminNotification(kind string, err error) {
	adminNotificationsTotal.WithLabelValues(norm(kind), result(err)).Inc()
}

func IncEventPublished(routingKey string, err error) {
	eventsPublishedTotal.WithLabelValues(routingKey, result(err)).Inc()
}

func IncJobRun(job string, err error) {
	jobRunsTotal.WithLabelValues(norm(job), result(err)).Inc()
}
