package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		upstreamRequestsTotal,
		upstreamRequestSeconds,
		tokenRefreshesTotal,
		loginsTotal,
		registrationsTotal,
	)
}

var (
	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Requests sent to the upstream API by endpoint and response status.",
		},
		[]string{"endpoint", "status"}, // status "network" when no response came back
	)

	upstreamRequestSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream API latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	tokenRefreshesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "token_refreshes_total",
			Help: "Silent access-token refreshes after a 401.",
		},
		[]string{"result"}, // ok | error
	)

	loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logins_total",
			Help: "Login attempts by outcome category.",
		},
		[]string{"result"}, // ok | bad_credentials | unverified_account | network | unknown
	)

	registrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registrations_total",
			Help: "Registration attempts.",
		},
		[]string{"result"},
	)
)

// ObserveUpstream records one upstream round trip. status 0 means transport failure.
func ObserveUpstream(endpoint string, status int, elapsed time.Duration) {
	s := "network"
	if status > 0 {
		s = strconv.Itoa(status)
	}
	upstreamRequestsTotal.WithLabelValues(endpoint, s).Inc()
	upstreamRequestSeconds.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func IncTokenRefresh(err error) {
	tokenRefreshesTotal.WithLabelValues(result(err)).Inc()
}

func IncLogin(category string) {
	loginsTotal.WithLabelValues(norm(category)).Inc()
}

func IncRegistration(err error) {
	registrationsTotal.WithLabelValues(result(err)).Inc()
}
