package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rehabflow",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rehabflow",
			Name:      "booking_transitions_total",
			Help:      "Booking lifecycle transitions by kind.",
		},
		[]string{"kind"},
	)

	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rehabflow",
			Name:      "notifications_total",
			Help:      "Notification attempts by kind and outcome.",
		},
		[]string{"kind", "outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, transitions, notifications)
	})
}

// IncHTTP increments the request counter for an endpoint/status pair.
func IncHTTP(endpoint, status string) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
}

// IncTransition increments the lifecycle transition counter.
func IncTransition(kind string) {
	transitions.WithLabelValues(kind).Inc()
}

// IncNotification increments the notification counter; outcome is "sent" or
// the failure kind (AUTH, TRANSIENT, INVALID_RECIPIENT, UNKNOWN).
func IncNotification(kind, outcome string) {
	notifications.WithLabelValues(kind, outcome).Inc()
}
