package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handyhub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handyhub",
			Name:      "booking_transitions_total",
			Help:      "Accepted booking status transitions by target status.",
		},
		[]string{"status"},
	)

	otpEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "handyhub",
			Name:      "otp_events_total",
			Help:      "OTP issue/verify outcomes.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingTransitions, otpEvents)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncTransition counts an accepted transition into the given status.
func IncTransition(status string) {
	bookingTransitions.WithLabelValues(status).Inc()
}

// IncOTP counts an OTP flow outcome: issued, verified, mismatch, expired,
// no_challenge, throttled, rejected, send_failed.
func IncOTP(result string) {
	otpEvents.WithLabelValues(result).Inc()
}
