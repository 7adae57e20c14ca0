package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "portal"

// Booking results recorded by ObserveBooking.
const (
	BookingAccepted    = "accepted"
	BookingUnavailable = "unavailable"
	BookingRejected    = "rejected"
	BookingError       = "error"
)

// Metrics holds the collectors exported on /metrics.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	bookings      *prometheus.CounterVec
	loginAttempts *prometheus.CounterVec
	phiAccess     *prometheus.CounterVec
}

// New registers the portal collectors on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		bookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "bookings_total",
				Help:      "Appointment booking attempts by result",
			},
			[]string{"result"},
		),
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Login attempts by status",
			},
			[]string{"status"},
		),
		phiAccess: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phi_access_total",
				Help:      "Requests touching patient data by role and resource",
			},
			[]string{"role", "resource", "action"},
		),
	}

	reg.MustRegister(m.httpRequests, m.httpDuration, m.bookings, m.loginAttempts, m.phiAccess)
	return m
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route, status string, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveBooking(result string) {
	m.bookings.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLogin(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	m.loginAttempts.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePHIAccess(role, resource, action string) {
	m.phiAccess.WithLabelValues(role, resource, action).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
