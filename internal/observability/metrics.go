package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BookingsSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ecocommute", Name: "bookings_submitted_total", Help: "Total booking requests accepted into pending state"})
	BookingsApproved  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ecocommute", Name: "bookings_approved_total", Help: "Total bookings approved by the decision service"})
	BookingsDeclined  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ecocommute", Name: "bookings_declined_total", Help: "Total bookings declined by the decision service"})
	SeatsReserved     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ecocommute", Name: "seats_reserved_total", Help: "Total successful seat decrements"})

	NotificationsActive = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "ecocommute", Name: "notifications_active", Help: "Notifications currently in the live set"})
	EmailFailures       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ecocommute", Name: "email_failures_total", Help: "Total failed email dispatch attempts"})
	GeocodeErrors       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "ecocommute", Name: "geocode_errors_total", Help: "Total geocoding calls that fell back"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "ecocommute", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ecocommute",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
