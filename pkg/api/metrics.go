package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	LookupsTotal        *prometheus.CounterVec
	ImageServesTotal    *prometheus.CounterVec
)

// InitMetrics registers the daemon's collectors. Call once at startup,
// before the router handles traffic.
func InitMetrics() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rjmetad_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rjmetad_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	LookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rjmetad_lookups_total",
			Help: "Total number of metadata lookups by outcome.",
		},
		[]string{"outcome"},
	)

	ImageServesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rjmetad_image_serves_total",
			Help: "Total number of images served by outcome.",
		},
		[]string{"outcome"},
	)
}
