package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics exposed by the CMS.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	StorageErrorsTotal  *prometheus.CounterVec
	SessionsIssuedTotal prometheus.Counter
	RateLimitRejections *prometheus.CounterVec
	UploadsTotal        *prometheus.CounterVec
	UploadedBytesTotal  prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates and registers all Prometheus metrics on a fresh
// registry, so tests can construct isolated instances.
func NewMetrics() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cms_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		StorageErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_storage_errors_total",
				Help: "Total number of storage operation failures",
			},
			[]string{"operation"},
		),
		SessionsIssuedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cms_sessions_issued_total",
				Help: "Total number of admin sessions issued",
			},
		),
		RateLimitRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_rate_limit_rejections_total",
				Help: "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cms_uploads_total",
				Help: "Image upload attempts by outcome",
			},
			[]string{"outcome"},
		),
		UploadedBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "cms_uploaded_bytes_total",
				Help: "Total decoded bytes accepted by the upload sink",
			},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.StorageErrorsTotal,
		m.SessionsIssuedTotal,
		m.RateLimitRejections,
		m.UploadsTotal,
		m.UploadedBytesTotal,
	)
	return m
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
