package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the Prometheus collectors exposed on /metrics.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration    *prometheus.HistogramVec
	ExtractionDuration     *prometheus.HistogramVec
	ExtractionFailures     *prometheus.CounterVec
	QueueDepth             *prometheus.GaugeVec
	AuthRoleFallbackTotal  prometheus.Counter
	InvoiceGeneratedTotal  *prometheus.CounterVec
	RateLimitRejectedTotal *prometheus.CounterVec
}

// NewMetrics registers and returns the platform's Prometheus collectors
// against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by route, method, and status class.",
		}, []string{"route", "method", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ExtractionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Order extraction latency by extraction type.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
		}, []string{"extraction_type"}),
		ExtractionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "extraction_failures_total",
			Help: "Extraction jobs that exhausted retries or were malformed.",
		}, []string{"reason"}),
		QueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Pending jobs per queue kind.",
		}, []string{"kind"}),
		AuthRoleFallbackTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "auth_role_fallback_total",
			Help: "Times the hardcoded permission fallback was used because role lookup failed.",
		}),
		InvoiceGeneratedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoice_generated_total",
			Help: "Invoices generated, labeled by organization tier.",
		}, []string{"tier"}),
		RateLimitRejectedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_limit_rejected_total",
			Help: "Requests rejected by the rate limiter, by tier.",
		}, []string{"tier"}),
	}
}
