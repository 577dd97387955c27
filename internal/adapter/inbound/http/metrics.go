package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics of the webhook server.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Dispatches      *prometheus.CounterVec
	ResponseBytes   prometheus.Histogram
	RateLimited     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assistant_alexa",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "outcome"}, // outcome=ok/rejected/error
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "assistant_alexa",
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
			[]string{"method"},
		),
		Dispatches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "assistant_alexa",
				Name:      "dispatches_total",
				Help:      "Webhook requests by matched platform and result",
			},
			[]string{"platform", "result"}, // result=ok/no_platform/error
		),
		ResponseBytes: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "assistant_alexa",
				Name:      "response_bytes",
				Help:      "Size of platform response bodies",
				Buckets:   prometheus.ExponentialBuckets(64, 4, 6), // 64B to 64KB
			},
		),
		RateLimited: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "assistant_alexa",
				Name:      "rate_limited_total",
				Help:      "Total webhook requests rejected by the rate limiter",
			},
		),
	}
}
