package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type httpMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	rateLimited prometheus.Counter
}

// newHTTPMetrics builds a registry private to one server.
func newHTTPMetrics() *httpMetrics {
	m := &httpMetrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatewaybench_api_requests_total",
				Help: "Number of API requests by method, route and status code.",
			},
			[]string{"method", "route", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gatewaybench_api_request_duration_seconds",
				Help:    "API request latency by method and route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatewaybench_api_rate_limited_total",
			Help: "Number of requests rejected by the per-client rate limit.",
		}),
	}

	m.registry.MustRegister(
		m.requests,
		m.duration,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}
