package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// requestsTotal counts HTTP requests by method, route and status
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warren_http_requests_total",
		Help: "Total HTTP requests by method, route and status code",
	}, []string{"method", "route", "code"})

	// requestDuration tracks handler latency
	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "warren_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)
