package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	anchorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanchor_anchors_total",
		Help: "Total anchoring requests by result (submitted, error).",
	}, []string{"result"})

	verificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanchor_verifications_total",
		Help: "Total verification requests by outcome (found, not_found, error).",
	}, []string{"outcome"})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanchor_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "xanchor_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ledgerProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "xanchor_ledger_probes_total",
		Help: "Total ledger node health probes by result.",
	}, []string{"result"})
)

// RecordLedgerProbe counts a health probe outcome; wired into the health
// checker from main.
func RecordLedgerProbe(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	ledgerProbesTotal.WithLabelValues(result).Inc()
}

// PrometheusMiddleware returns a gin middleware that records per-request
// metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		requestsTotal.WithLabelValues(method, path, status).Inc()
		requestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// MetricsEndpoint returns the Prometheus scrape handler wrapped for gin.
func MetricsEndpoint() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
