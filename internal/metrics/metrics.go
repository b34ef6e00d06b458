// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	SessionsStarted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modexam_sessions_started_total",
			Help: "Start requests, split by whether a new session was created or an unfinished one resumed",
		},
		[]string{"created"},
	)

	StepsAdvanced = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modexam_steps_advanced_total",
			Help: "Durable step completions by step kind",
		},
		[]string{"kind"},
	)

	PersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "modexam_persist_failures_total",
		Help: "Failed session persistence attempts",
	})

	CheckpointsApplied = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modexam_checkpoints_total",
			Help: "Checkpoint writes by outcome (applied, stale, failed)",
		},
		[]string{"outcome"},
	)

	ActiveEngines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "modexam_active_engines",
		Help: "Session engines currently attached to a WebSocket",
	})
)

var activeEngines atomic.Int64

// EngineAttached records an engine bound to a connection.
func EngineAttached() {
	ActiveEngines.Set(float64(activeEngines.Add(1)))
}

// EngineDetached records an engine released by its connection.
func EngineDetached() {
	ActiveEngines.Set(float64(activeEngines.Add(-1)))
}

// AttachedEngines returns the number of live engines in this process.
func AttachedEngines() int {
	return int(activeEngines.Load())
}

// Register adds all collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		RequestCounter,
		RequestDuration,
		SessionsStarted,
		StepsAdvanced,
		PersistFailures,
		CheckpointsApplied,
		ActiveEngines,
	)
}

// Middleware records request counts and latencies per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the default Prometheus gatherer.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
