// Package metrics exposes prometheus instrumentation for the entitlement
// subsystem: decision outcomes, ledger increments, sweep runs, HTTP latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAllowed = "allowed"
	OutcomeWarning = "warning"
	OutcomeDenied  = "denied"
)

type Metrics struct {
	decisions       *prometheus.CounterVec
	increments      *prometheus.CounterVec
	sweepRuns       *prometheus.CounterVec
	sweepDuration   *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storyloom_entitlement_decisions_total",
			Help: "Entitlement check outcomes by resource.",
		}, []string{"resource", "outcome"}),
		increments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storyloom_usage_increments_total",
			Help: "Usage ledger increments by resource.",
		}, []string{"resource"}),
		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storyloom_sweep_runs_total",
			Help: "Sweep job executions by job and result.",
		}, []string{"job", "result"}),
		sweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyloom_sweep_duration_seconds",
			Help:    "Sweep job duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storyloom_rate_limited_total",
			Help: "Requests denied by the per-org rate limiter.",
		}, []string{"endpoint"}),
		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "storyloom_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}

func (m *Metrics) RecordDecision(resource, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(resource, outcome).Inc()
}

func (m *Metrics) RecordIncrement(resource string) {
	if m == nil {
		return
	}
	m.increments.WithLabelValues(resource).Inc()
}

func (m *Metrics) RecordSweep(job, result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(job, result).Inc()
	m.sweepDuration.WithLabelValues(job).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRateLimited(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(endpoint).Inc()
}

// GinMiddleware records request latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
