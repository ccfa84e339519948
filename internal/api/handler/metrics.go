package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmerrifield20/ThreatSentinel/internal/threat"
)

var (
	sentinelRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_requests_total",
		Help: "Total HTTP requests by method, path, and response status.",
	}, []string{"method", "path", "status"})

	sentinelRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sentinel_request_duration_seconds",
		Help:    "Request duration in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	sentinelEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_events_classified_total",
		Help: "Total events classified.",
	})

	sentinelDetectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_detections_total",
		Help: "Total threat detections by category and severity.",
	}, []string{"category", "severity"})

	sentinelTrackedSources = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_tracked_sources",
		Help: "Number of sources held by the frequency tracker.",
	})

	sentinelProbesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_port_probes_total",
		Help: "Total TCP port probes by result.",
	}, []string{"result"})

	sentinelReputationLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_reputation_lookups_total",
		Help: "Reputation lookups by outcome (hit, success, failure, rejected).",
	}, []string{"outcome"})

	sentinelCircuitState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sentinel_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
	}, []string{"name"})

	sentinelReputationCacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sentinel_reputation_cache_entries",
		Help: "Cached reputation verdicts after the last eviction sweep.",
	})

	sentinelJournalEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sentinel_journal_entries_total",
		Help: "Total security journal entries appended.",
	})

	sentinelAlertDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sentinel_alert_deliveries_total",
		Help: "Total alert webhook deliveries by success status.",
	}, []string{"status"})
)

// PrometheusMiddleware returns a Gin middleware that records per-request metrics.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		sentinelRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		sentinelRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler returns a Gin handler that serves Prometheus metrics.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// RecordDetections counts a classified batch.
func RecordDetections(results []threat.DetectionResult, stats threat.Stats) {
	sentinelEventsTotal.Add(float64(len(results)))
	for _, r := range results {
		if r.IsThreat {
			sentinelDetectionsTotal.WithLabelValues(r.Category, string(r.Severity)).Inc()
		}
	}
	sentinelTrackedSources.Set(float64(stats.TrackedSources))
}

// RecordProbe records a single port probe.
func RecordProbe(open bool) {
	if open {
		sentinelProbesTotal.WithLabelValues("open").Inc()
	} else {
		sentinelProbesTotal.WithLabelValues("closed").Inc()
	}
}

// RecordReputationLookup records a reputation lookup outcome.
func RecordReputationLookup(outcome string) {
	sentinelReputationLookups.WithLabelValues(outcome).Inc()
}

// RecordCircuitState records a circuit breaker transition.
func RecordCircuitState(name, _, to string) {
	var v float64
	switch to {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	sentinelCircuitState.WithLabelValues(name).Set(v)
}

// RecordReputationCacheSize records the reputation cache size.
func RecordReputationCacheSize(n int) {
	sentinelReputationCacheEntries.Set(float64(n))
}

// RecordJournalAppend records a security journal append.
func RecordJournalAppend() {
	sentinelJournalEntries.Inc()
}

// RecordAlertDelivery records an alert webhook delivery attempt.
func RecordAlertDelivery(success bool) {
	if success {
		sentinelAlertDeliveries.WithLabelValues("success").Inc()
	} else {
		sentinelAlertDeliveries.WithLabelValues("failure").Inc()
	}
}
