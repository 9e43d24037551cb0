// Package metrics exposes Prometheus collectors for the interception
// pipeline. Collectors are registered on the default registry and served by
// the debug API's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// interceptionsTotal counts bodies that reached the interceptor, by format.
	interceptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_interceptions_total",
			Help: "Total number of request bodies handed to the interceptor",
		},
		[]string{"format"},
	)

	// mutationsTotal counts bodies the interceptor reported as modified, by format.
	mutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_mutations_total",
			Help: "Total number of request bodies rewritten before send",
		},
		[]string{"format"},
	)

	// passthroughTotal counts bodies forwarded unmodified without reaching the
	// interceptor, by reason (invalid-json, unknown-format, missing-turns).
	passthroughTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolgate_passthrough_total",
			Help: "Total number of request bodies passed through unprocessed",
		},
		[]string{"reason"},
	)

	// correlationFallbackTotal counts Gemini requests processed with synthetic
	// identifiers because no correlation table was available.
	correlationFallbackTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "toolgate_correlation_fallback_total",
			Help: "Total number of Gemini requests that fell back to synthetic tool-call identifiers",
		},
	)

	// interceptDuration tracks end-to-end pipeline latency per request body.
	interceptDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "toolgate_intercept_duration_seconds",
			Help:    "Duration of pipeline processing per request body",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		interceptionsTotal,
		mutationsTotal,
		passthroughTotal,
		correlationFallbackTotal,
		interceptDuration,
	)
}

// RecordInterception notes a body reaching the interceptor.
func RecordInterception(format string) {
	interceptionsTotal.WithLabelValues(format).Inc()
}

// RecordMutation notes a body rewritten before send.
func RecordMutation(format string) {
	mutationsTotal.WithLabelValues(format).Inc()
}

// RecordPassthrough notes a body forwarded without processing.
func RecordPassthrough(reason string) {
	passthroughTotal.WithLabelValues(reason).Inc()
}

// RecordCorrelationFallback notes a Gemini request served with synthetic ids.
func RecordCorrelationFallback() {
	correlationFallbackTotal.Inc()
}

// ObserveDuration records one pipeline pass.
func ObserveDuration(d time.Duration) {
	interceptDuration.Observe(d.Seconds())
}
