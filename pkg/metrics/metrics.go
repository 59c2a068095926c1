// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ExtractionsTotal tracks transcript extraction attempts by outcome.
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extractions_total",
			Help: "Total transcript extraction attempts",
		},
		[]string{"provider", "status"},
	)

	// ExtractionDuration tracks extraction round-trip latency.
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Transcript extraction duration",
			Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// SessionsActive tracks in-flight qualification sessions.
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "qualification_sessions_active",
			Help: "Number of non-terminal qualification sessions",
		},
	)

	// SessionTransitionsTotal tracks state machine transitions.
	SessionTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_transitions_total",
			Help: "Total session state transitions",
		},
		[]string{"to_state"},
	)

	// CompletenessScore observes MEDDIC completeness at scoring time.
	CompletenessScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "meddic_completeness_score",
			Help:    "MEDDIC completeness score distribution",
			Buckets: []float64{0, 17, 33, 50, 67, 83, 100},
		},
	)

	// CRMCallsTotal tracks CRM API calls by object and outcome.
	CRMCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_calls_total",
			Help: "Total CRM API calls",
		},
		[]string{"object", "operation", "status"},
	)

	// CommitsTotal tracks record writer commits by outcome.
	CommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_commits_total",
			Help: "Total record writer commits",
		},
		[]string{"status"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordExtraction records metrics for one extraction attempt.
func RecordExtraction(provider, status string, duration float64) {
	ExtractionsTotal.WithLabelValues(provider, status).Inc()
	ExtractionDuration.WithLabelValues(provider, status).Observe(duration)
}

// RecordLLMTokens records token usage for an LLM call.
func RecordLLMTokens(model string, tokensIn, tokensOut int) {
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordTransition records a session state transition.
func RecordTransition(toState string) {
	SessionTransitionsTotal.WithLabelValues(toState).Inc()
}

// RecordCRMCall records one CRM API call.
func RecordCRMCall(object, operation, status string) {
	CRMCallsTotal.WithLabelValues(object, operation, status).Inc()
}
