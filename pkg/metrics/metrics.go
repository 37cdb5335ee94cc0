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

	// LLMCompletionDuration tracks completion exchange duration.
	LLMCompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_completion_duration_seconds",
			Help:    "LLM completion exchange duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// LLMCostUSDTotal tracks the estimated spend in USD.
	LLMCostUSDTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "llm_cost_usd_total",
			Help: "Estimated LLM spend in USD",
		},
	)

	// ResponseParseFailures tracks model outputs that did not decode.
	ResponseParseFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "response_parse_failures_total",
			Help: "Model responses that failed structured decoding",
		},
	)

	// TurnsTotal tracks appended turns by outcome (ok, parse_error, transport_error).
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "turns_total",
			Help: "Total conversation turns appended",
		},
		[]string{"outcome"},
	)

	// ConversationsStarted tracks conversations started.
	ConversationsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "conversations_started_total",
			Help: "Total conversations started",
		},
	)

	// ConversationsCompleted tracks conversations ended by the model, by emotional direction.
	ConversationsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversations_completed_total",
			Help: "Total conversations completed",
		},
		[]string{"direction"},
	)

	// ConversationSaves tracks persistence attempts by status.
	ConversationSaves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversation_saves_total",
			Help: "Conversation save attempts",
		},
		[]string{"status"},
	)

	// ActiveSessions tracks live sessions held by the API.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Number of live conversation sessions",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordCompletion records metrics for one completion exchange.
func RecordCompletion(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMCompletionDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}

// RecordCost adds an estimated cost delta. Negative deltas are ignored.
func RecordCost(usd float64) {
	if usd > 0 {
		LLMCostUSDTotal.Add(usd)
	}
}

// RecordSave records the outcome of a conversation save.
func RecordSave(status string) {
	ConversationSaves.WithLabelValues(status).Inc()
}
