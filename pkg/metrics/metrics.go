// Package metrics registers the Prometheus collectors for chat, tool, LLM,
// retrieval index and HTTP instrumentation. Collectors are package-level and
// registered once via promauto; the HTTP layer exposes them at /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

var (
	chatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestor_chat_requests_total",
		Help: "Total chat generation requests",
	}, []string{"outcome"})

	agentTurnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nestor_agent_turns_total",
		Help: "Total agent loop turns",
	})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestor_tool_calls_total",
		Help: "Total tool executions",
	}, []string{"tool", "outcome"})

	toolDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nestor_tool_duration_seconds",
		Help:    "Tool execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"tool"})

	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestor_llm_requests_total",
		Help: "Total LLM requests",
	}, []string{"provider", "outcome"})

	llmTokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestor_llm_tokens_total",
		Help: "Total tokens exchanged with LLM providers",
	}, []string{"provider", "direction"})

	indexBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestor_index_builds_total",
		Help: "Total retrieval index builds",
	}, []string{"outcome"})

	indexBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "nestor_index_build_duration_seconds",
		Help:    "Retrieval index build duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	indexDocuments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nestor_index_documents",
		Help: "Documents in the resident retrieval index",
	})

	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nestor_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nestor_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

// RecordChatRequest counts one GenerateResponse call.
func RecordChatRequest(outcome string) {
	chatRequestsTotal.WithLabelValues(outcome).Inc()
}

// RecordAgentTurn counts one agent loop iteration.
func RecordAgentTurn() {
	agentTurnsTotal.Inc()
}

// RecordToolCall counts one tool execution with its duration.
func RecordToolCall(tool, outcome string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
	toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordLLMRequest counts one provider request.
func RecordLLMRequest(provider, outcome string) {
	llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordLLMTokens counts tokens by direction.
func RecordLLMTokens(provider string, prompt, completion int) {
	if prompt > 0 {
		llmTokensTotal.WithLabelValues(provider, "input").Add(float64(prompt))
	}
	if completion > 0 {
		llmTokensTotal.WithLabelValues(provider, "output").Add(float64(completion))
	}
}

// RecordIndexBuild counts one index build and updates the resident document
// gauge on success.
func RecordIndexBuild(outcome string, duration time.Duration, documents int) {
	indexBuildsTotal.WithLabelValues(outcome).Inc()
	indexBuildDuration.Observe(duration.Seconds())
	if outcome == OutcomeSuccess {
		indexDocuments.Set(float64(documents))
	}
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
