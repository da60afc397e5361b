// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package observability wires structured tracing and Prometheus metrics
// into the gateway's request paths: every LLM call, RAG operation, tool
// invocation, agent step, and HTTP request opens a span and records a
// metric, grouped by subsystem (llm, rag, agent, session, http).
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the metrics subsystem.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

// SetDefaults fills in the namespace used to prefix every metric name.
func (c *MetricsConfig) SetDefaults() {
	if c.Namespace == "" {
		c.Namespace = "docgateway"
	}
}

// Metrics holds the gateway's Prometheus collectors, grouped by subsystem.
// A nil *Metrics is valid and every Record* method becomes a no-op, so
// callers never need to guard on whether metrics are enabled.
type Metrics struct {
	config   *MetricsConfig
	registry *prometheus.Registry

	// agent
	agentCalls        *prometheus.CounterVec
	agentCallDuration *prometheus.HistogramVec
	agentErrors       *prometheus.CounterVec
	agentStepsTotal   *prometheus.HistogramVec

	// llm
	llmCalls        *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec
	llmTokensInput  *prometheus.CounterVec
	llmTokensOutput *prometheus.CounterVec
	llmErrors       *prometheus.CounterVec

	// tool (exercised by the agent loop's tool calls)
	toolCalls        *prometheus.CounterVec
	toolCallDuration *prometheus.HistogramVec
	toolErrors       *prometheus.CounterVec

	// session
	sessionsCreated    *prometheus.CounterVec
	sessionsActive     prometheus.Gauge
	sessionEventsTotal *prometheus.CounterVec

	// http
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	// rag
	ragDocsIndexed    *prometheus.CounterVec
	ragDocsErrors     *prometheus.CounterVec
	ragIndexDuration  *prometheus.HistogramVec
	ragSearches       *prometheus.CounterVec
	ragSearchDuration *prometheus.HistogramVec
	ragSearchResults  *prometheus.HistogramVec
}

// NewMetrics builds the metrics registry. Returns (nil, nil) when disabled.
func NewMetrics(cfg *MetricsConfig) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initAgentMetrics()
	m.initLLMMetrics()
	m.initToolMetrics()
	m.initSessionMetrics()
	m.initHTTPMetrics()
	m.initRAGMetrics()

	return m, nil
}

func (m *Metrics) initAgentMetrics() {
	m.agentCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "agent", Name: "calls_total",
		Help: "Total number of agent run() invocations",
	}, []string{"tool_used"})

	m.agentCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "agent", Name: "call_duration_seconds",
		Help: "Agent run() duration in seconds", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{})

	m.agentErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "agent", Name: "errors_total",
		Help: "Total number of agent errors by kind",
	}, []string{"error_kind"})

	m.agentStepsTotal = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "agent", Name: "iterations",
		Help: "Number of ReAct iterations consumed per run", Buckets: prometheus.LinearBuckets(1, 1, 10),
	}, []string{"capped"})

	m.registry.MustRegister(m.agentCalls, m.agentCallDuration, m.agentErrors, m.agentStepsTotal)
}

func (m *Metrics) initLLMMetrics() {
	m.llmCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "calls_total",
		Help: "Total number of LLM runtime calls",
	}, []string{"operation", "model", "outcome"})

	m.llmCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "call_duration_seconds",
		Help: "LLM runtime call duration in seconds", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14),
	}, []string{"operation", "model"})

	m.llmTokensInput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_input_total",
		Help: "Estimated input tokens sent to the LLM runtime",
	}, []string{"model"})

	m.llmTokensOutput = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "tokens_output_total",
		Help: "Estimated output tokens received from the LLM runtime",
	}, []string{"model"})

	m.llmErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "llm", Name: "errors_total",
		Help: "Total number of LLM runtime errors by kind",
	}, []string{"operation", "error_kind"})

	m.registry.MustRegister(m.llmCalls, m.llmCallDuration, m.llmTokensInput, m.llmTokensOutput, m.llmErrors)
}

func (m *Metrics) initToolMetrics() {
	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations from the agent loop",
	}, []string{"tool_name"})

	m.toolCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "call_duration_seconds",
		Help: "Tool execution duration in seconds", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
	}, []string{"tool_name"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool errors",
	}, []string{"tool_name"})

	m.registry.MustRegister(m.toolCalls, m.toolCallDuration, m.toolErrors)
}

func (m *Metrics) initSessionMetrics() {
	m.sessionsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "created_total",
		Help: "Total number of WebSocket sessions created",
	}, []string{})

	m.sessionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "active",
		Help: "Number of currently connected WebSocket sessions",
	})

	m.sessionEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "session", Name: "events_total",
		Help: "Total number of session events emitted, by type",
	}, []string{"event_type"})

	m.registry.MustRegister(m.sessionsCreated, m.sessionsActive, m.sessionEventsTotal)
}

func (m *Metrics) initHTTPMetrics() {
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "requests_total",
		Help: "Total number of admin HTTP requests",
	}, []string{"method", "route", "status"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "http", Name: "request_duration_seconds",
		Help: "Admin HTTP request duration in seconds", Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(m.httpRequests, m.httpDuration)
}

func (m *Metrics) initRAGMetrics() {
	m.ragDocsIndexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "rag", Name: "chunks_indexed_total",
		Help: "Total number of chunks added to a RAG backend's index",
	}, []string{"backend"})

	m.ragDocsErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "rag", Name: "ingest_errors_total",
		Help: "Total number of ingestion failures by backend",
	}, []string{"backend"})

	m.ragIndexDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "rag", Name: "ingest_duration_seconds",
		Help: "Ingestion duration in seconds", Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"backend"})

	m.ragSearches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace, Subsystem: "rag", Name: "searches_total",
		Help: "Total number of RAG context-build retrievals",
	}, []string{"backend"})

	m.ragSearchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "rag", Name: "search_duration_seconds",
		Help: "RAG retrieval duration in seconds", Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	}, []string{"backend"})

	m.ragSearchResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace, Subsystem: "rag", Name: "search_results_count",
		Help: "Number of chunks returned per retrieval", Buckets: prometheus.LinearBuckets(0, 1, 10),
	}, []string{"backend"})

	m.registry.MustRegister(m.ragDocsIndexed, m.ragDocsErrors, m.ragIndexDuration,
		m.ragSearches, m.ragSearchDuration, m.ragSearchResults)
}

// RecordAgentRun records one agent.run() invocation.
func (m *Metrics) RecordAgentRun(usedTool bool, duration time.Duration, iterations int, capped bool) {
	if m == nil {
		return
	}
	m.agentCalls.WithLabelValues(boolLabel(usedTool)).Inc()
	m.agentCallDuration.WithLabelValues().Observe(duration.Seconds())
	m.agentStepsTotal.WithLabelValues(boolLabel(capped)).Observe(float64(iterations))
}

// RecordAgentError records an agent error by kind (e.g. "unparseable").
func (m *Metrics) RecordAgentError(errorKind string) {
	if m == nil {
		return
	}
	m.agentErrors.WithLabelValues(errorKind).Inc()
}

// RecordLLMCall records an LLM runtime call (operation is "generate" or "embed").
func (m *Metrics) RecordLLMCall(operation, model, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(operation, model, outcome).Inc()
	m.llmCallDuration.WithLabelValues(operation, model).Observe(duration.Seconds())
}

// RecordLLMTokens records estimated token throughput for a generate call.
func (m *Metrics) RecordLLMTokens(model string, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	m.llmTokensInput.WithLabelValues(model).Add(float64(inputTokens))
	m.llmTokensOutput.WithLabelValues(model).Add(float64(outputTokens))
}

// RecordLLMError records an LLM runtime error by operation and kind.
func (m *Metrics) RecordLLMError(operation, errorKind string) {
	if m == nil {
		return
	}
	m.llmErrors.WithLabelValues(operation, errorKind).Inc()
}

// RecordToolCall records a tool invocation from the agent loop.
func (m *Metrics) RecordToolCall(toolName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(toolName).Inc()
	m.toolCallDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// RecordToolError records a tool execution error.
func (m *Metrics) RecordToolError(toolName string) {
	if m == nil {
		return
	}
	m.toolErrors.WithLabelValues(toolName).Inc()
}

// RecordSessionCreated records a new WebSocket session and adjusts the
// active-session gauge.
func (m *Metrics) RecordSessionCreated() {
	if m == nil {
		return
	}
	m.sessionsCreated.WithLabelValues().Inc()
	m.sessionsActive.Inc()
}

// RecordSessionClosed decrements the active-session gauge.
func (m *Metrics) RecordSessionClosed() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

// RecordSessionEvent records an emitted session event by type (user, ai,
// typing, system, error).
func (m *Metrics) RecordSessionEvent(eventType string) {
	if m == nil {
		return
	}
	m.sessionEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordHTTPRequest records an admin HTTP request, keyed by chi's matched
// route pattern rather than the raw path, so dynamic segments don't
// explode cardinality.
func (m *Metrics) RecordHTTPRequest(method, routePattern string, statusCode int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, routePattern, statusCodeLabel(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, routePattern).Observe(duration.Seconds())
}

func statusCodeLabel(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// RecordRAGIngest records a chunk-ingestion operation against a backend.
func (m *Metrics) RecordRAGIngest(backend string, chunkCount int, duration time.Duration, err bool) {
	if m == nil {
		return
	}
	if err {
		m.ragDocsErrors.WithLabelValues(backend).Inc()
		return
	}
	m.ragDocsIndexed.WithLabelValues(backend).Add(float64(chunkCount))
	m.ragIndexDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordRAGSearch records a context-build retrieval against a backend.
func (m *Metrics) RecordRAGSearch(backend string, duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.ragSearches.WithLabelValues(backend).Inc()
	m.ragSearchDuration.WithLabelValues(backend).Observe(duration.Seconds())
	m.ragSearchResults.WithLabelValues(backend).Observe(float64(resultCount))
}

// Handler returns the HTTP handler serving /metrics. A disabled Metrics
// responds 503 so operators notice metrics were never enabled.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
