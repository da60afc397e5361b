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

// Package server exposes the gateway's admin HTTP surface: health,
// model catalog/switch, RAG stats/ingestion, agent query/reset, and a
// Prometheus scrape endpoint. Routing is go-chi/chi, and every request
// is wrapped in an OpenTelemetry span plus a Prometheus metric labeled
// with chi's matched route pattern rather than the raw path, so
// "/api/rag/{backend}/stats" stays one series regardless of backend name.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kadirpekel/docgateway/pkg/agentloop"
	"github.com/kadirpekel/docgateway/pkg/apperrors"
	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/observability"
	"github.com/kadirpekel/docgateway/pkg/rag"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Config carries the admin-surface facts not already owned by another
// component: the static model catalog. The agent's name is not
// configurable; the route table hard-codes it as "agent1".
type Config struct {
	GenerationModelCatalog []string
}

// Server wires one LLM client, a named set of RAG backends, a unified
// ingestion path, one agent instance, and the metrics registry into a
// chi router.
type Server struct {
	router chi.Router
	cfg    Config

	llm      *llmclient.Client
	backends map[string]rag.Backend
	unified  *rag.Unified
	agent    *agentloop.Agent
	metrics  *observability.Metrics

	mu               sync.RWMutex
	currentGenModel  string
	currentEmbedModel string
}

func New(cfg Config, llm *llmclient.Client, backends map[string]rag.Backend, unified *rag.Unified, agent *agentloop.Agent, metrics *observability.Metrics, generationModel, embeddingModel string) *Server {
	s := &Server{
		cfg:               cfg,
		llm:               llm,
		backends:          backends,
		unified:           unified,
		agent:             agent,
		metrics:           metrics,
		currentGenModel:   generationModel,
		currentEmbedModel: embeddingModel,
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.observabilityMiddleware)

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.metrics.Handler().ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/models", s.handleListModels)
		r.Post("/models/load", s.handleLoadModel)

		r.Get("/system/current", s.handleSystemCurrent)
		r.Post("/system/switch", s.handleSystemSwitch)

		r.Get("/rag/stats", s.handleAggregateRAGStats)
		r.Get("/rag/{backend}/stats", s.handleBackendRAGStats)
		r.Post("/rag/ingest_file", s.handleUnifiedIngestFile)
		r.Post("/rag/ingest_text", s.handleUnifiedIngestText)
		r.Post("/rag/{backend}/ingest_file", s.handleBackendIngestFile)
		r.Post("/rag/{backend}/ingest_text", s.handleBackendIngestText)
		r.Post("/rag/{backend}/preview", s.handleBackendPreview)

		r.Get("/agents/agent1/info", s.handleAgentInfo)
		r.Get("/agents/agent1/tools", s.handleAgentTools)
		r.Post("/agents/agent1/query", s.handleAgentQuery)
		r.Post("/agents/agent1/reset", s.handleAgentReset)
	})

	return r
}

func (s *Server) observabilityMiddleware(next http.Handler) http.Handler {
	tracer := observability.GetTracer("docgateway.http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, span := tracer.Start(r.Context(), "http.request",
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.path", r.URL.Path),
			),
		)
		defer span.End()

		wrapped := &statusCapturingWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r.WithContext(ctx))

		duration := time.Since(start)
		pattern := routePattern(r)

		span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))
		if wrapped.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}

		s.metrics.RecordHTTPRequest(r.Method, pattern, wrapped.statusCode, duration)
	})
}

type statusCapturingWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusCapturingWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// routePattern reads chi's matched route pattern so the HTTP metric's
// label cardinality doesn't explode with per-backend-name paths.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return r.URL.Path
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

type kindedError interface {
	error
	Kind() string
}

func statusForError(err error) int {
	var k kindedError
	if errors.As(err, &k) {
		switch k.Kind() {
		case string(apperrors.KindConfigInvalid), string(apperrors.KindUnsupportedFormat), string(apperrors.KindEmptyDocument):
			return http.StatusBadRequest
		case string(apperrors.KindLLMTimeout):
			return http.StatusGatewayTimeout
		case string(apperrors.KindLLMUnavailable):
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

func backendByName(backends map[string]rag.Backend, name string) (rag.Backend, error) {
	b, ok := backends[name]
	if !ok {
		return nil, apperrors.NewConfigInvalid("backend", "unknown RAG backend "+name, nil)
	}
	return b, nil
}
