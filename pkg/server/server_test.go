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

package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadirpekel/docgateway/pkg/agentloop"
	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/rag"
	"github.com/kadirpekel/docgateway/pkg/tools"
	"github.com/stretchr/testify/require"
)

func newTestLLM(t *testing.T) (*llmclient.Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/embeddings":
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 0, 0}})
		case "/api/generate":
			_ = json.NewEncoder(w).Encode(map[string]any{"response": "FINAL_ANSWER: hi", "done": true})
		case "/api/tags":
			_ = json.NewEncoder(w).Encode(map[string]any{"models": []map[string]string{{"name": "llama3"}}})
		case "/api/pull":
			_ = json.NewEncoder(w).Encode(map[string]any{"status": "success"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return llmclient.New(llmclient.Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil), srv
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	llm, _ := newTestLLM(t)

	manual, err := rag.NewManual(rag.ManualConfig{EmbedModel: "test-embed", ChunkSize: 100, ChunkOverlap: 20}, llm)
	require.NoError(t, err)
	backends := map[string]rag.Backend{"manual": manual}
	unified := &rag.Unified{Backends: []rag.Backend{manual}}

	agent := agentloop.New(agentloop.Config{Model: "llama3"}, llm, tools.NewRegistry(), nil, nil)

	return New(Config{GenerationModelCatalog: []string{"llama3"}}, llm, backends, unified, agent, nil, "llama3", "test-embed")
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "llama3", body["generation_model"])
}

func TestServer_UnifiedIngestTextThenAggregateStats(t *testing.T) {
	s := newTestServer(t)

	payload, _ := json.Marshal(ingestTextRequest{Text: "some text about bananas", Source: "a.txt"})
	req := httptest.NewRequest(http.MethodPost, "/api/rag/ingest_text", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/api/rag/stats", nil)
	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req2)
	require.Equal(t, http.StatusOK, rec2.Code)
	require.Contains(t, rec2.Body.String(), "manual")
}

func TestServer_BackendStatsUnknownBackend404(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/rag/nonexistent/stats", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_BackendPreviewReturnsChunks(t *testing.T) {
	s := newTestServer(t)
	payload, _ := json.Marshal(previewRequest{Text: "a reasonably long document body used purely to test chunk preview behavior end to end"})
	req := httptest.NewRequest(http.MethodPost, "/api/rag/manual/preview", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["chunks"])
}

func TestServer_AgentQueryAndReset(t *testing.T) {
	s := newTestServer(t)

	payload, _ := json.Marshal(agentQueryRequest{Message: "hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/agents/agent1/query", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var result agentloop.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, "hi", result.FinalAnswer)

	resetReq := httptest.NewRequest(http.MethodPost, "/api/agents/agent1/reset", nil)
	resetRec := httptest.NewRecorder()
	s.ServeHTTP(resetRec, resetReq)
	require.Equal(t, http.StatusOK, resetRec.Code)
}

func TestServer_AgentTools(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/agents/agent1/tools", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var tools []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tools))
	require.NotEmpty(t, tools)
}

func TestServer_ModelsListDegradesGracefullyWhenRuntimeUnreachable(t *testing.T) {
	llm := llmclient.New(llmclient.Config{BaseURL: "http://127.0.0.1:1", TimeoutSeconds: 1}, nil)
	s := New(Config{GenerationModelCatalog: []string{"llama3"}}, llm, map[string]rag.Backend{}, &rag.Unified{}, nil, nil, "llama3", "embed")

	req := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "warning")
}
