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

package orchestrator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/rag"
	"github.com/stretchr/testify/require"
)

func streamingLLM(t *testing.T, deltas []string) *llmclient.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for _, d := range deltas {
			_ = json.NewEncoder(w).Encode(map[string]any{"response": d, "done": false})
			flusher.Flush()
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "", "done": true})
	}))
	t.Cleanup(srv.Close)
	return llmclient.New(llmclient.Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
}

func drain(t *testing.T, deltas <-chan Delta) (string, bool, error) {
	t.Helper()
	var text string
	var done bool
	var err error
	for d := range deltas {
		if d.Err != nil {
			err = d.Err
			continue
		}
		if d.Done {
			done = true
			continue
		}
		text += d.Text
	}
	return text, done, err
}

func TestOrchestrator_PlainPromptWhenRAGDisabled(t *testing.T) {
	llm := streamingLLM(t, []string{"hello", " world"})
	o := New(Config{RAGEnabled: false, GenerationModel: "test"}, llm, nil)

	deltas, err := o.Answer(context.Background(), "hi", QueryContext{})
	require.NoError(t, err)

	text, done, streamErr := drain(t, deltas)
	require.NoError(t, streamErr)
	require.True(t, done)
	require.Equal(t, "hello world", text)
}

func TestOrchestrator_PlainPromptWhenNoSourceFilter(t *testing.T) {
	llm := streamingLLM(t, []string{"ok"})
	o := New(Config{RAGEnabled: true, GenerationModel: "test"}, llm, map[string]rag.Backend{})

	deltas, err := o.Answer(context.Background(), "hi", QueryContext{BackendName: "manual"})
	require.NoError(t, err)

	_, done, streamErr := drain(t, deltas)
	require.NoError(t, streamErr)
	require.True(t, done)
}

func TestOrchestrator_UnknownBackendFallsBackToPlain(t *testing.T) {
	llm := streamingLLM(t, []string{"ok"})
	o := New(Config{RAGEnabled: true, GenerationModel: "test"}, llm, map[string]rag.Backend{})

	deltas, err := o.Answer(context.Background(), "hi", QueryContext{BackendName: "nonexistent", ActiveSourceFilter: []string{"a.txt"}})
	require.NoError(t, err)

	_, done, streamErr := drain(t, deltas)
	require.NoError(t, streamErr)
	require.True(t, done)
}

func TestOrchestrator_RAGPromptWithRetrievedContext(t *testing.T) {
	embedSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{1, 0, 0}})
	}))
	t.Cleanup(embedSrv.Close)
	embedLLM := llmclient.New(llmclient.Config{BaseURL: embedSrv.URL, TimeoutSeconds: 5}, nil)

	backend, err := rag.NewManual(rag.ManualConfig{EmbedModel: "test-embed", ChunkSize: 100, ChunkOverlap: 20}, embedLLM)
	require.NoError(t, err)
	require.NoError(t, backend.IngestText(context.Background(), "the launch code is OMEGA-9", "secrets.txt"))

	genLLM := streamingLLM(t, []string{"OMEGA-9"})
	o := New(Config{RAGEnabled: true, TopKDefault: 3, MaxContextChars: 4000, GenerationModel: "test"}, genLLM,
		map[string]rag.Backend{"manual": backend})

	deltas, err := o.Answer(context.Background(), "what is the launch code", QueryContext{
		BackendName:        "manual",
		ActiveSourceFilter: []string{"secrets.txt"},
	})
	require.NoError(t, err)

	text, done, streamErr := drain(t, deltas)
	require.NoError(t, streamErr)
	require.True(t, done)
	require.Equal(t, "OMEGA-9", text)
}
