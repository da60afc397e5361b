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

package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/orchestrator"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, reply string) (*httptest.Server, *Registry) {
	t.Helper()
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_ = json.NewEncoder(w).Encode(map[string]any{"response": reply, "done": false})
		flusher.Flush()
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "", "done": true})
	}))
	t.Cleanup(llmSrv.Close)

	llm := llmclient.New(llmclient.Config{BaseURL: llmSrv.URL, TimeoutSeconds: 5}, nil)
	orch := orchestrator.New(orchestrator.Config{RAGEnabled: false, GenerationModel: "test"}, llm, nil)

	registry := NewRegistry()
	handler := &Handler{Registry: registry, Orchestrator: orch, DefaultBackend: "manual"}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var evt Event
	require.NoError(t, conn.ReadJSON(&evt))
	return evt
}

func TestSession_WelcomeEventOnConnect(t *testing.T) {
	srv, _ := newTestServer(t, "hi there")
	conn := dial(t, srv)

	evt := readEvent(t, conn)
	require.Equal(t, EventSystem, evt.Type)
}

func TestSession_FullTurnProducesUserTypingAIEvents(t *testing.T) {
	srv, _ := newTestServer(t, "the answer is 42")
	conn := dial(t, srv)

	readEvent(t, conn) // system welcome

	require.NoError(t, conn.WriteJSON(ClientMessage{Message: "what is the answer"}))

	userEvt := readEvent(t, conn)
	require.Equal(t, EventUser, userEvt.Type)
	require.Equal(t, "what is the answer", userEvt.Message)

	typingEvt := readEvent(t, conn)
	require.Equal(t, EventTyping, typingEvt.Type)

	aiEvt := readEvent(t, conn)
	require.Equal(t, EventAI, aiEvt.Type)
	require.Equal(t, "the answer is 42", aiEvt.Message)
}

func TestSession_EmptyMessageIgnored(t *testing.T) {
	srv, _ := newTestServer(t, "unused")
	conn := dial(t, srv)
	readEvent(t, conn) // system welcome

	require.NoError(t, conn.WriteJSON(ClientMessage{Message: "   "}))
	require.NoError(t, conn.WriteJSON(ClientMessage{Message: "real message"}))

	userEvt := readEvent(t, conn)
	require.Equal(t, EventUser, userEvt.Type)
	require.Equal(t, "real message", userEvt.Message)
}

func TestSession_DisconnectDuringGenerationCancelsPromptly(t *testing.T) {
	llmRanToCompletion := make(chan struct{})
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "partial", "done": false})
		flusher.Flush()
		select {
		case <-r.Context().Done():
			return
		case <-time.After(5 * time.Second):
			close(llmRanToCompletion)
		}
	}))
	t.Cleanup(llmSrv.Close)

	llm := llmclient.New(llmclient.Config{BaseURL: llmSrv.URL, TimeoutSeconds: 10}, nil)
	orch := orchestrator.New(orchestrator.Config{RAGEnabled: false, GenerationModel: "test"}, llm, nil)

	registry := NewRegistry()
	handler := &Handler{Registry: registry, Orchestrator: orch, DefaultBackend: "manual"}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	conn := dial(t, srv)
	readEvent(t, conn) // system welcome

	require.NoError(t, conn.WriteJSON(ClientMessage{Message: "start a slow generation"}))
	readEvent(t, conn) // user echo
	readEvent(t, conn) // typing
	require.Eventually(t, func() bool { return registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()

	require.Eventually(t, func() bool { return registry.Count() == 0 }, 2*time.Second, 10*time.Millisecond,
		"session should tear down as soon as the connection drops, without waiting for generation to finish")

	select {
	case <-llmRanToCompletion:
		t.Fatal("LLM call ran to completion instead of being cancelled by the client disconnect")
	default:
	}
}

func TestSession_RegistryTracksActiveConnections(t *testing.T) {
	srv, registry := newTestServer(t, "ok")
	conn := dial(t, srv)
	readEvent(t, conn)

	require.Eventually(t, func() bool { return registry.Count() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return registry.Count() == 0 }, time.Second, 10*time.Millisecond)
}
