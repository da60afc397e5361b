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

// Package session accepts WebSocket clients, gives each connection its
// own reader and writer goroutine plus a buffered outbound channel (a
// WebSocket connection has exactly one permitted writer; concurrent
// writes are never safe), and forwards messages to the Query
// Orchestrator.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/kadirpekel/docgateway/pkg/observability"
	"github.com/kadirpekel/docgateway/pkg/orchestrator"
)

// EventType tags a server-to-client event.
type EventType string

const (
	EventSystem EventType = "system"
	EventUser   EventType = "user"
	EventTyping EventType = "typing"
	EventAI     EventType = "ai"
	EventError  EventType = "error"
)

// Event is the wire shape of every server-to-client message.
type Event struct {
	Type    EventType `json:"type"`
	Message string    `json:"message"`
}

// ClientMessage is the wire shape of every client-to-server message.
type ClientMessage struct {
	Message      string   `json:"message"`
	Sources      []string `json:"sources,omitempty"`
	UseLangchain *bool    `json:"useLangchain,omitempty"`
}

const outboundBufferSize = 16

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Session is one accepted WebSocket connection's state and plumbing.
type Session struct {
	ID                 string
	conn               *websocket.Conn
	outbound           chan Event
	cancel             context.CancelFunc
	orch               *orchestrator.Orchestrator
	metrics            *observability.Metrics
	defaultBackendName string

	mu                 sync.Mutex
	backendName        string
	activeSourceFilter []string
}

// Registry tracks the active-connection set; Count reports its size.
// The admin surface does not read it.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Count returns the number of currently active connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Handler upgrades incoming HTTP requests to WebSocket connections and
// runs each one's reader/writer goroutines.
type Handler struct {
	Registry         *Registry
	Orchestrator     *orchestrator.Orchestrator
	Metrics          *observability.Metrics
	DefaultBackend   string
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("session: websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	s := &Session{
		ID:                 uuid.NewString(),
		conn:               conn,
		outbound:           make(chan Event, outboundBufferSize),
		cancel:             cancel,
		orch:               h.Orchestrator,
		metrics:            h.Metrics,
		defaultBackendName: h.DefaultBackend,
		backendName:        h.DefaultBackend,
	}

	h.Registry.add(s)
	h.Metrics.RecordSessionCreated()
	slog.Info("session: connected", "session_id", s.ID)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump()
	}()

	s.send(Event{Type: EventSystem, Message: "connected"})

	// The reader runs on its own goroutine, independent of turn
	// processing below, so a connection drop is observed by ReadJSON
	// (and cancels ctx) the instant it happens rather than only after
	// the in-flight turn's Orchestrator call finishes.
	incoming := make(chan ClientMessage)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.readPump(ctx, cancel, incoming)
	}()

	s.processLoop(ctx, incoming)

	cancel()
	close(s.outbound)
	wg.Wait()
	h.Registry.remove(s.ID)
	h.Metrics.RecordSessionClosed()
	conn.Close()
	slog.Info("session: disconnected", "session_id", s.ID)
}

// writePump is the single goroutine permitted to write to the
// connection; every other goroutine sends Events through s.outbound.
func (s *Session) writePump() {
	for evt := range s.outbound {
		s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := s.conn.WriteJSON(evt); err != nil {
			return
		}
	}
}

// readPump does nothing but read: it loops on ReadJSON independent of
// however long the current turn takes to process, so a client
// disconnect is detected the moment it happens. On any read error it
// cancels ctx, which aborts the Orchestrator's in-flight LLM call if
// one is running, then closes incoming so processLoop can drain and
// return.
func (s *Session) readPump(ctx context.Context, cancel context.CancelFunc, incoming chan<- ClientMessage) {
	defer close(incoming)
	for {
		var raw json.RawMessage
		if err := s.conn.ReadJSON(&raw); err != nil {
			cancel()
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.send(Event{Type: EventError, Message: "malformed message"})
			continue
		}

		select {
		case incoming <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// processLoop runs each received message's turn to completion before
// taking the next one, serializing the one conversation this session
// represents. It exits once incoming is closed (readPump has stopped).
func (s *Session) processLoop(ctx context.Context, incoming <-chan ClientMessage) {
	for msg := range incoming {
		text := strings.TrimSpace(msg.Message)
		if text == "" {
			continue
		}

		s.applyClientMessage(msg)
		s.metrics.RecordSessionEvent("message")

		s.send(Event{Type: EventUser, Message: text})
		s.send(Event{Type: EventTyping, Message: ""})

		s.runTurn(ctx, text)
	}
}

func (s *Session) applyClientMessage(msg ClientMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.Sources != nil {
		s.activeSourceFilter = msg.Sources
	}
	if msg.UseLangchain != nil {
		if *msg.UseLangchain {
			s.backendName = "framework"
		} else {
			s.backendName = "manual"
		}
	}
}

func (s *Session) queryContext() orchestrator.QueryContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	return orchestrator.QueryContext{
		BackendName:        s.backendName,
		ActiveSourceFilter: s.activeSourceFilter,
	}
}

// runTurn calls the Orchestrator and coalesces its streamed deltas
// into one ai event per turn, per the gateway's resolved delta
// granularity: the channel is fully drained server-side before a
// single event reaches the client.
func (s *Session) runTurn(ctx context.Context, userMessage string) {
	deltas, err := s.orch.Answer(ctx, userMessage, s.queryContext())
	if err != nil {
		s.send(Event{Type: EventError, Message: err.Error()})
		return
	}

	var reply strings.Builder
	var streamErr error
	for d := range deltas {
		if d.Err != nil {
			streamErr = d.Err
			continue
		}
		if d.Done {
			continue
		}
		reply.WriteString(d.Text)
	}

	if streamErr != nil {
		s.send(Event{Type: EventError, Message: streamErr.Error()})
		return
	}

	s.send(Event{Type: EventAI, Message: reply.String()})
}

// send is safe to call from any goroutine: it only ever enqueues onto
// the outbound channel, never writes to the connection directly.
func (s *Session) send(evt Event) {
	select {
	case s.outbound <- evt:
	default:
		slog.Warn("session: outbound buffer full, dropping event", "session_id", s.ID, "type", evt.Type)
	}
}
