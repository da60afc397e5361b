// Package docgateway provides a per-user, document-aware chat gateway
// that brokers real-time conversations between browser clients and a
// locally hosted LLM runtime.
//
// Clients connect over WebSocket and exchange chat turns with an
// Ollama-compatible runtime through the Query Orchestrator, optionally
// augmented with retrieval-augmented-generation context from one of two
// interchangeable RAG backends ("manual", a hand-rolled chunker and flat
// vector index, and "framework", recursive-separator chunking over a
// chromem-go-backed index). A separate reason-act agent exposes a small
// tool registry (calculator, clock, weather lookup, knowledge search)
// through the same admin HTTP surface that serves health, model catalog,
// and RAG ingestion endpoints.
//
// # Quick Start
//
// Install the gateway:
//
//	go install github.com/kadirpekel/docgateway/cmd/docgateway@latest
//
// Start it against a local Ollama instance:
//
//	docgateway serve --config gateway.yaml
//
// # Using as a Go Library
//
// Each concern lives in its own package under pkg/: llmclient (runtime
// HTTP client), docparser and chunker (document ingestion), vectorindex
// and rag (retrieval), agentloop and tools (the reason-act agent),
// orchestrator (prompt assembly and streaming), session (the WebSocket
// surface), and server (the admin HTTP surface).
//
// # Architecture
//
//	Browser (WebSocket) → Session → Query Orchestrator → LLM runtime
//	                                        ↓
//	                                  RAG Backend(s)
//
//	Admin client (HTTP) → Server → {models, RAG stats/ingest, agent}
//
// # License
//
// Apache-2.0 - See LICENSE for details.
package docgateway
