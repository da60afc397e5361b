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

// Package apperrors defines the named error kinds shared across the
// gateway's components. Each kind is a concrete type implementing error
// and Unwrap, plus a Kind() accessor so callers can classify a failure
// (HTTP status mapping, session error-event text) without a type switch.
package apperrors

import "fmt"

// Kind identifies one of the gateway's named error categories.
type Kind string

const (
	KindConfigInvalid      Kind = "ConfigInvalid"
	KindUnsupportedFormat  Kind = "UnsupportedFormat"
	KindEmptyDocument      Kind = "EmptyDocument"
	KindEmbeddingFailed    Kind = "EmbeddingFailed"
	KindLLMUnavailable     Kind = "LLMUnavailable"
	KindLLMTimeout         Kind = "LLMTimeout"
	KindLLMProtocol        Kind = "LLMProtocol"
	KindToolError          Kind = "ToolError"
	KindAgentUnparseable   Kind = "AgentUnparseable"
	KindAgentStepsExceeded Kind = "AgentStepsExceeded"
	KindSessionDropped     Kind = "SessionDropped"
)

// Error is the common shape for every named error kind: a component,
// the operation that failed, a human message, and an optional wrapped
// cause. Component-specific fields live on the concrete kind types below.
type Error struct {
	KindValue Kind
	Component string
	Operation string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Component, e.Operation, e.Message)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Kind returns the error's classification.
func (e *Error) Kind() string { return string(e.KindValue) }

func newError(kind Kind, component, operation, message string, err error) *Error {
	return &Error{KindValue: kind, Component: component, Operation: operation, Message: message, Err: err}
}

// ConfigError reports a fatal, startup-time configuration problem.
type ConfigError struct {
	*Error
	Field string
}

func NewConfigInvalid(field, message string, err error) *ConfigError {
	return &ConfigError{Error: newError(KindConfigInvalid, "config", "validate", message, err), Field: field}
}

// ParserError reports a document-parsing failure.
type ParserError struct {
	*Error
	Filename string
}

func NewUnsupportedFormat(filename string) *ParserError {
	return &ParserError{
		Error:    newError(KindUnsupportedFormat, "docparser", "parse", fmt.Sprintf("unsupported file format %q", filename), nil),
		Filename: filename,
	}
}

func NewEmptyDocument(filename string) *ParserError {
	return &ParserError{
		Error:    newError(KindEmptyDocument, "docparser", "parse", "document contains no extractable text", nil),
		Filename: filename,
	}
}

// RAGError reports an ingestion-time failure.
type RAGError struct {
	*Error
	Source string
}

func NewEmbeddingFailed(source string, err error) *RAGError {
	return &RAGError{
		Error:  newError(KindEmbeddingFailed, "rag", "ingest", "embedding failed, ingestion aborted", err),
		Source: source,
	}
}

// LLMError reports a failure talking to the LLM runtime.
type LLMError struct {
	*Error
	Endpoint string
}

func NewLLMUnavailable(endpoint string, err error) *LLMError {
	return &LLMError{Error: newError(KindLLMUnavailable, "llmclient", "request", "LLM runtime unreachable", err), Endpoint: endpoint}
}

func NewLLMTimeout(endpoint string, err error) *LLMError {
	return &LLMError{Error: newError(KindLLMTimeout, "llmclient", "request", "LLM request deadline exceeded", err), Endpoint: endpoint}
}

func NewLLMProtocol(endpoint string, err error) *LLMError {
	return &LLMError{Error: newError(KindLLMProtocol, "llmclient", "request", "malformed LLM response", err), Endpoint: endpoint}
}

// ToolError reports a tool-execution failure. It is returned as the
// observation string to the agent loop, never raised as a Go error that
// aborts the run.
type ToolError struct {
	*Error
	ToolName string
}

func NewToolError(toolName, message string, err error) *ToolError {
	return &ToolError{Error: newError(KindToolError, "tools", "execute", message, err), ToolName: toolName}
}

// AgentError reports a failure inside the reason-act loop.
type AgentError struct {
	*Error
}

func NewAgentUnparseable(rawResponse string) *AgentError {
	return &AgentError{Error: newError(KindAgentUnparseable, "agentloop", "parse", "could not parse a THOUGHT/ACTION or FINAL_ANSWER shape from the LLM response", nil)}
}

func NewAgentStepsExceeded(maxSteps int) *AgentError {
	return &AgentError{Error: newError(KindAgentStepsExceeded, "agentloop", "run", fmt.Sprintf("reached max_steps=%d without a final answer", maxSteps), nil)}
}

// SessionError reports a dropped client connection.
type SessionError struct {
	*Error
	SessionID string
}

func NewSessionDropped(sessionID string) *SessionError {
	return &SessionError{Error: newError(KindSessionDropped, "session", "disconnect", "connection dropped", nil), SessionID: sessionID}
}
