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

// Package orchestrator assembles a prompt (plain or RAG-augmented),
// invokes the LLM client's streaming generate, and forwards deltas to
// the caller. It is the one place that decides plain vs RAG and
// enforces max_context_chars; it never retries a failed LLM call.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/rag"
)

const systemPreamble = "You are a helpful assistant."

const ragInstruction = "Use the following context. If the answer isn't in it, say you don't know."

// QueryContext carries the per-turn session state the Orchestrator
// needs: which backend (if any) to retrieve from, and which sources
// to restrict retrieval to.
type QueryContext struct {
	BackendName       string
	ActiveSourceFilter []string
}

// Delta is one unit of a streamed answer: either a text fragment, a
// terminal error (the last delta on that path), or the terminal
// success marker (Done=true, no further deltas follow).
type Delta struct {
	Text string
	Err  error
	Done bool
}

// Config carries the Orchestrator's tunables, sourced from the
// runtime configuration record.
type Config struct {
	RAGEnabled      bool
	TopKDefault     int
	MaxContextChars int
	GenerationModel string
	DefaultOptions  llmclient.Options
}

// Orchestrator answers one user message at a time against a set of
// named RAG backends and one LLM client.
type Orchestrator struct {
	cfg      Config
	llm      *llmclient.Client
	backends map[string]rag.Backend
}

func New(cfg Config, llm *llmclient.Client, backends map[string]rag.Backend) *Orchestrator {
	return &Orchestrator{cfg: cfg, llm: llm, backends: backends}
}

// Answer builds the prompt, starts a streaming generation, and returns
// a channel of deltas. The returned error is only non-nil for a
// failure that happens before any generation begins (e.g. a failed
// query embedding or LLM request; an unknown backend name is not an
// error and falls back to the plain prompt); failures during generation arrive as a Delta with Err
// set, followed by channel close.
func (o *Orchestrator) Answer(ctx context.Context, userMessage string, qctx QueryContext) (<-chan Delta, error) {
	prompt, err := o.buildPrompt(ctx, userMessage, qctx)
	if err != nil {
		return nil, err
	}

	chunks, err := o.llm.GenerateStream(ctx, o.cfg.GenerationModel, prompt, o.cfg.DefaultOptions)
	if err != nil {
		return nil, err
	}

	out := make(chan Delta)
	go func() {
		defer close(out)
		for chunk := range chunks {
			if chunk.Err != nil {
				out <- Delta{Err: chunk.Err}
				return
			}
			if chunk.Done {
				out <- Delta{Done: true}
				return
			}
			out <- Delta{Text: chunk.Delta}
		}
	}()
	return out, nil
}

func (o *Orchestrator) buildPrompt(ctx context.Context, userMessage string, qctx QueryContext) (string, error) {
	backend, ok := o.resolveBackend(qctx)
	if !ok {
		return o.plainPrompt(userMessage), nil
	}

	contextString, chunks, err := backend.BuildContext(ctx, userMessage, o.cfg.TopKDefault, qctx.ActiveSourceFilter, o.cfg.MaxContextChars)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return o.plainPrompt(userMessage), nil
	}

	var b strings.Builder
	b.WriteString(systemPreamble)
	b.WriteString("\n")
	b.WriteString(ragInstruction)
	b.WriteString("\n\nContext:\n")
	b.WriteString(contextString)
	b.WriteString("\n\nUser: ")
	b.WriteString(userMessage)
	b.WriteString("\nAssistant:")
	return b.String(), nil
}

func (o *Orchestrator) plainPrompt(userMessage string) string {
	return fmt.Sprintf("%s\nUser: %s\nAssistant:", systemPreamble, userMessage)
}

// resolveBackend returns the backend to retrieve from for this query,
// or ok=false when RAG should be skipped entirely: globally disabled,
// no backend selected, no active source filter, or an unknown backend
// name (treated the same as "no filter set" rather than an error, per
// the edge-case rule that an unmatched filter degrades to plain mode).
func (o *Orchestrator) resolveBackend(qctx QueryContext) (rag.Backend, bool) {
	if !o.cfg.RAGEnabled {
		return nil, false
	}
	if len(qctx.ActiveSourceFilter) == 0 {
		return nil, false
	}
	backend, ok := o.backends[qctx.BackendName]
	if !ok {
		return nil, false
	}
	return backend, true
}
