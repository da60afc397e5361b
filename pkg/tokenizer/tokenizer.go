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

// Package tokenizer counts tokens with a BPE tokenizer rather than a
// character-count heuristic. It backs two consumers: RAG backend stats
// (an operator-facing approximate corpus size) and the agent loop's
// conversation-history trimming.
package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens for a specific model's encoding.
type Counter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

// Turn is one role-tagged entry in a conversation history.
type Turn struct {
	Role    string
	Content string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewCounter returns a Counter for model, falling back to cl100k_base
// when the model isn't recognized by tiktoken-go.
func NewCounter(model string) (*Counter, error) {
	cacheMu.RLock()
	cached, ok := encodingCache[model]
	cacheMu.RUnlock()
	if ok {
		return &Counter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("tokenizer: failed to load encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &Counter{encoding: encoding, model: model}, nil
}

// Count returns the exact token count for text.
func (c *Counter) Count(text string) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// CountTurns counts tokens across a conversation history, including the
// per-turn role-framing overhead tiktoken's chat format implies.
func (c *Counter) CountTurns(turns []Turn) int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	const perTurnOverhead = 3
	total := 0
	for _, t := range turns {
		total += perTurnOverhead
		total += len(c.encoding.Encode(t.Role, nil, nil))
		total += len(c.encoding.Encode(t.Content, nil, nil))
	}
	total += perTurnOverhead
	return total
}

// FitWithinBudget drops the oldest turns until the remainder's token
// count (per CountTurns) is within maxTokens. Used by the agent loop to
// keep conversation_history bounded across many run() calls.
func (c *Counter) FitWithinBudget(turns []Turn, maxTokens int) []Turn {
	if len(turns) == 0 {
		return turns
	}

	fitted := []Turn{}
	used := 3 // reply-priming overhead, mirrors CountTurns

	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		cost := c.CountTurns([]Turn{t}) - 3 // priming already in used
		if used+cost > maxTokens {
			break
		}
		fitted = append([]Turn{t}, fitted...)
		used += cost
	}

	return fitted
}

// Model returns the model name this counter was built for.
func (c *Counter) Model() string { return c.model }

// EstimateChars is a cheap fallback estimate (4 chars/token) for callers
// that don't have a live Counter yet (e.g. pre-ingestion size checks).
func EstimateChars(text string) int {
	return len(text) / 4
}
