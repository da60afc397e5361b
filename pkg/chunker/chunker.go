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

// Package chunker splits document text into overlapping windows for
// embedding and retrieval. Two strategies share one contract: a fixed
// character window (the manual backend) and a recursive-separator
// splitter that prefers paragraph, then sentence, then word boundaries
// before falling back to a hard cut (the framework backend).
package chunker

import (
	"strings"

	"github.com/kadirpekel/docgateway/pkg/apperrors"
)

// Config controls chunk size and overlap, shared by both strategies.
type Config struct {
	Size    int
	Overlap int
}

// DefaultConfig returns the gateway's compiled chunking defaults.
func DefaultConfig() Config {
	return Config{Size: 800, Overlap: 200}
}

// Validate reports apperrors.KindConfigInvalid when overlap would
// prevent the window from ever advancing.
func (c Config) Validate() error {
	if c.Size <= c.Overlap {
		return apperrors.NewConfigInvalid("rag_chunk_size", "chunk_size must be greater than chunk_overlap", nil)
	}
	return nil
}

// Chunker splits text into chunks under a shared Config contract.
type Chunker interface {
	Chunk(text string) []string
}

// FixedWindow splits text into fixed-size, overlapping character
// windows. Empty input yields no chunks; text shorter than Size yields
// exactly one chunk.
type FixedWindow struct {
	cfg Config
}

// NewFixedWindow builds a FixedWindow chunker. Panics are never used
// for config errors: call Config.Validate first.
func NewFixedWindow(cfg Config) *FixedWindow {
	return &FixedWindow{cfg: cfg}
}

func (f *FixedWindow) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	if len(runes) <= f.cfg.Size {
		return []string{text}
	}

	step := f.cfg.Size - f.cfg.Overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + f.cfg.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// RecursiveSeparator splits text by trying progressively finer
// separators (paragraph, sentence, word, hard cut) until each piece
// fits within Size, then recombines adjacent pieces up to Size with
// Overlap carried forward into the next chunk.
type RecursiveSeparator struct {
	cfg        Config
	separators []string
}

// NewRecursiveSeparator builds a RecursiveSeparator chunker.
func NewRecursiveSeparator(cfg Config) *RecursiveSeparator {
	return &RecursiveSeparator{
		cfg:        cfg,
		separators: []string{"\n\n", ". ", " "},
	}
}

func (r *RecursiveSeparator) Chunk(text string) []string {
	if text == "" {
		return nil
	}
	pieces := r.split(text, 0)

	var chunks []string
	var current strings.Builder
	for _, piece := range pieces {
		if current.Len() > 0 && current.Len()+len(piece) > r.cfg.Size {
			chunks = append(chunks, current.String())
			overlapTail := tail(current.String(), r.cfg.Overlap)
			current.Reset()
			current.WriteString(overlapTail)
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(piece)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

// split recursively breaks text on the separator at depth, falling
// back to a hard character cut once separators are exhausted.
func (r *RecursiveSeparator) split(text string, depth int) []string {
	if len([]rune(text)) <= r.cfg.Size {
		return []string{text}
	}
	if depth >= len(r.separators) {
		return hardCut(text, r.cfg.Size)
	}

	sep := r.separators[depth]
	parts := strings.Split(text, sep)
	if len(parts) == 1 {
		return r.split(text, depth+1)
	}

	var out []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		out = append(out, r.split(part, depth+1)...)
	}
	return out
}

func hardCut(text string, size int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
	}
	return out
}

func tail(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
