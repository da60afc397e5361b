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

// Package rag implements the two retrieval-augmented-generation
// backends the gateway offers: "manual" (fixed-window chunking over a
// hand-rolled Flat vector index) and "framework" (recursive-separator
// chunking over a chromem-go-backed index). Both satisfy the same
// Backend interface so the orchestrator never needs a type switch.
package rag

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/google/uuid"
	"github.com/kadirpekel/docgateway/pkg/apperrors"
	"github.com/kadirpekel/docgateway/pkg/docparser"
	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/observability"
	"github.com/kadirpekel/docgateway/pkg/tokenizer"
	"github.com/kadirpekel/docgateway/pkg/vectorindex"
)

var tracer = observability.GetTracer("docgateway.rag")

// RetrievedChunk is one scored chunk returned from a context build.
type RetrievedChunk struct {
	Text   string
	Source string
	Score  float32
}

// BackendStats summarizes one backend's current index contents.
type BackendStats struct {
	Name          string
	ModelName     string
	ChunkCount    int
	TokenCount    int
	SourceCounts  map[string]int
}

// Backend is the contract both the manual and framework RAG backends
// satisfy: ingest text or files, build a retrieval context for a query,
// report stats, and reset. Every method is safe for concurrent use.
type Backend interface {
	Name() string
	IngestText(ctx context.Context, text, source string) error
	IngestFile(ctx context.Context, filename string, data []byte) error
	BuildContext(ctx context.Context, query string, topK int, sourceFilter []string, maxContextChars int) (string, []RetrievedChunk, error)
	Stats(ctx context.Context) (BackendStats, error)
	Reset(ctx context.Context) error
	// Preview returns the chunks this backend's strategy would produce
	// for text, without embedding or indexing anything. It lets an
	// operator inspect chunking behavior before committing an ingest.
	Preview(text string) []string
	// Close flushes any buffered persistent state. Backends whose index
	// persists synchronously on every write treat this as a no-op.
	Close(ctx context.Context) error
}

// chunkStrategy splits raw text into retrievable pieces. Both backends
// use the same embed/index machinery and differ only in this strategy
// and in which vectorindex.Index variant backs them.
type chunkStrategy interface {
	Chunk(text string) []string
}

// backend is the shared implementation behind both Name variants.
type backend struct {
	name       string
	llm        *llmclient.Client
	embedModel string
	chunker    chunkStrategy
	index      vectorindex.Index
	counter    *tokenizer.Counter
	tokenCount int64 // token count of all ingested text, via BPE tokenizer
	metrics    *observability.Metrics
}

func (b *backend) Name() string { return b.name }

// IngestText chunks, embeds, and indexes text under source. Embedding
// failure on any chunk aborts the whole call: no partial chunk set is
// ever added to the index.
func (b *backend) IngestText(ctx context.Context, text, source string) error {
	start := time.Now()
	pieces := b.chunker.Chunk(text)
	if len(pieces) == 0 {
		return nil
	}

	chunks := make([]vectorindex.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		vec, err := b.llm.Embed(ctx, b.embedModel, piece)
		if err != nil {
			b.metrics.RecordRAGIngest(b.name, 0, time.Since(start), true)
			return apperrors.NewEmbeddingFailed(source, err)
		}
		chunks = append(chunks, vectorindex.Chunk{
			ID:        uuid.NewString(),
			Text:      piece,
			Source:    source,
			Embedding: vec,
		})
	}

	for _, c := range chunks {
		if err := b.index.Add(ctx, c); err != nil {
			b.metrics.RecordRAGIngest(b.name, 0, time.Since(start), true)
			return apperrors.NewEmbeddingFailed(source, err)
		}
	}

	if b.counter != nil {
		atomic.AddInt64(&b.tokenCount, int64(b.counter.Count(text)))
	}
	b.metrics.RecordRAGIngest(b.name, len(chunks), time.Since(start), false)
	return nil
}

// IngestFile parses filename's bytes into text, then ingests it.
func (b *backend) IngestFile(ctx context.Context, filename string, data []byte) error {
	text, err := docparser.Parse(filename, data)
	if err != nil {
		return err
	}
	return b.IngestText(ctx, text, filename)
}

// BuildContext retrieves the top-k chunks for query (optionally
// restricted to sourceFilter) and assembles them into a single context
// string, truncated at maxContextChars.
func (b *backend) BuildContext(ctx context.Context, query string, topK int, sourceFilter []string, maxContextChars int) (string, []RetrievedChunk, error) {
	ctx, span := tracer.Start(ctx, "rag.search", trace.WithAttributes(
		attribute.String("rag.backend", b.name),
		attribute.Int("rag.top_k", topK),
		attribute.Int("rag.source_filter_count", len(sourceFilter)),
	))
	defer span.End()

	start := time.Now()
	queryVec, err := b.llm.Embed(ctx, b.embedModel, query)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", nil, err
	}

	results, err := b.index.Search(ctx, queryVec, topK, sourceFilter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", nil, err
	}
	b.metrics.RecordRAGSearch(b.name, time.Since(start), len(results))
	span.SetAttributes(attribute.Int("rag.result_count", len(results)))
	span.SetStatus(codes.Ok, "")
	if len(results) == 0 {
		return "", nil, nil
	}

	retrieved := make([]RetrievedChunk, len(results))
	parts := make([]string, len(results))
	for i, r := range results {
		retrieved[i] = RetrievedChunk{Text: r.Chunk.Text, Source: r.Chunk.Source, Score: r.Score}
		parts[i] = "Source: " + r.Chunk.Source + "\n" + r.Chunk.Text
	}

	assembled := strings.Join(parts, "\n\n---\n\n")
	if maxContextChars > 0 && len(assembled) > maxContextChars {
		assembled = assembled[:maxContextChars]
	}
	return assembled, retrieved, nil
}

func (b *backend) Stats(ctx context.Context) (BackendStats, error) {
	stats, err := b.index.Stats(ctx)
	if err != nil {
		return BackendStats{}, err
	}

	return BackendStats{
		Name:         b.name,
		ModelName:    stats.ModelName,
		ChunkCount:   stats.ChunkCount,
		TokenCount:   int(atomic.LoadInt64(&b.tokenCount)),
		SourceCounts: stats.SourceCounts,
	}, nil
}

func (b *backend) Reset(ctx context.Context) error {
	atomic.StoreInt64(&b.tokenCount, 0)
	return b.index.Reset(ctx)
}

func (b *backend) Preview(text string) []string {
	return b.chunker.Chunk(text)
}

// Close flushes the underlying index if it buffers persistent writes
// (Chromem does); Flat persists synchronously on every Add and has no
// Close method to find, so the type assertion below simply misses.
func (b *backend) Close(ctx context.Context) error {
	if closer, ok := b.index.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
