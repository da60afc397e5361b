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

// Package vectorindex stores chunk embeddings and answers nearest-
// neighbor queries. Two implementations share one contract: Flat, a
// hand-rolled in-memory index with JSON persistence, and Chromem, backed
// by chromem-go with an optional on-disk collection.
package vectorindex

import "context"

// Chunk is one embedded unit of retrievable text.
type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Source    string    `json:"source"`
	Embedding []float32 `json:"embedding"`
}

// Result pairs a Chunk with its similarity score against a query.
type Result struct {
	Chunk Chunk
	Score float32
}

// Stats summarizes an index's contents.
type Stats struct {
	ModelName      string
	ChunkCount     int
	SourceCounts   map[string]int
}

// Index is the contract both vector index variants satisfy. Add is
// atomic with respect to readers: a search either sees a chunk in full
// or not at all, never partially. Search never returns more than k
// results, ordered by non-increasing score, ties broken by insertion
// order (earlier wins).
type Index interface {
	// Add inserts a chunk into the index.
	Add(ctx context.Context, chunk Chunk) error

	// Search returns up to k nearest neighbors to query, optionally
	// restricted to chunks whose Source is in sourceFilter (nil/empty
	// means unfiltered).
	Search(ctx context.Context, query []float32, k int, sourceFilter []string) ([]Result, error)

	// Stats reports the index's current contents.
	Stats(ctx context.Context) (Stats, error)

	// Reset removes every chunk from the index.
	Reset(ctx context.Context) error
}
