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

package vectorindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// collectionName is fixed: one Chromem index instance owns exactly one
// chromem-go collection.
const collectionName = "chunks"

// Chromem is a chromem-go-backed vector index. With an empty
// PersistPath it is flat (in-memory only); with one set, the
// collection's directory survives process restarts. chromem-go writes
// each document to that directory when it is added; Close writes
// nothing further.
type Chromem struct {
	mu           sync.Mutex
	db           *chromem.DB
	collection   *chromem.Collection
	modelName    string
	persistPath  string
	sourceCounts map[string]int
}

// NewChromem builds a Chromem index. If persistPath is non-empty, the
// collection directory is reopened if it already exists and otherwise
// created here, before any Add; it is not created lazily.
func NewChromem(modelName, persistPath string) (*Chromem, error) {
	var db *chromem.DB
	if persistPath != "" {
		if _, err := os.Stat(persistPath); err == nil {
			loaded, err := chromem.NewPersistentDB(persistPath, false)
			if err != nil {
				return nil, fmt.Errorf("opening persistent vector store: %w", err)
			}
			db = loaded
		} else {
			if err := os.MkdirAll(persistPath, 0o755); err != nil {
				return nil, fmt.Errorf("creating vector store directory: %w", err)
			}
			loaded, err := chromem.NewPersistentDB(persistPath, false)
			if err != nil {
				return nil, fmt.Errorf("creating persistent vector store: %w", err)
			}
			db = loaded
		}
	} else {
		db = chromem.NewDB()
	}

	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem embedding function invoked; embeddings are precomputed upstream")
	}
	col, err := db.GetOrCreateCollection(collectionName, nil, identityEmbed)
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	return &Chromem{db: db, collection: col, modelName: modelName, persistPath: persistPath, sourceCounts: make(map[string]int)}, nil
}

func (c *Chromem) Add(ctx context.Context, chunk Chunk) error {
	doc := chromem.Document{
		ID:        chunk.ID,
		Content:   chunk.Text,
		Metadata:  map[string]string{"source": chunk.Source},
		Embedding: chunk.Embedding,
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.collection.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return err
	}
	c.sourceCounts[chunk.Source]++
	return nil
}

func (c *Chromem) Search(ctx context.Context, query []float32, k int, sourceFilter []string) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}

	c.mu.Lock()
	count := c.collection.Count()
	c.mu.Unlock()
	if count == 0 {
		return nil, nil
	}

	// A source filter must narrow the ranked corpus before truncating
	// to k, not after: asking the library for only the unfiltered
	// top-k and filtering the result afterward can silently drop a
	// chunk that belongs in the filtered top-k but never made the
	// unfiltered cut. Querying the whole corpus when a filter is set
	// keeps filtering a strict post-rank narrowing of an exhaustive,
	// correctly-ordered result set.
	queryK := k
	if len(sourceFilter) > 0 {
		queryK = count
	} else if queryK > count {
		queryK = count
	}

	docs, err := c.collection.QueryEmbedding(ctx, query, queryK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	filter := toSet(sourceFilter)
	out := make([]Result, 0, k)
	for _, d := range docs {
		source := d.Metadata["source"]
		if len(filter) > 0 && !filter[source] {
			continue
		}
		out = append(out, Result{
			Chunk: Chunk{ID: d.ID, Text: d.Content, Source: source},
			Score: d.Similarity,
		})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func (c *Chromem) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sourceCounts := make(map[string]int, len(c.sourceCounts))
	for k, v := range c.sourceCounts {
		sourceCounts[k] = v
	}
	return Stats{ModelName: c.modelName, ChunkCount: c.collection.Count(), SourceCounts: sourceCounts}, nil
}

func (c *Chromem) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.db.DeleteCollection(collectionName); err != nil {
		return fmt.Errorf("deleting collection: %w", err)
	}
	identityEmbed := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("chromem embedding function invoked; embeddings are precomputed upstream")
	}
	col, err := c.db.GetOrCreateCollection(collectionName, nil, identityEmbed)
	if err != nil {
		return fmt.Errorf("recreating collection: %w", err)
	}
	c.collection = col
	c.sourceCounts = make(map[string]int)
	return nil
}

// Close only logs in persistent mode and does nothing otherwise: added
// documents are already on disk, and there is no fsync-per-write
// guarantee.
func (c *Chromem) Close() error {
	if c.persistPath == "" {
		return nil
	}
	slog.Debug("chromem vector index closed", "path", c.persistPath)
	return nil
}

var _ Index = (*Chromem)(nil)
