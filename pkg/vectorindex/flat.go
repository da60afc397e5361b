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
	"encoding/json"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// flatFile is the on-disk JSON shape for a Flat index's persistence file.
type flatFile struct {
	ModelName string  `json:"embedding_model_name"`
	Chunks    []Chunk `json:"chunks"`
}

// Flat is a hand-rolled in-memory vector index with optional JSON-file
// persistence. Cosine similarity is computed directly rather than
// through a vector-math library: the index only ever compares a single
// query against at most a few thousand chunks, so a dependency buys
// nothing a dozen lines of arithmetic doesn't already provide.
type Flat struct {
	mu         sync.RWMutex
	modelName  string
	chunks     []Chunk
	persistPath string
}

// NewFlat builds a Flat index for embeddings produced by modelName. If
// persistPath is non-empty, an existing index is loaded from it (a
// corrupt file or an embedding-model mismatch starts empty with a
// warning rather than failing; the file carries no format version, so
// none is checked), and every Add persists back to it.
func NewFlat(modelName, persistPath string) (*Flat, error) {
	f := &Flat{modelName: modelName, persistPath: persistPath}
	if persistPath == "" {
		return f, nil
	}

	data, err := os.ReadFile(persistPath)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, err
	}

	var loaded flatFile
	if err := json.Unmarshal(data, &loaded); err != nil {
		slog.Warn("vector index persistence file is corrupt, starting empty", "path", persistPath, "error", err)
		return f, nil
	}
	if loaded.ModelName != "" && loaded.ModelName != modelName {
		slog.Warn("vector index persistence file was built with a different embedding model, starting empty",
			"path", persistPath, "file_model", loaded.ModelName, "configured_model", modelName)
		return f, nil
	}

	f.chunks = loaded.Chunks
	return f, nil
}

func (f *Flat) Add(ctx context.Context, chunk Chunk) error {
	f.mu.Lock()
	f.chunks = append(f.chunks, chunk)
	chunksCopy := make([]Chunk, len(f.chunks))
	copy(chunksCopy, f.chunks)
	f.mu.Unlock()

	return f.persist(chunksCopy)
}

func (f *Flat) Search(ctx context.Context, query []float32, k int, sourceFilter []string) ([]Result, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if k <= 0 {
		return nil, nil
	}

	filter := toSet(sourceFilter)
	type scored struct {
		result Result
		order  int
	}
	var candidates []scored
	for i, c := range f.chunks {
		if len(filter) > 0 && !filter[c.Source] {
			continue
		}
		candidates = append(candidates, scored{
			result: Result{Chunk: c, Score: cosineSimilarity(query, c.Embedding)},
			order:  i,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].result.Score != candidates[j].result.Score {
			return candidates[i].result.Score > candidates[j].result.Score
		}
		return candidates[i].order < candidates[j].order
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	out := make([]Result, len(candidates))
	for i, c := range candidates {
		out[i] = c.result
	}
	return out, nil
}

func (f *Flat) Stats(ctx context.Context) (Stats, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	sourceCounts := make(map[string]int)
	for _, c := range f.chunks {
		sourceCounts[c.Source]++
	}
	return Stats{ModelName: f.modelName, ChunkCount: len(f.chunks), SourceCounts: sourceCounts}, nil
}

func (f *Flat) Reset(ctx context.Context) error {
	f.mu.Lock()
	f.chunks = nil
	f.mu.Unlock()
	return f.persist(nil)
}

// persist writes the index to disk atomically: write to a temp file in
// the same directory, then rename over the target, so a crash mid-write
// never leaves a truncated file in place.
func (f *Flat) persist(chunks []Chunk) error {
	if f.persistPath == "" {
		return nil
	}

	data, err := json.Marshal(flatFile{ModelName: f.modelName, Chunks: chunks})
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.persistPath)
	tmp, err := os.CreateTemp(dir, ".vectorindex-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, f.persistPath)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func toSet(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}

var _ Index = (*Flat)(nil)
