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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChromem_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromem("test-model", "")
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Text: "cats are great", Source: "a.txt", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, idx.Add(ctx, Chunk{ID: "2", Text: "dogs are great", Source: "b.txt", Embedding: []float32{0, 1, 0}}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "1", results[0].Chunk.ID)
}

func TestChromem_SearchZeroK(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromem("m", "")
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Source: "s", Embedding: []float32{1, 0}}))

	results, err := idx.Search(ctx, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

// TestChromem_SourceFilterRanksBeforeTruncating builds a corpus where
// every chunk outside the requested source outranks the one chunk that
// matches it. A search that truncates to k before filtering would
// never see the matching chunk at all; it must only be dropped after
// the full corpus has been ranked.
func TestChromem_SourceFilterRanksBeforeTruncating(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromem("m", "")
	require.NoError(t, err)

	query := []float32{1, 0}
	for i := 0; i < 5; i++ {
		// near-perfect match to the query, but from a source we will filter out
		require.NoError(t, idx.Add(ctx, Chunk{
			ID:        fmt.Sprintf("decoy-%d", i),
			Source:    "decoy.txt",
			Embedding: []float32{1, 0.01},
		}))
	}
	// weaker match, but it is the only chunk from the requested source
	require.NoError(t, idx.Add(ctx, Chunk{
		ID:        "target-1",
		Source:    "target.txt",
		Embedding: []float32{0.6, 0.8},
	}))

	results, err := idx.Search(ctx, query, 1, []string{"target.txt"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "target-1", results[0].Chunk.ID)
	require.Equal(t, "target.txt", results[0].Chunk.Source)
}

func TestChromem_Reset(t *testing.T) {
	ctx := context.Background()
	idx, err := NewChromem("m", "")
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Source: "s", Embedding: []float32{1}}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ChunkCount)

	require.NoError(t, idx.Reset(ctx))
	stats, err = idx.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.ChunkCount)
}

func TestChromem_PersistenceSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	idx, err := NewChromem("model-x", dir)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Source: "a.txt", Text: "hi", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.Close())

	reopened, err := NewChromem("model-x", dir)
	require.NoError(t, err)
	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ChunkCount)
}
