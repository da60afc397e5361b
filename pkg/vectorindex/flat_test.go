package vectorindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlat_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := NewFlat("test-model", "")
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Text: "cats are great", Source: "a.txt", Embedding: []float32{1, 0, 0}}))
	require.NoError(t, idx.Add(ctx, Chunk{ID: "2", Text: "dogs are great", Source: "b.txt", Embedding: []float32{0, 1, 0}}))

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "1", results[0].Chunk.ID)
	require.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestFlat_SearchRespectsK(t *testing.T) {
	ctx := context.Background()
	idx, err := NewFlat("m", "")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, idx.Add(ctx, Chunk{ID: string(rune('a' + i)), Source: "s", Embedding: []float32{1, 0}}))
	}
	results, err := idx.Search(ctx, []float32{1, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
}

func TestFlat_SearchZeroK(t *testing.T) {
	ctx := context.Background()
	idx, err := NewFlat("m", "")
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Source: "s", Embedding: []float32{1, 0}}))
	results, err := idx.Search(ctx, []float32{1, 0}, 0, nil)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestFlat_SearchSourceFilter(t *testing.T) {
	ctx := context.Background()
	idx, err := NewFlat("m", "")
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Source: "cats.txt", Embedding: []float32{1, 0}}))
	require.NoError(t, idx.Add(ctx, Chunk{ID: "2", Source: "dogs.txt", Embedding: []float32{1, 0}}))

	results, err := idx.Search(ctx, []float32{1, 0}, 10, []string{"cats.txt"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "cats.txt", results[0].Chunk.Source)

	results, err = idx.Search(ctx, []float32{1, 0}, 10, []string{"unknown.txt"})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestFlat_Reset(t *testing.T) {
	ctx := context.Background()
	idx, err := NewFlat("m", "")
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

func TestFlat_PersistenceSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	idx, err := NewFlat("model-x", path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Source: "a.txt", Text: "hi", Embedding: []float32{1, 0}}))

	reopened, err := NewFlat("model-x", path)
	require.NoError(t, err)
	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ChunkCount)
	require.Equal(t, 1, stats.SourceCounts["a.txt"])
}

func TestFlat_ModelMismatchStartsEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	idx, err := NewFlat("model-a", path)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, Chunk{ID: "1", Source: "a.txt", Embedding: []float32{1}}))

	reopened, err := NewFlat("model-b", path)
	require.NoError(t, err)
	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.ChunkCount)
}

func TestFlat_CorruptFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(path, []byte("not json"), 0o644))

	idx, err := NewFlat("model-a", path)
	require.NoError(t, err)
	stats, err := idx.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.ChunkCount)
}
