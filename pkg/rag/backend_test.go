package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/stretchr/testify/require"
)

// embedServer returns a deterministic embedding for any prompt: a
// one-hot vector keyed by the prompt's first rune, so chunks sharing a
// topic word cluster together under cosine similarity.
func embedServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vec := []float32{0, 0, 0}
		if len(req.Prompt) > 0 {
			vec[int(req.Prompt[0])%3] = 1
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": vec})
	}))
}

func newTestManual(t *testing.T) Backend {
	t.Helper()
	srv := embedServer(t)
	t.Cleanup(srv.Close)
	llm := llmclient.New(llmclient.Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
	b, err := NewManual(ManualConfig{EmbedModel: "test-embed", ChunkSize: 100, ChunkOverlap: 20}, llm)
	require.NoError(t, err)
	return b
}

func TestManualBackend_IngestAndRetrieve(t *testing.T) {
	ctx := context.Background()
	b := newTestManual(t)

	require.NoError(t, b.IngestText(ctx, "the secret code is BANANA-7", "secret.txt"))

	context_, chunks, err := b.BuildContext(ctx, "what is the secret code", 3, nil, 4000)
	require.NoError(t, err)
	require.Contains(t, context_, "BANANA-7")
	require.NotEmpty(t, chunks)
}

func TestManualBackend_StatsIncreasesByChunkCount(t *testing.T) {
	ctx := context.Background()
	b := newTestManual(t)

	statsBefore, err := b.Stats(ctx)
	require.NoError(t, err)

	require.NoError(t, b.IngestText(ctx, "some reasonably sized document body text here", "doc.txt"))

	statsAfter, err := b.Stats(ctx)
	require.NoError(t, err)
	require.Greater(t, statsAfter.ChunkCount, statsBefore.ChunkCount)
}

func TestManualBackend_ResetClearsIndex(t *testing.T) {
	ctx := context.Background()
	b := newTestManual(t)

	require.NoError(t, b.IngestText(ctx, "some text to index", "a.txt"))
	require.NoError(t, b.Reset(ctx))

	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.ChunkCount)
}

func TestManualBackend_EmptyTextIngestSucceedsWithZeroChunks(t *testing.T) {
	ctx := context.Background()
	b := newTestManual(t)

	require.NoError(t, b.IngestText(ctx, "", "empty.txt"))
	stats, err := b.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, stats.ChunkCount)
}

func TestManualBackend_MaxContextCharsTruncates(t *testing.T) {
	ctx := context.Background()
	b := newTestManual(t)

	require.NoError(t, b.IngestText(ctx, "a fairly long piece of text about bananas and codes", "a.txt"))

	context_, _, err := b.BuildContext(ctx, "bananas", 3, nil, 10)
	require.NoError(t, err)
	require.LessOrEqual(t, len(context_), 10)
}

func TestManualBackend_UnknownSourceFilterReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	b := newTestManual(t)

	require.NoError(t, b.IngestText(ctx, "cats are great pets", "cats.txt"))

	context_, chunks, err := b.BuildContext(ctx, "cats", 3, []string{"nonexistent.txt"}, 4000)
	require.NoError(t, err)
	require.Empty(t, context_)
	require.Empty(t, chunks)
}
