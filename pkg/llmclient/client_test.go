package llmclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.False(t, req.Stream)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "hello there", Done: true})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
	out, err := c.Generate(context.Background(), "llama3", "say hi", Options{})
	require.NoError(t, err)
	require.Equal(t, "hello there", out)
}

func TestClient_Generate_ProtocolError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
	_, err := c.Generate(context.Background(), "llama3", "say hi", Options{})
	require.Error(t, err)
}

func TestClient_GenerateStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		chunks := []generateResponse{
			{Response: "foo", Done: false},
			{Response: "bar", Done: false},
			{Response: "", Done: true},
		}
		for _, c := range chunks {
			_ = json.NewEncoder(w).Encode(c)
			flusher.Flush()
		}
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
	stream, err := c.GenerateStream(context.Background(), "llama3", "say hi", Options{})
	require.NoError(t, err)

	var deltas []string
	sawDone := false
	for chunk := range stream {
		require.NoError(t, chunk.Err)
		if chunk.Done {
			sawDone = true
			continue
		}
		deltas = append(deltas, chunk.Delta)
	}
	require.True(t, sawDone)
	require.Equal(t, []string{"foo", "bar"}, deltas)
}

func TestClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embeddings", r.URL.Path)
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.1, 0.2, 0.3}})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
	vec, err := c.Embed(context.Background(), "nomic-embed-text", "some text")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []ModelInfo{{Name: "llama3"}, {Name: "nomic-embed-text"}},
		})
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, TimeoutSeconds: 5}, nil)
	models, err := c.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
}
