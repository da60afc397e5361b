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

// Package llmclient talks to a locally hosted LLM runtime over HTTP
// (Ollama's /api/generate, /api/embeddings, /api/tags, /api/pull
// contract). It treats the runtime as a remote black box: no retry
// policy lives here, the caller decides whether to retry a failure.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/docgateway/pkg/apperrors"
	"github.com/kadirpekel/docgateway/pkg/httpclient"
	"github.com/kadirpekel/docgateway/pkg/observability"
)

var tracer = observability.GetTracer("docgateway.llmclient")

// Options carries per-request generation parameters.
type Options struct {
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"top_p,omitempty"`
	TopK        int      `json:"top_k,omitempty"`
	MaxNewTokens int     `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// Config configures a Client.
type Config struct {
	BaseURL        string
	TimeoutSeconds int
	PoolSize       int
	DefaultOptions Options
}

// Client is a thin HTTP client for the LLM runtime. It never retries;
// the Query Orchestrator decides what to do with a failure.
type Client struct {
	baseURL        string
	http           *httpclient.Client
	defaultOptions Options
	metrics        *observability.Metrics
}

// New builds a Client. PoolSize sizes the transport's per-host idle
// connection pool so concurrent sessions reuse connections rather than
// reconnecting for every turn. No retry policy is applied here: the
// Query Orchestrator decides what, if anything, to do about a failure.
func New(cfg Config, metrics *observability.Metrics) *Client {
	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 8
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = poolSize

	return &Client{
		baseURL: cfg.BaseURL,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout, Transport: transport}),
			httpclient.WithMaxRetries(0),
		),
		defaultOptions: cfg.DefaultOptions,
		metrics:        metrics,
	}
}

type generateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Generate issues a non-streaming completion request.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts Options) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Bool("llm.stream", false),
	))
	defer span.End()

	start := time.Now()
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: false, Options: mergeOptions(c.defaultOptions, opts)})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", apperrors.NewLLMProtocol("/api/generate", err)
	}

	resp, err := c.post(ctx, "/api/generate", body)
	if err != nil {
		c.recordOutcome("generate", model, start, err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.recordOutcome("generate", model, start, err)
		span.SetStatus(codes.Error, err.Error())
		return "", apperrors.NewLLMProtocol("/api/generate", err)
	}
	c.recordOutcome("generate", model, start, nil)
	c.metrics.RecordLLMTokens(model, estimateTokens(prompt), estimateTokens(out.Response))
	span.SetStatus(codes.Ok, "")
	return out.Response, nil
}

// StreamChunk is one element of a generation stream: either a text
// delta or, on the final chunk, Done=true with no further deltas.
type StreamChunk struct {
	Delta string
	Done  bool
	Err   error
}

// GenerateStream issues a streaming completion request. The returned
// channel is lazy, finite, and not restartable: it closes after the
// terminal chunk or when ctx is cancelled. Cancelling ctx aborts the
// in-flight HTTP request immediately.
func (c *Client) GenerateStream(ctx context.Context, model, prompt string, opts Options) (<-chan StreamChunk, error) {
	ctx, span := tracer.Start(ctx, "llm.generate", trace.WithAttributes(
		attribute.String("llm.model", model),
		attribute.Bool("llm.stream", true),
	))

	start := time.Now()
	body, err := json.Marshal(generateRequest{Model: model, Prompt: prompt, Stream: true, Options: mergeOptions(c.defaultOptions, opts)})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, apperrors.NewLLMProtocol("/api/generate", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return nil, apperrors.NewLLMProtocol("/api/generate", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil && resp != nil {
		resp.Body.Close()
		err = nil
	}
	if err != nil {
		wrapped := classifyTransportError(ctx, "/api/generate", err)
		c.recordOutcome("generate", model, start, wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		span.End()
		return nil, wrapped
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		wrapped := apperrors.NewLLMProtocol("/api/generate", fmt.Errorf("unexpected status %d", resp.StatusCode))
		c.recordOutcome("generate", model, start, wrapped)
		span.SetStatus(codes.Error, wrapped.Error())
		span.End()
		return nil, wrapped
	}

	out := make(chan StreamChunk)
	go func() {
		defer span.End()
		defer close(out)
		defer resp.Body.Close()

		reader := bufio.NewReader(resp.Body)
		var totalOut string
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				var chunk generateResponse
				if jsonErr := json.Unmarshal(bytes.TrimSpace(line), &chunk); jsonErr == nil {
					totalOut += chunk.Response
					select {
					case out <- StreamChunk{Delta: chunk.Response, Done: chunk.Done}:
					case <-ctx.Done():
						c.recordOutcome("generate", model, start, ctx.Err())
						span.SetStatus(codes.Error, ctx.Err().Error())
						return
					}
					if chunk.Done {
						c.recordOutcome("generate", model, start, nil)
						c.metrics.RecordLLMTokens(model, estimateTokens(prompt), estimateTokens(totalOut))
						span.SetStatus(codes.Ok, "")
						return
					}
				}
			}
			if err != nil {
				if err != io.EOF {
					wrapped := classifyTransportError(ctx, "/api/generate", err)
					select {
					case out <- StreamChunk{Err: wrapped}:
					case <-ctx.Done():
					}
					c.recordOutcome("generate", model, start, wrapped)
					span.SetStatus(codes.Error, wrapped.Error())
				} else {
					c.recordOutcome("generate", model, start, nil)
					span.SetStatus(codes.Ok, "")
				}
				return
			}
		}
	}()

	return out, nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed computes the embedding vector for text using model.
func (c *Client) Embed(ctx context.Context, model, text string) ([]float32, error) {
	ctx, span := tracer.Start(ctx, "llm.embed", trace.WithAttributes(attribute.String("llm.model", model)))
	defer span.End()

	start := time.Now()
	body, err := json.Marshal(embedRequest{Model: model, Prompt: text})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.NewLLMProtocol("/api/embeddings", err)
	}

	resp, err := c.post(ctx, "/api/embeddings", body)
	if err != nil {
		c.recordOutcome("embed", model, start, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.recordOutcome("embed", model, start, err)
		span.SetStatus(codes.Error, err.Error())
		return nil, apperrors.NewLLMProtocol("/api/embeddings", err)
	}
	c.recordOutcome("embed", model, start, nil)
	span.SetStatus(codes.Ok, "")
	return out.Embedding, nil
}

// ModelInfo describes one entry from the runtime's model catalog.
type ModelInfo struct {
	Name string `json:"name"`
}

// ListModels returns the runtime's installed model catalog.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, apperrors.NewLLMProtocol("/api/tags", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransportError(ctx, "/api/tags", err)
	}
	defer resp.Body.Close()

	var out struct {
		Models []ModelInfo `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, apperrors.NewLLMProtocol("/api/tags", err)
	}
	return out.Models, nil
}

// PullModel requests the runtime pull (download) a model by name.
func (c *Client) PullModel(ctx context.Context, name string) error {
	body, err := json.Marshal(map[string]string{"name": name})
	if err != nil {
		return apperrors.NewLLMProtocol("/api/pull", err)
	}
	resp, err := c.post(ctx, "/api/pull", body)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewLLMProtocol(path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil && resp == nil {
		return nil, classifyTransportError(ctx, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, apperrors.NewLLMProtocol(path, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return resp, nil
}

func (c *Client) recordOutcome(operation, model string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		c.metrics.RecordLLMError(operation, errorKind(err))
	}
	c.metrics.RecordLLMCall(operation, model, outcome, time.Since(start))
}

func errorKind(err error) string {
	switch {
	case isKind(err, string(apperrors.KindLLMTimeout)):
		return string(apperrors.KindLLMTimeout)
	case isKind(err, string(apperrors.KindLLMUnavailable)):
		return string(apperrors.KindLLMUnavailable)
	default:
		return string(apperrors.KindLLMProtocol)
	}
}

func isKind(err error, kind string) bool {
	type hasKind interface{ Kind() string }
	if k, ok := err.(hasKind); ok {
		return k.Kind() == kind
	}
	return false
}

func classifyTransportError(ctx context.Context, endpoint string, err error) error {
	if ctx.Err() != nil {
		return apperrors.NewLLMTimeout(endpoint, ctx.Err())
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewLLMTimeout(endpoint, err)
	}
	return apperrors.NewLLMUnavailable(endpoint, err)
}

func mergeOptions(defaults, override Options) Options {
	merged := defaults
	if override.Temperature != 0 {
		merged.Temperature = override.Temperature
	}
	if override.TopP != 0 {
		merged.TopP = override.TopP
	}
	if override.TopK != 0 {
		merged.TopK = override.TopK
	}
	if override.MaxNewTokens != 0 {
		merged.MaxNewTokens = override.MaxNewTokens
	}
	if len(override.Stop) > 0 {
		merged.Stop = override.Stop
	}
	return merged
}

func estimateTokens(s string) int {
	return len(s) / 4
}
