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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kadirpekel/docgateway/pkg/agentloop"
	"github.com/kadirpekel/docgateway/pkg/config"
	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/logger"
	"github.com/kadirpekel/docgateway/pkg/observability"
	"github.com/kadirpekel/docgateway/pkg/orchestrator"
	"github.com/kadirpekel/docgateway/pkg/rag"
	"github.com/kadirpekel/docgateway/pkg/server"
	"github.com/kadirpekel/docgateway/pkg/session"
	"github.com/kadirpekel/docgateway/pkg/tokenizer"
	"github.com/kadirpekel/docgateway/pkg/tools"
)

// ServeCmd starts the gateway: a WebSocket session server for chat
// clients and a separate admin HTTP server for models/RAG/agent
// management and the Prometheus scrape endpoint.
type ServeCmd struct {
	HTTPAdminAddr string `name:"http-admin-addr" help:"Admin HTTP server address (overrides config)."`
	WSAddr        string `name:"ws-addr" help:"WebSocket server address (overrides config)."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if c.HTTPAdminAddr != "" {
		cfg.HTTPAdminAddr = c.HTTPAdminAddr
	}
	if c.WSAddr != "" {
		cfg.WSAddr = c.WSAddr
	}

	initLogger(cli, cfg)
	printBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerProvider, err := observability.InitGlobalTracer(ctx, observability.TracerConfig{
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		EndpointURL:  cfg.TracingEndpointURL,
		SamplingRate: cfg.TracingSamplingRatio,
		ServiceName:  "docgateway",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}

	metrics, err := observability.NewMetrics(&observability.MetricsConfig{Enabled: cfg.MetricsEnabled})
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	llm := llmclient.New(llmclient.Config{
		BaseURL:        cfg.LLMBaseURL,
		TimeoutSeconds: cfg.LLMTimeoutSeconds,
		PoolSize:       cfg.LLMPoolSize,
	}, metrics)

	backends, unified, err := buildRAGBackends(cfg, llm, metrics)
	if err != nil {
		return fmt.Errorf("failed to initialize RAG backends: %w", err)
	}

	registry := tools.NewRegistry()
	counter, err := tokenizer.NewCounter(cfg.LLMGenerationModel)
	if err != nil {
		slog.Warn("serve: falling back to unbounded agent history, tokenizer unavailable", "error", err)
	}
	agent := agentloop.New(agentloop.Config{
		Model:    cfg.LLMGenerationModel,
		MaxSteps: cfg.AgentMaxSteps,
	}, llm, registry, counter, metrics)

	orch := orchestrator.New(orchestrator.Config{
		RAGEnabled:      cfg.RAGEnabled,
		TopKDefault:     cfg.RAGTopK,
		MaxContextChars: cfg.RAGMaxContextChars,
		GenerationModel: cfg.LLMGenerationModel,
	}, llm, backends)

	sessionHandler := &session.Handler{
		Registry:       session.NewRegistry(),
		Orchestrator:   orch,
		Metrics:        metrics,
		DefaultBackend: cfg.RAGBackendDefault,
	}

	adminServer := server.New(
		server.Config{GenerationModelCatalog: []string{cfg.LLMGenerationModel}},
		llm, backends, unified, agent, metrics,
		cfg.LLMGenerationModel, cfg.LLMEmbeddingModel,
	)

	wsMux := http.NewServeMux()
	wsMux.Handle(cfg.WSPath, sessionHandler)
	wsServer := &http.Server{Addr: cfg.WSAddr, Handler: wsMux}
	adminHTTPServer := &http.Server{Addr: cfg.HTTPAdminAddr, Handler: adminServer}

	errChan := make(chan error, 2)
	go func() {
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("websocket server error: %w", err)
		}
	}()
	go func() {
		if err := adminHTTPServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("admin server error: %w", err)
		}
	}()

	fmt.Printf("\nGateway ready.\n")
	fmt.Printf("   WebSocket:   ws://%s%s\n", cfg.WSAddr, cfg.WSPath)
	fmt.Printf("   Admin HTTP:  http://%s/api\n", cfg.HTTPAdminAddr)
	fmt.Printf("   Health:      http://%s/health\n", cfg.HTTPAdminAddr)
	if cfg.MetricsEnabled {
		fmt.Printf("   Metrics:     http://%s/metrics\n", cfg.HTTPAdminAddr)
	}
	fmt.Printf("   RAG backend default: %s (vectorstore: %s)\n", cfg.RAGBackendDefault, cfg.RAGVectorstore)
	fmt.Println("\nPress Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		slog.Info("serve: shutdown signal received")
	case err := <-errChan:
		slog.Error("serve: server error", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	var shutdownErrs []error
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("websocket server: %w", err))
	}
	if err := adminHTTPServer.Shutdown(shutdownCtx); err != nil {
		shutdownErrs = append(shutdownErrs, fmt.Errorf("admin server: %w", err))
	}
	for name, b := range backends {
		if err := b.Close(shutdownCtx); err != nil {
			shutdownErrs = append(shutdownErrs, fmt.Errorf("rag backend %s: %w", name, err))
		}
	}
	if shutter, ok := tracerProvider.(interface{ Shutdown(context.Context) error }); ok {
		if err := shutter.Shutdown(shutdownCtx); err != nil {
			shutdownErrs = append(shutdownErrs, fmt.Errorf("tracer provider: %w", err))
		}
	}

	if len(shutdownErrs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", shutdownErrs)
	}
	slog.Info("serve: shut down gracefully")
	return nil
}

// loadConfig loads gateway configuration from cli.Config if set, or
// falls back to compiled defaults (zero-config mode: a local Ollama at
// its default port, manual RAG backend, in-memory flat index).
func loadConfig(cli *CLI) (*config.Config, error) {
	if cli.Config != "" {
		cfg, loader, err := config.LoadConfigFile(context.Background(), cli.Config)
		if err != nil {
			return nil, err
		}
		_ = loader.Close()
		return cfg, nil
	}

	cfg := &config.Config{}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cli *CLI, cfg *config.Config) {
	level := cli.LogLevel
	if level == "" {
		level = cfg.LogLevel
	}
	format := cli.LogFormat
	if format == "" {
		format = cfg.LogFormat
	}
	parsed, err := logger.ParseLevel(level)
	if err != nil {
		parsed, _ = logger.ParseLevel("info")
	}
	logger.Init(parsed, os.Stderr, format)
}

// buildRAGBackends constructs both the manual and framework backends
// (always both, regardless of which is the session default) so a
// client can switch between them mid-conversation, plus the unified
// ingestion path that writes to every backend at once.
func buildRAGBackends(cfg *config.Config, llm *llmclient.Client, metrics *observability.Metrics) (map[string]rag.Backend, *rag.Unified, error) {
	if cfg.RAGVectorstore == "persistent" {
		if err := os.MkdirAll(cfg.RAGVectorstorePath, 0o755); err != nil {
			return nil, nil, fmt.Errorf("creating vector store directory: %w", err)
		}
	}

	manual, err := rag.NewManual(rag.ManualConfig{
		EmbedModel:   cfg.LLMEmbeddingModel,
		ChunkSize:    cfg.RAGChunkSize,
		ChunkOverlap: cfg.RAGChunkOverlap,
		PersistPath:  flatPersistPath(cfg),
		Metrics:      metrics,
	}, llm)
	if err != nil {
		return nil, nil, err
	}

	framework, err := rag.NewFramework(rag.FrameworkConfig{
		EmbedModel:   cfg.LLMEmbeddingModel,
		ChunkSize:    cfg.RAGChunkSize,
		ChunkOverlap: cfg.RAGChunkOverlap,
		PersistPath:  frameworkPersistPath(cfg),
		Metrics:      metrics,
	}, llm)
	if err != nil {
		return nil, nil, err
	}

	backends := map[string]rag.Backend{
		"manual":    manual,
		"framework": framework,
	}
	unified := &rag.Unified{
		Backends:  []rag.Backend{manual, framework},
		UploadDir: cfg.RAGUploadDir,
	}
	return backends, unified, nil
}

// flatPersistPath returns the manual backend's on-disk index path when
// persistence is requested, empty otherwise (in-memory only).
func flatPersistPath(cfg *config.Config) string {
	if cfg.RAGVectorstore != "persistent" {
		return ""
	}
	return cfg.RAGVectorstorePath + "/manual.json"
}

func frameworkPersistPath(cfg *config.Config) string {
	if cfg.RAGVectorstore != "persistent" {
		return ""
	}
	return cfg.RAGVectorstorePath + "/framework"
}
