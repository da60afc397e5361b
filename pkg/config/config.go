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

// Package config loads and validates the gateway's runtime configuration.
//
// Precedence (highest wins): environment variables > YAML file > compiled
// defaults. Example YAML:
//
//	llm_base_url: http://localhost:11434
//	llm_generation_model: llama3
//	rag_backend_default: framework
//	rag_vectorstore: persistent
//	rag_vectorstore_path: ./data/vectors
package config

import (
	"fmt"
	"strings"

	"github.com/kadirpekel/docgateway/pkg/apperrors"
)

// Config is the complete runtime configuration for the gateway.
type Config struct {
	// LLM runtime connection.
	LLMBaseURL          string `yaml:"llm_base_url" mapstructure:"llm_base_url"`
	LLMTimeoutSeconds   int    `yaml:"llm_timeout_seconds" mapstructure:"llm_timeout_seconds"`
	LLMGenerationModel  string `yaml:"llm_generation_model" mapstructure:"llm_generation_model"`
	LLMEmbeddingModel   string `yaml:"llm_embedding_model" mapstructure:"llm_embedding_model"`
	LLMPoolSize         int    `yaml:"llm_pool_size" mapstructure:"llm_pool_size"`

	// RAG tunables.
	RAGEnabled          bool   `yaml:"rag_enabled" mapstructure:"rag_enabled"`
	RAGTopK             int    `yaml:"rag_top_k" mapstructure:"rag_top_k"`
	RAGMaxContextChars  int    `yaml:"rag_max_context_chars" mapstructure:"rag_max_context_chars"`
	RAGChunkSize        int    `yaml:"rag_chunk_size" mapstructure:"rag_chunk_size"`
	RAGChunkOverlap     int    `yaml:"rag_chunk_overlap" mapstructure:"rag_chunk_overlap"`
	RAGBackendDefault   string `yaml:"rag_backend_default" mapstructure:"rag_backend_default"` // manual | framework
	RAGVectorstore      string `yaml:"rag_vectorstore" mapstructure:"rag_vectorstore"`          // flat | persistent; applies to both backends (manual persists to <path>/manual.json only when persistent)
	RAGVectorstorePath  string `yaml:"rag_vectorstore_path" mapstructure:"rag_vectorstore_path"`
	RAGUploadDir        string `yaml:"rag_upload_dir" mapstructure:"rag_upload_dir"`

	// Agent loop.
	AgentMaxSteps int `yaml:"agent_max_steps" mapstructure:"agent_max_steps"`

	// Ambient stack.
	LogLevel             string  `yaml:"log_level" mapstructure:"log_level"`
	LogFormat            string  `yaml:"log_format" mapstructure:"log_format"`
	TracingEnabled       bool    `yaml:"tracing_enabled" mapstructure:"tracing_enabled"`
	TracingExporter      string  `yaml:"tracing_exporter" mapstructure:"tracing_exporter"` // stdout | otlp-grpc
	TracingEndpointURL   string  `yaml:"tracing_endpoint_url" mapstructure:"tracing_endpoint_url"`
	TracingSamplingRatio float64 `yaml:"tracing_sampling_ratio" mapstructure:"tracing_sampling_ratio"`
	MetricsEnabled       bool    `yaml:"metrics_enabled" mapstructure:"metrics_enabled"`
	HTTPAdminAddr        string  `yaml:"http_admin_addr" mapstructure:"http_admin_addr"`
	WSAddr               string  `yaml:"ws_addr" mapstructure:"ws_addr"`
	WSPath               string  `yaml:"ws_path" mapstructure:"ws_path"`
}

// SetDefaults fills every unset field with the gateway's compiled defaults.
func (c *Config) SetDefaults() {
	if c.LLMBaseURL == "" {
		c.LLMBaseURL = "http://localhost:11434"
	}
	if c.LLMTimeoutSeconds <= 0 {
		c.LLMTimeoutSeconds = 60
	}
	if c.LLMGenerationModel == "" {
		c.LLMGenerationModel = "llama3"
	}
	if c.LLMEmbeddingModel == "" {
		c.LLMEmbeddingModel = "nomic-embed-text"
	}
	if c.LLMPoolSize <= 0 {
		c.LLMPoolSize = 8
	}

	if c.RAGTopK <= 0 {
		c.RAGTopK = 4
	}
	if c.RAGMaxContextChars <= 0 {
		c.RAGMaxContextChars = 4000
	}
	if c.RAGChunkSize <= 0 {
		c.RAGChunkSize = 800
	}
	if c.RAGChunkOverlap <= 0 {
		c.RAGChunkOverlap = 200
	}
	if c.RAGBackendDefault == "" {
		c.RAGBackendDefault = "manual"
	}
	if c.RAGVectorstore == "" {
		c.RAGVectorstore = "flat"
	}

	if c.AgentMaxSteps <= 0 {
		c.AgentMaxSteps = 5
	}

	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "simple"
	}
	if c.TracingExporter == "" {
		c.TracingExporter = "stdout"
	}
	if c.TracingSamplingRatio <= 0 {
		c.TracingSamplingRatio = 1.0
	}
	if c.HTTPAdminAddr == "" {
		c.HTTPAdminAddr = ":8080"
	}
	if c.WSAddr == "" {
		c.WSAddr = ":8081"
	}
	if c.WSPath == "" {
		c.WSPath = "/ws"
	}
}

// Validate checks the configuration's invariants, returning a
// *apperrors.ConfigError describing the first violation found.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLMBaseURL) == "" {
		return apperrors.NewConfigInvalid("llm_base_url", "llm_base_url must not be empty", nil)
	}
	if c.LLMTimeoutSeconds <= 0 {
		return apperrors.NewConfigInvalid("llm_timeout_seconds", "llm_timeout_seconds must be positive", nil)
	}
	if c.RAGChunkSize <= c.RAGChunkOverlap {
		return apperrors.NewConfigInvalid("rag_chunk_size",
			fmt.Sprintf("rag_chunk_size (%d) must be greater than rag_chunk_overlap (%d)", c.RAGChunkSize, c.RAGChunkOverlap), nil)
	}
	if c.RAGBackendDefault != "manual" && c.RAGBackendDefault != "framework" {
		return apperrors.NewConfigInvalid("rag_backend_default", fmt.Sprintf("rag_backend_default must be manual or framework, got %q", c.RAGBackendDefault), nil)
	}
	if c.RAGVectorstore != "flat" && c.RAGVectorstore != "persistent" {
		return apperrors.NewConfigInvalid("rag_vectorstore", fmt.Sprintf("rag_vectorstore must be flat or persistent, got %q", c.RAGVectorstore), nil)
	}
	if c.RAGVectorstore == "persistent" && strings.TrimSpace(c.RAGVectorstorePath) == "" {
		return apperrors.NewConfigInvalid("rag_vectorstore_path", "rag_vectorstore_path is required when rag_vectorstore is persistent", nil)
	}
	if c.AgentMaxSteps <= 0 {
		return apperrors.NewConfigInvalid("agent_max_steps", "agent_max_steps must be positive", nil)
	}
	if c.TracingSamplingRatio < 0 || c.TracingSamplingRatio > 1 {
		return apperrors.NewConfigInvalid("tracing_sampling_ratio", "tracing_sampling_ratio must be within [0,1]", nil)
	}
	return nil
}
