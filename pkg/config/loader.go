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

package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/kadirpekel/docgateway/pkg/config/provider"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Loader loads and watches configuration from a Provider.
type Loader struct {
	provider provider.Provider
	onChange func(*Config)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithOnChange sets a callback invoked when config changes.
func WithOnChange(fn func(*Config)) LoaderOption {
	return func(l *Loader) {
		l.onChange = fn
	}
}

// NewLoader creates a Loader with the given provider.
func NewLoader(p provider.Provider, opts ...LoaderOption) *Loader {
	l := &Loader{
		provider: p,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads, parses, and processes the configuration.
func (l *Loader) Load(ctx context.Context) (*Config, error) {
	// 1. Read raw bytes from provider
	data, err := l.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Parse YAML/JSON into map
	rawMap, err := parseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// 3. Expand environment variables
	expandedMap := expandEnvVars(rawMap)

	// 4. Decode into Config struct
	cfg := &Config{}
	if err := decodeConfig(expandedMap, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	// 5. Apply the final environment-variable override layer (highest
	// precedence, wins over whatever YAML/defaults produced so far).
	applyEnvOverrides(cfg)

	// 6. Apply defaults
	cfg.SetDefaults()

	// 7. Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// envOverrides maps each recognized option's uppercase environment
// variable name to a setter applied against the decoded Config. Env
// always wins over YAML, per the stated precedence.
var envOverrides = map[string]func(*Config, string){
	"LLM_BASE_URL":            func(c *Config, v string) { c.LLMBaseURL = v },
	"LLM_TIMEOUT_SECONDS":     func(c *Config, v string) { setInt(&c.LLMTimeoutSeconds, v) },
	"LLM_GENERATION_MODEL":    func(c *Config, v string) { c.LLMGenerationModel = v },
	"LLM_EMBEDDING_MODEL":     func(c *Config, v string) { c.LLMEmbeddingModel = v },
	"LLM_POOL_SIZE":           func(c *Config, v string) { setInt(&c.LLMPoolSize, v) },
	"RAG_ENABLED":             func(c *Config, v string) { setBool(&c.RAGEnabled, v) },
	"RAG_TOP_K":               func(c *Config, v string) { setInt(&c.RAGTopK, v) },
	"RAG_MAX_CONTEXT_CHARS":   func(c *Config, v string) { setInt(&c.RAGMaxContextChars, v) },
	"RAG_CHUNK_SIZE":          func(c *Config, v string) { setInt(&c.RAGChunkSize, v) },
	"RAG_CHUNK_OVERLAP":       func(c *Config, v string) { setInt(&c.RAGChunkOverlap, v) },
	"RAG_BACKEND_DEFAULT":     func(c *Config, v string) { c.RAGBackendDefault = v },
	"RAG_VECTORSTORE":         func(c *Config, v string) { c.RAGVectorstore = v },
	"RAG_VECTORSTORE_PATH":    func(c *Config, v string) { c.RAGVectorstorePath = v },
	"RAG_UPLOAD_DIR":          func(c *Config, v string) { c.RAGUploadDir = v },
	"AGENT_MAX_STEPS":         func(c *Config, v string) { setInt(&c.AgentMaxSteps, v) },
	"LOG_LEVEL":               func(c *Config, v string) { c.LogLevel = v },
	"LOG_FORMAT":              func(c *Config, v string) { c.LogFormat = v },
	"TRACING_ENABLED":         func(c *Config, v string) { setBool(&c.TracingEnabled, v) },
	"TRACING_EXPORTER":        func(c *Config, v string) { c.TracingExporter = v },
	"TRACING_ENDPOINT_URL":    func(c *Config, v string) { c.TracingEndpointURL = v },
	"TRACING_SAMPLING_RATIO":  func(c *Config, v string) { setFloat(&c.TracingSamplingRatio, v) },
	"METRICS_ENABLED":         func(c *Config, v string) { setBool(&c.MetricsEnabled, v) },
	"HTTP_ADMIN_ADDR":         func(c *Config, v string) { c.HTTPAdminAddr = v },
	"WS_ADDR":                 func(c *Config, v string) { c.WSAddr = v },
	"WS_PATH":                 func(c *Config, v string) { c.WSPath = v },
}

func applyEnvOverrides(cfg *Config) {
	for envVar, set := range envOverrides {
		if v, ok := os.LookupEnv(envVar); ok && v != "" {
			set(cfg, v)
		}
	}
}

func setInt(dst *int, v string) {
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
		*dst = n
	}
}

func setFloat(dst *float64, v string) {
	var f float64
	if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
		*dst = f
	}
}

func setBool(dst *bool, v string) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		*dst = true
	case "0", "false", "no", "off":
		*dst = false
	}
}

// Watch starts watching for config changes.
// When changes are detected, the config is reloaded and onChange is called.
// Blocks until ctx is cancelled.
func (l *Loader) Watch(ctx context.Context) error {
	changes, err := l.provider.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}

	if changes == nil {
		slog.Info("Config watching not supported by provider", "type", l.provider.Type())
		<-ctx.Done()
		return ctx.Err()
	}

	slog.Info("Started watching for config changes", "type", l.provider.Type())

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return nil // Channel closed
			}

			cfg, err := l.Load(ctx)
			if err != nil {
				slog.Error("Failed to reload config", "error", err)
				continue
			}

			slog.Info("Configuration reloaded successfully")
			if l.onChange != nil {
				l.onChange(cfg)
			}
		}
	}
}

// Close releases resources held by the loader.
func (l *Loader) Close() error {
	return l.provider.Close()
}

// Provider returns the underlying provider (for hot-reload).
func (l *Loader) Provider() provider.Provider {
	return l.provider
}

// parseBytes parses raw bytes into a map.
// Supports YAML (primary) and JSON (fallback).
func parseBytes(data []byte) (map[string]any, error) {
	var result map[string]any

	// Try YAML first (YAML is a superset of JSON)
	if err := yaml.Unmarshal(data, &result); err == nil {
		return result, nil
	}

	// Fallback to JSON
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse as YAML or JSON: %w", err)
	}

	return result, nil
}

// decodeConfig decodes a map into a Config struct using mapstructure.
func decodeConfig(input map[string]any, output *Config) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           output,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(input); err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	return nil
}

// expandEnvVars recursively expands ${VAR} and $VAR patterns in a map.
func expandEnvVars(input map[string]any) map[string]any {
	result := make(map[string]any, len(input))
	for k, v := range input {
		result[k] = expandValue(v)
	}
	return result
}

func expandValue(v any) any {
	switch val := v.(type) {
	case string:
		return expandEnvString(val)
	case map[string]any:
		return expandEnvVars(val)
	case []any:
		result := make([]any, len(val))
		for i, item := range val {
			result[i] = expandValue(item)
		}
		return result
	default:
		return v
	}
}

// envVarPattern matches ${VAR}, ${VAR:-default}, and $VAR
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

func expandEnvString(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Handle ${VAR} and ${VAR:-default}
		if strings.HasPrefix(match, "${") {
			inner := match[2 : len(match)-1] // Remove ${ and }

			// Check for default value syntax: ${VAR:-default}
			if idx := strings.Index(inner, ":-"); idx != -1 {
				varName := inner[:idx]
				defaultVal := inner[idx+2:]
				if val := os.Getenv(varName); val != "" {
					return val
				}
				return defaultVal
			}

			// Simple ${VAR}
			return os.Getenv(inner)
		}

		// Handle $VAR
		varName := match[1:] // Remove $
		return os.Getenv(varName)
	})
}

// LoadConfig is a convenience function that creates a loader and loads config.
func LoadConfig(ctx context.Context, opts provider.ProviderConfig) (*Config, *Loader, error) {
	p, err := provider.New(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create provider: %w", err)
	}

	loader := NewLoader(p)
	cfg, err := loader.Load(ctx)
	if err != nil {
		p.Close()
		return nil, nil, err
	}

	return cfg, loader, nil
}

// LoadConfigFile is a convenience function for loading from a file.
func LoadConfigFile(ctx context.Context, path string) (*Config, *Loader, error) {
	return LoadConfig(ctx, provider.ProviderConfig{
		Type: provider.TypeFile,
		Path: path,
	})
}
