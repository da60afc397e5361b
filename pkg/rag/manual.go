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

package rag

import (
	"github.com/kadirpekel/docgateway/pkg/chunker"
	"github.com/kadirpekel/docgateway/pkg/llmclient"
	"github.com/kadirpekel/docgateway/pkg/observability"
	"github.com/kadirpekel/docgateway/pkg/tokenizer"
	"github.com/kadirpekel/docgateway/pkg/vectorindex"
)

// ManualConfig configures the manual backend: fixed-window chunking
// over a hand-rolled Flat vector index.
type ManualConfig struct {
	EmbedModel   string
	ChunkSize    int
	ChunkOverlap int
	PersistPath  string // empty disables persistence
	Metrics      *observability.Metrics
}

// NewManual builds the manual RAG backend.
func NewManual(cfg ManualConfig, llm *llmclient.Client) (Backend, error) {
	chunkCfg := chunker.Config{Size: cfg.ChunkSize, Overlap: cfg.ChunkOverlap}
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}

	index, err := vectorindex.NewFlat(cfg.EmbedModel, cfg.PersistPath)
	if err != nil {
		return nil, err
	}

	counter, _ := tokenizer.NewCounter(cfg.EmbedModel)

	return &backend{
		name:       "manual",
		llm:        llm,
		embedModel: cfg.EmbedModel,
		chunker:    chunker.NewFixedWindow(chunkCfg),
		index:      index,
		counter:    counter,
		metrics:    cfg.Metrics,
	}, nil
}
