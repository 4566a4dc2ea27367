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

// Package embedders provides text embedding providers for semantic search.
//
// A provider is loaded once at startup and reused; batches preserve input
// order. Providers that cannot be reached return ErrUnavailable, which the
// caller maps to degraded keyword-only behavior or a 503.
package embedders

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadirpekel/hound/pkg/config"
)

// ErrUnavailable marks an embedder that failed to load or connect.
var ErrUnavailable = errors.New("embedder unavailable")

// Provider produces vector embeddings from text.
type Provider interface {
	// Embed converts text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings,
	// returned in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Model returns the model name being used.
	Model() string

	// Close releases any resources held by the provider.
	Close() error
}

// New creates an embedding provider from configuration.
func New(cfg *config.EmbedderConfig) (Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedder config cannot be nil")
	}

	switch cfg.Type {
	case "ollama":
		return NewOllama(cfg)
	case "openai":
		return NewOpenAI(cfg)
	case "gemini":
		return NewGemini(cfg)
	case "mock":
		return NewMock(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedder type: %s", cfg.Type)
	}
}

// embedOneByOne implements EmbedBatch for providers whose API takes a
// single text per call.
func embedOneByOne(ctx context.Context, p Provider, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("failed to embed text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = vec
	}
	return vectors, nil
}
