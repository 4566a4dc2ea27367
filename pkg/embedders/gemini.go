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

package embedders

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/kadirpekel/hound/pkg/config"
)

// Gemini embeds text via the Gemini API.
type Gemini struct {
	cfg    *config.EmbedderConfig
	client *genai.Client
}

// NewGemini creates a Gemini-backed embedding provider.
func NewGemini(cfg *config.EmbedderConfig) (*Gemini, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = config.ProviderAPIKey("gemini")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required for gemini embedder", ErrUnavailable)
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gemini client: %v", ErrUnavailable, err)
	}

	return &Gemini{cfg: cfg, client: client}, nil
}

func (e *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	resp, err := e.client.Models.EmbedContent(ctx, e.cfg.Model, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("received empty embedding from gemini")
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *Gemini) Dimension() int {
	return e.cfg.Dimension
}

func (e *Gemini) Model() string {
	return e.cfg.Model
}

func (e *Gemini) Close() error {
	return nil
}

var _ Provider = (*Gemini)(nil)
