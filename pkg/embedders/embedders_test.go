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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hound/pkg/config"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestNew_ProviderSelection(t *testing.T) {
	cfg := &config.EmbedderConfig{Type: "mock"}
	cfg.SetDefaults()
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "mock", p.Model())
	assert.Equal(t, 64, p.Dimension())

	_, err = New(&config.EmbedderConfig{Type: "quantum"})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)
}

func TestMock_Deterministic(t *testing.T) {
	e := NewMock(64)
	a, err := e.Embed(context.Background(), "python programming language")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "python programming language")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestMock_Normalized(t *testing.T) {
	e := NewMock(64)
	vec, err := e.Embed(context.Background(), "some text to embed")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestMock_SharedWordsAreCloser(t *testing.T) {
	e := NewMock(256)
	ctx := context.Background()

	a, _ := e.Embed(ctx, "machine learning algorithms")
	b, _ := e.Embed(ctx, "machine learning models")
	c, _ := e.Embed(ctx, "gardening tools shed")

	assert.Greater(t, cosine(a, b), cosine(a, c))
}

func TestMock_EmbedBatchPreservesOrder(t *testing.T) {
	e := NewMock(64)
	ctx := context.Background()

	texts := []string{"first text", "second text", "third text"}
	vectors, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, vectors[i])
	}
}

func TestOpenAI_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := &config.EmbedderConfig{Type: "openai"}
	cfg.SetDefaults()

	_, err := NewOpenAI(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestGemini_RequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	cfg := &config.EmbedderConfig{Type: "gemini"}
	cfg.SetDefaults()

	_, err := NewGemini(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}
