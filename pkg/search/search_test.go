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

package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/embedders"
	"github.com/kadirpekel/hound/pkg/index"
	"github.com/kadirpekel/hound/pkg/model"
	"github.com/kadirpekel/hound/pkg/vector"
)

type doc struct {
	sourceID string
	text     string
}

func newTestEngine(t *testing.T, docs []doc) *Engine {
	t.Helper()

	embedder := embedders.NewMock(16)
	store, err := vector.NewChromem(vector.ChromemOptions{Collection: "chunks", Dimension: 16})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lexical := index.NewInverted()

	ctx := context.Background()
	for _, d := range docs {
		id := model.ChunkID(d.sourceID, 0)
		vec, err := embedder.Embed(ctx, d.text)
		require.NoError(t, err)
		require.NoError(t, store.Upsert(ctx, []vector.Chunk{{
			ID:     id,
			Text:   d.text,
			Vector: vec,
			Meta: model.ChunkMeta{
				SourceID:      d.sourceID,
				DisplayName:   d.sourceID,
				FileType:      "txt",
				Ordinal:       0,
				TotalInSource: 1,
			},
		}}))
		lexical.Add(id, index.Tokenize(d.text))
	}

	cfg := config.SearchConfig{}
	cfg.SetDefaults()

	return New(Options{
		Config:   cfg,
		Lexical:  lexical,
		Store:    store,
		Embedder: embedder,
		Metrics:  nil,
	})
}

func threshold(v float64) *float64 { return &v }

var corpus = []doc{
	{"/docs/pets.txt", "cats and dogs are common household pets"},
	{"/docs/cooking.txt", "baking bread requires flour water salt and yeast"},
	{"/docs/astronomy.txt", "telescopes observe distant galaxies and nebulae"},
}

func TestEngine_Keyword(t *testing.T) {
	e := newTestEngine(t, corpus)

	results, err := e.Search(context.Background(), Request{Query: "dogs", Type: TypeKeyword})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/docs/pets.txt", results[0].SourceID)
	assert.Contains(t, results[0].Snippet, "**dogs**")
	assert.Greater(t, results[0].Score, 0.0)
}

func TestEngine_Keyword_NoMatches(t *testing.T) {
	e := newTestEngine(t, corpus)

	results, err := e.Search(context.Background(), Request{Query: "submarine", Type: TypeKeyword})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_Semantic(t *testing.T) {
	e := newTestEngine(t, corpus)

	// The mock embedder scores shared vocabulary higher.
	results, err := e.Search(context.Background(), Request{
		Query: "cats dogs pets", Type: TypeSemantic, Threshold: threshold(0.1),
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "/docs/pets.txt", results[0].SourceID)
}

func TestEngine_Semantic_ThresholdFilters(t *testing.T) {
	e := newTestEngine(t, corpus)

	results, err := e.Search(context.Background(), Request{
		Query: "cats", Type: TypeSemantic, Threshold: threshold(0.99),
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEngine_Semantic_ExplicitZeroThreshold(t *testing.T) {
	e := newTestEngine(t, corpus)
	e.cfg.DefaultThreshold = 0.99

	// An omitted threshold takes the configured default.
	results, err := e.Search(context.Background(), Request{
		Query: "cats dogs pets", Type: TypeSemantic,
	})
	require.NoError(t, err)
	assert.Empty(t, results)

	// An explicit zero is a real threshold, not a request for the
	// default, and admits every non-negative similarity.
	results, err = e.Search(context.Background(), Request{
		Query: "cats dogs pets", Type: TypeSemantic, Threshold: threshold(0),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, results)

	// Results weakly shrink as the threshold rises from zero.
	tighter, err := e.Search(context.Background(), Request{
		Query: "cats dogs pets", Type: TypeSemantic, Threshold: threshold(0.0001),
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(results), len(tighter))
}

func TestEngine_Hybrid(t *testing.T) {
	e := newTestEngine(t, corpus)

	results, err := e.Search(context.Background(), Request{
		Query: "bread flour", Type: TypeHybrid, Threshold: threshold(0.05),
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "/docs/cooking.txt", results[0].SourceID)
	// Top hit on both sides scores alpha*1 + (1-alpha)*1.
	assert.InDelta(t, 1.0, results[0].Score, 0.0001)
}

func TestEngine_Hybrid_AlphaZeroIsKeywordOnly(t *testing.T) {
	e := newTestEngine(t, corpus)
	zero := 0.0
	e.cfg.HybridAlpha = &zero

	kw, err := e.Search(context.Background(), Request{Query: "bread flour", Type: TypeKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, kw)

	hy, err := e.Search(context.Background(), Request{
		Query: "bread flour", Type: TypeHybrid, Threshold: threshold(0),
	})
	require.NoError(t, err)
	require.NotEmpty(t, hy)

	// With alpha zero the semantic side contributes nothing: the top
	// hybrid hit is the top keyword hit at its normalized score.
	assert.Equal(t, kw[0].SourceID, hy[0].SourceID)
	assert.InDelta(t, 1.0, hy[0].Score, 0.0001)
}

func TestEngine_DefaultsToHybrid(t *testing.T) {
	e := newTestEngine(t, corpus)

	results, err := e.Search(context.Background(), Request{Query: "galaxies", Threshold: threshold(0.05)})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "/docs/astronomy.txt", results[0].SourceID)
}

func TestEngine_EmptyQuery(t *testing.T) {
	e := newTestEngine(t, corpus)
	_, err := e.Search(context.Background(), Request{Query: ""})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestEngine_UnknownType(t *testing.T) {
	e := newTestEngine(t, corpus)
	_, err := e.Search(context.Background(), Request{Query: "x", Type: "fuzzy"})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestEngine_SemanticWithoutEmbedder(t *testing.T) {
	e := newTestEngine(t, corpus)
	e.embedder = nil

	_, err := e.Search(context.Background(), Request{Query: "cats", Type: TypeSemantic})
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)

	_, err = e.Search(context.Background(), Request{Query: "cats", Type: TypeHybrid})
	assert.ErrorIs(t, err, ErrEmbedderUnavailable)

	// Keyword search still works.
	results, err := e.Search(context.Background(), Request{Query: "cats", Type: TypeKeyword})
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestEngine_OneResultPerSource(t *testing.T) {
	docs := []doc{
		{"/docs/long.txt", "winter weather brings snow"},
		{"/docs/other.txt", "summer weather brings sunshine"},
	}
	e := newTestEngine(t, docs)

	// Add a second chunk for the same source.
	ctx := context.Background()
	id := model.ChunkID("/docs/long.txt", 1)
	embedder := embedders.NewMock(16)
	vec, err := embedder.Embed(ctx, "more winter weather and snow storms")
	require.NoError(t, err)
	require.NoError(t, e.store.Upsert(ctx, []vector.Chunk{{
		ID: id, Text: "more winter weather and snow storms", Vector: vec,
		Meta: model.ChunkMeta{SourceID: "/docs/long.txt", DisplayName: "/docs/long.txt", FileType: "txt", Ordinal: 1, TotalInSource: 2},
	}}))
	e.lexical.Add(id, index.Tokenize("more winter weather and snow storms"))

	results, err := e.Search(ctx, Request{Query: "weather snow", Type: TypeKeyword})
	require.NoError(t, err)

	sources := make(map[string]int)
	for _, r := range results {
		sources[r.SourceID]++
	}
	assert.Equal(t, 1, sources["/docs/long.txt"])
}

func TestEngine_Limit(t *testing.T) {
	// TF-IDF drops terms present in every chunk, so keep one document
	// without the query term.
	e := newTestEngine(t, []doc{
		{"/a.txt", "rare token alpha"},
		{"/b.txt", "rare token beta"},
		{"/c.txt", "rare token gamma"},
		{"/d.txt", "completely unrelated words"},
	})

	results, err := e.Search(context.Background(), Request{Query: "rare", Type: TypeKeyword, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
