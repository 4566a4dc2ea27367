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

// Package search implements keyword, semantic and hybrid retrieval over
// the lexical index and the chunk store, with snippet extraction.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/embedders"
	"github.com/kadirpekel/hound/pkg/index"
	"github.com/kadirpekel/hound/pkg/ledger"
	"github.com/kadirpekel/hound/pkg/metrics"
	"github.com/kadirpekel/hound/pkg/model"
	"github.com/kadirpekel/hound/pkg/vector"
)

var (
	ErrEmptyQuery          = errors.New("query must not be empty")
	ErrUnknownType         = errors.New("unknown search type")
	ErrEmbedderUnavailable = errors.New("embedder unavailable")
)

// Type selects the retrieval strategy.
type Type string

const (
	TypeKeyword  Type = "keyword"
	TypeSemantic Type = "semantic"
	TypeHybrid   Type = "hybrid"
)

// Request is one search invocation. Zero Limit takes the configured
// default. A nil Threshold takes the configured default; an explicit
// zero passes through and admits every similarity.
type Request struct {
	Query     string   `json:"query"`
	Type      Type     `json:"type"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"threshold"`
}

// Result is one hit, the best-scoring chunk of its source.
type Result struct {
	SourceID    string  `json:"source_id"`
	DisplayName string  `json:"display_name"`
	FileType    string  `json:"file_type"`
	SizeBytes   int64   `json:"size_bytes"`
	Score       float64 `json:"score"`
	Snippet     string  `json:"snippet"`
}

// scored is an internal per-chunk score carrier before per-source
// deduplication.
type scored struct {
	chunkID string
	score   float64
	text    string
	meta    model.ChunkMeta
}

// Engine runs searches. The embedder may be nil, in which case semantic
// and hybrid requests fail with ErrEmbedderUnavailable.
type Engine struct {
	cfg      config.SearchConfig
	lexical  *index.Inverted
	store    vector.ChunkStore
	embedder embedders.Provider
	ledger   *ledger.Ledger
	metrics  *metrics.Metrics
}

// Options collects the engine's collaborators.
type Options struct {
	Config   config.SearchConfig
	Lexical  *index.Inverted
	Store    vector.ChunkStore
	Embedder embedders.Provider
	Ledger   *ledger.Ledger
	Metrics  *metrics.Metrics
}

func New(opts Options) *Engine {
	return &Engine{
		cfg:      opts.Config,
		lexical:  opts.Lexical,
		store:    opts.Store,
		embedder: opts.Embedder,
		ledger:   opts.Ledger,
		metrics:  opts.Metrics,
	}
}

// Search dispatches on the request type and assembles one result per
// source.
func (e *Engine) Search(ctx context.Context, req Request) ([]Result, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}
	if req.Type == "" {
		req.Type = TypeHybrid
	}
	if req.Limit <= 0 {
		req.Limit = e.cfg.DefaultLimit
	}
	threshold := e.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	start := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.ObserveSearch(string(req.Type), time.Since(start))
		}
	}()

	var (
		hits []scored
		err  error
	)
	switch req.Type {
	case TypeKeyword:
		hits, err = e.keyword(ctx, req.Query)
	case TypeSemantic:
		hits, err = e.semantic(ctx, req.Query, req.Limit, threshold)
	case TypeHybrid:
		hits, err = e.hybrid(ctx, req.Query, req.Limit, threshold)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, req.Type)
	}
	if err != nil {
		return nil, err
	}

	return e.assemble(ctx, hits, index.Tokenize(req.Query), req.Limit), nil
}

// keyword scores the union of posting lists with TF-IDF. Zero scores are
// dropped; ties break on lower ordinal, then source id.
func (e *Engine) keyword(ctx context.Context, query string) ([]scored, error) {
	tokens := index.Tokenize(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	var hits []scored
	for _, chunkID := range e.lexical.Candidates(tokens) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score := e.lexical.Score(tokens, chunkID)
		if score <= 0 {
			continue
		}
		chunk, ok := e.store.Get(ctx, chunkID)
		if !ok {
			continue
		}
		hits = append(hits, scored{chunkID: chunkID, score: score, text: chunk.Text, meta: chunk.Meta})
	}
	sortScored(hits)
	return hits, nil
}

// semantic embeds the query, over-fetches and filters by threshold.
func (e *Engine) semantic(ctx context.Context, query string, limit int, threshold float64) ([]scored, error) {
	if e.embedder == nil {
		return nil, ErrEmbedderUnavailable
	}
	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		if errors.Is(err, embedders.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %s", ErrEmbedderUnavailable, err)
		}
		return nil, err
	}

	overFetch := e.cfg.OverFetch
	if overFetch <= 0 {
		overFetch = 3
	}
	raw, err := e.store.QuerySemantic(ctx, queryVec, limit*overFetch, nil)
	if err != nil {
		return nil, err
	}

	var hits []scored
	for _, r := range raw {
		if float64(r.Score) < threshold {
			continue
		}
		hits = append(hits, scored{chunkID: r.ID, score: float64(r.Score), text: r.Text, meta: r.Meta})
	}
	sortScored(hits)
	return hits, nil
}

// hybrid fuses both sides with min-max normalization. A chunk missing
// from one side contributes 0 for that side.
func (e *Engine) hybrid(ctx context.Context, query string, limit int, threshold float64) ([]scored, error) {
	semHits, err := e.semantic(ctx, query, limit, threshold)
	if err != nil {
		return nil, err
	}
	kwHits, err := e.keyword(ctx, query)
	if err != nil {
		return nil, err
	}

	alpha := 0.5
	if e.cfg.HybridAlpha != nil {
		alpha = *e.cfg.HybridAlpha
	}

	semNorm := normalize(semHits)
	kwNorm := normalize(kwHits)

	combined := make(map[string]scored)
	for _, h := range semHits {
		h.score = alpha * semNorm[h.chunkID]
		combined[h.chunkID] = h
	}
	for _, h := range kwHits {
		if existing, ok := combined[h.chunkID]; ok {
			existing.score += (1 - alpha) * kwNorm[h.chunkID]
			combined[h.chunkID] = existing
		} else {
			h.score = (1 - alpha) * kwNorm[h.chunkID]
			combined[h.chunkID] = h
		}
	}

	hits := make([]scored, 0, len(combined))
	for _, h := range combined {
		hits = append(hits, h)
	}
	sortScored(hits)
	return hits, nil
}

// normalize min-max scales scores to [0,1] per result set. A single-hit
// or constant set maps to 1.
func normalize(hits []scored) map[string]float64 {
	out := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	min, max := hits[0].score, hits[0].score
	for _, h := range hits[1:] {
		if h.score < min {
			min = h.score
		}
		if h.score > max {
			max = h.score
		}
	}
	for _, h := range hits {
		if max == min {
			out[h.chunkID] = 1
		} else {
			out[h.chunkID] = (h.score - min) / (max - min)
		}
	}
	return out
}

func sortScored(hits []scored) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		if hits[i].meta.Ordinal != hits[j].meta.Ordinal {
			return hits[i].meta.Ordinal < hits[j].meta.Ordinal
		}
		return hits[i].meta.SourceID < hits[j].meta.SourceID
	})
}

// assemble keeps the best chunk per source, fills sizes from the ledger
// and renders snippets.
func (e *Engine) assemble(ctx context.Context, hits []scored, queryTokens []string, limit int) []Result {
	window := e.cfg.SnippetWindow
	if window <= 0 {
		window = 200
	}

	seen := make(map[string]struct{})
	results := make([]Result, 0, limit)
	for _, h := range hits {
		if _, dup := seen[h.meta.SourceID]; dup {
			continue
		}
		seen[h.meta.SourceID] = struct{}{}

		var sizeBytes int64
		if e.ledger != nil {
			if state, found, err := e.ledger.Get(ctx, h.meta.SourceID); err == nil && found {
				sizeBytes = state.SizeBytes
			}
		}

		results = append(results, Result{
			SourceID:    h.meta.SourceID,
			DisplayName: h.meta.DisplayName,
			FileType:    h.meta.FileType,
			SizeBytes:   sizeBytes,
			Score:       h.score,
			Snippet:     Snippet(h.text, queryTokens, window),
		})
		if len(results) >= limit {
			break
		}
	}
	return results
}
