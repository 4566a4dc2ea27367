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

package vector

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// ChromemOptions configures the embedded chromem store.
type ChromemOptions struct {
	// PersistPath is the persistence directory. Empty keeps vectors in
	// memory only.
	PersistPath string

	// Compress enables gzip compression for persistence.
	Compress bool

	// Collection is the collection name holding chunks.
	Collection string

	// Dimension of stored vectors.
	Dimension int
}

// Chromem is the embedded chunk store. Vectors live in memory and are
// exported to a gob file under the persistence directory after writes.
// Single-process by design.
type Chromem struct {
	db        *chromem.DB
	opts      ChromemOptions
	mu        sync.Mutex
	col       *chromem.Collection
	embedFunc chromem.EmbeddingFunc
}

// NewChromem creates (and loads, when a snapshot exists) an embedded store.
func NewChromem(opts ChromemOptions) (*Chromem, error) {
	if opts.Collection == "" {
		opts.Collection = "chunks"
	}

	var db *chromem.DB
	if opts.PersistPath != "" {
		if err := os.MkdirAll(opts.PersistPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create persist directory: %w", err)
		}

		dbPath := snapshotPath(opts.PersistPath, opts.Compress)
		if _, statErr := os.Stat(dbPath); statErr == nil {
			loaded, err := chromem.NewPersistentDB(dbPath, opts.Compress)
			if err != nil {
				slog.Warn("failed to load existing vector database, creating new",
					"path", dbPath, "error", err)
				db = chromem.NewDB()
			} else {
				slog.Info("loaded vector database", "path", dbPath)
				db = loaded
			}
		} else {
			db = chromem.NewDB()
		}
	} else {
		db = chromem.NewDB()
	}

	// Vectors are always pre-computed; chromem must never embed.
	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding function called but vectors are pre-computed")
	}

	s := &Chromem{db: db, opts: opts, embedFunc: embedFunc}
	col, err := db.GetOrCreateCollection(opts.Collection, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to get/create collection %q: %w", opts.Collection, err)
	}
	s.col = col
	return s, nil
}

func snapshotPath(dir string, compress bool) string {
	p := filepath.Join(dir, "vectors.gob")
	if compress {
		p += ".gz"
	}
	return p
}

// placeholderVector produces a deterministic unit vector for chunks stored
// without an embedding. Such chunks carry embedded=false metadata and are
// filtered out of semantic queries.
func placeholderVector(chunkID string, dimension int) []float32 {
	if dimension <= 0 {
		dimension = 1
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(chunkID))
	vec := make([]float32, dimension)
	vec[int(h.Sum32())%dimension] = 1
	return vec
}

func (s *Chromem) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		embedded := len(c.Vector) > 0
		vec := c.Vector
		if !embedded {
			vec = placeholderVector(c.ID, s.opts.Dimension)
		}
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Text,
			Metadata:  metaToMap(c.Meta, embedded),
			Embedding: vec,
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return s.persistLocked()
}

func (s *Chromem) Get(ctx context.Context, chunkID string) (*Chunk, bool) {
	doc, err := s.col.GetByID(ctx, chunkID)
	if err != nil {
		return nil, false
	}
	return &Chunk{
		ID:     doc.ID,
		Text:   doc.Content,
		Vector: doc.Embedding,
		Meta:   metaFromMap(doc.Metadata),
	}, true
}

func (s *Chromem) DeleteBySource(ctx context.Context, sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.col.Count() == 0 {
		return nil
	}
	if err := s.col.Delete(ctx, map[string]string{metaSourceID: sourceID}, nil); err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", sourceID, err)
	}
	return s.persistLocked()
}

func (s *Chromem) QuerySemantic(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	where := map[string]string{metaEmbedded: "true"}
	for k, v := range filter {
		where[k] = v
	}

	// chromem rejects nResults above the collection size.
	if count := s.col.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}

	hits, err := s.col.QueryEmbedding(ctx, vector, k, where, nil)
	if err != nil {
		return nil, fmt.Errorf("semantic query failed: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:    h.ID,
			Score: h.Similarity,
			Text:  h.Content,
			Meta:  metaFromMap(h.Metadata),
		})
	}
	return results, nil
}

func (s *Chromem) Stats(ctx context.Context) (Stats, error) {
	return Stats{
		TotalChunks: s.col.Count(),
		Dimension:   s.opts.Dimension,
		PersistDir:  s.opts.PersistPath,
	}, nil
}

// Close persists the database.
func (s *Chromem) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistLocked()
}

func (s *Chromem) persistLocked() error {
	if s.opts.PersistPath == "" {
		return nil
	}
	dbPath := snapshotPath(s.opts.PersistPath, s.opts.Compress)
	if err := s.db.Export(dbPath, s.opts.Compress, ""); err != nil {
		return fmt.Errorf("failed to persist vector database: %w", err)
	}
	return nil
}

var _ ChunkStore = (*Chromem)(nil)
