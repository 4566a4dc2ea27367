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

// Package vector implements the persistent chunk store: vectors, chunk
// text and metadata keyed by chunk id, with cosine similarity queries.
//
// The embedded chromem provider is the default and requires no external
// services; qdrant is available for deployments with an external vector
// database. Embedding is always done externally; stores receive
// pre-computed vectors.
package vector

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/model"
)

// Chunk is one stored unit: text, optional vector and metadata.
type Chunk struct {
	// ID is the deterministic chunk id.
	ID string

	// Text is the chunk's character window.
	Text string

	// Vector is the embedding. Nil when semantic indexing is disabled;
	// such chunks are stored for snippets but excluded from semantic
	// queries.
	Vector []float32

	// Meta carries the source back-reference and position.
	Meta model.ChunkMeta
}

// Result is a semantic query hit, ordered by cosine similarity descending.
type Result struct {
	ID    string
	Score float32
	Text  string
	Meta  model.ChunkMeta
}

// Stats describes the store contents.
type Stats struct {
	TotalChunks int    `json:"total_chunks"`
	Dimension   int    `json:"dimension"`
	PersistDir  string `json:"persist_dir,omitempty"`
}

// ChunkStore is the persistent vector+metadata store. Durable across
// restarts; single-writer, multi-reader.
type ChunkStore interface {
	// Upsert inserts or replaces chunks.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Get fetches one chunk by id.
	Get(ctx context.Context, chunkID string) (*Chunk, bool)

	// DeleteBySource removes all chunks of a source. Idempotent.
	DeleteBySource(ctx context.Context, sourceID string) error

	// QuerySemantic returns up to k chunks ordered by cosine similarity
	// to the query vector, optionally restricted by a metadata filter.
	// Scores are in [-1, 1].
	QuerySemantic(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error)

	// Stats reports store contents.
	Stats(ctx context.Context) (Stats, error)

	// Close flushes persistence and releases resources.
	Close() error
}

// New creates a chunk store from configuration. dataDir anchors the
// default chromem persistence directory.
func New(cfg *config.VectorStoreConfig, dataDir string, dimension int) (ChunkStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("vector store config cannot be nil")
	}

	switch cfg.Type {
	case "chromem":
		persistPath := cfg.PersistPath
		if persistPath == "" {
			persistPath = filepath.Join(dataDir, "vectors")
		}
		return NewChromem(ChromemOptions{
			PersistPath: persistPath,
			Compress:    cfg.Compress,
			Collection:  cfg.Collection,
			Dimension:   dimension,
		})
	case "qdrant":
		return NewQdrant(QdrantOptions{
			Host:       cfg.Host,
			Port:       cfg.Port,
			APIKey:     cfg.APIKey,
			UseTLS:     cfg.EnableTLS,
			Collection: cfg.Collection,
			Dimension:  dimension,
		})
	default:
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
}

// metadata keys shared by providers.
const (
	metaSourceID      = "source_id"
	metaDisplayName   = "display_name"
	metaFileType      = "file_type"
	metaOrdinal       = "ordinal"
	metaTotalInSource = "total_in_source"
	metaEmbedded      = "embedded"
)

func metaToMap(meta model.ChunkMeta, embedded bool) map[string]string {
	return map[string]string{
		metaSourceID:      meta.SourceID,
		metaDisplayName:   meta.DisplayName,
		metaFileType:      meta.FileType,
		metaOrdinal:       strconv.Itoa(meta.Ordinal),
		metaTotalInSource: strconv.Itoa(meta.TotalInSource),
		metaEmbedded:      strconv.FormatBool(embedded),
	}
}

func metaFromMap(m map[string]string) model.ChunkMeta {
	ordinal, _ := strconv.Atoi(m[metaOrdinal])
	total, _ := strconv.Atoi(m[metaTotalInSource])
	return model.ChunkMeta{
		SourceID:      m[metaSourceID],
		DisplayName:   m[metaDisplayName],
		FileType:      m[metaFileType],
		Ordinal:       ordinal,
		TotalInSource: total,
	}
}
