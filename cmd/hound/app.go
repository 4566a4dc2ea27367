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

package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kadirpekel/hound/pkg/auth"
	"github.com/kadirpekel/hound/pkg/chunk"
	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/embedders"
	"github.com/kadirpekel/hound/pkg/extract"
	"github.com/kadirpekel/hound/pkg/index"
	"github.com/kadirpekel/hound/pkg/ledger"
	"github.com/kadirpekel/hound/pkg/metrics"
	"github.com/kadirpekel/hound/pkg/ratelimit"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/scheduler"
	"github.com/kadirpekel/hound/pkg/search"
	"github.com/kadirpekel/hound/pkg/storage"
	"github.com/kadirpekel/hound/pkg/vector"
)

// app holds the assembled service graph. Everything shares the single
// SQLite database and the single data root.
type app struct {
	cfg       *config.Config
	db        *sql.DB
	registry  *registry.Registry
	ledger    *ledger.Ledger
	store     vector.ChunkStore
	lexical   *index.Inverted
	embedder  embedders.Provider
	scheduler *scheduler.Scheduler
	engine    *search.Engine
	keys      *auth.KeyStore
	issuer    *auth.TokenIssuer
	auth      *auth.Authenticator
	limiter   *ratelimit.Limiter
	metrics   *metrics.Metrics
}

// lexicalSnapshotPath is where the inverted index persists under the
// data root.
func lexicalSnapshotPath(dataDir string) string {
	return filepath.Join(dataDir, "lexical.gob")
}

// buildApp assembles the full service graph from configuration. The
// embedder is optional: when it cannot be constructed and degraded mode
// is allowed, the app comes up keyword-only.
func buildApp(cfg *config.Config) (*app, error) {
	dataDir := cfg.Storage.DataDir
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	db, err := storage.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	reg, err := registry.New(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load directory registry: %w", err)
	}

	led := ledger.New(db)

	embedder, err := embedders.New(&cfg.Embedder)
	if err != nil {
		if !cfg.Indexing.KeywordOnlyOnEmbedderFailure {
			db.Close()
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		slog.Warn("embedder unavailable, running keyword-only", "error", err)
		embedder = nil
	}

	dimension := cfg.Embedder.Dimension
	store, err := vector.New(&cfg.VectorStore, dataDir, dimension)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open vector store: %w", err)
	}

	lexical := index.NewInverted()
	lexicalPath := lexicalSnapshotPath(dataDir)
	if err := lexical.Load(lexicalPath); err != nil {
		slog.Warn("failed to load lexical index snapshot, rebuilding on next refresh", "error", err)
	}

	chunker, err := chunk.New(chunk.Config{
		Size:    cfg.Indexing.ChunkSize,
		Overlap: cfg.Indexing.ChunkOverlap,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create chunker: %w", err)
	}

	m := metrics.New()

	sched := scheduler.New(scheduler.Options{
		Config:      cfg.Indexing,
		Registry:    reg,
		Ledger:      led,
		Extractor:   extract.NewService(cfg.Indexing.MaxFileSize),
		Chunker:     chunker,
		Embedder:    embedder,
		Store:       store,
		Lexical:     lexical,
		LexicalPath: lexicalPath,
		Metrics:     m,
	})

	engine := search.New(search.Options{
		Config:   cfg.Search,
		Lexical:  lexical,
		Store:    store,
		Embedder: embedder,
		Ledger:   led,
		Metrics:  m,
	})

	keys := auth.NewKeyStore(db)
	issuer, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	return &app{
		cfg:       cfg,
		db:        db,
		registry:  reg,
		ledger:    led,
		store:     store,
		lexical:   lexical,
		embedder:  embedder,
		scheduler: sched,
		engine:    engine,
		keys:      keys,
		issuer:    issuer,
		auth:      auth.NewAuthenticator(keys, issuer, cfg.Auth.AdminKey),
		limiter:   ratelimit.New(cfg.RateLimit),
		metrics:   m,
	}, nil
}

func (a *app) Close() {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	if err := a.store.Close(); err != nil {
		slog.Error("failed to close vector store", "error", err)
	}
	if err := a.db.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}
}
