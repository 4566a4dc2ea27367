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

// Package server exposes the HTTP JSON API: directory lifecycle, search,
// auth and stats, behind chi with auth and rate-limit middleware.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/hound/pkg/auth"
	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/embedders"
	"github.com/kadirpekel/hound/pkg/ledger"
	"github.com/kadirpekel/hound/pkg/metrics"
	"github.com/kadirpekel/hound/pkg/ratelimit"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/scheduler"
	"github.com/kadirpekel/hound/pkg/search"
	"github.com/kadirpekel/hound/pkg/vector"
)

// Server owns the router and the request-scoped collaborators.
type Server struct {
	cfg           *config.Config
	registry      *registry.Registry
	scheduler     *scheduler.Scheduler
	engine        *search.Engine
	ledger        *ledger.Ledger
	store         vector.ChunkStore
	embedder      embedders.Provider
	keys          *auth.KeyStore
	issuer        *auth.TokenIssuer
	authenticator *auth.Authenticator
	limiter       *ratelimit.Limiter
	metrics       *metrics.Metrics

	router     chi.Router
	httpServer *http.Server

	searchStats searchStats
}

// searchStats aggregates in-process search counters for /stats/search.
type searchStats struct {
	mu      sync.Mutex
	byType  map[string]int
	totalMS int64
	count   int
}

func (s *searchStats) record(searchType string, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.byType == nil {
		s.byType = make(map[string]int)
	}
	s.byType[searchType]++
	s.totalMS += elapsed.Milliseconds()
	s.count++
}

func (s *searchStats) snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	byType := make(map[string]int, len(s.byType))
	for k, v := range s.byType {
		byType[k] = v
	}
	avg := int64(0)
	if s.count > 0 {
		avg = s.totalMS / int64(s.count)
	}
	return map[string]any{
		"total_searches": s.count,
		"by_type":        byType,
		"avg_time_ms":    avg,
	}
}

// Options collects the server's collaborators.
type Options struct {
	Config        *config.Config
	Registry      *registry.Registry
	Scheduler     *scheduler.Scheduler
	Engine        *search.Engine
	Ledger        *ledger.Ledger
	Store         vector.ChunkStore
	Embedder      embedders.Provider
	Keys          *auth.KeyStore
	Issuer        *auth.TokenIssuer
	Authenticator *auth.Authenticator
	Limiter       *ratelimit.Limiter
	Metrics       *metrics.Metrics
}

func New(opts Options) *Server {
	s := &Server{
		cfg:           opts.Config,
		registry:      opts.Registry,
		scheduler:     opts.Scheduler,
		engine:        opts.Engine,
		ledger:        opts.Ledger,
		store:         opts.Store,
		embedder:      opts.Embedder,
		keys:          opts.Keys,
		issuer:        opts.Issuer,
		authenticator: opts.Authenticator,
		limiter:       opts.Limiter,
		metrics:       opts.Metrics,
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the root HTTP handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware)
	r.Use(s.loggingMiddleware)

	// Public surface.
	r.Get("/health", s.handleHealth)
	r.Get("/api/info", s.handleInfo)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Post("/api/v1/auth/validate-key", s.handleValidateKey)
	r.Post("/api/v1/auth/login", s.handleLogin)

	// Key lifecycle, admin only.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware(auth.PermAdmin))
		r.Use(s.rateLimitMiddleware(ratelimit.ClassGlobal))
		r.Post("/api/v1/auth/create-key", s.handleCreateKey)
		r.Get("/api/v1/auth/list-keys", s.handleListKeys)
		r.Delete("/api/v1/auth/revoke-key/{keyID}", s.handleRevokeKey)
	})

	// Directory lifecycle.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware(auth.PermIndex))
		r.Use(s.rateLimitMiddleware(ratelimit.ClassIndex))
		r.Post("/api/v1/directories/add", s.handleDirectoryAdd)
		r.Post("/api/v1/directories/refresh/*", s.handleDirectoryRefresh)
		r.Delete("/api/v1/directories/remove/*", s.handleDirectoryRemove)
	})

	// Directory reads, open to either grant.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddlewareAny(auth.PermRead, auth.PermIndex))
		r.Use(s.rateLimitMiddleware(ratelimit.ClassGlobal))
		r.Get("/api/v1/directories/list", s.handleDirectoryList)
		r.Get("/api/v1/directories/status/*", s.handleDirectoryStatus)
	})

	// Search.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware(auth.PermSearch))
		r.Use(s.rateLimitMiddleware(ratelimit.ClassSearch))
		r.Post("/api/v1/searcher/search", s.handleSearch)
	})

	// Stats.
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware(auth.PermRead))
		r.Use(s.rateLimitMiddleware(ratelimit.ClassGlobal))
		r.Get("/api/v1/stats/system", s.handleStatsSystem)
		r.Get("/api/v1/stats/search", s.handleStatsSearch)
		r.Get("/api/v1/stats/directories", s.handleStatsDirectories)
	})

	return r
}

// Start blocks serving HTTP until the context is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.scheduler.Shutdown()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("server stopped")
	return nil
}
