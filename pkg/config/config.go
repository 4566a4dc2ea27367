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

// Package config defines the hound configuration model.
//
// Configuration is loaded from YAML with environment variable expansion
// (${VAR} and ${VAR:-default}), after which every section applies its
// defaults and validates itself.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the hound service.
type Config struct {
	Server      ServerConfig      `yaml:"server,omitempty"`
	Storage     StorageConfig     `yaml:"storage,omitempty"`
	Auth        AuthConfig        `yaml:"auth,omitempty"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit,omitempty"`
	Indexing    IndexingConfig    `yaml:"indexing,omitempty"`
	Search      SearchConfig      `yaml:"search,omitempty"`
	Embedder    EmbedderConfig    `yaml:"embedder,omitempty"`
	VectorStore VectorStoreConfig `yaml:"vector_store,omitempty"`
	Watcher     WatcherConfig     `yaml:"watcher,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
}

// SetDefaults applies default values to all sections.
func (c *Config) SetDefaults() {
	c.Server.SetDefaults()
	c.Storage.SetDefaults()
	c.Auth.SetDefaults()
	c.RateLimit.SetDefaults()
	c.Indexing.SetDefaults()
	c.Search.SetDefaults()
	c.Embedder.SetDefaults()
	c.VectorStore.SetDefaults()
	c.Watcher.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks all sections for errors.
func (c *Config) Validate() error {
	type section struct {
		name string
		v    interface{ Validate() error }
	}
	for _, s := range []section{
		{"server", &c.Server},
		{"storage", &c.Storage},
		{"auth", &c.Auth},
		{"rate_limit", &c.RateLimit},
		{"indexing", &c.Indexing},
		{"search", &c.Search},
		{"embedder", &c.Embedder},
		{"vector_store", &c.VectorStore},
		{"watcher", &c.Watcher},
		{"logging", &c.Logging},
	} {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Host to bind. Defaults to 127.0.0.1; the service is local-first.
	Host string `yaml:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty"`

	// SearchTimeout bounds a single search request.
	SearchTimeout time.Duration `yaml:"search_timeout,omitempty"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
	if c.SearchTimeout == 0 {
		c.SearchTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	return nil
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// StorageConfig locates the single data root holding the vector store
// persistence directory, the lexical index snapshot, and the SQLite database.
type StorageConfig struct {
	DataDir string `yaml:"data_dir,omitempty"`
}

func (c *StorageConfig) SetDefaults() {
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
}

func (c *StorageConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	return nil
}

// AuthConfig configures API-key authentication and the JWT exchange.
//
// Example YAML:
//
//	auth:
//	  admin_key: ${HOUND_ADMIN_KEY}
//	  jwt_secret: ${HOUND_JWT_SECRET}
//	  token_ttl: 30m
type AuthConfig struct {
	// AdminKey guards key-lifecycle endpoints. When empty those
	// endpoints are disabled.
	AdminKey string `yaml:"admin_key,omitempty"`

	// JWTSecret signs exchanged tokens (HS256). Generated at startup
	// when empty, which invalidates outstanding tokens on restart.
	JWTSecret string `yaml:"jwt_secret,omitempty"`

	// TokenTTL is the lifetime of exchanged JWTs.
	TokenTTL time.Duration `yaml:"token_ttl,omitempty"`
}

func (c *AuthConfig) SetDefaults() {
	if c.TokenTTL == 0 {
		c.TokenTTL = 30 * time.Minute
	}
}

func (c *AuthConfig) Validate() error {
	if c.TokenTTL < time.Minute {
		return fmt.Errorf("token_ttl must be at least 1m, got %s", c.TokenTTL)
	}
	return nil
}

// RateLimitConfig configures per-client token buckets by route class.
type RateLimitConfig struct {
	Enabled *bool `yaml:"enabled,omitempty"`

	// Requests per minute per client across all routes.
	GlobalPerMinute int `yaml:"global_per_minute,omitempty"`

	// Requests per minute per client on search routes.
	SearchPerMinute int `yaml:"search_per_minute,omitempty"`

	// Requests per minute per client on directory mutation routes.
	IndexPerMinute int `yaml:"index_per_minute,omitempty"`
}

func (c *RateLimitConfig) SetDefaults() {
	if c.Enabled == nil {
		enabled := true
		c.Enabled = &enabled
	}
	if c.GlobalPerMinute == 0 {
		c.GlobalPerMinute = 100
	}
	if c.SearchPerMinute == 0 {
		c.SearchPerMinute = 50
	}
	if c.IndexPerMinute == 0 {
		c.IndexPerMinute = 10
	}
}

func (c *RateLimitConfig) Validate() error {
	if c.GlobalPerMinute < 0 || c.SearchPerMinute < 0 || c.IndexPerMinute < 0 {
		return fmt.Errorf("rate limits must be non-negative")
	}
	return nil
}

// IsEnabled reports whether rate limiting is active.
func (c *RateLimitConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// IndexingConfig configures the ingest pipeline and scheduler.
type IndexingConfig struct {
	// MaxConcurrent caps simultaneously running directory tasks.
	MaxConcurrent int `yaml:"max_concurrent,omitempty"`

	// MaxFileSize in bytes; larger files are skipped as too large.
	MaxFileSize int64 `yaml:"max_file_size,omitempty"`

	// ChunkSize is the target chunk window in characters.
	ChunkSize int `yaml:"chunk_size,omitempty"`

	// ChunkOverlap is the overlap between consecutive chunks in characters.
	ChunkOverlap int `yaml:"chunk_overlap,omitempty"`

	// SkipPatterns are extra glob patterns excluded from walks, on top
	// of the built-in rules (dotfiles, VCS, build and IDE directories).
	SkipPatterns []string `yaml:"skip_patterns,omitempty"`

	// KeywordOnlyOnEmbedderFailure keeps indexing lexically when the
	// embedder is unavailable instead of failing the task.
	KeywordOnlyOnEmbedderFailure bool `yaml:"keyword_only_on_embedder_failure,omitempty"`
}

func (c *IndexingConfig) SetDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
	if c.MaxFileSize == 0 {
		c.MaxFileSize = 50 * 1024 * 1024
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap == 0 {
		c.ChunkOverlap = 200
	}
}

func (c *IndexingConfig) Validate() error {
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	if c.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size must be non-negative")
	}
	return nil
}

// SearchConfig configures ranking and snippet generation.
type SearchConfig struct {
	// DefaultLimit is the result count when the request omits one.
	DefaultLimit int `yaml:"default_limit,omitempty"`

	// DefaultThreshold is the minimum semantic similarity.
	DefaultThreshold float64 `yaml:"default_threshold,omitempty"`

	// HybridAlpha weights the semantic side of hybrid scoring. Zero is
	// a valid setting (keyword-only fusion), so unset is nil.
	HybridAlpha *float64 `yaml:"hybrid_alpha,omitempty"`

	// OverFetch multiplies the semantic candidate count before
	// threshold filtering.
	OverFetch int `yaml:"over_fetch,omitempty"`

	// SnippetWindow is the snippet width in characters.
	SnippetWindow int `yaml:"snippet_window,omitempty"`
}

func (c *SearchConfig) SetDefaults() {
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 10
	}
	if c.DefaultThreshold == 0 {
		c.DefaultThreshold = 0.3
	}
	if c.HybridAlpha == nil {
		alpha := 0.5
		c.HybridAlpha = &alpha
	}
	if c.OverFetch == 0 {
		c.OverFetch = 3
	}
	if c.SnippetWindow == 0 {
		c.SnippetWindow = 200
	}
}

func (c *SearchConfig) Validate() error {
	if c.HybridAlpha != nil && (*c.HybridAlpha < 0 || *c.HybridAlpha > 1) {
		return fmt.Errorf("hybrid_alpha must be in [0,1], got %v", *c.HybridAlpha)
	}
	if c.DefaultThreshold < -1 || c.DefaultThreshold > 1 {
		return fmt.Errorf("default_threshold must be in [-1,1], got %v", c.DefaultThreshold)
	}
	if c.OverFetch < 1 {
		return fmt.Errorf("over_fetch must be at least 1")
	}
	return nil
}

// WatcherConfig configures filesystem-driven auto refresh.
type WatcherConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`

	// Debounce collapses bursts of change events into one refresh.
	Debounce time.Duration `yaml:"debounce,omitempty"`
}

func (c *WatcherConfig) SetDefaults() {
	if c.Debounce == 0 {
		c.Debounce = 5 * time.Second
	}
}

func (c *WatcherConfig) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("debounce must be non-negative")
	}
	return nil
}

// LoggingConfig configures the process-wide logger.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level,omitempty"`

	// Format: text or json.
	Format string `yaml:"format,omitempty"`
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

func (c *LoggingConfig) Validate() error {
	switch c.Format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid log format %q (valid: text, json)", c.Format)
	}
}
