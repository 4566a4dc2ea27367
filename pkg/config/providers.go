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

package config

import (
	"fmt"
	"time"
)

// EmbedderConfig configures the embedding model provider.
//
// Example YAML:
//
//	embedder:
//	  type: ollama
//	  model: nomic-embed-text
//	  host: http://localhost:11434
type EmbedderConfig struct {
	// Type is the embedder provider: "ollama", "openai", "gemini", "mock".
	Type string `yaml:"type"`

	// Model is the embedding model name.
	Model string `yaml:"model,omitempty"`

	// Host for HTTP providers (ollama).
	Host string `yaml:"host,omitempty"`

	// APIKey for remote providers. Falls back to the provider's
	// conventional environment variable when empty.
	APIKey string `yaml:"api_key,omitempty"`

	// Dimension of produced vectors. Zero means the provider default.
	Dimension int `yaml:"dimension,omitempty"`

	// Timeout bounds one embed batch call.
	Timeout time.Duration `yaml:"timeout,omitempty"`

	// BatchSize is the maximum texts per provider call.
	BatchSize int `yaml:"batch_size,omitempty"`

	// MaxRetries for transient provider failures.
	MaxRetries int `yaml:"max_retries,omitempty"`

	// Options carries provider-specific settings, decoded by the
	// provider with mapstructure.
	Options map[string]interface{} `yaml:"options,omitempty"`
}

func (c *EmbedderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "ollama"
	}
	if c.Model == "" {
		switch c.Type {
		case "ollama":
			c.Model = "nomic-embed-text"
		case "openai":
			c.Model = "text-embedding-3-small"
		case "gemini":
			c.Model = "text-embedding-004"
		}
	}
	if c.Host == "" && c.Type == "ollama" {
		c.Host = "http://localhost:11434"
	}
	if c.Dimension == 0 {
		switch c.Type {
		case "ollama", "gemini":
			c.Dimension = 768
		case "openai":
			c.Dimension = 1536
		case "mock":
			c.Dimension = 64
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.BatchSize == 0 {
		c.BatchSize = 32
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

func (c *EmbedderConfig) Validate() error {
	switch c.Type {
	case "ollama", "openai", "gemini", "mock":
	default:
		return fmt.Errorf("invalid embedder type %q (valid: ollama, openai, gemini, mock)", c.Type)
	}
	if c.Model == "" && c.Type != "mock" {
		return fmt.Errorf("model is required for %s embedder", c.Type)
	}
	if c.Dimension < 1 {
		return fmt.Errorf("dimension must be positive")
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	return nil
}

// VectorStoreConfig configures the chunk store provider.
//
// Example YAML:
//
//	vector_store:
//	  type: chromem
//	  compress: true
type VectorStoreConfig struct {
	// Type is the store type: "chromem" (embedded) or "qdrant" (remote).
	Type string `yaml:"type"`

	// PersistPath overrides the chromem persistence directory.
	// Defaults to <data_dir>/vectors.
	PersistPath string `yaml:"persist_path,omitempty"`

	// Compress enables gzip compression for chromem persistence.
	Compress bool `yaml:"compress,omitempty"`

	// Host for qdrant.
	Host string `yaml:"host,omitempty"`

	// Port for qdrant.
	Port int `yaml:"port,omitempty"`

	// APIKey for authenticated qdrant access.
	APIKey string `yaml:"api_key,omitempty"`

	// EnableTLS enables TLS for qdrant connections.
	EnableTLS bool `yaml:"enable_tls,omitempty"`

	// Collection is the collection name holding chunks.
	Collection string `yaml:"collection,omitempty"`
}

func (c *VectorStoreConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "chromem"
	}
	if c.Port == 0 && c.Type == "qdrant" {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "chunks"
	}
}

func (c *VectorStoreConfig) Validate() error {
	switch c.Type {
	case "chromem":
	case "qdrant":
		if c.Host == "" {
			return fmt.Errorf("host is required for qdrant vector store")
		}
	default:
		return fmt.Errorf("invalid vector store type %q (valid: chromem, qdrant)", c.Type)
	}
	return nil
}

// IsEmbedded returns true for embedded vector stores.
func (c *VectorStoreConfig) IsEmbedded() bool {
	return c.Type == "chromem"
}
