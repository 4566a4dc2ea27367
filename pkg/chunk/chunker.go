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

// Package chunk splits extracted text into overlapping windows aligned to
// sentence boundaries. Chunking is pure: the same input always yields the
// same ordinals and texts, which keeps chunk ids stable across re-runs.
package chunk

import (
	"fmt"
	"strings"
)

// Piece is one chunk of a source text.
type Piece struct {
	// Ordinal is the 0-based position within the source.
	Ordinal int

	// Text is the character window.
	Text string
}

// Config configures chunking behavior.
type Config struct {
	// Size is the target chunk size in characters.
	// Default: 1000
	Size int `yaml:"size,omitempty"`

	// Overlap is the overlap between consecutive chunks in characters.
	// Default: 200
	Overlap int `yaml:"overlap,omitempty"`

	// BoundarySlack is how far back from the target a sentence boundary
	// is preferred, as a fraction of Size. Default: 0.1
	BoundarySlack float64 `yaml:"boundary_slack,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.Size <= 0 {
		c.Size = 1000
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	if c.Overlap == 0 {
		c.Overlap = 200
	}
	if c.BoundarySlack <= 0 {
		c.BoundarySlack = 0.1
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("overlap must be non-negative, got %d", c.Overlap)
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("overlap (%d) must be less than size (%d)", c.Overlap, c.Size)
	}
	return nil
}

// Chunker splits text into overlapping sentence-aligned windows.
type Chunker struct {
	cfg Config
}

// New creates a chunker from configuration.
func New(cfg Config) (*Chunker, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chunker config: %w", err)
	}
	return &Chunker{cfg: cfg}, nil
}

// Config returns the chunker configuration.
func (c *Chunker) Config() Config {
	return c.cfg
}

// sentenceEnders mark positions after which a chunk may cleanly break.
var sentenceEnders = map[rune]bool{'.': true, '!': true, '?': true, '\n': true}

// Chunk splits text into pieces. Empty or whitespace-only input yields no
// pieces; any other input yields at least one.
func (c *Chunker) Chunk(text string) []Piece {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	size := c.cfg.Size
	slack := int(float64(size) * c.cfg.BoundarySlack)
	if slack < 1 {
		slack = 1
	}

	var pieces []Piece
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			pieces = append(pieces, Piece{Ordinal: len(pieces), Text: string(runes[start:])})
			break
		}

		// Prefer a sentence boundary within the slack window before the
		// target; hard-cut at the target otherwise.
		cut := end
		for i := end - 1; i >= end-slack && i > start; i-- {
			if sentenceEnders[runes[i]] {
				cut = i + 1
				break
			}
		}

		pieces = append(pieces, Piece{Ordinal: len(pieces), Text: string(runes[start:cut])})

		next := cut - c.cfg.Overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return pieces
}
