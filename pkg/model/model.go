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

// Package model holds the shared domain types of the search engine:
// source identities, chunk metadata, ledger entries and directory records.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// SourceRef identifies an indexable item. For local files SourceID is the
// absolute path; remote sources use an opaque URI.
type SourceRef struct {
	SourceID    string    `json:"source_id"`
	DisplayName string    `json:"display_name"`
	FileType    string    `json:"file_type"`
	SizeBytes   int64     `json:"size_bytes"`
	ModifiedAt  time.Time `json:"modified_at"`

	// ContentHash is the hex SHA-256 digest over the extracted text.
	// Authoritative change signal when metadata is ambiguous.
	ContentHash string `json:"content_hash,omitempty"`
}

// ChunkID derives the deterministic chunk identifier for a source and
// ordinal. Stable across re-runs for unchanged sources.
func ChunkID(sourceID string, ordinal int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", sourceID, ordinal)))
	return hex.EncodeToString(sum[:])[:32]
}

// HashText returns the hex SHA-256 digest of text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// ChunkMeta is the metadata stored with every chunk.
type ChunkMeta struct {
	SourceID      string `json:"source_id"`
	DisplayName   string `json:"display_name"`
	FileType      string `json:"file_type"`
	Ordinal       int    `json:"ordinal"`
	TotalInSource int    `json:"total_in_source"`
}

// FileState is the ledger entry recorded per source after a successful
// ingest. ChunkIDs lists exactly the chunks currently stored for the source.
type FileState struct {
	SourceID    string    `json:"source_id"`
	SizeBytes   int64     `json:"size_bytes"`
	ModifiedAt  time.Time `json:"modified_at"`
	ContentHash string    `json:"content_hash"`
	ChunkIDs    []string  `json:"chunk_ids"`
	IndexedAt   time.Time `json:"indexed_at"`
}

// Change classifies a source against its ledger entry.
type Change string

const (
	ChangeNew       Change = "new"
	ChangeUnchanged Change = "unchanged"
	ChangeModified  Change = "modified"
	ChangeDeleted   Change = "deleted"
)

// DirectoryStatus is the lifecycle state of a registered directory.
type DirectoryStatus string

const (
	StatusNotIndexed DirectoryStatus = "not_indexed"
	StatusIndexing   DirectoryStatus = "indexing"
	StatusIndexed    DirectoryStatus = "indexed"
	StatusError      DirectoryStatus = "error"
)

// DirectoryEntry is a registry record for a registered root path.
type DirectoryEntry struct {
	Path          string          `json:"path"`
	Name          string          `json:"name"`
	Status        DirectoryStatus `json:"status"`
	Progress      float64         `json:"progress"`
	TotalFiles    int             `json:"total_files"`
	IndexedFiles  int             `json:"indexed_files"`
	LastTaskID    string          `json:"last_task_id,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	LastIndexedAt *time.Time      `json:"last_indexed_at,omitempty"`
}
