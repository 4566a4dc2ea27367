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

// Package ledger tracks per-file indexing state so repeated indexing
// passes only re-process files that actually changed.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kadirpekel/hound/pkg/model"
)

// Ledger persists file states in the shared SQLite database.
type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Get returns the stored state for a source, or false when the source has
// never been indexed.
func (l *Ledger) Get(ctx context.Context, sourceID string) (*model.FileState, bool, error) {
	query := `SELECT source_id, size_bytes, modified_at, content_hash, chunk_ids, indexed_at
FROM file_states WHERE source_id = ?`

	var (
		state     model.FileState
		chunkJSON string
	)
	err := l.db.QueryRowContext(ctx, query, sourceID).Scan(
		&state.SourceID, &state.SizeBytes, &state.ModifiedAt,
		&state.ContentHash, &chunkJSON, &state.IndexedAt,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query file state: %w", err)
	}

	if err := json.Unmarshal([]byte(chunkJSON), &state.ChunkIDs); err != nil {
		return nil, false, fmt.Errorf("failed to decode chunk ids for %s: %w", sourceID, err)
	}
	return &state, true, nil
}

// Put records the state of a freshly indexed source, replacing any
// previous entry.
func (l *Ledger) Put(ctx context.Context, state *model.FileState) error {
	chunkJSON, err := json.Marshal(state.ChunkIDs)
	if err != nil {
		return fmt.Errorf("failed to encode chunk ids: %w", err)
	}

	query := `
INSERT INTO file_states (source_id, size_bytes, modified_at, content_hash, chunk_ids, indexed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(source_id) DO UPDATE SET
    size_bytes = excluded.size_bytes,
    modified_at = excluded.modified_at,
    content_hash = excluded.content_hash,
    chunk_ids = excluded.chunk_ids,
    indexed_at = excluded.indexed_at
`
	_, err = l.db.ExecContext(ctx, query,
		state.SourceID, state.SizeBytes, state.ModifiedAt,
		state.ContentHash, string(chunkJSON), state.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store file state: %w", err)
	}
	return nil
}

// Forget removes a source from the ledger. Forgetting an absent source is
// a no-op.
func (l *Ledger) Forget(ctx context.Context, sourceID string) error {
	_, err := l.db.ExecContext(ctx, `DELETE FROM file_states WHERE source_id = ?`, sourceID)
	if err != nil {
		return fmt.Errorf("failed to forget file state: %w", err)
	}
	return nil
}

// SourcesUnder lists all ledger sources whose id starts with the given
// path prefix. Used to reconcile deletions after a directory walk.
func (l *Ledger) SourcesUnder(ctx context.Context, prefix string) ([]string, error) {
	query := `SELECT source_id FROM file_states WHERE source_id LIKE ? ESCAPE '\' ORDER BY source_id`
	rows, err := l.db.QueryContext(ctx, query, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list file states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan file state: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// StateSummary aggregates ledger counters for stats endpoints.
type StateSummary struct {
	TotalFiles  int        `json:"total_files"`
	TotalChunks int        `json:"total_chunks"`
	LastIndexed *time.Time `json:"last_indexed,omitempty"`
}

// Summary returns ledger-wide counters.
func (l *Ledger) Summary(ctx context.Context) (StateSummary, error) {
	var sum StateSummary

	query := `SELECT COUNT(*), COALESCE(MAX(indexed_at), '') FROM file_states`
	var lastIndexed string
	if err := l.db.QueryRowContext(ctx, query).Scan(&sum.TotalFiles, &lastIndexed); err != nil {
		return sum, fmt.Errorf("failed to summarize ledger: %w", err)
	}
	if lastIndexed != "" {
		if t, err := parseStoredTime(lastIndexed); err == nil {
			sum.LastIndexed = &t
		}
	}

	rows, err := l.db.QueryContext(ctx, `SELECT chunk_ids FROM file_states`)
	if err != nil {
		return sum, fmt.Errorf("failed to summarize chunks: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var chunkJSON string
		if err := rows.Scan(&chunkJSON); err != nil {
			return sum, fmt.Errorf("failed to scan chunk ids: %w", err)
		}
		var ids []string
		if json.Unmarshal([]byte(chunkJSON), &ids) == nil {
			sum.TotalChunks += len(ids)
		}
	}
	return sum, rows.Err()
}

func parseStoredTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}

func escapeLike(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
