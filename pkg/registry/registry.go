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

// Package registry manages the set of registered directories and their
// lifecycle state, persisted in the shared SQLite database.
package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/kadirpekel/hound/pkg/model"
)

var (
	ErrInvalidPath       = errors.New("path does not exist or is not a directory")
	ErrAlreadyRegistered = errors.New("directory already registered")
	ErrNotRegistered     = errors.New("directory not registered")
)

// Registry is the directory registry. Entries are cached in memory and
// written through to the database on every mutation.
type Registry struct {
	db *sql.DB

	mu      sync.RWMutex
	entries map[string]*model.DirectoryEntry
}

// New loads the registry from the database.
func New(db *sql.DB) (*Registry, error) {
	r := &Registry{db: db, entries: make(map[string]*model.DirectoryEntry)}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	query := `SELECT path, name, status, progress, total_files, indexed_files,
       COALESCE(last_task_id, ''), COALESCE(last_error, ''), last_indexed_at
FROM directories`
	rows, err := r.db.Query(query)
	if err != nil {
		return fmt.Errorf("failed to load directories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			e             model.DirectoryEntry
			status        string
			lastIndexedAt sql.NullTime
		)
		if err := rows.Scan(&e.Path, &e.Name, &status, &e.Progress,
			&e.TotalFiles, &e.IndexedFiles, &e.LastTaskID, &e.LastError,
			&lastIndexedAt); err != nil {
			return fmt.Errorf("failed to scan directory: %w", err)
		}
		e.Status = model.DirectoryStatus(status)
		if lastIndexedAt.Valid {
			t := lastIndexedAt.Time
			e.LastIndexedAt = &t
		}
		// A crash mid-indexing leaves "indexing" behind with no task
		// running; surface it as an error until the next refresh.
		if e.Status == model.StatusIndexing {
			e.Status = model.StatusError
			e.LastError = "indexing interrupted by shutdown"
		}
		r.entries[e.Path] = &e
	}
	return rows.Err()
}

// Add registers a directory. The path must exist and be a directory; it is
// normalized to an absolute path.
func (r *Registry) Add(ctx context.Context, path string) (*model.DirectoryEntry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPath, abs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[abs]; exists {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, abs)
	}

	entry := &model.DirectoryEntry{
		Path:   abs,
		Name:   filepath.Base(abs),
		Status: model.StatusNotIndexed,
	}

	query := `INSERT INTO directories (path, name, status, created_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, entry.Path, entry.Name, string(entry.Status), time.Now()); err != nil {
		return nil, fmt.Errorf("failed to store directory: %w", err)
	}

	r.entries[abs] = entry
	snapshot := *entry
	return &snapshot, nil
}

// Remove unregisters a directory. The caller is responsible for cancelling
// any running task and purging indexed content first.
func (r *Registry) Remove(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotRegistered, path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[abs]; !exists {
		return fmt.Errorf("%w: %s", ErrNotRegistered, abs)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM directories WHERE path = ?`, abs); err != nil {
		return fmt.Errorf("failed to delete directory: %w", err)
	}
	delete(r.entries, abs)
	return nil
}

// Get returns a snapshot of a directory entry.
func (r *Registry) Get(path string) (*model.DirectoryEntry, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[abs]
	if !ok {
		return nil, false
	}
	snapshot := *entry
	return &snapshot, true
}

// List returns snapshots of all entries sorted by path.
func (r *Registry) List() []model.DirectoryEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.DirectoryEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Update applies mutate to the entry under the registry lock and persists
// the result. Progress updates during indexing flow through here.
func (r *Registry) Update(ctx context.Context, path string, mutate func(*model.DirectoryEntry)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[path]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRegistered, path)
	}

	mutate(entry)

	query := `UPDATE directories SET name = ?, status = ?, progress = ?, total_files = ?,
    indexed_files = ?, last_task_id = ?, last_error = ?, last_indexed_at = ?
WHERE path = ?`
	var lastIndexedAt interface{}
	if entry.LastIndexedAt != nil {
		lastIndexedAt = *entry.LastIndexedAt
	}
	_, err := r.db.ExecContext(ctx, query, entry.Name, string(entry.Status),
		entry.Progress, entry.TotalFiles, entry.IndexedFiles,
		entry.LastTaskID, entry.LastError, lastIndexedAt, entry.Path)
	if err != nil {
		return fmt.Errorf("failed to update directory: %w", err)
	}
	return nil
}

// Count returns the number of registered directories.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
