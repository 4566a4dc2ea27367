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

package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/hound/pkg/model"
	"github.com/kadirpekel/hound/pkg/storage"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r, err := New(db)
	require.NoError(t, err)
	return r
}

func TestRegistry_Add(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	entry, err := r.Add(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, dir, entry.Path)
	assert.Equal(t, filepath.Base(dir), entry.Name)
	assert.Equal(t, model.StatusNotIndexed, entry.Status)
	assert.Equal(t, 1, r.Count())

	_, err = r.Add(ctx, dir)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
}

func TestRegistry_Add_InvalidPath(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Add(ctx, "/does/not/exist")
	assert.ErrorIs(t, err, ErrInvalidPath)

	// A regular file is not a directory.
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))
	_, err = r.Add(ctx, file)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestRegistry_Remove(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := r.Add(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, r.Remove(ctx, dir))
	assert.Equal(t, 0, r.Count())

	err = r.Remove(ctx, dir)
	assert.ErrorIs(t, err, ErrNotRegistered)
}

func TestRegistry_UpdateAndList(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()
	dir := t.TempDir()

	_, err := r.Add(ctx, dir)
	require.NoError(t, err)

	now := time.Now().UTC()
	err = r.Update(ctx, dir, func(e *model.DirectoryEntry) {
		e.Status = model.StatusIndexed
		e.Progress = 1
		e.TotalFiles = 10
		e.IndexedFiles = 10
		e.LastTaskID = "dir_123_docs"
		e.LastIndexedAt = &now
	})
	require.NoError(t, err)

	got, ok := r.Get(dir)
	require.True(t, ok)
	assert.Equal(t, model.StatusIndexed, got.Status)
	assert.Equal(t, 10, got.TotalFiles)
	assert.Equal(t, "dir_123_docs", got.LastTaskID)

	list := r.List()
	require.Len(t, list, 1)
	assert.Equal(t, dir, list[0].Path)

	// Snapshots do not alias registry state.
	list[0].Status = model.StatusError
	got, _ = r.Get(dir)
	assert.Equal(t, model.StatusIndexed, got.Status)
}

func TestRegistry_PersistsAcrossReopen(t *testing.T) {
	db, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r1, err := New(db)
	require.NoError(t, err)

	dir := t.TempDir()
	ctx := context.Background()
	_, err = r1.Add(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, r1.Update(ctx, dir, func(e *model.DirectoryEntry) {
		e.Status = model.StatusIndexing
		e.LastTaskID = "dir_1_tmp"
	}))

	r2, err := New(db)
	require.NoError(t, err)

	got, ok := r2.Get(dir)
	require.True(t, ok)
	// Interrupted indexing surfaces as an error after reload.
	assert.Equal(t, model.StatusError, got.Status)
	assert.NotEmpty(t, got.LastError)
}
