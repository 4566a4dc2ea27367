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

package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kadirpekel/hound/pkg/chunk"
	"github.com/kadirpekel/hound/pkg/embedders"
	"github.com/kadirpekel/hound/pkg/extract"
	"github.com/kadirpekel/hound/pkg/index"
	"github.com/kadirpekel/hound/pkg/ledger"
	"github.com/kadirpekel/hound/pkg/model"
	"github.com/kadirpekel/hound/pkg/vector"
)

// runPipeline is the per-task algorithm: walk, per-file ingest, reconcile
// deletions, snapshot the lexical index. Cancellation is honored at file
// boundaries so partial progress is always persisted.
func (s *Scheduler) runPipeline(ctx context.Context, run *taskRun) error {
	root := run.task.Directory

	if err := s.registry.Update(ctx, root, func(e *model.DirectoryEntry) {
		e.Status = model.StatusIndexing
		e.Progress = 0
		e.TotalFiles = 0
		e.IndexedFiles = 0
		e.LastTaskID = run.task.ID
		e.LastError = ""
	}); err != nil {
		return err
	}

	// The lexical snapshot must survive whatever happens past this point.
	defer s.saveLexical()

	files, err := s.walk(ctx, root)
	if err != nil {
		return err
	}

	if err := s.registry.Update(ctx, root, func(e *model.DirectoryEntry) {
		e.TotalFiles = len(files)
	}); err != nil {
		return err
	}

	observed := make(map[string]struct{}, len(files))
	for i, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		observed[path] = struct{}{}

		if err := s.ingestFile(ctx, run, path); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, embedders.ErrUnavailable) && !s.cfg.KeywordOnlyOnEmbedderFailure {
				return err
			}
			slog.Warn("file ingest failed", "task", run.task.ID, "path", path, "error", err)
			s.bumpStats(run, func(st *TaskStats) { st.Errors++ })
			s.countOutcome("error")
		}

		processed := i + 1
		_ = s.registry.Update(ctx, root, func(e *model.DirectoryEntry) {
			e.IndexedFiles = processed
			if len(files) > 0 {
				e.Progress = float64(processed) / float64(len(files))
			}
		})
	}

	if err := s.reconcileDeleted(ctx, run, root, observed); err != nil {
		return err
	}
	return nil
}

// ingestFile runs one file through the change-detection and indexing
// pipeline. Recoverable extraction failures count as skipped, not errors.
func (s *Scheduler) ingestFile(ctx context.Context, run *taskRun, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat failed: %w", err)
	}

	prev, _, err := s.ledger.Get(ctx, path)
	if err != nil {
		return err
	}

	// Size and mtime intact: nothing to re-read.
	if ledger.MetadataMatches(prev, info.Size(), info.ModTime()) {
		s.bumpStats(run, func(st *TaskStats) { st.Unchanged++ })
		s.countOutcome("unchanged")
		return nil
	}

	result, err := s.extractor.Extract(ctx, path)
	if err != nil {
		if extract.IsRecoverable(err) {
			slog.Debug("file skipped", "path", path, "reason", err)
			s.bumpStats(run, func(st *TaskStats) { st.Skipped++ })
			s.countOutcome("skipped")
			return nil
		}
		return err
	}

	contentHash := model.HashText(result.Text)
	change := ledger.Classify(prev, contentHash)

	if change == model.ChangeUnchanged {
		// Touched but not edited: refresh the metadata so the next run
		// takes the cheap path.
		s.bumpStats(run, func(st *TaskStats) { st.Unchanged++ })
		s.countOutcome("unchanged")
		return s.ledger.Put(ctx, &model.FileState{
			SourceID:    path,
			SizeBytes:   info.Size(),
			ModifiedAt:  info.ModTime(),
			ContentHash: contentHash,
			ChunkIDs:    prev.ChunkIDs,
			IndexedAt:   time.Now(),
		})
	}

	if change == model.ChangeModified {
		if err := s.dropSource(ctx, path, prev.ChunkIDs); err != nil {
			return err
		}
	}

	pieces := s.chunker.Chunk(result.Text)
	if len(pieces) == 0 {
		// Nothing extractable; record the state so the file is not
		// re-read every run.
		s.bumpStats(run, func(st *TaskStats) { st.Skipped++ })
		s.countOutcome("skipped")
		return s.ledger.Put(ctx, &model.FileState{
			SourceID:    path,
			SizeBytes:   info.Size(),
			ModifiedAt:  info.ModTime(),
			ContentHash: contentHash,
			ChunkIDs:    nil,
			IndexedAt:   time.Now(),
		})
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}
	if s.metrics != nil {
		s.metrics.TokensIndexed(chunk.NewTokenCounter().CountAll(texts))
	}

	vectors, err := s.embedVectors(ctx, texts)
	if err != nil {
		return err
	}

	chunks := make([]vector.Chunk, len(pieces))
	chunkIDs := make([]string, len(pieces))
	for i, p := range pieces {
		id := model.ChunkID(path, p.Ordinal)
		chunkIDs[i] = id
		var vec []float32
		if vectors != nil {
			vec = vectors[i]
		}
		chunks[i] = vector.Chunk{
			ID:     id,
			Text:   p.Text,
			Vector: vec,
			Meta: model.ChunkMeta{
				SourceID:      path,
				DisplayName:   filepath.Base(path),
				FileType:      result.FileType,
				Ordinal:       p.Ordinal,
				TotalInSource: len(pieces),
			},
		}
	}

	if err := s.store.Upsert(ctx, chunks); err != nil {
		return err
	}
	for i, p := range pieces {
		s.lexical.Add(chunkIDs[i], index.Tokenize(p.Text))
	}

	if err := s.ledger.Put(ctx, &model.FileState{
		SourceID:    path,
		SizeBytes:   info.Size(),
		ModifiedAt:  info.ModTime(),
		ContentHash: contentHash,
		ChunkIDs:    chunkIDs,
		IndexedAt:   time.Now(),
	}); err != nil {
		return err
	}

	if change == model.ChangeNew {
		s.bumpStats(run, func(st *TaskStats) { st.New++ })
		s.countOutcome("new")
	} else {
		s.bumpStats(run, func(st *TaskStats) { st.Modified++ })
		s.countOutcome("modified")
	}
	return nil
}

// embedVectors embeds the chunk texts. When the embedder is unavailable
// and degraded keyword-only indexing is enabled, it returns nil vectors
// so chunks are stored lexically only.
func (s *Scheduler) embedVectors(ctx context.Context, texts []string) ([][]float32, error) {
	if s.embedder == nil {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		if errors.Is(err, embedders.ErrUnavailable) && s.cfg.KeywordOnlyOnEmbedderFailure {
			slog.Warn("embedder unavailable, indexing keyword-only", "error", err)
			return nil, nil
		}
		return nil, err
	}
	return vectors, nil
}

// reconcileDeleted removes ledger entries (and their chunks) for sources
// under root that the walk did not observe.
func (s *Scheduler) reconcileDeleted(ctx context.Context, run *taskRun, root string, observed map[string]struct{}) error {
	sources, err := s.ledger.SourcesUnder(ctx, root+string(os.PathSeparator))
	if err != nil {
		return err
	}
	for _, sourceID := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := observed[sourceID]; ok {
			continue
		}
		state, found, err := s.ledger.Get(ctx, sourceID)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := s.dropSource(ctx, sourceID, state.ChunkIDs); err != nil {
			return err
		}
		if err := s.ledger.Forget(ctx, sourceID); err != nil {
			return err
		}
		s.bumpStats(run, func(st *TaskStats) { st.Deleted++ })
		s.countOutcome("deleted")
	}
	return nil
}

// dropSource removes a source's chunks from the store and the lexical
// index.
func (s *Scheduler) dropSource(ctx context.Context, sourceID string, chunkIDs []string) error {
	if err := s.store.DeleteBySource(ctx, sourceID); err != nil {
		return err
	}
	for _, id := range chunkIDs {
		s.lexical.Remove(id)
	}
	return nil
}

// Purge deletes every indexed source under root: chunks, lexical postings
// and ledger entries. Used when a directory is unregistered.
func (s *Scheduler) Purge(ctx context.Context, root string) error {
	sources, err := s.ledger.SourcesUnder(ctx, root+string(os.PathSeparator))
	if err != nil {
		return err
	}
	for _, sourceID := range sources {
		state, found, err := s.ledger.Get(ctx, sourceID)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := s.dropSource(ctx, sourceID, state.ChunkIDs); err != nil {
			return err
		}
		if err := s.ledger.Forget(ctx, sourceID); err != nil {
			return err
		}
	}
	s.saveLexical()
	return nil
}

func (s *Scheduler) bumpStats(run *taskRun, apply func(*TaskStats)) {
	s.mu.Lock()
	apply(&run.task.Stats)
	s.mu.Unlock()
}

func (s *Scheduler) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.FileIndexed(outcome)
	}
}

func (s *Scheduler) saveLexical() {
	if s.lexicalPath == "" {
		return
	}
	if err := s.lexical.Save(s.lexicalPath); err != nil {
		slog.Error("failed to persist lexical index", "path", s.lexicalPath, "error", err)
	}
}
