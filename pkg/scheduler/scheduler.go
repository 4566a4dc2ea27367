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

// Package scheduler runs per-directory ingest tasks: walking, change
// detection against the ledger, extraction, chunking, embedding and
// store/index updates, with a global concurrency cap and per-directory
// serialization.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kadirpekel/hound/pkg/chunk"
	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/embedders"
	"github.com/kadirpekel/hound/pkg/extract"
	"github.com/kadirpekel/hound/pkg/index"
	"github.com/kadirpekel/hound/pkg/ledger"
	"github.com/kadirpekel/hound/pkg/metrics"
	"github.com/kadirpekel/hound/pkg/model"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/vector"
)

var ErrTaskNotFound = errors.New("task not found")

// taskRetention is how long finished tasks stay queryable before they
// are pruned from the task table.
const taskRetention = time.Hour

// TaskState is the lifecycle state of an indexing task.
type TaskState string

const (
	TaskQueued    TaskState = "queued"
	TaskRunning   TaskState = "running"
	TaskCompleted TaskState = "completed"
	TaskFailed    TaskState = "failed"
	TaskCancelled TaskState = "cancelled"
)

// TaskStats counts per-file outcomes of one task run.
type TaskStats struct {
	New       int `json:"new"`
	Modified  int `json:"modified"`
	Unchanged int `json:"unchanged"`
	Deleted   int `json:"deleted"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Task is a snapshot of one indexing task.
type Task struct {
	ID         string     `json:"id"`
	Directory  string     `json:"directory"`
	State      TaskState  `json:"state"`
	Stats      TaskStats  `json:"stats"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type taskRun struct {
	task   Task
	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns the indexing pipeline and the task table.
type Scheduler struct {
	cfg       config.IndexingConfig
	registry  *registry.Registry
	ledger    *ledger.Ledger
	extractor *extract.Service
	chunker   *chunk.Chunker
	embedder  embedders.Provider
	store     vector.ChunkStore
	lexical   *index.Inverted

	// lexicalPath is the snapshot file written after every task.
	lexicalPath string
	metrics     *metrics.Metrics
	retention   time.Duration

	sem chan struct{}

	mu     sync.Mutex
	tasks  map[string]*taskRun // by task id
	active map[string]*taskRun // by directory path, running or queued
}

// Options collects the scheduler's collaborators.
type Options struct {
	Config      config.IndexingConfig
	Registry    *registry.Registry
	Ledger      *ledger.Ledger
	Extractor   *extract.Service
	Chunker     *chunk.Chunker
	Embedder    embedders.Provider
	Store       vector.ChunkStore
	Lexical     *index.Inverted
	LexicalPath string
	Metrics     *metrics.Metrics
}

func New(opts Options) *Scheduler {
	maxConcurrent := opts.Config.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 5
	}
	return &Scheduler{
		cfg:         opts.Config,
		registry:    opts.Registry,
		ledger:      opts.Ledger,
		extractor:   opts.Extractor,
		chunker:     opts.Chunker,
		embedder:    opts.Embedder,
		store:       opts.Store,
		lexical:     opts.Lexical,
		lexicalPath: opts.LexicalPath,
		metrics:     opts.Metrics,
		retention:   taskRetention,
		sem:         make(chan struct{}, maxConcurrent),
		tasks:       make(map[string]*taskRun),
		active:      make(map[string]*taskRun),
	}
}

// Refresh starts an indexing task for a registered directory. A refresh
// while a task for the same directory is queued or running returns that
// task instead of starting a new one.
func (s *Scheduler) Refresh(path string) (*Task, error) {
	entry, ok := s.registry.Get(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", registry.ErrNotRegistered, path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneFinishedLocked(time.Now())

	if run, live := s.active[entry.Path]; live {
		snapshot := run.task
		return &snapshot, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &taskRun{
		task: Task{
			ID:        taskID(entry.Path),
			Directory: entry.Path,
			State:     TaskQueued,
			CreatedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.tasks[run.task.ID] = run
	s.active[entry.Path] = run

	go s.execute(ctx, run)

	snapshot := run.task
	return &snapshot, nil
}

// Cancel requests cancellation of a task. The task finishes its current
// file and keeps all progress made so far.
func (s *Scheduler) Cancel(taskID string) error {
	s.mu.Lock()
	run, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskID)
	}
	run.cancel()
	return nil
}

// CancelDirectory cancels the live task of a directory, if any, and waits
// for it to settle. Used before removing a directory.
func (s *Scheduler) CancelDirectory(path string) {
	s.mu.Lock()
	run, ok := s.active[path]
	s.mu.Unlock()
	if !ok {
		return
	}
	run.cancel()
	<-run.done
}

// pruneFinishedLocked drops terminal tasks past the retention window so
// the task table stays bounded in a long-running service. Caller holds mu.
func (s *Scheduler) pruneFinishedLocked(now time.Time) {
	for id, run := range s.tasks {
		switch run.task.State {
		case TaskCompleted, TaskFailed, TaskCancelled:
			if run.task.FinishedAt != nil && now.Sub(*run.task.FinishedAt) > s.retention {
				delete(s.tasks, id)
			}
		}
	}
}

// Task returns a snapshot of a task by id.
func (s *Scheduler) Task(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	snapshot := run.task
	return &snapshot, true
}

// Tasks returns snapshots of all known tasks, newest first.
func (s *Scheduler) Tasks() []Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Task, 0, len(s.tasks))
	for _, run := range s.tasks {
		out = append(out, run.task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Shutdown cancels all live tasks and waits for them to settle.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	live := make([]*taskRun, 0, len(s.active))
	for _, run := range s.active {
		run.cancel()
		live = append(live, run)
	}
	s.mu.Unlock()
	for _, run := range live {
		<-run.done
	}
}

func (s *Scheduler) execute(ctx context.Context, run *taskRun) {
	defer close(run.done)

	// Respect the global cap, but honor cancellation while queued.
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		s.finish(run, TaskCancelled, nil)
		return
	}

	s.setState(run, TaskRunning)
	slog.Info("indexing started", "task", run.task.ID, "directory", run.task.Directory)

	err := s.runPipeline(ctx, run)

	switch {
	case err == nil:
		s.finish(run, TaskCompleted, nil)
		slog.Info("indexing completed", "task", run.task.ID, "stats", run.task.Stats)
	case errors.Is(err, context.Canceled):
		s.finish(run, TaskCancelled, nil)
		slog.Info("indexing cancelled", "task", run.task.ID, "stats", run.task.Stats)
	default:
		s.finish(run, TaskFailed, err)
		slog.Error("indexing failed", "task", run.task.ID, "error", err)
	}
}

func (s *Scheduler) setState(run *taskRun, state TaskState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run.task.State = state
	if state == TaskRunning {
		now := time.Now()
		run.task.StartedAt = &now
	}
}

func (s *Scheduler) finish(run *taskRun, state TaskState, err error) {
	s.mu.Lock()
	run.task.State = state
	now := time.Now()
	run.task.FinishedAt = &now
	if err != nil {
		run.task.Error = err.Error()
	}
	delete(s.active, run.task.Directory)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.TaskFinished(string(state))
	}

	dirCtx := context.Background()
	switch state {
	case TaskCompleted:
		_ = s.registry.Update(dirCtx, run.task.Directory, func(e *model.DirectoryEntry) {
			e.Status = model.StatusIndexed
			e.Progress = 1
			e.LastError = ""
			e.LastIndexedAt = &now
		})
	case TaskCancelled:
		// Partial progress is valid; whatever the ledger holds is served.
		_ = s.registry.Update(dirCtx, run.task.Directory, func(e *model.DirectoryEntry) {
			e.Status = model.StatusIndexed
			e.LastError = ""
		})
	case TaskFailed:
		_ = s.registry.Update(dirCtx, run.task.Directory, func(e *model.DirectoryEntry) {
			e.Status = model.StatusError
			e.LastError = err.Error()
		})
	}
}

// taskID builds the task identifier from the current time and a
// slugified directory path.
func taskID(path string) string {
	return fmt.Sprintf("dir_%d_%s", time.Now().UnixMilli(), slug(path))
}

func slug(path string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(path) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "root"
	}
	return out
}
