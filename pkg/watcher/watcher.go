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

// Package watcher triggers incremental refreshes when files under a
// registered directory change on disk. Disabled by default; bursts of
// events are debounced into a single refresh per directory.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kadirpekel/hound/pkg/config"
	"github.com/kadirpekel/hound/pkg/registry"
	"github.com/kadirpekel/hound/pkg/scheduler"
)

// resyncInterval bounds how stale the watched-root set can get relative
// to the registry.
const resyncInterval = 30 * time.Second

// Watcher maps fsnotify events to the registered root that owns them and
// schedules a refresh after the debounce window closes.
type Watcher struct {
	cfg       config.WatcherConfig
	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	fs        *fsnotify.Watcher

	mu      sync.Mutex
	roots   map[string]struct{}
	pending map[string]*time.Timer
}

func New(cfg config.WatcherConfig, reg *registry.Registry, sched *scheduler.Scheduler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		cfg:       cfg,
		registry:  reg,
		scheduler: sched,
		fs:        fsw,
		roots:     make(map[string]struct{}),
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Start watches until the context is cancelled. The watched set follows
// the registry: roots added or removed at runtime are picked up on the
// next resync tick.
func (w *Watcher) Start(ctx context.Context) error {
	w.sync()
	slog.Info("filesystem watcher started", "debounce", w.cfg.Debounce)

	ticker := time.NewTicker(resyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return w.fs.Close()

		case <-ticker.C:
			w.sync()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			w.observe(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			slog.Error("filesystem watcher error", "error", err)
		}
	}
}

// sync reconciles the watched paths with the registry.
func (w *Watcher) sync() {
	current := make(map[string]struct{})
	for _, entry := range w.registry.List() {
		current[entry.Path] = struct{}{}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for root := range current {
		if _, ok := w.roots[root]; !ok {
			w.watchTree(root)
			w.roots[root] = struct{}{}
		}
	}
	for root := range w.roots {
		if _, ok := current[root]; !ok {
			for _, watched := range w.fs.WatchList() {
				if watched == root || strings.HasPrefix(watched, root+string(filepath.Separator)) {
					_ = w.fs.Remove(watched)
				}
			}
			delete(w.roots, root)
			if timer, ok := w.pending[root]; ok {
				timer.Stop()
				delete(w.pending, root)
			}
		}
	}
}

// watchTree adds root and each non-skipped subdirectory to the fsnotify
// watch list. Failures on individual subtrees are logged, not fatal.
func (w *Watcher) watchTree(root string) {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && scheduler.SkipDirName(d.Name()) {
			return filepath.SkipDir
		}
		if addErr := w.fs.Add(path); addErr != nil {
			slog.Warn("failed to watch directory", "path", path, "error", addErr)
		}
		return nil
	})
	if err != nil {
		slog.Warn("failed to walk directory for watching", "path", root, "error", err)
	}
}

// observe attributes one event to its owning root and arms (or re-arms)
// that root's debounce timer.
func (w *Watcher) observe(event fsnotify.Event) {
	root, ok := w.owningRoot(event.Name)
	if !ok {
		return
	}

	// New subdirectories must join the watch list or their contents
	// would go unseen.
	if event.Op&fsnotify.Create == fsnotify.Create {
		w.watchTree(event.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[root]; ok {
		timer.Stop()
	}
	w.pending[root] = time.AfterFunc(w.cfg.Debounce, func() {
		w.refresh(root)
	})
}

func (w *Watcher) owningRoot(path string) (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root := range w.roots {
		if path == root || strings.HasPrefix(path, root+string(filepath.Separator)) {
			return root, true
		}
	}
	return "", false
}

func (w *Watcher) refresh(root string) {
	w.mu.Lock()
	delete(w.pending, root)
	w.mu.Unlock()

	task, err := w.scheduler.Refresh(root)
	if err != nil {
		slog.Warn("watcher-triggered refresh failed", "path", root, "error", err)
		return
	}
	slog.Info("change detected, refresh scheduled", "path", root, "task_id", task.ID)
}

// drain stops all armed debounce timers.
func (w *Watcher) drain() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for root, timer := range w.pending {
		timer.Stop()
		delete(w.pending, root)
	}
}
