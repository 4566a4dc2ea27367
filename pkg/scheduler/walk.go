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
	"io/fs"
	"path/filepath"
	"strings"
)

// skipDirs are directory names never descended into, on top of the
// leading-dot rule.
var skipDirs = map[string]struct{}{
	".git":         {},
	".svn":         {},
	"node_modules": {},
	"__pycache__":  {},
	"dist":         {},
	"build":        {},
	".vscode":      {},
	".idea":        {},
}

// skipFilePatterns are glob patterns matched against the base name.
var skipFilePatterns = []string{"*.tmp", "*.log"}

// SkipDirName reports whether a directory of this name is never descended
// into. Shared with the filesystem watcher.
func SkipDirName(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	_, ok := skipDirs[name]
	return ok
}

func (s *Scheduler) skipFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	for _, pattern := range skipFilePatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	for _, pattern := range s.cfg.SkipPatterns {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

// walk lists the indexable files under root in walk order, applying the
// skip rules. Unreadable subtrees are skipped, not fatal.
func (s *Scheduler) walk(ctx context.Context, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != root && SkipDirName(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if s.skipFile(d.Name()) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}
