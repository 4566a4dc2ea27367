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

// Package extract turns file paths into plain text. Extractors are
// registered per format behind a priority-ordered registry; the service
// applies the size cap and content policy before text reaches the
// indexing pipeline. Extraction only ever reads file content.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Result is the outcome of a successful extraction.
type Result struct {
	// Text is the decoded plain text.
	Text string

	// FileType is the lowercased extension without the dot.
	FileType string

	// SizeBytes is the on-disk file size.
	SizeBytes int64
}

// Extractor extracts plain text from one family of file formats.
type Extractor interface {
	// Name returns the extractor name for logging.
	Name() string

	// CanExtract determines if this extractor handles the given path.
	CanExtract(path string) bool

	// Extract reads the file and returns its plain text.
	Extract(ctx context.Context, path string, fileSize int64) (string, error)

	// Priority orders extractors; higher wins when several match.
	Priority() int
}

// Service routes extraction through registered extractors and enforces
// the file-size cap and the content deny-list.
type Service struct {
	extractors  []Extractor
	maxFileSize int64
	policy      *contentPolicy
}

// NewService creates an extraction service with the built-in extractors
// (plain text, PDF, DOCX/XLSX, PPTX) registered.
func NewService(maxFileSize int64) *Service {
	s := &Service{
		maxFileSize: maxFileSize,
		policy:      defaultContentPolicy(),
	}
	s.Register(newTextExtractor())
	s.Register(newPDFExtractor())
	s.Register(newOfficeExtractor())
	s.Register(newSlidesExtractor())
	return s
}

// Register adds an extractor, keeping the registry priority-sorted.
func (s *Service) Register(e Extractor) {
	s.extractors = append(s.extractors, e)
	sort.SliceStable(s.extractors, func(i, j int) bool {
		return s.extractors[i].Priority() > s.extractors[j].Priority()
	})
}

// Supported reports whether any extractor handles the path.
func (s *Service) Supported(path string) bool {
	return s.find(path) != nil
}

// SupportedExtensions returns the union of extensions the built-in
// extractors accept, for diagnostics.
func (s *Service) SupportedExtensions() []string {
	seen := make(map[string]struct{})
	for _, e := range s.extractors {
		if lister, ok := e.(interface{ Extensions() []string }); ok {
			for _, ext := range lister.Extensions() {
				seen[ext] = struct{}{}
			}
		}
	}
	exts := make([]string, 0, len(seen))
	for ext := range seen {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (s *Service) find(path string) Extractor {
	for _, e := range s.extractors {
		if e.CanExtract(path) {
			return e
		}
	}
	return nil
}

// Extract returns the plain text of the file at path, or one of the
// recoverable policy errors (ErrUnsupportedType, ErrTooLarge,
// ErrContentRejected) when the file must be skipped.
func (s *Service) Extract(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", filepath.Base(path), err)
	}

	if s.maxFileSize > 0 && info.Size() > s.maxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes (limit %d)",
			ErrTooLarge, filepath.Base(path), info.Size(), s.maxFileSize)
	}

	e := s.find(path)
	if e == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}

	text, err := e.Extract(ctx, path, info.Size())
	if err != nil {
		return nil, fmt.Errorf("%s failed on %s: %w", e.Name(), filepath.Base(path), err)
	}

	text = cleanUTF8(text)
	if err := s.policy.check(text); err != nil {
		return nil, err
	}

	return &Result{
		Text:      text,
		FileType:  fileType(path),
		SizeBytes: info.Size(),
	}, nil
}

// fileType derives the lowercased extension tag without the dot.
func fileType(path string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
}
