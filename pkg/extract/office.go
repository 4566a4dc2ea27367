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

package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// officeExtractor handles Word and Excel documents.
type officeExtractor struct{}

func newOfficeExtractor() *officeExtractor {
	return &officeExtractor{}
}

func (oe *officeExtractor) Name() string {
	return "office"
}

func (oe *officeExtractor) CanExtract(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx", ".xlsx":
		return true
	}
	return false
}

func (oe *officeExtractor) Extensions() []string {
	return []string{".docx", ".xlsx"}
}

func (oe *officeExtractor) Priority() int {
	return 10
}

func (oe *officeExtractor) Extract(ctx context.Context, path string, fileSize int64) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".docx":
		return oe.extractWord(path)
	case ".xlsx":
		return oe.extractExcel(ctx, path)
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
}

func (oe *officeExtractor) extractWord(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer func() { _ = doc.Close() }()

	return stripXMLTags(doc.Editable().GetContent()), nil
}

// maxCellsPerSheet bounds extraction output on very large spreadsheets.
const maxCellsPerSheet = 1000

func (oe *officeExtractor) extractExcel(ctx context.Context, path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	var parts []string
	for _, sheetName := range f.GetSheetList() {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		var sheetText strings.Builder
		sheetText.WriteString(sheetName)
		sheetText.WriteString("\n")

		cellCount := 0
		for _, row := range rows {
			if cellCount >= maxCellsPerSheet {
				break
			}
			var cells []string
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					cells = append(cells, text)
					cellCount++
				}
				if cellCount >= maxCellsPerSheet {
					break
				}
			}
			if len(cells) > 0 {
				sheetText.WriteString(strings.Join(cells, " "))
				sheetText.WriteString("\n")
			}
		}

		if text := strings.TrimSpace(sheetText.String()); text != sheetName {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// stripXMLTags removes residual markup from docx content extraction.
func stripXMLTags(content string) string {
	var b strings.Builder
	b.Grow(len(content))
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

var _ Extractor = (*officeExtractor)(nil)
