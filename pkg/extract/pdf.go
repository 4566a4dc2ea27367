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
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pdfExtractor extracts plain text from PDF documents page by page.
type pdfExtractor struct{}

func newPDFExtractor() *pdfExtractor {
	return &pdfExtractor{}
}

func (pe *pdfExtractor) Name() string {
	return "pdf"
}

func (pe *pdfExtractor) CanExtract(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pdf"
}

func (pe *pdfExtractor) Extensions() []string {
	return []string{".pdf"}
}

func (pe *pdfExtractor) Priority() int {
	return 10
}

func (pe *pdfExtractor) Extract(ctx context.Context, path string, fileSize int64) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader, err := pdf.NewReader(file, fileSize)
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}

	var parts []string
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page does not fail the document.
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

var _ Extractor = (*pdfExtractor)(nil)
