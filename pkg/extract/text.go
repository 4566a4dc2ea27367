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
	"os"
	"path/filepath"
	"strings"
)

// textExtensions is the plain-text family handled without a format parser.
var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".markdown": true, ".rst": true,
	".csv": true, ".tsv": true, ".json": true, ".yaml": true, ".yml": true,
	".xml": true, ".toml": true, ".ini": true, ".cfg": true,
}

// textExtractor reads plain-text files directly.
type textExtractor struct{}

func newTextExtractor() *textExtractor {
	return &textExtractor{}
}

func (te *textExtractor) Name() string {
	return "text"
}

func (te *textExtractor) CanExtract(path string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(path))]
}

func (te *textExtractor) Extensions() []string {
	exts := make([]string, 0, len(textExtensions))
	for ext := range textExtensions {
		exts = append(exts, ext)
	}
	return exts
}

func (te *textExtractor) Extract(ctx context.Context, path string, fileSize int64) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

func (te *textExtractor) Priority() int {
	return 1
}

var _ Extractor = (*textExtractor)(nil)
