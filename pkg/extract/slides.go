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
	"archive/zip"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// slidesExtractor handles PowerPoint documents. PPTX is an OOXML zip;
// slide text lives in a:t runs under ppt/slides/slideN.xml.
type slidesExtractor struct{}

func newSlidesExtractor() *slidesExtractor {
	return &slidesExtractor{}
}

func (se *slidesExtractor) Name() string {
	return "slides"
}

func (se *slidesExtractor) CanExtract(path string) bool {
	return strings.ToLower(filepath.Ext(path)) == ".pptx"
}

func (se *slidesExtractor) Extensions() []string {
	return []string{".pptx"}
}

func (se *slidesExtractor) Priority() int {
	return 10
}

var slideNamePattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func (se *slidesExtractor) Extract(ctx context.Context, path string, fileSize int64) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pptx: %w", err)
	}
	defer func() { _ = reader.Close() }()

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, f := range reader.File {
		if m := slideNamePattern.FindStringSubmatch(f.Name); m != nil {
			num, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{num: num, file: f})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var parts []string
	for _, s := range slides {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		text, err := se.slideText(s.file)
		if err != nil {
			// Skip unreadable slides, keep the rest of the deck.
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, "\n\n"), nil
}

// slideText extracts the text runs of one slide XML.
func (se *slidesExtractor) slideText(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer func() { _ = rc.Close() }()

	decoder := xml.NewDecoder(rc)
	var b strings.Builder
	inRun := false
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			if t.Name.Local == "t" {
				inRun = false
				b.WriteString(" ")
			}
		case xml.CharData:
			if inRun {
				b.Write(t)
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

var _ Extractor = (*slidesExtractor)(nil)
