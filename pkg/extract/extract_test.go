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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestService_ExtractText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "notes.txt", "Python is a language. Python is great.")

	svc := NewService(0)
	res, err := svc.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "Python is a language. Python is great.", res.Text)
	assert.Equal(t, "txt", res.FileType)
	assert.Equal(t, int64(38), res.SizeBytes)
}

func TestService_ExtractMarkdown(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "readme.md", "# Title\n\nBody text here.")

	svc := NewService(0)
	res, err := svc.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "md", res.FileType)
	assert.Contains(t, res.Text, "Body text here.")
}

func TestService_UnsupportedType(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "binary.exe", "MZ\x00\x01")

	svc := NewService(0)
	_, err := svc.Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.True(t, IsRecoverable(err))
}

func TestService_TooLarge(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "big.txt", "this file exceeds the tiny cap")

	svc := NewService(10)
	_, err := svc.Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, IsRecoverable(err))
}

func TestService_ContentRejected(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "evil.txt", "harmless intro <script>alert(1)</script>")

	svc := NewService(0)
	_, err := svc.Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentRejected)
	assert.True(t, IsRecoverable(err))
}

func TestService_MissingFile(t *testing.T) {
	svc := NewService(0)
	_, err := svc.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.txt"))
	require.Error(t, err)
	assert.False(t, IsRecoverable(err))
}

func TestService_Supported(t *testing.T) {
	svc := NewService(0)
	assert.True(t, svc.Supported("doc.pdf"))
	assert.True(t, svc.Supported("doc.docx"))
	assert.True(t, svc.Supported("doc.xlsx"))
	assert.True(t, svc.Supported("doc.pptx"))
	assert.True(t, svc.Supported("doc.txt"))
	assert.False(t, svc.Supported("doc.bin"))

	exts := svc.SupportedExtensions()
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".md")
}

func TestSlidesExtractor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.pptx")

	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)

	slide1, err := zw.Create("ppt/slides/slide1.xml")
	require.NoError(t, err)
	_, err = slide1.Write([]byte(`<?xml version="1.0"?><p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><a:t>Hello slides</a:t></p:sld>`))
	require.NoError(t, err)

	slide2, err := zw.Create("ppt/slides/slide2.xml")
	require.NoError(t, err)
	_, err = slide2.Write([]byte(`<?xml version="1.0"?><p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><a:t>Second slide</a:t></p:sld>`))
	require.NoError(t, err)

	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	svc := NewService(0)
	res, err := svc.Extract(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, "pptx", res.FileType)
	assert.Contains(t, res.Text, "Hello slides")
	assert.Contains(t, res.Text, "Second slide")
}

func TestCleanUTF8(t *testing.T) {
	assert.Equal(t, "ok", cleanUTF8("ok"))

	// Mostly invalid input is dropped entirely.
	assert.Equal(t, "", cleanUTF8("\xff\xfe\xfd"))
}
