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

package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChunker(t *testing.T, size, overlap int) *Chunker {
	t.Helper()
	c, err := New(Config{Size: size, Overlap: overlap})
	require.NoError(t, err)
	return c
}

func TestChunker_EmptyInput(t *testing.T) {
	c := newTestChunker(t, 100, 20)
	assert.Empty(t, c.Chunk(""))
	assert.Empty(t, c.Chunk("   \n\t  "))
}

func TestChunker_ShortInputSingleChunk(t *testing.T) {
	c := newTestChunker(t, 1000, 200)
	pieces := c.Chunk("A single short sentence.")
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Ordinal)
	assert.Equal(t, "A single short sentence.", pieces[0].Text)
}

func TestChunker_OrdinalsDenseAndContiguous(t *testing.T) {
	c := newTestChunker(t, 100, 20)
	pieces := c.Chunk(strings.Repeat("word ", 200))
	require.Greater(t, len(pieces), 1)
	for i, p := range pieces {
		assert.Equal(t, i, p.Ordinal)
		assert.NotEmpty(t, p.Text)
	}
}

func TestChunker_Deterministic(t *testing.T) {
	c := newTestChunker(t, 100, 20)
	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 50)

	a := c.Chunk(text)
	b := c.Chunk(text)
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Ordinal, b[i].Ordinal)
		assert.Equal(t, a[i].Text, b[i].Text)
	}
}

func TestChunker_PrefersSentenceBoundary(t *testing.T) {
	// First sentence ends inside the slack window before the 100-char
	// target, so the first chunk should end exactly at the period.
	first := strings.Repeat("a", 93) + "."
	text := first + " " + strings.Repeat("b", 200)

	c := newTestChunker(t, 100, 20)
	pieces := c.Chunk(text)
	require.Greater(t, len(pieces), 1)
	assert.Equal(t, first, pieces[0].Text)
}

func TestChunker_HardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 250)
	c := newTestChunker(t, 100, 20)
	pieces := c.Chunk(text)
	require.Greater(t, len(pieces), 1)
	assert.Len(t, pieces[0].Text, 100)
}

func TestChunker_OverlapCoversBoundary(t *testing.T) {
	text := strings.Repeat("y", 300)
	c := newTestChunker(t, 100, 20)
	pieces := c.Chunk(text)
	require.GreaterOrEqual(t, len(pieces), 2)

	// The second chunk starts 20 chars before the first one ended.
	assert.Equal(t, strings.Repeat("y", 20), pieces[1].Text[:20])
}

func TestChunker_CoversAllContent(t *testing.T) {
	text := strings.Repeat("The quick brown fox. ", 100)
	c := newTestChunker(t, 100, 20)
	pieces := c.Chunk(text)

	var rebuilt strings.Builder
	for _, p := range pieces {
		rebuilt.WriteString(p.Text)
	}
	// With overlap the rebuilt text is longer, but the last chunk must
	// end where the input ends.
	last := pieces[len(pieces)-1].Text
	assert.True(t, strings.HasSuffix(text, last))
	assert.GreaterOrEqual(t, rebuilt.Len(), len(text))
}

func TestChunker_InvalidConfig(t *testing.T) {
	_, err := New(Config{Size: 100, Overlap: 100})
	assert.Error(t, err)

	_, err = New(Config{Size: -5})
	assert.NoError(t, err) // negative size falls back to default
}

func TestTokenCounter(t *testing.T) {
	tc := NewTokenCounter()
	n := tc.Count("hello world")
	assert.Greater(t, n, 0)
	assert.Equal(t, n*2, tc.CountAll([]string{"hello world", "hello world"}))
	assert.Zero(t, tc.CountAll(nil))
}
