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

package index

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInverted_AddRemove(t *testing.T) {
	ix := NewInverted()

	ix.Add("c1", []string{"python", "language", "python"})
	ix.Add("c2", []string{"java", "language"})

	assert.Equal(t, 2, ix.TotalDocs())
	assert.Equal(t, []string{"c1", "c2"}, ix.Postings("language"))
	assert.Equal(t, []string{"c1"}, ix.Postings("python"))
	assert.Equal(t, 1, ix.DocFreq("java"))
	assert.True(t, ix.Has("c1"))

	ix.Remove("c1")
	assert.Equal(t, 1, ix.TotalDocs())
	assert.Empty(t, ix.Postings("python"))
	assert.Equal(t, 0, ix.DocFreq("python"))
	assert.False(t, ix.Has("c1"))

	// Removing twice is a no-op.
	ix.Remove("c1")
	assert.Equal(t, 1, ix.TotalDocs())
}

func TestInverted_ReAddReplaces(t *testing.T) {
	ix := NewInverted()
	ix.Add("c1", []string{"alpha", "beta"})
	ix.Add("c1", []string{"gamma"})

	assert.Equal(t, 1, ix.TotalDocs())
	assert.Empty(t, ix.Postings("alpha"))
	assert.Equal(t, []string{"c1"}, ix.Postings("gamma"))
}

func TestInverted_Candidates(t *testing.T) {
	ix := NewInverted()
	ix.Add("c1", []string{"machine", "learning"})
	ix.Add("c2", []string{"learning", "rust"})
	ix.Add("c3", []string{"gardening"})

	assert.Equal(t, []string{"c1", "c2"}, ix.Candidates([]string{"machine", "learning"}))
	assert.Empty(t, ix.Candidates([]string{"quantum"}))
}

func TestInverted_Score(t *testing.T) {
	ix := NewInverted()
	ix.Add("c1", []string{"python", "language", "python", "great"})
	ix.Add("c2", []string{"java", "language"})

	// tf(python,c1)=2, |c1|=4, N=2, df(python)=1.
	want := (2.0 / 4.0) * math.Log(2.0/1.0)
	assert.InDelta(t, want, ix.Score([]string{"python"}, "c1"), 1e-9)

	// Term present in every chunk contributes zero.
	assert.InDelta(t, 0, ix.Score([]string{"language"}, "c2"), 1e-9)

	// Unknown chunk scores zero.
	assert.Zero(t, ix.Score([]string{"python"}, "nope"))
}

func TestInverted_ScoreRanksHigherTF(t *testing.T) {
	ix := NewInverted()
	ix.Add("c1", []string{"python", "python", "code", "rocks"})
	ix.Add("c2", []string{"python", "code", "tips", "here"})
	ix.Add("c3", []string{"gardening", "tools", "shed", "soil"})

	q := []string{"python"}
	assert.Greater(t, ix.Score(q, "c1"), ix.Score(q, "c2"))
	assert.Zero(t, ix.Score(q, "c3"))
}

func TestInverted_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lexical.gob")

	ix := NewInverted()
	ix.Add("c1", []string{"python", "language"})
	ix.Add("c2", []string{"java", "language"})
	require.NoError(t, ix.Save(path))

	loaded := NewInverted()
	require.NoError(t, loaded.Load(path))

	assert.Equal(t, 2, loaded.TotalDocs())
	assert.Equal(t, []string{"c1"}, loaded.Postings("python"))
	assert.InDelta(t,
		ix.Score([]string{"python"}, "c1"),
		loaded.Score([]string{"python"}, "c1"), 1e-9)
}

func TestInverted_LoadMissingFile(t *testing.T) {
	ix := NewInverted()
	require.NoError(t, ix.Load(filepath.Join(t.TempDir(), "absent.gob")))
	assert.Zero(t, ix.TotalDocs())
}
