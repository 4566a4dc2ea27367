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
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Inverted is an in-memory inverted index over chunk tokens. It maps each
// term to the chunks containing it with per-chunk term frequencies, and
// keeps chunk lengths for TF normalization. Safe for concurrent use;
// writers obtain exclusivity, readers share.
type Inverted struct {
	mu sync.RWMutex

	// postings: term -> chunk id -> term frequency.
	postings map[string]map[string]int

	// docLens: chunk id -> total token count.
	docLens map[string]int
}

// NewInverted creates an empty inverted index.
func NewInverted() *Inverted {
	return &Inverted{
		postings: make(map[string]map[string]int),
		docLens:  make(map[string]int),
	}
}

// Add indexes a chunk's token stream. Re-adding an existing chunk id
// replaces its previous postings.
func (ix *Inverted) Add(chunkID string, tokens []string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, exists := ix.docLens[chunkID]; exists {
		ix.removeLocked(chunkID)
	}

	ix.docLens[chunkID] = len(tokens)
	for _, t := range tokens {
		m := ix.postings[t]
		if m == nil {
			m = make(map[string]int)
			ix.postings[t] = m
		}
		m[chunkID]++
	}
}

// Remove drops a chunk from the index. Unknown ids are a no-op.
func (ix *Inverted) Remove(chunkID string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(chunkID)
}

func (ix *Inverted) removeLocked(chunkID string) {
	if _, exists := ix.docLens[chunkID]; !exists {
		return
	}
	delete(ix.docLens, chunkID)
	for term, m := range ix.postings {
		if _, ok := m[chunkID]; ok {
			delete(m, chunkID)
			if len(m) == 0 {
				delete(ix.postings, term)
			}
		}
	}
}

// Has reports whether a chunk id is indexed.
func (ix *Inverted) Has(chunkID string) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.docLens[chunkID]
	return ok
}

// Postings returns the ids of chunks containing term, sorted for
// deterministic iteration.
func (ix *Inverted) Postings(term string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	m := ix.postings[term]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// DocFreq returns the number of chunks containing term.
func (ix *Inverted) DocFreq(term string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.postings[term])
}

// TotalDocs returns the number of indexed chunks.
func (ix *Inverted) TotalDocs() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docLens)
}

// Candidates returns the union of postings for the query tokens.
func (ix *Inverted) Candidates(queryTokens []string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, t := range queryTokens {
		for id := range ix.postings[t] {
			seen[id] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Score computes the TF-IDF relevance of a chunk for the query tokens:
// sum over terms of (tf/|chunk|) * ln(N/df). Chunks containing none of
// the terms score zero.
func (ix *Inverted) Score(queryTokens []string, chunkID string) float64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	docLen := ix.docLens[chunkID]
	if docLen == 0 {
		return 0
	}
	total := float64(len(ix.docLens))

	var score float64
	for _, t := range queryTokens {
		m := ix.postings[t]
		tf := m[chunkID]
		if tf == 0 {
			continue
		}
		df := float64(len(m))
		score += (float64(tf) / float64(docLen)) * math.Log(total/df)
	}
	return score
}

// persistedIndex is the gob snapshot layout.
type persistedIndex struct {
	Postings map[string]map[string]int
	DocLens  map[string]int
}

// Save writes an atomic snapshot of the index to path.
func (ix *Inverted) Save(path string) error {
	ix.mu.RLock()
	snapshot := persistedIndex{
		Postings: make(map[string]map[string]int, len(ix.postings)),
		DocLens:  make(map[string]int, len(ix.docLens)),
	}
	for term, m := range ix.postings {
		cp := make(map[string]int, len(m))
		for id, tf := range m {
			cp[id] = tf
		}
		snapshot.Postings[term] = cp
	}
	for id, l := range ix.docLens {
		snapshot.DocLens[id] = l
	}
	ix.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create index snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(&snapshot); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to encode index snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to close index snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to install index snapshot: %w", err)
	}
	return nil
}

// Load replaces the index contents from a snapshot. A missing file
// leaves the index empty and is not an error.
func (ix *Inverted) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open index snapshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	var snapshot persistedIndex
	if err := gob.NewDecoder(f).Decode(&snapshot); err != nil {
		return fmt.Errorf("failed to decode index snapshot: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	if snapshot.Postings == nil {
		snapshot.Postings = make(map[string]map[string]int)
	}
	if snapshot.DocLens == nil {
		snapshot.DocLens = make(map[string]int)
	}
	ix.postings = snapshot.Postings
	ix.docLens = snapshot.DocLens
	return nil
}
