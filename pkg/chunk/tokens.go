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
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter reports token counts for chunk texts, used for embed batch
// budgeting and stats. Counting uses the cl100k_base encoding; when the
// encoding cannot be loaded it falls back to a chars/4 estimate.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	sharedCounter *TokenCounter
	counterOnce   sync.Once
)

// NewTokenCounter returns the process-wide token counter.
func NewTokenCounter() *TokenCounter {
	counterOnce.Do(func() {
		sharedCounter = &TokenCounter{}
		if enc, err := tiktoken.GetEncoding("cl100k_base"); err == nil {
			sharedCounter.encoding = enc
		}
	})
	return sharedCounter
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	if tc == nil || tc.encoding == nil {
		// Rough estimate: 4 characters per token.
		return len(text) / 4
	}
	return len(tc.encoding.Encode(text, nil, nil))
}

// CountAll sums token counts over a batch of texts.
func (tc *TokenCounter) CountAll(texts []string) int {
	total := 0
	for _, t := range texts {
		total += tc.Count(t)
	}
	return total
}
