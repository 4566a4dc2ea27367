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

package embedders

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Mock is a deterministic offline embedder for tests and development.
// Each token is hashed into a fixed slot of the vector, so texts sharing
// words produce similar (cosine-close) embeddings.
type Mock struct {
	dimension int
}

// NewMock creates a mock embedder with the given dimension.
func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = 64
	}
	return &Mock{dimension: dimension}
}

func (e *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dimension)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		vec[int(h.Sum32())%e.dimension]++
	}

	// L2-normalize so dot products are cosine similarities.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func (e *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedOneByOne(ctx, e, texts)
}

func (e *Mock) Dimension() int {
	return e.dimension
}

func (e *Mock) Model() string {
	return "mock"
}

func (e *Mock) Close() error {
	return nil
}

var _ Provider = (*Mock)(nil)
