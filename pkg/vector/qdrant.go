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

package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantOptions configures the remote Qdrant store.
type QdrantOptions struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// Qdrant is a chunk store backed by a remote Qdrant instance.
type Qdrant struct {
	client *qdrant.Client
	opts   QdrantOptions
}

// NewQdrant connects to Qdrant and ensures the chunk collection exists.
func NewQdrant(opts QdrantOptions) (*Qdrant, error) {
	if opts.Host == "" {
		opts.Host = "localhost"
	}
	if opts.Port == 0 {
		opts.Port = 6334
	}
	if opts.Collection == "" {
		opts.Collection = "chunks"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   opts.Host,
		Port:   opts.Port,
		APIKey: opts.APIKey,
		UseTLS: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	s := &Qdrant{client: client, opts: opts}
	if err := s.ensureCollection(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.opts.Collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %q: %w", s.opts.Collection, err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.opts.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.opts.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", s.opts.Collection, err)
	}
	return nil
}

// pointID formats a 32-hex chunk id as a UUID, which Qdrant requires for
// non-numeric point ids.
func pointID(chunkID string) string {
	if len(chunkID) != 32 {
		return chunkID
	}
	return chunkID[0:8] + "-" + chunkID[8:12] + "-" + chunkID[12:16] + "-" +
		chunkID[16:20] + "-" + chunkID[20:32]
}

const payloadText = "text"
const payloadChunkID = "chunk_id"

func (s *Qdrant) Upsert(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, c := range chunks {
		embedded := len(c.Vector) > 0
		vec := c.Vector
		if !embedded {
			vec = placeholderVector(c.ID, s.opts.Dimension)
		}

		payload := map[string]*qdrant.Value{
			payloadText:    qdrant.NewValueString(c.Text),
			payloadChunkID: qdrant.NewValueString(c.ID),
		}
		for k, v := range metaToMap(c.Meta, embedded) {
			payload[k] = qdrant.NewValueString(v)
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(pointID(c.ID)),
			Vectors: qdrant.NewVectors(vec...),
			Payload: payload,
		})
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.opts.Collection,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}
	return nil
}

func (s *Qdrant) Get(ctx context.Context, chunkID string) (*Chunk, bool) {
	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.opts.Collection,
		Ids:            []*qdrant.PointId{qdrant.NewID(pointID(chunkID))},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil || len(points) == 0 {
		return nil, false
	}
	return s.chunkFromPayload(chunkID, points[0].Payload), true
}

func (s *Qdrant) chunkFromPayload(chunkID string, payload map[string]*qdrant.Value) *Chunk {
	meta := map[string]string{}
	text := ""
	for k, v := range payload {
		sv := v.GetStringValue()
		switch k {
		case payloadText:
			text = sv
		case payloadChunkID:
			chunkID = sv
		default:
			meta[k] = sv
		}
	}
	return &Chunk{ID: chunkID, Text: text, Meta: metaFromMap(meta)}
}

func (s *Qdrant) DeleteBySource(ctx context.Context, sourceID string) error {
	wait := true
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.opts.Collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch(metaSourceID, sourceID),
					},
				},
			},
		},
		Wait: &wait,
	})
	if err != nil {
		return fmt.Errorf("failed to delete chunks of %s: %w", sourceID, err)
	}
	return nil
}

func (s *Qdrant) QuerySemantic(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	must := []*qdrant.Condition{
		qdrant.NewMatch(metaEmbedded, "true"),
	}
	for key, val := range filter {
		must = append(must, qdrant.NewMatch(key, val))
	}

	limit := uint64(k)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.opts.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         &qdrant.Filter{Must: must},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("semantic query failed: %w", err)
	}

	results := make([]Result, 0, len(points))
	for _, p := range points {
		c := s.chunkFromPayload("", p.Payload)
		results = append(results, Result{
			ID:    c.ID,
			Score: p.Score,
			Text:  c.Text,
			Meta:  c.Meta,
		})
	}
	return results, nil
}

func (s *Qdrant) Stats(ctx context.Context) (Stats, error) {
	count, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.opts.Collection,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count chunks: %w", err)
	}
	return Stats{
		TotalChunks: int(count),
		Dimension:   s.opts.Dimension,
		PersistDir:  s.opts.Host + ":" + strconv.Itoa(s.opts.Port),
	}, nil
}

func (s *Qdrant) Close() error {
	return s.client.Close()
}

var _ ChunkStore = (*Qdrant)(nil)
