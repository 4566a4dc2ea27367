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

// Package ratelimit implements per-client token buckets for the three
// route classes: global, search and index.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/kadirpekel/hound/pkg/config"
)

// Class selects the limit applied to a route.
type Class string

const (
	ClassGlobal Class = "global"
	ClassSearch Class = "search"
	ClassIndex  Class = "index"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter hands out tokens per (client, class) pair. Buckets refill
// continuously at the per-minute rate and are capped at that rate.
type Limiter struct {
	cfg config.RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

func New(cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		cfg:     cfg,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

func (l *Limiter) limit(class Class) float64 {
	switch class {
	case ClassSearch:
		return float64(l.cfg.SearchPerMinute)
	case ClassIndex:
		return float64(l.cfg.IndexPerMinute)
	default:
		return float64(l.cfg.GlobalPerMinute)
	}
}

// Allow consumes one token for the client in the given class. When the
// bucket is empty it returns false and the wait until the next token.
func (l *Limiter) Allow(clientID string, class Class) (bool, time.Duration) {
	if !l.cfg.IsEnabled() {
		return true, 0
	}
	limit := l.limit(class)
	if limit <= 0 {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := clientID + "|" + string(class)
	now := l.now()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: limit, last: now}
		l.buckets[key] = b
	}

	refillPerSec := limit / 60
	b.tokens = math.Min(limit, b.tokens+now.Sub(b.last).Seconds()*refillPerSec)
	b.last = now

	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}

	wait := time.Duration((1 - b.tokens) / refillPerSec * float64(time.Second))
	return false, wait
}

// RetryAfterSeconds rounds a wait up to whole seconds for the
// Retry-After header, at least 1.
func RetryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}
