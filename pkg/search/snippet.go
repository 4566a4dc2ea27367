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

package search

import (
	"strings"
	"unicode"
)

// tokenSpan is one token occurrence in the source text, in byte offsets.
type tokenSpan struct {
	start, end int
	token      string
}

// Snippet extracts a window of about `window` bytes around the densest
// cluster of query-token matches, expands it to whitespace boundaries,
// adds ellipses for truncation and wraps matched tokens in **…**.
func Snippet(text string, queryTokens []string, window int) string {
	if text == "" {
		return ""
	}
	if len(text) <= window {
		return highlight(text, matchSpans(text, queryTokens))
	}

	spans := matchSpans(text, queryTokens)
	start := bestWindowStart(text, spans, queryTokens, window)
	end := start + window
	if end > len(text) {
		end = len(text)
		start = end - window
	}

	// Expand to whitespace so words are not cut mid-way.
	for start > 0 && !unicode.IsSpace(rune(text[start-1])) {
		start--
	}
	for end < len(text) && !unicode.IsSpace(rune(text[end])) {
		end++
	}

	var inWindow []tokenSpan
	for _, s := range spans {
		if s.start >= start && s.end <= end {
			inWindow = append(inWindow, tokenSpan{start: s.start - start, end: s.end - start, token: s.token})
		}
	}

	snippet := highlight(text[start:end], inWindow)
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet += "…"
	}
	return snippet
}

// matchSpans finds all occurrences of the query tokens in text,
// case-insensitively, on token boundaries.
func matchSpans(text string, queryTokens []string) []tokenSpan {
	if len(queryTokens) == 0 {
		return nil
	}
	wanted := make(map[string]struct{}, len(queryTokens))
	for _, t := range queryTokens {
		wanted[t] = struct{}{}
	}

	var spans []tokenSpan
	lower := strings.ToLower(text)
	start := -1
	for i, r := range lower {
		isToken := unicode.IsLetter(r) || unicode.IsDigit(r)
		if isToken && start < 0 {
			start = i
		}
		if !isToken && start >= 0 {
			if _, ok := wanted[lower[start:i]]; ok {
				spans = append(spans, tokenSpan{start: start, end: i, token: lower[start:i]})
			}
			start = -1
		}
	}
	if start >= 0 {
		if _, ok := wanted[lower[start:]]; ok {
			spans = append(spans, tokenSpan{start: start, end: len(lower), token: lower[start:]})
		}
	}
	return spans
}

// bestWindowStart slides a window over the match spans and returns the
// start of the window covering the most distinct query tokens. Ties go to
// the earliest window. With no matches the snippet starts at 0.
func bestWindowStart(text string, spans []tokenSpan, queryTokens []string, window int) int {
	if len(spans) == 0 {
		return 0
	}

	best, bestCount := 0, 0
	for i := range spans {
		start := spans[i].start
		end := start + window
		distinct := make(map[string]struct{})
		for j := i; j < len(spans) && spans[j].end <= end; j++ {
			distinct[spans[j].token] = struct{}{}
		}
		if len(distinct) > bestCount {
			bestCount = len(distinct)
			best = start
		}
	}

	if best+window > len(text) {
		best = len(text) - window
		if best < 0 {
			best = 0
		}
	}
	return best
}

// highlight wraps each matched span in **…**. Spans are in ascending
// order and non-overlapping.
func highlight(text string, spans []tokenSpan) string {
	if len(spans) == 0 {
		return text
	}
	var b strings.Builder
	prev := 0
	for _, s := range spans {
		if s.start < prev {
			continue
		}
		b.WriteString(text[prev:s.start])
		b.WriteString("**")
		b.WriteString(text[s.start:s.end])
		b.WriteString("**")
		prev = s.end
	}
	b.WriteString(text[prev:])
	return b.String()
}
