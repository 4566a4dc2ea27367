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
	"fmt"
	"strings"
	"unicode/utf8"
)

// contentPolicy rejects decoded text matching a deny-list of patterns.
// The list targets embedded active content; matching is case-insensitive.
type contentPolicy struct {
	denied []string
}

func defaultContentPolicy() *contentPolicy {
	return &contentPolicy{
		denied: []string{
			"<script",
			"javascript:",
			"vbscript:",
			"data:text/html",
		},
	}
}

func (p *contentPolicy) check(text string) error {
	lower := strings.ToLower(text)
	for _, pattern := range p.denied {
		if strings.Contains(lower, pattern) {
			return fmt.Errorf("%w: matched %q", ErrContentRejected, pattern)
		}
	}
	return nil
}

// cleanUTF8 validates and cleans decoded text. Text that is mostly
// invalid UTF-8 is dropped entirely.
func cleanUTF8(content string) string {
	if utf8.ValidString(content) {
		return content
	}

	cleaned := strings.ToValidUTF8(content, "")
	if len(content) > 0 {
		invalidRatio := float64(len(content)-len(cleaned)) / float64(len(content))
		if invalidRatio > 0.5 {
			return ""
		}
	}
	return cleaned
}
