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

package ledger

import (
	"time"

	"github.com/kadirpekel/hound/pkg/model"
)

// MetadataMatches reports whether the on-disk size and mtime match the
// stored state. A match lets the pipeline skip extraction and hashing
// entirely.
func MetadataMatches(prev *model.FileState, size int64, modifiedAt time.Time) bool {
	if prev == nil {
		return false
	}
	return prev.SizeBytes == size && prev.ModifiedAt.Equal(modifiedAt)
}

// Classify decides the change kind from the stored state and the freshly
// computed content hash. A file whose metadata changed but whose content
// hash did not (touched, not edited) is unchanged.
func Classify(prev *model.FileState, contentHash string) model.Change {
	if prev == nil {
		return model.ChangeNew
	}
	if prev.ContentHash == contentHash {
		return model.ChangeUnchanged
	}
	return model.ChangeModified
}
