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

import "errors"

var (
	// ErrUnsupportedType marks files no extractor handles. Recoverable:
	// the indexing task skips the file and continues.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge marks files above the configured size cap. Recoverable.
	ErrTooLarge = errors.New("file too large")

	// ErrContentRejected marks files whose decoded text matches the
	// content deny-list. Recoverable.
	ErrContentRejected = errors.New("content rejected by policy")
)

// IsRecoverable reports whether an extraction error should skip the file
// rather than fail the indexing task.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrTooLarge) ||
		errors.Is(err, ErrContentRejected)
}
