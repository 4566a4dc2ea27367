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

package config

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// JSONSchema renders the configuration schema as indented JSON, for
// editor integration and `hound validate --schema`.
func JSONSchema() (string, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		KeyNamer:       func(name string) string { return name },
	}
	schema := reflector.Reflect(&Config{})
	schema.Title = "Hound Configuration"
	schema.Description = "Configuration schema for the hound desktop search service"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render config schema: %w", err)
	}
	return string(out), nil
}
