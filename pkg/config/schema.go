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
	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of Config. Property names follow the
// yaml tags so the schema validates config files directly.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&Config{})
	schema.ID = "https://github.com/kadirpekel/a2alab/schemas/config.json"
	schema.Title = "a2alab configuration"
	schema.Description = "Server, agent, model and observability settings for a2alab"
	schema.Version = "http://json-schema.org/draft-07/schema#"
	schema.Examples = []any{
		map[string]any{
			"server": map[string]any{
				"port":       8001,
				"transports": []string{"jsonrpc", "rest"},
				"tasks":      map[string]any{"backend": "sqlite", "dsn": "./tasks.db"},
			},
			"agent": map[string]any{"profile": "streaming"},
		},
	}
	return schema
}
