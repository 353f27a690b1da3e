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
	"fmt"
	"os"
)

// LLM providers.
const (
	LLMProviderGemini = "gemini"
	LLMProviderNone   = "none"
)

// LLMConfig configures the optional model backend.
type LLMConfig struct {
	Provider    string  `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"enum=gemini,enum=none"`
	Model       string  `yaml:"model,omitempty" json:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// SetDefaults picks gemini when a key is available, otherwise none.
func (c *LLMConfig) SetDefaults() {
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GOOGLE_API_KEY")
	}
	if c.Provider == "" {
		if c.APIKey != "" {
			c.Provider = LLMProviderGemini
		} else {
			c.Provider = LLMProviderNone
		}
	}
	if c.Model == "" && c.Provider == LLMProviderGemini {
		c.Model = "gemini-2.0-flash"
	}
}

func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderNone:
		return nil
	case LLMProviderGemini:
		if c.APIKey == "" {
			return fmt.Errorf("api_key is required for provider gemini")
		}
	default:
		return fmt.Errorf("unknown provider %q (valid: gemini, none)", c.Provider)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be within [0, 2]")
	}
	return nil
}
