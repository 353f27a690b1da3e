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

// Package llm is the text generation backend of the LLM-backed agents.
//
// Gemini is used when an API key is configured. Without one the agents
// run on Offline, which answers deterministically so every demo works
// without network access.
package llm

import (
	"context"
	"fmt"

	"github.com/kadirpekel/a2alab/pkg/config"
)

// Request is one single-turn generation.
type Request struct {
	// System is the system instruction.
	System string

	Prompt string

	// JSON asks for a JSON document as the answer.
	JSON bool

	// Fallback is returned by Offline. Online models ignore it.
	Fallback string
}

// Model generates text.
type Model interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// New returns the model named by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Model, error) {
	switch cfg.Provider {
	case config.LLMProviderGemini:
		return NewGemini(ctx, GeminiConfig{
			APIKey:      cfg.APIKey,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
		})
	case config.LLMProviderNone, "":
		return Offline{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

// IsOffline reports whether m is the offline model.
func IsOffline(m Model) bool {
	_, ok := m.(Offline)
	return m == nil || ok
}
