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

package agents

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/llm"
)

// LanguageExtensionURI identifies the language selection extension.
const LanguageExtensionURI = "https://example.com/extensions/language/v1"

const defaultLanguage = "en"

var supportedLanguages = []string{"de", "en", "es"}

var offlineGreeting = map[string]string{
	"de": "(offline) Hallo! Ich antworte auf Deutsch. Deine Nachricht war: %s",
	"en": "(offline) Hello! I am answering in English. Your message was: %s",
	"es": "(offline) ¡Hola! Respondo en español. Tu mensaje fue: %s",
}

// LanguageFromMessage reads the requested language from the extension
// metadata of msg. Region suffixes are dropped ("de-AT" is "de"); missing
// or unsupported values yield the default language.
func LanguageFromMessage(msg *a2a.Message) string {
	if msg == nil || msg.Metadata == nil {
		return defaultLanguage
	}
	ext, ok := msg.Metadata[LanguageExtensionURI].(map[string]any)
	if !ok {
		return defaultLanguage
	}
	lang, _ := ext["language"].(string)
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.Index(lang, "-"); i >= 0 {
		lang = lang[:i]
	}
	if !slices.Contains(supportedLanguages, lang) {
		return defaultLanguage
	}
	return lang
}

type languageExecutor struct {
	canceler
	model llm.Model
}

func (e languageExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	lang := LanguageFromMessage(reqCtx.Message)
	text := MessageText(reqCtx.Message)

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	answer, err := e.model.Generate(ctx, llm.Request{
		System:   "Talk with the user in the following language: " + lang,
		Prompt:   text,
		Fallback: fmt.Sprintf(offlineGreeting[lang], strings.TrimSpace(text)),
	})
	if err != nil {
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateFailed, "LLM error: "+err.Error()))
	}

	reply := agentMessage(reqCtx, answer)
	reply.Metadata = map[string]any{
		LanguageExtensionURI: map[string]any{"language": lang},
	}
	reply.Extensions = []string{LanguageExtensionURI}

	done := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, reply)
	done.Final = true
	return queue.Write(ctx, done)
}

func newLanguage(opts Options) (*Profile, error) {
	card := newCard(
		"Language Extension Demo Agent (REST + LLM)",
		"LLM-backed demo: language chosen via extension metadata; system prompt is set per request.",
		opts.version("0.1.0-demo"),
		false,
	)
	card.Capabilities.Extensions = []a2a.AgentExtension{{
		URI:         LanguageExtensionURI,
		Description: "Client selects language via message.metadata[URI].language",
		Required:    false,
		Params: map[string]any{
			"supportedLanguages": []any{"de", "en", "es"},
			"defaultLanguage":    defaultLanguage,
			"payloadSchema":      map[string]any{"language": "en|de|es"},
		},
	}}
	card.Skills = []a2a.AgentSkill{{
		ID:          "demo.language.llm",
		Name:        "Language-aware chat",
		Description: "Uses LLM; system prompt enforces language from extension metadata.",
		Tags:        []string{"demo", "extension", "language", "llm"},
		Examples: []string{
			`{"metadata": {"https://example.com/extensions/language/v1": {"language": "de"}}}`,
			`{"metadata": {"https://example.com/extensions/language/v1": {"language": "es"}}}`,
		},
	}}
	return &Profile{
		Name:               ProfileLanguage,
		Card:               card,
		Executor:           languageExecutor{canceler: newCanceler(""), model: opts.model()},
		PreferredTransport: config.TransportREST,
	}, nil
}
