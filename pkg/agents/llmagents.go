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
	"log/slog"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/llm"
)

const (
	footballSystemPrompt = "Du bist ein Fußball-Experte (Association Football/Soccer).\n" +
		"Du darfst NUR über Fußball reden.\n" +
		"Wenn die Frage nicht primär Fußball ist, lehne kurz ab und bitte um eine Fußball-Frage.\n" +
		"Antworte auf Deutsch, präzise und hilfreich."

	generalSystemPrompt = "Du bist ein allgemeiner Assistant.\n" +
		"Antworte auf Deutsch.\n" +
		"Kein Fußball-Fokus, einfach normal hilfreich."

	footballArtifactID = a2a.ArtifactID("football-answer")
	footballChunkSize  = 220
)

// chunkRunes splits s into pieces of at most size runes.
func chunkRunes(s string, size int) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// footballExecutor answers football questions and streams the answer as
// artifact chunks.
type footballExecutor struct {
	canceler
	model llm.Model
}

func (e footballExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	question := MessageText(reqCtx.Message)

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}
	if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, "Ich schaue mir das kurz an …")); err != nil {
		return err
	}

	answer, err := e.model.Generate(ctx, llm.Request{
		System:   footballSystemPrompt,
		Prompt:   question,
		Fallback: offlineFootballAnswer(question),
	})
	if err != nil {
		slog.Error("Football answer failed", "task_id", reqCtx.TaskID, "error", err)
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateFailed, "LLM-Fehler: "+err.Error()))
	}

	chunks := chunkRunes(answer, footballChunkSize)
	for i, chunk := range chunks {
		ev := a2a.NewArtifactUpdateEvent(reqCtx, footballArtifactID, a2a.TextPart{Text: chunk})
		ev.Artifact.Name = "answer.txt"
		ev.Artifact.Metadata = map[string]any{"mediaType": "text/plain"}
		ev.Append = i > 0
		ev.LastChunk = i == len(chunks)-1
		if err := queue.Write(ctx, ev); err != nil {
			return err
		}
	}

	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCompleted, answer))
}

func offlineFootballAnswer(question string) string {
	if !IsFootballQuestion(question) {
		return "Ich beantworte nur Fragen rund um Fußball. Stell mir gern eine Fußball-Frage!"
	}
	return fmt.Sprintf("(offline) Kein Sprachmodell konfiguriert. Zu deiner Fußball-Frage „%s“ "+
		"kann ich nur das Grundsätzliche sagen: Ein Spiel dauert 2 × 45 Minuten, "+
		"jede Mannschaft hat elf Spieler auf dem Platz und es gewinnt, wer mehr Tore schießt.",
		strings.TrimSpace(question))
}

func newFootball(opts Options) (*Profile, error) {
	card := newCard(
		"Football Streaming Agent (REST + LLM)",
		"Beantwortet ausschließlich Fußball-Fragen und streamt die Antwort.",
		opts.version("0.1.0-demo"),
		true,
	)
	card.Skills = []a2a.AgentSkill{{
		ID:          "sports.football.chat",
		Name:        "Fußball Q&A (Streaming)",
		Description: "Fragen zu Fußball: Vereine, Spieler, Regeln, Turniere.",
		Tags:        []string{"sports", "football", "soccer", "streaming"},
		Examples:    []string{"Wer hat die WM 2014 gewonnen?", "Was ist Abseits?"},
	}}
	return &Profile{
		Name:               ProfileFootball,
		Card:               card,
		Executor:           footballExecutor{canceler: newCanceler(""), model: opts.model()},
		PreferredTransport: config.TransportREST,
	}, nil
}

// generalExecutor answers anything in one step.
type generalExecutor struct {
	canceler
	model llm.Model
}

func (e generalExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	question := MessageText(reqCtx.Message)

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	answer, err := e.model.Generate(ctx, llm.Request{
		System:   generalSystemPrompt,
		Prompt:   question,
		Fallback: "(offline) Kein Sprachmodell konfiguriert. Deine Frage war: " + strings.TrimSpace(question),
	})
	if err != nil {
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateFailed, "LLM-Fehler: "+err.Error()))
	}
	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCompleted, answer))
}

func newGeneral(opts Options) (*Profile, error) {
	card := newCard(
		"General Message Agent (REST + LLM)",
		"Allgemeiner Assistent für alles außer Fußball.",
		opts.version("0.1.0-demo"),
		false,
	)
	card.Skills = []a2a.AgentSkill{{
		ID:          "general.chat",
		Name:        "Allgemeiner Chat",
		Description: "Beantwortet allgemeine Fragen auf Deutsch.",
		Tags:        []string{"general", "chat"},
		Examples:    []string{"Wie koche ich Spaghetti?", "Erklär mir Photosynthese."},
	}}
	return &Profile{
		Name:               ProfileGeneral,
		Card:               card,
		Executor:           generalExecutor{canceler: newCanceler(""), model: opts.model()},
		PreferredTransport: config.TransportREST,
	}, nil
}
