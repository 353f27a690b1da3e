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
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
)

const bellaVistaSteps = 6

type faqEntry struct {
	keywords []string
	answer   string
}

// bellaVistaFAQ is checked in order; the first entry with a matching
// keyword wins.
var bellaVistaFAQ = []faqEntry{
	{
		keywords: []string{"öffnungszeiten", "geöffnet", "offen", "wann habt", "wann seid", "uhrzeit"},
		answer: "Öffnungszeiten (Bella Vista):\n" +
			"- Mo–Do: 11:00–22:00\n" +
			"- Fr–Sa: 11:00–23:00\n" +
			"- So: 12:00–21:00\n" +
			"Hinweis: Küche schließt jeweils 30 Minuten vor Ladenschluss.",
	},
	{
		keywords: []string{"adresse", "wo seid", "wo ist", "anschrift", "location", "standort"},
		answer:   "Adresse (Bella Vista):\nBella Vista\nSeestraße 12\n12345 Musterstadt",
	},
	{
		keywords: []string{"telefon", "nummer", "anrufen", "ruf", "call"},
		answer:   "Telefon (Bella Vista): +49 30 1234 5678",
	},
	{
		keywords: []string{"reserv", "tisch", "buch", "booking"},
		answer: "Reservierung (Bella Vista):\n" +
			"- Telefonisch: +49 30 1234 5678\n" +
			"- Oder vor Ort\n" +
			"Tipp: Am Wochenende besser vorher reservieren.",
	},
	{
		keywords: []string{"speisekarte", "menü", "menu", "karte", "essen", "gerichte"},
		answer: "Speisekarte (Bella Vista):\n" +
			"Für die Demo habe ich keine echte Speisekarte hinterlegt.\n" +
			"Frag mich gern nach Empfehlungen (z.B. vegetarisch, Pasta, Pizza).",
	},
}

const bellaVistaHelp = "Ich beantworte Fragen zu **Bella Vista**.\n\n" +
	"Beispiele:\n" +
	"- „Wie sind die Öffnungszeiten vom Bella Vista?“\n" +
	"- „Wie lautet die Adresse vom Bella Vista?“\n" +
	"- „Kann ich einen Tisch reservieren?“\n" +
	"- „Wie ist die Telefonnummer?“"

// AnswerBellaVista picks the FAQ answer for question.
func AnswerBellaVista(question string) string {
	q := strings.ToLower(question)
	for _, entry := range bellaVistaFAQ {
		for _, k := range entry.keywords {
			if strings.Contains(q, k) {
				return entry.answer
			}
		}
	}
	return bellaVistaHelp
}

type bellaVistaExecutor struct {
	canceler
	step time.Duration
}

func (e bellaVistaExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	canceled, release := e.tasks.start(reqCtx.TaskID)
	defer release()

	question := MessageText(reqCtx.Message)
	slog.Info("Bella Vista question", "task_id", reqCtx.TaskID, "context_id", reqCtx.ContextID, "input", question)

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}
	if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, "Ich prüfe das kurz für Bella Vista …")); err != nil {
		return err
	}

	for range bellaVistaSteps {
		if err := sleep(ctx, canceled, e.step); err != nil {
			return stopped(reqCtx.TaskID, err)
		}
	}

	answer := AnswerBellaVista(question)
	artifact := artifactEvent(reqCtx, "Bella Vista Antwort", a2a.TextPart{Text: answer})
	artifact.Artifact.Description = "Antwort auf die Nutzerfrage zu Bella Vista"
	if err := queue.Write(ctx, artifact); err != nil {
		return err
	}
	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCompleted, answer))
}

func newBellaVista(opts Options) (*Profile, error) {
	card := newCard(
		"Bella Vista Info Agent",
		"Beantwortet Fragen zu Bella Vista (Öffnungszeiten, Adresse, Kontakt, Reservierung).",
		opts.version("0.3.0"),
		false,
	)
	return &Profile{
		Name: ProfileBellaVista,
		Card: card,
		Executor: bellaVistaExecutor{
			canceler: newCanceler("Cancel wurde angefordert."),
			step:     opts.scaled(500 * time.Millisecond),
		},
		PreferredTransport: config.TransportREST,
	}, nil
}
