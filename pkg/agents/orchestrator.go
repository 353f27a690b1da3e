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
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/a2alab/pkg/client"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/llm"
)

// Routing targets.
const (
	TargetFootball = "football"
	TargetGeneral  = "general"
)

const routerPrompt = "Du bist ein Orchestrator, der genau EINEN Remote-Agenten auswählt.\n" +
	"Du bekommst zwei A2A AgentCards als JSON.\n" +
	"Wähle target='football' nur, wenn die User-Frage primär Fußball (Soccer) ist.\n" +
	"Sonst target='general'.\n" +
	"Erzeuge zusätzlich 'query' (kurz & explizit), die an den gewählten Agenten geschickt wird.\n" +
	"Antworte ausschließlich mit JSON der Form {\"target\": \"football|general\", \"query\": \"...\", \"reason\": \"...\"}.\n\n" +
	"FOOTBALL_AGENT_CARD_JSON:\n%s\n\n" +
	"GENERAL_AGENT_CARD_JSON:\n%s\n"

const finalizerPrompt = "Du bist die letzte Schicht des Orchestrators.\n" +
	"Du bekommst: User-Frage, Routing-Entscheidung, Antwort vom Remote-Agent.\n" +
	"Gib dem User eine saubere, direkte Antwort auf Deutsch.\n" +
	"Keine Meta-Erklärungen über Routing, AgentCards oder Orchestrierung.\n" +
	"Wenn die Remote-Antwort schon gut ist, gib sie praktisch 1:1 weiter (leicht polieren ist ok).\n"

var footballWords = map[string]bool{
	"fußball": true, "fussball": true, "football": true, "soccer": true,
	"bundesliga": true, "wm": true, "em": true, "weltmeister": true, "weltmeisterschaft": true,
	"europameister": true, "tor": true, "tore": true, "torwart": true, "elfmeter": true,
	"abseits": true, "stürmer": true, "verteidiger": true, "schiedsrichter": true,
	"bvb": true, "bayern": true, "dortmund": true, "schalke": true, "barcelona": true,
	"messi": true, "ronaldo": true, "fifa": true, "uefa": true, "dfb": true, "fc": true,
}

var footballPhrases = []string{"champions league", "premier league", "la liga", "serie a", "real madrid", "world cup"}

// IsFootballQuestion is the keyword router used without a language model.
func IsFootballQuestion(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range footballPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		if footballWords[w] {
			return true
		}
	}
	return false
}

// RouteDecision is the router's choice of downstream agent.
type RouteDecision struct {
	Target string `json:"target"`
	Query  string `json:"query"`
	Reason string `json:"reason"`
}

func keywordRoute(question string) RouteDecision {
	if IsFootballQuestion(question) {
		return RouteDecision{Target: TargetFootball, Query: question, Reason: "keyword match"}
	}
	return RouteDecision{Target: TargetGeneral, Query: question, Reason: "no football keywords"}
}

// delegateFunc sends query to the agent at baseURL and returns its answer.
type delegateFunc func(ctx context.Context, baseURL, query string) (string, error)

// resolveFunc fetches the agent card at baseURL.
type resolveFunc func(ctx context.Context, baseURL string) (*a2a.AgentCard, error)

type orchestratorExecutor struct {
	canceler
	model       llm.Model
	footballURL string
	generalURL  string
	resolve     resolveFunc
	delegate    delegateFunc
}

func (e orchestratorExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	question := MessageText(reqCtx.Message)

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	var footballCard, generalCard *a2a.AgentCard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		footballCard, err = e.resolve(gctx, e.footballURL)
		return err
	})
	g.Go(func() (err error) {
		generalCard, err = e.resolve(gctx, e.generalURL)
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("Downstream card resolution failed", "task_id", reqCtx.TaskID, "error", err)
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateFailed, "Sub-Agent nicht erreichbar: "+err.Error()))
	}

	decision := e.route(ctx, question, footballCard, generalCard)
	target := e.generalURL
	if decision.Target == TargetFootball {
		target = e.footballURL
	}
	slog.Info("Routing", "task_id", reqCtx.TaskID, "target", decision.Target, "reason", decision.Reason)

	working := statusEvent(reqCtx, a2a.TaskStateWorking, fmt.Sprintf("Frage geht an den %s-Agenten …", decision.Target))
	if err := queue.Write(ctx, working); err != nil {
		return err
	}

	answer, err := e.delegate(ctx, target, decision.Query)
	if err != nil {
		slog.Error("Delegation failed", "task_id", reqCtx.TaskID, "target", target, "error", err)
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateFailed,
			fmt.Sprintf("Aufruf des %s-Agenten fehlgeschlagen: %v", decision.Target, err)))
	}

	final := e.finalize(ctx, question, decision, answer)

	done := statusEvent(reqCtx, a2a.TaskStateCompleted, final)
	done.Metadata = map[string]any{"routedTo": decision.Target, "reason": decision.Reason}
	return queue.Write(ctx, done)
}

// route asks the model for a decision. Without a model, or when its
// output is unusable, the keyword router decides.
func (e orchestratorExecutor) route(ctx context.Context, question string, football, general *a2a.AgentCard) RouteDecision {
	if llm.IsOffline(e.model) {
		return keywordRoute(question)
	}

	footballJSON, _ := json.MarshalIndent(football, "", "  ")
	generalJSON, _ := json.MarshalIndent(general, "", "  ")
	out, err := e.model.Generate(ctx, llm.Request{
		System: fmt.Sprintf(routerPrompt, footballJSON, generalJSON),
		Prompt: question,
		JSON:   true,
	})
	if err != nil {
		slog.Warn("Router model failed, using keywords", "error", err)
		return keywordRoute(question)
	}

	var decision RouteDecision
	if err := json.Unmarshal([]byte(out), &decision); err != nil ||
		(decision.Target != TargetFootball && decision.Target != TargetGeneral) {
		slog.Warn("Router output unusable, using keywords", "output", out)
		return keywordRoute(question)
	}
	if strings.TrimSpace(decision.Query) == "" {
		decision.Query = question
	}
	return decision
}

func (e orchestratorExecutor) finalize(ctx context.Context, question string, decision RouteDecision, answer string) string {
	if llm.IsOffline(e.model) {
		return answer
	}
	routing, _ := json.Marshal(decision)
	out, err := e.model.Generate(ctx, llm.Request{
		System:   finalizerPrompt,
		Prompt:   fmt.Sprintf("USER:\n%s\n\nROUTE_DECISION:\n%s\n\nREMOTE_AGENT_ANSWER:\n%s\n", question, routing, answer),
		Fallback: answer,
	})
	if err != nil {
		slog.Warn("Finalizer failed, passing answer through", "error", err)
		return answer
	}
	return out
}

// clientDelegate calls the downstream agent with the client package,
// streaming when its card allows it.
func clientDelegate(opts client.Options) delegateFunc {
	return func(ctx context.Context, baseURL, query string) (string, error) {
		c, err := client.Connect(ctx, baseURL, opts)
		if err != nil {
			return "", err
		}
		defer c.Close()

		msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: query})
		var answer client.Answer
		if c.Card().Capabilities.Streaming {
			for event, err := range c.Stream(ctx, msg, client.SendConfig{}) {
				if err != nil {
					return "", err
				}
				answer.Add(event)
			}
		} else {
			event, err := c.Send(ctx, msg, client.SendConfig{})
			if err != nil {
				return "", err
			}
			answer.Add(event)
		}

		if answer.State() == a2a.TaskStateFailed || answer.State() == a2a.TaskStateRejected {
			return "", fmt.Errorf("agent ended in state %s: %s", answer.State(), answer.Text())
		}
		return answer.Text(), nil
	}
}

func newOrchestrator(opts Options) (*Profile, error) {
	if opts.FootballURL == "" || opts.GeneralURL == "" {
		return nil, fmt.Errorf("football and general agent URLs are required")
	}

	card := newCard(
		"Orchestrator Agent (REST) - Routes to 2 sub-agents",
		"Orchestriert zwei Remote-Agenten via deren AgentCards. Routing erfolgt per LLM Structured Output.",
		opts.version("0.1.0-demo"),
		false,
	)
	card.Skills = []a2a.AgentSkill{{
		ID:          "orchestrator.route_and_delegate",
		Name:        "Route + Delegate",
		Description: "Wählt zwischen Football-Agent (streaming) und General-Agent (message) und delegiert.",
		Tags:        []string{"orchestrator", "routing", "delegation", "a2a"},
		Examples: []string{
			"Wer hat gestern in der Bundesliga gewonnen?",
			"Erklär mir kurz, wie JSON-RPC funktioniert.",
		},
	}}

	hc := opts.HTTPClient
	if hc == nil {
		hc = httpclient.New(httpclient.WithMaxRetries(2))
	}
	clientOpts := client.Options{HTTPClient: hc}

	return &Profile{
		Name: ProfileOrchestrator,
		Card: card,
		Executor: orchestratorExecutor{
			canceler:    newCanceler(""),
			model:       opts.model(),
			footballURL: opts.FootballURL,
			generalURL:  opts.GeneralURL,
			resolve: func(ctx context.Context, baseURL string) (*a2a.AgentCard, error) {
				return client.Resolve(ctx, baseURL, clientOpts)
			},
			delegate: clientDelegate(clientOpts),
		},
		PreferredTransport: config.TransportREST,
	}, nil
}
