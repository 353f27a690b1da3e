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
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
)

const (
	actionListTickets       = "list_tickets"
	actionListTicketsResult = "list_tickets_result"
)

// Ticket is one entry of the structured data demo.
type Ticket struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

var tickets = []Ticket{
	{ID: "INC-1001", Title: "VPN login fails", Status: "open", Priority: "high"},
	{ID: "INC-1002", Title: "Laptop battery swelling", Status: "open", Priority: "medium"},
	{ID: "INC-1003", Title: "Access request: Jira", Status: "closed", Priority: "low"},
}

// ticketQuery is the DataPart payload the structured agent accepts.
type ticketQuery struct {
	Action string
	Status string
}

func parseTicketQuery(msg *a2a.Message) (ticketQuery, error) {
	var data map[string]any
	if msg != nil {
		for _, part := range msg.Parts {
			if dp, ok := part.(a2a.DataPart); ok {
				data = dp.Data
				break
			}
		}
	}
	if data == nil {
		return ticketQuery{}, fmt.Errorf("%w: expected a data part", a2a.ErrInvalidParams)
	}

	q := ticketQuery{Action: actionListTickets, Status: "open"}
	if v, ok := data["action"].(string); ok && v != "" {
		q.Action = v
	}
	if v, ok := data["status"].(string); ok && v != "" {
		q.Status = strings.ToLower(v)
	}

	if q.Action != actionListTickets {
		return ticketQuery{}, fmt.Errorf("%w: unknown action %q", a2a.ErrInvalidParams, q.Action)
	}
	if q.Status != "open" && q.Status != "closed" {
		return ticketQuery{}, fmt.Errorf("%w: status must be open or closed, got %q", a2a.ErrInvalidParams, q.Status)
	}
	return q, nil
}

// filterTickets returns the tickets with status as generic JSON values so
// they survive a DataPart round trip unchanged.
func filterTickets(status string) []any {
	out := []any{}
	for _, t := range tickets {
		if t.Status != status {
			continue
		}
		out = append(out, map[string]any{
			"id":       t.ID,
			"title":    t.Title,
			"status":   t.Status,
			"priority": t.Priority,
		})
	}
	return out
}

type structuredExecutor struct {
	canceler
}

func (e structuredExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	query, err := parseTicketQuery(reqCtx.Message)
	if err != nil {
		return err
	}

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	found := filterTickets(query.Status)
	result := map[string]any{
		"action":  actionListTicketsResult,
		"status":  query.Status,
		"count":   len(found),
		"tickets": found,
	}

	artifact := artifactEvent(reqCtx, "tickets.json", a2a.DataPart{Data: result})
	artifact.Artifact.Description = "Ticket list as JSON (DataPart)."
	artifact.Artifact.Metadata = map[string]any{"media_type": "application/json"}
	if err := queue.Write(ctx, artifact); err != nil {
		return err
	}

	reply := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx,
		a2a.TextPart{Text: fmt.Sprintf("Found %d tickets (status=%s).", len(found), query.Status)},
		a2a.DataPart{Data: result},
	)
	done := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, reply)
	done.Final = true
	done.Metadata = map[string]any{"section": "05_StructuredData"}
	return queue.Write(ctx, done)
}

func newStructured(opts Options) (*Profile, error) {
	card := newCard(
		"05 Structured Data Demo Agent (REST)",
		"Accepts a DataPart query and answers with text plus structured ticket data.",
		opts.version("0.5.0-demo"),
		false,
	)
	card.DefaultInputModes = []string{"application/json", "text/plain"}
	card.DefaultOutputModes = []string{"application/json", "text/plain"}
	card.Skills = []a2a.AgentSkill{{
		ID:          "tickets.list",
		Name:        "List tickets",
		Description: `Send {"action":"list_tickets","status":"open|closed"} as a DataPart.`,
		Tags:        []string{"structured", "tickets"},
	}}
	return &Profile{
		Name:               ProfileStructured,
		Card:               card,
		Executor:           structuredExecutor{canceler: newCanceler("")},
		PreferredTransport: config.TransportREST,
	}, nil
}
