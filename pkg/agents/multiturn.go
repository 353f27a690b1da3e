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
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
)

const askName = "Wie heißt du?"

// multiTurnExecutor asks for the user's name, then greets them on the
// follow-up message of the same task.
type multiTurnExecutor struct {
	canceler
	pause time.Duration
}

func (e multiTurnExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	canceled, release := e.tasks.start(reqCtx.TaskID)
	defer release()

	stored := reqCtx.StoredTask
	if stored == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	if stored == nil || stored.Status.State != a2a.TaskStateInputRequired {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, "Okay — kurze Rückfrage bevor ich weiter mache…")); err != nil {
			return err
		}
		if err := sleep(ctx, canceled, e.pause); err != nil {
			return stopped(reqCtx.TaskID, err)
		}
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateInputRequired, askName))
	}

	name := strings.TrimSpace(MessageText(reqCtx.Message))
	if name == "" {
		return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateInputRequired, askName))
	}

	if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, "Danke "+name+"! Ich mache weiter…")); err != nil {
		return err
	}
	if err := sleep(ctx, canceled, e.pause); err != nil {
		return stopped(reqCtx.TaskID, err)
	}

	greeting := "Hallo " + name + "! ✅ (Multi-Turn abgeschlossen)"
	if err := queue.Write(ctx, artifactEvent(reqCtx, "greeting.txt", a2a.TextPart{Text: greeting})); err != nil {
		return err
	}
	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCompleted, "Fertig ✅"))
}

func newMultiTurn(opts Options) (*Profile, error) {
	card := newCard(
		"06 Multi-Turn Demo Agent (REST + SSE)",
		"Asks a follow-up question (input-required) and continues on the same task.",
		opts.version("0.6.1-demo"),
		true,
	)
	return &Profile{
		Name:               ProfileMultiTurn,
		Card:               card,
		Executor:           multiTurnExecutor{canceler: newCanceler(""), pause: opts.scaled(time.Second)},
		PreferredTransport: config.TransportREST,
	}, nil
}
