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
	"encoding/base64"
	"fmt"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
)

// fakePDF is a minimal document used as the lifecycle demo's report.
const fakePDF = "%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\ntrailer << /Root 1 0 R >>\n%%EOF\n"

// lifecycleExecutor ends every task in a fixed terminal state.
type lifecycleExecutor struct {
	canceler
	outcome a2a.TaskState
}

func (e lifecycleExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	text := MessageText(reqCtx.Message)

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	var final string
	switch e.outcome {
	case a2a.TaskStateRejected:
		final = "Rejected Task: Validation failed (demo). Input was: " + text
	case a2a.TaskStateFailed:
		final = "Failed Task: Unexpected error (demo). Input was: " + text
	default:
		final = "Completed Task: Echo: " + text
		report := a2a.FilePart{File: a2a.FileBytes{
			FileMeta: a2a.FileMeta{Name: "report.pdf", MimeType: "application/pdf"},
			Bytes:    base64.StdEncoding.EncodeToString([]byte(fakePDF)),
		}}
		if err := queue.Write(ctx, artifactEvent(reqCtx, "report.pdf", report)); err != nil {
			return fmt.Errorf("failed to write artifact: %w", err)
		}
	}

	return queue.Write(ctx, statusEvent(reqCtx, e.outcome, final))
}

func newLifecycle(opts Options) (*Profile, error) {
	var outcome a2a.TaskState
	switch opts.Outcome {
	case "", "completed":
		outcome = a2a.TaskStateCompleted
	case "rejected":
		outcome = a2a.TaskStateRejected
	case "failed":
		outcome = a2a.TaskStateFailed
	default:
		return nil, fmt.Errorf("unknown outcome %q", opts.Outcome)
	}

	card := newCard(
		"03_Tasks - Fixed Lifecycle Demo Agent (REST)",
		fmt.Sprintf("Always ends tasks in state %s.", outcome),
		opts.version("0.3.0-demo"),
		false,
	)
	return &Profile{
		Name:               ProfileLifecycle,
		Card:               card,
		Executor:           lifecycleExecutor{canceler: newCanceler(""), outcome: outcome},
		PreferredTransport: config.TransportREST,
	}, nil
}

// configurationExecutor simulates work for a configurable delay.
type configurationExecutor struct {
	canceler
	delay time.Duration
}

func (e configurationExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	canceled, release := e.tasks.start(reqCtx.TaskID)
	defer release()

	text := MessageText(reqCtx.Message)

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}
	if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, "Working… (step 1/2)")); err != nil {
		return err
	}

	if err := sleep(ctx, canceled, e.delay); err != nil {
		return stopped(reqCtx.TaskID, err)
	}

	if err := queue.Write(ctx, artifactEvent(reqCtx, "result.txt", a2a.TextPart{Text: "Echo: " + text})); err != nil {
		return err
	}
	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCompleted, "Done ✅ Echo: "+text))
}

func newConfiguration(opts Options) (*Profile, error) {
	delay := opts.Delay
	if delay == 0 {
		delay = 2500 * time.Millisecond
	}
	card := newCard(
		"04_Configuration Demo Agent (REST)",
		"Simulates work so clients can try blocking and non-blocking sends and historyLength.",
		opts.version("0.4.0-demo"),
		false,
	)
	return &Profile{
		Name:               ProfileConfig,
		Card:               card,
		Executor:           configurationExecutor{canceler: newCanceler(""), delay: opts.scaled(delay)},
		PreferredTransport: config.TransportREST,
	}, nil
}
