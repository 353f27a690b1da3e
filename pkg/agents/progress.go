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
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
)

const acceptedText = "Accepted. Working... (~30s)"

// progressExecutor runs a fixed number of timed steps, then emits one
// text artifact and completes.
//
// Without an accepted text every step is announced before its wait
// ("Working i/3..."). With one, the accepted text is sent first and
// progress is reported after every reportEvery waits.
type progressExecutor struct {
	canceler

	steps       int
	interval    time.Duration
	reportEvery int
	accepted    string
	progress    func(step int) string

	artifactText string
	doneText     string
}

func (e progressExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	canceled, release := e.tasks.start(reqCtx.TaskID)
	defer release()

	if reqCtx.StoredTask == nil {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateSubmitted, "")); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	if e.accepted != "" {
		if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, e.accepted)); err != nil {
			return err
		}
	}

	every := max(e.reportEvery, 1)
	for step := 1; step <= e.steps; step++ {
		if e.accepted == "" {
			if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, e.progress(step))); err != nil {
				return err
			}
		}

		if err := sleep(ctx, canceled, e.interval); err != nil {
			return stopped(reqCtx.TaskID, err)
		}

		if e.accepted != "" && step%every == 0 {
			if err := queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateWorking, e.progress(step))); err != nil {
				return err
			}
		}
	}

	if err := queue.Write(ctx, artifactEvent(reqCtx, "result.txt", a2a.TextPart{Text: e.artifactText})); err != nil {
		return err
	}
	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCompleted, e.doneText))
}

func workingStep(steps int) func(int) string {
	return func(step int) string { return fmt.Sprintf("Working %d/%d...", step, steps) }
}

func elapsedSeconds(total int) func(int) string {
	return func(step int) string { return fmt.Sprintf("Progress: %d/%ds", step, total) }
}

func newStreaming(opts Options) (*Profile, error) {
	card := newCard(
		"Streaming Demo Agent (REST + SSE)",
		"Streams working updates, one artifact and a final status.",
		opts.version("0.4.0-demo"),
		true,
	)
	return &Profile{
		Name:               ProfileStreaming,
		Card:               card,
		Executor:           streamingExecutor(opts, 2*time.Second),
		PreferredTransport: config.TransportREST,
	}, nil
}

func streamingExecutor(opts Options, interval time.Duration) progressExecutor {
	return progressExecutor{
		canceler:     newCanceler(""),
		steps:        3,
		interval:     opts.scaled(interval),
		progress:     workingStep(3),
		artifactText: "Demo artifact text ✅",
	}
}

func newPolling(opts Options) (*Profile, error) {
	card := newCard(
		"Polling Demo Agent (REST)",
		"Long running task without streaming. Poll tasks/get for progress.",
		opts.version("0.4.0-demo"),
		false,
	)
	return &Profile{
		Name: ProfilePolling,
		Card: card,
		Executor: progressExecutor{
			canceler:     newCanceler(""),
			steps:        3,
			interval:     opts.scaled(5 * time.Second),
			progress:     workingStep(3),
			artifactText: "Demo artifact text: Hello from PollingDemoExecutor ✅",
		},
		PreferredTransport: config.TransportREST,
	}, nil
}

func newPush(opts Options) (*Profile, error) {
	card := newCard(
		"Push Demo Agent (REST Webhook, no SSE)",
		"Reports task updates to a registered webhook.",
		opts.version("0.4.0-demo"),
		false,
	)
	card.Capabilities.PushNotifications = true
	return &Profile{
		Name: ProfilePush,
		Card: card,
		Executor: progressExecutor{
			canceler:     newCanceler(""),
			steps:        3,
			interval:     opts.scaled(2 * time.Second),
			progress:     workingStep(3),
			artifactText: "Demo artifact text ✅",
			doneText:     "Task ist beendet ✅",
		},
		PreferredTransport: config.TransportREST,
	}, nil
}

func newResubscribe(opts Options) (*Profile, error) {
	card := newCard(
		"11 SubscribeToTask Demo Agent (REST + SSE)",
		"Runs for about 30 seconds. Reconnect with tasks/resubscribe to follow it.",
		opts.version("0.11.0-demo"),
		true,
	)
	return &Profile{
		Name: ProfileResubscribe,
		Card: card,
		Executor: progressExecutor{
			canceler:     newCanceler(""),
			steps:        30,
			interval:     opts.scaled(time.Second),
			reportEvery:  1,
			accepted:     acceptedText,
			progress:     elapsedSeconds(30),
			artifactText: "Result payload for SubscribeToTask demo ✅",
			doneText:     "Done ✅",
		},
		PreferredTransport: config.TransportREST,
	}, nil
}

func newCancel(opts Options) (*Profile, error) {
	card := newCard(
		"10 CancelTask Demo Agent (REST)",
		"Runs for about 30 seconds and honors tasks/cancel.",
		opts.version("0.10.0-demo"),
		false,
	)
	return &Profile{
		Name: ProfileCancel,
		Card: card,
		Executor: progressExecutor{
			canceler:     newCanceler(""),
			steps:        30,
			interval:     opts.scaled(time.Second),
			reportEvery:  5,
			accepted:     acceptedText,
			progress:     elapsedSeconds(30),
			artifactText: "Result payload (completed)",
			doneText:     "Done ✅",
		},
		PreferredTransport: config.TransportREST,
	}, nil
}

func newListTasks(opts Options) (*Profile, error) {
	card := newCard(
		"08 ListTasks Demo Agent (REST)",
		"Fire-and-forget tasks to try tasks listing, filtering and paging.",
		opts.version("0.8.0-demo"),
		false,
	)
	return &Profile{
		Name: ProfileListTasks,
		Card: card,
		Executor: progressExecutor{
			canceler:     newCanceler(""),
			steps:        3,
			interval:     opts.scaled(10 * time.Second),
			reportEvery:  1,
			accepted:     acceptedText,
			progress:     func(step int) string { return fmt.Sprintf("Progress %d/3", step) },
			artifactText: "Result payload for ListTasks demo",
			doneText:     "Done.",
		},
		PreferredTransport: config.TransportREST,
	}, nil
}
