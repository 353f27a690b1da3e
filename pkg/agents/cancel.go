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
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
)

const defaultCancelText = "Canceled ✅"

// errCanceled stops a running Execute after its task was canceled.
var errCanceled = errors.New("task canceled")

// cancelRegistry tracks running executions so Cancel can stop them.
type cancelRegistry struct {
	mu      sync.Mutex
	running map[a2a.TaskID]chan struct{}
}

func newCancelRegistry() *cancelRegistry {
	return &cancelRegistry{running: make(map[a2a.TaskID]chan struct{})}
}

// start registers taskID as running. The returned channel closes when the
// task is canceled; release must be called when Execute returns.
func (r *cancelRegistry) start(taskID a2a.TaskID) (<-chan struct{}, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	done := make(chan struct{})
	r.running[taskID] = done
	return done, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.running[taskID] == done {
			delete(r.running, taskID)
		}
	}
}

// cancel marks taskID canceled. It reports whether an execution was running.
func (r *cancelRegistry) cancel(taskID a2a.TaskID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	done, ok := r.running[taskID]
	if !ok {
		return false
	}
	delete(r.running, taskID)
	close(done)
	return true
}

// canceler implements AgentExecutor.Cancel on top of a cancelRegistry.
type canceler struct {
	tasks *cancelRegistry
	text  string
}

func newCanceler(text string) canceler {
	if text == "" {
		text = defaultCancelText
	}
	return canceler{tasks: newCancelRegistry(), text: text}
}

func (c canceler) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	if task := reqCtx.StoredTask; task != nil && task.Status.State.Terminal() {
		return a2a.ErrTaskNotCancelable
	}

	running := c.tasks.cancel(reqCtx.TaskID)
	slog.Info("Cancel requested", "task_id", reqCtx.TaskID, "running", running)

	return queue.Write(ctx, statusEvent(reqCtx, a2a.TaskStateCanceled, c.text))
}

// sleep waits for d. It returns errCanceled when the task is canceled and
// the context error when ctx ends first.
func sleep(ctx context.Context, canceled <-chan struct{}, d time.Duration) error {
	if d <= 0 {
		select {
		case <-canceled:
			return errCanceled
		default:
			return ctx.Err()
		}
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-canceled:
		return errCanceled
	case <-ctx.Done():
		return ctx.Err()
	}
}

// stopped maps a wait error to Execute's result. A canceled task ends
// quietly since Cancel already wrote the terminal event.
func stopped(taskID a2a.TaskID, err error) error {
	if errors.Is(err, errCanceled) {
		slog.Info("Execution stopped after cancel", "task_id", taskID)
		return nil
	}
	return err
}
