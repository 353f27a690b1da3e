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

package taskstore

import (
	"context"
	"log/slog"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
)

// SaveHook is called after a successful Save. Hooks receive their own copy
// of the task and must not block for long.
type SaveHook func(ctx context.Context, task *a2a.Task)

// Observed decorates a Store with save hooks.
type Observed struct {
	Store

	mu    sync.RWMutex
	hooks []SaveHook
}

func NewObserved(store Store, hooks ...SaveHook) *Observed {
	return &Observed{Store: store, hooks: hooks}
}

// OnSave registers another hook.
func (o *Observed) OnSave(hook SaveHook) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, hook)
}

func (o *Observed) Save(ctx context.Context, task *a2a.Task) error {
	if err := o.Store.Save(ctx, task); err != nil {
		return err
	}

	o.mu.RLock()
	hooks := o.hooks
	o.mu.RUnlock()

	for _, hook := range hooks {
		clone, err := cloneTask(task)
		if err != nil {
			slog.Warn("Skipping save hook", "task_id", task.ID, "error", err)
			continue
		}
		hook(ctx, clone)
	}
	return nil
}

var _ Store = (*Observed)(nil)
