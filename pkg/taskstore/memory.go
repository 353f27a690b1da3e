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
	"fmt"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
)

// Memory keeps tasks in process memory.
type Memory struct {
	mu    sync.RWMutex
	tasks map[a2a.TaskID]*a2a.Task
	order []a2a.TaskID
}

func NewMemory() *Memory {
	return &Memory{tasks: make(map[a2a.TaskID]*a2a.Task)}
}

func (m *Memory) Save(_ context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}
	stored, err := cloneTask(task)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tasks[task.ID]; !ok {
		m.order = append(m.order, task.ID)
	}
	m.tasks[task.ID] = stored
	return nil
}

func (m *Memory) Get(_ context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	m.mu.RLock()
	task, ok := m.tasks[taskID]
	m.mu.RUnlock()

	if !ok {
		return nil, a2a.ErrTaskNotFound
	}
	return cloneTask(task)
}

func (m *Memory) List(_ context.Context, req ListRequest) (ListResult, error) {
	req, offset, err := req.normalize()
	if err != nil {
		return ListResult{}, err
	}

	m.mu.RLock()
	var matched []*a2a.Task
	for _, id := range m.order {
		if task := m.tasks[id]; req.matches(task) {
			matched = append(matched, task)
		}
	}
	m.mu.RUnlock()

	result := ListResult{Tasks: []*a2a.Task{}}
	if offset >= len(matched) {
		return result, nil
	}

	end := min(offset+req.PageSize, len(matched))
	for _, task := range matched[offset:end] {
		clone, err := cloneTask(task)
		if err != nil {
			return ListResult{}, err
		}
		result.Tasks = append(result.Tasks, req.project(clone))
	}
	result.NextPageToken = nextToken(offset, len(result.Tasks), end < len(matched))
	return result, nil
}

func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
