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
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2alab/pkg/config"
)

func newTask(id, contextID string, state a2a.TaskState) *a2a.Task {
	return &a2a.Task{
		ID:        a2a.TaskID(id),
		ContextID: contextID,
		Status:    a2a.TaskStatus{State: state},
		History: []*a2a.Message{
			a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hello " + id}),
		},
		Artifacts: []*a2a.Artifact{
			{ID: a2a.ArtifactID("art-" + id), Name: "result.txt", Parts: a2a.ContentParts{a2a.TextPart{Text: "result"}}},
		},
	}
}

// backends runs fn against every store that works without external services.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := New(config.TasksConfig{
			Backend: config.BackendSQLite,
			DSN:     filepath.Join(t.TempDir(), "tasks.db"),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
}

func TestStore_SaveAndGet(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, a2a.ErrTaskNotFound)

		task := newTask("t-1", "ctx-1", a2a.TaskStateWorking)
		require.NoError(t, s.Save(ctx, task))

		task.Status.State = a2a.TaskStateCompleted
		require.NoError(t, s.Save(ctx, task))

		got, err := s.Get(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
		assert.Equal(t, "ctx-1", got.ContextID)
		require.Len(t, got.History, 1)
		require.Len(t, got.Artifacts, 1)
		assert.Equal(t, "result.txt", got.Artifacts[0].Name)
	})
}

func TestStore_GetReturnsCopy(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, newTask("t-1", "ctx", a2a.TaskStateWorking)))

		got, err := s.Get(ctx, "t-1")
		require.NoError(t, err)
		got.Status.State = a2a.TaskStateFailed
		got.History = nil

		again, err := s.Get(ctx, "t-1")
		require.NoError(t, err)
		assert.Equal(t, a2a.TaskStateWorking, again.Status.State)
		assert.Len(t, again.History, 1)
	})
}

func TestStore_ListPagination(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for i := 1; i <= 5; i++ {
			require.NoError(t, s.Save(ctx, newTask(fmt.Sprintf("t-%d", i), "ctx", a2a.TaskStateWorking)))
		}
		// an update must not move a task in the listing order
		require.NoError(t, s.Save(ctx, newTask("t-1", "ctx", a2a.TaskStateCompleted)))

		var ids []string
		token := ""
		pages := 0
		for {
			res, err := s.List(ctx, ListRequest{PageSize: 2, PageToken: token})
			require.NoError(t, err)
			pages++
			for _, task := range res.Tasks {
				ids = append(ids, string(task.ID))
				assert.Nil(t, task.History)
				assert.Nil(t, task.Artifacts)
			}
			if res.NextPageToken == "" {
				break
			}
			token = res.NextPageToken
		}

		assert.Equal(t, []string{"t-1", "t-2", "t-3", "t-4", "t-5"}, ids)
		assert.Equal(t, 3, pages)
	})
}

func TestStore_ListFilters(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		require.NoError(t, s.Save(ctx, newTask("a", "ctx-1", a2a.TaskStateWorking)))
		require.NoError(t, s.Save(ctx, newTask("b", "ctx-1", a2a.TaskStateCompleted)))
		require.NoError(t, s.Save(ctx, newTask("c", "ctx-2", a2a.TaskStateCompleted)))

		res, err := s.List(ctx, ListRequest{ContextID: "ctx-1"})
		require.NoError(t, err)
		assert.Len(t, res.Tasks, 2)
		assert.Empty(t, res.NextPageToken)

		res, err = s.List(ctx, ListRequest{Status: "COMPLETED", IncludeArtifacts: true})
		require.NoError(t, err)
		require.Len(t, res.Tasks, 2)
		assert.Equal(t, a2a.TaskID("b"), res.Tasks[0].ID)
		assert.Len(t, res.Tasks[0].Artifacts, 1)

		res, err = s.List(ctx, ListRequest{ContextID: "ctx-2", Status: a2a.TaskStateWorking})
		require.NoError(t, err)
		assert.Empty(t, res.Tasks)
	})
}

func TestStore_ListRejectsBadInput(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		_, err := s.List(ctx, ListRequest{PageToken: "abc"})
		require.ErrorIs(t, err, ErrInvalidPageToken)

		_, err = s.List(ctx, ListRequest{PageToken: "-1"})
		require.ErrorIs(t, err, ErrInvalidPageToken)

		_, err = s.List(ctx, ListRequest{PageSize: MaxPageSize + 1})
		require.ErrorIs(t, err, ErrInvalidPageSize)

		res, err := s.List(ctx, ListRequest{PageToken: "100"})
		require.NoError(t, err)
		assert.Empty(t, res.Tasks)
	})
}

func TestObserved_CallsHooksAfterSave(t *testing.T) {
	var seen []a2a.TaskState
	obs := NewObserved(NewMemory(), func(_ context.Context, task *a2a.Task) {
		seen = append(seen, task.Status.State)
		task.Status.State = a2a.TaskStateFailed
	})

	ctx := context.Background()
	require.NoError(t, obs.Save(ctx, newTask("t", "c", a2a.TaskStateSubmitted)))
	require.NoError(t, obs.Save(ctx, newTask("t", "c", a2a.TaskStateCompleted)))

	assert.Equal(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateCompleted}, seen)

	got, err := obs.Get(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, a2a.TaskStateCompleted, got.Status.State)
}

// acceptingStore saves anything without encoding it.
type acceptingStore struct{ Store }

func (acceptingStore) Save(context.Context, *a2a.Task) error { return nil }

func TestObserved_UnencodableTaskLogsAndSkipsHooks(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	calls := 0
	hook := func(context.Context, *a2a.Task) { calls++ }
	obs := NewObserved(acceptingStore{}, hook, hook)

	task := newTask("t", "c", a2a.TaskStateWorking)
	task.Metadata = map[string]any{"ch": make(chan int)}

	require.NoError(t, obs.Save(context.Background(), task))
	assert.Zero(t, calls)
	assert.Equal(t, 2, strings.Count(buf.String(), "Skipping save hook"))
}

func TestRebindPostgres(t *testing.T) {
	s := &SQL{dialect: "postgres"}
	assert.Equal(t, "a = $1 AND b = $2", s.rebind("a = ? AND b = ?"))
	s.dialect = "mysql"
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}
