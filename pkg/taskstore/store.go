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

// Package taskstore persists A2A tasks and lists them with pagination.
//
// Every Store satisfies a2asrv.TaskStore, so it can be handed directly to
// the a2a-go request handler, and adds List for the tasks endpoint.
package taskstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/kadirpekel/a2alab/pkg/config"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

var (
	ErrInvalidPageToken = errors.New("invalid page token")
	ErrInvalidPageSize  = fmt.Errorf("page size must be between 1 and %d", MaxPageSize)
)

// Store is a task store with listing.
type Store interface {
	a2asrv.TaskStore

	// List returns tasks in creation order. History is never included.
	List(ctx context.Context, req ListRequest) (ListResult, error)

	Close() error
}

// ListRequest filters and pages a List call. Zero values mean no filter
// and the default page size.
type ListRequest struct {
	ContextID        string
	Status           a2a.TaskState
	IncludeArtifacts bool
	PageSize         int
	PageToken        string
}

// ListResult is one page of tasks. NextPageToken is empty on the last page.
type ListResult struct {
	Tasks         []*a2a.Task `json:"tasks"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// New opens the backend selected by cfg.
func New(cfg config.TasksConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		return NewMemory(), nil
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.DSN); dir != "." && !strings.HasPrefix(cfg.DSN, "file:") {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create task db directory: %w", err)
			}
		}
		return OpenSQL("sqlite3", cfg.DSN)
	case config.BackendPostgres:
		return OpenSQL("postgres", cfg.DSN)
	case config.BackendMySQL:
		return OpenSQL("mysql", cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported task backend: %s", cfg.Backend)
	}
}

// OpenSQL opens a database and wraps it in an SQL store.
func OpenSQL(driver, dsn string) (*SQL, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// a single writer avoids "database is locked" under concurrent saves
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}
	store, err := NewSQL(db, driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (r ListRequest) normalize() (ListRequest, int, error) {
	if r.PageSize == 0 {
		r.PageSize = DefaultPageSize
	}
	if r.PageSize < 1 || r.PageSize > MaxPageSize {
		return r, 0, ErrInvalidPageSize
	}
	offset, err := ParsePageToken(r.PageToken)
	if err != nil {
		return r, 0, err
	}
	r.Status = a2a.TaskState(strings.ToLower(string(r.Status)))
	return r, offset, nil
}

// ParsePageToken decodes an offset token. Empty means the first page.
func ParsePageToken(token string) (int, error) {
	if token == "" {
		return 0, nil
	}
	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPageToken, token)
	}
	return offset, nil
}

func nextToken(offset, pageLen int, more bool) string {
	if !more {
		return ""
	}
	return strconv.Itoa(offset + pageLen)
}

func (r ListRequest) matches(task *a2a.Task) bool {
	if r.ContextID != "" && task.ContextID != r.ContextID {
		return false
	}
	if r.Status != "" && !strings.EqualFold(string(task.Status.State), string(r.Status)) {
		return false
	}
	return true
}

// project strips what a listing must not expose.
func (r ListRequest) project(task *a2a.Task) *a2a.Task {
	task.History = nil
	if !r.IncludeArtifacts {
		task.Artifacts = nil
	}
	return task
}

// cloneTask deep-copies through the wire encoding so callers never share
// parts, maps or slices with the store.
func cloneTask(task *a2a.Task) (*a2a.Task, error) {
	data, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task: %w", err)
	}
	var out a2a.Task
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &out, nil
}
