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
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQL stores tasks in a relational database (sqlite, postgres, mysql).
type SQL struct {
	db      *sql.DB
	dialect string
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS a2a_tasks (
    id VARCHAR(255) PRIMARY KEY,
    context_id VARCHAR(255) NOT NULL,
    state VARCHAR(64) NOT NULL,
    status_json TEXT NOT NULL,
    history_json TEXT,
    artifacts_json TEXT,
    metadata_json TEXT,
    seq BIGINT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`

// MySQL has no CREATE INDEX IF NOT EXISTS, so index creation errors are
// tolerated there.
var createIndexSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_a2a_tasks_context_id ON a2a_tasks(context_id)`,
	`CREATE INDEX IF NOT EXISTS idx_a2a_tasks_seq ON a2a_tasks(seq)`,
}

var createIndexMySQL = []string{
	`CREATE INDEX idx_a2a_tasks_context_id ON a2a_tasks(context_id)`,
	`CREATE INDEX idx_a2a_tasks_seq ON a2a_tasks(seq)`,
}

const taskColumns = `id, context_id, status_json, history_json, artifacts_json, metadata_json`

// NewSQL creates the schema if needed. dialect is sqlite3, sqlite,
// postgres or mysql.
func NewSQL(db *sql.DB, dialect string) (*SQL, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if dialect == "sqlite3" {
		dialect = "sqlite"
	}
	switch dialect {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported dialect: %s (supported: postgres, mysql, sqlite)", dialect)
	}

	s := &SQL{db: db, dialect: dialect}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQL) initSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create a2a_tasks table: %w", err)
	}

	if s.dialect == "mysql" {
		for _, stmt := range createIndexMySQL {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				slog.Debug("Index creation skipped", "statement", stmt, "error", err)
			}
		}
		return nil
	}

	for _, stmt := range createIndexSQL {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

// Save upserts task. created_at and seq are kept from the first save so
// listing stays in creation order.
func (s *SQL) Save(ctx context.Context, task *a2a.Task) error {
	if task == nil {
		return fmt.Errorf("task is required")
	}

	row, err := taskToRow(task)
	if err != nil {
		return fmt.Errorf("failed to serialize task: %w", err)
	}

	var query string
	switch s.dialect {
	case "postgres":
		query = `
INSERT INTO a2a_tasks (id, context_id, state, status_json, history_json, artifacts_json, metadata_json, seq, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
    context_id = EXCLUDED.context_id,
    state = EXCLUDED.state,
    status_json = EXCLUDED.status_json,
    history_json = EXCLUDED.history_json,
    artifacts_json = EXCLUDED.artifacts_json,
    metadata_json = EXCLUDED.metadata_json,
    updated_at = EXCLUDED.updated_at`
	case "sqlite":
		query = `
INSERT INTO a2a_tasks (id, context_id, state, status_json, history_json, artifacts_json, metadata_json, seq, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    context_id = excluded.context_id,
    state = excluded.state,
    status_json = excluded.status_json,
    history_json = excluded.history_json,
    artifacts_json = excluded.artifacts_json,
    metadata_json = excluded.metadata_json,
    updated_at = excluded.updated_at`
	default:
		query = `
INSERT INTO a2a_tasks (id, context_id, state, status_json, history_json, artifacts_json, metadata_json, seq, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
    context_id = VALUES(context_id),
    state = VALUES(state),
    status_json = VALUES(status_json),
    history_json = VALUES(history_json),
    artifacts_json = VALUES(artifacts_json),
    metadata_json = VALUES(metadata_json),
    updated_at = VALUES(updated_at)`
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query,
		row.ID, row.ContextID, row.State, row.StatusJSON,
		row.HistoryJSON, row.ArtifactsJSON, row.MetadataJSON,
		now.UnixNano(), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	query := s.rebind(`SELECT ` + taskColumns + ` FROM a2a_tasks WHERE id = ?`)

	var row taskRow
	err := s.db.QueryRowContext(ctx, query, string(taskID)).Scan(row.dest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, a2a.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query task: %w", err)
	}
	return row.toTask()
}

func (s *SQL) List(ctx context.Context, req ListRequest) (ListResult, error) {
	req, offset, err := req.normalize()
	if err != nil {
		return ListResult{}, err
	}

	var (
		where []string
		args  []any
	)
	if req.ContextID != "" {
		where = append(where, "context_id = ?")
		args = append(args, req.ContextID)
	}
	if req.Status != "" {
		where = append(where, "LOWER(state) = ?")
		args = append(args, string(req.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM a2a_tasks`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	// one extra row tells whether another page exists
	query += " ORDER BY seq, id LIMIT ? OFFSET ?"
	args = append(args, req.PageSize+1, offset)

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	result := ListResult{Tasks: []*a2a.Task{}}
	more := false
	for rows.Next() {
		if len(result.Tasks) == req.PageSize {
			more = true
			break
		}
		var row taskRow
		if err := rows.Scan(row.dest()...); err != nil {
			return ListResult{}, fmt.Errorf("failed to scan task: %w", err)
		}
		task, err := row.toTask()
		if err != nil {
			return ListResult{}, err
		}
		result.Tasks = append(result.Tasks, req.project(task))
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("failed to list tasks: %w", err)
	}

	result.NextPageToken = nextToken(offset, len(result.Tasks), more)
	return result, nil
}

func (s *SQL) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type taskRow struct {
	ID            string
	ContextID     string
	State         string
	StatusJSON    string
	HistoryJSON   sql.NullString
	ArtifactsJSON sql.NullString
	MetadataJSON  sql.NullString
}

func (r *taskRow) dest() []any {
	return []any{&r.ID, &r.ContextID, &r.StatusJSON, &r.HistoryJSON, &r.ArtifactsJSON, &r.MetadataJSON}
}

func taskToRow(task *a2a.Task) (*taskRow, error) {
	statusJSON, err := json.Marshal(task.Status)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}
	historyJSON, err := marshalOr(task.History, len(task.History) == 0, "[]")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}
	artifactsJSON, err := marshalOr(task.Artifacts, len(task.Artifacts) == 0, "[]")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal artifacts: %w", err)
	}
	metadataJSON, err := marshalOr(task.Metadata, len(task.Metadata) == 0, "{}")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	return &taskRow{
		ID:            string(task.ID),
		ContextID:     task.ContextID,
		State:         string(task.Status.State),
		StatusJSON:    string(statusJSON),
		HistoryJSON:   sql.NullString{String: historyJSON, Valid: true},
		ArtifactsJSON: sql.NullString{String: artifactsJSON, Valid: true},
		MetadataJSON:  sql.NullString{String: metadataJSON, Valid: true},
	}, nil
}

func marshalOr(v any, empty bool, fallback string) (string, error) {
	if empty {
		return fallback, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (r *taskRow) toTask() (*a2a.Task, error) {
	task := &a2a.Task{
		ID:        a2a.TaskID(r.ID),
		ContextID: r.ContextID,
	}

	if r.StatusJSON == "" {
		return nil, fmt.Errorf("status_json is required but was empty")
	}
	if err := json.Unmarshal([]byte(r.StatusJSON), &task.Status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status: %w", err)
	}

	if s := r.HistoryJSON.String; s != "" && s != "[]" {
		if err := json.Unmarshal([]byte(s), &task.History); err != nil {
			return nil, fmt.Errorf("failed to unmarshal history: %w", err)
		}
	}
	if s := r.ArtifactsJSON.String; s != "" && s != "[]" {
		if err := json.Unmarshal([]byte(s), &task.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to unmarshal artifacts: %w", err)
		}
	}
	if s := r.MetadataJSON.String; s != "" && s != "{}" {
		if err := json.Unmarshal([]byte(s), &task.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return task, nil
}

var _ Store = (*SQL)(nil)
