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

// Package protocol holds the HTTP+JSON (REST) wire shapes shared by the
// a2alab server and client: request bodies, the error envelope, event
// decoding and server-sent event framing.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/a2aproject/a2a-go/a2a"
)

// Headers.
const (
	// ExtensionsHeader lists the extension URIs a client activates.
	ExtensionsHeader = "X-A2A-Extensions"
)

// REST paths.
const (
	PathSend      = "/v1/message:send"
	PathStream    = "/v1/message:stream"
	PathTasks     = "/v1/tasks"
	PathDownloads = "/download.txt"
)

// TaskPath returns /v1/tasks/{id} with an optional verb suffix such as
// ":cancel".
func TaskPath(id a2a.TaskID, verb string) string {
	return PathTasks + "/" + string(id) + verb
}

// PushConfigPath returns the push notification config collection of a task.
func PushConfigPath(id a2a.TaskID) string {
	return TaskPath(id, "") + "/pushNotificationConfigs"
}

// SendConfiguration controls one message send.
type SendConfiguration struct {
	// Blocking defaults to true when unset.
	Blocking            *bool    `json:"blocking,omitempty"`
	HistoryLength       *int     `json:"historyLength,omitempty"`
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
}

// IsBlocking reports the effective blocking mode.
func (c *SendConfiguration) IsBlocking() bool {
	return c == nil || c.Blocking == nil || *c.Blocking
}

// SendRequest is the body of message:send and message:stream.
type SendRequest struct {
	Message       *a2a.Message       `json:"message"`
	Configuration *SendConfiguration `json:"configuration,omitempty"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

// ListResponse is the body of GET /v1/tasks.
type ListResponse struct {
	Tasks         []*a2a.Task `json:"tasks"`
	NextPageToken string      `json:"nextPageToken,omitempty"`
}

// PushConfig is a webhook registration for one task.
type PushConfig struct {
	ID     string `json:"id,omitempty"`
	TaskID string `json:"taskId,omitempty"`
	URL    string `json:"url"`
	Token  string `json:"token,omitempty"`
}

// TrimHistory keeps the last n history entries of task. n == 0 clears the
// history; a nil n leaves it untouched.
func TrimHistory(task *a2a.Task, n *int) {
	if task == nil || n == nil {
		return
	}
	switch {
	case *n <= 0:
		task.History = nil
	case len(task.History) > *n:
		task.History = task.History[len(task.History)-*n:]
	}
}

// DecodeEvent decodes one event by its "kind" discriminator.
func DecodeEvent(data []byte) (a2a.Event, error) {
	var peek struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		return nil, fmt.Errorf("failed to peek event kind: %w", err)
	}

	var event a2a.Event
	switch peek.Kind {
	case "message":
		event = &a2a.Message{}
	case "task":
		event = &a2a.Task{}
	case "status-update":
		event = &a2a.TaskStatusUpdateEvent{}
	case "artifact-update":
		event = &a2a.TaskArtifactUpdateEvent{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", peek.Kind)
	}
	if err := json.Unmarshal(data, event); err != nil {
		return nil, fmt.Errorf("failed to decode %s event: %w", peek.Kind, err)
	}
	return event, nil
}

// JSON-RPC error codes used by A2A.
const (
	CodeParseError                 = -32700
	CodeInvalidRequest             = -32600
	CodeMethodNotFound             = -32601
	CodeInvalidParams              = -32602
	CodeInternalError              = -32603
	CodeTaskNotFound               = -32001
	CodeTaskNotCancelable          = -32002
	CodePushNotificationNotSupport = -32003
	CodeUnsupportedOperation       = -32004
)

type errorMapping struct {
	err    error
	code   int
	status int
}

var errorMappings = []errorMapping{
	{a2a.ErrTaskNotFound, CodeTaskNotFound, http.StatusNotFound},
	{a2a.ErrTaskNotCancelable, CodeTaskNotCancelable, http.StatusConflict},
	{a2a.ErrInvalidParams, CodeInvalidParams, http.StatusBadRequest},
	{a2a.ErrUnsupportedOperation, CodeUnsupportedOperation, http.StatusNotImplemented},
	{a2a.ErrPushNotificationNotSupported, CodePushNotificationNotSupport, http.StatusNotImplemented},
}

// ErrorBody is the REST error envelope.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ErrorFor maps err to its JSON-RPC code and HTTP status.
func ErrorFor(err error) (code, status int) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.code, m.status
		}
	}
	return CodeInternalError, http.StatusInternalServerError
}

// ErrorFromCode rebuilds a domain error from a wire code. Unknown codes
// yield a plain error carrying the message.
func ErrorFromCode(code int, message string) error {
	for _, m := range errorMappings {
		if m.code == code {
			return fmt.Errorf("%w: %s", m.err, message)
		}
	}
	return fmt.Errorf("a2a error %d: %s", code, message)
}

// WriteError writes err as a REST error envelope.
func WriteError(w http.ResponseWriter, err error) {
	code, status := ErrorFor(err)
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}})
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
