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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kadirpekel/a2alab/pkg/protocol"
	"github.com/kadirpekel/a2alab/pkg/push"
	"github.com/kadirpekel/a2alab/pkg/taskstore"
)

const maxBodyBytes = 10 << 20

func invalidParams(format string, args ...any) error {
	return fmt.Errorf("%w: %s", a2a.ErrInvalidParams, fmt.Sprintf(format, args...))
}

// decodeSend reads a message:send or message:stream body into handler
// params.
func decodeSend(w http.ResponseWriter, r *http.Request) (*a2a.MessageSendParams, *protocol.SendConfiguration, error) {
	var req protocol.SendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		return nil, nil, invalidParams("malformed request body: %v", err)
	}
	if req.Message == nil {
		return nil, nil, invalidParams("message is required")
	}
	if req.Message.ID == "" {
		req.Message.ID = uuid.NewString()
	}

	params := &a2a.MessageSendParams{Message: req.Message, Metadata: req.Metadata}
	if c := req.Configuration; c != nil {
		if c.HistoryLength != nil && *c.HistoryLength < 0 {
			return nil, nil, invalidParams("historyLength must be >= 0")
		}
		params.Config = &a2a.MessageSendConfig{
			HistoryLength:       c.HistoryLength,
			AcceptedOutputModes: c.AcceptedOutputModes,
		}
	}
	return params, req.Configuration, nil
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	params, sendCfg, err := decodeSend(w, r)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}

	var result a2a.SendMessageResult
	if sendCfg.IsBlocking() {
		result, err = s.handler.OnSendMessage(r.Context(), params)
	} else {
		result, err = s.sendNonBlocking(r.Context(), params)
	}
	if err != nil {
		protocol.WriteError(w, err)
		return
	}

	if task, ok := result.(*a2a.Task); ok && sendCfg != nil {
		protocol.TrimHistory(task, sendCfg.HistoryLength)
	}
	protocol.WriteJSON(w, http.StatusOK, result)
}

// sendNonBlocking starts the execution detached from the request and
// returns as soon as the task exists. The execution keeps running after
// the response is written.
func (s *Server) sendNonBlocking(ctx context.Context, params *a2a.MessageSendParams) (a2a.SendMessageResult, error) {
	first := make(chan a2a.Event, 1)
	failed := make(chan error, 1)

	go func() {
		delivered := false
		for event, err := range s.handler.OnSendMessageStream(context.WithoutCancel(ctx), params) {
			if err != nil {
				if !delivered {
					failed <- err
				} else {
					slog.Warn("Background execution failed", "error", err)
				}
				return
			}
			if !delivered {
				first <- event
				delivered = true
			}
		}
		if !delivered {
			failed <- errors.New("agent produced no events")
		}
	}()

	var event a2a.Event
	select {
	case event = <-first:
	case err := <-failed:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if msg, ok := event.(*a2a.Message); ok {
		return msg, nil
	}

	info, ok := event.(a2a.TaskInfoProvider)
	if !ok {
		return nil, fmt.Errorf("unexpected first event %T", event)
	}
	task, err := s.store.Get(ctx, info.TaskInfo().TaskID)
	if err == nil {
		return task, nil
	}

	// Not persisted yet: answer from the event itself.
	switch ev := event.(type) {
	case *a2a.Task:
		return ev, nil
	case *a2a.TaskStatusUpdateEvent:
		return &a2a.Task{ID: ev.TaskID, ContextID: ev.ContextID, Status: ev.Status}, nil
	default:
		return nil, err
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	params, _, err := decodeSend(w, r)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}
	s.writeStream(w, r, s.handler.OnSendMessageStream(r.Context(), params))
}

func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, events iter.Seq2[a2a.Event, error]) {
	sse, err := protocol.NewSSEWriter(w)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}

	for event, err := range events {
		if err != nil {
			slog.Warn("Stream failed", "path", r.URL.Path, "error", err)
			_ = sse.WriteError(err)
			return
		}
		if err := sse.WriteData(event); err != nil {
			slog.Debug("Stream client went away", "path", r.URL.Path, "error", err)
			return
		}
	}
}

// splitTaskAction splits "{id}:{verb}". Task ids never contain a colon.
func splitTaskAction(r *http.Request) (a2a.TaskID, string) {
	id, verb, _ := strings.Cut(chi.URLParam(r, "idAction"), ":")
	return a2a.TaskID(id), verb
}

func (s *Server) handleTaskGet(w http.ResponseWriter, r *http.Request) {
	id, verb := splitTaskAction(r)
	switch verb {
	case "":
		s.handleGetTask(w, r, id)
	case "subscribe":
		s.handleSubscribe(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleTaskPost(w http.ResponseWriter, r *http.Request) {
	id, verb := splitTaskAction(r)
	switch verb {
	case "cancel":
		task, err := s.handler.OnCancelTask(r.Context(), &a2a.TaskIDParams{ID: id})
		if err != nil {
			protocol.WriteError(w, err)
			return
		}
		protocol.WriteJSON(w, http.StatusOK, task)
	case "subscribe":
		s.handleSubscribe(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request, id a2a.TaskID) {
	var historyLength *int
	if raw := r.URL.Query().Get("historyLength"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			protocol.WriteError(w, invalidParams("historyLength must be a non-negative integer"))
			return
		}
		historyLength = &n
	}

	task, err := s.handler.OnGetTask(r.Context(), &a2a.TaskQueryParams{ID: id, HistoryLength: historyLength})
	if err != nil {
		protocol.WriteError(w, err)
		return
	}
	protocol.TrimHistory(task, historyLength)
	protocol.WriteJSON(w, http.StatusOK, task)
}

// handleSubscribe reattaches to a running task. A task that already
// finished yields itself as the only event.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request, id a2a.TaskID) {
	task, err := s.store.Get(r.Context(), id)
	if err != nil {
		protocol.WriteError(w, err)
		return
	}
	if task.Status.State.Terminal() {
		s.writeStream(w, r, func(yield func(a2a.Event, error) bool) {
			yield(task, nil)
		})
		return
	}
	s.writeStream(w, r, s.handler.OnResubscribeToTask(r.Context(), &a2a.TaskIDParams{ID: id}))
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := taskstore.ListRequest{
		ContextID: query.Get("contextId"),
		Status:    a2a.TaskState(query.Get("status")),
		PageToken: query.Get("pageToken"),
	}
	if raw := query.Get("includeArtifacts"); raw != "" {
		include, err := strconv.ParseBool(raw)
		if err != nil {
			protocol.WriteError(w, invalidParams("includeArtifacts must be a boolean"))
			return
		}
		req.IncludeArtifacts = include
	}
	if raw := query.Get("pageSize"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 1 || size > taskstore.MaxPageSize {
			protocol.WriteError(w, invalidParams("%v", taskstore.ErrInvalidPageSize))
			return
		}
		req.PageSize = size
	}

	result, err := s.store.List(r.Context(), req)
	if err != nil {
		if errors.Is(err, taskstore.ErrInvalidPageToken) || errors.Is(err, taskstore.ErrInvalidPageSize) {
			err = fmt.Errorf("%w: %w", a2a.ErrInvalidParams, err)
		}
		protocol.WriteError(w, err)
		return
	}

	protocol.WriteJSON(w, http.StatusOK, protocol.ListResponse{
		Tasks:         result.Tasks,
		NextPageToken: result.NextPageToken,
	})
}

func (s *Server) handleSetPushConfig(w http.ResponseWriter, r *http.Request) {
	taskID := a2a.TaskID(chi.URLParam(r, "id"))

	var body protocol.PushConfig
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil {
		protocol.WriteError(w, invalidParams("malformed request body: %v", err))
		return
	}

	stored, err := s.pushConfigs.Set(r.Context(), push.Config{
		ID:     body.ID,
		TaskID: taskID,
		URL:    body.URL,
		Token:  body.Token,
	})
	if err != nil {
		protocol.WriteError(w, err)
		return
	}
	slog.Info("Push notification config stored", "task_id", taskID, "config_id", stored.ID, "url", stored.URL)
	protocol.WriteJSON(w, http.StatusOK, wirePushConfig(stored))
}

func (s *Server) handleListPushConfigs(w http.ResponseWriter, r *http.Request) {
	configs := s.pushConfigs.List(r.Context(), a2a.TaskID(chi.URLParam(r, "id")))
	out := make([]protocol.PushConfig, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, wirePushConfig(cfg))
	}
	protocol.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) handleDeletePushConfig(w http.ResponseWriter, r *http.Request) {
	taskID := a2a.TaskID(chi.URLParam(r, "id"))
	if err := s.pushConfigs.Delete(r.Context(), taskID, chi.URLParam(r, "configId")); err != nil {
		if errors.Is(err, push.ErrConfigNotFound) {
			err = fmt.Errorf("%w: %w", a2a.ErrTaskNotFound, err)
		}
		protocol.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func wirePushConfig(cfg push.Config) protocol.PushConfig {
	return protocol.PushConfig{
		ID:     cfg.ID,
		TaskID: string(cfg.TaskID),
		URL:    cfg.URL,
		Token:  cfg.Token,
	}
}
