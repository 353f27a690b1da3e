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

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/protocol"
	"github.com/kadirpekel/a2alab/pkg/versioning"
)

// restTransport speaks the HTTP+JSON binding under /v1.
type restTransport struct {
	baseURL string
	opts    Options
	http    *httpclient.Client
}

func newRESTTransport(baseURL string, opts Options) *restTransport {
	return &restTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		opts:    opts,
		http:    opts.httpClient(),
	}
}

func jsonUnmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// responseError turns a non-2xx answer into an error. Problem documents,
// A2A error envelopes and auth failures are recognized.
func responseError(status int, contentType string, body []byte) error {
	if strings.HasPrefix(contentType, versioning.ProblemContentType) {
		var p versioning.Problem
		if err := json.Unmarshal(body, &p); err == nil {
			return &p
		}
	}

	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Error) > 0 {
		var detail protocol.ErrorDetail
		if err := json.Unmarshal(envelope.Error, &detail); err == nil && detail.Code != 0 {
			return protocol.ErrorFromCode(detail.Code, detail.Message)
		}
		var msg string
		if err := json.Unmarshal(envelope.Error, &msg); err == nil && status == http.StatusUnauthorized {
			return fmt.Errorf("%w: %s", auth.ErrUnauthorized, msg)
		}
	}
	if status == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return fmt.Errorf("server returned HTTP %d: %s", status, strings.TrimSpace(string(body)))
}

func (t *restTransport) do(ctx context.Context, method, path string, body any, accept string) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", accept)
	if err := t.opts.apply(req); err != nil {
		return nil, err
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, responseError(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	}
	return resp, nil
}

func (t *restTransport) doJSON(ctx context.Context, method, path string, body, out any) error {
	resp, err := t.do(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (t *restTransport) SendMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) (a2a.Event, error) {
	var raw json.RawMessage
	if err := t.doJSON(ctx, http.MethodPost, protocol.PathSend, cfg.request(msg), &raw); err != nil {
		return nil, err
	}
	return protocol.DecodeEvent(raw)
}

func (t *restTransport) SendStreamingMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, http.MethodPost, protocol.PathStream, cfg.request(msg))
}

func (t *restTransport) Resubscribe(ctx context.Context, id a2a.TaskID) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, http.MethodGet, protocol.TaskPath(id, ":subscribe"), nil)
}

func (t *restTransport) stream(ctx context.Context, method, path string, body any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		resp, err := t.do(ctx, method, path, body, "text/event-stream")
		if err != nil {
			yield(nil, err)
			return
		}
		defer resp.Body.Close()

		for sse, err := range protocol.ReadSSE(resp.Body) {
			if err != nil {
				yield(nil, err)
				return
			}
			if sse.Event == "error" {
				yield(nil, responseError(0, "", sse.Data))
				return
			}
			event, err := protocol.DecodeEvent(sse.Data)
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

func (t *restTransport) GetTask(ctx context.Context, id a2a.TaskID, historyLength *int) (*a2a.Task, error) {
	path := protocol.TaskPath(id, "")
	if historyLength != nil {
		path += "?historyLength=" + strconv.Itoa(*historyLength)
	}
	var task a2a.Task
	if err := t.doJSON(ctx, http.MethodGet, path, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *restTransport) CancelTask(ctx context.Context, id a2a.TaskID) (*a2a.Task, error) {
	var task a2a.Task
	if err := t.doJSON(ctx, http.MethodPost, protocol.TaskPath(id, ":cancel"), struct{}{}, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (t *restTransport) ListTasks(ctx context.Context, params ListParams) (protocol.ListResponse, error) {
	query := url.Values{}
	if params.ContextID != "" {
		query.Set("contextId", params.ContextID)
	}
	if params.Status != "" {
		query.Set("status", params.Status)
	}
	if params.IncludeArtifacts {
		query.Set("includeArtifacts", "true")
	}
	if params.PageSize > 0 {
		query.Set("pageSize", strconv.Itoa(params.PageSize))
	}
	if params.PageToken != "" {
		query.Set("pageToken", params.PageToken)
	}
	path := protocol.PathTasks
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var out protocol.ListResponse
	err := t.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func (t *restTransport) SetPushConfig(ctx context.Context, cfg protocol.PushConfig) (protocol.PushConfig, error) {
	var out protocol.PushConfig
	err := t.doJSON(ctx, http.MethodPost, protocol.PushConfigPath(a2a.TaskID(cfg.TaskID)), cfg, &out)
	return out, err
}

func (t *restTransport) ListPushConfigs(ctx context.Context, taskID a2a.TaskID) ([]protocol.PushConfig, error) {
	var out []protocol.PushConfig
	err := t.doJSON(ctx, http.MethodGet, protocol.PushConfigPath(taskID), nil, &out)
	return out, err
}

func (t *restTransport) Close() error { return nil }
