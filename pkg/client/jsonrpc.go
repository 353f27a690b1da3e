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

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/protocol"
)

// JSON-RPC methods.
const (
	methodSend        = "message/send"
	methodStream      = "message/stream"
	methodGetTask     = "tasks/get"
	methodCancelTask  = "tasks/cancel"
	methodResubscribe = "tasks/resubscribe"
)

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (r rpcResponse) err() error {
	if r.Error == nil {
		return nil
	}
	return protocol.ErrorFromCode(r.Error.Code, r.Error.Message)
}

type taskQuery struct {
	ID            a2a.TaskID `json:"id"`
	HistoryLength *int       `json:"historyLength,omitempty"`
}

// jsonrpcTransport speaks JSON-RPC 2.0 over HTTP POST, with SSE for the
// streaming methods.
type jsonrpcTransport struct {
	url  string
	opts Options
	http *httpclient.Client
}

func newJSONRPCTransport(url string, opts Options) *jsonrpcTransport {
	return &jsonrpcTransport{url: url, opts: opts, http: opts.httpClient()}
}

func (t *jsonrpcTransport) post(ctx context.Context, method string, params any, accept string) (*http.Response, error) {
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: uuid.NewString(), Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	if err := t.opts.apply(req); err != nil {
		return nil, err
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", method, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, responseError(resp.StatusCode, resp.Header.Get("Content-Type"), raw)
	}
	return resp, nil
}

func (t *jsonrpcTransport) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	resp, err := t.post(ctx, method, params, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rpcResp rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if err := rpcResp.err(); err != nil {
		return nil, err
	}
	return rpcResp.Result, nil
}

func (t *jsonrpcTransport) SendMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) (a2a.Event, error) {
	result, err := t.call(ctx, methodSend, cfg.request(msg))
	if err != nil {
		return nil, err
	}
	return protocol.DecodeEvent(result)
}

func (t *jsonrpcTransport) SendStreamingMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, methodStream, cfg.request(msg))
}

func (t *jsonrpcTransport) Resubscribe(ctx context.Context, id a2a.TaskID) iter.Seq2[a2a.Event, error] {
	return t.stream(ctx, methodResubscribe, taskQuery{ID: id})
}

func (t *jsonrpcTransport) stream(ctx context.Context, method string, params any) iter.Seq2[a2a.Event, error] {
	return func(yield func(a2a.Event, error) bool) {
		resp, err := t.post(ctx, method, params, "text/event-stream")
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
			var rpcResp rpcResponse
			if err := json.Unmarshal(sse.Data, &rpcResp); err != nil {
				yield(nil, fmt.Errorf("failed to decode stream frame: %w", err))
				return
			}
			if err := rpcResp.err(); err != nil {
				yield(nil, err)
				return
			}
			event, err := protocol.DecodeEvent(rpcResp.Result)
			if !yield(event, err) || err != nil {
				return
			}
		}
	}
}

func (t *jsonrpcTransport) GetTask(ctx context.Context, id a2a.TaskID, historyLength *int) (*a2a.Task, error) {
	result, err := t.call(ctx, methodGetTask, taskQuery{ID: id, HistoryLength: historyLength})
	if err != nil {
		return nil, err
	}
	var task a2a.Task
	if err := json.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

func (t *jsonrpcTransport) CancelTask(ctx context.Context, id a2a.TaskID) (*a2a.Task, error) {
	result, err := t.call(ctx, methodCancelTask, taskQuery{ID: id})
	if err != nil {
		return nil, err
	}
	var task a2a.Task
	if err := json.Unmarshal(result, &task); err != nil {
		return nil, fmt.Errorf("failed to decode task: %w", err)
	}
	return &task, nil
}

func (t *jsonrpcTransport) Close() error { return nil }
