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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2alab/pkg/agents"
	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/protocol"
	"github.com/kadirpekel/a2alab/pkg/versioning"
)

type staticValidator struct{ token string }

func (v staticValidator) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	if token != v.token {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Claims{Subject: "tester"}, nil
}

// newTestServer serves profile on an httptest server whose URL is the
// card's base URL.
func newTestServer(t *testing.T, profile string, mutate func(*config.ServerConfig), opts ...Option) (*Server, *httptest.Server) {
	t.Helper()
	return newScaledTestServer(t, profile, 1000, mutate, opts...)
}

func newScaledTestServer(t *testing.T, profile string, timeScale float64, mutate func(*config.ServerConfig), opts ...Option) (*Server, *httptest.Server) {
	t.Helper()

	ts := httptest.NewUnstartedServer(nil)
	cfg := &config.ServerConfig{BaseURL: "http://" + ts.Listener.Addr().String()}
	if mutate != nil {
		mutate(cfg)
	}
	cfg.SetDefaults()

	p, err := agents.Lookup(profile, agents.Options{TimeScale: timeScale})
	require.NoError(t, err)

	s, err := New(cfg, p, opts...)
	require.NoError(t, err)

	ts.Config.Handler = s.Handler()
	ts.Start()
	t.Cleanup(ts.Close)
	return s, ts
}

func doJSON(t *testing.T, method, url string, body any, header http.Header) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func sendBody(text string, configuration map[string]any) map[string]any {
	body := map[string]any{
		"message": map[string]any{
			"kind":      "message",
			"messageId": "msg-1",
			"role":      "user",
			"parts":     []any{map[string]any{"kind": "text", "text": text}},
		},
	}
	if configuration != nil {
		body["configuration"] = configuration
	}
	return body
}

func errorCode(t *testing.T, body map[string]any) float64 {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	return errObj["code"].(float64)
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileEcho, nil)

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/health", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, agents.ProfileEcho, body["agent"])
}

func TestAgentCard(t *testing.T) {
	tests := []struct {
		name           string
		profile        string
		transports     []string
		wantPreferred  a2a.TransportProtocol
		wantAdditional []a2a.TransportProtocol
	}{
		{
			name:           "profile preference honored",
			profile:        agents.ProfileLifecycle,
			transports:     []string{config.TransportJSONRPC, config.TransportREST},
			wantPreferred:  a2a.TransportProtocolHTTPJSON,
			wantAdditional: []a2a.TransportProtocol{a2a.TransportProtocolJSONRPC},
		},
		{
			name:          "preference limited to enabled transports",
			profile:       agents.ProfileEcho,
			transports:    []string{config.TransportREST},
			wantPreferred: a2a.TransportProtocolHTTPJSON,
		},
		{
			name:           "grpc listed with its own address",
			profile:        agents.ProfileEchoV2,
			transports:     []string{config.TransportJSONRPC, config.TransportGRPC},
			wantPreferred:  a2a.TransportProtocolJSONRPC,
			wantAdditional: []a2a.TransportProtocol{a2a.TransportProtocolGRPC},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, ts := newTestServer(t, tt.profile, func(c *config.ServerConfig) {
				c.Transports = tt.transports
				c.GRPCPort = 50071
			})

			resp, err := http.Get(ts.URL + "/.well-known/agent-card.json")
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var card a2a.AgentCard
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
			assert.Equal(t, tt.wantPreferred, card.PreferredTransport)
			assert.Equal(t, s.Card().URL, card.URL)

			var additional []a2a.TransportProtocol
			for _, ai := range card.AdditionalInterfaces {
				additional = append(additional, ai.Transport)
				if ai.Transport == a2a.TransportProtocolGRPC {
					assert.True(t, strings.HasSuffix(ai.URL, ":50071"), ai.URL)
				} else {
					assert.Equal(t, ts.URL, ai.URL)
				}
			}
			assert.Equal(t, tt.wantAdditional, additional)
		})
	}
}

func TestNew_RequireAuthWithoutValidator(t *testing.T) {
	cfg := config.Default().Server
	p, err := agents.Lookup(agents.ProfileSecurity, agents.Options{})
	require.NoError(t, err)

	_, err = New(&cfg, p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires authentication")

	s, err := New(&cfg, p, WithAuthValidator(staticValidator{token: "t"}))
	require.NoError(t, err)
	assert.NotEmpty(t, s.Card().Security)
}

func TestRESTSend_EchoReturnsMessage(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileEcho, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+protocol.PathSend, sendBody("Hello A2A", nil), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "message", body["kind"])
	assert.Equal(t, "agent", body["role"])

	parts := body["parts"].([]any)
	require.Len(t, parts, 1)
	assert.Equal(t, "Echo: Hello A2A", parts[0].(map[string]any)["text"])
}

func TestRESTSend_BlockingLifecycle(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileLifecycle, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+protocol.PathSend,
		sendBody("report", map[string]any{"historyLength": 0}), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "task", body["kind"])
	assert.Equal(t, "completed", body["status"].(map[string]any)["state"])
	assert.Empty(t, body["history"])

	artifacts := body["artifacts"].([]any)
	require.Len(t, artifacts, 1)
	assert.Equal(t, "report.pdf", artifacts[0].(map[string]any)["name"])

	// the stored task keeps its history
	taskID := body["id"].(string)
	resp, body = doJSON(t, http.MethodGet, ts.URL+protocol.TaskPath(a2a.TaskID(taskID), ""), nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["history"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+protocol.TaskPath(a2a.TaskID(taskID), "")+"?historyLength=0", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["history"])
}

func TestRESTSend_NonBlockingReturnsEarly(t *testing.T) {
	// about 300ms of work
	_, ts := newScaledTestServer(t, agents.ProfileCancel, 100, nil)

	resp, body := doJSON(t, http.MethodPost, ts.URL+protocol.PathSend,
		sendBody("long job", map[string]any{"blocking": false}), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "task", body["kind"])

	state := body["status"].(map[string]any)["state"].(string)
	assert.False(t, a2a.TaskState(state).Terminal(), "state %s", state)

	taskID := a2a.TaskID(body["id"].(string))
	require.Eventually(t, func() bool {
		_, task := doJSON(t, http.MethodGet, ts.URL+protocol.TaskPath(taskID, ""), nil, nil)
		return task["status"].(map[string]any)["state"] == "completed"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestRESTErrors(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileLifecycle, nil)

	tests := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   float64
	}{
		{"negative history length", http.MethodPost, protocol.PathSend,
			sendBody("x", map[string]any{"historyLength": -1}), http.StatusBadRequest, protocol.CodeInvalidParams},
		{"missing message", http.MethodPost, protocol.PathSend,
			map[string]any{}, http.StatusBadRequest, protocol.CodeInvalidParams},
		{"unknown task", http.MethodGet, protocol.TaskPath("nope", ""),
			nil, http.StatusNotFound, protocol.CodeTaskNotFound},
		{"bad history query", http.MethodGet, protocol.TaskPath("nope", "") + "?historyLength=-2",
			nil, http.StatusBadRequest, protocol.CodeInvalidParams},
		{"page size too large", http.MethodGet, protocol.PathTasks + "?pageSize=201",
			nil, http.StatusBadRequest, protocol.CodeInvalidParams},
		{"page size zero", http.MethodGet, protocol.PathTasks + "?pageSize=0",
			nil, http.StatusBadRequest, protocol.CodeInvalidParams},
		{"bad page token", http.MethodGet, protocol.PathTasks + "?pageToken=abc",
			nil, http.StatusBadRequest, protocol.CodeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, tt.method, ts.URL+tt.path, tt.body, nil)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, errorCode(t, body))
		})
	}
}

func readEvents(t *testing.T, resp *http.Response) []a2a.Event {
	t.Helper()
	var events []a2a.Event
	for sse, err := range protocol.ReadSSE(resp.Body) {
		require.NoError(t, err)
		require.NotEqual(t, "error", sse.Event, string(sse.Data))
		event, err := protocol.DecodeEvent(sse.Data)
		require.NoError(t, err)
		events = append(events, event)
	}
	return events
}

func TestRESTStream(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileStreaming, nil)

	data, err := json.Marshal(sendBody("stream please", nil))
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+protocol.PathStream, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := readEvents(t, resp)
	require.NotEmpty(t, events)

	var working, artifacts int
	for _, event := range events {
		switch ev := event.(type) {
		case *a2a.TaskStatusUpdateEvent:
			if ev.Status.State == a2a.TaskStateWorking {
				working++
			}
		case *a2a.TaskArtifactUpdateEvent:
			artifacts++
		}
	}
	assert.Equal(t, 3, working)
	assert.Equal(t, 1, artifacts)

	last, ok := events[len(events)-1].(*a2a.TaskStatusUpdateEvent)
	require.True(t, ok, "last event is %T", events[len(events)-1])
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
	assert.True(t, last.Final)
}

func TestRESTSubscribe_TerminalTaskYieldsTask(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileLifecycle, nil)

	_, body := doJSON(t, http.MethodPost, ts.URL+protocol.PathSend, sendBody("done", nil), nil)
	taskID := a2a.TaskID(body["id"].(string))

	resp, err := http.Get(ts.URL + protocol.TaskPath(taskID, ":subscribe"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	events := readEvents(t, resp)
	require.Len(t, events, 1)
	task, ok := events[0].(*a2a.Task)
	require.True(t, ok)
	assert.Equal(t, taskID, task.ID)
	assert.Equal(t, a2a.TaskStateCompleted, task.Status.State)
}

func TestRESTListTasks(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileLifecycle, nil)

	var ids []string
	for range 3 {
		resp, body := doJSON(t, http.MethodPost, ts.URL+protocol.PathSend, sendBody("job", nil), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		ids = append(ids, body["id"].(string))
	}

	resp, body := doJSON(t, http.MethodGet, ts.URL+protocol.PathTasks+"?pageSize=2", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks := body["tasks"].([]any)
	require.Len(t, tasks, 2)
	assert.Equal(t, ids[0], tasks[0].(map[string]any)["id"])
	assert.Nil(t, tasks[0].(map[string]any)["history"])
	assert.Nil(t, tasks[0].(map[string]any)["artifacts"])
	assert.Equal(t, "2", body["nextPageToken"])

	resp, body = doJSON(t, http.MethodGet, ts.URL+protocol.PathTasks+"?pageToken=2&includeArtifacts=true", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tasks = body["tasks"].([]any)
	require.Len(t, tasks, 1)
	assert.Equal(t, ids[2], tasks[0].(map[string]any)["id"])
	assert.NotEmpty(t, tasks[0].(map[string]any)["artifacts"])
	assert.Nil(t, body["nextPageToken"])

	_, body = doJSON(t, http.MethodGet, ts.URL+protocol.PathTasks+"?status=failed", nil, nil)
	assert.Empty(t, body["tasks"])
}

func TestRESTPushConfigs(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfilePush, func(c *config.ServerConfig) {
		c.Push.Enabled = true
	})

	path := ts.URL + protocol.PushConfigPath("task-1")
	resp, body := doJSON(t, http.MethodPost, path,
		map[string]any{"url": "http://localhost:9999/webhook", "token": "secret"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	configID := body["id"].(string)
	assert.NotEmpty(t, configID)
	assert.Equal(t, "task-1", body["taskId"])

	resp, err := http.Get(path)
	require.NoError(t, err)
	var list []protocol.PushConfig
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	require.Len(t, list, 1)
	assert.Equal(t, "secret", list[0].Token)

	resp, _ = doJSON(t, http.MethodPost, path, map[string]any{"url": "not a url"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, path+"/"+configID, nil, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, http.MethodDelete, path+"/"+configID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, float64(protocol.CodeTaskNotFound), errorCode(t, body))
}

func TestPushRoutesAbsentWhenDisabled(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileLifecycle, nil)

	resp, _ := doJSON(t, http.MethodPost, ts.URL+protocol.PushConfigPath("task-1"),
		map[string]any{"url": "http://localhost:9999/webhook"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExtendedCard(t *testing.T) {
	tests := []struct {
		name      string
		mode      string
		path      string
		validator auth.TokenValidator
		token     string
		want      int
	}{
		{"legacy without token", config.ModeLegacy, versioning.ExtendedCardPathV03, nil, "", http.StatusUnauthorized},
		{"legacy any token", config.ModeLegacy, versioning.ExtendedCardPathV03, nil, "whatever", http.StatusOK},
		{"v1 path", config.ModeV1, versioning.ExtendedCardPathV10, nil, "whatever", http.StatusOK},
		{"validated token", config.ModeLegacy, versioning.ExtendedCardPathV03, staticValidator{"good"}, "good", http.StatusOK},
		{"rejected token", config.ModeLegacy, versioning.ExtendedCardPathV03, staticValidator{"good"}, "bad", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.validator != nil {
				opts = append(opts, WithAuthValidator(tt.validator))
			}
			_, ts := newTestServer(t, agents.ProfileVersioning, func(c *config.ServerConfig) {
				c.Versioning.Mode = tt.mode
			}, opts...)

			header := http.Header{}
			if tt.token != "" {
				header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, body := doJSON(t, http.MethodGet, ts.URL+tt.path, nil, header)
			require.Equal(t, tt.want, resp.StatusCode)
			if tt.want == http.StatusOK {
				assert.Len(t, body["skills"], 2)
			}
		})
	}
}

func TestVersionGate(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileLifecycle, func(c *config.ServerConfig) {
		c.Versioning.Enabled = true
	})

	resp, err := http.Get(ts.URL + protocol.PathTasks)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, versioning.ProblemContentType, resp.Header.Get("Content-Type"))

	header := http.Header{}
	header.Set(versioning.HeaderName, versioning.Version03)
	resp, _ = doJSON(t, http.MethodGet, ts.URL+protocol.PathTasks, nil, header)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// the public card is outside /v1
	resp, err = http.Get(ts.URL + "/.well-known/agent-card.json")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthMiddleware(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileLifecycle, nil, WithAuthValidator(staticValidator{"good"}))

	tests := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"health is open", "/health", "", http.StatusOK},
		{"card is open", "/.well-known/agent-card.json", "", http.StatusOK},
		{"tasks need a token", protocol.PathTasks, "", http.StatusUnauthorized},
		{"bad token", protocol.PathTasks, "bad", http.StatusUnauthorized},
		{"good token", protocol.PathTasks, "good", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := http.Header{}
			if tt.token != "" {
				header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, _ := doJSON(t, http.MethodGet, ts.URL+tt.path, nil, header)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, agents.ProfileEcho, func(c *config.ServerConfig) {
		c.CORSOrigins = []string{"http://app.local"}
	})

	req, err := http.NewRequest(http.MethodOptions, ts.URL+protocol.PathSend, nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://app.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://app.local", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Headers"), versioning.HeaderName)
}

func TestStartAndShutdown(t *testing.T) {
	cfg := config.Default().Server
	cfg.Port = 0
	cfg.Host = "127.0.0.1"
	cfg.ShutdownTimeout = time.Second

	p, err := agents.Lookup(agents.ProfileEcho, agents.Options{})
	require.NoError(t, err)
	s, err := New(&cfg, p)
	require.NoError(t, err)
	assert.Empty(t, s.GRPCAddress())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		return !strings.HasSuffix(s.Address(), ":0")
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + s.Address() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_ListenError(t *testing.T) {
	cfg := config.Default().Server
	cfg.Host = "256.0.0.1"

	p, err := agents.Lookup(agents.ProfileEcho, agents.Options{})
	require.NoError(t, err)
	s, err := New(&cfg, p)
	require.NoError(t, err)

	err = s.Start(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}
