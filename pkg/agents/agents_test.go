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

package agents

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/llm"
)

// recordingQueue collects written events.
type recordingQueue struct {
	mu     sync.Mutex
	events []a2a.Event
}

func (q *recordingQueue) Write(_ context.Context, event a2a.Event) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
	return nil
}

func (q *recordingQueue) Read(ctx context.Context) (a2a.Event, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (q *recordingQueue) Close() error { return nil }

func (q *recordingQueue) snapshot() []a2a.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]a2a.Event(nil), q.events...)
}

// states lists the states of the status updates, in order.
func (q *recordingQueue) states() []a2a.TaskState {
	var out []a2a.TaskState
	for _, ev := range q.snapshot() {
		if su, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
			out = append(out, su.Status.State)
		}
	}
	return out
}

func (q *recordingQueue) last() *a2a.TaskStatusUpdateEvent {
	events := q.snapshot()
	for i := len(events) - 1; i >= 0; i-- {
		if su, ok := events[i].(*a2a.TaskStatusUpdateEvent); ok {
			return su
		}
	}
	return nil
}

func (q *recordingQueue) artifacts() []*a2a.Artifact {
	var out []*a2a.Artifact
	for _, ev := range q.snapshot() {
		if au, ok := ev.(*a2a.TaskArtifactUpdateEvent); ok {
			out = append(out, au.Artifact)
		}
	}
	return out
}

var _ eventqueue.Queue = (*recordingQueue)(nil)

func statusText(ev *a2a.TaskStatusUpdateEvent) string {
	if ev == nil || ev.Status.Message == nil {
		return ""
	}
	return MessageText(ev.Status.Message)
}

func newRequest(parts ...a2a.Part) *a2asrv.RequestContext {
	return &a2asrv.RequestContext{
		Message:   a2a.NewMessage(a2a.MessageRoleUser, parts...),
		TaskID:    a2a.NewTaskID(),
		ContextID: a2a.NewContextID(),
	}
}

func fastOptions() Options {
	return Options{TimeScale: 1000, BaseURL: "http://localhost:8000"}
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		t.Run(name, func(t *testing.T) {
			opts := fastOptions()
			opts.FootballURL = "http://localhost:8001"
			opts.GeneralURL = "http://localhost:8002"

			p, err := Lookup(name, opts)
			require.NoError(t, err)
			assert.Equal(t, name, p.Name)
			require.NotNil(t, p.Card)
			assert.NotEmpty(t, p.Card.Name)
			assert.NotEmpty(t, p.Card.Version)
			assert.Equal(t, "http://localhost:8000", p.Card.URL)
			assert.NotNil(t, p.Executor)
			assert.NotEmpty(t, p.PreferredTransport)
		})
	}

	_, err := Lookup("nope", fastOptions())
	assert.ErrorContains(t, err, "unknown profile")

	_, err = Lookup(ProfileOrchestrator, fastOptions())
	assert.Error(t, err, "orchestrator needs downstream URLs")

	opts := fastOptions()
	opts.FilesMode = "carrier-pigeon"
	_, err = Lookup(ProfileFiles, opts)
	assert.Error(t, err)
}

func TestLookup_VersionOverride(t *testing.T) {
	opts := fastOptions()
	opts.Version = "9.9.9"
	p, err := Lookup(ProfileEcho, opts)
	require.NoError(t, err)
	assert.Equal(t, "9.9.9", p.Card.Version)

	p, err = Lookup(" ECHO ", fastOptions())
	require.NoError(t, err)
	assert.Equal(t, "0.1.0", p.Card.Version)
}

func TestMessageText(t *testing.T) {
	assert.Equal(t, "", MessageText(nil))
	msg := a2a.NewMessage(a2a.MessageRoleUser,
		a2a.TextPart{Text: "a"},
		a2a.DataPart{Data: map[string]any{"x": 1}},
		&a2a.TextPart{Text: "b"},
	)
	assert.Equal(t, "a\nb", MessageText(msg))
}

func TestChunkRunes(t *testing.T) {
	assert.Equal(t, []string{""}, chunkRunes("", 3))
	assert.Equal(t, []string{"abc", "de"}, chunkRunes("abcde", 3))
	assert.Equal(t, []string{"äöü", "ß"}, chunkRunes("äöüß", 3))
}

func TestEchoExecutor(t *testing.T) {
	q := &recordingQueue{}
	req := newRequest(a2a.TextPart{Text: "Hello A2A"})

	require.NoError(t, echoExecutor{}.Execute(context.Background(), req, q))

	events := q.snapshot()
	require.Len(t, events, 1)
	msg, ok := events[0].(*a2a.Message)
	require.True(t, ok)
	assert.Equal(t, "Echo: Hello A2A", MessageText(msg))
	assert.Equal(t, req.ContextID, msg.ContextID)
	assert.Equal(t, a2a.MessageRoleAgent, msg.Role)

	err := echoExecutor{}.Cancel(context.Background(), req, q)
	assert.ErrorIs(t, err, a2a.ErrTaskNotCancelable)
}

func TestLifecycleExecutor(t *testing.T) {
	tests := []struct {
		outcome   a2a.TaskState
		wantText  string
		artifacts int
	}{
		{a2a.TaskStateCompleted, "Completed Task: Echo: hi", 1},
		{a2a.TaskStateRejected, "Rejected Task: Validation failed (demo). Input was: hi", 0},
		{a2a.TaskStateFailed, "Failed Task: Unexpected error (demo). Input was: hi", 0},
	}
	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			q := &recordingQueue{}
			exec := lifecycleExecutor{canceler: newCanceler(""), outcome: tt.outcome}
			require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "hi"}), q))

			assert.Equal(t, []a2a.TaskState{a2a.TaskStateSubmitted, tt.outcome}, q.states())
			assert.True(t, q.last().Final)
			assert.Equal(t, tt.wantText, statusText(q.last()))
			assert.Len(t, q.artifacts(), tt.artifacts)
		})
	}
}

func TestStreamingExecutor(t *testing.T) {
	q := &recordingQueue{}
	exec := streamingExecutor(fastOptions(), 2*time.Second)
	require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "go"}), q))

	assert.Equal(t, []a2a.TaskState{
		a2a.TaskStateSubmitted,
		a2a.TaskStateWorking, a2a.TaskStateWorking, a2a.TaskStateWorking,
		a2a.TaskStateCompleted,
	}, q.states())

	var texts []string
	for _, ev := range q.snapshot() {
		if su, ok := ev.(*a2a.TaskStatusUpdateEvent); ok && su.Status.State == a2a.TaskStateWorking {
			texts = append(texts, statusText(su))
			assert.False(t, su.Final)
		}
	}
	assert.Equal(t, []string{"Working 1/3...", "Working 2/3...", "Working 3/3..."}, texts)

	arts := q.artifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "result.txt", arts[0].Name)
	assert.True(t, q.last().Final)
}

func TestProgressExecutor_ReportEvery(t *testing.T) {
	q := &recordingQueue{}
	exec := progressExecutor{
		canceler:     newCanceler(""),
		steps:        10,
		interval:     time.Microsecond,
		reportEvery:  5,
		accepted:     acceptedText,
		progress:     elapsedSeconds(10),
		artifactText: "payload",
		doneText:     "Done ✅",
	}
	require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "x"}), q))

	var texts []string
	for _, ev := range q.snapshot() {
		if su, ok := ev.(*a2a.TaskStatusUpdateEvent); ok {
			texts = append(texts, statusText(su))
		}
	}
	assert.Equal(t, []string{"", acceptedText, "Progress: 5/10s", "Progress: 10/10s", "Done ✅"}, texts)
}

func TestProgressExecutor_SkipsSubmittedForStoredTask(t *testing.T) {
	q := &recordingQueue{}
	req := newRequest(a2a.TextPart{Text: "again"})
	req.StoredTask = &a2a.Task{ID: req.TaskID, ContextID: req.ContextID, Status: a2a.TaskStatus{State: a2a.TaskStateWorking}}

	exec := streamingExecutor(fastOptions(), time.Millisecond)
	require.NoError(t, exec.Execute(context.Background(), req, q))
	assert.Equal(t, a2a.TaskStateWorking, q.states()[0])
}

func TestCancel_StopsRunningExecution(t *testing.T) {
	p, err := Lookup(ProfileCancel, Options{})
	require.NoError(t, err)

	q := &recordingQueue{}
	req := newRequest(a2a.TextPart{Text: "long"})

	done := make(chan error, 1)
	go func() { done <- p.Executor.Execute(context.Background(), req, q) }()

	require.Eventually(t, func() bool {
		return len(q.states()) >= 2
	}, time.Second, time.Millisecond)

	require.NoError(t, p.Executor.Cancel(context.Background(), req, q))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("execution did not stop after cancel")
	}

	last := q.last()
	assert.Equal(t, a2a.TaskStateCanceled, last.Status.State)
	assert.True(t, last.Final)
	assert.Equal(t, defaultCancelText, statusText(last))
	assert.Empty(t, q.artifacts())
}

func TestCancel_TerminalTaskIsNotCancelable(t *testing.T) {
	c := newCanceler("")
	req := newRequest()
	req.StoredTask = &a2a.Task{ID: req.TaskID, Status: a2a.TaskStatus{State: a2a.TaskStateCompleted}}

	err := c.Cancel(context.Background(), req, &recordingQueue{})
	assert.ErrorIs(t, err, a2a.ErrTaskNotCancelable)
}

func TestSleep(t *testing.T) {
	canceled := make(chan struct{})
	assert.NoError(t, sleep(context.Background(), canceled, time.Microsecond))

	close(canceled)
	assert.ErrorIs(t, sleep(context.Background(), canceled, time.Hour), errCanceled)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, make(chan struct{}), time.Hour), context.Canceled)

	assert.NoError(t, stopped("t", errCanceled))
	assert.Error(t, stopped("t", context.Canceled))
}

func TestParseTicketQuery(t *testing.T) {
	tests := []struct {
		name       string
		parts      []a2a.Part
		wantStatus string
		wantErr    bool
	}{
		{name: "defaults", parts: []a2a.Part{a2a.DataPart{Data: map[string]any{}}}, wantStatus: "open"},
		{name: "closed", parts: []a2a.Part{a2a.DataPart{Data: map[string]any{"action": "list_tickets", "status": "CLOSED"}}}, wantStatus: "closed"},
		{name: "text only", parts: []a2a.Part{a2a.TextPart{Text: "list tickets"}}, wantErr: true},
		{name: "unknown action", parts: []a2a.Part{a2a.DataPart{Data: map[string]any{"action": "delete"}}}, wantErr: true},
		{name: "bad status", parts: []a2a.Part{a2a.DataPart{Data: map[string]any{"status": "pending"}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := parseTicketQuery(a2a.NewMessage(a2a.MessageRoleUser, tt.parts...))
			if tt.wantErr {
				assert.ErrorIs(t, err, a2a.ErrInvalidParams)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, q.Status)
		})
	}
}

func TestStructuredExecutor(t *testing.T) {
	p, err := Lookup(ProfileStructured, fastOptions())
	require.NoError(t, err)

	q := &recordingQueue{}
	req := newRequest(a2a.DataPart{Data: map[string]any{"action": "list_tickets", "status": "open"}})
	require.NoError(t, p.Executor.Execute(context.Background(), req, q))

	assert.Equal(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateCompleted}, q.states())
	assert.Equal(t, "Found 2 tickets (status=open).", statusText(q.last()))

	arts := q.artifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "tickets.json", arts[0].Name)
	data, ok := arts[0].Parts[0].(a2a.DataPart)
	require.True(t, ok)
	assert.Len(t, data.Data["tickets"], 2)

	q = &recordingQueue{}
	err = p.Executor.Execute(context.Background(), newRequest(a2a.TextPart{Text: "hi"}), q)
	assert.ErrorIs(t, err, a2a.ErrInvalidParams)
	assert.Empty(t, q.snapshot())
}

func TestFilesExecutor_Bytes(t *testing.T) {
	p, err := Lookup(ProfileFiles, fastOptions())
	require.NoError(t, err)
	require.NotNil(t, p.Downloads)

	q := &recordingQueue{}
	upload := a2a.FilePart{File: a2a.FileBytes{
		FileMeta: a2a.FileMeta{Name: "note.txt", MimeType: "text/plain"},
		Bytes:    base64.StdEncoding.EncodeToString([]byte("hello")),
	}}
	require.NoError(t, p.Executor.Execute(context.Background(), newRequest(upload), q))

	assert.Equal(t, a2a.TaskStateCompleted, q.last().Status.State)
	d, ok := p.Downloads.Get(DownloadName)
	require.True(t, ok)
	assert.Equal(t, "hello\nI was updated\n", string(d.Content))

	arts := q.artifacts()
	require.Len(t, arts, 1)
	fp, ok := arts[0].Parts[0].(a2a.FilePart)
	require.True(t, ok)
	uri, ok := fp.File.(a2a.FileURI)
	require.True(t, ok)
	assert.Equal(t, "http://localhost:8000/download.txt", uri.URI)
}

func TestFilesExecutor_URI(t *testing.T) {
	src := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/input.txt" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("remote"))
	}))
	defer src.Close()

	opts := fastOptions()
	opts.FilesMode = "uri"
	p, err := Lookup(ProfileFiles, opts)
	require.NoError(t, err)

	file := func(uri string) a2a.Part {
		return a2a.FilePart{File: a2a.FileURI{FileMeta: a2a.FileMeta{Name: "input.txt", MimeType: "text/plain"}, URI: uri}}
	}

	q := &recordingQueue{}
	require.NoError(t, p.Executor.Execute(context.Background(), newRequest(file(src.URL+"/input.txt")), q))
	assert.Equal(t, a2a.TaskStateCompleted, q.last().Status.State)
	d, _ := p.Downloads.Get(DownloadName)
	assert.Equal(t, "remote\nI was updated\n", string(d.Content))

	q = &recordingQueue{}
	require.NoError(t, p.Executor.Execute(context.Background(), newRequest(file(src.URL+"/missing.txt")), q))
	assert.Equal(t, a2a.TaskStateFailed, q.last().Status.State)
	assert.Contains(t, statusText(q.last()), "HTTP 404")

	q = &recordingQueue{}
	require.NoError(t, p.Executor.Execute(context.Background(), newRequest(a2a.TextPart{Text: "no file"}), q))
	assert.Equal(t, "no file part found in message", statusText(q.last()))
}

func TestMultiTurnExecutor(t *testing.T) {
	exec := multiTurnExecutor{canceler: newCanceler(""), pause: time.Microsecond}

	q := &recordingQueue{}
	req := newRequest(a2a.TextPart{Text: "Hallo"})
	require.NoError(t, exec.Execute(context.Background(), req, q))
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateSubmitted, a2a.TaskStateWorking, a2a.TaskStateInputRequired}, q.states())
	assert.True(t, q.last().Final)
	assert.Equal(t, askName, statusText(q.last()))

	stored := &a2a.Task{ID: req.TaskID, ContextID: req.ContextID, Status: a2a.TaskStatus{State: a2a.TaskStateInputRequired}}

	q = &recordingQueue{}
	empty := newRequest(a2a.TextPart{Text: "  "})
	empty.TaskID, empty.StoredTask = req.TaskID, stored
	require.NoError(t, exec.Execute(context.Background(), empty, q))
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateInputRequired}, q.states())

	q = &recordingQueue{}
	answer := newRequest(a2a.TextPart{Text: "Ada"})
	answer.TaskID, answer.StoredTask = req.TaskID, stored
	require.NoError(t, exec.Execute(context.Background(), answer, q))
	assert.Equal(t, []a2a.TaskState{a2a.TaskStateWorking, a2a.TaskStateCompleted}, q.states())
	arts := q.artifacts()
	require.Len(t, arts, 1)
	assert.Equal(t, "greeting.txt", arts[0].Name)
	assert.Equal(t, "Hallo Ada! ✅ (Multi-Turn abgeschlossen)", MessageText(&a2a.Message{Parts: arts[0].Parts}))
}

func TestAnswerBellaVista(t *testing.T) {
	tests := []struct {
		question string
		contains string
	}{
		{"Wie sind die Öffnungszeiten vom Bella Vista?", "Mo–Do: 11:00–22:00"},
		{"Wie lautet die Adresse?", "Seestraße 12"},
		{"Wie ist die Telefonnummer?", "+49 30 1234 5678"},
		{"Kann ich einen Tisch reservieren?", "Reservierung (Bella Vista)"},
		{"Was gibt es zu essen?", "Speisekarte"},
		{"Wer bist du?", "Beispiele:"},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Contains(t, AnswerBellaVista(tt.question), tt.contains)
		})
	}
}

func TestIsFootballQuestion(t *testing.T) {
	assert.True(t, IsFootballQuestion("Wer hat die WM 2014 gewonnen?"))
	assert.True(t, IsFootballQuestion("Who won the Champions League?"))
	assert.True(t, IsFootballQuestion("Was ist Abseits?"))
	assert.False(t, IsFootballQuestion("Wie koche ich Spaghetti?"))
	assert.False(t, IsFootballQuestion("Tortilla recipe"), "tor must match whole words only")
}

func TestLanguageFromMessage(t *testing.T) {
	withLang := func(lang any) *a2a.Message {
		msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: "hi"})
		msg.Metadata = map[string]any{LanguageExtensionURI: map[string]any{"language": lang}}
		return msg
	}
	assert.Equal(t, "en", LanguageFromMessage(nil))
	assert.Equal(t, "en", LanguageFromMessage(a2a.NewMessage(a2a.MessageRoleUser)))
	assert.Equal(t, "de", LanguageFromMessage(withLang("de")))
	assert.Equal(t, "de", LanguageFromMessage(withLang("DE-at")))
	assert.Equal(t, "es", LanguageFromMessage(withLang(" es ")))
	assert.Equal(t, "en", LanguageFromMessage(withLang("fr")))
	assert.Equal(t, "en", LanguageFromMessage(withLang(42)))
}

func TestLanguageExecutor_TagsReply(t *testing.T) {
	q := &recordingQueue{}
	req := newRequest(a2a.TextPart{Text: "Wie geht's?"})
	req.Message.Metadata = map[string]any{LanguageExtensionURI: map[string]any{"language": "de"}}

	exec := languageExecutor{canceler: newCanceler(""), model: llm.Offline{}}
	require.NoError(t, exec.Execute(context.Background(), req, q))

	last := q.last()
	require.NotNil(t, last)
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
	assert.True(t, last.Final)
	require.NotNil(t, last.Status.Message)
	assert.Equal(t, []string{LanguageExtensionURI}, last.Status.Message.Extensions)
	assert.Equal(t, map[string]any{"language": "de"}, last.Status.Message.Metadata[LanguageExtensionURI])
	assert.True(t, strings.HasPrefix(statusText(last), "(offline) Hallo!"))
}

func TestFootballExecutor_ChunksAnswer(t *testing.T) {
	long := strings.Repeat("Tor! ", 100)
	model := scriptedModel{answers: []string{long}}

	q := &recordingQueue{}
	exec := footballExecutor{canceler: newCanceler(""), model: &model}
	require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "Bundesliga?"}), q))

	var chunks []*a2a.TaskArtifactUpdateEvent
	for _, ev := range q.snapshot() {
		if au, ok := ev.(*a2a.TaskArtifactUpdateEvent); ok {
			chunks = append(chunks, au)
		}
	}
	require.Len(t, chunks, 3)
	assert.False(t, chunks[0].Append)
	assert.True(t, chunks[1].Append)
	assert.True(t, chunks[2].LastChunk)
	assert.Equal(t, footballArtifactID, chunks[2].Artifact.ID)

	var joined strings.Builder
	for _, c := range chunks {
		joined.WriteString(MessageText(&a2a.Message{Parts: c.Artifact.Parts}))
	}
	assert.Equal(t, long, joined.String())
	assert.Equal(t, a2a.TaskStateCompleted, q.last().Status.State)
}

// scriptedModel returns its answers in order and records the requests.
type scriptedModel struct {
	mu       sync.Mutex
	answers  []string
	err      error
	requests []llm.Request
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Generate(_ context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	if len(m.answers) == 0 {
		return "", errors.New("no scripted answer left")
	}
	out := m.answers[0]
	m.answers = m.answers[1:]
	return out, nil
}

func fakeCards(ctx context.Context, baseURL string) (*a2a.AgentCard, error) {
	return &a2a.AgentCard{Name: baseURL, URL: baseURL}, nil
}

func TestOrchestrator_KeywordRoutingOffline(t *testing.T) {
	var delegated []string
	exec := orchestratorExecutor{
		canceler:    newCanceler(""),
		model:       llm.Offline{},
		footballURL: "http://football",
		generalURL:  "http://general",
		resolve:     fakeCards,
		delegate: func(_ context.Context, baseURL, query string) (string, error) {
			delegated = append(delegated, baseURL+"|"+query)
			return "answer from " + baseURL, nil
		},
	}

	q := &recordingQueue{}
	require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "Wer gewann die Bundesliga?"}), q))
	assert.Equal(t, []string{"http://football|Wer gewann die Bundesliga?"}, delegated)

	last := q.last()
	assert.Equal(t, a2a.TaskStateCompleted, last.Status.State)
	assert.Equal(t, "answer from http://football", statusText(last))
	assert.Equal(t, TargetFootball, last.Metadata["routedTo"])

	q = &recordingQueue{}
	require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "Was ist JSON-RPC?"}), q))
	assert.Equal(t, "answer from http://general", statusText(q.last()))
}

func TestOrchestrator_ModelRoutingAndFallback(t *testing.T) {
	model := &scriptedModel{answers: []string{
		`{"target":"general","query":"Erkläre Abseits neutral","reason":"test"}`,
		"polished answer",
	}}
	var target, query string
	exec := orchestratorExecutor{
		canceler:    newCanceler(""),
		model:       model,
		footballURL: "http://football",
		generalURL:  "http://general",
		resolve:     fakeCards,
		delegate: func(_ context.Context, baseURL, q string) (string, error) {
			target, query = baseURL, q
			return "raw", nil
		},
	}

	q := &recordingQueue{}
	require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "Abseits?"}), q))
	assert.Equal(t, "http://general", target)
	assert.Equal(t, "Erkläre Abseits neutral", query)
	assert.Equal(t, "polished answer", statusText(q.last()))
	require.Len(t, model.requests, 2)
	assert.True(t, model.requests[0].JSON)
	assert.Contains(t, model.requests[0].System, "FOOTBALL_AGENT_CARD_JSON")

	// Unusable router output falls back to keywords.
	model = &scriptedModel{answers: []string{"not json", "final"}}
	exec.model = model
	require.NoError(t, exec.Execute(context.Background(), newRequest(a2a.TextPart{Text: "Abseits?"}), &recordingQueue{}))
	assert.Equal(t, "http://football", target)
	assert.Equal(t, "Abseits?", query)
}

func TestOrchestrator_Failures(t *testing.T) {
	base := orchestratorExecutor{
		canceler:    newCanceler(""),
		model:       llm.Offline{},
		footballURL: "http://football",
		generalURL:  "http://general",
		resolve:     fakeCards,
		delegate: func(context.Context, string, string) (string, error) {
			return "", errors.New("connection refused")
		},
	}

	q := &recordingQueue{}
	require.NoError(t, base.Execute(context.Background(), newRequest(a2a.TextPart{Text: "Hallo"}), q))
	assert.Equal(t, a2a.TaskStateFailed, q.last().Status.State)
	assert.Equal(t, "Aufruf des general-Agenten fehlgeschlagen: connection refused", statusText(q.last()))

	unreachable := base
	unreachable.resolve = func(_ context.Context, baseURL string) (*a2a.AgentCard, error) {
		if baseURL == "http://general" {
			return nil, errors.New("dial tcp: refused")
		}
		return &a2a.AgentCard{Name: "football"}, nil
	}
	q = &recordingQueue{}
	require.NoError(t, unreachable.Execute(context.Background(), newRequest(a2a.TextPart{Text: "Hallo"}), q))
	assert.Equal(t, a2a.TaskStateFailed, q.last().Status.State)
	assert.True(t, strings.HasPrefix(statusText(q.last()), "Sub-Agent nicht erreichbar: "))
}

func TestVersioningProfile(t *testing.T) {
	opts := fastOptions()
	opts.Mode = config.ModeV1
	opts.Label = "v1"
	p, err := Lookup(ProfileVersioning, opts)
	require.NoError(t, err)

	assert.Equal(t, "AgentCard Versioning Demo (v1)", p.Card.Name)
	assert.Equal(t, "1.0", p.Card.ProtocolVersion)
	assert.Equal(t, "0.2.0", p.Card.Version)
	require.NotNil(t, p.ExtendedCard)
	assert.Len(t, p.ExtendedCard.Skills, 2)
	assert.Len(t, p.Card.Skills, 1)

	err = p.Executor.Execute(context.Background(), newRequest(a2a.TextPart{Text: "hi"}), &recordingQueue{})
	assert.ErrorIs(t, err, a2a.ErrUnsupportedOperation)
}

func TestSecurityProfileDeclaresBearer(t *testing.T) {
	opts := fastOptions()
	opts.Issuer = "http://localhost:9000"
	p, err := Lookup(ProfileSecurity, opts)
	require.NoError(t, err)

	assert.True(t, p.RequireAuth)
	assert.Contains(t, p.Card.SecuritySchemes, a2a.SecuritySchemeName(schemeBearer))
	assert.Contains(t, p.Card.SecuritySchemes, a2a.SecuritySchemeName(schemeOIDC))
	require.Len(t, p.Card.Security, 1)
}
