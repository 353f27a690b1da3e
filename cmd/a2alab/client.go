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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/client"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/protocol"
)

// ClientFlags are shared by every command that talks to an agent.
type ClientFlags struct {
	URL             string   `help:"Agent base URL." env:"A2A_BASE_URL" default:"http://localhost:8001"`
	Transport       string   `help:"Force a transport: jsonrpc, rest or grpc."`
	GRPCAddr        string   `name:"grpc-addr" help:"gRPC address used when the agent card is unreachable."`
	Auth            bool     `help:"Authenticate with the client credentials flow (AUTH_* env)."`
	Token           string   `help:"Static bearer token." env:"A2A_TOKEN"`
	ProtocolVersion string   `name:"protocol-version" help:"A2A-Version header value."`
	Extensions      []string `name:"extension" help:"Extension URI to request, repeatable."`
}

// tokenSource returns the bearer token source selected by the flags, or
// nil for anonymous calls.
func (f ClientFlags) tokenSource() (auth.TokenSource, error) {
	switch {
	case f.Token != "":
		return auth.StaticToken(f.Token), nil
	case f.Auth:
		creds := config.ClientCredentialsFromEnv()
		if err := creds.Validate(); err != nil {
			return nil, err
		}
		return auth.NewClientCredentialsSource(creds, nil), nil
	}
	return nil, nil
}

func (f ClientFlags) options(extensions ...string) (client.Options, error) {
	tokens, err := f.tokenSource()
	if err != nil {
		return client.Options{}, err
	}
	return client.Options{
		Transport:       f.Transport,
		GRPCAddr:        f.GRPCAddr,
		Token:           tokens,
		ProtocolVersion: f.ProtocolVersion,
		Extensions:      append(append([]string(nil), f.Extensions...), extensions...),
	}, nil
}

func (f ClientFlags) connect(ctx context.Context, extensions ...string) (*client.Client, error) {
	opts, err := f.options(extensions...)
	if err != nil {
		return nil, err
	}
	return client.Connect(ctx, f.URL, opts)
}

// historyLength maps a negative flag value to "not requested".
func historyLength(n int) *int {
	if n < 0 {
		return nil
	}
	return &n
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResult prints the reply of a send: a task or a direct message.
func printResult(w io.Writer, result a2a.Event) {
	switch r := result.(type) {
	case *a2a.Task:
		client.RenderTask(w, r)
	default:
		client.RenderEvent(w, result)
	}
}

// SendCmd sends one message and prints the reply.
type SendCmd struct {
	ClientFlags  `embed:""`
	MessageFlags `embed:""`

	Blocking      bool `default:"true" negatable:"" help:"Wait for the task to settle."`
	HistoryLength int  `name:"history-length" default:"-1" help:"Messages of history to return (-1 for the server default)."`
	JSON          bool `help:"Print the raw result as JSON."`
}

func (c *SendCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *SendCmd) run(ctx context.Context, w io.Writer) error {
	msg, err := c.build()
	if err != nil {
		return err
	}
	cl, err := c.connect(ctx, c.extensions()...)
	if err != nil {
		return err
	}
	defer cl.Close()

	blocking := c.Blocking
	result, err := cl.Send(ctx, msg, client.SendConfig{
		Blocking:      &blocking,
		HistoryLength: historyLength(c.HistoryLength),
	})
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(w, result)
	}
	printResult(w, result)
	return nil
}

// StreamCmd sends one message and prints every event.
type StreamCmd struct {
	ClientFlags  `embed:""`
	MessageFlags `embed:""`
}

func (c *StreamCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *StreamCmd) run(ctx context.Context, w io.Writer) error {
	msg, err := c.build()
	if err != nil {
		return err
	}
	cl, err := c.connect(ctx, c.extensions()...)
	if err != nil {
		return err
	}
	defer cl.Close()

	return renderStream(w, cl.Stream(ctx, msg, client.SendConfig{}))
}

// renderStream prints events as they arrive and the folded answer last.
func renderStream(w io.Writer, events iter.Seq2[a2a.Event, error]) error {
	var answer client.Answer
	for event, err := range events {
		if err != nil {
			return err
		}
		client.RenderEvent(w, event)
		answer.Add(event)
	}
	if text := answer.Text(); text != "" {
		fmt.Fprintf(w, "\nanswer: %s\n", text)
	}
	return nil
}

// PollCmd sends non-blocking and polls the task until it settles.
type PollCmd struct {
	ClientFlags  `embed:""`
	MessageFlags `embed:""`

	Interval time.Duration `default:"1s" help:"Polling interval."`
}

func (c *PollCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *PollCmd) run(ctx context.Context, w io.Writer) error {
	msg, err := c.build()
	if err != nil {
		return err
	}
	cl, err := c.connect(ctx, c.extensions()...)
	if err != nil {
		return err
	}
	defer cl.Close()

	blocking := false
	result, err := cl.Send(ctx, msg, client.SendConfig{Blocking: &blocking})
	if err != nil {
		return err
	}
	task, ok := result.(*a2a.Task)
	if !ok {
		printResult(w, result)
		return nil
	}
	fmt.Fprintf(w, "created task %s (%s)\n", task.ID, task.Status.State)

	var last *a2a.Task
	for polled, err := range cl.Poll(ctx, task.ID, c.Interval) {
		if err != nil {
			return err
		}
		client.RenderTaskLine(w, polled)
		last = polled
	}
	if last != nil {
		fmt.Fprintln(w)
		client.RenderTask(w, last)
	}
	return nil
}

// GetCmd fetches one task.
type GetCmd struct {
	ClientFlags `embed:""`

	TaskID        string `arg:"" name:"task-id" help:"Task to fetch."`
	HistoryLength int    `name:"history-length" default:"-1" help:"Messages of history to return (-1 for all)."`
	JSON          bool   `help:"Print the raw task as JSON."`
}

func (c *GetCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *GetCmd) run(ctx context.Context, w io.Writer) error {
	cl, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	task, err := cl.Get(ctx, a2a.TaskID(c.TaskID), historyLength(c.HistoryLength))
	if err != nil {
		return err
	}
	if c.JSON {
		return printJSON(w, task)
	}
	client.RenderTask(w, task)
	return nil
}

// CancelCmd cancels one task.
type CancelCmd struct {
	ClientFlags `embed:""`

	TaskID string `arg:"" name:"task-id" help:"Task to cancel."`
}

func (c *CancelCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *CancelCmd) run(ctx context.Context, w io.Writer) error {
	cl, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	task, err := cl.Cancel(ctx, a2a.TaskID(c.TaskID))
	if err != nil {
		return err
	}
	client.RenderTask(w, task)
	return nil
}

// ResubscribeCmd reattaches to the events of a running task.
type ResubscribeCmd struct {
	ClientFlags `embed:""`

	TaskID string `arg:"" name:"task-id" help:"Task to follow."`
}

func (c *ResubscribeCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *ResubscribeCmd) run(ctx context.Context, w io.Writer) error {
	cl, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	return renderStream(w, cl.Resubscribe(ctx, a2a.TaskID(c.TaskID)))
}

// ListCmd lists tasks page by page.
type ListCmd struct {
	ClientFlags `embed:""`

	ContextID        string `name:"context-id" help:"Only tasks of this context."`
	Status           string `help:"Only tasks in this state."`
	PageSize         int    `name:"page-size" help:"Tasks per page (1-200)."`
	PageToken        string `name:"page-token" help:"Token of the page to fetch."`
	IncludeArtifacts bool   `name:"include-artifacts" help:"Include artifacts in the listing."`
	All              bool   `help:"Follow page tokens until the end."`
}

func (c *ListCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *ListCmd) params() client.ListParams {
	return client.ListParams{
		ContextID:        c.ContextID,
		Status:           c.Status,
		IncludeArtifacts: c.IncludeArtifacts,
		PageSize:         c.PageSize,
		PageToken:        c.PageToken,
	}
}

func (c *ListCmd) run(ctx context.Context, w io.Writer) error {
	cl, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	if c.All {
		tasks, err := cl.ListAll(ctx, c.params())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "tasks=%d\n", len(tasks))
		for _, task := range tasks {
			client.RenderTaskLine(w, task)
		}
		return nil
	}

	page, err := cl.List(ctx, c.params())
	if err != nil {
		return err
	}
	renderPage(w, page)
	return nil
}

func renderPage(w io.Writer, page protocol.ListResponse) {
	fmt.Fprintf(w, "tasks=%d\n", len(page.Tasks))
	for _, task := range page.Tasks {
		client.RenderTaskLine(w, task)
	}
	if page.NextPageToken != "" {
		fmt.Fprintf(w, "nextPageToken=%s\n", page.NextPageToken)
	}
}

// PushSetCmd registers a webhook for a task.
type PushSetCmd struct {
	ClientFlags `embed:""`

	TaskID       string `name:"task-id" required:"" help:"Task to watch."`
	Webhook      string `default:"http://localhost:3000/webhook" help:"Webhook URL."`
	WebhookToken string `name:"webhook-token" help:"Token echoed in the notification header."`
	ID           string `name:"config-id" help:"Config id (generated when empty)."`
}

func (c *PushSetCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *PushSetCmd) run(ctx context.Context, w io.Writer) error {
	cl, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	stored, err := cl.SetPushConfig(ctx, protocol.PushConfig{
		ID:     c.ID,
		TaskID: c.TaskID,
		URL:    c.Webhook,
		Token:  c.WebhookToken,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "push config %s: task=%s url=%s\n", stored.ID, stored.TaskID, stored.URL)
	return nil
}

// CardCmd prints the public or the extended agent card.
type CardCmd struct {
	ClientFlags `embed:""`

	Extended bool `help:"Fetch the authenticated extended card."`
}

func (c *CardCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *CardCmd) run(ctx context.Context, w io.Writer) error {
	opts, err := c.options()
	if err != nil {
		return err
	}
	if !c.Extended {
		card, err := client.Resolve(ctx, c.URL, opts)
		if err != nil {
			return err
		}
		return printJSON(w, card)
	}

	cl, err := client.Connect(ctx, c.URL, opts)
	if err != nil {
		return err
	}
	defer cl.Close()

	card, err := cl.ExtendedCard(ctx, c.ProtocolVersion)
	if err != nil {
		return err
	}
	return printJSON(w, card)
}

// VersionChkCmd applies the client version policy to one of the two
// versioning demo servers.
type VersionChkCmd struct {
	Target          string `default:"legacy" enum:"legacy,v1" help:"Server to check: legacy or v1."`
	ProtocolVersion string `name:"protocol-version" default:"0.3" enum:"0.3,1.0" help:"A2A-Version to request."`
	MinAgentVersion string `name:"min-agent-version" default:"0.2.0" help:"Lowest agent version the client talks to."`
	LegacyURL       string `name:"legacy-url" env:"A2A_BASE_URL" default:"http://localhost:8001" help:"Base URL of the legacy server."`
	V1URL           string `name:"v1-url" env:"A2A_BASE_URL_V1" default:"http://localhost:8002" help:"Base URL of the v1 server."`
	Token           string `help:"Bearer token for the extended card." env:"A2A_TOKEN" default:"demo-token"`
	Auth            bool   `help:"Fetch the token with the client credentials flow instead."`
}

func (c *VersionChkCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *VersionChkCmd) run(ctx context.Context, w io.Writer) error {
	baseURL := c.LegacyURL
	if c.Target == config.ModeV1 {
		baseURL = c.V1URL
	}

	flags := ClientFlags{Token: c.Token}
	if c.Auth {
		flags = ClientFlags{Auth: true}
	}
	tokens, err := flags.tokenSource()
	if err != nil {
		return err
	}

	report, err := client.VersionCheck(ctx, c.Target, baseURL, c.ProtocolVersion, c.MinAgentVersion, tokens, nil)
	if err != nil && !errors.Is(err, client.ErrBlocked) {
		return err
	}
	// a blocked agent is a reported outcome, not a command failure
	fmt.Fprintln(w, report)
	return nil
}
