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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/client"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/protocol"
)

// DemoCmd groups the scripted client walkthroughs.
type DemoCmd struct {
	List DemoListCmd `cmd:"" help:"Create three tasks, then page and filter the task list."`
	Auth DemoAuthCmd `cmd:"" help:"Call a protected agent without, then with a token."`
}

// DemoListCmd drives the listtasks profile.
type DemoListCmd struct {
	ClientFlags `embed:""`

	Tasks  int           `default:"3" help:"Tasks to create."`
	Settle time.Duration `default:"1s" help:"Wait before filtering working tasks."`
	Wait   time.Duration `default:"35s" help:"Wait before filtering completed tasks."`
}

func (c *DemoListCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, os.Stdout)
}

func (c *DemoListCmd) run(ctx context.Context, w io.Writer) error {
	cl, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	contextID := uuid.NewString()
	fmt.Fprintf(w, "contextId (shared) = %s\n", contextID)

	created := make([]*a2a.Task, c.Tasks)
	g, gctx := errgroup.WithContext(ctx)
	for i := range created {
		g.Go(func() error {
			msg := &a2a.Message{
				ID:        uuid.NewString(),
				Role:      a2a.MessageRoleUser,
				ContextID: contextID,
				Parts:     []a2a.Part{a2a.TextPart{Text: fmt.Sprintf("Create job #%d", i+1)}},
			}
			blocking := false
			result, err := cl.Send(gctx, msg, client.SendConfig{Blocking: &blocking})
			if err != nil {
				return fmt.Errorf("create job #%d: %w", i+1, err)
			}
			task, ok := result.(*a2a.Task)
			if !ok {
				return fmt.Errorf("create job #%d: agent answered %T, want a task", i+1, result)
			}
			created[i] = task
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, task := range created {
		fmt.Fprintf(w, "created[%d]: taskId=%s state=%s\n", i+1, task.ID, task.Status.State)
	}

	params := client.ListParams{ContextID: contextID, PageSize: 2}
	for page := 1; ; page++ {
		res, err := cl.List(ctx, params)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nLIST (page %d)\n", page)
		renderPage(w, res)
		if res.NextPageToken == "" {
			break
		}
		params.PageToken = res.NextPageToken
	}

	if err := sleep(ctx, c.Settle); err != nil {
		return err
	}
	working, err := cl.List(ctx, client.ListParams{ContextID: contextID, Status: string(a2a.TaskStateWorking), PageSize: 50})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nLIST (filter status=working)")
	renderPage(w, working)

	fmt.Fprintf(w, "\nwaiting %s so tasks can complete...\n", c.Wait)
	if err := sleep(ctx, c.Wait); err != nil {
		return err
	}
	completed, err := cl.List(ctx, client.ListParams{
		ContextID:        contextID,
		Status:           string(a2a.TaskStateCompleted),
		IncludeArtifacts: true,
		PageSize:         50,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "\nLIST (filter status=completed, includeArtifacts=true)")
	renderPage(w, completed)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// DemoAuthCmd drives the security profile.
type DemoAuthCmd struct {
	URL  string `help:"Agent base URL." env:"A2A_BASE_URL" default:"http://localhost:8001"`
	Text string `short:"m" default:"Hello from streaming demo!" help:"Text to send."`
}

func (c *DemoAuthCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, config.ClientCredentialsFromEnv(), os.Stdout)
}

func (c *DemoAuthCmd) run(ctx context.Context, creds config.ClientCredentials, w io.Writer) error {
	status, body, err := c.unauthenticated(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "WITHOUT TOKEN -> http=%d\n", status)
	if len(body) > 300 {
		body = body[:300]
	}
	fmt.Fprintln(w, body)

	fmt.Fprintln(w, "\n--- NOW WITH TOKEN ---")
	if err := creds.Validate(); err != nil {
		return err
	}
	opts := client.Options{
		Transport: config.TransportREST,
		Token:     auth.NewClientCredentialsSource(creds, nil),
	}

	cl, err := client.Connect(ctx, c.URL, opts)
	if err != nil {
		return err
	}
	defer cl.Close()

	msg := &a2a.Message{ID: uuid.NewString(), Role: a2a.MessageRoleUser, Parts: []a2a.Part{a2a.TextPart{Text: c.Text}}}
	return renderStream(w, cl.Stream(ctx, msg, client.SendConfig{}))
}

// unauthenticated posts a stream request without a token and returns the
// raw answer.
func (c *DemoAuthCmd) unauthenticated(ctx context.Context) (int, string, error) {
	payload, err := json.Marshal(protocol.SendRequest{Message: &a2a.Message{
		ID:    uuid.NewString(),
		Role:  a2a.MessageRoleUser,
		Parts: []a2a.Part{a2a.TextPart{Text: c.Text}},
	}})
	if err != nil {
		return 0, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.URL, "/")+protocol.PathStream, bytes.NewReader(payload))
	if err != nil {
		return 0, "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpclient.New(httpclient.WithTimeout(30*time.Second), httpclient.WithMaxRetries(0)).Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, string(body), nil
}
