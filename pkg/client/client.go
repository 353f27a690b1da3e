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

// Package client talks to A2A agents over REST, JSON-RPC or gRPC.
//
// Connect resolves the agent card and picks a transport; the returned
// Client exposes the A2A operations independent of the wire.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/protocol"
	"github.com/kadirpekel/a2alab/pkg/versioning"
)

// ErrBlocked is returned by VersionCheck for agents below the minimum.
var ErrBlocked = versioning.ErrBlocked

// ErrNotSupported is returned for operations the selected transport lacks.
var ErrNotSupported = errors.New("operation not supported by transport")

// Options configure a connection.
type Options struct {
	// Transport forces jsonrpc, rest or grpc. Empty follows the card.
	Transport string
	// GRPCAddr is used when the card cannot be fetched.
	GRPCAddr        string
	Token           auth.TokenSource
	ProtocolVersion string
	Extensions      []string
	HTTPClient      *httpclient.Client
}

func (o Options) httpClient() *httpclient.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	// Streams stay open for minutes; no overall timeout.
	return httpclient.New(httpclient.WithHTTPClient(&http.Client{}), httpclient.WithMaxRetries(1))
}

// apply sets the auth, version and extension headers on req.
func (o Options) apply(req *http.Request) error {
	if o.Token != nil {
		token, err := o.Token.Token(req.Context())
		if err != nil {
			return fmt.Errorf("failed to get token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	if o.ProtocolVersion != "" {
		req.Header.Set(versioning.HeaderName, o.ProtocolVersion)
	}
	if len(o.Extensions) > 0 {
		req.Header.Set(protocol.ExtensionsHeader, strings.Join(o.Extensions, ","))
	}
	return nil
}

// SendConfig controls a single send.
type SendConfig struct {
	// Blocking defaults to true.
	Blocking            *bool
	HistoryLength       *int
	AcceptedOutputModes []string
	Metadata            map[string]any
}

func (c SendConfig) request(msg *a2a.Message) protocol.SendRequest {
	req := protocol.SendRequest{Message: msg, Metadata: c.Metadata}
	if c.Blocking != nil || c.HistoryLength != nil || len(c.AcceptedOutputModes) > 0 {
		req.Configuration = &protocol.SendConfiguration{
			Blocking:            c.Blocking,
			HistoryLength:       c.HistoryLength,
			AcceptedOutputModes: c.AcceptedOutputModes,
		}
	}
	return req
}

// Transport is one A2A wire binding.
type Transport interface {
	SendMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) (a2a.Event, error)
	SendStreamingMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) iter.Seq2[a2a.Event, error]
	GetTask(ctx context.Context, id a2a.TaskID, historyLength *int) (*a2a.Task, error)
	CancelTask(ctx context.Context, id a2a.TaskID) (*a2a.Task, error)
	Resubscribe(ctx context.Context, id a2a.TaskID) iter.Seq2[a2a.Event, error]
	Close() error
}

// ListParams filter a task listing.
type ListParams struct {
	ContextID        string
	Status           string
	IncludeArtifacts bool
	PageSize         int
	PageToken        string
}

// Lister is implemented by transports that can list tasks.
type Lister interface {
	ListTasks(ctx context.Context, params ListParams) (protocol.ListResponse, error)
}

// PushConfigurer is implemented by transports that manage push configs.
type PushConfigurer interface {
	SetPushConfig(ctx context.Context, cfg protocol.PushConfig) (protocol.PushConfig, error)
	ListPushConfigs(ctx context.Context, taskID a2a.TaskID) ([]protocol.PushConfig, error)
}

// Client is a connection to one agent.
type Client struct {
	card      *a2a.AgentCard
	baseURL   string
	transport Transport
	name      string
	opts      Options
}

// Resolve fetches the public agent card of baseURL.
func Resolve(ctx context.Context, baseURL string, opts Options) (*a2a.AgentCard, error) {
	resolver := agentcard.NewResolver(opts.httpClient().HTTPClient())
	card, err := resolver.Resolve(ctx, strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent card from %s: %w", baseURL, err)
	}
	return card, nil
}

// Connect resolves the card of baseURL and opens a transport to it.
func Connect(ctx context.Context, baseURL string, opts Options) (*Client, error) {
	card, err := Resolve(ctx, baseURL, opts)
	if err != nil {
		if opts.GRPCAddr == "" {
			return nil, err
		}
		slog.Warn("Card unavailable, using gRPC address", "grpc_addr", opts.GRPCAddr, "error", err)
		t, gerr := newGRPCTransport(ctx, nil, opts.GRPCAddr, opts)
		if gerr != nil {
			return nil, gerr
		}
		return &Client{baseURL: baseURL, transport: t, name: config.TransportGRPC, opts: opts}, nil
	}
	return ConnectCard(ctx, card, baseURL, opts)
}

// ConnectCard opens a transport to an already resolved card.
func ConnectCard(ctx context.Context, card *a2a.AgentCard, baseURL string, opts Options) (*Client, error) {
	name, url, err := selectTransport(card, opts)
	if err != nil {
		return nil, err
	}

	var t Transport
	switch name {
	case config.TransportREST:
		t = newRESTTransport(url, opts)
	case config.TransportJSONRPC:
		t = newJSONRPCTransport(url, opts)
	case config.TransportGRPC:
		if opts.GRPCAddr != "" {
			url = opts.GRPCAddr
		}
		t, err = newGRPCTransport(ctx, card, url, opts)
		if err != nil {
			return nil, err
		}
	}
	slog.Debug("Connected", "agent", card.Name, "transport", name, "url", url)
	return &Client{card: card, baseURL: baseURL, transport: t, name: name, opts: opts}, nil
}

func transportName(p a2a.TransportProtocol) string {
	switch p {
	case a2a.TransportProtocolHTTPJSON:
		return config.TransportREST
	case a2a.TransportProtocolGRPC:
		return config.TransportGRPC
	case a2a.TransportProtocolJSONRPC, "":
		return config.TransportJSONRPC
	}
	return ""
}

// selectTransport picks the forced transport, else the card's preferred
// one, else the first supported additional interface.
func selectTransport(card *a2a.AgentCard, opts Options) (string, string, error) {
	type iface struct{ name, url string }
	ifaces := []iface{{transportName(card.PreferredTransport), card.URL}}
	for _, ai := range card.AdditionalInterfaces {
		ifaces = append(ifaces, iface{transportName(ai.Transport), ai.URL})
	}

	if opts.Transport != "" {
		for _, i := range ifaces {
			if i.name == opts.Transport {
				return i.name, i.url, nil
			}
		}
		if opts.Transport == config.TransportGRPC && opts.GRPCAddr != "" {
			return config.TransportGRPC, opts.GRPCAddr, nil
		}
		return "", "", fmt.Errorf("agent %q does not offer transport %s", card.Name, opts.Transport)
	}
	for _, i := range ifaces {
		if i.name != "" {
			return i.name, i.url, nil
		}
	}
	return "", "", fmt.Errorf("agent %q offers no supported transport", card.Name)
}

// Card returns the resolved card; nil for gRPC-only connections.
func (c *Client) Card() *a2a.AgentCard { return c.card }

// TransportName returns the selected transport.
func (c *Client) TransportName() string { return c.name }

func (c *Client) Send(ctx context.Context, msg *a2a.Message, cfg SendConfig) (a2a.Event, error) {
	return c.transport.SendMessage(ctx, msg, cfg)
}

func (c *Client) Stream(ctx context.Context, msg *a2a.Message, cfg SendConfig) iter.Seq2[a2a.Event, error] {
	return c.transport.SendStreamingMessage(ctx, msg, cfg)
}

func (c *Client) Get(ctx context.Context, id a2a.TaskID, historyLength *int) (*a2a.Task, error) {
	return c.transport.GetTask(ctx, id, historyLength)
}

func (c *Client) Cancel(ctx context.Context, id a2a.TaskID) (*a2a.Task, error) {
	return c.transport.CancelTask(ctx, id)
}

func (c *Client) Resubscribe(ctx context.Context, id a2a.TaskID) iter.Seq2[a2a.Event, error] {
	return c.transport.Resubscribe(ctx, id)
}

// Poll gets the task every interval and yields it whenever its state
// changes. It stops after a terminal or input-required state.
func (c *Client) Poll(ctx context.Context, id a2a.TaskID, interval time.Duration) iter.Seq2[*a2a.Task, error] {
	return func(yield func(*a2a.Task, error) bool) {
		var last a2a.TaskState
		for {
			task, err := c.transport.GetTask(ctx, id, nil)
			if err != nil {
				yield(nil, err)
				return
			}
			if task.Status.State != last {
				last = task.Status.State
				if !yield(task, nil) {
					return
				}
			}
			if last.Terminal() || last == a2a.TaskStateInputRequired {
				return
			}

			timer := time.NewTimer(interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				yield(nil, ctx.Err())
				return
			case <-timer.C:
			}
		}
	}
}

// List returns one page of tasks.
func (c *Client) List(ctx context.Context, params ListParams) (protocol.ListResponse, error) {
	lister, ok := c.transport.(Lister)
	if !ok {
		return protocol.ListResponse{}, fmt.Errorf("list tasks over %s: %w", c.name, ErrNotSupported)
	}
	return lister.ListTasks(ctx, params)
}

// ListAll follows page tokens until the listing is exhausted.
func (c *Client) ListAll(ctx context.Context, params ListParams) ([]*a2a.Task, error) {
	var all []*a2a.Task
	for {
		page, err := c.List(ctx, params)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Tasks...)
		if page.NextPageToken == "" {
			return all, nil
		}
		params.PageToken = page.NextPageToken
	}
}

func (c *Client) SetPushConfig(ctx context.Context, cfg protocol.PushConfig) (protocol.PushConfig, error) {
	pc, ok := c.transport.(PushConfigurer)
	if !ok {
		return protocol.PushConfig{}, fmt.Errorf("push config over %s: %w", c.name, ErrNotSupported)
	}
	return pc.SetPushConfig(ctx, cfg)
}

func (c *Client) ListPushConfigs(ctx context.Context, taskID a2a.TaskID) ([]protocol.PushConfig, error) {
	pc, ok := c.transport.(PushConfigurer)
	if !ok {
		return nil, fmt.Errorf("push config over %s: %w", c.name, ErrNotSupported)
	}
	return pc.ListPushConfigs(ctx, taskID)
}

// ExtendedCard fetches the authenticated card at the path matching
// protocolVersion.
func (c *Client) ExtendedCard(ctx context.Context, protocolVersion string) (*a2a.AgentCard, error) {
	opts := c.opts
	if protocolVersion != "" {
		opts.ProtocolVersion = protocolVersion
	}
	resp, err := getExtendedCard(ctx, c.baseURL, opts)
	if err != nil {
		return nil, err
	}
	if resp.status != http.StatusOK {
		return nil, responseError(resp.status, resp.contentType, resp.body)
	}
	var card a2a.AgentCard
	if err := jsonUnmarshal(resp.body, &card); err != nil {
		return nil, fmt.Errorf("failed to decode extended card: %w", err)
	}
	return &card, nil
}

func (c *Client) Close() error {
	return c.transport.Close()
}

type cardResponse struct {
	status      int
	contentType string
	body        []byte
}

// getExtendedCard GETs the extended card path for opts.ProtocolVersion and
// returns the raw answer.
func getExtendedCard(ctx context.Context, baseURL string, opts Options) (cardResponse, error) {
	version := opts.ProtocolVersion
	if version == "" {
		version = versioning.Version03
	}
	path, err := versioning.ExtendedCardPath(version)
	if err != nil {
		return cardResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return cardResponse{}, err
	}
	if err := opts.apply(req); err != nil {
		return cardResponse{}, err
	}
	req.Header.Set(versioning.HeaderName, version)
	req.Header.Set("Accept", "application/json")

	resp, err := opts.httpClient().Do(req)
	if err != nil {
		return cardResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return cardResponse{}, fmt.Errorf("failed to read response: %w", err)
	}
	return cardResponse{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: body}, nil
}
