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
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/protocol"
	"github.com/kadirpekel/a2alab/pkg/versioning"
)

// grpcTransport delegates to the a2a-go client with its gRPC binding.
type grpcTransport struct {
	client *a2aclient.Client
}

func newGRPCTransport(ctx context.Context, card *a2a.AgentCard, addr string, opts Options) (*grpcTransport, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(headerUnaryInterceptor(opts)),
		grpc.WithStreamInterceptor(headerStreamInterceptor(opts)),
	}
	if opts.Token != nil {
		dialOpts = append(dialOpts, grpc.WithPerRPCCredentials(auth.PerRPCCredentials{Source: opts.Token}))
	}

	endpoints := []a2a.AgentInterface{{Transport: a2a.TransportProtocolGRPC, URL: addr}}
	c, err := a2aclient.NewFromEndpoints(ctx, endpoints, a2aclient.WithGRPCTransport(dialOpts...))
	if err != nil {
		name := addr
		if card != nil {
			name = card.Name
		}
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", name, err)
	}
	return &grpcTransport{client: c}, nil
}

func outgoingHeaders(ctx context.Context, opts Options) context.Context {
	var kv []string
	if opts.ProtocolVersion != "" {
		kv = append(kv, strings.ToLower(versioning.HeaderName), opts.ProtocolVersion)
	}
	if len(opts.Extensions) > 0 {
		kv = append(kv, strings.ToLower(protocol.ExtensionsHeader), strings.Join(opts.Extensions, ","))
	}
	if len(kv) == 0 {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

func headerUnaryInterceptor(opts Options) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, callOpts ...grpc.CallOption) error {
		return invoker(outgoingHeaders(ctx, opts), method, req, reply, cc, callOpts...)
	}
}

func headerStreamInterceptor(opts Options) grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, callOpts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(outgoingHeaders(ctx, opts), desc, cc, method, callOpts...)
	}
}

func sendParams(msg *a2a.Message, cfg SendConfig) *a2a.MessageSendParams {
	params := &a2a.MessageSendParams{Message: msg, Metadata: cfg.Metadata}
	if cfg.HistoryLength != nil || len(cfg.AcceptedOutputModes) > 0 {
		params.Config = &a2a.MessageSendConfig{
			HistoryLength:       cfg.HistoryLength,
			AcceptedOutputModes: cfg.AcceptedOutputModes,
		}
	}
	return params
}

// SendMessage is always blocking over gRPC.
func (t *grpcTransport) SendMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) (a2a.Event, error) {
	result, err := t.client.SendMessage(ctx, sendParams(msg, cfg))
	if err != nil {
		return nil, err
	}
	switch v := result.(type) {
	case *a2a.Task:
		return v, nil
	case *a2a.Message:
		return v, nil
	}
	return nil, fmt.Errorf("unexpected send result %T", result)
}

func (t *grpcTransport) SendStreamingMessage(ctx context.Context, msg *a2a.Message, cfg SendConfig) iter.Seq2[a2a.Event, error] {
	return t.client.SendStreamingMessage(ctx, sendParams(msg, cfg))
}

func (t *grpcTransport) GetTask(ctx context.Context, id a2a.TaskID, historyLength *int) (*a2a.Task, error) {
	return t.client.GetTask(ctx, &a2a.TaskQueryParams{ID: id, HistoryLength: historyLength})
}

func (t *grpcTransport) CancelTask(ctx context.Context, id a2a.TaskID) (*a2a.Task, error) {
	return t.client.CancelTask(ctx, &a2a.TaskIDParams{ID: id})
}

func (t *grpcTransport) Resubscribe(ctx context.Context, id a2a.TaskID) iter.Seq2[a2a.Event, error] {
	return t.client.ResubscribeToTask(ctx, &a2a.TaskIDParams{ID: id})
}

func (t *grpcTransport) Close() error {
	return t.client.Destroy()
}
