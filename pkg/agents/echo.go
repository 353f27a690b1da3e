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
	"log/slog"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/config"
)

// echoExecutor answers every message with a direct message. No task is
// created.
type echoExecutor struct{}

func (echoExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	text := MessageText(reqCtx.Message)
	slog.Debug("Echo", "context_id", reqCtx.ContextID, "input", text)

	reply := a2a.NewMessage(a2a.MessageRoleAgent, a2a.TextPart{Text: "Echo: " + text})
	reply.ContextID = reqCtx.ContextID
	return queue.Write(ctx, reply)
}

func (echoExecutor) Cancel(context.Context, *a2asrv.RequestContext, eventqueue.Queue) error {
	return a2a.ErrTaskNotCancelable
}

func newEcho(opts Options) (*Profile, error) {
	card := newCard("Minimal Echo Agent", "A simple echo service", opts.version("0.1.0"), false)
	card.Skills = []a2a.AgentSkill{{
		ID:          "echo",
		Name:        "Echo",
		Description: "Replies with the text it received.",
		Tags:        []string{"echo", "demo"},
		Examples:    []string{"Hello A2A"},
	}}
	return &Profile{
		Name:               ProfileEcho,
		Card:               card,
		Executor:           echoExecutor{},
		PreferredTransport: config.TransportJSONRPC,
	}, nil
}

// newEchoV2 is the echo agent of the transports demo. The server lists
// every enabled transport in its card.
func newEchoV2(opts Options) (*Profile, error) {
	card := newCard("Echo Agent", "A simple echo service used in transport examples.", opts.version("0.2.0"), false)
	return &Profile{
		Name:               ProfileEchoV2,
		Card:               card,
		Executor:           echoExecutor{},
		PreferredTransport: config.TransportJSONRPC,
	}, nil
}

var _ a2asrv.AgentExecutor = echoExecutor{}
