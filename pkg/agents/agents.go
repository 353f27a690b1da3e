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

// Package agents contains the demo agents served by a2alab.
//
// Every agent is a Profile: an a2asrv.AgentExecutor plus the agent card
// that describes it. Executors follow one event discipline:
//
//   - a new task first emits a submitted status update
//   - progress is reported as working status updates with an agent message
//   - artifacts are emitted as artifact updates and always carry a name
//   - terminal and input-required status updates are marked Final
//
// Waits inside executors are divided by Options.TimeScale so tests can run
// the same flows in milliseconds.
package agents

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"

	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/fileserver"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/llm"
)

// Profile names.
const (
	ProfileEcho         = "echo"
	ProfileEchoV2       = "echo-v2"
	ProfileLifecycle    = "lifecycle"
	ProfileConfig       = "configuration"
	ProfileStreaming    = "streaming"
	ProfilePolling      = "polling"
	ProfilePush         = "push"
	ProfileResubscribe  = "resubscribe"
	ProfileCancel       = "cancel"
	ProfileListTasks    = "listtasks"
	ProfileStructured   = "structured"
	ProfileFiles        = "files"
	ProfileMultiTurn    = "multiturn"
	ProfileBellaVista   = "bellavista"
	ProfileSecurity     = "security"
	ProfileFootball     = "football"
	ProfileGeneral      = "general"
	ProfileOrchestrator = "orchestrator"
	ProfileVersioning   = "versioning"
	ProfileExtendedCard = "extendedcard"
	ProfileLanguage     = "language"
)

// Profile is one servable agent.
type Profile struct {
	Name     string
	Card     *a2a.AgentCard
	Executor a2asrv.AgentExecutor

	// ExtendedCard is served to authenticated callers when set.
	ExtendedCard *a2a.AgentCard

	// PreferredTransport is a config transport name (jsonrpc, rest, grpc).
	PreferredTransport string

	// RequireAuth forces bearer authentication regardless of config.
	RequireAuth bool

	// Downloads holds files produced by the agent, served at /download.txt.
	Downloads *fileserver.Downloads
}

// Options parameterize Lookup.
type Options struct {
	Version   string
	Label     string
	Delay     time.Duration
	Outcome   string
	FilesMode string

	// BaseURL is the public URL of the server hosting the agent.
	BaseURL string

	FootballURL string
	GeneralURL  string

	// Mode is the versioning policy mode (legacy or v1).
	Mode string

	// Issuer is the auth issuer advertised on the security card.
	Issuer string

	Model      llm.Model
	HTTPClient *httpclient.Client

	// TimeScale divides every simulated wait. Zero means 1.
	TimeScale float64
}

// OptionsFromConfig builds Options from a loaded configuration.
func OptionsFromConfig(cfg *config.Config, model llm.Model) Options {
	return Options{
		Version:     cfg.Agent.Version,
		Label:       cfg.Agent.Label,
		Delay:       cfg.Agent.Delay,
		Outcome:     cfg.Agent.Outcome,
		FilesMode:   cfg.Agent.FilesMode,
		BaseURL:     cfg.Server.BaseURL,
		FootballURL: cfg.Agent.FootballURL,
		GeneralURL:  cfg.Agent.GeneralURL,
		Mode:        cfg.Server.Versioning.Mode,
		Issuer:      cfg.Server.Auth.Issuer,
		Model:       model,
		TimeScale:   cfg.Agent.TimeScale,
	}
}

func (o Options) scaled(d time.Duration) time.Duration {
	if o.TimeScale <= 0 || o.TimeScale == 1 {
		return d
	}
	return time.Duration(float64(d) / o.TimeScale)
}

func (o Options) version(fallback string) string {
	if o.Version != "" {
		return o.Version
	}
	return fallback
}

func (o Options) model() llm.Model {
	if o.Model == nil {
		return llm.Offline{}
	}
	return o.Model
}

type builder func(Options) (*Profile, error)

var registry = map[string]builder{
	ProfileEcho:         newEcho,
	ProfileEchoV2:       newEchoV2,
	ProfileLifecycle:    newLifecycle,
	ProfileConfig:       newConfiguration,
	ProfileStreaming:    newStreaming,
	ProfilePolling:      newPolling,
	ProfilePush:         newPush,
	ProfileResubscribe:  newResubscribe,
	ProfileCancel:       newCancel,
	ProfileListTasks:    newListTasks,
	ProfileStructured:   newStructured,
	ProfileFiles:        newFiles,
	ProfileMultiTurn:    newMultiTurn,
	ProfileBellaVista:   newBellaVista,
	ProfileSecurity:     newSecurity,
	ProfileFootball:     newFootball,
	ProfileGeneral:      newGeneral,
	ProfileOrchestrator: newOrchestrator,
	ProfileVersioning:   newVersioning,
	ProfileExtendedCard: newExtendedCard,
	ProfileLanguage:     newLanguage,
}

// Names lists every profile name in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup builds the named profile.
func Lookup(name string, opts Options) (*Profile, error) {
	build, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	p, err := build(opts)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", name, err)
	}
	if p.Card.URL == "" {
		p.Card.URL = opts.BaseURL
	}
	if p.ExtendedCard != nil && p.ExtendedCard.URL == "" {
		p.ExtendedCard.URL = opts.BaseURL
	}
	slog.Debug("Profile built", "profile", p.Name, "card", p.Card.Name, "version", p.Card.Version)
	return p, nil
}

// newCard fills the fields every demo card shares.
func newCard(name, description, version string, streaming bool) *a2a.AgentCard {
	return &a2a.AgentCard{
		Name:               name,
		Description:        description,
		Version:            version,
		ProtocolVersion:    "0.3.0",
		DefaultInputModes:  []string{"text/plain"},
		DefaultOutputModes: []string{"text/plain"},
		Capabilities: a2a.AgentCapabilities{
			Streaming: streaming,
		},
		Skills: []a2a.AgentSkill{},
	}
}

// MessageText joins the text parts of msg with newlines.
func MessageText(msg *a2a.Message) string {
	if msg == nil {
		return ""
	}
	var texts []string
	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			texts = append(texts, p.Text)
		case *a2a.TextPart:
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// agentMessage builds an agent message bound to the task of info.
func agentMessage(info a2a.TaskInfoProvider, text string) *a2a.Message {
	return a2a.NewMessageForTask(a2a.MessageRoleAgent, info, a2a.TextPart{Text: text})
}

// statusEvent builds a status update. Terminal and input-required states
// are marked Final. An empty text leaves the status without a message.
func statusEvent(info a2a.TaskInfoProvider, state a2a.TaskState, text string) *a2a.TaskStatusUpdateEvent {
	var msg *a2a.Message
	if text != "" {
		msg = agentMessage(info, text)
	}
	event := a2a.NewStatusUpdateEvent(info, state, msg)
	event.Final = state.Terminal() || state == a2a.TaskStateInputRequired
	return event
}

// artifactEvent builds a named artifact from parts.
func artifactEvent(info a2a.TaskInfoProvider, name string, parts ...a2a.Part) *a2a.TaskArtifactUpdateEvent {
	event := a2a.NewArtifactEvent(info, parts...)
	event.Artifact.Name = name
	return event
}
