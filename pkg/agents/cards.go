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
	"fmt"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/versioning"
)

const (
	schemeBearer = "bearer"
	schemeOIDC   = "oidc"
)

// bearerSchemes declares JWT bearer auth, plus OpenID Connect discovery
// when issuer is known.
func bearerSchemes(issuer string) (a2a.NamedSecuritySchemes, []a2a.SecurityRequirements) {
	schemes := a2a.NamedSecuritySchemes{
		schemeBearer: a2a.HTTPAuthSecurityScheme{
			Scheme:       "bearer",
			BearerFormat: "JWT",
			Description:  "OAuth2 access token (client credentials) sent as Authorization: Bearer <token>",
		},
	}
	if issuer != "" {
		if !strings.HasSuffix(issuer, "/") {
			issuer += "/"
		}
		schemes[schemeOIDC] = a2a.OpenIDConnectSecurityScheme{
			OpenIDConnectURL: issuer + strings.TrimPrefix(auth.OpenIDConfigPath, "/"),
			Description:      "OpenID Connect discovery of the token issuer",
		}
	}
	return schemes, []a2a.SecurityRequirements{{schemeBearer: a2a.SecuritySchemeScopes{}}}
}

// newSecurity is the streaming agent behind bearer authentication.
func newSecurity(opts Options) (*Profile, error) {
	card := newCard(
		"Streaming Demo Agent (REST + SSE, Auth0 protected)",
		"Streaming demo that requires a bearer JWT on every A2A call.",
		opts.version("0.1.0-demo"),
		true,
	)
	card.Skills = []a2a.AgentSkill{{
		ID:          "demo.streaming.echo",
		Name:        "Streaming echo",
		Description: "Streams progress updates and one artifact.",
		Tags:        []string{"streaming", "auth"},
	}}
	card.SecuritySchemes, card.Security = bearerSchemes(opts.Issuer)

	return &Profile{
		Name:               ProfileSecurity,
		Card:               card,
		Executor:           streamingExecutor(opts, time.Second),
		PreferredTransport: config.TransportREST,
		RequireAuth:        true,
	}, nil
}

// cardOnlyExecutor refuses messages; the agent only serves cards.
type cardOnlyExecutor struct{}

func (cardOnlyExecutor) Execute(context.Context, *a2asrv.RequestContext, eventqueue.Queue) error {
	return fmt.Errorf("%w: this demo only serves agent cards", a2a.ErrUnsupportedOperation)
}

func (cardOnlyExecutor) Cancel(context.Context, *a2asrv.RequestContext, eventqueue.Queue) error {
	return a2a.ErrTaskNotCancelable
}

func protocolVersionFor(mode string) string {
	return versioning.PolicyFor(mode).ProtocolVersion
}

func newVersioning(opts Options) (*Profile, error) {
	mode := opts.Mode
	if mode == "" {
		mode = config.ModeLegacy
	}
	label := opts.Label
	if label == "" {
		label = mode
	}
	version := opts.version("0.2.0")
	schemes, security := bearerSchemes(opts.Issuer)

	publicSkill := a2a.AgentSkill{
		ID:          "public.card.info",
		Name:        "Public card info",
		Description: "Public-facing metadata (no auth).",
		Tags:        []string{"public"},
	}

	public := newCard(
		fmt.Sprintf("AgentCard Versioning Demo (%s)", label),
		fmt.Sprintf("Public card open. Extended card protected. (%s)", label),
		version,
		false,
	)
	public.ProtocolVersion = protocolVersionFor(mode)
	public.Skills = []a2a.AgentSkill{publicSkill}
	public.SecuritySchemes, public.Security = schemes, security
	public.SupportsAuthenticatedExtendedCard = true

	private := newCard(
		fmt.Sprintf("AgentCard Versioning Demo (Extended, %s)", label),
		fmt.Sprintf("Extended agent card. Requires Bearer JWT. (%s)", label),
		version,
		false,
	)
	private.ProtocolVersion = public.ProtocolVersion
	private.Skills = []a2a.AgentSkill{publicSkill, {
		ID:          "private.card.secrets",
		Name:        "Private card secrets",
		Description: "Only visible on extended card.",
		Tags:        []string{"private"},
	}}
	private.SecuritySchemes, private.Security = schemes, security
	private.SupportsAuthenticatedExtendedCard = true

	return &Profile{
		Name:               ProfileVersioning,
		Card:               public,
		ExtendedCard:       private,
		Executor:           cardOnlyExecutor{},
		PreferredTransport: config.TransportREST,
	}, nil
}

// newExtendedCard splits one echo agent into a public and an extended card.
func newExtendedCard(opts Options) (*Profile, error) {
	version := opts.version("0.1.0-demo")
	schemes, security := bearerSchemes(opts.Issuer)

	echoSkill := a2a.AgentSkill{
		ID:          "echo.public",
		Name:        "Echo",
		Description: "Echoes the input. Visible to everyone.",
		Tags:        []string{"public"},
	}

	public := newCard("AgentCard Demo (Public/Private)",
		"Public card. Call the extended card endpoint with a bearer token to see more.",
		version, false)
	public.ProtocolVersion = protocolVersionFor(opts.Mode)
	public.Skills = []a2a.AgentSkill{echoSkill}
	public.SecuritySchemes, public.Security = schemes, security
	public.SupportsAuthenticatedExtendedCard = true

	private := newCard("AgentCard Demo (Extended)",
		"Extended card with skills reserved for authenticated clients.",
		version, false)
	private.ProtocolVersion = public.ProtocolVersion
	private.Skills = []a2a.AgentSkill{echoSkill, {
		ID:          "echo.internal",
		Name:        "Internal echo",
		Description: "Only visible on extended card.",
		Tags:        []string{"private"},
	}}
	private.SecuritySchemes, private.Security = schemes, security
	private.SupportsAuthenticatedExtendedCard = true

	return &Profile{
		Name:               ProfileExtendedCard,
		Card:               public,
		ExtendedCard:       private,
		Executor:           echoExecutor{},
		PreferredTransport: config.TransportREST,
	}, nil
}

var _ a2asrv.AgentExecutor = cardOnlyExecutor{}
