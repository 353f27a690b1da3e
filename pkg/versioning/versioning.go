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

// Package versioning negotiates the A2A protocol version and enforces the
// client side agent-version policy.
//
// Servers pick a Policy (legacy 0.3 or v1 1.0) and put Gate in front of
// their /v1 routes. Clients call CheckAgentVersion before talking to an
// agent and ExtendedCardPath to find the extended card.
package versioning

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"

	"github.com/kadirpekel/a2alab/pkg/config"
)

// HeaderName is the request header carrying the protocol version.
const HeaderName = "A2A-Version"

// Protocol versions.
const (
	Version03 = "0.3"
	Version10 = "1.0"
)

// Extended card paths per protocol version.
const (
	ExtendedCardPathV03 = "/v1/card"
	ExtendedCardPathV10 = "/v1/extendedAgentCard"
)

// ErrBlocked reports an agent older than the client accepts.
var ErrBlocked = errors.New("agent version below minimum")

// CheckAgentVersion returns ErrBlocked when agentVersion < minVersion.
// Both must be strict x.y.z versions.
func CheckAgentVersion(agentVersion, minVersion string) error {
	agent, err := semver.StrictNewVersion(agentVersion)
	if err != nil {
		return fmt.Errorf("invalid agent version %q: %w", agentVersion, err)
	}
	minimum, err := semver.StrictNewVersion(minVersion)
	if err != nil {
		return fmt.Errorf("invalid minimum version %q: %w", minVersion, err)
	}
	if agent.LessThan(minimum) {
		return fmt.Errorf("%w: agent_version=%s < min_agent_version=%s", ErrBlocked, agent, minimum)
	}
	return nil
}

// ExtendedCardPath maps a protocol version to its extended card route.
func ExtendedCardPath(protocolVersion string) (string, error) {
	switch protocolVersion {
	case Version03:
		return ExtendedCardPathV03, nil
	case Version10:
		return ExtendedCardPathV10, nil
	default:
		return "", fmt.Errorf("unsupported protocol version: %s", protocolVersion)
	}
}

// Policy is what a server accepts.
type Policy struct {
	Mode              string
	SupportedVersions []string
	ProtocolVersion   string
	ExtendedCardPath  string
}

// PolicyFor returns the policy of a server mode. Unknown modes fall back
// to legacy.
func PolicyFor(mode string) Policy {
	if mode == config.ModeV1 {
		return Policy{
			Mode:              config.ModeV1,
			SupportedVersions: []string{Version10},
			ProtocolVersion:   Version10,
			ExtendedCardPath:  ExtendedCardPathV10,
		}
	}
	return Policy{
		Mode:              config.ModeLegacy,
		SupportedVersions: []string{Version03},
		ProtocolVersion:   Version03,
		ExtendedCardPath:  ExtendedCardPathV03,
	}
}

func (p Policy) Supports(version string) bool {
	for _, v := range p.SupportedVersions {
		if v == version {
			return true
		}
	}
	return false
}
