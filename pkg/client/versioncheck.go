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
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/versioning"
)

const maxReportBody = 800

// VersionReport is the outcome of a VersionCheck.
type VersionReport struct {
	Target          string
	BaseURL         string
	AgentVersion    string
	MinAgentVersion string
	ProtocolVersion string
	Path            string
	Status          int
	Body            string
	Blocked         bool
}

func (r VersionReport) String() string {
	if r.Blocked {
		return fmt.Sprintf("BLOCKED: agent_version=%s < min_agent_version=%s (target=%s, base_url=%s)",
			r.AgentVersion, r.MinAgentVersion, r.Target, r.BaseURL)
	}
	line := fmt.Sprintf("target=%s agent_version=%s protocol_version=%s GET %s -> HTTP %d",
		r.Target, r.AgentVersion, r.ProtocolVersion, r.Path, r.Status)
	if r.Status != http.StatusOK {
		line += "\n" + truncate(r.Body, maxReportBody)
	}
	return line
}

// VersionCheck applies the client's agent version policy to the agent at
// baseURL and then requests its extended card with the given protocol
// version. Agents below minAgentVersion are not contacted beyond the
// public card; the report is returned together with ErrBlocked.
func VersionCheck(ctx context.Context, target, baseURL, protocolVersion, minAgentVersion string, tokens auth.TokenSource, hc *httpclient.Client) (VersionReport, error) {
	report := VersionReport{
		Target:          target,
		BaseURL:         strings.TrimRight(baseURL, "/"),
		MinAgentVersion: minAgentVersion,
		ProtocolVersion: protocolVersion,
	}

	path, err := versioning.ExtendedCardPath(protocolVersion)
	if err != nil {
		return report, err
	}
	report.Path = path

	opts := Options{HTTPClient: hc}
	card, err := Resolve(ctx, report.BaseURL, opts)
	if err != nil {
		return report, err
	}
	if card.Version == "" {
		return report, errors.New("agent card has no version")
	}
	report.AgentVersion = card.Version

	if err := versioning.CheckAgentVersion(card.Version, minAgentVersion); err != nil {
		if errors.Is(err, ErrBlocked) {
			report.Blocked = true
		}
		return report, err
	}

	opts.Token = tokens
	opts.ProtocolVersion = protocolVersion
	resp, err := getExtendedCard(ctx, report.BaseURL, opts)
	if err != nil {
		return report, err
	}
	report.Status = resp.status
	report.Body = string(resp.body)
	return report, nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
