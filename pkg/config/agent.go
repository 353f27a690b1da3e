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

package config

import (
	"fmt"
	"os"
	"time"
)

// AgentConfig selects and tunes the served agent profile.
type AgentConfig struct {
	// Profile names the agent to serve (echo, lifecycle, streaming, ...).
	Profile string `yaml:"profile,omitempty" json:"profile,omitempty"`

	// Version overrides the card version.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Label is shown in the card name of the versioning demos.
	Label string `yaml:"label,omitempty" json:"label,omitempty"`

	// Delay is the simulated work time of the configuration agent.
	Delay time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`

	// Outcome is the terminal state of the lifecycle agent.
	Outcome string `yaml:"outcome,omitempty" json:"outcome,omitempty" jsonschema:"enum=completed,enum=rejected,enum=failed"`

	// FilesMode selects how the files agent returns its result.
	FilesMode string `yaml:"files_mode,omitempty" json:"files_mode,omitempty" jsonschema:"enum=bytes,enum=uri"`

	// FootballURL and GeneralURL are the orchestrator's downstream agents.
	FootballURL string `yaml:"football_url,omitempty" json:"football_url,omitempty"`
	GeneralURL  string `yaml:"general_url,omitempty" json:"general_url,omitempty"`

	// TimeScale divides every simulated wait. Tests use large values.
	TimeScale float64 `yaml:"time_scale,omitempty" json:"time_scale,omitempty"`
}

func (c *AgentConfig) SetDefaults() {
	if c.Profile == "" {
		c.Profile = "echo"
	}
	if c.Delay == 0 {
		c.Delay = 2500 * time.Millisecond
	}
	if c.Outcome == "" {
		c.Outcome = "completed"
	}
	if c.FilesMode == "" {
		c.FilesMode = "bytes"
	}
	if c.Label == "" {
		c.Label = os.Getenv("AGENT_LABEL")
	}
	if c.FootballURL == "" {
		c.FootballURL = envOr("FOOTBALL_AGENT_URL", "http://localhost:8002")
	}
	if c.GeneralURL == "" {
		c.GeneralURL = envOr("GENERAL_AGENT_URL", "http://localhost:8003")
	}
	if c.TimeScale == 0 {
		c.TimeScale = 1
	}
}

func (c *AgentConfig) Validate() error {
	switch c.Outcome {
	case "completed", "rejected", "failed":
	default:
		return fmt.Errorf("unknown outcome %q (valid: completed, rejected, failed)", c.Outcome)
	}
	switch c.FilesMode {
	case "bytes", "uri":
	default:
		return fmt.Errorf("unknown files_mode %q (valid: bytes, uri)", c.FilesMode)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0")
	}
	if c.TimeScale <= 0 {
		return fmt.Errorf("time_scale must be > 0")
	}
	return nil
}
