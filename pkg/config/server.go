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
	"net/url"
	"slices"
	"strings"
	"time"
)

// Transport names.
const (
	TransportJSONRPC = "jsonrpc"
	TransportREST    = "rest"
	TransportGRPC    = "grpc"
)

// Task storage backends.
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
)

// Versioning modes.
const (
	ModeLegacy = "legacy"
	ModeV1     = "v1"
)

// ServerConfig configures the A2A server process.
type ServerConfig struct {
	Host            string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port            int           `yaml:"port,omitempty" json:"port,omitempty"`
	GRPCPort        int           `yaml:"grpc_port,omitempty" json:"grpc_port,omitempty"`
	Transports      []string      `yaml:"transports,omitempty" json:"transports,omitempty"`
	BaseURL         string        `yaml:"base_url,omitempty" json:"base_url,omitempty"`
	CORSOrigins     []string      `yaml:"cors,omitempty" json:"cors,omitempty"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty" json:"shutdown_timeout,omitempty"`

	Tasks      TasksConfig      `yaml:"tasks" json:"tasks,omitempty"`
	Auth       AuthConfig       `yaml:"auth" json:"auth,omitempty"`
	Versioning VersioningConfig `yaml:"versioning" json:"versioning,omitempty"`
	Push       PushConfig       `yaml:"push" json:"push,omitempty"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8001
	}
	if c.GRPCPort == 0 {
		c.GRPCPort = c.Port + 1000
	}
	if len(c.Transports) == 0 {
		c.Transports = []string{TransportJSONRPC, TransportREST}
	}
	for i, t := range c.Transports {
		c.Transports[i] = strings.ToLower(strings.TrimSpace(t))
	}
	if c.BaseURL == "" {
		c.BaseURL = fmt.Sprintf("http://%s:%d", c.Host, c.Port)
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	c.Tasks.SetDefaults()
	c.Auth.SetDefaults()
	c.Versioning.SetDefaults()
	c.Push.SetDefaults()
}

func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.GRPCPort < 0 || c.GRPCPort > 65535 {
		return fmt.Errorf("invalid grpc_port %d", c.GRPCPort)
	}
	for _, t := range c.Transports {
		switch t {
		case TransportJSONRPC, TransportREST, TransportGRPC:
		default:
			return fmt.Errorf("unknown transport %q (valid: jsonrpc, rest, grpc)", t)
		}
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if err := c.Tasks.Validate(); err != nil {
		return fmt.Errorf("tasks: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Versioning.Validate(); err != nil {
		return fmt.Errorf("versioning: %w", err)
	}
	return c.Push.Validate()
}

// HasTransport reports whether name is enabled.
func (c *ServerConfig) HasTransport(name string) bool {
	return slices.Contains(c.Transports, name)
}

// Address returns host:port for the HTTP listener.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GRPCAddress returns host:port for the gRPC listener.
func (c *ServerConfig) GRPCAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GRPCPort)
}

// TasksConfig selects the task store backend.
type TasksConfig struct {
	Backend string `yaml:"backend,omitempty" json:"backend,omitempty" jsonschema:"enum=memory,enum=sqlite,enum=postgres,enum=mysql"`
	DSN     string `yaml:"dsn,omitempty" json:"dsn,omitempty"`
}

func (c *TasksConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMemory
	}
	if c.Backend == BackendSQLite && c.DSN == "" {
		c.DSN = "./.a2alab/tasks.db"
	}
}

func (c *TasksConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
		return nil
	case BackendSQLite, BackendPostgres, BackendMySQL:
		if c.DSN == "" {
			return fmt.Errorf("dsn is required for backend %q", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("unknown backend %q", c.Backend)
	}
}

// VersioningConfig enables the protocol version gate.
type VersioningConfig struct {
	Enabled bool   `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Mode    string `yaml:"mode,omitempty" json:"mode,omitempty" jsonschema:"enum=legacy,enum=v1"`
}

func (c *VersioningConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLegacy
	}
}

func (c *VersioningConfig) Validate() error {
	if c.Mode != ModeLegacy && c.Mode != ModeV1 {
		return fmt.Errorf("unknown mode %q (valid: legacy, v1)", c.Mode)
	}
	return nil
}

// PushConfig configures push notification delivery.
type PushConfig struct {
	Enabled    bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	MaxRetries int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
}

func (c *PushConfig) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *PushConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("push: max_retries must be >= 0")
	}
	return nil
}
