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

// AuthConfig configures bearer JWT authentication for the server.
//
// Authentication is disabled by default. When enabled, every A2A route
// requires a valid token; the public agent card and health are always open.
//
//	server:
//	  auth:
//	    enabled: true
//	    jwks_url: "http://localhost:9000/.well-known/jwks.json"
//	    issuer: "http://localhost:9000/"
//	    audience: "a2a-agent"
type AuthConfig struct {
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// JWKSURL is where signing keys are fetched from.
	JWKSURL string `yaml:"jwks_url,omitempty" json:"jwks_url,omitempty"`

	// Issuer is the expected iss claim.
	Issuer string `yaml:"issuer,omitempty" json:"issuer,omitempty"`

	// Audience is the expected aud claim.
	Audience string `yaml:"audience,omitempty" json:"audience,omitempty"`

	// RefreshInterval is how often the key set is refreshed. Default: 15m
	RefreshInterval time.Duration `yaml:"refresh_interval,omitempty" json:"refresh_interval,omitempty"`

	// ExcludedPaths never require a token.
	ExcludedPaths []string `yaml:"excluded_paths,omitempty" json:"excluded_paths,omitempty"`
}

func (c *AuthConfig) SetDefaults() {
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 15 * time.Minute
	}
	if len(c.ExcludedPaths) == 0 {
		c.ExcludedPaths = []string{
			"/health",
			"/.well-known/agent-card.json",
			"/metrics",
			"/download.txt",
		}
	}
}

func (c *AuthConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.JWKSURL == "" {
		return fmt.Errorf("auth.jwks_url is required when auth is enabled")
	}
	if c.Issuer == "" {
		return fmt.Errorf("auth.issuer is required when auth is enabled")
	}
	if c.Audience == "" {
		return fmt.Errorf("auth.audience is required when auth is enabled")
	}
	if c.RefreshInterval < time.Minute {
		return fmt.Errorf("auth.refresh_interval must be at least 1 minute")
	}
	return nil
}

// IsEnabled returns true if authentication is configured and enabled.
func (c *AuthConfig) IsEnabled() bool {
	return c != nil && c.Enabled && c.JWKSURL != "" && c.Issuer != "" && c.Audience != ""
}

// ClientCredentials configures the OAuth2 client credentials flow used by
// the client commands.
type ClientCredentials struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Audience     string
}

// ClientCredentialsFromEnv reads AUTH_TOKEN_URL, AUTH_CLIENT_ID,
// AUTH_CLIENT_SECRET and AUTH_AUDIENCE.
func ClientCredentialsFromEnv() ClientCredentials {
	return ClientCredentials{
		TokenURL:     envOr("AUTH_TOKEN_URL", "http://localhost:9000/oauth/token"),
		ClientID:     envOr("AUTH_CLIENT_ID", "a2a-client"),
		ClientSecret: envOr("AUTH_CLIENT_SECRET", "a2a-secret"),
		Audience:     envOr("AUTH_AUDIENCE", "a2a-agent"),
	}
}

// Validate checks that the flow can run.
func (c ClientCredentials) Validate() error {
	if c.TokenURL == "" || c.ClientID == "" || c.ClientSecret == "" {
		return fmt.Errorf("token url, client id and client secret are required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
