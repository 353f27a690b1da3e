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

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kadirpekel/a2alab/pkg/agents"
	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/llm"
	"github.com/kadirpekel/a2alab/pkg/observability"
	"github.com/kadirpekel/a2alab/pkg/server"
	"github.com/kadirpekel/a2alab/pkg/taskstore"
)

// ServeCmd serves one agent profile. Flags override the config file.
type ServeCmd struct {
	Profile string `arg:"" optional:"" help:"Agent profile to serve (see --list)."`
	List    bool   `help:"List the available profiles and exit."`

	Host       string   `help:"Host to bind."`
	Port       int      `short:"p" help:"HTTP port (default 8001)."`
	GRPCPort   int      `name:"grpc-port" help:"gRPC port (default HTTP port + 1000)."`
	Transports []string `name:"transport" short:"t" help:"Enabled transport, repeatable: jsonrpc, rest, grpc."`
	BaseURL    string   `name:"base-url" help:"Public URL advertised in the agent card."`

	Mode         string        `help:"Enable the protocol version gate in this mode: legacy or v1."`
	AgentVersion string        `name:"agent-version" help:"Version advertised in the agent card."`
	Label        string        `help:"Label shown in the card name."`
	Delay        time.Duration `help:"Simulated work time of the configuration agent."`
	Outcome      string        `help:"Terminal state of the lifecycle agent: completed, rejected, failed."`
	FilesMode    string        `name:"files-mode" help:"How the files agent returns its result: bytes or uri."`
	FootballURL  string        `name:"football-url" help:"Football agent used by the orchestrator."`
	GeneralURL   string        `name:"general-url" help:"General agent used by the orchestrator."`

	Storage   string `help:"Task store backend: memory, sqlite, postgres, mysql."`
	StorageDB string `name:"storage-db" help:"DSN or file path of the task store."`

	Auth       bool   `help:"Require bearer tokens issued by the auth server."`
	AuthServer string `name:"auth-server" help:"Auth server base URL." default:"http://localhost:9000"`
	Push       bool   `help:"Enable push notification configs."`
	Observe    bool   `help:"Enable Prometheus metrics and OpenTelemetry tracing."`
	Watch      bool   `help:"Restart the server when the config changes."`
}

// applyOverrides copies every set flag into cfg and applies defaults.
func (c *ServeCmd) applyOverrides(cfg *config.Config) error {
	s := &cfg.Server
	if c.Profile != "" {
		cfg.Agent.Profile = c.Profile
	}
	if c.Host != "" {
		s.Host = c.Host
	}
	if c.Port != 0 {
		s.Port = c.Port
		if c.GRPCPort == 0 {
			s.GRPCPort = 0
		}
	}
	if c.GRPCPort != 0 {
		s.GRPCPort = c.GRPCPort
	}
	if (c.Host != "" || c.Port != 0) && c.BaseURL == "" {
		s.BaseURL = ""
	}
	if c.BaseURL != "" {
		s.BaseURL = c.BaseURL
	}
	if len(c.Transports) > 0 {
		s.Transports = c.Transports
	}
	if c.Mode != "" {
		s.Versioning.Enabled = true
		s.Versioning.Mode = c.Mode
	}
	if c.Storage != "" {
		s.Tasks.Backend = c.Storage
	}
	if c.StorageDB != "" {
		s.Tasks.DSN = c.StorageDB
	}
	if c.Push {
		s.Push.Enabled = true
	}
	if c.Auth {
		s.Auth.Enabled = true
	}
	fillAuthDefaults(&s.Auth, c.AuthServer)

	a := &cfg.Agent
	if c.AgentVersion != "" {
		a.Version = c.AgentVersion
	}
	if c.Label != "" {
		a.Label = c.Label
	}
	if c.Delay != 0 {
		a.Delay = c.Delay
	}
	if c.Outcome != "" {
		a.Outcome = c.Outcome
	}
	if c.FilesMode != "" {
		a.FilesMode = c.FilesMode
	}
	if c.FootballURL != "" {
		a.FootballURL = c.FootballURL
	}
	if c.GeneralURL != "" {
		a.GeneralURL = c.GeneralURL
	}

	if c.Observe {
		cfg.Observability.Metrics.Enabled = true
		cfg.Observability.Tracing.Enabled = true
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// fillAuthDefaults points unset auth settings at the local auth server.
func fillAuthDefaults(cfg *config.AuthConfig, authServer string) {
	base := strings.TrimRight(firstNonEmpty(authServer, "http://localhost:9000"), "/")
	if cfg.JWKSURL == "" {
		cfg.JWKSURL = base + auth.JWKSPath
	}
	if cfg.Issuer == "" {
		cfg.Issuer = base + "/"
	}
	if cfg.Audience == "" {
		cfg.Audience = config.ClientCredentialsFromEnv().Audience
	}
}

func (c *ServeCmd) Run(cli *CLI) error {
	if c.List {
		for _, name := range agents.Names() {
			fmt.Println(name)
		}
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	reloads := make(chan *config.Config, 1)
	cfg, loader, err := loadConfig(ctx, cli, func(next *config.Config) {
		// only the latest config matters
		select {
		case <-reloads:
		default:
		}
		reloads <- next
	})
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()

		cleanup, err := initLoggerFromConfig(cli, cfg.Logger)
		if err != nil {
			return err
		}
		if cleanup != nil {
			defer cleanup()
		}
	}

	if c.Watch {
		if loader == nil {
			slog.Warn("--watch needs --config, ignoring")
		} else {
			go func() {
				if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
					slog.Error("Config watch error", "error", err)
				}
			}()
		}
	}

	for {
		if err := c.applyOverrides(cfg); err != nil {
			return err
		}

		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- serve(runCtx, cfg, os.Stdout) }()

		select {
		case err := <-done:
			cancel()
			return err
		case next := <-reloads:
			slog.Info("Configuration changed, restarting server")
			cancel()
			if err := <-done; err != nil {
				return err
			}
			cfg = next
		}
	}
}

// serve builds every dependency of the server from cfg and blocks until
// ctx is canceled.
func serve(ctx context.Context, cfg *config.Config, out io.Writer) error {
	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("failed to create model: %w", err)
	}

	profile, err := agents.Lookup(cfg.Agent.Profile, agents.OptionsFromConfig(cfg, model))
	if err != nil {
		return err
	}
	if profile.RequireAuth && !cfg.Server.Auth.Enabled {
		slog.Info("Profile requires authentication, enabling it", "profile", profile.Name)
		cfg.Server.Auth.Enabled = true
	}
	if profile.Card.Capabilities.PushNotifications && !cfg.Server.Push.Enabled {
		slog.Info("Profile sends push notifications, enabling them", "profile", profile.Name)
		cfg.Server.Push.Enabled = true
	}

	store, err := taskstore.New(cfg.Server.Tasks)
	if err != nil {
		return fmt.Errorf("failed to open task store: %w", err)
	}
	defer store.Close()

	opts := []server.Option{server.WithTaskStore(store)}

	if cfg.Server.Auth.Enabled {
		validator, err := auth.NewValidatorFromConfig(ctx, cfg.Server.Auth)
		if err != nil {
			return fmt.Errorf("failed to create token validator: %w", err)
		}
		defer validator.Close()
		opts = append(opts, server.WithAuthValidator(validator))
	}

	if cfg.Observability.Metrics.Enabled {
		metrics, err := observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to create metrics: %w", err)
		}
		defer func() { _ = metrics.Shutdown(context.Background()) }()
		opts = append(opts, server.WithMetrics(metrics))
	}

	tracer, err := observability.NewTracer(ctx, cfg.Observability.Tracing)
	if err != nil {
		return fmt.Errorf("failed to create tracer: %w", err)
	}
	if tracer != nil {
		defer func() { _ = tracer.Shutdown(context.Background()) }()
		opts = append(opts, server.WithTracer(tracer))
	}

	srv, err := server.New(&cfg.Server, profile, opts...)
	if err != nil {
		return err
	}

	printBanner(out, cfg, srv, model)
	return srv.Start(ctx)
}

func printBanner(w io.Writer, cfg *config.Config, srv *server.Server, model llm.Model) {
	card := srv.Card()
	fmt.Fprintf(w, "\n%s v%s (profile %s)\n", card.Name, card.Version, cfg.Agent.Profile)
	fmt.Fprintf(w, "   Agent card:  %s/.well-known/agent-card.json\n", cfg.Server.BaseURL)
	fmt.Fprintf(w, "   Transports:  %s\n", strings.Join(cfg.Server.Transports, ", "))
	if addr := srv.GRPCAddress(); addr != "" {
		fmt.Fprintf(w, "   gRPC:        %s\n", addr)
	}
	fmt.Fprintf(w, "   Task store:  %s\n", cfg.Server.Tasks.Backend)
	if cfg.Server.Auth.Enabled {
		fmt.Fprintf(w, "   Auth:        %s\n", cfg.Server.Auth.Issuer)
	}
	if cfg.Server.Versioning.Enabled {
		fmt.Fprintf(w, "   Versioning:  %s\n", cfg.Server.Versioning.Mode)
	}
	if cfg.Observability.Metrics.Enabled {
		fmt.Fprintf(w, "   Metrics:     %s/metrics\n", cfg.Server.BaseURL)
	}
	if !llm.IsOffline(model) {
		fmt.Fprintf(w, "   Model:       %s\n", model.Name())
	}
	fmt.Fprintln(w, "\nPress Ctrl+C to stop")
}
