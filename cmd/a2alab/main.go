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

// Command a2alab serves the A2A demo agents and talks to them.
//
// Usage:
//
//	a2alab serve streaming --port 8001
//	a2alab stream --url http://localhost:8001 --text "Hallo"
//	a2alab list --url http://localhost:8001 --all
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/a2alab"
	"github.com/kadirpekel/a2alab/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Serve    ServeCmd    `cmd:"" help:"Serve an agent profile."`
	Validate ValidateCmd `cmd:"" help:"Validate a configuration file."`
	Schema   SchemaCmd   `cmd:"" help:"Print the JSON Schema of the configuration."`

	Send        SendCmd        `cmd:"" help:"Send one message."`
	Stream      StreamCmd      `cmd:"" help:"Send one message and stream the events."`
	Poll        PollCmd        `cmd:"" help:"Send non-blocking, then poll the task until it settles."`
	Get         GetCmd         `cmd:"" help:"Fetch a task."`
	Cancel      CancelCmd      `cmd:"" help:"Cancel a task."`
	Resubscribe ResubscribeCmd `cmd:"" help:"Reattach to the event stream of a task."`
	List        ListCmd        `cmd:"" help:"List tasks."`
	PushSet     PushSetCmd     `cmd:"" name:"push-set" help:"Register a webhook for a task."`
	Card        CardCmd        `cmd:"" help:"Print the public or extended agent card."`
	VersionChk  VersionChkCmd  `cmd:"" name:"version-check" help:"Check agent and protocol versions."`

	Webhook    WebhookCmd    `cmd:"" help:"Run a webhook receiver that prints push notifications."`
	FileServer FileServerCmd `cmd:"" name:"fileserver" help:"Serve a directory of files over HTTP."`
	AuthServer AuthServerCmd `cmd:"" name:"auth-server" help:"Run a local OAuth2 token issuer."`
	Token      TokenCmd      `cmd:"" help:"Fetch a client credentials token and describe it."`

	Demo DemoCmd `cmd:"" help:"Scripted client demos."`

	Config          string   `short:"c" help:"Path to config file (or key for remote providers)."`
	ConfigType      string   `name:"config-type" help:"Config provider: file, consul, etcd, zookeeper." default:"file" enum:"file,consul,etcd,zookeeper"`
	ConfigEndpoints []string `name:"config-endpoints" help:"Endpoints of a remote config provider." sep:","`
	LogLevel        string   `help:"Log level (debug, info, warn, error)."`
	LogFile         string   `help:"Log file path (empty = stderr)."`
	LogFormat       string   `help:"Log format (simple, verbose, or custom)."`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(a2alab.GetVersion())
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("a2alab"),
		kong.Description("A2A protocol demo agents, clients and tools"),
		kong.UsageOnError(),
	)

	ctx.FatalIfErrorf(run(ctx, &cli))
}

// run executes the selected command. The log file is closed before it
// returns so a fatal exit does not leak it.
func run(ctx *kong.Context, cli *CLI) error {
	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	return ctx.Run(cli)
}
