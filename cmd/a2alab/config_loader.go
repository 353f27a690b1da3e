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
	"log/slog"

	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/config/provider"
)

// loadConfig loads the configuration named by the global flags. Without
// --config it returns an empty config for zero-config mode and a nil
// loader. onChange, when set, receives every reloaded config once the
// loader is watched.
func loadConfig(ctx context.Context, cli *CLI, onChange func(*config.Config)) (*config.Config, *config.Loader, error) {
	if cli.Config == "" {
		slog.Debug("Using zero-config mode")
		return &config.Config{}, nil, nil
	}

	typ, err := provider.ParseType(cli.ConfigType)
	if err != nil {
		return nil, nil, err
	}
	if typ == provider.TypeFile {
		_ = config.LoadDotEnvForConfig(cli.Config)
	}

	p, err := provider.New(ctx, provider.Options{
		Type:      typ,
		Path:      cli.Config,
		Endpoints: cli.ConfigEndpoints,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create %s config provider: %w", typ, err)
	}

	var opts []config.LoaderOption
	if onChange != nil {
		opts = append(opts, config.WithOnChange(onChange))
	}
	loader := config.NewLoader(p, opts...)

	cfg, err := loader.Load(ctx)
	if err != nil {
		_ = loader.Close()
		return nil, nil, fmt.Errorf("failed to load config from %s: %w", cli.Config, err)
	}
	slog.Debug("Loaded configuration", "source", typ, "path", cli.Config)
	return cfg, loader, nil
}
