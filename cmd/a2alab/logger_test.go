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
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2alab/pkg/config"
)

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
	assert.Equal(t, "", firstNonEmpty())
}

func TestInitLoggerFromConfig(t *testing.T) {
	unsetEnv(t, LogLevelEnvVar, LogFileEnvVar, LogFormatEnvVar)
	t.Cleanup(func() { _, _ = initLoggerFromCLI("info", "", DefaultLogFormat) })

	t.Run("config fills unset flags", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "a2alab.log")
		cleanup, err := initLoggerFromConfig(&CLI{}, config.LoggerConfig{Level: "debug", File: path, Format: "verbose"})
		require.NoError(t, err)
		require.NotNil(t, cleanup)
		defer cleanup()

		assert.True(t, slog.Default().Enabled(context.Background(), slog.LevelDebug))
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("flags win", func(t *testing.T) {
		cleanup, err := initLoggerFromConfig(&CLI{LogLevel: "error"}, config.LoggerConfig{Level: "debug"})
		require.NoError(t, err)
		assert.Nil(t, cleanup)
		assert.False(t, slog.Default().Enabled(context.Background(), slog.LevelWarn))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := initLoggerFromConfig(&CLI{}, config.LoggerConfig{Level: "loud"})
		assert.Error(t, err)
	})
}
