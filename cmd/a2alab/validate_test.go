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
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a2alab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCmd(t *testing.T) {
	valid := writeConfig(t, "agent:\n  profile: lifecycle\n  outcome: rejected\n")
	invalid := writeConfig(t, "agent:\n  outcome: exploded\n")
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name       string
		cmd        ValidateCmd
		wantErr    bool
		wantStdout string
		wantStderr string
	}{
		{
			name:       "compact success",
			cmd:        ValidateCmd{Config: valid, Format: "compact"},
			wantStdout: valid + ": valid\n",
		},
		{
			name:       "verbose success",
			cmd:        ValidateCmd{Config: valid, Format: "verbose"},
			wantStdout: "Status: OK Valid",
		},
		{
			name:       "invalid outcome",
			cmd:        ValidateCmd{Config: invalid, Format: "compact"},
			wantErr:    true,
			wantStderr: "unknown outcome",
		},
		{
			name:       "missing file",
			cmd:        ValidateCmd{Config: missing, Format: "verbose"},
			wantErr:    true,
			wantStderr: "Configuration Load Error",
		},
		{
			name:       "print expanded yaml",
			cmd:        ValidateCmd{Config: valid, Format: "compact", PrintConfig: true},
			wantStdout: "profile: lifecycle",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := tt.cmd.run(context.Background(), &stdout, &stderr)
			if tt.wantErr {
				assert.ErrorIs(t, err, errInvalidConfig)
			} else {
				require.NoError(t, err)
			}
			assert.Contains(t, stdout.String(), tt.wantStdout)
			assert.Contains(t, stderr.String(), tt.wantStderr)
		})
	}
}

func TestValidateCmd_JSON(t *testing.T) {
	invalid := writeConfig(t, "server:\n  transports: [carrier-pigeon]\n")

	var stdout bytes.Buffer
	err := (&ValidateCmd{Config: invalid, Format: "json"}).run(context.Background(), &stdout, &bytes.Buffer{})
	require.ErrorIs(t, err, errInvalidConfig)

	var out jsonOutput
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &out))
	assert.False(t, out.Valid)
	assert.Equal(t, invalid, out.File)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, "load", out.Errors[0].Type)
	assert.Contains(t, out.Errors[0].Message, "unknown transport")
}
