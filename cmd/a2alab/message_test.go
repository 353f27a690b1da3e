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
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/a2alab/pkg/agents"
)

func TestMessageFlags_Build(t *testing.T) {
	dir := t.TempDir()
	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello file"), 0o644))

	t.Run("parts keep their order", func(t *testing.T) {
		msg, err := MessageFlags{
			Text:    "summarize",
			Data:    `{"team":"blue","count":2}`,
			File:    notes,
			FileURI: "http://localhost:3000/report.pdf",
		}.build()
		require.NoError(t, err)

		assert.NotEmpty(t, msg.ID)
		assert.Equal(t, a2a.MessageRoleUser, msg.Role)
		require.Len(t, msg.Parts, 4)

		assert.Equal(t, a2a.TextPart{Text: "summarize"}, msg.Parts[0])

		data, ok := msg.Parts[1].(a2a.DataPart)
		require.True(t, ok)
		assert.Equal(t, "blue", data.Data["team"])
		assert.Equal(t, float64(2), data.Data["count"])

		inline, ok := msg.Parts[2].(a2a.FilePart)
		require.True(t, ok)
		bytes, ok := inline.File.(a2a.FileBytes)
		require.True(t, ok)
		assert.Equal(t, "notes.txt", bytes.Name)
		assert.Contains(t, bytes.MimeType, "text/plain")
		decoded, err := base64.StdEncoding.DecodeString(bytes.Bytes)
		require.NoError(t, err)
		assert.Equal(t, "hello file", string(decoded))

		ref, ok := msg.Parts[3].(a2a.FilePart)
		require.True(t, ok)
		uri, ok := ref.File.(a2a.FileURI)
		require.True(t, ok)
		assert.Equal(t, "report.pdf", uri.Name)
		assert.Equal(t, "application/pdf", uri.MimeType)
		assert.Equal(t, "http://localhost:3000/report.pdf", uri.URI)
	})

	t.Run("task and context ids", func(t *testing.T) {
		msg, err := MessageFlags{Text: "more", TaskID: "t1", ContextID: "c1"}.build()
		require.NoError(t, err)
		assert.Equal(t, a2a.TaskID("t1"), msg.TaskID)
		assert.Equal(t, "c1", msg.ContextID)
		assert.Empty(t, msg.Extensions)
	})

	t.Run("language extension", func(t *testing.T) {
		flags := MessageFlags{Text: "hallo", Lang: "de"}
		msg, err := flags.build()
		require.NoError(t, err)
		assert.Equal(t, []string{agents.LanguageExtensionURI}, msg.Extensions)
		assert.Equal(t, map[string]any{"language": "de"}, msg.Metadata[agents.LanguageExtensionURI])
		assert.Equal(t, []string{agents.LanguageExtensionURI}, flags.extensions())
	})

	t.Run("empty message", func(t *testing.T) {
		_, err := MessageFlags{}.build()
		assert.ErrorIs(t, err, errEmptyMessage)
	})

	t.Run("data must be an object", func(t *testing.T) {
		_, err := MessageFlags{Data: `[1,2]`}.build()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--data must be a JSON object")
	})
}

func TestMimeType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"report.pdf", "application/pdf"},
		{"blob", "application/octet-stream"},
		{"archive.unknownext", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mimeType(tt.name))
		})
	}
}
