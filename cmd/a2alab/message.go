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
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/kadirpekel/a2alab/pkg/agents"
)

// MessageFlags describe the user message of send and stream.
type MessageFlags struct {
	Text      string `short:"m" help:"Text part."`
	Data      string `help:"JSON object sent as a data part."`
	File      string `help:"Local file sent inline as base64." type:"existingfile"`
	FileURI   string `name:"file-uri" help:"File sent by reference."`
	TaskID    string `name:"task-id" help:"Continue this task."`
	ContextID string `name:"context-id" help:"Conversation context."`
	Lang      string `help:"Requested reply language (language extension)."`
}

var errEmptyMessage = errors.New("message needs --text, --data, --file or --file-uri")

// build assembles the message. Parts keep the order text, data, file.
func (f MessageFlags) build() (*a2a.Message, error) {
	var parts []a2a.Part

	if f.Text != "" {
		parts = append(parts, a2a.TextPart{Text: f.Text})
	}

	if f.Data != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(f.Data), &data); err != nil {
			return nil, fmt.Errorf("--data must be a JSON object: %w", err)
		}
		parts = append(parts, a2a.DataPart{Data: data})
	}

	if f.File != "" {
		raw, err := os.ReadFile(f.File)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.File, err)
		}
		name := filepath.Base(f.File)
		parts = append(parts, a2a.FilePart{File: a2a.FileBytes{
			FileMeta: a2a.FileMeta{Name: name, MimeType: mimeType(name)},
			Bytes:    base64.StdEncoding.EncodeToString(raw),
		}})
	}

	if f.FileURI != "" {
		name := path.Base(f.FileURI)
		parts = append(parts, a2a.FilePart{File: a2a.FileURI{
			FileMeta: a2a.FileMeta{Name: name, MimeType: mimeType(name)},
			URI:      f.FileURI,
		}})
	}

	if len(parts) == 0 {
		return nil, errEmptyMessage
	}

	msg := &a2a.Message{
		ID:        uuid.NewString(),
		Role:      a2a.MessageRoleUser,
		Parts:     parts,
		TaskID:    a2a.TaskID(f.TaskID),
		ContextID: f.ContextID,
	}
	if f.Lang != "" {
		msg.Extensions = []string{agents.LanguageExtensionURI}
		msg.Metadata = map[string]any{
			agents.LanguageExtensionURI: map[string]any{"language": f.Lang},
		}
	}
	return msg, nil
}

// extensions lists the extension URIs to announce in the request header.
func (f MessageFlags) extensions() []string {
	if f.Lang == "" {
		return nil
	}
	return []string{agents.LanguageExtensionURI}
}

func mimeType(name string) string {
	if t := mime.TypeByExtension(filepath.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}
