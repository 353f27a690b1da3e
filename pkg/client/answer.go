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

package client

import (
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// Answer folds a sequence of events into the final reply of an agent.
type Answer struct {
	state      a2a.TaskState
	statusText string
	message    string
	order      []a2a.ArtifactID
	artifacts  map[a2a.ArtifactID]*strings.Builder
}

// Add consumes one event.
func (a *Answer) Add(event a2a.Event) {
	switch ev := event.(type) {
	case *a2a.Message:
		a.message = PartsText(ev.Parts)
	case *a2a.Task:
		a.state = ev.Status.State
		if ev.Status.Message != nil {
			if text := PartsText(ev.Status.Message.Parts); text != "" {
				a.statusText = text
			}
		}
		for _, art := range ev.Artifacts {
			a.setArtifact(art.ID, PartsText(art.Parts), false)
		}
	case *a2a.TaskStatusUpdateEvent:
		a.state = ev.Status.State
		if ev.Status.Message != nil {
			if text := PartsText(ev.Status.Message.Parts); text != "" {
				a.statusText = text
			}
		}
	case *a2a.TaskArtifactUpdateEvent:
		if ev.Artifact != nil {
			a.setArtifact(ev.Artifact.ID, PartsText(ev.Artifact.Parts), ev.Append)
		}
	}
}

func (a *Answer) setArtifact(id a2a.ArtifactID, text string, appendText bool) {
	if a.artifacts == nil {
		a.artifacts = make(map[a2a.ArtifactID]*strings.Builder)
	}
	b, ok := a.artifacts[id]
	if !ok {
		b = &strings.Builder{}
		a.artifacts[id] = b
		a.order = append(a.order, id)
	}
	if !appendText {
		b.Reset()
	}
	b.WriteString(text)
}

// State is the last task state seen; empty for direct messages.
func (a *Answer) State() a2a.TaskState { return a.state }

// Text prefers the last status message, then the artifact text, then a
// direct message.
func (a *Answer) Text() string {
	if a.statusText != "" {
		return a.statusText
	}
	var parts []string
	for _, id := range a.order {
		if text := a.artifacts[id].String(); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n")
	}
	return a.message
}

// PartsText joins the text parts of parts with newlines.
func PartsText(parts []a2a.Part) string {
	var texts []string
	for _, p := range parts {
		switch v := p.(type) {
		case a2a.TextPart:
			texts = append(texts, v.Text)
		case *a2a.TextPart:
			texts = append(texts, v.Text)
		}
	}
	return strings.Join(texts, "\n")
}
