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
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
)

// RenderTask prints a task summary in key=value lines. A nil history or
// artifact list is "<omitted>", an empty one "<empty>".
func RenderTask(w io.Writer, task *a2a.Task) {
	fmt.Fprintf(w, "taskId=%s\n", task.ID)
	fmt.Fprintf(w, "contextId=%s\n", task.ContextID)
	fmt.Fprintf(w, "state=%s\n", task.Status.State)
	if task.Status.Message != nil {
		fmt.Fprintf(w, "statusText=%s\n", PartsText(task.Status.Message.Parts))
	}

	switch {
	case task.History == nil:
		fmt.Fprintln(w, "history=<omitted>")
	case len(task.History) == 0:
		fmt.Fprintln(w, "history=<empty>")
	default:
		fmt.Fprintf(w, "historyCount=%d\n", len(task.History))
		for i, m := range task.History {
			fmt.Fprintf(w, "  [%d] role=%s text=%s\n", i, m.Role, PartsText(m.Parts))
		}
	}

	switch {
	case task.Artifacts == nil:
		fmt.Fprintln(w, "artifacts=<omitted>")
	case len(task.Artifacts) == 0:
		fmt.Fprintln(w, "artifacts=<empty>")
	default:
		fmt.Fprintf(w, "artifactsCount=%d\n", len(task.Artifacts))
		for i, art := range task.Artifacts {
			fmt.Fprintf(w, "  [%d] name=%s\n", i, art.Name)
			RenderParts(w, "      ", art.Parts)
		}
	}
}

// RenderTaskLine prints a one-line listing entry.
func RenderTaskLine(w io.Writer, task *a2a.Task) {
	names := make([]string, 0, len(task.Artifacts))
	for _, art := range task.Artifacts {
		names = append(names, art.Name)
	}
	fmt.Fprintf(w, "  - id=%s contextId=%s state=%s artifacts=[%s]\n",
		task.ID, task.ContextID, task.Status.State, strings.Join(names, ", "))
}

// RenderEvent prints one stream event as a single line, or a few for
// artifacts with structured parts.
func RenderEvent(w io.Writer, event a2a.Event) {
	switch ev := event.(type) {
	case *a2a.Message:
		fmt.Fprintf(w, "[message] %s\n", PartsText(ev.Parts))
	case *a2a.Task:
		fmt.Fprintf(w, "[task] id=%s state=%s\n", ev.ID, ev.Status.State)
	case *a2a.TaskStatusUpdateEvent:
		text := ""
		if ev.Status.Message != nil {
			text = PartsText(ev.Status.Message.Parts)
		}
		final := ""
		if ev.Final {
			final = " (final)"
		}
		fmt.Fprintf(w, "[status] %s%s %s\n", ev.Status.State, final, text)
	case *a2a.TaskArtifactUpdateEvent:
		if ev.Artifact == nil {
			return
		}
		fmt.Fprintf(w, "[artifact] %s\n", ev.Artifact.Name)
		RenderParts(w, "  ", ev.Artifact.Parts)
	default:
		fmt.Fprintf(w, "[event] %T\n", event)
	}
}

// RenderParts prints text as is, data as indented JSON and files as name
// plus uri or byte size.
func RenderParts(w io.Writer, indent string, parts []a2a.Part) {
	for _, part := range parts {
		switch p := part.(type) {
		case a2a.TextPart:
			fmt.Fprintf(w, "%stext=%s\n", indent, p.Text)
		case *a2a.TextPart:
			fmt.Fprintf(w, "%stext=%s\n", indent, p.Text)
		case a2a.DataPart:
			renderData(w, indent, p.Data)
		case *a2a.DataPart:
			renderData(w, indent, p.Data)
		case a2a.FilePart:
			renderFile(w, indent, p.File)
		case *a2a.FilePart:
			renderFile(w, indent, p.File)
		}
	}
}

func renderData(w io.Writer, indent string, data map[string]any) {
	out, err := json.MarshalIndent(data, indent, "  ")
	if err != nil {
		fmt.Fprintf(w, "%sdata=<invalid: %v>\n", indent, err)
		return
	}
	fmt.Fprintf(w, "%sdata=%s\n", indent, out)
}

func renderFile(w io.Writer, indent string, file any) {
	switch f := file.(type) {
	case a2a.FileURI:
		fmt.Fprintf(w, "%sfile=%s uri=%s\n", indent, f.Name, f.URI)
	case *a2a.FileURI:
		fmt.Fprintf(w, "%sfile=%s uri=%s\n", indent, f.Name, f.URI)
	case a2a.FileBytes:
		fmt.Fprintf(w, "%sfile=%s bytes=%d\n", indent, f.Name, base64.StdEncoding.DecodedLen(len(f.Bytes)))
	case *a2a.FileBytes:
		fmt.Fprintf(w, "%sfile=%s bytes=%d\n", indent, f.Name, base64.StdEncoding.DecodedLen(len(f.Bytes)))
	}
}
