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

package protocol

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"
)

// SSEWriter writes server-sent events and flushes after each one.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter prepares w for an event stream. It fails when w cannot
// flush.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported by response writer")
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteData writes v as one "data:" event.
func (s *SSEWriter) WriteData(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError writes err as an "error" event carrying the REST error body.
func (s *SSEWriter) WriteError(err error) error {
	code, _ := ErrorFor(err)
	data, _ := json.Marshal(ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}})
	if _, werr := fmt.Fprintf(s.w, "event: error\ndata: %s\n\n", data); werr != nil {
		return werr
	}
	s.flusher.Flush()
	return nil
}

// SSEEvent is one dispatched server-sent event.
type SSEEvent struct {
	Event string
	Data  []byte
}

// ReadSSE yields the events of an SSE body until EOF. Multiple data lines
// of one event are joined with newlines.
func ReadSSE(body io.Reader) iter.Seq2[SSEEvent, error] {
	return func(yield func(SSEEvent, error) bool) {
		// ReadBytes has no line length limit, unlike bufio.Scanner.
		reader := bufio.NewReader(body)

		var event string
		var data []string
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				text := strings.TrimRight(string(line), "\r\n")
				switch {
				case strings.HasPrefix(text, "event:"):
					event = strings.TrimSpace(strings.TrimPrefix(text, "event:"))
				case strings.HasPrefix(text, "data:"):
					data = append(data, strings.TrimPrefix(strings.TrimPrefix(text, "data:"), " "))
				case text == "" && len(data) > 0:
					if !yield(SSEEvent{Event: event, Data: []byte(strings.Join(data, "\n"))}, nil) {
						return
					}
					event, data = "", nil
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					if len(data) > 0 {
						yield(SSEEvent{Event: event, Data: []byte(strings.Join(data, "\n"))}, nil)
					}
					return
				}
				yield(SSEEvent{}, fmt.Errorf("failed to read event stream: %w", err))
				return
			}
		}
	}
}
