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

package push

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/go-chi/chi/v5"
)

// Notification is one received push.
type Notification struct {
	Task  *a2a.Task
	Token string
}

// Receiver is a webhook endpoint that prints every pushed task.
type Receiver struct {
	out    io.Writer
	onTask func(Notification)
	mu     sync.Mutex
}

// NewReceiver prints to out and, when onTask is set, hands every
// notification to it.
func NewReceiver(out io.Writer, onTask func(Notification)) *Receiver {
	return &Receiver{out: out, onTask: onTask}
}

// Routes mounts the receiver at POST /webhook.
func (r *Receiver) Routes() http.Handler {
	router := chi.NewRouter()
	router.Post("/webhook", r.ServeHTTP)
	return router
}

func (r *Receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	var task a2a.Task
	if err := json.NewDecoder(req.Body).Decode(&task); err != nil {
		http.Error(w, `{"error":"invalid task body"}`, http.StatusBadRequest)
		return
	}
	n := Notification{Task: &task, Token: req.Header.Get(TokenHeader)}

	slog.Info("Push received", "task_id", task.ID, "state", task.Status.State)
	r.print(n)
	if r.onTask != nil {
		r.onTask(n)
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func (r *Receiver) print(n Notification) {
	pretty, err := json.MarshalIndent(n.Task, "", "  ")
	if err != nil {
		pretty = []byte(fmt.Sprintf("<unprintable task: %v>", err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out, "\n--- PUSH TASK ---")
	fmt.Fprintf(r.out, "taskId=%s state=%s\n", n.Task.ID, n.Task.Status.State)
	if n.Token != "" {
		fmt.Fprintf(r.out, "token=%s\n", n.Token)
	}
	fmt.Fprintln(r.out, string(pretty))
}
