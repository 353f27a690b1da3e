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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/observability"
)

// Delivery outcomes, used as the metric label.
const (
	OutcomeDelivered = "delivered"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Dispatcher posts task snapshots to registered webhooks.
//
// Each task has at most one worker goroutine draining its queue, so a
// webhook sees the snapshots of one task in save order. Different tasks
// are delivered concurrently.
type Dispatcher struct {
	configs *ConfigStore
	client  *httpclient.Client
	metrics *observability.Metrics

	mu     sync.Mutex
	queues map[a2a.TaskID][]*a2a.Task
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithHTTPClient(c *httpclient.Client) DispatcherOption {
	return func(d *Dispatcher) { d.client = c }
}

func WithMetrics(m *observability.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(configs *ConfigStore, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		configs: configs,
		queues:  make(map[a2a.TaskID][]*a2a.Task),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.client == nil {
		d.client = httpclient.New(
			httpclient.WithTimeout(10*time.Second),
			httpclient.WithMaxRetries(2),
			httpclient.WithBaseDelay(500*time.Millisecond),
		)
	}
	return d
}

// OnSave enqueues task for delivery. It matches taskstore.SaveHook.
func (d *Dispatcher) OnSave(_ context.Context, task *a2a.Task) {
	if len(d.configs.List(context.Background(), task.ID)) == 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}

	queue, running := d.queues[task.ID]
	d.queues[task.ID] = append(queue, task)
	if running {
		return
	}

	d.wg.Add(1)
	go d.drain(task.ID)
}

// drain delivers queued snapshots until the task's queue is empty. The
// queue entry exists exactly while a worker runs.
func (d *Dispatcher) drain(taskID a2a.TaskID) {
	defer d.wg.Done()

	for {
		d.mu.Lock()
		queue := d.queues[taskID]
		if len(queue) == 0 {
			delete(d.queues, taskID)
			d.mu.Unlock()
			return
		}
		task := queue[0]
		d.queues[taskID] = queue[1:]
		d.mu.Unlock()

		for _, cfg := range d.configs.List(context.Background(), taskID) {
			d.deliver(context.Background(), cfg, task)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, cfg Config, task *a2a.Task) {
	outcome, err := d.post(ctx, cfg, task)
	d.metrics.RecordPushDelivery(ctx, outcome)

	if err != nil {
		slog.Warn("Push notification failed",
			"task_id", task.ID, "config_id", cfg.ID, "url", cfg.URL,
			"outcome", outcome, "error", err)
		return
	}
	slog.Debug("Push notification delivered",
		"task_id", task.ID, "state", task.Status.State, "url", cfg.URL)
}

func (d *Dispatcher) post(ctx context.Context, cfg Config, task *a2a.Task) (string, error) {
	body, err := json.Marshal(task)
	if err != nil {
		return OutcomeError, fmt.Errorf("failed to encode task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return OutcomeError, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Token != "" {
		req.Header.Set(TokenHeader, cfg.Token)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return OutcomeError, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OutcomeRejected, fmt.Errorf("webhook answered HTTP %d", resp.StatusCode)
	}
	return OutcomeDelivered, nil
}

// Close stops accepting work and waits for pending deliveries.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}
