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

// Package push delivers task updates to client webhooks.
//
// Clients register a webhook per task (ConfigStore). The Dispatcher is
// hooked into task saves and posts the task JSON to every registered
// webhook, in save order. Receiver is the matching webhook endpoint used
// by the demo client.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"
)

// TokenHeader carries the per-config token on every notification.
const TokenHeader = "X-A2A-Notification-Token"

var ErrConfigNotFound = errors.New("push notification config not found")

// Config is one webhook registration.
type Config struct {
	ID     string     `json:"id"`
	TaskID a2a.TaskID `json:"taskId"`
	URL    string     `json:"url"`
	Token  string     `json:"token,omitempty"`
}

// ConfigStore keeps webhook registrations in memory.
type ConfigStore struct {
	mu     sync.RWMutex
	byTask map[a2a.TaskID][]Config
}

func NewConfigStore() *ConfigStore {
	return &ConfigStore{byTask: make(map[a2a.TaskID][]Config)}
}

// Set stores cfg, replacing a config with the same id. An empty id gets a
// fresh uuid. The task does not need to exist yet.
func (s *ConfigStore) Set(_ context.Context, cfg Config) (Config, error) {
	if cfg.TaskID == "" {
		return Config{}, fmt.Errorf("%w: task id is required", a2a.ErrInvalidParams)
	}
	u, err := url.Parse(cfg.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Config{}, fmt.Errorf("%w: webhook url must be an absolute http(s) url", a2a.ErrInvalidParams)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	configs := s.byTask[cfg.TaskID]
	for i, existing := range configs {
		if existing.ID == cfg.ID {
			configs[i] = cfg
			return cfg, nil
		}
	}
	s.byTask[cfg.TaskID] = append(configs, cfg)
	return cfg, nil
}

func (s *ConfigStore) Get(_ context.Context, taskID a2a.TaskID, id string) (Config, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, cfg := range s.byTask[taskID] {
		if cfg.ID == id {
			return cfg, nil
		}
	}
	return Config{}, ErrConfigNotFound
}

// List returns the configs of a task, never nil.
func (s *ConfigStore) List(_ context.Context, taskID a2a.TaskID) []Config {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Config, len(s.byTask[taskID]))
	copy(out, s.byTask[taskID])
	return out
}

func (s *ConfigStore) Delete(_ context.Context, taskID a2a.TaskID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	configs := s.byTask[taskID]
	for i, cfg := range configs {
		if cfg.ID == id {
			s.byTask[taskID] = append(configs[:i:i], configs[i+1:]...)
			if len(s.byTask[taskID]) == 0 {
				delete(s.byTask, taskID)
			}
			return nil
		}
	}
	return ErrConfigNotFound
}
