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

package server

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/a2alab/pkg/agents"
	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/observability"
	"github.com/kadirpekel/a2alab/pkg/protocol"
	"github.com/kadirpekel/a2alab/pkg/versioning"
)

const healthPath = "/health"

// Handler returns the complete HTTP handler, middleware included.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(loggingMiddleware)
	r.Use(observability.HTTPMiddleware(s.tracer, s.metrics))
	r.Use(corsMiddleware(s.cfg.CORSOrigins))
	if s.cfg.Versioning.Enabled {
		r.Use(versioning.Gate(versioning.PolicyFor(s.cfg.Versioning.Mode)))
	}
	if s.authValidator != nil {
		excluded := slices.Clone(s.cfg.Auth.ExcludedPaths)
		excluded = append(excluded, healthPath, a2asrv.WellKnownAgentCardPath, protocol.PathDownloads)
		if s.metrics != nil {
			excluded = append(excluded, "/metrics")
		}
		if s.profile.ExtendedCard != nil {
			// checked by handleExtendedCard
			excluded = append(excluded, versioning.PolicyFor(s.cfg.Versioning.Mode).ExtendedCardPath)
		}
		r.Use(auth.Middleware(s.authValidator, excluded...))
		slog.Info("Authentication enabled", "excluded_paths", excluded)
	}

	r.Get(healthPath, s.handleHealth)
	r.Method(http.MethodGet, a2asrv.WellKnownAgentCardPath, a2asrv.NewStaticAgentCardHandler(s.card))

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	if s.downloads != nil {
		r.Method(http.MethodGet, protocol.PathDownloads, s.downloads.Handler(agents.DownloadName))
	}

	if s.cfg.HasTransport(config.TransportJSONRPC) {
		jsonrpc := a2asrv.NewJSONRPCHandler(s.handler)
		r.Method(http.MethodPost, "/", jsonrpc)
		r.Method(http.MethodPost, "/jsonrpc", jsonrpc)
	}

	if s.cfg.HasTransport(config.TransportREST) {
		r.Post(protocol.PathSend, s.handleSend)
		r.Post(protocol.PathStream, s.handleStream)
		r.Get(protocol.PathTasks, s.handleListTasks)
		r.Get(protocol.PathTasks+"/{idAction}", s.handleTaskGet)
		r.Post(protocol.PathTasks+"/{idAction}", s.handleTaskPost)
		if s.pushConfigs != nil {
			r.Post(protocol.PathTasks+"/{id}/pushNotificationConfigs", s.handleSetPushConfig)
			r.Get(protocol.PathTasks+"/{id}/pushNotificationConfigs", s.handleListPushConfigs)
			r.Delete(protocol.PathTasks+"/{id}/pushNotificationConfigs/{configId}", s.handleDeletePushConfig)
		}
	}

	if s.profile.ExtendedCard != nil {
		r.Get(versioning.PolicyFor(s.cfg.Versioning.Mode).ExtendedCardPath, s.handleExtendedCard)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	protocol.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok", "agent": s.profile.Name})
}

// handleExtendedCard serves the private card to callers with a bearer
// token. Without a validator any bearer token is accepted.
func (s *Server) handleExtendedCard(w http.ResponseWriter, r *http.Request) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		protocol.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Missing Bearer token"})
		return
	}
	if s.authValidator != nil {
		if _, err := s.authValidator.ValidateToken(r.Context(), token); err != nil {
			slog.Debug("Rejected extended card token", "error", err)
			protocol.WriteJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid token"})
			return
		}
	}
	protocol.WriteJSON(w, http.StatusOK, s.extendedCard())
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(origins) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "" && (slices.Contains(origins, "*") || slices.Contains(origins, origin)):
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", strings.Join([]string{
				"Content-Type", "Authorization", versioning.HeaderName, protocol.ExtensionsHeader,
			}, ", "))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
		)
	})
}
