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

// Package server hosts one agent profile over JSON-RPC, HTTP+JSON and gRPC.
//
// The a2a-go request handler does the protocol work for every transport.
// This package adds the REST binding, task listing, push notification
// configs, the extended agent card, the protocol-version gate and the
// usual operational endpoints (health, metrics).
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/kadirpekel/a2alab/pkg/agents"
	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/fileserver"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
	"github.com/kadirpekel/a2alab/pkg/observability"
	"github.com/kadirpekel/a2alab/pkg/push"
	"github.com/kadirpekel/a2alab/pkg/taskstore"
)

// Server serves one agent profile.
type Server struct {
	cfg     *config.ServerConfig
	profile *agents.Profile
	card    *a2a.AgentCard

	store         *taskstore.Observed
	handler       a2asrv.RequestHandler
	authValidator auth.TokenValidator
	pushConfigs   *push.ConfigStore
	dispatcher    *push.Dispatcher
	metrics       *observability.Metrics
	tracer        *observability.Tracer
	downloads     *fileserver.Downloads

	mu           sync.Mutex
	httpServer   *http.Server
	grpcServer   *grpc.Server
	httpListener net.Listener
	grpcListener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithTaskStore replaces the default in-memory task store.
func WithTaskStore(store taskstore.Store) Option {
	return func(s *Server) {
		s.store = taskstore.NewObserved(store)
	}
}

// WithAuthValidator enables bearer authentication on A2A routes and gRPC.
func WithAuthValidator(validator auth.TokenValidator) Option {
	return func(s *Server) {
		s.authValidator = validator
	}
}

// WithPushNotifier enables push notification configs. Task saves are
// forwarded to dispatcher; a nil dispatcher gets a default one.
func WithPushNotifier(configs *push.ConfigStore, dispatcher *push.Dispatcher) Option {
	return func(s *Server) {
		s.pushConfigs = configs
		s.dispatcher = dispatcher
	}
}

// WithMetrics records HTTP and task metrics and serves /metrics.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

func WithTracer(tracer *observability.Tracer) Option {
	return func(s *Server) {
		s.tracer = tracer
	}
}

// WithDownloads overrides the profile's download registry.
func WithDownloads(downloads *fileserver.Downloads) Option {
	return func(s *Server) {
		s.downloads = downloads
	}
}

// New builds a server for profile. cfg must have its defaults applied.
func New(cfg *config.ServerConfig, profile *agents.Profile, opts ...Option) (*Server, error) {
	if profile == nil || profile.Executor == nil || profile.Card == nil {
		return nil, errors.New("profile with executor and card is required")
	}

	s := &Server{
		cfg:       cfg,
		profile:   profile,
		downloads: profile.Downloads,
	}
	for _, opt := range opts {
		opt(s)
	}

	if profile.RequireAuth && s.authValidator == nil {
		return nil, fmt.Errorf("profile %s requires authentication but no token validator is configured", profile.Name)
	}

	if s.store == nil {
		s.store = taskstore.NewObserved(taskstore.NewMemory())
	}
	if s.metrics != nil {
		s.store.OnSave(s.recordTask)
	}

	if s.pushConfigs == nil && cfg.Push.Enabled {
		s.pushConfigs = push.NewConfigStore()
	}
	if s.pushConfigs != nil {
		if s.dispatcher == nil {
			s.dispatcher = push.NewDispatcher(s.pushConfigs,
				push.WithMetrics(s.metrics),
				push.WithHTTPClient(httpclient.New(
					httpclient.WithTimeout(cfg.Push.Timeout),
					httpclient.WithMaxRetries(cfg.Push.MaxRetries),
				)),
			)
		}
		s.store.OnSave(s.dispatcher.OnSave)
	}

	s.card = s.buildCard()

	var handlerOpts []a2asrv.RequestHandlerOption
	handlerOpts = append(handlerOpts, a2asrv.WithTaskStore(s.store))
	if s.authValidator != nil {
		handlerOpts = append(handlerOpts, a2asrv.WithCallInterceptor(auth.NewInterceptor(true)))
	}
	s.handler = a2asrv.NewHandler(profile.Executor, handlerOpts...)

	return s, nil
}

func (s *Server) recordTask(ctx context.Context, task *a2a.Task) {
	if task.Status.State.Terminal() {
		s.metrics.RecordTask(ctx, s.profile.Name, string(task.Status.State))
	}
}

// Card returns the public agent card.
func (s *Server) Card() *a2a.AgentCard { return s.card }

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	httpListener, err := net.Listen("tcp", s.cfg.Address())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address(), err)
	}

	var grpcListener net.Listener
	if s.cfg.HasTransport(config.TransportGRPC) {
		grpcListener, err = net.Listen("tcp", s.cfg.GRPCAddress())
		if err != nil {
			_ = httpListener.Close()
			return fmt.Errorf("failed to listen on %s: %w", s.cfg.GRPCAddress(), err)
		}
	}

	s.mu.Lock()
	s.httpListener = httpListener
	s.grpcListener = grpcListener
	s.httpServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Streams stay open as long as the task runs.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}
	if grpcListener != nil {
		s.grpcServer = s.newGRPCServer()
	}
	httpServer, grpcServer := s.httpServer, s.grpcServer
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("HTTP server starting",
			"address", httpListener.Addr().String(),
			"agent", s.card.Name,
			"transports", s.cfg.Transports)
		if err := httpServer.Serve(httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			slog.Info("gRPC server starting", "address", grpcListener.Addr().String())
			if err := grpcServer.Serve(grpcListener); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return s.Shutdown(context.Background())
	})

	return g.Wait()
}

// Shutdown stops both listeners within the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.mu.Lock()
	httpServer, grpcServer := s.httpServer, s.grpcServer
	s.mu.Unlock()

	var errs []error

	if httpServer != nil {
		slog.Info("HTTP server shutting down")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown error: %w", err))
		}
	}

	if grpcServer != nil {
		slog.Info("gRPC server shutting down")
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()

		select {
		case <-stopped:
			slog.Info("gRPC server stopped gracefully")
		case <-shutdownCtx.Done():
			slog.Warn("gRPC graceful stop timeout, forcing shutdown")
			grpcServer.Stop()
		}
	}

	if s.dispatcher != nil {
		s.dispatcher.Close()
	}

	return errors.Join(errs...)
}

// Address returns the HTTP listen address, resolved once listening.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpListener != nil {
		return s.httpListener.Addr().String()
	}
	return s.cfg.Address()
}

// GRPCAddress returns the gRPC listen address, or "" when gRPC is off.
func (s *Server) GRPCAddress() string {
	if !s.cfg.HasTransport(config.TransportGRPC) {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.grpcListener != nil {
		return s.grpcListener.Addr().String()
	}
	return s.cfg.GRPCAddress()
}
