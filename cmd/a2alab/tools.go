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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kadirpekel/a2alab/pkg/auth"
	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/fileserver"
	"github.com/kadirpekel/a2alab/pkg/push"
)

// serveHTTP serves handler on addr until ctx is canceled.
func serveHTTP(ctx context.Context, addr string, handler http.Handler) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/", handler)

	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// WebhookCmd prints every push notification it receives.
type WebhookCmd struct {
	Host string `default:"localhost" help:"Host to bind."`
	Port int    `default:"3000" help:"Port to listen on."`
}

func (c *WebhookCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	receiver := push.NewReceiver(os.Stdout, nil)
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	fmt.Printf("Webhook listening on http://%s/webhook\n", addr)
	return serveHTTP(ctx, addr, receiver.Routes())
}

// FileServerCmd serves a directory read-only.
type FileServerCmd struct {
	Dir  string `default:"." type:"existingdir" help:"Directory to serve."`
	Host string `default:"localhost" help:"Host to bind."`
	Port int    `default:"3000" help:"Port to listen on."`
}

func (c *FileServerCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	dir, err := fileserver.NewDir(c.Dir)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	fmt.Printf("Serving %s on http://%s/\n", dir.Root(), addr)
	return serveHTTP(ctx, addr, dir.Routes())
}

// AuthServerCmd runs the local OAuth2 authority that signs demo tokens.
type AuthServerCmd struct {
	Host         string        `default:"localhost" help:"Host to bind."`
	Port         int           `default:"9000" help:"Port to listen on."`
	Issuer       string        `help:"iss claim (default http://host:port/)."`
	ClientID     string        `name:"client-id" env:"AUTH_CLIENT_ID" default:"a2a-client" help:"Accepted client id."`
	ClientSecret string        `name:"client-secret" env:"AUTH_CLIENT_SECRET" default:"a2a-secret" help:"Secret of the client."`
	Audience     string        `env:"AUTH_AUDIENCE" default:"a2a-agent" help:"Default aud claim."`
	TTL          time.Duration `default:"1h" help:"Token lifetime."`
}

func (c *AuthServerCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()

	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	issuerURL := c.Issuer
	if issuerURL == "" {
		issuerURL = "http://" + addr + "/"
	}

	issuer, err := auth.NewIssuer(auth.IssuerConfig{
		URL:      issuerURL,
		Audience: c.Audience,
		Clients:  map[string]string{c.ClientID: c.ClientSecret},
		TTL:      c.TTL,
	})
	if err != nil {
		return err
	}

	slog.Info("Auth server starting", "address", addr, "issuer", issuerURL, "client_id", c.ClientID)
	fmt.Printf("JWKS:  http://%s%s\n", addr, auth.JWKSPath)
	fmt.Printf("Token: http://%s%s\n", addr, auth.TokenPath)
	return serveHTTP(ctx, addr, issuer.Routes())
}

// TokenCmd runs the client credentials flow and describes the token.
type TokenCmd struct {
	Raw bool `help:"Print only the raw access token."`
}

func (c *TokenCmd) Run() error {
	ctx, stop := signalContext()
	defer stop()
	return c.run(ctx, config.ClientCredentialsFromEnv(), os.Stdout)
}

func (c *TokenCmd) run(ctx context.Context, creds config.ClientCredentials, w io.Writer) error {
	if err := creds.Validate(); err != nil {
		return err
	}
	token, err := auth.NewClientCredentialsSource(creds, nil).Token(ctx)
	if err != nil {
		return err
	}
	if c.Raw {
		fmt.Fprintln(w, token)
		return nil
	}

	info, err := auth.Describe(token)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "token endpoint: %s\n", creds.TokenURL)
	fmt.Fprintf(w, "client id:      %s\n", creds.ClientID)
	fmt.Fprintf(w, "token:          %s\n", info)
	fmt.Fprintf(w, "access_token:   %s\n", token)
	return nil
}
