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

package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Paths served by Issuer.
const (
	JWKSPath          = "/.well-known/jwks.json"
	TokenPath         = "/oauth/token"
	OpenIDConfigPath  = "/.well-known/openid-configuration"
	defaultTokenTTL   = time.Hour
	defaultIssuerKeys = 2048
)

// IssuerConfig configures the development authority.
type IssuerConfig struct {
	// URL is the iss claim. A trailing slash is kept as given.
	URL string

	// Audience is the aud claim when the request names none.
	Audience string

	// Clients maps client ids to secrets.
	Clients map[string]string

	TTL time.Duration
}

// Issuer is a minimal OAuth2 authority for local runs and tests. It signs
// RS256 tokens for the client credentials grant and publishes its key.
type Issuer struct {
	cfg     IssuerConfig
	private jwk.Key
	public  jwk.Set
	now     func() time.Time
}

func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTokenTTL
	}

	raw, err := rsa.GenerateKey(rand.Reader, defaultIssuerKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to generate signing key: %w", err)
	}

	private, err := jwk.FromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap signing key: %w", err)
	}
	kid := uuid.NewString()
	if err := private.Set(jwk.KeyIDKey, kid); err != nil {
		return nil, err
	}
	if err := private.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		return nil, err
	}

	public, err := jwk.PublicKeyOf(private)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	if err := public.Set(jwk.KeyUsageKey, jwk.ForSignature); err != nil {
		return nil, err
	}
	set := jwk.NewSet()
	if err := set.AddKey(public); err != nil {
		return nil, err
	}

	return &Issuer{cfg: cfg, private: private, public: set, now: time.Now}, nil
}

// SetURL changes the iss claim, for servers whose address is known only
// after they start listening.
func (i *Issuer) SetURL(url string) { i.cfg.URL = url }

func (i *Issuer) URL() string { return i.cfg.URL }

// Issue signs a token for subject.
func (i *Issuer) Issue(subject, audience string, extra map[string]any) (string, error) {
	if audience == "" {
		audience = i.cfg.Audience
	}
	now := i.now()

	tok := jwt.New()
	claims := map[string]any{
		jwt.IssuerKey:     i.cfg.URL,
		jwt.SubjectKey:    subject,
		jwt.AudienceKey:   []string{audience},
		jwt.IssuedAtKey:   now,
		jwt.ExpirationKey: now.Add(i.cfg.TTL),
	}
	for k, v := range extra {
		claims[k] = v
	}
	for k, v := range claims {
		if err := tok.Set(k, v); err != nil {
			return "", fmt.Errorf("failed to set claim %s: %w", k, err)
		}
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, i.private))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return string(signed), nil
}

// Routes serves the key set, the token endpoint and discovery metadata.
func (i *Issuer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get(JWKSPath, i.handleJWKS)
	r.Post(TokenPath, i.handleToken)
	r.Get(OpenIDConfigPath, i.handleDiscovery)
	return r
}

func (i *Issuer) handleJWKS(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, i.public)
}

func (i *Issuer) handleDiscovery(w http.ResponseWriter, _ *http.Request) {
	base := strings.TrimSuffix(i.cfg.URL, "/")
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                i.cfg.URL,
		"jwks_uri":                              base + JWKSPath,
		"token_endpoint":                        base + TokenPath,
		"grant_types_supported":                 []string{"client_credentials"},
		"id_token_signing_alg_values_supported": []string{"RS256"},
	})
}

// handleToken accepts a JSON or form encoded client credentials request.
func (i *Issuer) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
		if err := r.ParseForm(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
			return
		}
		req = tokenRequest{
			GrantType:    r.PostForm.Get("grant_type"),
			ClientID:     r.PostForm.Get("client_id"),
			ClientSecret: r.PostForm.Get("client_secret"),
			Audience:     r.PostForm.Get("audience"),
		}
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_request"})
		return
	}

	if req.GrantType != "client_credentials" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported_grant_type"})
		return
	}

	secret, ok := i.cfg.Clients[req.ClientID]
	if !ok || subtle.ConstantTimeCompare([]byte(secret), []byte(req.ClientSecret)) != 1 {
		slog.Warn("Token request denied", "client_id", req.ClientID)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "access_denied"})
		return
	}

	token, err := i.Issue(req.ClientID+"@clients", req.Audience, map[string]any{"gty": "client-credentials"})
	if err != nil {
		slog.Error("Failed to issue token", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "server_error"})
		return
	}

	slog.Info("Token issued", "client_id", req.ClientID)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(i.cfg.TTL / time.Second),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
