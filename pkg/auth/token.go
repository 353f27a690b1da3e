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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/kadirpekel/a2alab/pkg/config"
	"github.com/kadirpekel/a2alab/pkg/httpclient"
)

// TokenSource hands out bearer tokens for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed token.
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

// expiryMargin renews cached tokens this long before they expire.
const expiryMargin = 30 * time.Second

// ClientCredentialsSource implements the OAuth2 client credentials grant
// with a JSON token request. Tokens are cached until shortly before expiry.
type ClientCredentialsSource struct {
	creds  config.ClientCredentials
	client *httpclient.Client
	now    func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewClientCredentialsSource(creds config.ClientCredentials, client *httpclient.Client) *ClientCredentialsSource {
	if client == nil {
		client = httpclient.New(httpclient.WithTimeout(15*time.Second), httpclient.WithMaxRetries(1))
	}
	return &ClientCredentialsSource{creds: creds, client: client, now: time.Now}
}

type tokenRequest struct {
	GrantType    string `json:"grant_type"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Audience     string `json:"audience,omitempty"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

func (s *ClientCredentialsSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expires) {
		return s.token, nil
	}

	body, err := json.Marshal(tokenRequest{
		GrantType:    "client_credentials",
		ClientID:     s.creds.ClientID,
		ClientSecret: s.creds.ClientSecret,
		Audience:     s.creds.Audience,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.creds.TokenURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return "", fmt.Errorf("%w: HTTP %d: %s", ErrAccessDenied, resp.StatusCode, raw)
		}
		return "", fmt.Errorf("token endpoint answered HTTP %d: %s", resp.StatusCode, raw)
	}

	var tr tokenResponse
	if err := json.Unmarshal(raw, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response carries no access_token")
	}

	s.token = tr.AccessToken
	s.expires = s.now().Add(time.Duration(tr.ExpiresIn)*time.Second - expiryMargin)
	return s.token, nil
}

// TokenInfo is what Describe reads from a token.
type TokenInfo struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
}

func (i TokenInfo) String() string {
	exp := "never"
	if !i.ExpiresAt.IsZero() {
		exp = i.ExpiresAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf("sub=%s iss=%s aud=%v exp=%s", i.Subject, i.Issuer, i.Audience, exp)
}

// Describe decodes a token without verifying it. It is meant for display only.
func Describe(token string) (TokenInfo, error) {
	claims := gojwt.MapClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var info TokenInfo
	info.Subject, _ = claims.GetSubject()
	info.Issuer, _ = claims.GetIssuer()
	if aud, err := claims.GetAudience(); err == nil {
		info.Audience = aud
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	return info, nil
}
