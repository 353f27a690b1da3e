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
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/kadirpekel/a2alab/pkg/config"
)

const (
	testAudience = "a2a-agent"
	testClient   = "a2a-client"
	testSecret   = "a2a-secret"
)

// setupIssuer starts an Issuer on an httptest server and returns it with
// a validator that trusts it.
func setupIssuer(t *testing.T) (*Issuer, *httptest.Server, *JWTValidator) {
	t.Helper()

	issuer, err := NewIssuer(IssuerConfig{
		Audience: testAudience,
		Clients:  map[string]string{testClient: testSecret},
	})
	require.NoError(t, err)

	srv := httptest.NewServer(issuer.Routes())
	t.Cleanup(srv.Close)
	issuer.SetURL(srv.URL + "/")

	validator, err := NewJWTValidator(context.Background(), srv.URL+JWKSPath, srv.URL+"/", testAudience, time.Minute)
	require.NoError(t, err)
	t.Cleanup(validator.Close)

	return issuer, srv, validator
}

func TestJWTValidator_ValidateToken(t *testing.T) {
	issuer, _, validator := setupIssuer(t)
	ctx := context.Background()

	token, err := issuer.Issue("user-1", "", map[string]any{"email": "a@example.com", "role": "admin", "team": "blue"})
	require.NoError(t, err)

	claims, err := validator.ValidateToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "a@example.com", claims.Email)
	assert.Equal(t, "admin", claims.Role)
	team, ok := claims.GetClaim("team")
	assert.True(t, ok)
	assert.Equal(t, "blue", team)
	_, ok = claims.GetClaim("iss")
	assert.False(t, ok)

	tests := []struct {
		name  string
		token func() string
	}{
		{"garbage", func() string { return "not-a-jwt" }},
		{"wrong audience", func() string {
			tok, err := issuer.Issue("user-1", "someone-else", nil)
			require.NoError(t, err)
			return tok
		}},
		{"expired", func() string {
			issuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
			defer func() { issuer.now = time.Now }()
			tok, err := issuer.Issue("user-1", "", nil)
			require.NoError(t, err)
			return tok
		}},
		{"foreign key", func() string {
			other, err := NewIssuer(IssuerConfig{URL: issuer.URL(), Audience: testAudience})
			require.NoError(t, err)
			tok, err := other.Issue("user-1", "", nil)
			require.NoError(t, err)
			return tok
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateToken(ctx, tt.token())
			require.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestNewJWTValidator_FailsWithoutKeys(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := NewJWTValidator(context.Background(), srv.URL+JWKSPath, "iss", "aud", time.Minute)
	require.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	issuer, _, validator := setupIssuer(t)
	token, err := issuer.Issue("user-1", "", nil)
	require.NoError(t, err)

	var seen *Claims
	handler := Middleware(validator, "/health", "/.well-known/agent-card.json")(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = ClaimsFromContext(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
		wantError  string
	}{
		{"excluded path", "/health", "", http.StatusOK, ""},
		{"excluded path with slash", "/health/", "", http.StatusOK, ""},
		{"missing header", "/v1/message:send", "", http.StatusUnauthorized, "Missing Bearer token"},
		{"basic scheme", "/v1/message:send", "Basic dXNlcjpwdw==", http.StatusUnauthorized, "Missing Bearer token"},
		{"bad token", "/v1/message:send", "Bearer nope", http.StatusUnauthorized, "Invalid token"},
		{"valid token", "/v1/message:send", "Bearer " + token, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantError != "" {
				var body map[string]string
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tt.wantError, body["error"])
			}
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "user-1", seen.Subject)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Empty(t, BearerToken("abc"))
	assert.Empty(t, BearerToken("Token abc"))
	assert.Empty(t, BearerToken(""))
}

func TestInterceptor(t *testing.T) {
	ctx := context.Background()

	callCtx := &a2asrv.CallContext{}
	_, err := NewInterceptor(true).Before(ctx, callCtx, &a2asrv.Request{})
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = NewInterceptor(false).Before(ctx, callCtx, &a2asrv.Request{})
	require.NoError(t, err)
	assert.Nil(t, UserFromCallContext(callCtx))

	ctx = ContextWithClaims(ctx, &Claims{Subject: "user-1"})
	_, err = NewInterceptor(true).Before(ctx, callCtx, &a2asrv.Request{})
	require.NoError(t, err)

	user := UserFromCallContext(callCtx)
	require.NotNil(t, user)
	assert.Equal(t, "user-1", user.Name())
	assert.True(t, user.Authenticated())
}

func TestUnaryServerInterceptor(t *testing.T) {
	issuer, _, validator := setupIssuer(t)
	token, err := issuer.Issue("svc", "", nil)
	require.NoError(t, err)

	intercept := UnaryServerInterceptor(validator)
	handler := func(ctx context.Context, _ any) (any, error) {
		return ClaimsFromContext(ctx).Subject, nil
	}

	_, err = intercept(context.Background(), nil, &grpc.UnaryServerInfo{}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	badCtx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer junk"))
	_, err = intercept(badCtx, nil, &grpc.UnaryServerInfo{}, handler)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	okCtx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("authorization", "Bearer "+token))
	sub, err := intercept(okCtx, nil, &grpc.UnaryServerInfo{}, handler)
	require.NoError(t, err)
	assert.Equal(t, "svc", sub)
}

func TestClientCredentialsSource(t *testing.T) {
	issuer, srv, validator := setupIssuer(t)

	var calls atomic.Int32
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		issuer.Routes().ServeHTTP(w, r)
	}))
	defer counting.Close()

	src := NewClientCredentialsSource(config.ClientCredentials{
		TokenURL:     counting.URL + TokenPath,
		ClientID:     testClient,
		ClientSecret: testSecret,
		Audience:     testAudience,
	}, nil)

	ctx := context.Background()
	first, err := src.Token(ctx)
	require.NoError(t, err)
	second, err := src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	claims, err := validator.ValidateToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, testClient+"@clients", claims.Subject)

	// past the renewal margin a new token is fetched
	src.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = src.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	bad := NewClientCredentialsSource(config.ClientCredentials{
		TokenURL:     srv.URL + TokenPath,
		ClientID:     testClient,
		ClientSecret: "wrong",
	}, nil)
	_, err = bad.Token(ctx)
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestIssuer_TokenEndpoint(t *testing.T) {
	_, srv, _ := setupIssuer(t)

	post := func(body string) (*http.Response, map[string]any) {
		resp, err := http.Post(srv.URL+TokenPath, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp, out
	}

	resp, out := post(`{"grant_type":"client_credentials","client_id":"a2a-client","client_secret":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "access_denied", out["error"])

	resp, out = post(`{"grant_type":"password"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unsupported_grant_type", out["error"])

	resp, out = post(`{"grant_type":"client_credentials","client_id":"a2a-client","client_secret":"a2a-secret","audience":"a2a-agent"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Bearer", out["token_type"])
	assert.EqualValues(t, 3600, out["expires_in"])

	info, err := Describe(out["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "a2a-client@clients", info.Subject)
	assert.Equal(t, []string{"a2a-agent"}, info.Audience)
	assert.WithinDuration(t, time.Now().Add(time.Hour), info.ExpiresAt, time.Minute)
	assert.True(t, strings.HasPrefix(info.String(), "sub=a2a-client@clients"))

	discovery, err := http.Get(srv.URL + OpenIDConfigPath)
	require.NoError(t, err)
	defer discovery.Body.Close()
	var meta map[string]any
	require.NoError(t, json.NewDecoder(discovery.Body).Decode(&meta))
	assert.Equal(t, srv.URL+JWKSPath, meta["jwks_uri"])
}

func TestDescribe_RejectsGarbage(t *testing.T) {
	_, err := Describe("a.b")
	require.ErrorIs(t, err, ErrInvalidToken)
}
