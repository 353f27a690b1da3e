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

// Package auth protects agent endpoints with JWT bearer tokens.
//
// The server side validates tokens against a JWKS endpoint (JWTValidator)
// in plain HTTP middleware, then bridges the claims to a2a-go through a
// CallInterceptor and to gRPC through server interceptors. The client side
// obtains tokens with the OAuth2 client credentials grant (TokenSource).
// Issuer is a small local authority for development and tests.
//
// Configuration:
//
//	server:
//	  auth:
//	    enabled: true
//	    jwks_url: "http://localhost:9000/.well-known/jwks.json"
//	    issuer: "http://localhost:9000/"
//	    audience: "a2a-agent"
package auth

import "context"

type contextKey string

// ClaimsContextKey is the context key for validated claims.
const ClaimsContextKey contextKey = "a2alab_auth_claims"

// Claims are the validated claims of a bearer token.
type Claims struct {
	Subject  string         `json:"sub"`
	Email    string         `json:"email,omitempty"`
	Role     string         `json:"role,omitempty"`
	TenantID string         `json:"tenant_id,omitempty"`
	Scope    string         `json:"scope,omitempty"`
	Custom   map[string]any `json:"-"`
}

// GetClaim returns a claim that has no dedicated field.
func (c *Claims) GetClaim(key string) (any, bool) {
	if c.Custom == nil {
		return nil, false
	}
	val, ok := c.Custom[key]
	return val, ok
}

// ClaimsFromContext returns nil when the request was not authenticated.
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsContextKey).(*Claims); ok {
		return claims
	}
	return nil
}

func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsContextKey, claims)
}
