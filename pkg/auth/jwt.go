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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kadirpekel/a2alab/pkg/config"
)

// TokenValidator validates a raw bearer token.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// JWTValidator validates tokens against a JWKS endpoint. Keys are cached
// and refreshed in the background to follow key rotation.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
	cancel   context.CancelFunc
}

var _ TokenValidator = (*JWTValidator)(nil)

// NewJWTValidator fetches the key set once and fails when it cannot.
func NewJWTValidator(ctx context.Context, jwksURL, issuer, audience string, refresh time.Duration) (*JWTValidator, error) {
	if refresh <= 0 {
		refresh = 15 * time.Minute
	}

	cacheCtx, cancel := context.WithCancel(context.Background())
	cache := jwk.NewCache(cacheCtx)

	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(refresh)); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	return &JWTValidator{
		jwksURL:  jwksURL,
		cache:    cache,
		issuer:   issuer,
		audience: audience,
		cancel:   cancel,
	}, nil
}

// NewValidatorFromConfig returns nil when auth is disabled.
func NewValidatorFromConfig(ctx context.Context, cfg config.AuthConfig) (*JWTValidator, error) {
	if !cfg.IsEnabled() {
		return nil, nil
	}
	return NewJWTValidator(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience, cfg.RefreshInterval)
}

// ValidateToken checks signature, expiry, issuer and audience.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	opts := []jwt.ParseOption{
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired()) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claimsFromToken(ctx, token), nil
}

func claimsFromToken(ctx context.Context, token jwt.Token) *Claims {
	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}

	for iter := token.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		key, _ := pair.Key.(string)
		s, isString := pair.Value.(string)

		switch key {
		case "email":
			if isString {
				claims.Email = s
			}
		case "role":
			if isString {
				claims.Role = s
			}
		case "tenant_id":
			if isString {
				claims.TenantID = s
			}
		case "scope":
			if isString {
				claims.Scope = s
			}
		case jwt.SubjectKey, jwt.IssuerKey, jwt.AudienceKey, jwt.ExpirationKey,
			jwt.IssuedAtKey, jwt.NotBeforeKey, jwt.JwtIDKey:
		default:
			claims.Custom[key] = pair.Value
		}
	}
	return claims
}

// Close stops the background key refresh.
func (v *JWTValidator) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}
