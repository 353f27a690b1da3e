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

	"github.com/a2aproject/a2a-go/a2asrv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Interceptor copies the claims set by Middleware (HTTP) or the gRPC
// server interceptors into CallContext.User, so executors see who called.
type Interceptor struct {
	// RequireAuth rejects calls that carry no claims.
	RequireAuth bool
}

var _ a2asrv.CallInterceptor = (*Interceptor)(nil)

func NewInterceptor(requireAuth bool) *Interceptor {
	return &Interceptor{RequireAuth: requireAuth}
}

func (i *Interceptor) Before(ctx context.Context, callCtx *a2asrv.CallContext, _ *a2asrv.Request) (context.Context, error) {
	claims := ClaimsFromContext(ctx)
	if claims != nil {
		callCtx.User = &AuthenticatedUser{claims: claims}
		return ctx, nil
	}
	if i.RequireAuth {
		return ctx, ErrUnauthorized
	}
	return ctx, nil
}

func (i *Interceptor) After(context.Context, *a2asrv.CallContext, *a2asrv.Response) error {
	return nil
}

// AuthenticatedUser implements a2asrv.User on top of Claims.
type AuthenticatedUser struct {
	claims *Claims
}

var _ a2asrv.User = (*AuthenticatedUser)(nil)

func (u *AuthenticatedUser) Name() string {
	if u.claims == nil {
		return ""
	}
	return u.claims.Subject
}

func (u *AuthenticatedUser) Authenticated() bool { return true }

func (u *AuthenticatedUser) Claims() *Claims { return u.claims }

// UserFromCallContext returns nil for anonymous calls.
func UserFromCallContext(callCtx *a2asrv.CallContext) *AuthenticatedUser {
	if callCtx == nil || callCtx.User == nil {
		return nil
	}
	user, _ := callCtx.User.(*AuthenticatedUser)
	return user
}

// UnaryServerInterceptor validates the "authorization" metadata of unary calls.
func UnaryServerInterceptor(validator TokenValidator) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx, err := authenticate(ctx, validator)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor validates the "authorization" metadata of streams.
func StreamServerInterceptor(validator TokenValidator) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx, err := authenticate(ss.Context(), validator)
		if err != nil {
			return err
		}
		return handler(srv, &authenticatedStream{ServerStream: ss, ctx: ctx})
	}
}

func authenticate(ctx context.Context, validator TokenValidator) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, msgMissingToken)
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ctx, status.Error(codes.Unauthenticated, msgMissingToken)
	}
	token := BearerToken(values[0])
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, msgMissingToken)
	}

	claims, err := validator.ValidateToken(ctx, token)
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, msgInvalidToken)
	}
	return ContextWithClaims(ctx, claims), nil
}

type authenticatedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *authenticatedStream) Context() context.Context { return s.ctx }

// PerRPCCredentials attaches a bearer token from a TokenSource to every
// outgoing gRPC call.
type PerRPCCredentials struct {
	Source TokenSource
}

func (c PerRPCCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token, err := c.Source.Token(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": "Bearer " + token}, nil
}

// RequireTransportSecurity is false: the demo agents run over plaintext gRPC.
func (c PerRPCCredentials) RequireTransportSecurity() bool { return false }
