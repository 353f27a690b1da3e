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

import "errors"

var (
	// ErrUnauthorized is returned when authentication is required but not provided.
	ErrUnauthorized = errors.New("unauthorized: authentication required")

	// ErrInvalidToken wraps every validation failure.
	ErrInvalidToken = errors.New("invalid token")

	ErrTokenExpired = errors.New("token expired")

	// ErrAccessDenied is returned by the token endpoint for bad client credentials.
	ErrAccessDenied = errors.New("access denied")
)

// Messages written by the HTTP middleware.
const (
	msgMissingToken = "Missing Bearer token"
	msgInvalidToken = "Invalid token"
)
