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

package versioning

import (
	"log/slog"
	"net/http"
	"strings"
)

// Gate rejects /v1 requests whose A2A-Version header is missing, not
// supported by policy, or does not match the extended card path used.
// Other paths pass through.
func Gate(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if !strings.HasPrefix(path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			requested, present := r.Header[http.CanonicalHeaderKey(HeaderName)]
			if !present || len(requested) == 0 {
				MissingVersion().Write(w)
				return
			}
			version := strings.TrimSpace(requested[0])

			if !policy.Supports(version) {
				slog.Debug("Rejected protocol version", "requested", version, "path", path)
				VersionNotSupported(version, policy.SupportedVersions).Write(w)
				return
			}

			if path == ExtendedCardPathV03 && version != Version03 {
				WrongEndpoint(version, ExtendedCardPathV10).Write(w)
				return
			}
			if path == ExtendedCardPathV10 && version != Version10 {
				WrongEndpoint(version, ExtendedCardPathV03).Write(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
