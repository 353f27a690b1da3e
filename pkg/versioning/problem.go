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
	"encoding/json"
	"fmt"
	"net/http"
)

// ProblemContentType is the RFC 7807 media type.
const ProblemContentType = "application/problem+json"

const (
	problemTypeVersion  = "https://a2a-protocol.org/errors/version-not-supported"
	problemTitleVersion = "Protocol Version Not Supported"
)

// Problem is an RFC 7807 problem document. Extensions are encoded as
// top-level members next to the standard ones.
type Problem struct {
	Type       string
	Title      string
	Status     int
	Detail     string
	Extensions map[string]any
}

func (p *Problem) Error() string {
	return fmt.Sprintf("%s (HTTP %d): %s", p.Title, p.Status, p.Detail)
}

func (p Problem) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(p.Extensions)+4)
	for k, v := range p.Extensions {
		body[k] = v
	}
	body["type"] = p.Type
	body["title"] = p.Title
	body["status"] = p.Status
	body["detail"] = p.Detail
	return json.Marshal(body)
}

func (p *Problem) UnmarshalJSON(data []byte) error {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	*p = Problem{}
	for key, raw := range body {
		var err error
		switch key {
		case "type":
			err = json.Unmarshal(raw, &p.Type)
		case "title":
			err = json.Unmarshal(raw, &p.Title)
		case "status":
			err = json.Unmarshal(raw, &p.Status)
		case "detail":
			err = json.Unmarshal(raw, &p.Detail)
		default:
			var v any
			if err = json.Unmarshal(raw, &v); err == nil {
				if p.Extensions == nil {
					p.Extensions = make(map[string]any)
				}
				p.Extensions[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("problem member %q: %w", key, err)
		}
	}
	return nil
}

// Write sends the problem with its status code.
func (p Problem) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func versionProblem(detail string, extra map[string]any) Problem {
	return Problem{
		Type:       problemTypeVersion,
		Title:      problemTitleVersion,
		Status:     http.StatusBadRequest,
		Detail:     detail,
		Extensions: extra,
	}
}

func MissingVersion() Problem {
	return versionProblem("Missing required A2A-Version header", map[string]any{"header": HeaderName})
}

func VersionNotSupported(requested string, supported []string) Problem {
	return versionProblem(
		fmt.Sprintf("The requested A2A protocol version %s is not supported by this agent", requested),
		map[string]any{"supportedVersions": supported, "requestedVersion": requested},
	)
}

func WrongEndpoint(requested, expectedPath string) Problem {
	return versionProblem(
		fmt.Sprintf("For A2A-Version %s, use %s", requested, expectedPath),
		map[string]any{"requestedVersion": requested, "expectedPath": expectedPath},
	)
}
