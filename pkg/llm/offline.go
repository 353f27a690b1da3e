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

package llm

import (
	"context"
	"strings"
)

// Offline answers without a model: the request's Fallback when set,
// otherwise a fixed notice quoting the prompt. JSON requests without a
// fallback get "{}".
type Offline struct{}

func (Offline) Name() string { return "offline" }

func (Offline) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Fallback != "" {
		return req.Fallback, nil
	}
	if req.JSON {
		return "{}", nil
	}
	return "(offline) No language model is configured. You asked: " + strings.TrimSpace(req.Prompt), nil
}
