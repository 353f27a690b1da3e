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


// Package a2alab is a lab of Agent2Agent (A2A) protocol demo agents.
//
// Every demo is an agent profile served by one binary over JSON-RPC, REST
// (HTTP+JSON with SSE streaming) and gRPC:
//
//	a2alab serve echo
//	a2alab serve streaming -p 8001
//	a2alab serve versioning --mode v1 -p 8002
//
// The same binary is the client side of every demo:
//
//	a2alab send -m "Hello A2A"
//	a2alab stream -m "stream please"
//	a2alab list --all --status completed
//
// and ships the supporting tools: a webhook receiver for push
// notifications, a static file server and a local OAuth2 token issuer.
//
// Configuration is a YAML file (see a2alab schema) or a key in Consul,
// etcd or ZooKeeper. Command line flags override it.
//
// # Packages
//
//   - pkg/agents: the demo agent profiles
//   - pkg/server: the A2A server exposing a profile
//   - pkg/client: transport selection, rendering and the version policy
//   - pkg/taskstore: memory and SQL task stores
//   - pkg/auth: JWT validation, the token issuer and client credentials
//   - pkg/push: push notification configs, dispatcher and receiver
//   - pkg/config: configuration loading, defaults and providers
package a2alab
