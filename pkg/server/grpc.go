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

package server

import (
	"github.com/a2aproject/a2a-go/a2agrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/kadirpekel/a2alab/pkg/auth"
)

// newGRPCServer registers the A2A service, health and reflection.
func (s *Server) newGRPCServer() *grpc.Server {
	var opts []grpc.ServerOption
	if s.authValidator != nil {
		opts = append(opts,
			grpc.UnaryInterceptor(auth.UnaryServerInterceptor(s.authValidator)),
			grpc.StreamInterceptor(auth.StreamServerInterceptor(s.authValidator)),
		)
	}

	grpcServer := grpc.NewServer(opts...)
	a2agrpc.NewHandler(s.handler).RegisterWith(grpcServer)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	// grpcurl / grpcui
	reflection.Register(grpcServer)

	return grpcServer
}
