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
	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/a2alab/pkg/config"
)

var transportProtocols = map[string]a2a.TransportProtocol{
	config.TransportJSONRPC: a2a.TransportProtocolJSONRPC,
	config.TransportREST:    a2a.TransportProtocolHTTPJSON,
	config.TransportGRPC:    a2a.TransportProtocolGRPC,
}

// interfaceURL is where a transport is reachable from the outside.
func (s *Server) interfaceURL(transport string) string {
	if transport == config.TransportGRPC {
		return s.cfg.GRPCAddress()
	}
	return s.cfg.BaseURL
}

// buildCard copies the profile card and fills in what depends on the
// deployment: URL, transports, capabilities.
func (s *Server) buildCard() *a2a.AgentCard {
	card := *s.profile.Card

	preferred := s.profile.PreferredTransport
	if preferred == "" || !s.cfg.HasTransport(preferred) {
		preferred = s.cfg.Transports[0]
	}

	card.URL = s.interfaceURL(preferred)
	card.PreferredTransport = transportProtocols[preferred]
	card.AdditionalInterfaces = nil
	for _, t := range s.cfg.Transports {
		if t == preferred {
			continue
		}
		card.AdditionalInterfaces = append(card.AdditionalInterfaces, a2a.AgentInterface{
			Transport: transportProtocols[t],
			URL:       s.interfaceURL(t),
		})
	}

	if s.pushConfigs != nil {
		card.Capabilities.PushNotifications = true
	}
	if s.profile.ExtendedCard != nil {
		card.SupportsAuthenticatedExtendedCard = true
	}

	return &card
}

// extendedCard returns the private card with the same deployment data as
// the public one.
func (s *Server) extendedCard() *a2a.AgentCard {
	card := *s.profile.ExtendedCard
	card.URL = s.card.URL
	card.PreferredTransport = s.card.PreferredTransport
	card.AdditionalInterfaces = s.card.AdditionalInterfaces
	card.Capabilities = s.card.Capabilities
	return &card
}
