// Package upstream computes provider endpoint URLs. The provider credential
// appears only in these URLs, which are dialed by the gateway and never
// surface in anything written back to a caller.
package upstream

import (
	"fmt"
	"strings"

	"chaingate/config"
	"chaingate/gateway/networks"
)

// Endpoints resolves a network descriptor to the provider's transport URLs.
type Endpoints interface {
	Configured() bool
	HTTPEndpoint(desc networks.Descriptor) string
	WSEndpoint(desc networks.Descriptor) string
}

// Provider builds URLs in the upstream's subdomain scheme:
// <segment>.<host>/v2/<apiKey>.
type Provider struct {
	cfg config.ProviderConfig
}

func NewProvider(cfg config.ProviderConfig) *Provider {
	return &Provider{cfg: cfg}
}

// Configured reports whether the process-level provider credential is set.
func (p *Provider) Configured() bool {
	return strings.TrimSpace(p.cfg.APIKey) != ""
}

func (p *Provider) HTTPEndpoint(desc networks.Descriptor) string {
	return fmt.Sprintf("https://%s.%s/v2/%s", desc.UpstreamSegment, p.cfg.HTTPHost, p.cfg.APIKey)
}

func (p *Provider) WSEndpoint(desc networks.Descriptor) string {
	return fmt.Sprintf("wss://%s.%s/v2/%s", desc.UpstreamSegment, p.cfg.WSHost, p.cfg.APIKey)
}

var _ Endpoints = (*Provider)(nil)
