package upstream

import (
	"testing"

	"chaingate/config"
	"chaingate/gateway/networks"
)

func TestProviderEndpoints(t *testing.T) {
	provider := NewProvider(config.ProviderConfig{
		Name:     "fakenode",
		APIKey:   "secret-key",
		HTTPHost: "g.fakenode.example",
		WSHost:   "ws.fakenode.example",
	})
	desc := networks.Descriptor{Slug: "ethereum", UpstreamSegment: "eth-mainnet"}
	if got := provider.HTTPEndpoint(desc); got != "https://eth-mainnet.g.fakenode.example/v2/secret-key" {
		t.Fatalf("http endpoint = %q", got)
	}
	if got := provider.WSEndpoint(desc); got != "wss://eth-mainnet.ws.fakenode.example/v2/secret-key" {
		t.Fatalf("ws endpoint = %q", got)
	}
	if !provider.Configured() {
		t.Fatalf("provider with key must report configured")
	}
}

func TestProviderNotConfigured(t *testing.T) {
	provider := NewProvider(config.ProviderConfig{HTTPHost: "g.fakenode.example"})
	if provider.Configured() {
		t.Fatalf("empty key must report not configured")
	}
	if NewProvider(config.ProviderConfig{APIKey: "   "}).Configured() {
		t.Fatalf("whitespace key must report not configured")
	}
}
