package networks

import (
	"errors"
	"strings"

	"chaingate/config"
)

// ErrUnsupported is returned when a slug does not resolve to a supported
// network. Callers must not dial upstream after seeing it.
var ErrUnsupported = errors.New("network not supported")

// Classification separates production chains from test chains.
type Classification string

const (
	Mainnet Classification = "mainnet"
	Testnet Classification = "testnet"
)

// Descriptor is the immutable record for one supported chain. Slug is the
// caller-facing identifier; UpstreamSegment is the provider-specific host
// segment it maps to and never appears in anything sent to a caller.
type Descriptor struct {
	DisplayName     string
	Slug            string
	UpstreamSegment string
	ChainID         uint64
	Classification  Classification
}

// Registry is a read-only slug lookup table, built once at startup and safe
// for unsynchronized concurrent reads.
type Registry struct {
	bySlug map[string]Descriptor
}

// Default lists the networks served when the config file does not override
// them. Segments follow the upstream provider's subdomain scheme.
func Default() []Descriptor {
	return []Descriptor{
		{DisplayName: "Ethereum", Slug: "ethereum", UpstreamSegment: "eth-mainnet", ChainID: 1, Classification: Mainnet},
		{DisplayName: "Ethereum Sepolia", Slug: "sepolia", UpstreamSegment: "eth-sepolia", ChainID: 11155111, Classification: Testnet},
		{DisplayName: "Polygon", Slug: "polygon", UpstreamSegment: "polygon-mainnet", ChainID: 137, Classification: Mainnet},
		{DisplayName: "Polygon Amoy", Slug: "polygon-amoy", UpstreamSegment: "polygon-amoy", ChainID: 80002, Classification: Testnet},
		{DisplayName: "Arbitrum One", Slug: "arbitrum", UpstreamSegment: "arb-mainnet", ChainID: 42161, Classification: Mainnet},
		{DisplayName: "Optimism", Slug: "optimism", UpstreamSegment: "opt-mainnet", ChainID: 10, Classification: Mainnet},
		{DisplayName: "Base", Slug: "base", UpstreamSegment: "base-mainnet", ChainID: 8453, Classification: Mainnet},
		{DisplayName: "Base Sepolia", Slug: "base-sepolia", UpstreamSegment: "base-sepolia", ChainID: 84532, Classification: Testnet},
	}
}

// New builds a registry from explicit descriptors.
func New(descriptors []Descriptor) *Registry {
	bySlug := make(map[string]Descriptor, len(descriptors))
	for _, desc := range descriptors {
		bySlug[strings.ToLower(desc.Slug)] = desc
	}
	return &Registry{bySlug: bySlug}
}

// FromConfig builds a registry from the configured network list, falling back
// to the compiled-in table when the list is empty.
func FromConfig(entries []config.NetworkConfig) *Registry {
	if len(entries) == 0 {
		return New(Default())
	}
	descriptors := make([]Descriptor, 0, len(entries))
	for _, entry := range entries {
		classification := Mainnet
		if entry.Testnet {
			classification = Testnet
		}
		displayName := entry.DisplayName
		if strings.TrimSpace(displayName) == "" {
			displayName = entry.Slug
		}
		descriptors = append(descriptors, Descriptor{
			DisplayName:     displayName,
			Slug:            strings.ToLower(strings.TrimSpace(entry.Slug)),
			UpstreamSegment: strings.TrimSpace(entry.UpstreamSegment),
			ChainID:         entry.ChainID,
			Classification:  classification,
		})
	}
	return New(descriptors)
}

// Resolve looks up a network by slug, case-insensitively.
func (r *Registry) Resolve(slug string) (Descriptor, error) {
	if r == nil {
		return Descriptor{}, ErrUnsupported
	}
	desc, ok := r.bySlug[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return Descriptor{}, ErrUnsupported
	}
	return desc, nil
}

// Slugs returns the supported slugs in no particular order.
func (r *Registry) Slugs() []string {
	if r == nil {
		return nil
	}
	slugs := make([]string, 0, len(r.bySlug))
	for slug := range r.bySlug {
		slugs = append(slugs, slug)
	}
	return slugs
}
