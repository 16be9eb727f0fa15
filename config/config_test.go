package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chaingate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.ListenAddress)
	require.Equal(t, 30*time.Second, cfg.ReadTimeout)
	require.Equal(t, "alchemy", cfg.Provider.Name)
	require.Equal(t, "g.alchemy.com", cfg.Provider.HTTPHost)
	require.Equal(t, "chaingate", cfg.Brand.Name)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
listen: ":9090"
provider:
  name: fakenode
  apiKey: upstream-secret
  httpHost: rpc.fakenode.example
  wsHost: rpc.fakenode.example
brand:
  name: testgate
  host: rpc.testgate.example
networks:
  - displayName: Ethereum
    slug: ethereum
    upstreamSegment: eth-mainnet
    chainId: 1
  - displayName: Sepolia
    slug: sepolia
    upstreamSegment: eth-sepolia
    chainId: 11155111
    testnet: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.ListenAddress)
	require.Equal(t, "upstream-secret", cfg.Provider.APIKey)
	require.Len(t, cfg.Networks, 2)
	require.True(t, cfg.Networks[1].Testnet)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
provider:
  apiKey: from-file
database:
  url: postgres://file
`)
	t.Setenv(EnvProviderKey, "from-env")
	t.Setenv(EnvDatabaseURL, "postgres://env")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Provider.APIKey)
	require.Equal(t, "postgres://env", cfg.Database.URL)
}

func TestValidateRejectsBrokenNetworks(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"empty slug", "networks:\n  - displayName: X\n    upstreamSegment: x\n    chainId: 5\n"},
		{"duplicate slug", "networks:\n  - slug: base\n    upstreamSegment: base-mainnet\n    chainId: 8453\n  - slug: BASE\n    upstreamSegment: base-mainnet\n    chainId: 8453\n"},
		{"zero chain id", "networks:\n  - slug: base\n    upstreamSegment: base-mainnet\n    chainId: 0\n"},
		{"missing segment", "networks:\n  - slug: base\n    chainId: 8453\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, tc.contents)
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestMissingProviderKeyIsNotFatal(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Empty(t, cfg.Provider.APIKey)
}
