package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted after the file is decoded. Secrets are kept
// out of config files in every deployment tier.
const (
	EnvProviderKey = "CHAINGATE_PROVIDER_KEY"
	EnvDatabaseURL = "CHAINGATE_DATABASE_URL"
)

// ProviderConfig identifies the upstream node provider being fronted. The
// provider's name and hosts feed the sanitization rules as well as the
// upstream URL construction, so tests can run against a fake provider.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	APIKey   string `yaml:"apiKey"`
	HTTPHost string `yaml:"httpHost"`
	WSHost   string `yaml:"wsHost"`
}

// BrandConfig is the identity substituted into outbound payloads in place of
// the upstream provider's.
type BrandConfig struct {
	Name string `yaml:"name"`
	Host string `yaml:"host"`
}

// NetworkConfig describes one supported chain. When the list is empty the
// registry's compiled-in table is used.
type NetworkConfig struct {
	DisplayName     string `yaml:"displayName"`
	Slug            string `yaml:"slug"`
	UpstreamSegment string `yaml:"upstreamSegment"`
	ChainID         uint64 `yaml:"chainId"`
	Testnet         bool   `yaml:"testnet"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type ObservabilityConfig struct {
	ServiceName   string `yaml:"serviceName"`
	Environment   string `yaml:"environment"`
	MetricsPrefix string `yaml:"metricsPrefix"`
	Metrics       bool   `yaml:"metrics"`
	LogRequests   bool   `yaml:"logRequests"`
}

type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowedOrigins"`
	AllowedMethods []string `yaml:"allowedMethods"`
	AllowedHeaders []string `yaml:"allowedHeaders"`
}

type Config struct {
	ListenAddress string              `yaml:"listen"`
	ReadTimeout   time.Duration       `yaml:"readTimeout"`
	WriteTimeout  time.Duration       `yaml:"writeTimeout"`
	IdleTimeout   time.Duration       `yaml:"idleTimeout"`
	Provider      ProviderConfig      `yaml:"provider"`
	Brand         BrandConfig         `yaml:"brand"`
	Networks      []NetworkConfig     `yaml:"networks"`
	Database      DatabaseConfig      `yaml:"database"`
	Observability ObservabilityConfig `yaml:"observability"`
	CORS          CORSConfig          `yaml:"cors"`
}

// Load reads the YAML config at path, applies defaults and environment
// overrides, and validates the result. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()
		decoder := yaml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("decode config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Defaults returns the configuration used when no file is supplied.
func Defaults() Config {
	return Config{
		ListenAddress: ":8080",
		ReadTimeout:   30 * time.Second,
		WriteTimeout:  30 * time.Second,
		IdleTimeout:   120 * time.Second,
		Provider: ProviderConfig{
			Name:     "alchemy",
			HTTPHost: "g.alchemy.com",
			WSHost:   "g.alchemy.com",
		},
		Brand: BrandConfig{
			Name: "chaingate",
			Host: "rpc.chaingate.io",
		},
		Observability: ObservabilityConfig{
			ServiceName:   "chaingate",
			MetricsPrefix: "chaingate",
			Metrics:       true,
			LogRequests:   true,
		},
	}
}

func (cfg *Config) applyEnv() {
	if key := strings.TrimSpace(os.Getenv(EnvProviderKey)); key != "" {
		cfg.Provider.APIKey = key
	}
	if url := strings.TrimSpace(os.Getenv(EnvDatabaseURL)); url != "" {
		cfg.Database.URL = url
	}
}

// Validate rejects configurations that cannot produce a working gateway. A
// missing provider key is deliberately not an error here: the gateway starts
// and reports ProviderConfigurationMissing per call, so a deployment can come
// up before its secret is mounted.
func (cfg *Config) Validate() error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if strings.TrimSpace(cfg.Provider.HTTPHost) == "" {
		return fmt.Errorf("provider.httpHost must not be empty")
	}
	if strings.TrimSpace(cfg.Brand.Name) == "" {
		return fmt.Errorf("brand.name must not be empty")
	}
	if strings.TrimSpace(cfg.Brand.Host) == "" {
		return fmt.Errorf("brand.host must not be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Networks))
	for i, network := range cfg.Networks {
		slug := strings.ToLower(strings.TrimSpace(network.Slug))
		if slug == "" {
			return fmt.Errorf("networks[%d].slug must not be empty", i)
		}
		if _, dup := seen[slug]; dup {
			return fmt.Errorf("networks[%d].slug %q appears more than once", i, slug)
		}
		seen[slug] = struct{}{}
		if strings.TrimSpace(network.UpstreamSegment) == "" {
			return fmt.Errorf("networks[%d].upstreamSegment must not be empty", i)
		}
		if network.ChainID == 0 {
			return fmt.Errorf("networks[%d].chainId must not be zero", i)
		}
	}
	return nil
}
