package config

import "github.com/novelforge/novelforge/pkg/models"

// Config is the umbrella configuration object that encapsulates
// all registries, defaults, and configuration state.
// This is the primary object returned by Initialize() and used throughout the application.
type Config struct {
	configDir string // Configuration directory path (for reference)

	// HTTP server settings
	Server *ServerConfig

	// Root directory of the project store
	StorageRoot string

	// Orchestration and reliability tuning
	Engine *EngineConfig

	// Tier → ordered provider candidate chains
	Tiers TierChains

	// Provider registry
	ProviderRegistry *ProviderRegistry
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr       string
	AllowedWSOrigins []string
}

// Stats contains statistics about loaded configuration
type Stats struct {
	Providers int
	Tiers     int
}

// Stats returns configuration statistics for logging/monitoring
func (c *Config) Stats() Stats {
	s := Stats{Tiers: len(c.Tiers)}
	if c.ProviderRegistry != nil {
		s.Providers = c.ProviderRegistry.Len()
	}
	return s
}

// ConfigDir returns the configuration directory path
func (c *Config) ConfigDir() string {
	return c.configDir
}

// GetProvider retrieves a provider configuration by name.
// This is a convenience method that wraps ProviderRegistry.Get().
func (c *Config) GetProvider(name string) (*ProviderConfig, error) {
	return c.ProviderRegistry.Get(name)
}

// ChainFor returns the candidate chain for a tier.
func (c *Config) ChainFor(tier models.Tier) []string {
	return c.Tiers.Chain(tier)
}
