package config

import (
	"sync"

	"github.com/novelforge/novelforge/pkg/models"
)

// BuiltinConfig holds all built-in configuration data.
// This provides default providers and tier chains so a fresh checkout can
// generate with nothing but API keys in the environment.
type BuiltinConfig struct {
	Providers  map[string]ProviderConfig
	TierChains map[models.Tier][]string
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration (thread-safe, lazy-initialized)
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		Providers:  initBuiltinProviders(),
		TierChains: initBuiltinTierChains(),
	}
}

func initBuiltinProviders() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"anthropic-fast": {
			Type:      ProviderTypeAnthropic,
			Model:     "claude-3-5-haiku-latest",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		"anthropic-balanced": {
			Type:      ProviderTypeAnthropic,
			Model:     "claude-sonnet-4-20250514",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		"anthropic-quality": {
			Type:      ProviderTypeAnthropic,
			Model:     "claude-opus-4-1",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		"openai-fast": {
			Type:      ProviderTypeOpenAI,
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		"openai-balanced": {
			Type:      ProviderTypeOpenAI,
			Model:     "gpt-4o",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		"openai-quality": {
			Type:      ProviderTypeOpenAI,
			Model:     "gpt-5",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		"stub": {
			Type:  ProviderTypeStub,
			Model: "stub-small",
		},
	}
}

// initBuiltinTierChains wires each tier to an Anthropic primary with an
// OpenAI failover, cheapest models on the fast tier.
func initBuiltinTierChains() map[models.Tier][]string {
	return map[models.Tier][]string{
		models.TierFast:     {"anthropic-fast", "openai-fast"},
		models.TierBalanced: {"anthropic-balanced", "openai-balanced"},
		models.TierQuality:  {"anthropic-quality", "openai-quality"},
	}
}
