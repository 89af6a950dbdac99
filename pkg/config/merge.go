package config

import (
	"fmt"

	"github.com/novelforge/novelforge/pkg/models"
)

// mergeProviders merges built-in and user-defined provider configurations.
// User-defined providers override built-in providers with the same name.
func mergeProviders(builtinProviders map[string]ProviderConfig, userProviders map[string]ProviderConfig) map[string]*ProviderConfig {
	result := make(map[string]*ProviderConfig)

	// First, add built-in providers
	for name, provider := range builtinProviders {
		providerCopy := provider
		result[name] = &providerCopy
	}

	// Then, override with user-defined providers (or add new ones)
	for name, userProvider := range userProviders {
		providerCopy := userProvider
		result[name] = &providerCopy
	}

	return result
}

// mergeTierChains merges built-in and user-defined tier chains. A user chain
// replaces the built-in chain for that tier wholesale; partial edits of a
// candidate list are not supported.
func mergeTierChains(builtinChains map[models.Tier][]string, userChains map[string][]string) (TierChains, error) {
	result := make(TierChains, len(builtinChains))

	for tier, chain := range builtinChains {
		chainCopy := make([]string, len(chain))
		copy(chainCopy, chain)
		result[tier] = chainCopy
	}

	for rawTier, chain := range userChains {
		tier, err := models.ParseTier(rawTier)
		if err != nil {
			return nil, fmt.Errorf("%w: tiers: %v", ErrInvalidValue, err)
		}
		chainCopy := make([]string, len(chain))
		copy(chainCopy, chain)
		result[tier] = chainCopy
	}

	return result, nil
}
