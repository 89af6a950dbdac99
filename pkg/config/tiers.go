package config

import (
	"github.com/novelforge/novelforge/pkg/models"
)

// TierChains maps each model tier to its ordered candidate chain of provider
// names. The first entry is the primary; the rest are failover candidates
// tried in order when the primary is unavailable.
type TierChains map[models.Tier][]string

// Chain returns the candidate chain for a tier (copy, safe to mutate).
func (t TierChains) Chain(tier models.Tier) []string {
	chain, ok := t[tier]
	if !ok {
		return nil
	}
	out := make([]string, len(chain))
	copy(out, chain)
	return out
}

// Has reports whether the tier has at least one candidate.
func (t TierChains) Has(tier models.Tier) bool {
	return len(t[tier]) > 0
}
