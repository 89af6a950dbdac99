package models

import "fmt"

// Tier selects the quality/cost band a generation request targets. Each tier
// maps to an ordered candidate chain of (provider, model) pairs in config.
type Tier string

const (
	TierFast     Tier = "fast"
	TierBalanced Tier = "balanced"
	TierQuality  Tier = "quality"
)

// ParseTier validates a tier string from config or API input.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFast, TierBalanced, TierQuality:
		return Tier(s), nil
	default:
		return "", fmt.Errorf("unknown model tier %q", s)
	}
}

// AllTiers lists every tier in ascending cost order.
func AllTiers() []Tier {
	return []Tier{TierFast, TierBalanced, TierQuality}
}
