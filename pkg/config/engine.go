package config

import (
	"fmt"
	"time"

	"github.com/novelforge/novelforge/pkg/models"
)

// EngineConfig contains orchestration and reliability tuning.
// These values control fanout width, retry behavior, breaker trips,
// and how long a failed (project, step) pair stays in cooldown.
type EngineConfig struct {
	// FanoutConcurrency bounds parallel item generation within a fanout step.
	FanoutConcurrency int

	// ProgressEvery emits a step_progress event after every N fanout items.
	ProgressEvery int

	// MaxRevisions is the maximum validate-revise round trips per step run
	// before the run falls back or fails.
	MaxRevisions int

	// MaxRetryDelay caps the exponential backoff between provider retries.
	MaxRetryDelay time.Duration

	// CooldownSchedule holds escalating cooldown durations applied to a
	// (project, step) pair on consecutive exhausted runs. The last entry
	// repeats once the schedule is consumed.
	CooldownSchedule []time.Duration

	// StepTimeouts is the per-request deadline by model tier.
	StepTimeouts map[models.Tier]time.Duration

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// a (provider, model) circuit.
	BreakerFailureThreshold uint32

	// BreakerCooldown is how long an open circuit waits before probing.
	BreakerCooldown time.Duration
}

// EngineYAMLConfig is the YAML-facing form of EngineConfig. Durations are
// strings ("90s", "5m") so operators never count nanoseconds.
type EngineYAMLConfig struct {
	FanoutConcurrency       int               `yaml:"fanout_concurrency,omitempty"`
	ProgressEvery           int               `yaml:"progress_every,omitempty"`
	MaxRevisions            int               `yaml:"max_revisions,omitempty"`
	MaxRetryDelay           string            `yaml:"max_retry_delay,omitempty"`
	CooldownSchedule        []string          `yaml:"cooldown_schedule,omitempty"`
	StepTimeouts            map[string]string `yaml:"step_timeouts,omitempty"`
	BreakerFailureThreshold uint32            `yaml:"breaker_failure_threshold,omitempty"`
	BreakerCooldown         string            `yaml:"breaker_cooldown,omitempty"`
}

// defaultEngineYAML returns the built-in engine defaults in YAML form,
// ready to be merged with operator overrides.
func defaultEngineYAML() *EngineYAMLConfig {
	return &EngineYAMLConfig{
		FanoutConcurrency: 8,
		ProgressEvery:     5,
		MaxRevisions:      3,
		MaxRetryDelay:     "60s",
		CooldownSchedule:  []string{"5s", "15s", "1m", "5m", "15m", "1h", "6h", "24h"},
		StepTimeouts: map[string]string{
			string(models.TierFast):     "120s",
			string(models.TierBalanced): "180s",
			string(models.TierQuality):  "300s",
		},
		BreakerFailureThreshold: 5,
		BreakerCooldown:         "5m",
	}
}

// parseEngineConfig converts the merged YAML form into typed durations.
func parseEngineConfig(y *EngineYAMLConfig) (*EngineConfig, error) {
	cfg := &EngineConfig{
		FanoutConcurrency:       y.FanoutConcurrency,
		ProgressEvery:           y.ProgressEvery,
		MaxRevisions:            y.MaxRevisions,
		BreakerFailureThreshold: y.BreakerFailureThreshold,
		StepTimeouts:            make(map[models.Tier]time.Duration, len(y.StepTimeouts)),
	}

	var err error
	if cfg.MaxRetryDelay, err = time.ParseDuration(y.MaxRetryDelay); err != nil {
		return nil, fmt.Errorf("%w: max_retry_delay: %v", ErrInvalidValue, err)
	}
	if cfg.BreakerCooldown, err = time.ParseDuration(y.BreakerCooldown); err != nil {
		return nil, fmt.Errorf("%w: breaker_cooldown: %v", ErrInvalidValue, err)
	}

	cfg.CooldownSchedule = make([]time.Duration, 0, len(y.CooldownSchedule))
	for i, raw := range y.CooldownSchedule {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: cooldown_schedule[%d]: %v", ErrInvalidValue, i, err)
		}
		cfg.CooldownSchedule = append(cfg.CooldownSchedule, d)
	}

	for rawTier, rawDur := range y.StepTimeouts {
		tier, err := models.ParseTier(rawTier)
		if err != nil {
			return nil, fmt.Errorf("%w: step_timeouts: %v", ErrInvalidValue, err)
		}
		d, err := time.ParseDuration(rawDur)
		if err != nil {
			return nil, fmt.Errorf("%w: step_timeouts[%s]: %v", ErrInvalidValue, rawTier, err)
		}
		cfg.StepTimeouts[tier] = d
	}

	return cfg, nil
}

// CooldownFor returns the cooldown duration after the given number of
// consecutive exhausted runs (1-based). Past the end of the schedule the
// last entry repeats.
func (c *EngineConfig) CooldownFor(consecutiveFailures int) time.Duration {
	if len(c.CooldownSchedule) == 0 || consecutiveFailures <= 0 {
		return 0
	}
	idx := consecutiveFailures - 1
	if idx >= len(c.CooldownSchedule) {
		idx = len(c.CooldownSchedule) - 1
	}
	return c.CooldownSchedule[idx]
}

// TimeoutFor returns the request deadline for a tier, falling back to the
// balanced tier's deadline when unset.
func (c *EngineConfig) TimeoutFor(tier models.Tier) time.Duration {
	if d, ok := c.StepTimeouts[tier]; ok {
		return d
	}
	return c.StepTimeouts[models.TierBalanced]
}
