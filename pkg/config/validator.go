package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/novelforge/novelforge/pkg/models"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance returns the shared struct-tag validator.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		validateInst = validator.New()
	})
	return validateInst
}

// ConfigValidator validates configuration comprehensively with clear error messages
type ConfigValidator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration
func NewValidator(cfg *Config) *ConfigValidator {
	return &ConfigValidator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error)
func (v *ConfigValidator) ValidateAll() error {
	// Validate in order: providers → tiers → engine → server
	// This ensures dependencies are validated before dependents

	if err := v.validateProviders(); err != nil {
		return fmt.Errorf("provider validation failed: %w", err)
	}

	if err := v.validateTiers(); err != nil {
		return fmt.Errorf("tier validation failed: %w", err)
	}

	if err := v.validateEngine(); err != nil {
		return fmt.Errorf("engine validation failed: %w", err)
	}

	if err := v.validateServer(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}

	return nil
}

func (v *ConfigValidator) validateProviders() error {
	vi := validatorInstance()

	for _, name := range v.cfg.ProviderRegistry.Names() {
		provider, err := v.cfg.ProviderRegistry.Get(name)
		if err != nil {
			return err
		}

		// Struct tags first (required fields)
		if err := vi.Struct(provider); err != nil {
			return NewValidationError("provider", name, "", err)
		}

		// Validate provider type
		if !provider.Type.IsValid() {
			return NewValidationError("provider", name, "type", fmt.Errorf("invalid provider type: %s", provider.Type))
		}

		// Remote backends need a key source even if the key itself is
		// checked lazily (only providers reachable from a tier chain
		// must actually have it set).
		if provider.Type.NeedsAPIKey() && provider.APIKeyEnv == "" {
			return NewValidationError("provider", name, "api_key_env", fmt.Errorf("required for %s providers", provider.Type))
		}
	}

	return nil
}

func (v *ConfigValidator) validateTiers() error {
	for _, tier := range models.AllTiers() {
		chain := v.cfg.Tiers.Chain(tier)
		if len(chain) == 0 {
			return NewValidationError("tier", string(tier), "", fmt.Errorf("%w: at least one candidate required", ErrTierNotConfigured))
		}

		for _, name := range chain {
			provider, err := v.cfg.ProviderRegistry.Get(name)
			if err != nil {
				return NewValidationError("tier", string(tier), "", fmt.Errorf("candidate '%s' not found", name))
			}

			// Validate API key environment variable is set for providers
			// that can actually be dispatched to
			if provider.APIKeyEnv != "" {
				if value := os.Getenv(provider.APIKeyEnv); value == "" {
					return NewValidationError("tier", string(tier), "api_key_env",
						fmt.Errorf("candidate '%s': environment variable %s is not set", name, provider.APIKeyEnv))
				}
			}
		}
	}

	return nil
}

func (v *ConfigValidator) validateEngine() error {
	e := v.cfg.Engine

	if e.FanoutConcurrency < 1 {
		return NewValidationError("engine", "engine", "fanout_concurrency", fmt.Errorf("must be at least 1"))
	}
	if e.ProgressEvery < 1 {
		return NewValidationError("engine", "engine", "progress_every", fmt.Errorf("must be at least 1"))
	}
	if e.MaxRevisions < 0 {
		return NewValidationError("engine", "engine", "max_revisions", fmt.Errorf("must be non-negative"))
	}
	if e.MaxRetryDelay <= 0 {
		return NewValidationError("engine", "engine", "max_retry_delay", fmt.Errorf("must be positive"))
	}
	if len(e.CooldownSchedule) == 0 {
		return NewValidationError("engine", "engine", "cooldown_schedule", fmt.Errorf("at least one entry required"))
	}
	for i, d := range e.CooldownSchedule {
		if d <= 0 {
			return NewValidationError("engine", "engine", fmt.Sprintf("cooldown_schedule[%d]", i), fmt.Errorf("must be positive"))
		}
	}
	for _, tier := range models.AllTiers() {
		if e.StepTimeouts[tier] <= 0 {
			return NewValidationError("engine", "engine", fmt.Sprintf("step_timeouts[%s]", tier), fmt.Errorf("must be positive"))
		}
	}
	if e.BreakerFailureThreshold < 1 {
		return NewValidationError("engine", "engine", "breaker_failure_threshold", fmt.Errorf("must be at least 1"))
	}
	if e.BreakerCooldown <= 0 {
		return NewValidationError("engine", "engine", "breaker_cooldown", fmt.Errorf("must be positive"))
	}

	return nil
}

func (v *ConfigValidator) validateServer() error {
	if v.cfg.Server == nil || v.cfg.Server.ListenAddr == "" {
		return NewValidationError("server", "server", "listen_addr", fmt.Errorf("listen address required"))
	}
	if v.cfg.StorageRoot == "" {
		return NewValidationError("server", "server", "storage_root", fmt.Errorf("storage root required"))
	}
	return nil
}
