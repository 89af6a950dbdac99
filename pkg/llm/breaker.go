package llm

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// breakerRegistry keeps one circuit breaker per (provider, model) pair,
// created lazily on first use. Breaker state is in-process only; a restart
// forgets open circuits.
type breakerRegistry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker

	threshold uint32
	cooldown  time.Duration
	logger    *slog.Logger
}

func newBreakerRegistry(threshold uint32, cooldown time.Duration, logger *slog.Logger) *breakerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &breakerRegistry{
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
		threshold: threshold,
		cooldown:  cooldown,
		logger:    logger.With("component", "breaker"),
	}
}

// get returns the breaker for a (provider, model) pair, creating it if needed.
func (r *breakerRegistry) get(provider, model string) *gobreaker.CircuitBreaker {
	key := provider + "/" + model

	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[key]; ok {
		return cb
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: key,
		// Half-open admits exactly one probe.
		MaxRequests: 1,
		Timeout:     r.cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= r.threshold
		},
		// Caller cancellation says nothing about backend health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Info("Circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	})
	r.breakers[key] = cb
	return cb
}
