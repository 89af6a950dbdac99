package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/novelforge/novelforge/pkg/config"
	"github.com/novelforge/novelforge/pkg/events"
)

// Dispatcher routes requests to providers along the tier's candidate chain.
// Safe for concurrent use; fanout steps issue many requests at once.
type Dispatcher struct {
	cfg       *config.Config
	publisher *events.Publisher
	breakers  *breakerRegistry
	logger    *slog.Logger

	mu        sync.RWMutex
	providers map[string]Provider

	maxRetryDelay time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewDispatcher builds adapters for every configured provider and wires the
// breaker registry from engine settings. The publisher may be nil (no events).
func NewDispatcher(cfg *config.Config, publisher *events.Publisher, logger *slog.Logger) (*Dispatcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		cfg:           cfg,
		publisher:     publisher,
		breakers:      newBreakerRegistry(cfg.Engine.BreakerFailureThreshold, cfg.Engine.BreakerCooldown, logger),
		logger:        logger.With("component", "llm"),
		providers:     make(map[string]Provider),
		maxRetryDelay: cfg.Engine.MaxRetryDelay,
		sleep:         sleepCtx,
	}

	for name, pcfg := range cfg.ProviderRegistry.GetAll() {
		adapter, err := buildProvider(name, pcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build provider %q: %w", name, err)
		}
		d.providers[name] = adapter
	}

	return d, nil
}

func buildProvider(name string, pcfg *config.ProviderConfig) (Provider, error) {
	switch pcfg.Type {
	case config.ProviderTypeAnthropic:
		return newAnthropicProvider(name, os.Getenv(pcfg.APIKeyEnv), pcfg.BaseURL), nil
	case config.ProviderTypeOpenAI:
		return newOpenAIProvider(name, os.Getenv(pcfg.APIKeyEnv), pcfg.BaseURL, nil), nil
	case config.ProviderTypeStub:
		return NewStubProvider(name, nil), nil
	default:
		return nil, fmt.Errorf("unsupported provider type %q", pcfg.Type)
	}
}

// RegisterProvider installs or replaces the adapter for a configured provider
// name. Tests use this to script the stub backend.
func (d *Dispatcher) RegisterProvider(name string, p Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[name] = p
}

func (d *Dispatcher) provider(name string) (Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.providers[name]
	return p, ok
}

// Generate walks the tier's candidate chain until one candidate answers.
// Each candidate gets the per-kind retry policy; the chain advances when a
// candidate is exhausted, short-circuited, or fails with invalid_input.
// Cancellation and auth failures surface immediately.
func (d *Dispatcher) Generate(ctx context.Context, req *Request) (*Response, error) {
	chain := d.cfg.ChainFor(req.Tier)
	if len(chain) == 0 {
		return nil, &Error{Kind: KindInvalidInput, Err: fmt.Errorf("no candidates configured for tier %q", req.Tier)}
	}

	timeout := d.cfg.Engine.TimeoutFor(req.Tier)
	log := d.logger.With("project_id", req.ProjectID, "step", req.Step, "tier", req.Tier)

	var lastErr *Error
	for i, name := range chain {
		pcfg, err := d.cfg.GetProvider(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve candidate %q: %w", name, err)
		}
		provider, ok := d.provider(name)
		if !ok {
			return nil, fmt.Errorf("no adapter registered for provider %q", name)
		}

		cb := d.breakers.get(name, pcfg.Model)
		prevState := cb.State()

		start := time.Now()
		result, callErr := d.callWithRetries(ctx, cb, provider, pcfg.Model, req, timeout)
		d.observeBreaker(req, name, pcfg.Model, prevState, cb.State())

		if callErr == nil {
			latency := time.Since(start)
			log.Info("Generation complete",
				"provider", name,
				"model", pcfg.Model,
				"latency_ms", latency.Milliseconds(),
				"output_tokens", result.Usage.OutputTokens)
			return &Response{
				Text:     result.Text,
				Provider: name,
				Model:    pcfg.Model,
				Latency:  latency,
				Usage:    result.Usage,
			}, nil
		}

		lastErr = callErr
		log.Warn("Candidate failed",
			"provider", name,
			"model", pcfg.Model,
			"kind", callErr.Kind,
			"error", callErr)

		if callErr.Kind == KindCancelled || callErr.Kind == KindPermanent {
			return nil, callErr
		}

		if i < len(chain)-1 {
			d.publishFallback(req, name, chain[i+1], string(callErr.Kind))
		}
	}

	return nil, fmt.Errorf("%w: tier %s: %w", ErrAllCandidatesFailed, req.Tier, lastErr)
}

// callWithRetries drives one candidate through its per-kind retry budget.
func (d *Dispatcher) callWithRetries(ctx context.Context, cb *gobreaker.CircuitBreaker, provider Provider, model string, req *Request, timeout time.Duration) (*ProviderResult, *Error) {
	opts := CallOptions{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Seed:        req.Seed,
	}

	for attempt := 0; ; attempt++ {
		result, err := d.callOnce(ctx, cb, provider, model, req, opts, timeout)
		if err == nil {
			return result, nil
		}

		if err.Kind == KindCircuitOpen || !err.Retryable() {
			return nil, err
		}

		policy := policyFor(err.Kind)
		if attempt+1 >= policy.maxAttempts {
			return nil, err
		}

		delay := backoffDelay(policy.base, attempt, d.maxRetryDelay)
		if err.Kind == KindRateLimit && err.RetryAfter > 0 {
			delay = min(err.RetryAfter, d.maxRetryDelay)
		}

		if serr := d.sleep(ctx, delay); serr != nil {
			return nil, &Error{Kind: KindCancelled, Provider: provider.Name(), Model: model, Err: serr}
		}
	}
}

// callOnce performs a single attempt through the candidate's breaker.
func (d *Dispatcher) callOnce(ctx context.Context, cb *gobreaker.CircuitBreaker, provider Provider, model string, req *Request, opts CallOptions, timeout time.Duration) (*ProviderResult, *Error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := cb.Execute(func() (any, error) {
		return provider.Call(callCtx, model, req.System, req.Prompt, opts)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &Error{Kind: KindCircuitOpen, Provider: provider.Name(), Model: model, Err: err}
		}
		return nil, Classify(provider.Name(), model, err)
	}
	return out.(*ProviderResult), nil
}

// observeBreaker emits circuit events when the candidate's breaker changed
// state during this call, attributed to the observing (project, step).
func (d *Dispatcher) observeBreaker(req *Request, provider, model string, prev, curr gobreaker.State) {
	if prev == curr {
		return
	}

	switch curr {
	case gobreaker.StateOpen:
		openUntil := time.Now().Add(d.breakers.cooldown)
		if err := d.publisher.PublishCircuitOpen(req.ProjectID, req.Step, provider, model, openUntil); err != nil {
			d.logger.Warn("Failed to publish circuit_open event", "provider", provider, "error", err)
		}
	case gobreaker.StateClosed:
		if err := d.publisher.PublishCircuitClosed(req.ProjectID, req.Step, provider, model); err != nil {
			d.logger.Warn("Failed to publish circuit_closed event", "provider", provider, "error", err)
		}
	}
}

func (d *Dispatcher) publishFallback(req *Request, from, to, reason string) {
	if err := d.publisher.PublishProviderFallback(req.ProjectID, req.Step, from, to, reason); err != nil {
		d.logger.Warn("Failed to publish provider_fallback event", "from", from, "to", to, "error", err)
	}
}
