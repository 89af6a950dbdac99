// Package llm dispatches generation requests to LLM providers. A request
// names a model tier; the dispatcher walks that tier's candidate chain with
// per-candidate retries, a circuit breaker per (provider, model) pair, and
// failover to the next candidate when one is exhausted or short-circuited.
package llm

import (
	"context"
	"time"

	"github.com/novelforge/novelforge/pkg/models"
)

// Request is a single generation request against a model tier.
type Request struct {
	// ProjectID and Step attribute reliability events (fallback, circuit
	// transitions) to the run that observed them.
	ProjectID string
	Step      int

	System string
	Prompt string

	Tier        models.Tier
	MaxTokens   int
	Temperature float64

	// Seed is forwarded to backends that support deterministic sampling.
	Seed *int64
}

// Response is a completed generation with its provenance.
type Response struct {
	Text     string
	Provider string // configured provider name that answered
	Model    string
	Latency  time.Duration
	Usage    Usage
}

// Usage is the token accounting reported by the backend.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// CallOptions carries per-request generation parameters to a provider.
type CallOptions struct {
	MaxTokens   int
	Temperature float64
	Seed        *int64
}

// ProviderResult is a single raw backend completion.
type ProviderResult struct {
	Text       string
	StopReason string
	Usage      Usage
}

// Provider is one LLM backend. Implementations map their native failures to
// *Error so the dispatcher can classify and retry them.
type Provider interface {
	// Name returns the configured provider name (not the backend type).
	Name() string

	// Call performs one completion. The context carries the per-tier
	// deadline; implementations must not retry internally.
	Call(ctx context.Context, model, system, user string, opts CallOptions) (*ProviderResult, error)
}
