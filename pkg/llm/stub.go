package llm

import (
	"context"
	"sync"
)

// StubFunc produces the result for one stub call. call is 0-based and counts
// every invocation of the provider, across steps.
type StubFunc func(call int, model, system, user string, opts CallOptions) (*ProviderResult, error)

// StubProvider is a scripted in-process provider for tests and offline runs.
// The zero script answers every call with a fixed acknowledgement; tests
// install their own script to drive failures, malformed output, or canned
// step payloads.
type StubProvider struct {
	name string

	mu    sync.Mutex
	calls int
	fn    StubFunc
}

// NewStubProvider creates a stub. fn may be nil for the default script.
func NewStubProvider(name string, fn StubFunc) *StubProvider {
	return &StubProvider{name: name, fn: fn}
}

func (s *StubProvider) Name() string { return s.name }

// SetScript replaces the script and resets the call counter.
func (s *StubProvider) SetScript(fn StubFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fn = fn
	s.calls = 0
}

// Calls returns how many times the provider was invoked.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *StubProvider) Call(ctx context.Context, model, system, user string, opts CallOptions) (*ProviderResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(s.name, model, err)
	}

	s.mu.Lock()
	call := s.calls
	s.calls++
	fn := s.fn
	s.mu.Unlock()

	if fn == nil {
		return &ProviderResult{
			Text:       `{"note":"stub response"}`,
			StopReason: "end_turn",
			Usage:      Usage{InputTokens: len(user) / 4, OutputTokens: 8},
		}, nil
	}
	return fn(call, model, system, user, opts)
}
