package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a provider-side failure. The dispatcher picks a retry
// policy from the kind; everything else (orchestration-side failures) lives
// as sentinel errors in pkg/engine.
type Kind string

const (
	// KindNetwork: timeout, refused, or reset connection.
	KindNetwork Kind = "network"
	// KindRateLimit: HTTP 429 or provider-reported throttling.
	KindRateLimit Kind = "rate_limit"
	// KindInvalidInput: HTTP 400; the request itself is malformed.
	KindInvalidInput Kind = "invalid_input"
	// KindTransient: HTTP 5xx; the backend is briefly unhealthy.
	KindTransient Kind = "transient"
	// KindPermanent: HTTP 401/403; credentials are wrong, no point retrying.
	KindPermanent Kind = "permanent"
	// KindCircuitOpen: the (provider, model) breaker rejected the call
	// without network I/O.
	KindCircuitOpen Kind = "circuit_open"
	// KindCancelled: the caller's context was cancelled.
	KindCancelled Kind = "cancelled"
	// KindUnknown: unclassified; treated as transient with a low cap.
	KindUnknown Kind = "unknown"
)

// ErrAllCandidatesFailed is returned when every candidate in the tier chain
// was exhausted, short-circuited, or failed non-retryably.
var ErrAllCandidatesFailed = errors.New("all candidates failed")

// Error is a classified provider failure.
type Error struct {
	Kind     Kind
	Provider string
	Model    string

	// Status is the HTTP status when the failure came off the wire.
	Status int

	// RetryAfter is the provider-advertised wait on rate limits; zero
	// when the response carried none.
	RetryAfter time.Duration

	Err error
}

// Error returns formatted error message
func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s (%s/%s): %v", e.Kind, e.Provider, e.Model, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether the dispatcher may retry the same candidate.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindTransient, KindUnknown:
		return true
	default:
		return false
	}
}

// retryPolicy is the per-kind backoff base and attempt budget.
type retryPolicy struct {
	base        time.Duration
	maxAttempts int
}

// policyFor returns the retry policy for a failure kind. Non-retryable kinds
// get a single attempt.
func policyFor(k Kind) retryPolicy {
	switch k {
	case KindNetwork:
		return retryPolicy{base: 1 * time.Second, maxAttempts: 5}
	case KindRateLimit:
		return retryPolicy{base: 30 * time.Second, maxAttempts: 5}
	case KindTransient:
		return retryPolicy{base: 2 * time.Second, maxAttempts: 3}
	case KindUnknown:
		return retryPolicy{base: 2 * time.Second, maxAttempts: 2}
	default:
		return retryPolicy{maxAttempts: 1}
	}
}

// Classify wraps an arbitrary error from a provider call into *Error.
// Already-classified errors pass through with provider/model filled in.
func Classify(provider, model string, err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		if classified.Provider == "" {
			classified.Provider = provider
			classified.Model = model
		}
		return classified
	}

	kind := KindUnknown
	switch {
	case errors.Is(err, context.Canceled):
		kind = KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		// Exceeding the tier deadline counts as a network-class failure.
		kind = KindNetwork
	case isTimeout(err), isConnectionError(err):
		kind = KindNetwork
	}

	return &Error{Kind: kind, Provider: provider, Model: model, Err: err}
}

// classifyStatus maps an HTTP status to a failure kind.
func classifyStatus(status int) Kind {
	switch {
	case status == 429:
		return KindRateLimit
	case status == 400:
		return KindInvalidInput
	case status == 401 || status == 403:
		return KindPermanent
	case status == 500 || status == 502 || status == 503 || status == 504:
		return KindTransient
	default:
		return KindUnknown
	}
}

// retryAfterFromHeader parses a Retry-After response header. Only the
// delta-seconds form is honoured; HTTP-date values return zero.
func retryAfterFromHeader(h http.Header) time.Duration {
	raw := h.Get("Retry-After")
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isConnectionError detects connection-level transport failures.
func isConnectionError(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	msg := strings.ToLower(err.Error())
	connectionErrors := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"connection closed",
		"no such host",
	}
	for _, e := range connectionErrors {
		if strings.Contains(msg, e) {
			return true
		}
	}
	return false
}
