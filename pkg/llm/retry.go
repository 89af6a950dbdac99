package llm

import (
	"context"
	"math/rand/v2"
	"time"
)

// backoffDelay computes the sleep before retrying attempt n (0-based):
// base · 2^n · (1 + jitter) with jitter in [0, 0.1), capped at maxDelay.
// The jitter is one-sided so the delay never undershoots the base curve.
func backoffDelay(base time.Duration, attempt int, maxDelay time.Duration) time.Duration {
	d := base << uint(attempt)
	if d <= 0 || d > maxDelay {
		// Shift overflow or past the cap either way.
		return maxDelay
	}
	d = time.Duration(float64(d) * (1 + rand.Float64()*0.1))
	if d > maxDelay {
		d = maxDelay
	}
	return d
}

// sleepCtx waits for d or until the context is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
