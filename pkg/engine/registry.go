package engine

import (
	"context"
	"sync"
	"time"

	"github.com/novelforge/novelforge/pkg/config"
)

// runRegistry tracks the active run per project. A project admits at most
// one run at a time; the registry holds the run's cancel function so Cancel
// and shutdown can reach in.
type runRegistry struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
}

func newRunRegistry() *runRegistry {
	return &runRegistry{active: make(map[string]context.CancelFunc)}
}

// begin claims the project for a run, deriving a cancellable context. The
// returned release must be called when the run ends. Fails with ErrBusy when
// a run is already active.
func (r *runRegistry) begin(ctx context.Context, projectID string) (context.Context, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.active[projectID]; ok {
		return nil, nil, ErrBusy
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.active[projectID] = cancel

	release := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c, ok := r.active[projectID]; ok {
			c()
			delete(r.active, projectID)
		}
	}
	return runCtx, release, nil
}

// cancel aborts the project's active run. Reports whether one was running.
func (r *runRegistry) cancel(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cancel, ok := r.active[projectID]
	if ok {
		cancel()
	}
	return ok
}

// busy reports whether the project has an active run.
func (r *runRegistry) busy(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[projectID]
	return ok
}

// drain cancels every active run. Called on shutdown; runs unwind through
// their own contexts.
func (r *runRegistry) drain() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cancel := range r.active {
		cancel()
	}
}

type cooldownKey struct {
	projectID string
	step      int
}

type cooldownEntry struct {
	streak      int
	nextAllowed time.Time
}

// cooldownTracker escalates per-(project, step) cooldowns along the
// configured schedule. In-memory only: a restart clears cooldowns, which is
// acceptable because a restart is itself operator intervention.
type cooldownTracker struct {
	cfg *config.EngineConfig
	now func() time.Time

	mu      sync.Mutex
	entries map[cooldownKey]cooldownEntry
}

func newCooldownTracker(cfg *config.EngineConfig) *cooldownTracker {
	return &cooldownTracker{
		cfg:     cfg,
		now:     time.Now,
		entries: make(map[cooldownKey]cooldownEntry),
	}
}

// check returns a CooldownError when the pair's next allowed run is still in
// the future, nil otherwise.
func (c *cooldownTracker) check(projectID string, step int) *CooldownError {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cooldownKey{projectID, step}]
	if !ok || !c.now().Before(entry.nextAllowed) {
		return nil
	}
	return &CooldownError{Step: step, Streak: entry.streak, NextAllowed: entry.nextAllowed}
}

// recordFailure bumps the pair's failure streak and computes the next
// allowed time from the schedule. Returns the new entry.
func (c *cooldownTracker) recordFailure(projectID string, step int) cooldownEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cooldownKey{projectID, step}
	entry := c.entries[key]
	entry.streak++
	entry.nextAllowed = c.now().Add(c.cfg.CooldownFor(entry.streak))
	c.entries[key] = entry
	return entry
}

// reset clears the pair's streak after a successful run.
func (c *cooldownTracker) reset(projectID string, step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, cooldownKey{projectID, step})
}

// nextAllowed reports the pair's cooldown deadline for status reporting.
// The zero time means no cooldown is in effect.
func (c *cooldownTracker) nextAllowed(projectID string, step int) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[cooldownKey{projectID, step}]
	if !ok || !c.now().Before(entry.nextAllowed) {
		return time.Time{}
	}
	return entry.nextAllowed
}
