package models

import (
	"slices"
	"time"
)

// ProjectStatus describes the overall lifecycle state of a project.
type ProjectStatus string

const (
	ProjectStatusCreated   ProjectStatus = "created"
	ProjectStatusRunning   ProjectStatus = "running"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusFailed    ProjectStatus = "failed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Project is the orchestrator-owned record for one pipeline run.
// It is mutated only by the engine after a successful step completion
// or an explicit revision.
type Project struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	CreatedAt      time.Time     `json:"created_at"`
	CurrentStep    int           `json:"current_step"`
	CompletedSteps []int         `json:"completed_steps"`
	Status         ProjectStatus `json:"status"`
}

// SeedBrief is the user-provided story seed persisted as initial_brief.json.
type SeedBrief struct {
	Brief string `json:"brief"`
}

// IsCompleted reports whether step i is in the completed set.
func (p *Project) IsCompleted(i int) bool {
	return slices.Contains(p.CompletedSteps, i)
}

// MarkCompleted inserts step i into the completed set, keeping it sorted
// and duplicate-free, and advances CurrentStep if i moved it forward.
func (p *Project) MarkCompleted(i int) {
	if !slices.Contains(p.CompletedSteps, i) {
		p.CompletedSteps = append(p.CompletedSteps, i)
		slices.Sort(p.CompletedSteps)
	}
	if i > p.CurrentStep {
		p.CurrentStep = i
	}
}

// ClearAbove removes every completed index strictly greater than k.
// Used by downstream invalidation after a revision of step k.
func (p *Project) ClearAbove(k int) {
	kept := p.CompletedSteps[:0]
	for _, idx := range p.CompletedSteps {
		if idx <= k {
			kept = append(kept, idx)
		}
	}
	p.CompletedSteps = kept
	if p.CurrentStep > k {
		p.CurrentStep = k
	}
}

// CompletedSet returns the completed indices as a lookup set.
func (p *Project) CompletedSet() map[int]bool {
	set := make(map[int]bool, len(p.CompletedSteps))
	for _, idx := range p.CompletedSteps {
		set[idx] = true
	}
	return set
}
