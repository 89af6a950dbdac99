package models

import "time"

// StepState classifies one step's standing within a project.
type StepState string

const (
	StepStateMissing   StepState = "missing"
	StepStateCompleted StepState = "completed"
	StepStateStale     StepState = "stale"
	StepStateCooldown  StepState = "cooldown"
)

// StatusSnapshot is the latest-wins status blob persisted as status.json.
// It mirrors the project record subset external observers poll for.
type StatusSnapshot struct {
	ProjectID      string        `json:"project_id"`
	Name           string        `json:"name"`
	Status         ProjectStatus `json:"status"`
	CurrentStep    int           `json:"current_step"`
	CompletedSteps []int         `json:"completed_steps"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// StepStatus is the per-step portion of a status report.
type StepStatus struct {
	Index       int       `json:"index"`
	Name        string    `json:"name"`
	State       StepState `json:"state"`
	Degraded    bool      `json:"degraded,omitempty"`
	Attempts    int       `json:"attempts,omitempty"`
	Model       string    `json:"model,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	GeneratedAt time.Time `json:"generated_at,omitzero"`
	// NextAllowed is set when the step is in cooldown.
	NextAllowed time.Time `json:"next_allowed,omitzero"`
}

// StatusReport is the full answer to a status query: the project record plus
// the live per-step assessment (completed / stale / missing / cooldown).
type StatusReport struct {
	Project *Project     `json:"project"`
	Steps   []StepStatus `json:"steps"`
	Busy    bool         `json:"busy"`
}
