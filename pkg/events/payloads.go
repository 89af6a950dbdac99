package events

import "encoding/json"

// Event is one journal line. Seq is monotonic per project and assigned by
// the publisher; Step is nil for project-level events (checkpoints).
type Event struct {
	Seq       int64           `json:"seq"`
	Timestamp string          `json:"timestamp"` // RFC3339Nano
	ProjectID string          `json:"project_id"`
	Step      *int            `json:"step,omitempty"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// StepStartedPayload is the payload for step_started events.
type StepStartedPayload struct {
	StepName string `json:"step_name"`
	Revision bool   `json:"revision,omitempty"`
}

// StepProgressPayload is the payload for step_progress events, emitted
// every few completed sub-tasks during a fanout step.
type StepProgressPayload struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// StepCompletedPayload is the payload for step_completed events.
type StepCompletedPayload struct {
	StepName    string `json:"step_name"`
	ContentHash string `json:"content_hash"`
	Model       string `json:"model"`
	Attempts    int    `json:"attempts"`
	Degraded    bool   `json:"degraded"`
}

// StepFailedPayload is the payload for step_failed events.
type StepFailedPayload struct {
	StepName string `json:"step_name"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// StepCancelledPayload is the payload for step_cancelled events.
type StepCancelledPayload struct {
	StepName string `json:"step_name"`
}

// IssueSummary is one validator finding carried inside a
// validation_failed payload.
type IssueSummary struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationFailedPayload is the payload for validation_failed events.
type ValidationFailedPayload struct {
	StepName string         `json:"step_name"`
	Attempt  int            `json:"attempt"`
	Errors   []IssueSummary `json:"errors"`
}

// RevisionStartedPayload is the payload for revision_started events.
type RevisionStartedPayload struct {
	StepName        string `json:"step_name"`
	SnapshotVersion int    `json:"snapshot_version"`
	Guidance        string `json:"guidance,omitempty"`
}

// ProviderFallbackPayload is the payload for provider_fallback events,
// emitted when the candidate chain advances past a failing provider.
type ProviderFallbackPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// CircuitOpenPayload is the payload for circuit_open events.
type CircuitOpenPayload struct {
	Provider  string `json:"provider"`
	Model     string `json:"model"`
	OpenUntil string `json:"open_until"` // RFC3339Nano
}

// CircuitClosedPayload is the payload for circuit_closed events.
type CircuitClosedPayload struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// CheckpointPayload is the payload for checkpoint events, emitted after
// project state is durably updated.
type CheckpointPayload struct {
	CompletedSteps []int  `json:"completed_steps"`
	CurrentStep    int    `json:"current_step"`
	Status         string `json:"status"`
}
