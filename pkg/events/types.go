// Package events provides the pipeline's lifecycle event stream: an
// append-only JSON-lines journal per project plus an in-process broker that
// fans events out to live subscribers (the WebSocket adapter).
//
// ════════════════════════════════════════════════════════════════
// Ordering and durability
// ════════════════════════════════════════════════════════════════
//
// Every event carries a per-project monotonic sequence number assigned at
// publish time. Publish appends the serialized event to the project journal
// (fsync before return; if Publish returns nil the event is durable), then
// notifies subscribers fire-and-forget: a slow subscriber drops events, it
// never blocks the pipeline. Events of one project are totally ordered by
// seq; there is no cross-project ordering.
//
// Because steps execute serially within a project, all events of step i
// precede all events of step j for j > i. Within a fanout step, progress
// events may interleave freely between sub-task completions.
//
// Subscribers that reconnect replay missed events by reading the journal
// tail (see store.ReadEventLines) before resuming the live feed.
package events

// Event kinds written to the journal.
const (
	KindStepStarted      = "step_started"
	KindStepProgress     = "step_progress"
	KindStepCompleted    = "step_completed"
	KindStepFailed       = "step_failed"
	KindStepCancelled    = "step_cancelled"
	KindValidationFailed = "validation_failed"
	KindRevisionStarted  = "revision_started"
	KindProviderFallback = "provider_fallback"
	KindCircuitOpen      = "circuit_open"
	KindCircuitClosed    = "circuit_closed"
	KindCheckpoint       = "checkpoint"
)

// ProjectChannel returns the broker channel name for one project's events.
// Format: "project:{project_id}"
func ProjectChannel(projectID string) string {
	return "project:" + projectID
}

// ClientMessage is the JSON structure for client → server WebSocket messages.
type ClientMessage struct {
	Action  string `json:"action"`            // "subscribe", "catchup", "ping"
	Channel string `json:"channel,omitempty"` // e.g. "project:abc-123"
	// AfterSeq requests catch-up replay of journal events with seq greater
	// than this value.
	AfterSeq *int64 `json:"after_seq,omitempty"`
}
