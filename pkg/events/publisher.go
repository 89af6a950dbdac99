package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Sink is the durable append target for journal lines. The project store
// implements it; it owns the events.log files and their per-project locking.
type Sink interface {
	// AppendEvent durably appends one serialized event line. The event is
	// fsync'd before a nil return.
	AppendEvent(projectID string, line []byte) error
	// LastEventSeq returns the sequence number of the newest journal line,
	// or 0 when the journal is empty or absent.
	LastEventSeq(projectID string) (int64, error)
}

// Publisher assigns sequence numbers, persists events through the sink, and
// notifies broker subscribers.
//
// Each public method accepts the event-specific payload; see payloads.go.
// All methods are nil-receiver safe so components can hold an optional
// publisher without guarding every call site.
type Publisher struct {
	sink   Sink
	broker *Broker

	mu      sync.Mutex
	streams map[string]*projectStream
}

// projectStream serializes seq assignment + append for one project so the
// journal stays totally ordered even when fanout sub-tasks publish
// concurrently. Publishes for different projects do not contend.
type projectStream struct {
	mu     sync.Mutex
	seq    int64
	loaded bool
}

// NewPublisher creates a publisher over the given sink. The broker may be
// nil when no live subscribers exist (CLI runs, tests).
func NewPublisher(sink Sink, broker *Broker) *Publisher {
	return &Publisher{
		sink:    sink,
		broker:  broker,
		streams: make(map[string]*projectStream),
	}
}

// --- Typed public methods ---

// PublishStepStarted publishes a step_started event.
func (p *Publisher) PublishStepStarted(projectID string, step int, name string, revision bool) error {
	return p.publish(projectID, &step, KindStepStarted, StepStartedPayload{StepName: name, Revision: revision})
}

// PublishStepProgress publishes a step_progress event. Emitted every few
// completed sub-tasks during a fanout step.
func (p *Publisher) PublishStepProgress(projectID string, step int, completed, total int) error {
	return p.publish(projectID, &step, KindStepProgress, StepProgressPayload{Completed: completed, Total: total})
}

// PublishStepCompleted publishes a step_completed event.
func (p *Publisher) PublishStepCompleted(projectID string, step int, payload StepCompletedPayload) error {
	return p.publish(projectID, &step, KindStepCompleted, payload)
}

// PublishStepFailed publishes a step_failed event.
func (p *Publisher) PublishStepFailed(projectID string, step int, name, code, message string) error {
	return p.publish(projectID, &step, KindStepFailed, StepFailedPayload{StepName: name, Code: code, Message: message})
}

// PublishStepCancelled publishes a step_cancelled event.
func (p *Publisher) PublishStepCancelled(projectID string, step int, name string) error {
	return p.publish(projectID, &step, KindStepCancelled, StepCancelledPayload{StepName: name})
}

// PublishValidationFailed publishes a validation_failed event carrying the
// validator findings for one attempt.
func (p *Publisher) PublishValidationFailed(projectID string, step int, name string, attempt int, issues []IssueSummary) error {
	return p.publish(projectID, &step, KindValidationFailed, ValidationFailedPayload{StepName: name, Attempt: attempt, Errors: issues})
}

// PublishRevisionStarted publishes a revision_started event.
func (p *Publisher) PublishRevisionStarted(projectID string, step int, name string, snapshotVersion int, guidance string) error {
	return p.publish(projectID, &step, KindRevisionStarted, RevisionStartedPayload{
		StepName:        name,
		SnapshotVersion: snapshotVersion,
		Guidance:        guidance,
	})
}

// PublishProviderFallback publishes a provider_fallback event when the
// candidate chain advances past a failing provider.
func (p *Publisher) PublishProviderFallback(projectID string, step int, from, to, reason string) error {
	return p.publish(projectID, &step, KindProviderFallback, ProviderFallbackPayload{From: from, To: to, Reason: reason})
}

// PublishCircuitOpen publishes a circuit_open event, attributed to the
// project whose request observed the transition.
func (p *Publisher) PublishCircuitOpen(projectID string, step int, provider, model string, openUntil time.Time) error {
	return p.publish(projectID, &step, KindCircuitOpen, CircuitOpenPayload{
		Provider:  provider,
		Model:     model,
		OpenUntil: openUntil.UTC().Format(time.RFC3339Nano),
	})
}

// PublishCircuitClosed publishes a circuit_closed event.
func (p *Publisher) PublishCircuitClosed(projectID string, step int, provider, model string) error {
	return p.publish(projectID, &step, KindCircuitClosed, CircuitClosedPayload{Provider: provider, Model: model})
}

// PublishCheckpoint publishes a project-level checkpoint event after the
// project record was durably updated.
func (p *Publisher) PublishCheckpoint(projectID string, completed []int, current int, status string) error {
	return p.publish(projectID, nil, KindCheckpoint, CheckpointPayload{
		CompletedSteps: completed,
		CurrentStep:    current,
		Status:         status,
	})
}

// --- Internal core ---

func (p *Publisher) stream(projectID string) *projectStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.streams[projectID]
	if !ok {
		s = &projectStream{}
		p.streams[projectID] = s
	}
	return s
}

// publish marshals the payload, assigns the next sequence number, appends to
// the journal, then broadcasts. The counter only advances when the append
// was durable, so a failed append never leaves a gap.
func (p *Publisher) publish(projectID string, step *int, kind string, payload any) error {
	if p == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	s := p.stream(projectID)
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		last, err := p.sink.LastEventSeq(projectID)
		if err != nil {
			return fmt.Errorf("failed to load event sequence: %w", err)
		}
		s.seq = last
		s.loaded = true
	}

	ev := Event{
		Seq:       s.seq + 1,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		ProjectID: projectID,
		Step:      step,
		Kind:      kind,
		Payload:   raw,
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := p.sink.AppendEvent(projectID, line); err != nil {
		return fmt.Errorf("failed to append %s event: %w", kind, err)
	}
	s.seq = ev.Seq

	if p.broker != nil {
		p.broker.Broadcast(ProjectChannel(projectID), ev)
	}
	return nil
}
