package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/stepexec"
	"github.com/novelforge/novelforge/pkg/store"
)

// Stable facade error codes. The HTTP and CLI adapters translate these to
// their own status conventions; the codes themselves never change.
const (
	CodeOK              = "ok"
	CodeNotFound        = "not_found"
	CodeAlreadyExists   = "already_exists"
	CodeBusy            = "busy"
	CodeUnsatisfiedDeps = "unsatisfied_dependencies"
	CodeCooldown        = "cooldown"
	CodeCancelled       = "cancelled"
	CodeAllFailed       = "all_candidates_failed"
	CodeValidation      = "validation_failed"
	CodePermanent       = "permanent"
	CodeIOError         = "io_error"
)

// ErrBusy rejects a second concurrent run on the same project.
var ErrBusy = errors.New("project has an active run")

// ErrInvalidStep rejects a step index outside the registry.
var ErrInvalidStep = errors.New("invalid step index")

// DependencyError reports missing parent artifacts for a step.
type DependencyError struct {
	Step    int
	Missing []int
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("step %d has unsatisfied dependencies: missing artifacts for steps %v", e.Step, e.Missing)
}

// CooldownError reports a (project, step) pair whose next allowed run is in
// the future.
type CooldownError struct {
	Step        int
	Streak      int
	NextAllowed time.Time
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("step %d is in cooldown after %d consecutive failures; next allowed at %s",
		e.Step, e.Streak, e.NextAllowed.Format(time.RFC3339))
}

// CodeFor maps any error surfaced by the facade to its stable code.
func CodeFor(err error) string {
	if err == nil {
		return CodeOK
	}

	var depErr *DependencyError
	var cdErr *CooldownError
	var valErr *stepexec.ValidationError
	var llmErr *llm.Error

	switch {
	case errors.Is(err, ErrBusy):
		return CodeBusy
	case errors.As(err, &depErr):
		return CodeUnsatisfiedDeps
	case errors.As(err, &cdErr):
		return CodeCooldown
	case errors.Is(err, context.Canceled):
		return CodeCancelled
	case errors.As(err, &valErr):
		return CodeValidation
	case errors.Is(err, store.ErrNotFound), errors.Is(err, ErrInvalidStep):
		return CodeNotFound
	case errors.Is(err, store.ErrAlreadyExists):
		return CodeAlreadyExists
	case errors.Is(err, store.ErrArtifactMissing):
		return CodeUnsatisfiedDeps
	case errors.Is(err, llm.ErrAllCandidatesFailed):
		return CodeAllFailed
	case errors.As(err, &llmErr):
		switch llmErr.Kind {
		case llm.KindCancelled:
			return CodeCancelled
		case llm.KindPermanent, llm.KindInvalidInput:
			return CodePermanent
		default:
			return CodeAllFailed
		}
	default:
		return CodeIOError
	}
}
