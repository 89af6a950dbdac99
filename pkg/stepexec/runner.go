// Package stepexec is the step runtime: the template method every step runs
// through. One execution composes the parent artifacts, builds the prompt,
// generates through the reliability layer, recovers structure with the
// four-tier parser, validates, revises up to the configured bound, falls
// back to deterministic synthesis where the step permits it, and publishes
// the finished envelope atomically.
//
// Steps 9 and 10 fan out per scene; see fanout.go.
package stepexec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/novelforge/novelforge/pkg/config"
	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/models"
	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/pipeline/prompt"
	"github.com/novelforge/novelforge/pkg/pipeline/validate"
	"github.com/novelforge/novelforge/pkg/store"
)

// Generator is the reliability-layer surface the runtime depends on.
// *llm.Dispatcher implements it; tests substitute scripted fakes.
type Generator interface {
	Generate(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// ValidationError reports a step whose output never passed validation
// within the revision bound and had no fallback to fall to.
type ValidationError struct {
	Step     int
	Attempts int
	Issues   []validate.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d (%s) failed validation after %d attempts (%d issues)",
		e.Step, pipeline.Name(e.Step), e.Attempts, len(e.Issues))
}

// Runner executes single steps. Stateless between executions; safe for use
// by one orchestrator goroutine per project.
type Runner struct {
	store     *store.Store
	gen       Generator
	prompts   *prompt.Builder
	publisher *events.Publisher
	cfg       *config.EngineConfig
	logger    *slog.Logger
}

// NewRunner wires a step runtime.
func NewRunner(st *store.Store, gen Generator, publisher *events.Publisher, cfg *config.EngineConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:     st,
		gen:       gen,
		prompts:   prompt.NewBuilder(),
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "stepexec"),
	}
}

// Options tune one execution.
type Options struct {
	// Guidance is optional free-text steering folded into the prompt.
	// Set on revisions.
	Guidance string
}

// inputs is the composed upstream state one execution reads once.
type inputs struct {
	brief        string
	payloads     map[int]json.RawMessage // parents ∪ validator requirements
	upstreamHash string
}

// Execute runs the full template method for one step and persists the
// resulting artifact. The returned envelope is the written one.
func (r *Runner) Execute(ctx context.Context, projectID string, step int, opts Options) (*models.Envelope, error) {
	desc, err := pipeline.Get(step)
	if err != nil {
		return nil, err
	}

	in, err := r.composeInputs(ctx, projectID, step)
	if err != nil {
		return nil, err
	}

	var payload json.RawMessage
	var degraded bool
	var modelUsed string
	var attempts int

	if desc.Fanout {
		payload, degraded, modelUsed, attempts, err = r.runFanout(ctx, projectID, desc, in, opts)
	} else {
		payload, degraded, modelUsed, attempts, err = r.runSingle(ctx, projectID, desc, in, opts)
	}
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		// Cancellation observed after generation: drop the result, write
		// nothing.
		return nil, err
	}

	env := &models.Envelope{
		Version:      models.EnvelopeVersion,
		Step:         step,
		UpstreamHash: in.upstreamHash,
		ContentHash:  models.HashContent(payload),
		Model:        modelUsed,
		GeneratedAt:  time.Now().UTC(),
		Degraded:     degraded,
		Attempts:     attempts,
		Payload:      payload,
	}
	if err := r.store.WriteArtifact(projectID, env, renderHuman(step, payload)); err != nil {
		return nil, err
	}
	return env, nil
}

// UpstreamHash recomputes the upstream hash a fresh run of the step would
// record, from the current parent artifacts. Used by the orchestrator's
// staleness check.
func (r *Runner) UpstreamHash(projectID string, step int) (string, error) {
	hashes := make([]string, 0, len(pipeline.Parents(step)))
	for _, parent := range pipeline.Parents(step) {
		env, err := r.store.ReadArtifact(projectID, parent)
		if err != nil {
			return "", err
		}
		hashes = append(hashes, env.ContentHash)
	}
	return models.UpstreamHash(prompt.Version(step), hashes), nil
}

// composeInputs reads the parent artifacts plus whatever extra upstream
// payloads the step's validator consults, and fingerprints the inputs.
func (r *Runner) composeInputs(ctx context.Context, projectID string, step int) (*inputs, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := &inputs{payloads: make(map[int]json.RawMessage)}

	if step == pipeline.StepSeed {
		brief, err := r.store.ReadBrief(projectID)
		if err != nil {
			return nil, err
		}
		in.brief = brief
	}

	parentHashes := make([]string, 0, len(pipeline.Parents(step)))
	for _, parent := range pipeline.Parents(step) {
		env, err := r.store.ReadArtifact(projectID, parent)
		if err != nil {
			return nil, err
		}
		in.payloads[parent] = env.Payload
		parentHashes = append(parentHashes, env.ContentHash)
	}
	extras := validate.Requires(step)
	if step == pipeline.StepManuscript {
		// Prose prompts carry the POV character's bible; the validator
		// itself never reads it.
		extras = append(extras, pipeline.StepCharacterBibles)
	}
	for _, req := range extras {
		if _, ok := in.payloads[req]; ok {
			continue
		}
		env, err := r.store.ReadArtifact(projectID, req)
		if err != nil {
			return nil, err
		}
		in.payloads[req] = env.Payload
	}

	in.upstreamHash = models.UpstreamHash(prompt.Version(step), parentHashes)
	return in, nil
}

// runSingle drives the generate → parse → validate → revise loop for a
// non-fanout step, ending in emergency fallback where permitted.
func (r *Runner) runSingle(ctx context.Context, projectID string, desc pipeline.Descriptor, in *inputs, opts Options) (json.RawMessage, bool, string, int, error) {
	p, err := r.prompts.Build(desc.Index, prompt.Inputs{
		Brief:    in.brief,
		Parents:  in.payloads,
		Guidance: opts.Guidance,
	})
	if err != nil {
		return nil, false, "", 0, err
	}

	log := r.logger.With("project_id", projectID, "step", desc.Index, "step_name", desc.Name)

	var lastIssues []validate.Issue
	var lastGenErr error
	attempts := 0
	modelUsed := ""

	for attempt := 1; attempt <= r.cfg.MaxRevisions; attempt++ {
		attempts = attempt

		resp, genErr := r.gen.Generate(ctx, &llm.Request{
			ProjectID:   projectID,
			Step:        desc.Index,
			System:      p.System,
			Prompt:      p.User,
			Tier:        desc.Tier,
			MaxTokens:   desc.MaxTokens,
			Temperature: desc.Temperature,
		})
		if genErr != nil {
			if isCancelled(genErr) {
				return nil, false, "", attempts, genErr
			}
			// Generation itself failed: no point revising, go straight to
			// fallback or surface the failure.
			lastGenErr = genErr
			break
		}
		modelUsed = resp.Provider + "/" + resp.Model

		payload, parseDegraded := parseResponse(resp.Text)
		issues, verr := validate.Step(desc.Index, validate.Input{Payload: payload, Artifacts: in.payloads})
		if verr != nil {
			return nil, false, "", attempts, verr
		}

		if len(issues) == 0 {
			return payload, parseDegraded, modelUsed, attempts, nil
		}

		lastIssues = issues
		log.Warn("Step output failed validation", "attempt", attempt, "issues", len(issues))
		if err := r.publisher.PublishValidationFailed(projectID, desc.Index, desc.Name, attempt, issueSummaries(issues)); err != nil {
			log.Warn("Failed to publish validation_failed event", "error", err)
		}

		if attempt == r.cfg.MaxRevisions {
			break
		}
		p, err = r.prompts.BuildRevision(desc.Index, resp.Text, issues, opts.Guidance)
		if err != nil {
			return nil, false, "", attempts, err
		}
	}

	if lastGenErr != nil && isNonRetryable(lastGenErr) {
		// Bad credentials or a malformed request. Fallback would only mask
		// a condition the operator has to fix, so the step fails instead.
		return nil, false, "", attempts, lastGenErr
	}

	if desc.Fallback {
		payload, fbErr := synthesizeFallback(desc.Index, in.payloads)
		if fbErr == nil {
			log.Info("Emergency fallback engaged", "attempts", attempts)
			return payload, true, "fallback", attempts, nil
		}
		log.Error("Emergency fallback failed", "error", fbErr)
	}

	if lastGenErr != nil {
		return nil, false, "", attempts, lastGenErr
	}
	return nil, false, "", attempts, &ValidationError{Step: desc.Index, Attempts: attempts, Issues: lastIssues}
}

func issueSummaries(issues []validate.Issue) []events.IssueSummary {
	out := make([]events.IssueSummary, len(issues))
	for i, issue := range issues {
		out[i] = events.IssueSummary{Code: issue.Code, Message: issue.Message}
	}
	return out
}

// isCancelled distinguishes caller cancellation from provider failure so the
// runtime never engages fallback on a cancelled run.
func isCancelled(err error) bool {
	if errors.Is(err, context.Canceled) {
		return true
	}
	var lerr *llm.Error
	return errors.As(err, &lerr) && lerr.Kind == llm.KindCancelled
}

// isNonRetryable reports whether generation failed for a reason no retry
// and no fallback can fix, such as rejected credentials. Chain exhaustion
// is not in that class; it keeps its fallback authorization.
func isNonRetryable(err error) bool {
	if errors.Is(err, llm.ErrAllCandidatesFailed) {
		return false
	}
	var lerr *llm.Error
	if !errors.As(err, &lerr) {
		return false
	}
	return lerr.Kind == llm.KindPermanent || lerr.Kind == llm.KindInvalidInput
}
