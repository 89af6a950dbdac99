// Package engine is the orchestrator: the only component that mutates
// project records. It drives steps through the runtime in dependency order,
// enforces readiness and per-step cooldowns, admits one run per project at a
// time, and cascades invalidation after revisions.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/novelforge/novelforge/pkg/config"
	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/models"
	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/pipeline/validate"
	"github.com/novelforge/novelforge/pkg/stepexec"
	"github.com/novelforge/novelforge/pkg/store"
)

// Engine is the orchestration facade consumed by the HTTP API, the CLI, and
// the end-to-end tests.
type Engine struct {
	store     *store.Store
	runner    *stepexec.Runner
	publisher *events.Publisher
	cfg       *config.EngineConfig
	logger    *slog.Logger

	runs      *runRegistry
	cooldowns *cooldownTracker
}

// New wires an engine over its collaborators.
func New(st *store.Store, runner *stepexec.Runner, publisher *events.Publisher, cfg *config.EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:     st,
		runner:    runner,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "engine"),
		runs:      newRunRegistry(),
		cooldowns: newCooldownTracker(cfg),
	}
}

// CreateProject registers a new project with its seed brief.
func (e *Engine) CreateProject(ctx context.Context, name, seed string) (*models.Project, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("project name is required")
	}
	if seed == "" {
		return nil, fmt.Errorf("seed brief is required")
	}

	p := &models.Project{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		Status:    models.ProjectStatusCreated,
	}
	if err := e.store.Create(p, seed); err != nil {
		return nil, err
	}

	e.logger.Info("Project created", "project_id", p.ID, "name", name)
	return p, nil
}

// ExecuteStep runs a single step. Re-executing a completed step whose
// upstream hash still matches is a no-op returning the cached artifact.
func (e *Engine) ExecuteStep(ctx context.Context, projectID string, step int) (*models.Envelope, error) {
	runCtx, release, err := e.runs.begin(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := e.store.Load(projectID)
	if err != nil {
		return nil, err
	}

	env, cached, err := e.executeStep(runCtx, p, step, stepexec.Options{}, false)
	if err != nil {
		e.settle(p, err)
		return nil, err
	}
	if !cached {
		e.settle(p, nil)
	}
	return env, nil
}

// ExecuteAll runs the pipeline in dependency order up to and including upTo,
// skipping steps that are already completed and not stale. It stops on the
// first failure.
func (e *Engine) ExecuteAll(ctx context.Context, projectID string, upTo int) error {
	if upTo < 0 || upTo >= pipeline.Count() {
		return fmt.Errorf("step %d: %w", upTo, ErrInvalidStep)
	}

	runCtx, release, err := e.runs.begin(ctx, projectID)
	if err != nil {
		return err
	}
	defer release()

	p, err := e.store.Load(projectID)
	if err != nil {
		return err
	}

	for _, step := range pipeline.TopologicalOrder() {
		if step > upTo {
			continue
		}
		if err := runCtx.Err(); err != nil {
			e.settle(p, err)
			return err
		}

		if _, _, err := e.executeStep(runCtx, p, step, stepexec.Options{}, false); err != nil {
			e.settle(p, err)
			return err
		}
	}

	e.settle(p, nil)
	return nil
}

// ReviseStep snapshots the step's current artifact and re-runs it with
// optional author guidance, then invalidates everything downstream.
func (e *Engine) ReviseStep(ctx context.Context, projectID string, step int, guidance string) (*models.Envelope, error) {
	runCtx, release, err := e.runs.begin(ctx, projectID)
	if err != nil {
		return nil, err
	}
	defer release()

	p, err := e.store.Load(projectID)
	if err != nil {
		return nil, err
	}
	if _, err := pipeline.Get(step); err != nil {
		return nil, fmt.Errorf("step %d: %w", step, ErrInvalidStep)
	}
	if !e.store.HasArtifact(projectID, step) {
		return nil, fmt.Errorf("step %d has no artifact to revise: %w", step, store.ErrArtifactMissing)
	}

	version, err := e.store.SnapshotArtifact(projectID, step)
	if err != nil {
		return nil, err
	}
	if err := e.publisher.PublishRevisionStarted(projectID, step, pipeline.Name(step), version, guidance); err != nil {
		e.logger.Warn("Failed to publish revision_started event", "project_id", projectID, "error", err)
	}

	env, _, err := e.executeStep(runCtx, p, step, stepexec.Options{Guidance: guidance}, true)
	if err != nil {
		e.settle(p, err)
		return nil, err
	}

	if err := e.invalidateDownstream(p, step); err != nil {
		return nil, err
	}
	e.settle(p, nil)
	return env, nil
}

// ValidateOnly re-runs the step validator against the persisted artifact
// without any generation.
func (e *Engine) ValidateOnly(ctx context.Context, projectID string, step int) ([]validate.Issue, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := pipeline.Get(step); err != nil {
		return nil, fmt.Errorf("step %d: %w", step, ErrInvalidStep)
	}

	env, err := e.store.ReadArtifact(projectID, step)
	if err != nil {
		return nil, err
	}

	artifacts := make(map[int]json.RawMessage)
	for _, req := range validate.Requires(step) {
		upstream, err := e.store.ReadArtifact(projectID, req)
		if err != nil {
			return nil, err
		}
		artifacts[req] = upstream.Payload
	}

	return validate.Step(step, validate.Input{Payload: env.Payload, Artifacts: artifacts})
}

// Status assembles the live per-step report for a project.
func (e *Engine) Status(projectID string) (*models.StatusReport, error) {
	p, err := e.store.Load(projectID)
	if err != nil {
		return nil, err
	}

	report := &models.StatusReport{
		Project: p,
		Steps:   make([]models.StepStatus, 0, pipeline.Count()),
		Busy:    e.runs.busy(projectID),
	}

	for i := 0; i < pipeline.Count(); i++ {
		ss := models.StepStatus{Index: i, Name: pipeline.Name(i), State: models.StepStateMissing}

		if next := e.cooldowns.nextAllowed(projectID, i); !next.IsZero() {
			ss.State = models.StepStateCooldown
			ss.NextAllowed = next
			report.Steps = append(report.Steps, ss)
			continue
		}

		if e.store.HasArtifact(projectID, i) {
			env, err := e.store.ReadArtifact(projectID, i)
			if err != nil {
				return nil, err
			}
			ss.Degraded = env.Degraded
			ss.Attempts = env.Attempts
			ss.Model = env.Model
			ss.ContentHash = env.ContentHash
			ss.GeneratedAt = env.GeneratedAt

			ss.State = models.StepStateCompleted
			if stale, err := e.isStale(projectID, i, env); err != nil {
				return nil, err
			} else if stale {
				ss.State = models.StepStateStale
			}
		}

		report.Steps = append(report.Steps, ss)
	}

	return report, nil
}

// Cancel aborts the project's active run, if any.
func (e *Engine) Cancel(projectID string) bool {
	cancelled := e.runs.cancel(projectID)
	if cancelled {
		e.logger.Info("Cancelled active run", "project_id", projectID)
	}
	return cancelled
}

// Busy reports whether the project has an active run.
func (e *Engine) Busy(projectID string) bool {
	return e.runs.busy(projectID)
}

// List returns status snapshots for every project in the store.
func (e *Engine) List() ([]*models.StatusSnapshot, error) {
	ids, err := e.store.List()
	if err != nil {
		return nil, err
	}
	snaps := make([]*models.StatusSnapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := e.store.ReadStatus(id)
		if err != nil {
			e.logger.Warn("Skipping project with unreadable status", "project_id", id, "error", err)
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// Artifact returns the current envelope for a step.
func (e *Engine) Artifact(projectID string, step int) (*models.Envelope, error) {
	if _, err := pipeline.Get(step); err != nil {
		return nil, fmt.Errorf("step %d: %w", step, ErrInvalidStep)
	}
	return e.store.ReadArtifact(projectID, step)
}

// Shutdown cancels every active run. Callers wait for their own requests to
// unwind; the registry empties as runs observe cancellation.
func (e *Engine) Shutdown() {
	e.runs.drain()
}

// executeStep is the shared per-step path behind ExecuteStep, ExecuteAll,
// and ReviseStep. The caller must hold the project's run slot. The boolean
// reports a cache hit (completed step, unchanged upstream, no revision).
func (e *Engine) executeStep(ctx context.Context, p *models.Project, step int, opts stepexec.Options, revision bool) (*models.Envelope, bool, error) {
	desc, err := pipeline.Get(step)
	if err != nil {
		return nil, false, fmt.Errorf("step %d: %w", step, ErrInvalidStep)
	}

	var missing []int
	for _, parent := range desc.Parents {
		if !e.store.HasArtifact(p.ID, parent) {
			missing = append(missing, parent)
		}
	}
	if len(missing) > 0 {
		return nil, false, &DependencyError{Step: step, Missing: missing}
	}

	if !revision && e.store.HasArtifact(p.ID, step) {
		env, err := e.store.ReadArtifact(p.ID, step)
		if err != nil {
			return nil, false, err
		}
		current, err := e.runner.UpstreamHash(p.ID, step)
		if err != nil {
			return nil, false, err
		}
		if env.UpstreamHash == current {
			return env, true, nil
		}
		// Stale: upstream changed since this artifact was generated.
	}

	if cdErr := e.cooldowns.check(p.ID, step); cdErr != nil {
		return nil, false, cdErr
	}

	log := e.logger.With("project_id", p.ID, "step", step, "step_name", desc.Name)
	if err := e.publisher.PublishStepStarted(p.ID, step, desc.Name, revision); err != nil {
		log.Warn("Failed to publish step_started event", "error", err)
	}
	p.Status = models.ProjectStatusRunning
	if err := e.store.WriteStatus(p); err != nil {
		return nil, false, err
	}

	env, err := e.runner.Execute(ctx, p.ID, step, opts)
	if err != nil {
		if errors.Is(err, context.Canceled) || CodeFor(err) == CodeCancelled {
			log.Info("Step cancelled")
			if perr := e.publisher.PublishStepCancelled(p.ID, step, desc.Name); perr != nil {
				log.Warn("Failed to publish step_cancelled event", "error", perr)
			}
			return nil, false, err
		}

		entry := e.cooldowns.recordFailure(p.ID, step)
		log.Error("Step failed", "code", CodeFor(err), "streak", entry.streak, "next_allowed", entry.nextAllowed, "error", err)
		if perr := e.publisher.PublishStepFailed(p.ID, step, desc.Name, CodeFor(err), err.Error()); perr != nil {
			log.Warn("Failed to publish step_failed event", "error", perr)
		}
		return nil, false, err
	}

	e.cooldowns.reset(p.ID, step)
	p.MarkCompleted(step)
	if err := e.store.SaveProject(p); err != nil {
		return nil, false, err
	}

	if perr := e.publisher.PublishStepCompleted(p.ID, step, events.StepCompletedPayload{
		StepName:    desc.Name,
		ContentHash: env.ContentHash,
		Model:       env.Model,
		Attempts:    env.Attempts,
		Degraded:    env.Degraded,
	}); perr != nil {
		log.Warn("Failed to publish step_completed event", "error", perr)
	}

	log.Info("Step completed", "attempts", env.Attempts, "degraded", env.Degraded, "model", env.Model)
	return env, false, nil
}

// invalidateDownstream retires every completed artifact above the revised
// step. Artifacts are retained as snapshots; the completed-set no longer
// references them.
func (e *Engine) invalidateDownstream(p *models.Project, step int) error {
	for _, idx := range p.CompletedSteps {
		if idx <= step {
			continue
		}
		if !e.store.HasArtifact(p.ID, idx) {
			continue
		}
		version, err := e.store.RetireArtifact(p.ID, idx)
		if err != nil {
			return fmt.Errorf("failed to retire artifact for step %d: %w", idx, err)
		}
		e.logger.Info("Invalidated downstream artifact", "project_id", p.ID, "step", idx, "snapshot_version", version)
	}
	p.ClearAbove(step)
	return e.store.SaveProject(p)
}

// isStale reports whether the recorded upstream hash no longer matches a
// recomputation over the current parent artifacts.
func (e *Engine) isStale(projectID string, step int, env *models.Envelope) (bool, error) {
	for _, parent := range pipeline.Parents(step) {
		if !e.store.HasArtifact(projectID, parent) {
			return true, nil
		}
	}
	current, err := e.runner.UpstreamHash(projectID, step)
	if err != nil {
		return false, err
	}
	return env.UpstreamHash != current, nil
}

// settle records the project's resting status after a run: completed when
// the whole pipeline is done, cancelled or failed when the run ended that
// way, otherwise back to created (idle with partial progress). Precondition
// rejections leave the record alone since no step ran.
func (e *Engine) settle(p *models.Project, runErr error) {
	var depErr *DependencyError
	var cdErr *CooldownError

	switch {
	case runErr == nil && len(p.CompletedSteps) == pipeline.Count():
		p.Status = models.ProjectStatusCompleted
	case runErr == nil:
		p.Status = models.ProjectStatusCreated
	case CodeFor(runErr) == CodeCancelled:
		p.Status = models.ProjectStatusCancelled
	case errors.Is(runErr, ErrBusy), errors.As(runErr, &depErr), errors.As(runErr, &cdErr):
		return
	default:
		p.Status = models.ProjectStatusFailed
	}

	if err := e.store.SaveProject(p); err != nil {
		e.logger.Error("Failed to save project record", "project_id", p.ID, "error", err)
	}
	if err := e.store.WriteStatus(p); err != nil {
		e.logger.Error("Failed to write status snapshot", "project_id", p.ID, "error", err)
	}
	if err := e.publisher.PublishCheckpoint(p.ID, p.CompletedSteps, p.CurrentStep, string(p.Status)); err != nil {
		e.logger.Warn("Failed to publish checkpoint event", "project_id", p.ID, "error", err)
	}
}
