package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/models"
	"github.com/novelforge/novelforge/pkg/pipeline"
)

func TestPipelineRunsThroughCharacters(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	projectID := h.createProject(t)

	require.NoError(t, h.engine.ExecuteAll(context.Background(), projectID, pipeline.StepCharacters))

	report, err := h.engine.Status(projectID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, report.Project.CompletedSteps)

	for step := 0; step <= pipeline.StepCharacters; step++ {
		env, err := h.engine.Artifact(projectID, step)
		require.NoError(t, err, "artifact for step %d", step)
		assert.Equal(t, step, env.Step)
		assert.Equal(t, "primary/stub-a", env.Model)
		assert.False(t, env.Degraded)
	}

	// Characters must decode into the typed payload the downstream steps
	// consume.
	env, err := h.engine.Artifact(projectID, pipeline.StepCharacters)
	require.NoError(t, err)
	cast, err := pipeline.Decode[pipeline.CharactersPayload](env.Payload)
	require.NoError(t, err)
	require.Len(t, cast.Characters, 2)
	assert.Equal(t, "Mara", cast.Characters[0].Name)

	kinds := h.journalKinds(t, projectID)
	assert.Equal(t, 4, countKind(kinds, events.KindStepStarted))
	assert.Equal(t, 4, countKind(kinds, events.KindStepCompleted))
	assert.GreaterOrEqual(t, countKind(kinds, events.KindCheckpoint), 1)
}

func TestRerunIsCachedNoOp(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	projectID := h.createProject(t)

	require.NoError(t, h.engine.ExecuteAll(context.Background(), projectID, pipeline.StepLogline))
	callsAfterFirst := h.primary.Calls()

	env, err := h.engine.ExecuteStep(context.Background(), projectID, pipeline.StepLogline)
	require.NoError(t, err)

	assert.Equal(t, callsAfterFirst, h.primary.Calls(), "cached re-run must not call the provider")
	assert.Equal(t, pipeline.StepLogline, env.Step)
}

func TestStatusSurvivesReload(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	projectID := h.createProject(t)
	require.NoError(t, h.engine.ExecuteAll(context.Background(), projectID, pipeline.StepParagraph))

	// A second engine over the same storage root sees the same completed
	// set, rebuilt from the artifacts on disk.
	p, err := h.store.Load(projectID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, p.CompletedSteps)
	assert.Equal(t, models.ProjectStatusCreated, p.Status)
}
