package e2e

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/pipeline"
)

func TestValidationFailureTriggersRevision(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	projectID := h.createProject(t)

	// The first logline draft drops the components object; the revision
	// prompt carries the validator findings and gets the corrected draft.
	h.primary.SetScript(func(_ int, _, _, user string, _ llm.CallOptions) (*llm.ProviderResult, error) {
		if isRevisionPrompt(user) {
			return &llm.ProviderResult{Text: stepAnswers[pipeline.StepLogline].text, StopReason: "end_turn"}, nil
		}
		if strings.Contains(user, "logline of at most 25 words") {
			return &llm.ProviderResult{Text: `{"logline": "A disgraced detective must stop her former partner before the city floods", "word_count": 13}`, StopReason: "end_turn"}, nil
		}
		return &llm.ProviderResult{Text: answerByMarker(user), StopReason: "end_turn"}, nil
	})

	require.NoError(t, h.engine.ExecuteAll(context.Background(), projectID, pipeline.StepLogline))

	env, err := h.engine.Artifact(projectID, pipeline.StepLogline)
	require.NoError(t, err)
	assert.Equal(t, 2, env.Attempts)
	assert.False(t, env.Degraded)

	logline, err := pipeline.Decode[pipeline.LoglinePayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "a disgraced detective", logline.Components.Lead)

	kinds := h.journalKinds(t, projectID)
	assert.Equal(t, 1, countKind(kinds, events.KindValidationFailed))
}

func TestValidationExhaustionProducesFallback(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	projectID := h.createProject(t)
	require.NoError(t, h.engine.ExecuteAll(context.Background(), projectID, pipeline.StepParagraph))

	// Every characters draft, revisions included, comes back empty. The
	// attempt budget exhausts and the deterministic fallback engages.
	h.primary.SetScript(func(_ int, _, _, user string, _ llm.CallOptions) (*llm.ProviderResult, error) {
		if strings.Contains(user, "principal cast") || isRevisionPrompt(user) {
			return &llm.ProviderResult{Text: `{"characters": []}`, StopReason: "end_turn"}, nil
		}
		return &llm.ProviderResult{Text: answerByMarker(user), StopReason: "end_turn"}, nil
	})

	env, err := h.engine.ExecuteStep(context.Background(), projectID, pipeline.StepCharacters)
	require.NoError(t, err)

	assert.True(t, env.Degraded)
	assert.Equal(t, 3, env.Attempts)
	assert.Equal(t, "fallback", env.Model)

	cast, err := pipeline.Decode[pipeline.CharactersPayload](env.Payload)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(cast.Characters), 2)

	kinds := h.journalKinds(t, projectID)
	assert.Equal(t, 3, countKind(kinds, events.KindValidationFailed))
	// A degraded artifact still completes the step.
	report, err := h.engine.Status(projectID)
	require.NoError(t, err)
	assert.Contains(t, report.Project.CompletedSteps, pipeline.StepCharacters)
}

func TestReviseStepRetiresDownstream(t *testing.T) {
	h := newHarness(t, harnessOptions{})
	projectID := h.createProject(t)
	require.NoError(t, h.engine.ExecuteAll(context.Background(), projectID, pipeline.StepCharacters))

	env, err := h.engine.ReviseStep(context.Background(), projectID, pipeline.StepLogline, "lean into the noir register")
	require.NoError(t, err)
	assert.Equal(t, pipeline.StepLogline, env.Step)

	// Everything after the revised step is retired; the revised step and
	// its ancestors survive.
	report, err := h.engine.Status(projectID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, report.Project.CompletedSteps)
	_, err = h.engine.Artifact(projectID, pipeline.StepParagraph)
	require.Error(t, err)
	_, err = h.engine.Artifact(projectID, pipeline.StepCharacters)
	require.Error(t, err)

	kinds := h.journalKinds(t, projectID)
	assert.Equal(t, 1, countKind(kinds, events.KindRevisionStarted))

	// A forward run rebuilds the retired steps from the revised output.
	require.NoError(t, h.engine.ExecuteAll(context.Background(), projectID, pipeline.StepCharacters))
	report, err = h.engine.Status(projectID)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, report.Project.CompletedSteps)
}
