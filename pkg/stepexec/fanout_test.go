package stepexec

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/store"
)

// genFunc adapts a function to the Generator interface for content-aware
// scripting, where the canned answer depends on the prompt.
type genFunc func(ctx context.Context, req *llm.Request) (*llm.Response, error)

func (f genFunc) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	return f(ctx, req)
}

func mustPayload(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}

func testScenes() []pipeline.Scene {
	return []pipeline.Scene{
		{Index: 1, Type: pipeline.SceneTypeProactive, POV: "Mara", Summary: "Mara breaks into the records office", Location: "City hall", WordTarget: 1500, Conflict: "the night guard"},
		{Index: 2, Type: pipeline.SceneTypeReactive, POV: "Deacon", Summary: "Deacon learns of the break-in", Location: "Precinct", WordTarget: 1200, Conflict: "his own loyalty"},
		{Index: 3, Type: pipeline.SceneTypeProactive, POV: "Mara", Summary: "Mara confronts the commissioner", Location: "Rooftop", WordTarget: 1800, Conflict: "the commissioner's leverage"},
		{Index: 4, Type: pipeline.SceneTypeProactive, POV: "Deacon", Summary: "Deacon opens the floodgate logs", Location: "Dam control room", WordTarget: 1600, Conflict: "the sealed system"},
	}
}

func testBibles() pipeline.CharacterBiblesPayload {
	return pipeline.CharacterBiblesPayload{Bibles: []pipeline.CharacterBible{
		{Name: "Mara", Physical: "wiry, rain-soaked coat", Voice: "clipped", Background: "ex-harbor patrol", Personality: "relentless", Relationships: "estranged from Deacon"},
		{Name: "Deacon", Physical: "broad, tired eyes", Voice: "slow", Background: "twenty years on the force", Personality: "loyal to a fault", Relationships: "owes Mara his badge"},
	}}
}

func writeFanoutFixtures(t *testing.T, st *store.Store, projectID string, scenes []pipeline.Scene) {
	t.Helper()
	writeStep(t, st, projectID, pipeline.StepCharacterBibles, mustPayload(t, testBibles()))
	writeStep(t, st, projectID, pipeline.StepSceneList, mustPayload(t, pipeline.SceneListPayload{
		Scenes:      scenes,
		TotalTarget: 6100,
	}))
}

// briefByType answers each sub-prompt with a valid brief matching whichever
// scene type the prompt embeds.
func briefByType(t *testing.T) genFunc {
	return func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		brief := pipeline.SceneBrief{Type: pipeline.SceneTypeProactive, POV: "Mara",
			Goal: "get the file", Conflict: "the guard", Setback: "alarm trips", Stakes: "exposure"}
		if strings.Contains(req.Prompt, `"type": "reactive"`) {
			brief = pipeline.SceneBrief{Type: pipeline.SceneTypeReactive, POV: "Deacon",
				Reaction: "shock at the report", Dilemma: "report her or protect her", Decision: "stall the inquiry", Stakes: "his badge"}
		}
		return &llm.Response{Text: mustPayload(t, brief), Provider: "stub", Model: "stub-model"}, nil
	}
}

func TestFanoutBriefsAssembledInSceneOrder(t *testing.T) {
	scenes := testScenes()[:3]
	r, st, projectID := newTestRunner(t, briefByType(t))
	writeFanoutFixtures(t, st, projectID, scenes)

	env, err := r.Execute(context.Background(), projectID, pipeline.StepSceneBriefs, Options{})
	require.NoError(t, err)

	assert.False(t, env.Degraded)
	assert.Equal(t, 1, env.Attempts)
	assert.Equal(t, "stub/stub-model", env.Model)

	briefs, err := pipeline.Decode[pipeline.SceneBriefsPayload](env.Payload)
	require.NoError(t, err)
	require.Len(t, briefs.Briefs, 3)
	for i, scene := range scenes {
		assert.Equal(t, scene.Index, briefs.Briefs[i].SceneIndex)
		assert.Equal(t, scene.Type, briefs.Briefs[i].Type)
	}

	// ProgressEvery is 2 in the test config: events at 2 of 3 and 3 of 3.
	assert.Equal(t, 2, countJournalEvents(t, st, projectID, events.KindStepProgress))
}

func TestFanoutBriefFallsBackPerScene(t *testing.T) {
	calls := int32(0)
	gen := genFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		atomic.AddInt32(&calls, 1)
		return &llm.Response{Text: `{}`, Provider: "stub", Model: "stub-model"}, nil
	})
	scenes := testScenes()[:3]
	r, st, projectID := newTestRunner(t, gen)
	writeFanoutFixtures(t, st, projectID, scenes)

	env, err := r.Execute(context.Background(), projectID, pipeline.StepSceneBriefs, Options{})
	require.NoError(t, err)

	assert.True(t, env.Degraded)
	assert.Equal(t, 3, env.Attempts)
	assert.Equal(t, "fallback", env.Model)
	assert.Equal(t, int32(9), atomic.LoadInt32(&calls), "3 scenes, 3 attempts each")

	briefs, err := pipeline.Decode[pipeline.SceneBriefsPayload](env.Payload)
	require.NoError(t, err)
	require.Len(t, briefs.Briefs, 3)

	// Fallback briefs come from the scene rows themselves.
	assert.Equal(t, scenes[0].Summary, briefs.Briefs[0].Goal)
	assert.NotEmpty(t, briefs.Briefs[1].Reaction)
	assert.NotEmpty(t, briefs.Briefs[1].Decision)
	for i, brief := range briefs.Briefs {
		assert.Equal(t, scenes[i].POV, brief.POV)
		assert.NotEmpty(t, brief.Stakes)
	}
}

func TestFanoutManuscriptGroupsChapters(t *testing.T) {
	const prose = "The rain fell hard on the quay that night, and nobody came to watch."
	gen := genFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		return &llm.Response{Text: prose, Provider: "stub", Model: "stub-model"}, nil
	})

	scenes := testScenes()
	r, st, projectID := newTestRunner(t, gen)
	writeFanoutFixtures(t, st, projectID, scenes)

	briefs := make([]pipeline.SceneBrief, len(scenes))
	for i, scene := range scenes {
		briefs[i] = fallbackSceneBrief(scene)
	}
	writeStep(t, st, projectID, pipeline.StepSceneBriefs, mustPayload(t, pipeline.SceneBriefsPayload{Briefs: briefs}))

	env, err := r.Execute(context.Background(), projectID, pipeline.StepManuscript, Options{})
	require.NoError(t, err)

	// Bare narrative text is accepted as the scene prose, not a degradation.
	assert.False(t, env.Degraded)

	ms, err := pipeline.Decode[pipeline.ManuscriptPayload](env.Payload)
	require.NoError(t, err)
	require.Len(t, ms.Chapters, 2)
	assert.Equal(t, 1, ms.Chapters[0].Index)
	assert.Equal(t, 2, ms.Chapters[1].Index)
	require.Len(t, ms.Chapters[0].Scenes, 3)
	require.Len(t, ms.Chapters[1].Scenes, 1)

	wordsPerScene := pipeline.CountWords(prose)
	assert.Equal(t, wordsPerScene*len(scenes), ms.TotalWordCount)

	order := []int{}
	for _, ch := range ms.Chapters {
		for _, sp := range ch.Scenes {
			order = append(order, sp.SceneIndex)
			assert.Equal(t, prose, sp.Prose)
			assert.Equal(t, wordsPerScene, sp.WordCount)
		}
	}
	assert.Equal(t, []int{1, 2, 3, 4}, order)
}

func TestFanoutCancellationWritesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := genFunc(func(ctx context.Context, req *llm.Request) (*llm.Response, error) {
		cancel()
		return nil, &llm.Error{Kind: llm.KindCancelled, Err: context.Canceled}
	})

	r, st, projectID := newTestRunner(t, gen)
	writeFanoutFixtures(t, st, projectID, testScenes())

	_, err := r.Execute(ctx, projectID, pipeline.StepSceneBriefs, Options{})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, st.HasArtifact(projectID, pipeline.StepSceneBriefs))
}
