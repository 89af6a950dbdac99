package validate

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(parts, " ")
}

func codes(issues []Issue) []string {
	out := make([]string, 0, len(issues))
	for _, is := range issues {
		out = append(out, is.Code)
	}
	return out
}

func loglinePayload(t *testing.T, wordCount int) json.RawMessage {
	t.Helper()
	return mustJSON(t, pipeline.LoglinePayload{
		Logline:   words(wordCount),
		WordCount: wordCount,
		Components: pipeline.LoglineComponents{
			Lead:       "a detective",
			Role:       "lead",
			Goal:       "catch the ghost",
			Opposition: "the ghost itself",
		},
	})
}

func TestLoglineWordBoundary(t *testing.T) {
	tests := []struct {
		words  int
		wantOK bool
	}{
		{24, true},
		{25, true},
		{26, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_words", tt.words), func(t *testing.T) {
			issues, err := Step(pipeline.StepLogline, Input{Payload: loglinePayload(t, tt.words)})
			require.NoError(t, err)
			if tt.wantOK {
				assert.Empty(t, issues)
			} else {
				assert.Contains(t, codes(issues), CodeWordCount)
			}
		})
	}
}

func TestLoglineMissingComponents(t *testing.T) {
	raw := mustJSON(t, pipeline.LoglinePayload{Logline: "a detective hunts a ghost"})
	issues, err := Step(pipeline.StepLogline, Input{Payload: raw})
	require.NoError(t, err)
	assert.Len(t, issues, 3) // lead, goal, opposition
	for _, is := range issues {
		assert.Equal(t, CodeMissing, is.Code)
	}
}

func paragraphPayload(t *testing.T, sentences int) json.RawMessage {
	t.Helper()
	s := make([]string, sentences)
	for i := range s {
		s[i] = fmt.Sprintf("Sentence %d forces the story onward.", i+1)
	}
	return mustJSON(t, pipeline.ParagraphPayload{
		Paragraph:    strings.Join(s, " "),
		Sentences:    s,
		MoralPremise: "Trust wins over fear.",
		Disasters: []string{
			"The first clue forces her into the catacombs.",
			"The ghost's victim must be avenged before dawn.",
			"Exposure forces her to choose between truth and love.",
		},
	})
}

func TestParagraphSentenceBoundary(t *testing.T) {
	for _, n := range []int{4, 5, 6} {
		t.Run(fmt.Sprintf("%d_sentences", n), func(t *testing.T) {
			issues, err := Step(pipeline.StepParagraph, Input{Payload: paragraphPayload(t, n)})
			require.NoError(t, err)
			if n == 5 {
				assert.Empty(t, issues)
			} else {
				assert.Contains(t, codes(issues), CodeSentences)
			}
		})
	}
}

func TestParagraphDisasterForcingLanguage(t *testing.T) {
	p := pipeline.ParagraphPayload{
		Sentences:    []string{"a.", "b.", "c.", "d.", "e."},
		MoralPremise: "premise",
		Disasters:    []string{"Something mild happens.", "She must flee.", "It forces the end."},
	}
	issues, err := Step(pipeline.StepParagraph, Input{Payload: mustJSON(t, p)})
	require.NoError(t, err)
	assert.Contains(t, codes(issues), CodeMarker)
}

func TestCharactersCardinality(t *testing.T) {
	one := pipeline.CharactersPayload{Characters: []pipeline.Character{{
		Name: "Ada", Role: "protagonist", Goal: "win", Conflict: "doubt", Epiphany: "trust", Arc: "rise",
	}}}
	issues, err := Step(pipeline.StepCharacters, Input{Payload: mustJSON(t, one)})
	require.NoError(t, err)
	assert.Contains(t, codes(issues), CodeCardinality)

	two := one
	two.Characters = append(two.Characters, pipeline.Character{
		Name: "Brone", Role: "antagonist", Goal: "rule", Conflict: "pride", Epiphany: "none", Arc: "fall",
	})
	issues, err = Step(pipeline.StepCharacters, Input{Payload: mustJSON(t, two)})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestLongSynopsisWordBounds(t *testing.T) {
	tests := []struct {
		words  int
		wantOK bool
	}{
		{2499, false},
		{2500, true},
		{3000, true},
		{3001, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_words", tt.words), func(t *testing.T) {
			raw := mustJSON(t, pipeline.LongSynopsisPayload{LongSynopsis: words(tt.words)})
			issues, err := Step(pipeline.StepLongSynopsis, Input{Payload: raw})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, len(issues) == 0, "issues: %v", issues)
		})
	}
}

func sceneListPayload(t *testing.T, scenes int) json.RawMessage {
	t.Helper()
	p := pipeline.SceneListPayload{TotalTarget: DefaultNovelTarget}
	per := DefaultNovelTarget / scenes
	for i := 0; i < scenes; i++ {
		typ := pipeline.SceneTypeProactive
		if i%2 == 1 {
			typ = pipeline.SceneTypeReactive
		}
		p.Scenes = append(p.Scenes, pipeline.Scene{
			Index:      i + 1,
			Type:       typ,
			POV:        "Ada",
			Summary:    fmt.Sprintf("Scene %d summary", i+1),
			WordTarget: per,
		})
	}
	// Round the sum up to exactly the target.
	p.Scenes[0].WordTarget += DefaultNovelTarget - per*scenes
	return mustJSON(t, p)
}

func TestSceneListCountBoundary(t *testing.T) {
	tests := []struct {
		scenes int
		wantOK bool
	}{
		{39, false},
		{40, true},
		{80, true},
		{81, false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_scenes", tt.scenes), func(t *testing.T) {
			issues, err := Step(pipeline.StepSceneList, Input{Payload: sceneListPayload(t, tt.scenes)})
			require.NoError(t, err)
			if tt.wantOK {
				assert.Empty(t, issues)
			} else {
				assert.Contains(t, codes(issues), CodeCardinality)
			}
		})
	}
}

func TestSceneListWordTargetSum(t *testing.T) {
	var p pipeline.SceneListPayload
	require.NoError(t, json.Unmarshal(sceneListPayload(t, 40), &p))
	for i := range p.Scenes {
		p.Scenes[i].WordTarget = 10 // far below tolerance
	}
	issues, err := Step(pipeline.StepSceneList, Input{Payload: mustJSON(t, p)})
	require.NoError(t, err)
	assert.Contains(t, codes(issues), CodeTargetSum)
}

func TestSceneBriefsReferentialIntegrity(t *testing.T) {
	scenes := pipeline.SceneListPayload{Scenes: []pipeline.Scene{
		{Index: 1, Type: pipeline.SceneTypeProactive, POV: "Ada", Summary: "s", WordTarget: 100},
	}}
	bibles := pipeline.CharacterBiblesPayload{Bibles: []pipeline.CharacterBible{{Name: "Ada"}}}
	briefs := pipeline.SceneBriefsPayload{Briefs: []pipeline.SceneBrief{{
		SceneIndex: 1,
		Type:       pipeline.SceneTypeProactive,
		POV:        "Nobody",
		Goal:       "g", Conflict: "c", Setback: "s", Stakes: "st",
	}}}

	in := Input{
		Payload: mustJSON(t, briefs),
		Artifacts: map[int]json.RawMessage{
			pipeline.StepSceneList:       mustJSON(t, scenes),
			pipeline.StepCharacterBibles: mustJSON(t, bibles),
		},
	}
	issues, err := Step(pipeline.StepSceneBriefs, Input{Payload: in.Payload, Artifacts: in.Artifacts})
	require.NoError(t, err)
	assert.Contains(t, codes(issues), CodeReference)
}

func TestSceneBriefsRequireOnePerScene(t *testing.T) {
	scenes := pipeline.SceneListPayload{Scenes: []pipeline.Scene{
		{Index: 1, Type: pipeline.SceneTypeProactive, POV: "Ada", Summary: "s"},
		{Index: 2, Type: pipeline.SceneTypeReactive, POV: "Ada", Summary: "s"},
	}}
	bibles := pipeline.CharacterBiblesPayload{Bibles: []pipeline.CharacterBible{{Name: "Ada"}}}
	briefs := pipeline.SceneBriefsPayload{Briefs: []pipeline.SceneBrief{{
		SceneIndex: 1, Type: pipeline.SceneTypeProactive, POV: "Ada",
		Goal: "g", Conflict: "c", Setback: "s", Stakes: "st",
	}}}

	issues, err := Step(pipeline.StepSceneBriefs, Input{
		Payload: mustJSON(t, briefs),
		Artifacts: map[int]json.RawMessage{
			pipeline.StepSceneList:       mustJSON(t, scenes),
			pipeline.StepCharacterBibles: mustJSON(t, bibles),
		},
	})
	require.NoError(t, err)
	assert.Contains(t, codes(issues), CodeCardinality)
}

func TestReactiveBriefFields(t *testing.T) {
	scene := pipeline.Scene{Index: 4, Type: pipeline.SceneTypeReactive}
	brief := pipeline.SceneBrief{SceneIndex: 4, Type: pipeline.SceneTypeReactive, POV: "Ada", Stakes: "st"}
	issues := BriefIssues(brief, scene, map[string]bool{"Ada": true})
	assert.Len(t, issues, 3) // reaction, dilemma, decision
}

func TestManuscriptTotals(t *testing.T) {
	scenes := pipeline.SceneListPayload{Scenes: []pipeline.Scene{
		{Index: 1, Type: pipeline.SceneTypeProactive, POV: "Ada", Summary: "s"},
		{Index: 2, Type: pipeline.SceneTypeReactive, POV: "Ada", Summary: "s"},
	}}
	ms := pipeline.ManuscriptPayload{
		Chapters: []pipeline.Chapter{{Index: 1, Scenes: []pipeline.SceneProse{
			{SceneIndex: 1, Prose: "Some prose here.", WordCount: 3},
			{SceneIndex: 2, Prose: "More prose there.", WordCount: 3},
		}}},
		TotalWordCount: 6,
	}
	in := Input{
		Payload:   mustJSON(t, ms),
		Artifacts: map[int]json.RawMessage{pipeline.StepSceneList: mustJSON(t, scenes)},
	}
	issues, err := Step(pipeline.StepManuscript, in)
	require.NoError(t, err)
	assert.Empty(t, issues)

	ms.TotalWordCount = 99
	in.Payload = mustJSON(t, ms)
	issues, err = Step(pipeline.StepManuscript, in)
	require.NoError(t, err)
	assert.Contains(t, codes(issues), CodeTargetSum)
}

// Validators are pure: the same input always yields the same issues.
func TestValidatorDeterminism(t *testing.T) {
	raw := loglinePayload(t, 30)
	first, err := Step(pipeline.StepLogline, Input{Payload: raw})
	require.NoError(t, err)
	second, err := Step(pipeline.StepLogline, Input{Payload: raw})
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSchemaIssueOnMalformedPayload(t *testing.T) {
	issues, err := Step(pipeline.StepSeed, Input{Payload: json.RawMessage(`{"category": 42}`)})
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, CodeSchema, issues[0].Code)
}
