package stepexec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

// Emergency fallback synthesises a structurally minimal artifact from parent
// data when the revise loop is exhausted. The templates are deterministic:
// the same parents always produce the same payload. Fallback artifacts are
// marked degraded so callers can accept them or force a revision.

// synthesizeFallback builds the fallback payload for a non-fanout step.
// Only the steps the registry marks Fallback are supported.
func synthesizeFallback(step int, parents map[int]json.RawMessage) (json.RawMessage, error) {
	switch step {
	case pipeline.StepCharacters:
		return fallbackCharacters(parents)
	case pipeline.StepLongSynopsis:
		return fallbackLongSynopsis(parents)
	default:
		return nil, fmt.Errorf("step %d has no emergency fallback", step)
	}
}

// fallbackCharacters derives a minimal two-character cast from the logline
// components: the lead becomes the protagonist, the opposition the
// antagonist.
func fallbackCharacters(parents map[int]json.RawMessage) (json.RawMessage, error) {
	logline, err := pipeline.Decode[pipeline.LoglinePayload](parents[pipeline.StepLogline])
	if err != nil {
		return nil, fmt.Errorf("fallback needs the logline artifact: %w", err)
	}

	lead := strings.TrimSpace(logline.Components.Lead)
	if lead == "" {
		lead = "The Protagonist"
	}
	opposition := strings.TrimSpace(logline.Components.Opposition)
	if opposition == "" {
		opposition = "The Antagonist"
	}
	goal := strings.TrimSpace(logline.Components.Goal)
	if goal == "" {
		goal = "achieve what the logline promises"
	}

	payload := pipeline.CharactersPayload{Characters: []pipeline.Character{
		{
			Name:     capitalize(lead),
			Role:     "protagonist",
			Goal:     goal,
			Ambition: "see the story's promise through",
			Values:   []string{"Nothing is more important than " + goal + "."},
			Conflict: "opposed by " + opposition,
			Epiphany: "learns what the goal truly costs",
			Arc:      fmt.Sprintf("from pursuing %s to understanding its price", goal),
		},
		{
			Name:     capitalize(opposition),
			Role:     "antagonist",
			Goal:     "stop " + lead,
			Ambition: "preserve what " + lead + " threatens",
			Values:   []string{"Nothing is more important than stopping " + lead + "."},
			Conflict: "opposed by " + lead,
			Epiphany: "none",
			Arc:      "escalates until the final confrontation",
		},
	}}
	return json.Marshal(payload)
}

// fallbackLongSynopsis concatenates the page-synopsis paragraphs in order.
// Far short of the target length, but structurally a synopsis.
func fallbackLongSynopsis(parents map[int]json.RawMessage) (json.RawMessage, error) {
	page, err := pipeline.Decode[pipeline.PageSynopsisPayload](parents[pipeline.StepPageSynopsis])
	if err != nil {
		return nil, fmt.Errorf("fallback needs the page synopsis artifact: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= 5; i++ {
		if text := page.Paragraphs[fmt.Sprintf("%d", i)]; text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}
	return json.Marshal(pipeline.LongSynopsisPayload{LongSynopsis: sb.String()})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// fallbackSceneBrief derives one brief from the scene row itself.
func fallbackSceneBrief(scene pipeline.Scene) pipeline.SceneBrief {
	brief := pipeline.SceneBrief{
		SceneIndex: scene.Index,
		Type:       scene.Type,
		POV:        scene.POV,
		Stakes:     "failure here derails: " + scene.Summary,
	}
	conflict := scene.Conflict
	if conflict == "" {
		conflict = "the opposition established in the synopsis"
	}
	switch scene.Type {
	case pipeline.SceneTypeReactive:
		brief.Reaction = scene.POV + " reels from the previous setback"
		brief.Dilemma = "every option worsens: " + conflict
		brief.Decision = "commit to the least bad option and act"
	default:
		brief.Goal = scene.Summary
		brief.Conflict = conflict
		brief.Setback = "the attempt fails and raises the stakes"
	}
	return brief
}

// fallbackSceneProse derives stub prose for one scene. Step 10's fallback is
// deliberately a stub, never a synthesised full scene.
func fallbackSceneProse(scene pipeline.Scene, brief pipeline.SceneBrief) pipeline.SceneProse {
	var beats string
	if scene.Type == pipeline.SceneTypeReactive {
		beats = fmt.Sprintf("%s %s %s.", brief.Reaction, brief.Dilemma, brief.Decision)
	} else {
		beats = fmt.Sprintf("%s, but %s: %s.", brief.Goal, brief.Conflict, brief.Setback)
	}
	prose := fmt.Sprintf("[Scene %d — %s, %s]\n\n%s", scene.Index, scene.POV, scene.Location, beats)
	return pipeline.SceneProse{
		SceneIndex: scene.Index,
		Prose:      prose,
		WordCount:  pipeline.CountWords(prose),
	}
}
