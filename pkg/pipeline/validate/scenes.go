package validate

import (
	"fmt"
	"strings"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

// Scene-list bounds. Word targets must sum to a novel length within the
// tolerance of the default target.
const (
	minScenes          = 40
	maxScenes          = 80
	DefaultNovelTarget = 75000
	targetTolerance    = 0.20
)

func sceneListIssues(in Input) []Issue {
	p, bad := decode[pipeline.SceneListPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}

	var issues []Issue
	if n := len(p.Scenes); n < minScenes || n > maxScenes {
		issues = append(issues, Issue{
			Code:         CodeCardinality,
			Message:      fmt.Sprintf("scene list has %d scenes; it must have between %d and %d", n, minScenes, maxScenes),
			SuggestedFix: fmt.Sprintf("merge or split scenes to land between %d and %d", minScenes, maxScenes),
		})
	}

	sum := 0
	for i, sc := range p.Scenes {
		label := fmt.Sprintf("scenes[%d]", i)
		if sc.Type != pipeline.SceneTypeProactive && sc.Type != pipeline.SceneTypeReactive {
			issues = append(issues, Issue{
				Code:         CodeEnum,
				Message:      fmt.Sprintf("%s.type is %q; it must be %q or %q", label, sc.Type, pipeline.SceneTypeProactive, pipeline.SceneTypeReactive),
				SuggestedFix: "alternate proactive and reactive scenes per the scene structure",
			})
		}
		if strings.TrimSpace(sc.POV) == "" {
			issues = append(issues, missing(label+".pov"))
		}
		if strings.TrimSpace(sc.Summary) == "" {
			issues = append(issues, missing(label+".summary"))
		}
		sum += sc.WordTarget
	}

	target := p.TotalTarget
	if target <= 0 {
		target = DefaultNovelTarget
	}
	low := int(float64(target) * (1 - targetTolerance))
	high := int(float64(target) * (1 + targetTolerance))
	if sum < low || sum > high {
		issues = append(issues, Issue{
			Code:         CodeTargetSum,
			Message:      fmt.Sprintf("scene word targets sum to %d; the novel target %d allows %d to %d", sum, target, low, high),
			SuggestedFix: "rebalance per-scene word targets so they sum to the novel target",
		})
	}
	return issues
}

// BriefIssues validates a single scene brief against its scene and the known
// POV names. Shared by the whole-artifact validator and the fanout runtime,
// which validates each brief as its sub-task completes.
func BriefIssues(brief pipeline.SceneBrief, scene pipeline.Scene, povNames map[string]bool) []Issue {
	var issues []Issue
	label := fmt.Sprintf("briefs[scene %d]", scene.Index)

	if brief.Type != scene.Type {
		issues = append(issues, Issue{
			Code:         CodeEnum,
			Message:      fmt.Sprintf("%s.type is %q but the scene is %q", label, brief.Type, scene.Type),
			SuggestedFix: "keep the brief's type identical to the scene's type",
		})
	}
	if len(povNames) > 0 && !povNames[brief.POV] {
		issues = append(issues, Issue{
			Code:         CodeReference,
			Message:      fmt.Sprintf("%s.pov %q is not a character with a bible", label, brief.POV),
			SuggestedFix: "set pov to one of the cast names from the character bibles",
		})
	}
	if strings.TrimSpace(brief.Stakes) == "" {
		issues = append(issues, missing(label+".stakes"))
	}

	switch scene.Type {
	case pipeline.SceneTypeProactive:
		issues = append(issues, requireFields(label, []fieldCheck{
			{"goal", brief.Goal},
			{"conflict", brief.Conflict},
			{"setback", brief.Setback},
		})...)
	case pipeline.SceneTypeReactive:
		issues = append(issues, requireFields(label, []fieldCheck{
			{"reaction", brief.Reaction},
			{"dilemma", brief.Dilemma},
			{"decision", brief.Decision},
		})...)
	}
	return issues
}

// POVNames extracts the set of character names from a bibles payload.
func POVNames(bibles *pipeline.CharacterBiblesPayload) map[string]bool {
	names := make(map[string]bool, len(bibles.Bibles))
	for _, b := range bibles.Bibles {
		names[b.Name] = true
	}
	return names
}

func sceneBriefsIssues(in Input) []Issue {
	p, bad := decode[pipeline.SceneBriefsPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}
	scenes, scenesBad := decode[pipeline.SceneListPayload](in.Artifacts[pipeline.StepSceneList])
	if scenesBad != nil {
		return []Issue{*scenesBad}
	}
	bibles, biblesBad := decode[pipeline.CharacterBiblesPayload](in.Artifacts[pipeline.StepCharacterBibles])
	if biblesBad != nil {
		return []Issue{*biblesBad}
	}

	var issues []Issue
	if len(p.Briefs) != len(scenes.Scenes) {
		issues = append(issues, Issue{
			Code:         CodeCardinality,
			Message:      fmt.Sprintf("%d briefs for %d scenes; exactly one brief per scene is required", len(p.Briefs), len(scenes.Scenes)),
			SuggestedFix: "emit one brief per scene, in scene order",
		})
		return issues
	}

	pov := POVNames(bibles)
	for i, brief := range p.Briefs {
		scene := scenes.Scenes[i]
		if brief.SceneIndex != scene.Index {
			issues = append(issues, Issue{
				Code:         CodeReference,
				Message:      fmt.Sprintf("briefs[%d].scene_index is %d; expected %d", i, brief.SceneIndex, scene.Index),
				SuggestedFix: "keep briefs in scene order with matching scene_index values",
			})
			continue
		}
		issues = append(issues, BriefIssues(brief, scene, pov)...)
	}
	return issues
}

// ProseIssues validates one generated scene of the manuscript.
func ProseIssues(sp pipeline.SceneProse, scene pipeline.Scene) []Issue {
	var issues []Issue
	label := fmt.Sprintf("scene %d", scene.Index)
	if strings.TrimSpace(sp.Prose) == "" {
		issues = append(issues, missing(label + ".prose"))
	}
	if sp.WordCount <= 0 {
		issues = append(issues, Issue{
			Code:         CodeWordCount,
			Message:      fmt.Sprintf("%s reports a word count of %d", label, sp.WordCount),
			SuggestedFix: "set word_count to the actual number of words in the prose",
		})
	}
	return issues
}

func manuscriptIssues(in Input) []Issue {
	p, bad := decode[pipeline.ManuscriptPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}
	scenes, scenesBad := decode[pipeline.SceneListPayload](in.Artifacts[pipeline.StepSceneList])
	if scenesBad != nil {
		return []Issue{*scenesBad}
	}

	var issues []Issue
	written := make(map[int]bool)
	sum := 0
	for _, ch := range p.Chapters {
		for _, sp := range ch.Scenes {
			written[sp.SceneIndex] = true
			sum += sp.WordCount
			for _, sc := range scenes.Scenes {
				if sc.Index == sp.SceneIndex {
					issues = append(issues, ProseIssues(sp, sc)...)
					break
				}
			}
		}
	}
	for _, sc := range scenes.Scenes {
		if !written[sc.Index] {
			issues = append(issues, Issue{
				Code:         CodeCardinality,
				Message:      fmt.Sprintf("scene %d from the scene list has no prose", sc.Index),
				SuggestedFix: "write prose for every scene in the scene list",
			})
		}
	}
	if p.TotalWordCount != sum {
		issues = append(issues, Issue{
			Code:         CodeTargetSum,
			Message:      fmt.Sprintf("total_word_count is %d but the scene word counts sum to %d", p.TotalWordCount, sum),
			SuggestedFix: "set total_word_count to the sum of all scene word counts",
		})
	}
	return issues
}
