package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

// Word-count bounds for the early steps.
const (
	maxLoglineWords          = 25
	minPageSynopsisParaWords = 50
	minCharacterSynopsisWords = 300
	minLongSynopsisWords     = 2500
	maxLongSynopsisWords     = 3000
	minCharacters            = 2
)

func seedIssues(in Input) []Issue {
	p, bad := decode[pipeline.SeedPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}

	var issues []Issue
	if strings.TrimSpace(p.Category) == "" {
		issues = append(issues, missing("category"))
	}
	if strings.TrimSpace(p.StoryKind) == "" {
		issues = append(issues, missing("story_kind"))
	}
	if len(p.AudienceDelight) == 0 {
		issues = append(issues, Issue{
			Code:         CodeCardinality,
			Message:      "audience_delight must list at least one delight factor",
			SuggestedFix: "add one entry per thing the target audience reads this kind of story for",
		})
	}
	return issues
}

func loglineIssues(in Input) []Issue {
	p, bad := decode[pipeline.LoglinePayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}

	var issues []Issue
	if strings.TrimSpace(p.Logline) == "" {
		issues = append(issues, missing("logline"))
	} else if n := pipeline.CountWords(p.Logline); n > maxLoglineWords {
		issues = append(issues, Issue{
			Code:         CodeWordCount,
			Message:      fmt.Sprintf("logline is %d words; the limit is %d", n, maxLoglineWords),
			SuggestedFix: fmt.Sprintf("cut the logline to at most %d words, keeping lead, goal, and opposition", maxLoglineWords),
		})
	}
	if strings.TrimSpace(p.Components.Lead) == "" {
		issues = append(issues, missing("components.lead"))
	}
	if strings.TrimSpace(p.Components.Goal) == "" {
		issues = append(issues, missing("components.goal"))
	}
	if strings.TrimSpace(p.Components.Opposition) == "" {
		issues = append(issues, missing("components.opposition"))
	}
	return issues
}

// forcingToken reports whether a disaster sentence carries the forcing
// language the paragraph structure demands.
func forcingToken(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "forces") || strings.Contains(lower, "must")
}

func paragraphIssues(in Input) []Issue {
	p, bad := decode[pipeline.ParagraphPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}

	var issues []Issue
	if len(p.Sentences) != 5 {
		issues = append(issues, Issue{
			Code:         CodeSentences,
			Message:      fmt.Sprintf("paragraph has %d sentences; exactly 5 are required", len(p.Sentences)),
			SuggestedFix: "restructure into exactly five sentences: setup, disaster 1, disaster 2, disaster 3, ending",
		})
	}
	if strings.TrimSpace(p.MoralPremise) == "" {
		issues = append(issues, missing("moral_premise"))
	}
	if len(p.Disasters) != 3 {
		issues = append(issues, Issue{
			Code:         CodeCardinality,
			Message:      fmt.Sprintf("%d disasters listed; exactly 3 are required", len(p.Disasters)),
			SuggestedFix: "list the three disaster sentences, one per act turn",
		})
	}
	for i, d := range p.Disasters {
		if !forcingToken(d) {
			issues = append(issues, Issue{
				Code:         CodeMarker,
				Message:      fmt.Sprintf("disaster %d lacks forcing language (\"forces\" or \"must\")", i+1),
				SuggestedFix: "rewrite the disaster so it forces the lead into the next act (use \"forces\" or \"must\")",
			})
		}
	}
	return issues
}

func charactersIssues(in Input) []Issue {
	p, bad := decode[pipeline.CharactersPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}

	var issues []Issue
	if len(p.Characters) < minCharacters {
		issues = append(issues, Issue{
			Code:         CodeCardinality,
			Message:      fmt.Sprintf("%d characters defined; at least %d are required", len(p.Characters), minCharacters),
			SuggestedFix: "add at least a protagonist and an antagonist",
		})
	}
	for i, c := range p.Characters {
		label := fmt.Sprintf("characters[%d]", i)
		issues = append(issues, requireFields(label, []fieldCheck{
			{"name", c.Name},
			{"role", c.Role},
			{"goal", c.Goal},
			{"conflict", c.Conflict},
			{"epiphany", c.Epiphany},
			{"arc", c.Arc},
		})...)
	}
	return issues
}

func pageSynopsisIssues(in Input) []Issue {
	p, bad := decode[pipeline.PageSynopsisPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}

	var issues []Issue
	for i := 1; i <= 5; i++ {
		key := strconv.Itoa(i)
		text, ok := p.Paragraphs[key]
		if !ok || strings.TrimSpace(text) == "" {
			issues = append(issues, missing("paragraphs."+key))
			continue
		}
		if n := pipeline.CountWords(text); n < minPageSynopsisParaWords {
			issues = append(issues, Issue{
				Code:         CodeWordCount,
				Message:      fmt.Sprintf("paragraph %d is %d words; at least %d are required", i, n, minPageSynopsisParaWords),
				SuggestedFix: fmt.Sprintf("expand paragraph %d to at least %d words", i, minPageSynopsisParaWords),
			})
		}
	}
	if text, ok := p.Paragraphs["5"]; ok && !strings.Contains(strings.ToLower(text), "moral") {
		issues = append(issues, Issue{
			Code:         CodeMarker,
			Message:      "paragraph 5 does not state the moral pivot",
			SuggestedFix: "close paragraph 5 with an explicit clause naming how the ending proves the moral premise",
		})
	}
	return issues
}

func characterSynopsesIssues(in Input) []Issue {
	p, bad := decode[pipeline.CharacterSynopsesPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}
	cast, castBad := decode[pipeline.CharactersPayload](in.Artifacts[pipeline.StepCharacters])
	if castBad != nil {
		return []Issue{*castBad}
	}

	var issues []Issue
	byName := make(map[string]bool, len(p.CharacterSynopses))
	for i, cs := range p.CharacterSynopses {
		byName[cs.Name] = true
		if n := pipeline.CountWords(cs.Synopsis); n < minCharacterSynopsisWords {
			issues = append(issues, Issue{
				Code:         CodeWordCount,
				Message:      fmt.Sprintf("synopsis for %q is %d words; at least %d are required", cs.Name, n, minCharacterSynopsisWords),
				SuggestedFix: fmt.Sprintf("expand character_synopses[%d].synopsis to at least %d words", i, minCharacterSynopsisWords),
			})
		}
	}
	for _, c := range cast.Characters {
		if !byName[c.Name] {
			issues = append(issues, Issue{
				Code:         CodeReference,
				Message:      fmt.Sprintf("no synopsis for character %q from the cast", c.Name),
				SuggestedFix: fmt.Sprintf("add a synopsis entry named exactly %q", c.Name),
			})
		}
	}
	return issues
}

func longSynopsisIssues(in Input) []Issue {
	p, bad := decode[pipeline.LongSynopsisPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}

	n := pipeline.CountWords(p.LongSynopsis)
	if n < minLongSynopsisWords || n > maxLongSynopsisWords {
		return []Issue{{
			Code:         CodeWordCount,
			Message:      fmt.Sprintf("long synopsis is %d words; it must be between %d and %d", n, minLongSynopsisWords, maxLongSynopsisWords),
			SuggestedFix: fmt.Sprintf("rewrite the synopsis to land between %d and %d words", minLongSynopsisWords, maxLongSynopsisWords),
		}}
	}
	return nil
}

func characterBiblesIssues(in Input) []Issue {
	p, bad := decode[pipeline.CharacterBiblesPayload](in.Payload)
	if bad != nil {
		return []Issue{*bad}
	}
	cast, castBad := decode[pipeline.CharactersPayload](in.Artifacts[pipeline.StepCharacters])
	if castBad != nil {
		return []Issue{*castBad}
	}

	var issues []Issue
	byName := make(map[string]bool, len(p.Bibles))
	for i, b := range p.Bibles {
		byName[b.Name] = true
		label := fmt.Sprintf("bibles[%d]", i)
		issues = append(issues, requireFields(label, []fieldCheck{
			{"physical", b.Physical},
			{"voice", b.Voice},
			{"background", b.Background},
			{"personality", b.Personality},
			{"relationships", b.Relationships},
		})...)
	}
	for _, c := range cast.Characters {
		if !byName[c.Name] {
			issues = append(issues, Issue{
				Code:         CodeReference,
				Message:      fmt.Sprintf("no bible for character %q from the cast", c.Name),
				SuggestedFix: fmt.Sprintf("add a bible entry named exactly %q", c.Name),
			})
		}
	}
	return issues
}
