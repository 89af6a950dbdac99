package stepexec

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

// renderHuman produces the .txt sibling for an artifact: a plain rendering
// writers can read without digging through JSON. Rendering failures degrade
// to pretty-printed JSON rather than failing the step.
func renderHuman(step int, payload json.RawMessage) string {
	var out string
	var err error

	switch step {
	case pipeline.StepSeed:
		out, err = renderSeed(payload)
	case pipeline.StepLogline:
		out, err = renderLogline(payload)
	case pipeline.StepParagraph:
		out, err = renderParagraph(payload)
	case pipeline.StepCharacters:
		out, err = renderCharacters(payload)
	case pipeline.StepPageSynopsis:
		out, err = renderPageSynopsis(payload)
	case pipeline.StepCharacterSynopses:
		out, err = renderCharacterSynopses(payload)
	case pipeline.StepLongSynopsis:
		out, err = renderLongSynopsis(payload)
	case pipeline.StepCharacterBibles:
		out, err = renderCharacterBibles(payload)
	case pipeline.StepSceneList:
		out, err = renderSceneList(payload)
	case pipeline.StepSceneBriefs:
		out, err = renderSceneBriefs(payload)
	case pipeline.StepManuscript:
		out, err = renderManuscript(payload)
	default:
		err = fmt.Errorf("no renderer for step %d", step)
	}

	if err != nil {
		var v any
		if json.Unmarshal(payload, &v) == nil {
			if pretty, perr := json.MarshalIndent(v, "", "  "); perr == nil {
				return string(pretty) + "\n"
			}
		}
		return string(payload) + "\n"
	}
	return out
}

func renderSeed(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.SeedPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Category:   %s\n", p.Category)
	fmt.Fprintf(&sb, "Story kind: %s\n", p.StoryKind)
	sb.WriteString("Audience delight:\n")
	for _, d := range p.AudienceDelight {
		fmt.Fprintf(&sb, "  - %s\n", d)
	}
	return sb.String(), nil
}

func renderLogline(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.LoglinePayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n(%d words)\n", p.Logline, p.WordCount)
	fmt.Fprintf(&sb, "Lead: %s — Goal: %s — Opposition: %s\n",
		p.Components.Lead, p.Components.Goal, p.Components.Opposition)
	return sb.String(), nil
}

func renderParagraph(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.ParagraphPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	sb.WriteString(p.Paragraph)
	sb.WriteString("\n\nMoral premise: ")
	sb.WriteString(p.MoralPremise)
	sb.WriteString("\n\nDisasters:\n")
	for i, d := range p.Disasters {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, d)
	}
	return sb.String(), nil
}

func renderCharacters(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.CharactersPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, c := range p.Characters {
		fmt.Fprintf(&sb, "%s (%s)\n", c.Name, c.Role)
		fmt.Fprintf(&sb, "  Goal:     %s\n", c.Goal)
		fmt.Fprintf(&sb, "  Ambition: %s\n", c.Ambition)
		fmt.Fprintf(&sb, "  Conflict: %s\n", c.Conflict)
		fmt.Fprintf(&sb, "  Epiphany: %s\n", c.Epiphany)
		fmt.Fprintf(&sb, "  Arc:      %s\n\n", c.Arc)
	}
	return sb.String(), nil
}

func renderPageSynopsis(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.PageSynopsisPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= 5; i++ {
		sb.WriteString(p.Paragraphs[fmt.Sprintf("%d", i)])
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

func renderCharacterSynopses(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.CharacterSynopsesPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, cs := range p.CharacterSynopses {
		fmt.Fprintf(&sb, "=== %s ===\n\n%s\n\n", cs.Name, cs.Synopsis)
	}
	return sb.String(), nil
}

func renderLongSynopsis(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.LongSynopsisPayload](raw)
	if err != nil {
		return "", err
	}
	return p.LongSynopsis + "\n", nil
}

func renderCharacterBibles(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.CharacterBiblesPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range p.Bibles {
		fmt.Fprintf(&sb, "=== %s ===\n", b.Name)
		fmt.Fprintf(&sb, "Physical:        %s\n", b.Physical)
		fmt.Fprintf(&sb, "Voice:           %s\n", b.Voice)
		fmt.Fprintf(&sb, "Background:      %s\n", b.Background)
		fmt.Fprintf(&sb, "Personality:     %s\n", b.Personality)
		fmt.Fprintf(&sb, "Relationships:   %s\n", b.Relationships)
		fmt.Fprintf(&sb, "Quirks:          %s\n", b.Quirks)
		fmt.Fprintf(&sb, "Vulnerabilities: %s\n\n", b.Vulnerabilities)
	}
	return sb.String(), nil
}

func renderSceneList(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.SceneListPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d scenes, %d words targeted\n\n", len(p.Scenes), p.TotalTarget)
	for _, sc := range p.Scenes {
		fmt.Fprintf(&sb, "%3d. [%s, %s, %d words] %s\n", sc.Index, sc.Type, sc.POV, sc.WordTarget, sc.Summary)
	}
	return sb.String(), nil
}

func renderSceneBriefs(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.SceneBriefsPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, b := range p.Briefs {
		fmt.Fprintf(&sb, "Scene %d (%s, %s)\n", b.SceneIndex, b.Type, b.POV)
		if b.Type == pipeline.SceneTypeReactive {
			fmt.Fprintf(&sb, "  Reaction: %s\n  Dilemma:  %s\n  Decision: %s\n", b.Reaction, b.Dilemma, b.Decision)
		} else {
			fmt.Fprintf(&sb, "  Goal:     %s\n  Conflict: %s\n  Setback:  %s\n", b.Goal, b.Conflict, b.Setback)
		}
		fmt.Fprintf(&sb, "  Stakes:   %s\n\n", b.Stakes)
	}
	return sb.String(), nil
}

func renderManuscript(raw json.RawMessage) (string, error) {
	p, err := pipeline.Decode[pipeline.ManuscriptPayload](raw)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, ch := range p.Chapters {
		fmt.Fprintf(&sb, "Chapter %d\n\n", ch.Index)
		for _, sc := range ch.Scenes {
			sb.WriteString(sc.Prose)
			sb.WriteString("\n\n")
		}
	}
	fmt.Fprintf(&sb, "— %d words —\n", p.TotalWordCount)
	return sb.String(), nil
}
