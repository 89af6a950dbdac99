package prompt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/pipeline/validate"
)

// Prompt is a fully composed generation prompt. Version is the static hash
// of the step's template source and feeds the artifact's upstream hash.
type Prompt struct {
	System  string
	User    string
	Version string
}

// Inputs carries everything a step prompt is built from.
type Inputs struct {
	// Brief is the user's story seed. Step 0 consumes it directly; later
	// steps see it only through their parent artifacts.
	Brief string

	// Parents maps parent step index to that artifact's payload.
	Parents map[int]json.RawMessage

	// Guidance is free-text revision guidance from the caller. Empty on a
	// normal run.
	Guidance string
}

// stepVersions holds the per-step prompt version, computed once at init
// over the template source text belonging to each step.
var stepVersions [11]string

func init() {
	sources := [11][]string{
		pipeline.StepSeed:              {systemNovelist, taskSeed},
		pipeline.StepLogline:           {systemNovelist, taskLogline},
		pipeline.StepParagraph:         {systemNovelist, taskParagraph},
		pipeline.StepCharacters:        {systemNovelist, taskCharacters},
		pipeline.StepPageSynopsis:      {systemNovelist, taskPageSynopsis},
		pipeline.StepCharacterSynopses: {systemNovelist, taskCharacterSynopses},
		pipeline.StepLongSynopsis:      {systemNovelist, taskLongSynopsis},
		pipeline.StepCharacterBibles:   {systemNovelist, taskCharacterBibles},
		pipeline.StepSceneList:         {systemNovelist, taskSceneList},
		pipeline.StepSceneBriefs:       {systemNovelist, taskSceneBrief},
		pipeline.StepManuscript:        {systemNovelist, taskSceneProse},
	}
	for i, src := range sources {
		sum := sha256.Sum256([]byte(strings.Join(src, "\x00")))
		stepVersions[i] = hex.EncodeToString(sum[:])
	}
}

// Version returns the static prompt version for a step.
func Version(step int) string {
	if step < 0 || step >= len(stepVersions) {
		return ""
	}
	return stepVersions[step]
}

// Builder composes prompts for pipeline steps. Stateless and thread-safe;
// all story state comes from Inputs.
type Builder struct{}

// NewBuilder creates a prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Build composes the prompt for one step from its parent artifacts.
func (b *Builder) Build(step int, in Inputs) (*Prompt, error) {
	task, err := taskFor(step)
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	if step == pipeline.StepSeed {
		sb.WriteString("## Story Brief\n\n")
		sb.WriteString(strings.TrimSpace(in.Brief))
		sb.WriteString("\n\n")
	}
	for _, parent := range pipeline.Parents(step) {
		raw, ok := in.Parents[parent]
		if !ok {
			return nil, fmt.Errorf("prompt for step %d is missing the step-%d parent payload", step, parent)
		}
		sb.WriteString(artifactSection(parent, raw))
	}
	if in.Guidance != "" {
		sb.WriteString("## Guidance From The Author\n\n")
		sb.WriteString(strings.TrimSpace(in.Guidance))
		sb.WriteString("\n\n")
	}
	sb.WriteString(task)

	return &Prompt{
		System:  systemNovelist + "\n\n" + jsonOnlyInstruction,
		User:    sb.String(),
		Version: stepVersions[step],
	}, nil
}

// BuildRevision composes the follow-up prompt after a failed validation:
// the prior output, the validator findings with their fix suggestions, and
// any caller guidance.
func (b *Builder) BuildRevision(step int, priorOutput string, issues []validate.Issue, guidance string) (*Prompt, error) {
	if step < 0 || step >= len(stepVersions) {
		return nil, fmt.Errorf("step index %d out of range", step)
	}

	var list strings.Builder
	for i, issue := range issues {
		fmt.Fprintf(&list, "%d. [%s] %s", i+1, issue.Code, issue.Message)
		if issue.SuggestedFix != "" {
			fmt.Fprintf(&list, " — fix: %s", issue.SuggestedFix)
		}
		list.WriteString("\n")
	}

	guidanceSection := ""
	if guidance != "" {
		guidanceSection = "## Guidance From The Author\n" + strings.TrimSpace(guidance) + "\n\n"
	}

	user := fmt.Sprintf(revisionTemplate,
		pipeline.Name(step), strings.TrimSpace(priorOutput), list.String(), guidanceSection)

	return &Prompt{
		System:  systemNovelist + "\n\n" + jsonOnlyInstruction,
		User:    user,
		Version: stepVersions[step],
	}, nil
}

// BuildSceneBrief composes the per-scene sub-prompt for step 9.
func (b *Builder) BuildSceneBrief(scene pipeline.Scene, bible *pipeline.CharacterBible) (*Prompt, error) {
	var sb strings.Builder
	sb.WriteString(sceneSection(scene))
	if bible != nil {
		sb.WriteString(bibleSection(*bible))
	}
	sb.WriteString(taskSceneBrief)

	return &Prompt{
		System:  systemNovelist + "\n\n" + jsonOnlyInstruction,
		User:    sb.String(),
		Version: stepVersions[pipeline.StepSceneBriefs],
	}, nil
}

// BuildSceneProse composes the per-scene sub-prompt for step 10.
func (b *Builder) BuildSceneProse(scene pipeline.Scene, brief pipeline.SceneBrief, bible *pipeline.CharacterBible) (*Prompt, error) {
	var sb strings.Builder
	sb.WriteString(sceneSection(scene))
	sb.WriteString(briefSection(brief))
	if bible != nil {
		sb.WriteString(bibleSection(*bible))
	}
	sb.WriteString(taskSceneProse)

	return &Prompt{
		System:  systemNovelist + "\n\n" + jsonOnlyInstruction,
		User:    sb.String(),
		Version: stepVersions[pipeline.StepManuscript],
	}, nil
}

func taskFor(step int) (string, error) {
	switch step {
	case pipeline.StepSeed:
		return taskSeed, nil
	case pipeline.StepLogline:
		return taskLogline, nil
	case pipeline.StepParagraph:
		return taskParagraph, nil
	case pipeline.StepCharacters:
		return taskCharacters, nil
	case pipeline.StepPageSynopsis:
		return taskPageSynopsis, nil
	case pipeline.StepCharacterSynopses:
		return taskCharacterSynopses, nil
	case pipeline.StepLongSynopsis:
		return taskLongSynopsis, nil
	case pipeline.StepCharacterBibles:
		return taskCharacterBibles, nil
	case pipeline.StepSceneList:
		return fmt.Sprintf(taskSceneList, validate.DefaultNovelTarget), nil
	case pipeline.StepSceneBriefs:
		return taskSceneBrief, nil
	case pipeline.StepManuscript:
		return taskSceneProse, nil
	default:
		return "", fmt.Errorf("no prompt template for step %d", step)
	}
}

// artifactSection renders one parent artifact as a titled JSON block.
func artifactSection(step int, raw json.RawMessage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (step %d)\n\n", titleFor(step), step)
	sb.WriteString("```json\n")
	sb.Write(indentJSON(raw))
	sb.WriteString("\n```\n\n")
	return sb.String()
}

func sceneSection(scene pipeline.Scene) string {
	var sb strings.Builder
	sb.WriteString("## Scene\n\n```json\n")
	raw, _ := json.MarshalIndent(scene, "", "  ")
	sb.Write(raw)
	sb.WriteString("\n```\n\n")
	return sb.String()
}

func briefSection(brief pipeline.SceneBrief) string {
	var sb strings.Builder
	sb.WriteString("## Scene Brief\n\n```json\n")
	raw, _ := json.MarshalIndent(brief, "", "  ")
	sb.Write(raw)
	sb.WriteString("\n```\n\n")
	return sb.String()
}

func bibleSection(bible pipeline.CharacterBible) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## POV Character: %s\n\n```json\n", bible.Name)
	raw, _ := json.MarshalIndent(bible, "", "  ")
	sb.Write(raw)
	sb.WriteString("\n```\n\n")
	return sb.String()
}

// indentJSON pretty-prints raw JSON, passing it through untouched when it
// does not re-encode cleanly.
func indentJSON(raw json.RawMessage) []byte {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return out
}

// titleFor names a parent section in prose, e.g. "Scene List".
func titleFor(step int) string {
	name := pipeline.Name(step)
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
