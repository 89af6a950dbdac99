package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Scene types for the step-8 scene list.
const (
	SceneTypeProactive = "proactive"
	SceneTypeReactive  = "reactive"
)

// SeedPayload is the step-0 artifact: the story's category framing.
type SeedPayload struct {
	Category        string   `json:"category"`
	StoryKind       string   `json:"story_kind"`
	AudienceDelight []string `json:"audience_delight"`
}

// LoglineComponents breaks the logline into its structural parts.
type LoglineComponents struct {
	Lead       string `json:"lead"`
	Role       string `json:"role"`
	Goal       string `json:"goal"`
	Opposition string `json:"opposition"`
}

// LoglinePayload is the step-1 artifact: a one-sentence story summary.
type LoglinePayload struct {
	Logline    string            `json:"logline"`
	WordCount  int               `json:"word_count"`
	Components LoglineComponents `json:"components"`
}

// ParagraphPayload is the step-2 artifact: five sentences expanding the
// logline, the moral premise, and the three disasters.
type ParagraphPayload struct {
	Paragraph    string   `json:"paragraph"`
	Sentences    []string `json:"sentences"`
	MoralPremise string   `json:"moral_premise"`
	Disasters    []string `json:"disasters"`
}

// Character is one entry of the step-3 cast.
type Character struct {
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Goal     string   `json:"goal"`
	Ambition string   `json:"ambition"`
	Values   []string `json:"values"`
	Conflict string   `json:"conflict"`
	Epiphany string   `json:"epiphany"`
	Arc      string   `json:"arc"`
}

// CharactersPayload is the step-3 artifact.
type CharactersPayload struct {
	Characters []Character `json:"characters"`
}

// PageSynopsisPayload is the step-4 artifact: one paragraph per step-2
// sentence, keyed "1" through "5".
type PageSynopsisPayload struct {
	Paragraphs map[string]string `json:"paragraphs"`
}

// CharacterSynopsis is one entry of the step-5 artifact.
type CharacterSynopsis struct {
	Name     string `json:"name"`
	Synopsis string `json:"synopsis"`
}

// CharacterSynopsesPayload is the step-5 artifact.
type CharacterSynopsesPayload struct {
	CharacterSynopses []CharacterSynopsis `json:"character_synopses"`
}

// LongSynopsisPayload is the step-6 artifact: the four-page synopsis.
type LongSynopsisPayload struct {
	LongSynopsis string `json:"long_synopsis"`
}

// CharacterBible is one entry of the step-7 artifact.
type CharacterBible struct {
	Name            string `json:"name"`
	Physical        string `json:"physical"`
	Voice           string `json:"voice"`
	Background      string `json:"background"`
	Personality     string `json:"personality"`
	Relationships   string `json:"relationships"`
	Quirks          string `json:"quirks"`
	Vulnerabilities string `json:"vulnerabilities"`
}

// CharacterBiblesPayload is the step-7 artifact.
type CharacterBiblesPayload struct {
	Bibles []CharacterBible `json:"bibles"`
}

// Scene is one entry of the step-8 scene list.
type Scene struct {
	Index          int    `json:"index"`
	Type           string `json:"type"`
	POV            string `json:"pov"`
	Summary        string `json:"summary"`
	Location       string `json:"location"`
	Time           string `json:"time"`
	WordTarget     int    `json:"word_target"`
	Conflict       string `json:"conflict"`
	DisasterAnchor string `json:"disaster_anchor"`
	Hooks          string `json:"hooks"`
}

// SceneListPayload is the step-8 artifact.
type SceneListPayload struct {
	Scenes      []Scene `json:"scenes"`
	TotalTarget int     `json:"total_target"`
}

// SceneBrief is one entry of the step-9 artifact. Proactive briefs fill
// goal/conflict/setback; reactive briefs fill reaction/dilemma/decision.
// Stakes are required either way.
type SceneBrief struct {
	SceneIndex int    `json:"scene_index"`
	Type       string `json:"type"`
	POV        string `json:"pov"`
	Goal       string `json:"goal,omitempty"`
	Conflict   string `json:"conflict,omitempty"`
	Setback    string `json:"setback,omitempty"`
	Reaction   string `json:"reaction,omitempty"`
	Dilemma    string `json:"dilemma,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Stakes     string `json:"stakes"`
}

// SceneBriefsPayload is the step-9 artifact.
type SceneBriefsPayload struct {
	Briefs []SceneBrief `json:"briefs"`
}

// SceneProse is one generated scene of the step-10 manuscript.
type SceneProse struct {
	SceneIndex int    `json:"scene_index"`
	Prose      string `json:"prose"`
	WordCount  int    `json:"word_count"`
}

// Chapter groups consecutive scenes of the manuscript.
type Chapter struct {
	Index  int          `json:"index"`
	Scenes []SceneProse `json:"scenes"`
}

// ManuscriptPayload is the step-10 artifact.
type ManuscriptPayload struct {
	Chapters       []Chapter `json:"chapters"`
	TotalWordCount int       `json:"total_word_count"`
}

// Decode unmarshals a raw artifact payload into its step-specific shape.
func Decode[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return &v, nil
}

// CountWords counts whitespace-separated words. Shared by validators,
// fallback synthesis, and word-target accounting.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
