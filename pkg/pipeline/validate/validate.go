// Package validate holds the per-step structural validators. Each validator
// is a pure function over a parsed artifact payload returning a list of
// issues; an empty list means the payload is acceptable. Issue codes are
// stable identifiers consumed by revision-prompt composition, so renaming
// one is a breaking change.
package validate

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/novelforge/novelforge/pkg/pipeline"
)

// Issue is one validator finding. SuggestedFix is folded into the revision
// prompt so the next attempt knows what to change.
type Issue struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	SuggestedFix string `json:"suggested_fix,omitempty"`
}

// Stable issue codes.
const (
	CodeSchema      = "schema"
	CodeMissing     = "missing_field"
	CodeWordCount   = "word_count"
	CodeSentences   = "sentence_count"
	CodeMarker      = "missing_marker"
	CodeCardinality = "cardinality"
	CodeEnum        = "enum_value"
	CodeReference   = "referential_integrity"
	CodeTargetSum   = "word_target_sum"
)

// Input carries the payload under validation plus the upstream payloads the
// step's rules consult, keyed by step index. The runtime fills Artifacts
// from Requires(step).
type Input struct {
	Payload   json.RawMessage
	Artifacts map[int]json.RawMessage
}

// Requires returns the upstream artifact indices a step's validator reads
// beyond the payload itself. Every listed index is transitively upstream of
// the step, so the artifacts are guaranteed present when the step runs.
func Requires(step int) []int {
	switch step {
	case pipeline.StepCharacterSynopses, pipeline.StepCharacterBibles:
		return []int{pipeline.StepCharacters}
	case pipeline.StepSceneBriefs:
		return []int{pipeline.StepCharacterBibles, pipeline.StepSceneList}
	case pipeline.StepManuscript:
		return []int{pipeline.StepSceneList}
	default:
		return nil
	}
}

// Step runs the validator for step i. The returned error only reports an
// out-of-range index or a missing required upstream artifact; payload
// problems always come back as issues.
func Step(i int, in Input) ([]Issue, error) {
	for _, req := range Requires(i) {
		if _, ok := in.Artifacts[req]; !ok {
			return nil, fmt.Errorf("validator for step %d needs the step-%d artifact", i, req)
		}
	}

	switch i {
	case pipeline.StepSeed:
		return seedIssues(in), nil
	case pipeline.StepLogline:
		return loglineIssues(in), nil
	case pipeline.StepParagraph:
		return paragraphIssues(in), nil
	case pipeline.StepCharacters:
		return charactersIssues(in), nil
	case pipeline.StepPageSynopsis:
		return pageSynopsisIssues(in), nil
	case pipeline.StepCharacterSynopses:
		return characterSynopsesIssues(in), nil
	case pipeline.StepLongSynopsis:
		return longSynopsisIssues(in), nil
	case pipeline.StepCharacterBibles:
		return characterBiblesIssues(in), nil
	case pipeline.StepSceneList:
		return sceneListIssues(in), nil
	case pipeline.StepSceneBriefs:
		return sceneBriefsIssues(in), nil
	case pipeline.StepManuscript:
		return manuscriptIssues(in), nil
	default:
		return nil, fmt.Errorf("no validator registered for step %d", i)
	}
}

// decode unmarshals the payload under validation, reporting a schema issue
// instead of an error on failure.
func decode[T any](raw json.RawMessage) (*T, *Issue) {
	v, err := pipeline.Decode[T](raw)
	if err != nil {
		return nil, &Issue{
			Code:         CodeSchema,
			Message:      fmt.Sprintf("payload does not match the expected shape: %v", err),
			SuggestedFix: "return a single JSON object with exactly the documented fields",
		}
	}
	return v, nil
}

// missing reports an empty required field.
func missing(field string) Issue {
	return Issue{
		Code:         CodeMissing,
		Message:      fmt.Sprintf("required field %q is empty", field),
		SuggestedFix: fmt.Sprintf("fill in a non-empty value for %q", field),
	}
}

// fieldCheck pairs a field name with its value for requireFields. Checks run
// in declaration order so issue output stays deterministic.
type fieldCheck struct {
	name  string
	value string
}

func requireFields(label string, checks []fieldCheck) []Issue {
	var issues []Issue
	for _, c := range checks {
		if strings.TrimSpace(c.value) == "" {
			issues = append(issues, missing(label+"."+c.name))
		}
	}
	return issues
}
