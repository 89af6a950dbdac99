// Package e2e exercises the full stack: engine, step runtime, validators,
// prompt builder, and the real provider dispatcher with scripted stub
// backends. Only the LLM backends themselves are faked.
package e2e

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novelforge/novelforge/pkg/config"
	"github.com/novelforge/novelforge/pkg/engine"
	"github.com/novelforge/novelforge/pkg/events"
	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/models"
	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/stepexec"
	"github.com/novelforge/novelforge/pkg/store"
)

// Scripted answers for the early steps, keyed by a phrase unique to each
// step's task template. Revision prompts are recognised separately.
var stepAnswers = []struct {
	marker string
	text   string
}{
	{"Classify the story brief", `{"category": "Crime", "story_kind": "redemption thriller", "audience_delight": ["twists", "moral stakes"]}`},
	{"logline of at most 25 words", `{"logline": "A disgraced detective must stop her former partner before the city floods", "word_count": 13,
		"components": {"lead": "a disgraced detective", "role": "detective", "goal": "stop her former partner", "opposition": "her former partner"}}`},
	{"exactly five sentences", `{"paragraph": "One. Two. Three. Four. Five.",
		"sentences": ["One.", "Two.", "Three.", "Four.", "Five."],
		"moral_premise": "Loyalty redeems when it serves truth.",
		"disasters": ["A flood forces her out.", "She must betray him.", "The dam break forces the choice."]}`},
	{"principal cast", `{"characters": [
		{"name": "Mara", "role": "protagonist", "goal": "stop the flood", "ambition": "redemption", "values": ["truth"], "conflict": "her former partner", "epiphany": "truth over loyalty", "arc": "from shame to resolve"},
		{"name": "Deacon", "role": "antagonist", "goal": "open the gates", "ambition": "erase the past", "values": ["survival"], "conflict": "Mara", "epiphany": "none", "arc": "escalates to the end"}]}`},
}

// answerByMarker returns the canned payload for the step whose task phrase
// appears in the prompt, or "" when nothing matches.
func answerByMarker(user string) string {
	for _, a := range stepAnswers {
		if strings.Contains(user, a.marker) {
			return a.text
		}
	}
	return ""
}

func isRevisionPrompt(user string) bool {
	return strings.Contains(user, "did not pass validation")
}

type harness struct {
	engine  *engine.Engine
	store   *store.Store
	dsp     *llm.Dispatcher
	primary *llm.StubProvider
	backup  *llm.StubProvider
}

type harnessOptions struct {
	breakerThreshold uint32
	cooldown         []time.Duration
}

func newHarness(t *testing.T, opts harnessOptions) *harness {
	t.Helper()

	if opts.breakerThreshold == 0 {
		opts.breakerThreshold = 5
	}
	if opts.cooldown == nil {
		opts.cooldown = []time.Duration{5 * time.Second, 15 * time.Second}
	}

	engineCfg := &config.EngineConfig{
		FanoutConcurrency: 2,
		ProgressEvery:     2,
		MaxRevisions:      3,
		MaxRetryDelay:     time.Minute,
		CooldownSchedule:  opts.cooldown,
		StepTimeouts: map[models.Tier]time.Duration{
			models.TierFast:     5 * time.Second,
			models.TierBalanced: 5 * time.Second,
			models.TierQuality:  5 * time.Second,
		},
		BreakerFailureThreshold: opts.breakerThreshold,
		BreakerCooldown:         time.Minute,
	}
	cfg := &config.Config{
		Engine: engineCfg,
		Tiers: config.TierChains{
			models.TierFast:     {"primary", "backup"},
			models.TierBalanced: {"primary", "backup"},
			models.TierQuality:  {"primary", "backup"},
		},
		ProviderRegistry: config.NewProviderRegistry(map[string]*config.ProviderConfig{
			"primary": {Type: config.ProviderTypeStub, Model: "stub-a"},
			"backup":  {Type: config.ProviderTypeStub, Model: "stub-b"},
		}),
	}

	st, err := store.New(t.TempDir())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewPublisher(st, events.NewBroker())

	dsp, err := llm.NewDispatcher(cfg, publisher, logger)
	require.NoError(t, err)

	primary := llm.NewStubProvider("primary", scriptedAnswers(t))
	backup := llm.NewStubProvider("backup", scriptedAnswers(t))
	dsp.RegisterProvider("primary", primary)
	dsp.RegisterProvider("backup", backup)

	runner := stepexec.NewRunner(st, dsp, publisher, engineCfg, logger)
	return &harness{
		engine:  engine.New(st, runner, publisher, engineCfg, logger),
		store:   st,
		dsp:     dsp,
		primary: primary,
		backup:  backup,
	}
}

// scriptedAnswers answers every prompt with the step's canned payload.
func scriptedAnswers(t *testing.T) llm.StubFunc {
	return func(_ int, _, _, user string, _ llm.CallOptions) (*llm.ProviderResult, error) {
		text := answerByMarker(user)
		if text == "" {
			t.Logf("no canned answer for prompt: %.80s", user)
			text = `{"note": "unscripted"}`
		}
		return &llm.ProviderResult{Text: text, StopReason: "end_turn"}, nil
	}
}

func (h *harness) createProject(t *testing.T) string {
	t.Helper()
	p, err := h.engine.CreateProject(context.Background(), "e2e project", "A detective story about loyalty and floods.")
	require.NoError(t, err)
	return p.ID
}

func (h *harness) journalKinds(t *testing.T, projectID string) []string {
	t.Helper()
	lines, _, err := h.store.ReadEventLines(projectID, 0, 10000)
	require.NoError(t, err)
	kinds := make([]string, 0, len(lines))
	for _, line := range lines {
		var ev events.Event
		require.NoError(t, json.Unmarshal(line, &ev))
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func countKind(kinds []string, kind string) int {
	n := 0
	for _, k := range kinds {
		if k == kind {
			n++
		}
	}
	return n
}

// writeFixtureArtifact seeds a completed step directly, bypassing
// generation. Used to stage fanout inputs without running the whole
// pipeline.
func (h *harness) writeFixtureArtifact(t *testing.T, projectID string, step int, payload string) {
	t.Helper()
	raw := json.RawMessage(payload)
	require.NoError(t, h.store.WriteArtifact(projectID, &models.Envelope{
		Version:      models.EnvelopeVersion,
		Step:         step,
		UpstreamHash: "fixture",
		ContentHash:  models.HashContent(raw),
		Model:        "fixture",
		GeneratedAt:  time.Now().UTC(),
		Attempts:     1,
		Payload:      raw,
	}, ""))
}

func fixtureScenes() pipeline.SceneListPayload {
	return pipeline.SceneListPayload{
		Scenes: []pipeline.Scene{
			{Index: 1, Type: pipeline.SceneTypeProactive, POV: "Mara", Summary: "Mara breaks into the records office", Location: "City hall", WordTarget: 1500, Conflict: "the night guard"},
			{Index: 2, Type: pipeline.SceneTypeReactive, POV: "Deacon", Summary: "Deacon learns of the break-in", Location: "Precinct", WordTarget: 1200, Conflict: "his own loyalty"},
			{Index: 3, Type: pipeline.SceneTypeProactive, POV: "Mara", Summary: "Mara confronts the commissioner", Location: "Rooftop", WordTarget: 1800, Conflict: "the commissioner's leverage"},
			{Index: 4, Type: pipeline.SceneTypeProactive, POV: "Deacon", Summary: "Deacon opens the floodgate logs", Location: "Dam control room", WordTarget: 1600, Conflict: "the sealed system"},
		},
		TotalTarget: 6100,
	}
}

func fixtureBibles() pipeline.CharacterBiblesPayload {
	return pipeline.CharacterBiblesPayload{Bibles: []pipeline.CharacterBible{
		{Name: "Mara", Physical: "wiry, rain-soaked coat", Voice: "clipped", Background: "ex-harbor patrol", Personality: "relentless", Relationships: "estranged from Deacon"},
		{Name: "Deacon", Physical: "broad, tired eyes", Voice: "slow", Background: "twenty years on the force", Personality: "loyal to a fault", Relationships: "owes Mara his badge"},
	}}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return string(raw)
}
