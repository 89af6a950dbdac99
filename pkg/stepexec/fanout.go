package stepexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/novelforge/novelforge/pkg/llm"
	"github.com/novelforge/novelforge/pkg/pipeline"
	"github.com/novelforge/novelforge/pkg/pipeline/prompt"
	"github.com/novelforge/novelforge/pkg/pipeline/validate"
)

// scenesPerChapter groups manuscript scenes into chapters. Consecutive
// scenes share a chapter so chapter boundaries stay stable across reruns.
const scenesPerChapter = 3

// fanoutResult is one finished sub-item, slotted back by scene position.
type fanoutResult struct {
	brief    pipeline.SceneBrief
	prose    pipeline.SceneProse
	degraded bool
	attempts int
	model    string
}

// runFanout drives steps 9 and 10: one bounded-concurrency sub-generation
// per scene, assembled back in scene-list order. A failed sub-item never
// fails the step; it degrades to the per-scene fallback. Cancellation stops
// the whole fanout before any artifact is written.
func (r *Runner) runFanout(ctx context.Context, projectID string, desc pipeline.Descriptor, in *inputs, opts Options) (json.RawMessage, bool, string, int, error) {
	sceneList, err := pipeline.Decode[pipeline.SceneListPayload](in.payloads[pipeline.StepSceneList])
	if err != nil {
		return nil, false, "", 0, fmt.Errorf("scene list artifact is unreadable: %w", err)
	}

	bibles, err := pipeline.Decode[pipeline.CharacterBiblesPayload](in.payloads[pipeline.StepCharacterBibles])
	if err != nil {
		return nil, false, "", 0, fmt.Errorf("character bibles artifact is unreadable: %w", err)
	}
	biblesByName := make(map[string]*pipeline.CharacterBible, len(bibles.Bibles))
	for i := range bibles.Bibles {
		biblesByName[bibles.Bibles[i].Name] = &bibles.Bibles[i]
	}

	var briefs *pipeline.SceneBriefsPayload
	if desc.Index == pipeline.StepManuscript {
		briefs, err = pipeline.Decode[pipeline.SceneBriefsPayload](in.payloads[pipeline.StepSceneBriefs])
		if err != nil {
			return nil, false, "", 0, fmt.Errorf("scene briefs artifact is unreadable: %w", err)
		}
		if len(briefs.Briefs) != len(sceneList.Scenes) {
			return nil, false, "", 0, fmt.Errorf("scene briefs artifact covers %d of %d scenes", len(briefs.Briefs), len(sceneList.Scenes))
		}
	}

	povNames := validate.POVNames(bibles)
	total := len(sceneList.Scenes)
	results := make([]fanoutResult, total)

	log := r.logger.With("project_id", projectID, "step", desc.Index, "step_name", desc.Name)
	log.Info("Starting fanout", "scenes", total, "concurrency", r.cfg.FanoutConcurrency)

	sem := semaphore.NewWeighted(int64(r.cfg.FanoutConcurrency))
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0

	for pos := range sceneList.Scenes {
		if err := sem.Acquire(ctx, 1); err != nil {
			break // context cancelled while waiting for a slot
		}
		wg.Add(1)
		go func(pos int) {
			defer wg.Done()
			defer sem.Release(1)

			scene := sceneList.Scenes[pos]
			bible := biblesByName[scene.POV]

			var res fanoutResult
			if desc.Index == pipeline.StepSceneBriefs {
				res = r.generateBrief(ctx, projectID, desc, scene, bible, povNames, opts)
			} else {
				res = r.generateProse(ctx, projectID, desc, scene, briefs.Briefs[pos], bible, opts)
			}
			results[pos] = res

			mu.Lock()
			completed++
			done := completed
			mu.Unlock()
			if done%r.cfg.ProgressEvery == 0 || done == total {
				if perr := r.publisher.PublishStepProgress(projectID, desc.Index, done, total); perr != nil {
					log.Warn("Failed to publish step_progress event", "error", perr)
				}
			}
		}(pos)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, false, "", 0, err
	}

	degraded := false
	maxAttempts := 0
	modelUsed := ""
	for _, res := range results {
		if res.degraded {
			degraded = true
		}
		if res.attempts > maxAttempts {
			maxAttempts = res.attempts
		}
		if modelUsed == "" && res.model != "" {
			modelUsed = res.model
		}
	}
	if modelUsed == "" {
		modelUsed = "fallback"
	}

	var payload json.RawMessage
	if desc.Index == pipeline.StepSceneBriefs {
		out := pipeline.SceneBriefsPayload{Briefs: make([]pipeline.SceneBrief, total)}
		for pos, res := range results {
			out.Briefs[pos] = res.brief
		}
		payload, err = json.Marshal(out)
	} else {
		payload, err = json.Marshal(assembleManuscript(results))
	}
	if err != nil {
		return nil, false, "", 0, err
	}
	return payload, degraded, modelUsed, maxAttempts, nil
}

// generateBrief runs the generate-validate-revise loop for one scene brief,
// ending in the deterministic per-scene fallback.
func (r *Runner) generateBrief(ctx context.Context, projectID string, desc pipeline.Descriptor, scene pipeline.Scene, bible *pipeline.CharacterBible, povNames map[string]bool, opts Options) fanoutResult {
	res := fanoutResult{}

	p, err := r.prompts.BuildSceneBrief(scene, bible)
	if err == nil {
		for attempt := 1; attempt <= r.cfg.MaxRevisions; attempt++ {
			res.attempts = attempt
			resp, genErr := r.generateScoped(ctx, projectID, desc, p, opts)
			if genErr != nil {
				break
			}

			raw, _ := parseResponse(resp.Text)
			brief, decErr := pipeline.Decode[pipeline.SceneBrief](raw)
			var issues []validate.Issue
			if decErr != nil {
				issues = []validate.Issue{{
					Code:         validate.CodeSchema,
					Message:      fmt.Sprintf("scene %d brief does not decode: %v", scene.Index, decErr),
					SuggestedFix: "return a single JSON object with the brief fields",
				}}
			} else {
				brief.SceneIndex = scene.Index
				issues = validate.BriefIssues(*brief, scene, povNames)
			}

			if len(issues) == 0 {
				res.brief = *brief
				res.model = resp.Provider + "/" + resp.Model
				return res
			}
			if attempt == r.cfg.MaxRevisions {
				break
			}
			p, err = r.prompts.BuildRevision(desc.Index, resp.Text, issues, opts.Guidance)
			if err != nil {
				break
			}
		}
	}

	res.brief = fallbackSceneBrief(scene)
	res.degraded = true
	return res
}

// generateProse runs the same loop for one scene's prose. The fallback here
// is a stub marker paragraph, never synthesised narrative.
func (r *Runner) generateProse(ctx context.Context, projectID string, desc pipeline.Descriptor, scene pipeline.Scene, brief pipeline.SceneBrief, bible *pipeline.CharacterBible, opts Options) fanoutResult {
	res := fanoutResult{}

	p, err := r.prompts.BuildSceneProse(scene, brief, bible)
	if err == nil {
		for attempt := 1; attempt <= r.cfg.MaxRevisions; attempt++ {
			res.attempts = attempt
			resp, genErr := r.generateScoped(ctx, projectID, desc, p, opts)
			if genErr != nil {
				break
			}

			raw, _ := parseResponse(resp.Text)
			sp, decErr := pipeline.Decode[pipeline.SceneProse](raw)
			var issues []validate.Issue
			if decErr != nil || sp.Prose == "" {
				// Prose models often answer with bare narrative instead of
				// the envelope object. Accept the raw text as the prose.
				sp = &pipeline.SceneProse{Prose: resp.Text}
			}
			sp.SceneIndex = scene.Index
			sp.WordCount = pipeline.CountWords(sp.Prose)
			issues = validate.ProseIssues(*sp, scene)

			if len(issues) == 0 {
				res.prose = *sp
				res.model = resp.Provider + "/" + resp.Model
				return res
			}
			if attempt == r.cfg.MaxRevisions {
				break
			}
			p, err = r.prompts.BuildRevision(desc.Index, resp.Text, issues, opts.Guidance)
			if err != nil {
				break
			}
		}
	}

	res.prose = fallbackSceneProse(scene, brief)
	res.degraded = true
	return res
}

// generateScoped issues one generation for a fanout sub-item. Sub-items
// share the parent step's tier and sampling parameters.
func (r *Runner) generateScoped(ctx context.Context, projectID string, desc pipeline.Descriptor, p *prompt.Prompt, opts Options) (*llm.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return r.gen.Generate(ctx, &llm.Request{
		ProjectID:   projectID,
		Step:        desc.Index,
		System:      p.System,
		Prompt:      p.User,
		Tier:        desc.Tier,
		MaxTokens:   desc.MaxTokens,
		Temperature: desc.Temperature,
	})
}

// assembleManuscript groups scene prose into fixed-size chapters and sums
// the word counts.
func assembleManuscript(results []fanoutResult) pipeline.ManuscriptPayload {
	out := pipeline.ManuscriptPayload{}
	var current pipeline.Chapter
	for pos, res := range results {
		if pos%scenesPerChapter == 0 {
			if len(current.Scenes) > 0 {
				out.Chapters = append(out.Chapters, current)
			}
			current = pipeline.Chapter{Index: len(out.Chapters) + 1}
		}
		current.Scenes = append(current.Scenes, res.prose)
		out.TotalWordCount += res.prose.WordCount
	}
	if len(current.Scenes) > 0 {
		out.Chapters = append(out.Chapters, current)
	}
	return out
}
