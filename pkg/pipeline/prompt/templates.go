// Package prompt builds the system and user text for every pipeline step.
// The builder is stateless; all story state arrives as parent payloads. Each
// step's prompt version is a static SHA-256 over its template source, so any
// template edit changes the upstream hash of artifacts generated from it.
package prompt

// jsonOnlyInstruction is appended to every system prompt. The parser is
// forgiving, but asking for bare JSON keeps tier-(a) parses the common case.
const jsonOnlyInstruction = `Respond with a single JSON object and nothing else: no preamble, no code fences, no commentary after the closing brace.`

// systemNovelist is the shared system persona for the creative steps.
const systemNovelist = `You are a professional novelist and story architect. You design stories with a disciplined structure: every story has a moral premise, three escalating disasters, and characters whose values collide. You write concretely and never pad.`

// Task templates, one per step. The user message is the formatted parent
// artifacts followed by one of these.

const taskSeed = `## Your Task
Classify the story brief above. Decide the best-fit category (genre shelf), the story kind within it, and what the target audience reads this kind of story for.

Return JSON: {"category", "story_kind", "audience_delight": [strings]}`

const taskLogline = `## Your Task
Write a one-sentence logline of at most 25 words: a lead, their goal, and the opposition. No character names, no endings.

Return JSON: {"logline", "word_count", "components": {"lead", "role", "goal", "opposition"}}`

const taskParagraph = `## Your Task
Expand the logline into exactly five sentences: (1) setup, (2) disaster one, (3) disaster two, (4) disaster three, (5) ending. Each disaster sentence must force the lead onward — use "forces" or "must". State the moral premise as one sentence of the form "X leads to failure; Y leads to success."

Return JSON: {"paragraph", "sentences": [5 strings], "moral_premise", "disasters": [3 strings]}`

const taskCharacters = `## Your Task
Create the principal cast (at least a protagonist and an antagonist). For each character give: name, role, story goal, deeper ambition, values (each phrased "Nothing is more important than ..."), conflict (who or what blocks them), epiphany (what they learn, if anything), and a one-sentence arc.

Return JSON: {"characters": [{"name", "role", "goal", "ambition", "values": [strings], "conflict", "epiphany", "arc"}]}`

const taskPageSynopsis = `## Your Task
Expand each of the five sentences above into a full paragraph of at least 50 words, keyed "1" through "5". Paragraph 5 must name the moral pivot: state explicitly how the ending proves the moral premise.

Return JSON: {"paragraphs": {"1", "2", "3", "4", "5"}}`

const taskCharacterSynopses = `## Your Task
For every character in the cast, write their story from their own point of view: at least 300 words each, covering what they want, what they do in each act, and how the disasters change them.

Return JSON: {"character_synopses": [{"name", "synopsis"}]}`

const taskLongSynopsis = `## Your Task
Expand the one-page synopsis into a long synopsis of 2,500 to 3,000 words. Follow the five-paragraph structure act by act, keep every disaster on the page, and close on the moral pivot.

Return JSON: {"long_synopsis"}`

const taskCharacterBibles = `## Your Task
For every character in the cast, write a production bible entry: physical description, voice (how they speak), background, personality, relationships to the rest of the cast, quirks, and vulnerabilities.

Return JSON: {"bibles": [{"name", "physical", "voice", "background", "personality", "relationships", "quirks", "vulnerabilities"}]}`

const taskSceneList = `## Your Task
Break the long synopsis into a scene list of 40 to 80 scenes. Alternate proactive scenes (goal, conflict, setback) and reactive scenes (reaction, dilemma, decision). For each scene give: 1-based index, type ("proactive" or "reactive"), POV character (a cast name), one-sentence summary, location, time, word target, the conflict, which disaster it anchors to if any, and the hook into the next scene. Word targets must sum to the novel target within 20%%.

The novel target is %d words.

Return JSON: {"scenes": [{"index", "type", "pov", "summary", "location", "time", "word_target", "conflict", "disaster_anchor", "hooks"}], "total_target"}`

// taskSceneBrief is the per-scene sub-prompt for step 9. The fanout runtime
// formats one scene plus the POV character's bible above it.
const taskSceneBrief = `## Your Task
Write the scene brief for the single scene above. For a proactive scene give goal, conflict, setback; for a reactive scene give reaction, dilemma, decision. Always give the stakes: what is lost if this scene goes wrong for the POV character.

Return JSON: {"scene_index", "type", "pov", "goal", "conflict", "setback", "reaction", "dilemma", "decision", "stakes"} — omit the fields that do not apply to the scene type.`

// taskSceneProse is the per-scene sub-prompt for step 10.
const taskSceneProse = `## Your Task
Write the full prose for the single scene above, in the POV character's voice per their bible, hitting the word target within 20 percent. Show the brief's beats in order; do not summarise them.

Return JSON: {"scene_index", "prose", "word_count"}`

// revisionTemplate wraps a failed attempt with the validator findings.
// %s slots: step name, prior output, numbered issue list, guidance section.
const revisionTemplate = `Your previous %s draft did not pass validation.

## Previous Output
%s

## Validation Errors
%s
%s## Your Task
Produce a corrected version that fixes every listed error. Keep everything that was not flagged. Return the same JSON shape as before, and nothing else.`
