// Package pipeline holds the static step registry: the fixed 11-step DAG a
// project moves through, from story seed to finished manuscript. The table is
// process-global and read-only after init; prompt builders and validators are
// resolved per index by their own packages so the registry stays metadata-only.
package pipeline

import (
	"fmt"
	"slices"

	"github.com/novelforge/novelforge/pkg/models"
)

// Step indices. Stable identifiers used in artifact filenames, events, and
// the public API.
const (
	StepSeed = iota
	StepLogline
	StepParagraph
	StepCharacters
	StepPageSynopsis
	StepCharacterSynopses
	StepLongSynopsis
	StepCharacterBibles
	StepSceneList
	StepSceneBriefs
	StepManuscript

	stepCount
)

// Descriptor is the static registration record for one step.
type Descriptor struct {
	Index       int
	Name        string
	Parents     []int
	Tier        models.Tier
	Fanout      bool
	Fallback    bool
	MaxTokens   int
	Temperature float64
}

// table is the authoritative dependency table. Parent indices always precede
// the step itself, which init verifies along with acyclicity.
var table = [stepCount]Descriptor{
	{Index: StepSeed, Name: "seed", Parents: nil, Tier: models.TierFast, MaxTokens: 1024, Temperature: 0.7},
	{Index: StepLogline, Name: "logline", Parents: []int{0}, Tier: models.TierFast, MaxTokens: 512, Temperature: 0.7},
	{Index: StepParagraph, Name: "paragraph", Parents: []int{0, 1}, Tier: models.TierFast, MaxTokens: 1024, Temperature: 0.7},
	{Index: StepCharacters, Name: "characters", Parents: []int{0, 1, 2}, Tier: models.TierBalanced, Fallback: true, MaxTokens: 4096, Temperature: 0.7},
	{Index: StepPageSynopsis, Name: "page_synopsis", Parents: []int{0, 1, 2}, Tier: models.TierBalanced, MaxTokens: 4096, Temperature: 0.7},
	{Index: StepCharacterSynopses, Name: "character_synopses", Parents: []int{3}, Tier: models.TierBalanced, MaxTokens: 8192, Temperature: 0.7},
	{Index: StepLongSynopsis, Name: "long_synopsis", Parents: []int{2, 4}, Tier: models.TierQuality, Fallback: true, MaxTokens: 8192, Temperature: 0.7},
	{Index: StepCharacterBibles, Name: "character_bibles", Parents: []int{3, 5}, Tier: models.TierBalanced, MaxTokens: 8192, Temperature: 0.7},
	{Index: StepSceneList, Name: "scene_list", Parents: []int{6, 7}, Tier: models.TierQuality, MaxTokens: 16384, Temperature: 0.6},
	{Index: StepSceneBriefs, Name: "scene_briefs", Parents: []int{8}, Tier: models.TierBalanced, Fanout: true, Fallback: true, MaxTokens: 2048, Temperature: 0.7},
	{Index: StepManuscript, Name: "manuscript", Parents: []int{8, 9}, Tier: models.TierQuality, Fanout: true, Fallback: true, MaxTokens: 4096, Temperature: 0.8},
}

var (
	topoOrder  []int
	downstream [stepCount][]int
)

func init() {
	order, err := sortTopologically()
	if err != nil {
		panic(fmt.Sprintf("pipeline registry: %v", err))
	}
	topoOrder = order

	for i := range table {
		downstream[i] = computeDownstream(i)
	}
}

// Count returns the number of registered steps.
func Count() int {
	return stepCount
}

// Get returns the descriptor for step i.
func Get(i int) (Descriptor, error) {
	if i < 0 || i >= stepCount {
		return Descriptor{}, fmt.Errorf("step index %d out of range [0,%d]", i, stepCount-1)
	}
	d := table[i]
	d.Parents = slices.Clone(d.Parents)
	return d, nil
}

// MustGet returns the descriptor for step i, panicking on a bad index.
// For internal callers that already validated the index.
func MustGet(i int) Descriptor {
	d, err := Get(i)
	if err != nil {
		panic(err)
	}
	return d
}

// Parents returns the parent indices of step i in ascending order.
func Parents(i int) []int {
	if i < 0 || i >= stepCount {
		return nil
	}
	return slices.Clone(table[i].Parents)
}

// Name returns the registered name for step i, or "unknown".
func Name(i int) string {
	if i < 0 || i >= stepCount {
		return "unknown"
	}
	return table[i].Name
}

// TopologicalOrder returns all step indices in dependency order.
func TopologicalOrder() []int {
	return slices.Clone(topoOrder)
}

// Downstream returns the transitive closure of steps that depend on i,
// directly or indirectly, in ascending order. Used for cascade invalidation
// after a revision.
func Downstream(i int) []int {
	if i < 0 || i >= stepCount {
		return nil
	}
	return slices.Clone(downstream[i])
}

// sortTopologically runs Kahn's algorithm over the table, both producing the
// execution order and rejecting cycles.
func sortTopologically() ([]int, error) {
	inDegree := make([]int, stepCount)
	children := make([][]int, stepCount)
	for i := range table {
		for _, p := range table[i].Parents {
			if p < 0 || p >= stepCount {
				return nil, fmt.Errorf("step %d references invalid parent %d", i, p)
			}
			children[p] = append(children[p], i)
			inDegree[i]++
		}
	}

	var queue []int
	for i := range table {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}

	order := make([]int, 0, stepCount)
	for len(queue) > 0 {
		slices.Sort(queue)
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		for _, child := range children[node] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	if len(order) != stepCount {
		return nil, fmt.Errorf("dependency cycle detected; sorted %d of %d steps", len(order), stepCount)
	}
	return order, nil
}

// computeDownstream walks the child adjacency from i collecting every
// transitive dependent.
func computeDownstream(i int) []int {
	seen := make(map[int]bool)
	frontier := []int{i}
	for len(frontier) > 0 {
		node := frontier[0]
		frontier = frontier[1:]
		for j := range table {
			if seen[j] || !slices.Contains(table[j].Parents, node) {
				continue
			}
			seen[j] = true
			frontier = append(frontier, j)
		}
	}

	out := make([]int, 0, len(seen))
	for j := range seen {
		out = append(out, j)
	}
	slices.Sort(out)
	return out
}
