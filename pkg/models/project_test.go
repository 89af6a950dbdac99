package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkCompleted(t *testing.T) {
	p := &Project{CompletedSteps: []int{0, 1}}

	p.MarkCompleted(3)
	assert.Equal(t, []int{0, 1, 3}, p.CompletedSteps)
	assert.Equal(t, 3, p.CurrentStep)

	// Duplicate insertion is a no-op.
	p.MarkCompleted(3)
	assert.Equal(t, []int{0, 1, 3}, p.CompletedSteps)

	// Out-of-order completion keeps the set sorted.
	p.MarkCompleted(2)
	assert.Equal(t, []int{0, 1, 2, 3}, p.CompletedSteps)
	assert.Equal(t, 3, p.CurrentStep)
}

func TestClearAbove(t *testing.T) {
	tests := []struct {
		name     string
		steps    []int
		current  int
		clear    int
		expected []int
		expCur   int
	}{
		{"clears strictly above", []int{0, 1, 2, 3, 4, 5}, 5, 3, []int{0, 1, 2, 3}, 3},
		{"keeps boundary index", []int{0, 1, 2}, 2, 2, []int{0, 1, 2}, 2},
		{"clear everything above zero", []int{0, 1, 2}, 2, 0, []int{0}, 0},
		{"empty set", nil, 0, 4, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Project{CompletedSteps: tt.steps, CurrentStep: tt.current}
			p.ClearAbove(tt.clear)
			assert.Equal(t, tt.expected, p.CompletedSteps)
			assert.Equal(t, tt.expCur, p.CurrentStep)
		})
	}
}

func TestUpstreamHashDeterministic(t *testing.T) {
	a := UpstreamHash("pv1", []string{"hashB", "hashA"})
	b := UpstreamHash("pv1", []string{"hashA", "hashB"})
	assert.Equal(t, a, b, "parent hash order must not matter")

	c := UpstreamHash("pv2", []string{"hashA", "hashB"})
	assert.NotEqual(t, a, c, "prompt version must change the hash")

	d := UpstreamHash("pv1", []string{"hashA"})
	assert.NotEqual(t, a, d, "parent set must change the hash")
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		input   string
		want    Tier
		wantErr bool
	}{
		{"fast", TierFast, false},
		{"balanced", TierBalanced, false},
		{"quality", TierQuality, false},
		{"turbo", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTier(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
