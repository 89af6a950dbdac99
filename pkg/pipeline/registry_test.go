package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryTable(t *testing.T) {
	assert.Equal(t, 11, Count())

	expected := map[int][]int{
		0:  nil,
		1:  {0},
		2:  {0, 1},
		3:  {0, 1, 2},
		4:  {0, 1, 2},
		5:  {3},
		6:  {2, 4},
		7:  {3, 5},
		8:  {6, 7},
		9:  {8},
		10: {8, 9},
	}

	for i := 0; i < Count(); i++ {
		d, err := Get(i)
		require.NoError(t, err)
		assert.Equal(t, i, d.Index)
		assert.NotEmpty(t, d.Name)
		assert.Equal(t, expected[i], Parents(i), "parents of step %d", i)
	}

	_, err := Get(11)
	assert.Error(t, err)
	_, err = Get(-1)
	assert.Error(t, err)
}

func TestTopologicalOrder(t *testing.T) {
	order := TopologicalOrder()
	require.Len(t, order, Count())

	position := make(map[int]int, len(order))
	for pos, step := range order {
		position[step] = pos
	}

	// Every parent sorts before its child.
	for i := 0; i < Count(); i++ {
		for _, p := range Parents(i) {
			assert.Less(t, position[p], position[i], "parent %d must precede step %d", p, i)
		}
	}
}

func TestDownstreamClosure(t *testing.T) {
	tests := []struct {
		step     int
		expected []int
	}{
		{0, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{3, []int{5, 7, 8, 9, 10}},
		{4, []int{6, 8, 9, 10}},
		{8, []int{9, 10}},
		{9, []int{10}},
		{10, nil},
	}

	for _, tt := range tests {
		got := Downstream(tt.step)
		if tt.expected == nil {
			assert.Empty(t, got, "step %d has no dependents", tt.step)
			continue
		}
		assert.Equal(t, tt.expected, got, "downstream of step %d", tt.step)
	}
}

func TestFanoutAndFallbackFlags(t *testing.T) {
	fallbackSteps := map[int]bool{3: true, 6: true, 9: true, 10: true}
	fanoutSteps := map[int]bool{9: true, 10: true}

	for i := 0; i < Count(); i++ {
		d := MustGet(i)
		assert.Equal(t, fallbackSteps[i], d.Fallback, "fallback flag for step %d", i)
		assert.Equal(t, fanoutSteps[i], d.Fanout, "fanout flag for step %d", i)
	}
}

func TestDescriptorDefensiveCopy(t *testing.T) {
	d := MustGet(3)
	require.NotEmpty(t, d.Parents)
	d.Parents[0] = 99

	fresh := MustGet(3)
	assert.Equal(t, 0, fresh.Parents[0], "mutating a returned descriptor must not touch the table")
}
