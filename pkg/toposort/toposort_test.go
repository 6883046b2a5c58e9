package toposort

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edgesOf(m map[string][]string) func(string) []string {
	return func(v string) []string { return m[v] }
}

func position(order []string) map[string]int {
	pos := make(map[string]int, len(order))
	for i, v := range order {
		pos[v] = i
	}
	return pos
}

func TestStrict_AcyclicRespectsEdges(t *testing.T) {
	deps := map[string][]string{
		"method":    {"parameter", "return", "type"},
		"parameter": {"type"},
		"return":    {"int32"},
		"field":     {"type", "int32"},
		"type":      {"object"},
	}
	vertices := []string{"method", "field", "parameter", "return", "type", "object", "int32"}

	order, err := Strict(vertices, edgesOf(deps))
	require.NoError(t, err)
	require.Len(t, order, len(vertices))

	pos := position(order)
	for from, tos := range deps {
		for _, to := range tos {
			assert.LessOrEqual(t, pos[to], pos[from], "%s must precede %s", to, from)
		}
	}
}

func TestGroups_CycleIsOneGroup(t *testing.T) {
	// T1 : where T1 : IComparable<T2>, T2 : IComparable<T1>
	deps := map[string][]string{
		"T1":     {"T2"},
		"T2":     {"T1"},
		"method": {"T1", "T2"},
		"T1'":    nil,
	}
	vertices := []string{"method", "T1", "T2", "T1'"}

	groups := Groups(vertices, edgesOf(deps))
	require.Len(t, groups, 3)
	assert.ElementsMatch(t, []string{"T1", "T2"}, groups[0])
	assert.Equal(t, []string{"method"}, groups[1])
	assert.Equal(t, []string{"T1'"}, groups[2])

	_, err := Strict(vertices, edgesOf(deps))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCycle))

	var cycle *CycleError[string]
	require.True(t, errors.As(err, &cycle))
	assert.ElementsMatch(t, []string{"T1", "T2"}, cycle.Group)
}

func TestStrict_SelfLoopIsNotACycle(t *testing.T) {
	deps := map[string][]string{
		"Node":      {"Object"},
		"Node.next": {"Node"},
	}
	deps["Node"] = append(deps["Node"], "Node")

	order, err := Strict([]string{"Node.next", "Node", "Object"}, edgesOf(deps))
	require.NoError(t, err)
	assert.Equal(t, []string{"Object", "Node", "Node.next"}, order)
}

func TestGroups_IgnoresUnknownTargets(t *testing.T) {
	deps := map[string][]string{"a": {"outside", "b"}}
	groups := Groups([]string{"a", "b"}, edgesOf(deps))
	assert.Equal(t, [][]string{{"b"}, {"a"}}, groups)
}

func TestGroups_DeepChainIsIterative(t *testing.T) {
	const n = 100000
	vertices := make([]int, n)
	for i := range vertices {
		vertices[i] = i
	}
	next := func(v int) []int {
		if v+1 < n {
			return []int{v + 1}
		}
		return nil
	}

	order, err := Strict(vertices, next)
	require.NoError(t, err)
	assert.Equal(t, n-1, order[0])
	assert.Equal(t, 0, order[n-1])
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, Flatten([][]int{{1}, {2, 3}}))
	assert.Empty(t, Flatten[int](nil))
}
