package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/il/iltest"
)

// containment maps every element reachable through Members from root to the
// element that listed it.
func containment(t *testing.T, root il.Element) map[il.Element]il.Element {
	t.Helper()
	owner := make(map[il.Element]il.Element)
	queue := []il.Element{root}
	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]
		members, err := Members(e)
		require.NoError(t, err, "members of %s", il.Describe(e))
		for _, m := range members {
			if _, seen := owner[m]; seen {
				t.Fatalf("%s is listed twice", il.Describe(m))
			}
			owner[m] = e
			queue = append(queue, m)
		}
	}
	return owner
}

func sampleAssembly() *il.Assembly {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	node := w.Linked(asm)
	inner := node.AddNestedType(il.NewType("", "Inner", il.TypeNestedPublic, w.Object()))
	node.AddNestedType(il.NewType("", "Outer", il.TypeNestedPublic, w.Object()))
	il.AddGenericParameter(node, "TNode")
	il.AddGenericParameter(node, "TValue")
	il.AddCustomAttribute(node, il.NewCustomAttribute(il.ObjectConstructor()))
	il.AddCustomAttribute(node, il.NewCustomAttribute(il.ObjectConstructor()))
	inner.AddField(il.NewField("value", il.FieldPublic, w.Int32()))
	return asm
}

func TestParent_InverseOfMembers(t *testing.T) {
	owner := containment(t, sampleAssembly())
	require.NotEmpty(t, owner)

	withParent := 0
	for e, container := range owner {
		p := Parent(e)
		if p == nil {
			continue
		}
		withParent++
		assert.Same(t, container, p, "parent of %s", il.Describe(e))
	}
	assert.Greater(t, withParent, 0)
}

func TestPrevious_SameKindSameContainer(t *testing.T) {
	owner := containment(t, sampleAssembly())

	ordered := 0
	for e, container := range owner {
		prev := Previous(e)
		if prev == nil {
			continue
		}
		ordered++
		assert.Equal(t, e.Kind(), prev.Kind(), "previous of %s", il.Describe(e))
		assert.Same(t, container, owner[prev], "previous of %s", il.Describe(e))
	}
	assert.Greater(t, ordered, 0)
}

func TestMembers_Nil(t *testing.T) {
	_, err := Members(nil)
	assert.ErrorIs(t, err, ErrUnsupportedElement)

	var node *il.TypeDef
	_, err = Members(node)
	assert.ErrorIs(t, err, ErrUnsupportedElement)
}
