package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/il/iltest"
)

func TestDependencies_Type(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	iface := w.Interface(asm, "Sample", "IThing")
	box := w.Class(asm, "Sample", "Box`1")
	tp := il.AddGenericParameter(box, "T")
	box.AddInterface(iface)

	deps, err := Dependencies(box, w.Universe)
	require.NoError(t, err)

	object := w.Corlib.FindType("System.Object")
	assert.Equal(t, []il.Element{object, iface, tp}, deps)
}

func TestDependencies_FieldExpandsGenericArguments(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	node := w.Class(asm, "Sample", "Node")
	list := &il.GenericInstanceType{
		Element:   &il.TypeReference{Scope: il.CoreLibraryName, Namespace: "System.Collections.Generic", Name: "List`1"},
		Arguments: []il.TypeRef{&il.ArrayType{Element: node, Rank: 1}},
	}
	f := node.AddField(il.NewField("children", il.FieldPublic, list))

	deps, err := Dependencies(f, w.Universe)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, "System.Collections.Generic.List`1", deps[0].(*il.TypeDef).FullName())
	assert.Same(t, node, deps[1])
}

func TestDependencies_Method(t *testing.T) {
	w := iltest.NewWorld()
	node := w.Linked(w.Assembly("Sample"))
	identity := node.FindMethods("Identity")[0]

	deps, err := Dependencies(identity, w.Universe)
	require.NoError(t, err)
	assert.Equal(t, []il.Element{identity.ReturnType, identity.Parameters[0], identity.GenericParameters[0]}, deps)
}

func TestDependencies_Instructions(t *testing.T) {
	w := iltest.NewWorld()
	node := w.Linked(w.Assembly("Sample"))
	walk := node.FindMethods("Walk")[0]
	body := walk.Body

	tests := []struct {
		name string
		ins  *il.Instruction
		want []il.Element
	}{
		{"no operand", body.Instructions[0], nil},
		{"variable", body.Instructions[5], []il.Element{body.Variables[1]}},
		{"branch", body.Instructions[6], []il.Element{body.Instructions[len(body.Instructions)-2]}},
		{"field", body.Instructions[9], []il.Element{node.Fields[1]}},
		{"parameter", body.Instructions[15], []il.Element{walk.Parameters[0]}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, err := Dependencies(tt.ins, w.Universe)
			require.NoError(t, err)
			assert.Equal(t, tt.want, deps)
		})
	}

	writeLine := il.NewInstruction(il.Call, il.MethodOperand{Method: w.WriteLine()})
	deps, err := Dependencies(writeLine, w.Universe)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, "WriteLine", deps[0].(*il.MethodDef).Name)

	this := il.NewInstruction(il.LdargS, il.ParamOperand{Param: walk.ThisParameter()})
	deps, err = Dependencies(this, w.Universe)
	require.NoError(t, err)
	assert.Equal(t, []il.Element{walk}, deps)
}

func TestDependencies_ExceptionHandler(t *testing.T) {
	w := iltest.NewWorld()
	node := w.Linked(w.Assembly("Sample"))
	h := node.FindMethods("Walk")[0].Body.ExceptionHandlers[0]

	deps, err := Dependencies(h, w.Universe)
	require.NoError(t, err)
	exception := w.Corlib.FindType("System.Exception")
	assert.Equal(t, []il.Element{exception, h.TryStart, h.TryEnd, h.HandlerStart, h.HandlerEnd}, deps)
}

func TestDependencies_CustomAttribute(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	attr := w.Class(asm, "Sample", "TagAttribute")
	attr.BaseType = w.Core("Attribute")
	ctor := attr.AddMethod(il.NewConstructor(il.MethodPublic, w.Void()))
	ctor.AddParameter("kind", w.Core("Type"))
	target := w.Class(asm, "Sample", "Target")

	ca := il.AddCustomAttribute(target, il.NewCustomAttribute(ctor, il.AttributeArgument{Type: w.Core("Type"), Value: target}))
	deps, err := Dependencies(ca, w.Universe)
	require.NoError(t, err)
	typeType := w.Corlib.FindType("System.Type")
	assert.Equal(t, []il.Element{attr, ctor, typeType, target}, deps)
}

func TestDependencies_Errors(t *testing.T) {
	w := iltest.NewWorld()

	_, err := Dependencies(nil, w.Universe)
	assert.ErrorIs(t, err, ErrUnsupportedElement)

	var nilType *il.TypeDef
	_, err = Dependencies(nilType, w.Universe)
	assert.ErrorIs(t, err, ErrUnsupportedElement)

	f := il.NewField("f", il.FieldPublic, &il.TypeReference{Scope: "Nowhere", Namespace: "X", Name: "Y"})
	_, err = Dependencies(f, w.Universe)
	assert.ErrorIs(t, err, il.ErrUnresolved)

	broken := il.NewField("g", il.FieldPublic, nil)
	deps, err := Dependencies(broken, w.Universe)
	require.NoError(t, err)
	assert.Equal(t, []il.Element{nil}, deps)
}

func TestMembers(t *testing.T) {
	w := iltest.NewWorld()
	node := w.Linked(w.Assembly("Sample"))

	members, err := Members(node)
	require.NoError(t, err)
	assert.Len(t, members, len(node.Fields)+len(node.Methods))
	assert.Same(t, node.Fields[0], members[0])

	walk := node.FindMethods("Walk")[0]
	members, err = Members(walk)
	require.NoError(t, err)
	assert.Equal(t, []il.Element{walk.ReturnType, walk.Parameters[0], walk.Body}, members)

	members, err = Members(walk.Body)
	require.NoError(t, err)
	assert.Len(t, members, len(walk.Body.Variables)+len(walk.Body.Instructions)+1)
}

func TestParent(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	node := w.Linked(asm)
	inner := node.AddNestedType(il.NewType("", "Inner", il.TypeNestedPublic, w.Object()))
	walk := node.FindMethods("Walk")[0]
	identity := node.FindMethods("Identity")[0]
	tp := il.AddGenericParameter(node, "TNode")

	tests := []struct {
		name string
		e    il.Element
		want il.Element
	}{
		{"assembly", asm, nil},
		{"module", asm.MainModule(), nil},
		{"top-level type", node, nil},
		{"nested type", inner, node},
		{"field", node.Fields[0], node},
		{"method", walk, node},
		{"body", walk.Body, walk},
		{"parameter", walk.Parameters[0], walk},
		{"return type", walk.ReturnType, walk},
		{"method generic parameter", identity.GenericParameters[0], identity},
		{"type generic parameter", tp, node},
		{"instruction", walk.Body.Instructions[0], nil},
		{"variable", walk.Body.Variables[0], nil},
		{"exception handler", walk.Body.ExceptionHandlers[0], walk.Body},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parent(tt.e))
		})
	}
}

func TestPrevious(t *testing.T) {
	w := iltest.NewWorld()
	node := w.Linked(w.Assembly("Sample"))
	walk := node.FindMethods("Walk")[0]
	body := walk.Body

	assert.Nil(t, Previous(body.Instructions[0]))
	assert.Same(t, body.Instructions[0], Previous(body.Instructions[1]))
	assert.Same(t, body.Variables[0], Previous(body.Variables[1]))
	assert.Same(t, node.Fields[0], Previous(node.Fields[1]))
	assert.Same(t, node.Methods[0], Previous(walk))
	assert.Nil(t, Previous(walk.Parameters[0]))
	assert.Nil(t, Previous(node))

	first := il.AddCustomAttribute(node, il.NewCustomAttribute(il.ObjectConstructor()))
	second := il.AddCustomAttribute(node, il.NewCustomAttribute(il.ObjectConstructor()))
	assert.Nil(t, Previous(first))
	assert.Same(t, first, Previous(second))
}
