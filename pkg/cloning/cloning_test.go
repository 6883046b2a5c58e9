package cloning

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-weaver/pkg/graph"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/il/iltest"
)

type fixture struct {
	w      *iltest.World
	node   *il.TypeDef
	target *il.TypeDef
	g      *graph.Graph
}

func newFixture(t *testing.T, opts ...graph.BuilderOption) *fixture {
	t.Helper()
	w := iltest.NewWorld()
	node := w.Linked(w.Assembly("Sample"))
	target := w.Class(w.Assembly("Woven"), "Woven", "Node")

	opts = append([]graph.BuilderOption{graph.WithResolver(w.Universe)}, opts...)
	g, err := graph.NewBuilder(opts...).Build(node)
	require.NoError(t, err)
	return &fixture{w: w, node: node, target: target, g: g}
}

func (f *fixture) context(t *testing.T, opts ...Option) *Context {
	t.Helper()
	opts = append([]Option{WithResolver(f.w.Universe)}, opts...)
	ctx, err := NewContext(f.g, f.node, f.target, opts...)
	require.NoError(t, err)
	return ctx
}

func names[T any](items []T, name func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = name(it)
	}
	return out
}

func TestExecute_SelfReferenceMapsToTarget(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t)
	require.NoError(t, ctx.Execute())

	assert.Equal(t, []string{"next", "count"}, names(f.target.Fields, func(fd *il.FieldDef) string { return fd.Name }))
	next := f.target.FindField("next")
	require.NotNil(t, next)
	assert.Same(t, f.target, next.FieldType)
	assert.Equal(t, "System.Int32", f.target.FindField("count").FieldType.FullName())

	assert.Equal(t, []string{".ctor", "Walk", "Identity"}, names(f.target.Methods, func(m *il.MethodDef) string { return m.Name }))

	for _, e := range f.g.Internal() {
		cl, ok := ctx.Cloner(e)
		require.True(t, ok)
		assert.True(t, cl.IsTargetSet(), il.Describe(e))
		assert.True(t, cl.IsCloned(), il.Describe(e))
	}

	// nothing in the target points back at the source type
	for _, m := range f.target.Methods {
		for _, p := range m.Parameters {
			assert.NotSame(t, f.node, p.ParameterType)
		}
	}
}

func TestExecute_BodyIsRewired(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.context(t).Execute())

	src := f.node.FindMethods("Walk")[0]
	dst := f.target.FindMethods("Walk")[0]
	require.NotNil(t, dst.Body)
	require.Len(t, dst.Body.Instructions, len(src.Body.Instructions))
	require.Len(t, dst.Body.Variables, 2)
	assert.Same(t, f.target, dst.Body.Variables[1].VariableType)

	owned := make(map[*il.Instruction]bool)
	for _, ins := range dst.Body.Instructions {
		owned[ins] = true
	}
	for i, ins := range dst.Body.Instructions {
		s := src.Body.Instructions[i]
		assert.Equal(t, s.OpCode, ins.OpCode, "instruction %d", i)
		assert.Equal(t, s.Offset, ins.Offset, "instruction %d", i)
		assert.Same(t, dst.Body, ins.Body)
		switch op := ins.Operand.(type) {
		case il.BranchOperand:
			assert.True(t, owned[op.Target], "branch %d leaves the body", i)
			assert.Equal(t, src.Body.IndexOf(s.Operand.(il.BranchOperand).Target), dst.Body.IndexOf(op.Target))
		case il.VarOperand:
			assert.Same(t, dst.Body, op.Var.Body)
		case il.ParamOperand:
			assert.Same(t, dst, op.Param.Method)
		case il.FieldOperand:
			assert.Same(t, f.target, op.Field.(*il.FieldDef).DeclaringType)
		}
	}

	require.Len(t, dst.Body.ExceptionHandlers, 1)
	h := dst.Body.ExceptionHandlers[0]
	assert.Equal(t, 4, dst.Body.IndexOf(h.TryStart))
	assert.Equal(t, 18, dst.Body.IndexOf(h.HandlerStart))
	assert.Equal(t, 20, dst.Body.IndexOf(h.HandlerEnd))
	assert.Nil(t, h.FilterStart)
	assert.Equal(t, "System.Exception", h.CatchType.FullName())
}

func TestExecute_GenericMethod(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.context(t).Execute())

	identity := f.target.FindMethods("Identity")[0]
	require.Len(t, identity.GenericParameters, 1)
	tp := identity.GenericParameters[0]
	assert.Same(t, identity, tp.DeclaringMethod())
	assert.Same(t, tp, identity.ReturnType.Type)
	assert.Same(t, tp, identity.Parameters[0].ParameterType)
	assert.True(t, identity.IsStatic())
}

func TestTarget_IsLazyAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := f.context(t)

	count := f.node.FindField("count")
	first, err := ctx.Target(count)
	require.NoError(t, err)
	again, err := ctx.Target(count)
	require.NoError(t, err)
	assert.Same(t, first, again)

	cl, ok := ctx.Cloner(count)
	require.True(t, ok)
	assert.True(t, cl.IsTargetSet())
	assert.False(t, cl.IsCloned())
	assert.Nil(t, first.(*il.FieldDef).FieldType)

	// the earlier sibling was materialized first
	assert.Equal(t, []string{"next", "count"}, names(f.target.Fields, func(fd *il.FieldDef) string { return fd.Name }))

	walk := f.node.FindMethods("Walk")[0]
	last := walk.Body.Instructions[len(walk.Body.Instructions)-1]
	_, err = ctx.Target(last)
	require.NoError(t, err)
	dst := f.target.FindMethods("Walk")[0]
	require.Len(t, dst.Body.Instructions, len(walk.Body.Instructions))
	assert.Equal(t, il.Ret, dst.Body.Instructions[len(dst.Body.Instructions)-1].OpCode)

	require.NoError(t, ctx.Clone(count))
	assert.True(t, cl.IsCloned())
	require.NoError(t, ctx.Clone(count))
}

func TestExecute_Substitutions(t *testing.T) {
	f := newFixture(t)
	ctor := f.node.Constructors()[0]
	baseCall := ctor.Body.Instructions[1].Operand.(il.MethodOperand).Method
	replacement := &il.MethodReference{
		DeclaringType: il.CoreType("Exception"),
		Name:          il.ConstructorName,
		ReturnType:    il.CoreType("Void"),
		This:          true,
	}

	isInt32 := func(t il.TypeRef) bool { return t.FullName() == "System.Int32" }
	toInt64 := func(il.TypeRef) (il.TypeRef, error) { return il.CoreType("Int64"), nil }
	ctx := f.context(t,
		WithTypeSubstitution(isInt32, toInt64),
		WithMethodRedirect(baseCall, replacement))
	require.NoError(t, ctx.Execute())

	assert.Equal(t, "System.Int64", f.target.FindField("count").FieldType.FullName())
	walk := f.target.FindMethods("Walk")[0]
	assert.Equal(t, "System.Int64", walk.ReturnType.Type.FullName())

	dstCtor := f.target.Constructors()[0]
	assert.Same(t, replacement, dstCtor.Body.Instructions[1].Operand.(il.MethodOperand).Method)
}

func TestExecute_MethodSubstitution(t *testing.T) {
	f := newFixture(t)
	isCtor := func(m il.MethodRef) bool { return m.MethodName() == il.ConstructorName }
	fail := errors.New("no constructors here")
	ctx := f.context(t, WithMethodSubstitution(isCtor, func(il.MethodRef) (il.MethodRef, error) { return nil, fail }))

	err := ctx.Execute()
	require.Error(t, err)
	assert.ErrorIs(t, err, fail)
}

func TestNewContext_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := NewContext(f.g, f.node, f.node.Fields[0])
	assert.ErrorIs(t, err, ErrRootMismatch)

	_, err = NewContext(f.g, f.target, f.node)
	assert.ErrorIs(t, err, ErrNotInCloneSet)

	_, err = NewContext(f.g, nil, f.target)
	assert.ErrorIs(t, err, graph.ErrNullEndpoint)

	ctx := f.context(t)
	_, err = ctx.Target(f.target)
	assert.ErrorIs(t, err, ErrNotInCloneSet)

	require.NoError(t, ctx.Execute())
	assert.ErrorIs(t, ctx.Execute(), ErrExecuted)
}

func TestExecute_SynthesisErrorNamesKind(t *testing.T) {
	w := iltest.NewWorld()
	asm := w.Assembly("Sample")
	root := w.Class(asm, "Sample", "Root")
	other := w.Class(asm, "Sample", "Other")
	g, err := graph.NewBuilder(graph.WithResolver(w.Universe)).Build(root, other)
	require.NoError(t, err)

	detached := il.NewType("Woven", "Root", il.TypePublic, w.Object())
	ctx, err := NewContext(g, root, detached)
	require.NoError(t, err)

	err = ctx.Execute()
	var se *SynthesisError
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, il.KindType, se.Kind)
	assert.Same(t, other, se.Source)
	assert.Contains(t, err.Error(), "synthesize type target for type Sample.Other")
}

func TestCloneBody_MergesAfterBaseCall(t *testing.T) {
	w := iltest.NewWorld()
	mixin := w.Class(w.Assembly("Mixins"), "Mixins", "Counter")
	count := mixin.AddField(il.NewField("count", il.FieldPrivate, w.Int32()))
	mctor := w.DefaultConstructor(mixin)
	src := mctor.Body
	local := src.AddVariable(w.Int32())
	src.InsertAt(2,
		il.NewInstruction(il.LdcI4S, il.Int8Operand(5)),
		il.NewInstruction(il.Stloc0, nil),
		il.NewInstruction(il.Ldarg0, nil),
		il.NewInstruction(il.Ldloc, il.VarOperand{Var: local}),
		il.NewInstruction(il.Stfld, il.FieldOperand{Field: count}),
	)

	target := w.Class(w.Assembly("App"), "App", "Widget")
	tctor := w.DefaultConstructor(target)
	dst := tctor.Body
	dst.AddVariable(w.Str())
	dst.AddVariable(w.Object())

	notCtor := func(e il.Element) bool {
		m, ok := e.(*il.MethodDef)
		return !ok || !m.IsConstructor()
	}
	g, err := graph.NewBuilder(graph.WithResolver(w.Universe), graph.WithMemberFilter(notCtor)).Build(mixin)
	require.NoError(t, err)
	ctx, err := NewContext(g, mixin, target)
	require.NoError(t, err)
	require.NoError(t, ctx.Execute())

	baseCall := func(ins *il.Instruction) bool { return src.IndexOf(ins) < 2 }
	require.NoError(t, ctx.CloneBody(src, dst, 2, baseCall))

	want := []il.OpCode{il.Ldarg0, il.Call, il.LdcI4S, il.Stloc2, il.Ldarg0, il.Ldloc2, il.Stfld, il.Br, il.Ret}
	got := make([]il.OpCode, len(dst.Instructions))
	for i, ins := range dst.Instructions {
		got[i] = ins.OpCode
	}
	require.Equal(t, want, got)

	require.Len(t, dst.Variables, 3)
	assert.Equal(t, "System.Int32", dst.Variables[2].VariableType.FullName())
	assert.Same(t, target.FindField("count"), dst.Instructions[6].Operand.(il.FieldOperand).Field)
	assert.Same(t, dst.Instructions[8], dst.Instructions[7].Operand.(il.BranchOperand).Target)
	assert.Len(t, target.Constructors(), 1)
}
