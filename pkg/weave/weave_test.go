package weave

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-weaver/internal/config"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/il/iltest"
)

type recorder struct {
	name    string
	cfg     *Config
	inits   int
	applied []string
	fail    error
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) Initialize(_ *Context, cfg *Config) error {
	r.inits++
	r.cfg = cfg
	return nil
}

func (r *recorder) Apply(ctx *Context, target *il.TypeDef, attr *il.CustomAttribute) error {
	if r.fail != nil {
		return r.fail
	}
	r.applied = append(r.applied, target.FullName())
	return nil
}

type app struct {
	w      *iltest.World
	asm    *il.Assembly
	widget *il.TypeDef
	iface  *il.TypeDef
}

func newApp(t *testing.T) *app {
	t.Helper()
	w := iltest.NewWorld()
	w.Universe.Add(AttributeAssembly())
	asm := w.Assembly("App")
	a := &app{
		w:      w,
		asm:    asm,
		widget: w.Class(asm, "App", "Widget"),
		iface:  w.Interface(asm, "App", "ICounter"),
	}
	w.DefaultConstructor(a.widget)
	return a
}

func (a *app) context(weaves ...Weave) (*Context, error) {
	reg, err := NewRegistry(weaves...)
	if err != nil {
		return nil, err
	}
	return &Context{Resolver: a.w.Universe, Registry: reg}, nil
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(&recorder{name: "b"}, &recorder{name: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, reg.Names())

	w, ok := reg.Lookup("a")
	require.True(t, ok)
	assert.Equal(t, "a", w.Name())
	_, ok = reg.Lookup("c")
	assert.False(t, ok)

	assert.ErrorIs(t, reg.Register(&recorder{name: "a"}), ErrDuplicateWeave)
	_, err = NewRegistry(&recorder{name: "x"}, &recorder{name: "x"})
	assert.ErrorIs(t, err, ErrDuplicateWeave)
}

func TestExecute_AppliesMarkedTypes(t *testing.T) {
	a := newApp(t)
	attr := il.AddCustomAttribute(a.widget, NewInterfaceMixin(a.iface))

	// an ordinary attribute is left alone
	note := a.w.Class(a.asm, "App", "NoteAttribute")
	note.BaseType = a.w.Core("Attribute")
	noteCtor := a.w.DefaultConstructor(note)
	il.AddCustomAttribute(a.widget, il.NewCustomAttribute(noteCtor))

	rec := &recorder{name: InterfaceMixinAttribute}
	ctx, err := a.context(rec)
	require.NoError(t, err)
	cfg := &Config{Mixins: []config.InterfaceMixin{{Interface: "App.ICounter, App", Mixin: "App.Counter, App"}}}
	ctx.Config = cfg

	require.NoError(t, Execute(ctx, a.asm))
	assert.Equal(t, 1, rec.inits)
	assert.Same(t, cfg, rec.cfg)
	assert.Equal(t, []string{"App.Widget"}, rec.applied)
	assert.Same(t, a.asm, ctx.Assembly)

	// the weave attribute is consumed, the other one stays
	attrs := il.Attributes(a.widget)
	require.Len(t, attrs, 1)
	assert.NotSame(t, attr, attrs[0])
	assert.Nil(t, attr.Owner)
}

func TestExecute_UnknownWeave(t *testing.T) {
	a := newApp(t)
	marker, err := a.w.Universe.ResolveTypeName(MarkerInterface + ", " + AttributeLibrary)
	require.NoError(t, err)

	custom := a.w.Class(a.asm, "App", "TraceAttribute")
	custom.BaseType = a.w.Core("Attribute")
	custom.AddInterface(il.Reference(marker))
	ctor := a.w.DefaultConstructor(custom)
	il.AddCustomAttribute(a.widget, il.NewCustomAttribute(ctor))

	ctx, err := a.context(&recorder{name: InterfaceMixinAttribute})
	require.NoError(t, err)
	err = Execute(ctx, a.asm)
	assert.ErrorIs(t, err, ErrUnknownWeave)
	assert.Contains(t, err.Error(), "App.TraceAttribute on App.Widget")
}

func TestExecute_MarkerThroughBaseType(t *testing.T) {
	a := newApp(t)
	derived := a.w.Class(a.asm, "App", "CounterMixinAttribute")
	derived.BaseType = &il.TypeReference{Scope: AttributeLibrary, Namespace: "Weaver", Name: "InterfaceMixinAttribute"}
	ctor := a.w.DefaultConstructor(derived)
	il.AddCustomAttribute(a.widget, il.NewCustomAttribute(ctor))

	rec := &recorder{name: "App.CounterMixinAttribute"}
	ctx, err := a.context(rec)
	require.NoError(t, err)
	require.NoError(t, Execute(ctx, a.asm))
	assert.Equal(t, []string{"App.Widget"}, rec.applied)
}

func TestExecute_ApplyError(t *testing.T) {
	a := newApp(t)
	il.AddCustomAttribute(a.widget, NewInterfaceMixin(a.iface))
	boom := errors.New("boom")

	ctx, err := a.context(&recorder{name: InterfaceMixinAttribute, fail: boom})
	require.NoError(t, err)
	err = Execute(ctx, a.asm)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "Weaver.InterfaceMixinAttribute on App.Widget")
	assert.Len(t, il.Attributes(a.widget), 1)
}

func TestExecute_RunsAdvice(t *testing.T) {
	a := newApp(t)
	advice := a.w.Class(a.w.Assembly("Advice"), "Advice", "Trace")
	forward := advice.AddMethod(il.NewMethod("Forward", il.MethodPublic|il.MethodStatic, a.w.Int32()))
	forward.NewBody().Emit(il.Ret, nil)
	around := advice.AddMethod(il.NewMethod("Around", il.MethodPublic|il.MethodStatic, a.w.Int32()))
	body := around.NewBody()
	body.Emit(il.Call, il.MethodOperand{Method: forward})
	body.Emit(il.Ret, nil)

	next := a.widget.AddMethod(il.NewMethod("Next", il.MethodPublic|il.MethodStatic, a.w.Int32()))
	next.NewBody().Emit(il.LdcI41, nil)
	next.Body.Emit(il.Ret, nil)

	ctx, err := a.context()
	require.NoError(t, err)
	ctx.Config = &Config{Advice: []config.AdviceRule{{
		Target:  "App.Widget::Next",
		Type:    "Advice.Trace, Advice",
		Method:  "Around",
		Forward: "Forward",
	}}}
	require.NoError(t, Execute(ctx, a.asm))

	assert.NotEqual(t, "Next", next.Name)
	replacement := a.widget.FindMethods("Next")
	require.Len(t, replacement, 1)
	assert.Same(t, next, replacement[0].Body.Instructions[0].Operand.(il.MethodOperand).Method)
}

func TestExecute_BadAdviceTarget(t *testing.T) {
	a := newApp(t)
	ctx, err := a.context()
	require.NoError(t, err)
	ctx.Config = &Config{Advice: []config.AdviceRule{{Target: "App.Widget", Type: "A", Method: "B", Forward: "C"}}}
	assert.Error(t, Execute(ctx, a.asm))
}

func TestExecute_Defaults(t *testing.T) {
	a := newApp(t)
	ctx := &Context{Resolver: a.w.Universe}
	require.NoError(t, Execute(ctx, a.asm))
	assert.NotNil(t, ctx.Logger)
	assert.NotNil(t, ctx.Config)
	assert.Empty(t, ctx.Registry.Names())
}
