// Package mixin implements the interface mixin weave.
//
// A type annotated with [InterfaceMixin(typeof(IFoo))] gains IFoo together
// with the members of the mixin type configured for IFoo. The mixin's
// default constructor body runs in every instance constructor of the target
// right after the base constructor call. No constructor is ever added.
package mixin

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-weaver/pkg/cloning"
	"github.com/l3aro/go-weaver/pkg/graph"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/weave"
)

var (
	// ErrInvalidAttribute is returned when the attribute does not carry a
	// single interface type argument.
	ErrInvalidAttribute = errors.New("invalid interface mixin attribute")

	// ErrNotInterface is returned when the mixed in type is not an interface.
	ErrNotInterface = errors.New("not an interface")

	// ErrNoMixin is returned when no mixin is configured for the interface.
	ErrNoMixin = errors.New("no mixin configured for interface")

	// ErrNotImplemented is returned when the mixin does not implement the
	// interface it is configured for.
	ErrNotImplemented = errors.New("mixin does not implement interface")

	// ErrMixinConstructor is returned when the mixin declares a constructor
	// other than a parameterless instance constructor.
	ErrMixinConstructor = errors.New("mixin may only declare a default constructor")

	// ErrMixinBase is returned when the mixin does not derive directly from
	// System.Object.
	ErrMixinBase = errors.New("mixin must derive from System.Object")

	// ErrInvalidTarget is returned for targets that cannot receive members.
	ErrInvalidTarget = errors.New("invalid mixin target")
)

// Weave mixes interface implementations into annotated types.
type Weave struct {
	mixins map[*il.TypeDef]*il.TypeDef
}

var _ weave.Weave = (*Weave)(nil)

// New creates the interface mixin weave.
func New() *Weave {
	return &Weave{mixins: make(map[*il.TypeDef]*il.TypeDef)}
}

func (w *Weave) Name() string { return weave.InterfaceMixinAttribute }

// Initialize resolves the configured interface to mixin pairs.
func (w *Weave) Initialize(ctx *weave.Context, cfg *weave.Config) error {
	w.mixins = make(map[*il.TypeDef]*il.TypeDef, len(cfg.Mixins))
	for _, m := range cfg.Mixins {
		iface, err := ctx.Resolver.ResolveTypeName(m.Interface)
		if err != nil {
			return fmt.Errorf("interface %s: %w", m.Interface, err)
		}
		if !iface.IsInterface() {
			return fmt.Errorf("%s: %w", iface.FullName(), ErrNotInterface)
		}
		impl, err := ctx.Resolver.ResolveTypeName(m.Mixin)
		if err != nil {
			return fmt.Errorf("mixin %s: %w", m.Mixin, err)
		}
		w.mixins[iface] = impl
	}
	return nil
}

// Apply mixes the interface named by attr into target.
func (w *Weave) Apply(ctx *weave.Context, target *il.TypeDef, attr *il.CustomAttribute) error {
	iface, err := w.attributeInterface(ctx, attr)
	if err != nil {
		return err
	}
	mixin, ok := w.mixins[iface]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoMixin, iface.FullName())
	}
	if target.IsInterface() {
		return fmt.Errorf("%w: %s is an interface", ErrInvalidTarget, target.FullName())
	}
	if target == mixin {
		return fmt.Errorf("%w: %s is its own mixin", ErrInvalidTarget, target.FullName())
	}
	mixinCtor, err := validate(ctx.Resolver, mixin, iface)
	if err != nil {
		return err
	}

	if !implements(ctx.Resolver, target, iface) {
		target.AddInterface(importType(target, iface))
	}

	g, err := graph.NewBuilder(
		graph.WithResolver(ctx.Resolver),
		graph.WithMemberFilter(memberFilter(mixin)),
		graph.WithLogger(ctx.Log()),
	).Build(mixin)
	if err != nil {
		return err
	}
	cc, err := cloning.NewContext(g, mixin, target,
		cloning.WithResolver(ctx.Resolver),
		cloning.WithLogger(ctx.Log()),
	)
	if err != nil {
		return err
	}
	if err := cc.Execute(); err != nil {
		return err
	}

	merged := 0
	if mixinCtor != nil {
		skip := prologue(mixinCtor)
		for _, ctor := range target.Constructors() {
			call := baseConstructorCall(target, ctor)
			if call == nil {
				// chains to another constructor of target, which gets the
				// mixin code itself
				continue
			}
			at := ctor.Body.IndexOf(call) + 1
			if err := cc.CloneBody(mixinCtor.Body, ctor.Body, at, skip); err != nil {
				return fmt.Errorf("merge constructor into %s: %w", il.MethodFullName(ctor), err)
			}
			ctor.Body.ComputeOffsets()
			merged++
		}
		if len(target.Constructors()) == 0 {
			ctx.Log().Warn("mixin constructor not merged: target has no constructors",
				"type", target.FullName(), "mixin", mixin.FullName())
		}
	}

	ctx.Log().Info("mixin applied",
		"type", target.FullName(),
		"interface", iface.FullName(),
		"mixin", mixin.FullName(),
		"constructors", merged)
	return nil
}

func (w *Weave) attributeInterface(ctx *weave.Context, attr *il.CustomAttribute) (*il.TypeDef, error) {
	if len(attr.Arguments) != 1 {
		return nil, fmt.Errorf("%w: want 1 argument, got %d", ErrInvalidAttribute, len(attr.Arguments))
	}
	ref, ok := attr.Arguments[0].Value.(il.TypeRef)
	if !ok || ref == nil {
		return nil, fmt.Errorf("%w: argument is %T, not a type", ErrInvalidAttribute, attr.Arguments[0].Value)
	}
	iface, err := ctx.Resolver.ResolveType(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAttribute, err)
	}
	if !iface.IsInterface() {
		return nil, fmt.Errorf("%s: %w", iface.FullName(), ErrNotInterface)
	}
	return iface, nil
}

// validate checks the shape of mixin and returns its default constructor,
// if any.
func validate(r il.Resolver, mixin, iface *il.TypeDef) (*il.MethodDef, error) {
	if mixin.IsInterface() || mixin.BaseType == nil || mixin.BaseType.FullName() != "System.Object" {
		return nil, fmt.Errorf("%w: %s", ErrMixinBase, mixin.FullName())
	}
	if !implements(r, mixin, iface) {
		return nil, fmt.Errorf("%w: %s does not implement %s", ErrNotImplemented, mixin.FullName(), iface.FullName())
	}
	var ctor *il.MethodDef
	for _, m := range mixin.Methods {
		if !m.IsConstructor() {
			continue
		}
		if m.IsStatic() || len(m.Parameters) > 0 || m.Body == nil {
			return nil, fmt.Errorf("%w: %s", ErrMixinConstructor, il.MethodFullName(m))
		}
		ctor = m
	}
	return ctor, nil
}

func implements(r il.Resolver, t, iface *il.TypeDef) bool {
	for _, ref := range t.Interfaces {
		if ref == il.TypeRef(iface) {
			return true
		}
		if def, err := r.ResolveType(ref); err == nil && def == iface {
			return true
		}
	}
	return false
}

// importType refers to t from within owner, by reference when t lives in
// another assembly.
func importType(owner, t *il.TypeDef) il.TypeRef {
	if owner.Assembly() == t.Assembly() {
		return t
	}
	return il.Reference(t)
}

// memberFilter leaves out constructors and the attributes of the mixin
// itself.
func memberFilter(mixin *il.TypeDef) graph.MemberFilter {
	return func(e il.Element) bool {
		switch e := e.(type) {
		case *il.MethodDef:
			return !e.IsConstructor()
		case *il.CustomAttribute:
			return e.Owner != il.Element(mixin)
		}
		return true
	}
}

// prologue matches the instructions of ctor up to and including its base
// constructor call.
func prologue(ctor *il.MethodDef) func(*il.Instruction) bool {
	end := -1
	if call := baseConstructorCall(ctor.DeclaringType, ctor); call != nil {
		end = ctor.Body.IndexOf(call)
	}
	return func(ins *il.Instruction) bool {
		i := ins.Body.IndexOf(ins)
		return i >= 0 && i <= end
	}
}

// baseConstructorCall returns the call to the base type constructor in
// ctor, or nil when ctor delegates to another constructor of t.
func baseConstructorCall(t *il.TypeDef, ctor *il.MethodDef) *il.Instruction {
	if ctor.Body == nil {
		return nil
	}
	for _, ins := range ctor.Body.Instructions {
		if ins.OpCode != il.Call {
			continue
		}
		op, ok := ins.Operand.(il.MethodOperand)
		if !ok || op.Method.MethodName() != il.ConstructorName || !op.Method.HasThis() {
			continue
		}
		declaring := op.Method.DeclaringTypeRef()
		if declaring == il.TypeRef(t) || (declaring != nil && declaring.FullName() == t.FullName()) {
			return nil
		}
		return ins
	}
	return nil
}
