// Package loom weaves advice around existing methods.
//
// For every method accepted by a registered Selector the original method is
// renamed out of the way, a replacement method takes over its name and
// signature, and the body of the advice method is cloned into the
// replacement. Calls to the advice's forward marker inside that body are
// redirected to the renamed original, and every call site in the assembly
// is redirected to the replacement.
package loom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/cloning"
	"github.com/l3aro/go-weaver/pkg/graph"
	"github.com/l3aro/go-weaver/pkg/il"
)

var (
	// ErrAdviceNotFound is returned when the advice type, method or forward
	// marker cannot be found.
	ErrAdviceNotFound = errors.New("advice not found")

	// ErrUnsupportedTarget is returned for methods that cannot be advised.
	ErrUnsupportedTarget = errors.New("method cannot be advised")

	// ErrForwardArguments is returned when the arguments of a forward call
	// are not a plain sequence of loads.
	ErrForwardArguments = errors.New("forward arguments are not plain loads")
)

// Advice names the method whose body wraps the advised methods.
type Advice struct {
	// Type is the assembly-qualified name of the type declaring the advice.
	Type string

	// Method is the name of the advice method.
	Method string

	// Forward is the name of the marker method that stands for the
	// original method inside the advice body.
	Forward string
}

// Options configures a Weaver.
type Options struct {
	// Logger receives weaving diagnostics. Default: log.Discard
	Logger log.Logger

	// Rename returns the new name of an advised method. The default
	// appends a random suffix.
	Rename func(name string) string
}

// Option is a functional option for configuring a Weaver.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithRename sets the function that renames advised methods.
func WithRename(rename func(string) string) Option {
	return func(o *Options) {
		o.Rename = rename
	}
}

func uniqueName(name string) string {
	return name + "$" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

type rule struct {
	selector Selector
	advice   Advice
}

// Weaver applies registered advice to assemblies.
type Weaver struct {
	resolver il.Resolver
	opts     Options
	rules    []rule
}

// New creates a Weaver that finds advice through resolver.
func New(resolver il.Resolver, opts ...Option) *Weaver {
	o := Options{Logger: log.Discard, Rename: uniqueName}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = log.Discard
	}
	if o.Rename == nil {
		o.Rename = uniqueName
	}
	return &Weaver{resolver: resolver, opts: o}
}

// Register adds advice for every method accepted by selector.
func (w *Weaver) Register(selector Selector, advice Advice) {
	w.rules = append(w.rules, rule{selector: selector, advice: advice})
}

// Len returns the number of registered rules.
func (w *Weaver) Len() int { return len(w.rules) }

// Weave applies every registered rule to target, in registration order.
// Methods are selected before any of them is changed.
func (w *Weaver) Weave(target *il.Assembly) error {
	for _, r := range w.rules {
		advice, forward, err := w.lookup(r.advice)
		if err != nil {
			return err
		}

		var matched []*il.MethodDef
		for _, t := range target.AllTypes() {
			for _, m := range t.Methods {
				if r.selector(m) {
					matched = append(matched, m)
				}
			}
		}
		if len(matched) == 0 {
			w.opts.Logger.Warn("advice matched no methods", "advice", r.advice.Type+"::"+r.advice.Method)
			continue
		}

		for _, m := range matched {
			if err := w.weaveMethod(target, m, advice, forward); err != nil {
				return fmt.Errorf("weave %s: %w", il.MethodFullName(m), err)
			}
		}
	}
	return nil
}

func (w *Weaver) lookup(a Advice) (*il.MethodDef, *il.MethodDef, error) {
	if w.resolver == nil {
		return nil, nil, fmt.Errorf("%w: no resolver for %s", ErrAdviceNotFound, a.Type)
	}
	t, err := w.resolver.ResolveTypeName(a.Type)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: type %s: %w", ErrAdviceNotFound, a.Type, err)
	}
	advice := single(t.FindMethods(a.Method))
	if advice == nil {
		return nil, nil, fmt.Errorf("%w: method %s::%s", ErrAdviceNotFound, t.FullName(), a.Method)
	}
	forward := single(t.FindMethods(a.Forward))
	if forward == nil {
		return nil, nil, fmt.Errorf("%w: forward marker %s::%s", ErrAdviceNotFound, t.FullName(), a.Forward)
	}
	if advice.Body == nil {
		return nil, nil, fmt.Errorf("%w: %s has no body", ErrAdviceNotFound, il.MethodFullName(advice))
	}
	// the weaver supplies the receiver of the forwarded call
	for _, m := range []*il.MethodDef{advice, forward} {
		if !m.IsStatic() {
			return nil, nil, fmt.Errorf("%w: %s must be static", ErrUnsupportedTarget, il.MethodFullName(m))
		}
	}
	return advice, forward, nil
}

// single returns the only method in ms, or nil when the name is missing or
// overloaded.
func single(ms []*il.MethodDef) *il.MethodDef {
	if len(ms) != 1 {
		return nil
	}
	return ms[0]
}

func (w *Weaver) weaveMethod(asm *il.Assembly, m, advice, forward *il.MethodDef) error {
	if m.Body == nil {
		return fmt.Errorf("%w: no body", ErrUnsupportedTarget)
	}
	if len(m.GenericParameters) > 0 {
		return fmt.Errorf("%w: generic methods are not supported", ErrUnsupportedTarget)
	}
	if len(advice.Parameters) != len(m.Parameters) || len(forward.Parameters) != len(m.Parameters) {
		return fmt.Errorf("%w: advice %s takes %d arguments, method takes %d",
			ErrUnsupportedTarget, advice.Name, len(advice.Parameters), len(m.Parameters))
	}

	name := m.Name
	m.Name = w.opts.Rename(name)
	replacement := w.replace(m, name)

	sites := redirectCalls(asm, m, replacement)

	g, err := graph.NewBuilder(
		graph.WithResolver(w.resolver),
		graph.WithLogger(w.opts.Logger),
	).Build(advice.Body)
	if err != nil {
		return err
	}
	ctx, err := cloning.NewContext(g, advice.Body, replacement.NewBody(),
		cloning.WithResolver(w.resolver),
		cloning.WithMethodRedirect(advice, replacement),
		cloning.WithMethodRedirect(forward, m),
		cloning.WithLogger(w.opts.Logger),
	)
	if err != nil {
		return err
	}
	if err := ctx.Execute(); err != nil {
		return err
	}

	if m.HasThis() {
		if err := insertReceivers(replacement.Body, m); err != nil {
			return err
		}
	}

	w.opts.Logger.Info("advice woven",
		"method", il.MethodFullName(replacement),
		"original", m.Name,
		"advice", il.MethodFullName(advice),
		"call_sites", sites)
	return nil
}

// replace creates the method that takes over the name, signature and
// accessor roles of m, and hides m behind it.
func (w *Weaver) replace(m *il.MethodDef, name string) *il.MethodDef {
	r := il.NewMethod(name, m.Flags, m.ReturnTypeRef())
	for _, p := range m.Parameters {
		np := r.AddParameter(p.Name, p.ParameterType)
		np.Flags = p.Flags
	}
	r.Overrides, m.Overrides = m.Overrides, nil
	m.DeclaringType.AddMethod(r)

	m.Flags &^= il.MethodPublic | il.MethodFamily | il.MethodVirtual | il.MethodNewSlot | il.MethodFinal
	m.Flags |= il.MethodPrivate

	for _, p := range m.DeclaringType.Properties {
		p.Getter = swap(p.Getter, m, r)
		p.Setter = swap(p.Setter, m, r)
	}
	for _, e := range m.DeclaringType.Events {
		e.AddMethod = swap(e.AddMethod, m, r)
		e.RemoveMethod = swap(e.RemoveMethod, m, r)
		e.InvokeMethod = swap(e.InvokeMethod, m, r)
	}
	return r
}

func swap(cur, from, to *il.MethodDef) *il.MethodDef {
	if cur == from {
		return to
	}
	return cur
}

// redirectCalls points every reference to from at to, except inside to.
func redirectCalls(asm *il.Assembly, from, to *il.MethodDef) int {
	n := 0
	for _, t := range asm.AllTypes() {
		for _, m := range t.Methods {
			if m == to || m.Body == nil {
				continue
			}
			for _, ins := range m.Body.Instructions {
				if op, ok := ins.Operand.(il.MethodOperand); ok && op.Method == il.MethodRef(from) {
					ins.Operand = il.MethodOperand{Method: to}
					n++
				}
			}
		}
	}
	return n
}
