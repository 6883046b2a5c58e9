// Package weave is the boundary between the weaving host and individual
// weaves.
//
// A weave is selected by a custom attribute on a type: the attribute type
// must implement MarkerInterface and its full name must be registered in
// the Registry. Execute applies every selected weave, then runs the advice
// listed in the weaver configuration.
package weave

import (
	"errors"
	"fmt"
	"sort"

	"github.com/l3aro/go-weaver/internal/config"
	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/loom"
)

var (
	// ErrDuplicateWeave is returned when two weaves share a name.
	ErrDuplicateWeave = errors.New("weave already registered")

	// ErrUnknownWeave is returned for a weave attribute that no registered
	// weave handles.
	ErrUnknownWeave = errors.New("no weave registered for attribute")
)

// Config is the content of the weaver configuration element.
type Config = config.WeaverConfig

// Weave transforms the types that carry its attribute.
type Weave interface {
	// Name is the full name of the attribute type that selects the weave.
	Name() string

	// Initialize is called once per Execute, before any Apply.
	Initialize(ctx *Context, cfg *Config) error

	// Apply weaves target. attr is the attribute instance that selected it.
	Apply(ctx *Context, target *il.TypeDef, attr *il.CustomAttribute) error
}

// Context is shared by the host and the weaves of one run.
type Context struct {
	Resolver il.Resolver
	Logger   log.Logger
	Registry *Registry
	Config   *Config

	// Assembly is the assembly being woven. Execute sets it.
	Assembly *il.Assembly
}

// Log returns the logger of the run, never nil.
func (c *Context) Log() log.Logger {
	if c.Logger == nil {
		return log.Discard
	}
	return c.Logger
}

// Registry maps attribute names to weaves. The host builds it explicitly.
type Registry struct {
	weaves map[string]Weave
}

// NewRegistry returns a registry holding ws.
func NewRegistry(ws ...Weave) (*Registry, error) {
	r := &Registry{weaves: make(map[string]Weave)}
	for _, w := range ws {
		if err := r.Register(w); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds w under w.Name().
func (r *Registry) Register(w Weave) error {
	if _, ok := r.weaves[w.Name()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateWeave, w.Name())
	}
	r.weaves[w.Name()] = w
	return nil
}

// Lookup returns the weave registered for the attribute type name.
func (r *Registry) Lookup(name string) (Weave, bool) {
	w, ok := r.weaves[name]
	return w, ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.weaves))
	for name := range r.weaves {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type application struct {
	weave  Weave
	target *il.TypeDef
	attr   *il.CustomAttribute
}

// Execute weaves asm. Weave attributes are collected before any weave runs,
// so types added by a weave are not themselves woven. Each applied
// attribute is removed from its type.
func Execute(ctx *Context, asm *il.Assembly) error {
	if ctx.Logger == nil {
		ctx.Logger = log.Discard
	}
	if ctx.Config == nil {
		ctx.Config = &Config{}
	}
	if ctx.Registry == nil {
		ctx.Registry = &Registry{weaves: map[string]Weave{}}
	}
	ctx.Assembly = asm

	for _, name := range ctx.Registry.Names() {
		w, _ := ctx.Registry.Lookup(name)
		if err := w.Initialize(ctx, ctx.Config); err != nil {
			return fmt.Errorf("initialize %s: %w", name, err)
		}
	}

	apps, err := collect(ctx, asm)
	if err != nil {
		return err
	}
	for _, app := range apps {
		if err := app.weave.Apply(ctx, app.target, app.attr); err != nil {
			return fmt.Errorf("%s on %s: %w", app.weave.Name(), app.target.FullName(), err)
		}
		il.RemoveCustomAttribute(app.target, app.attr)
		ctx.Logger.Debug("weave applied", "weave", app.weave.Name(), "type", app.target.FullName())
	}

	if len(ctx.Config.Advice) > 0 {
		if err := weaveAdvice(ctx, asm); err != nil {
			return err
		}
	}

	ctx.Logger.Info("assembly woven", "assembly", asm.Name, "weaves", len(apps), "advice", len(ctx.Config.Advice))
	return nil
}

func collect(ctx *Context, asm *il.Assembly) ([]application, error) {
	var apps []application
	for _, t := range asm.AllTypes() {
		for _, ca := range il.Attributes(t) {
			attrType := ca.AttributeType()
			if attrType == nil {
				continue
			}
			def, err := ctx.Resolver.ResolveType(attrType)
			if err != nil {
				// attributes we cannot see cannot be weave markers
				ctx.Logger.Debug("skipping unresolved attribute", "type", t.FullName(), "attribute", attrType.FullName())
				continue
			}
			if !implementsMarker(ctx.Resolver, def) {
				continue
			}
			w, ok := ctx.Registry.Lookup(def.FullName())
			if !ok {
				return nil, fmt.Errorf("%w: %s on %s", ErrUnknownWeave, def.FullName(), t.FullName())
			}
			apps = append(apps, application{weave: w, target: t, attr: ca})
		}
	}
	return apps, nil
}

func implementsMarker(r il.Resolver, t *il.TypeDef) bool {
	for t != nil {
		for _, iface := range t.Interfaces {
			if iface.FullName() == MarkerInterface {
				return true
			}
		}
		if t.BaseType == nil {
			return false
		}
		base, err := r.ResolveType(t.BaseType)
		if err != nil {
			return false
		}
		t = base
	}
	return false
}

func weaveAdvice(ctx *Context, asm *il.Assembly) error {
	w := loom.New(ctx.Resolver, loom.WithLogger(ctx.Logger))
	for _, rule := range ctx.Config.Advice {
		sel, err := loom.ParseSelector(rule.Target)
		if err != nil {
			return err
		}
		w.Register(sel, loom.Advice{Type: rule.Type, Method: rule.Method, Forward: rule.Forward})
	}
	return w.Weave(asm)
}
