// Package cloning copies a graph of program elements into a new location,
// rewriting every reference between the copied elements so that the copy is
// consistent in its new context.
//
// A Context pairs each internal vertex of a source graph with a Cloner.
// Targets are materialized lazily: asking for the target of an element that
// has not been reached yet synthesizes an empty shell for it, and content is
// copied into the shell once when its turn in dependency order comes.
package cloning

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/extractor"
	"github.com/l3aro/go-weaver/pkg/graph"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/toposort"
)

var (
	// ErrNilTarget is reported when a target shell could not be produced.
	// It signals a broken cloner, not bad input.
	ErrNilTarget = errors.New("target synthesis returned nil")

	// ErrNotInCloneSet is returned by Target for elements the context does
	// not clone.
	ErrNotInCloneSet = errors.New("element is not part of the clone set")

	// ErrNotClonable is returned for element kinds without a cloner.
	ErrNotClonable = errors.New("element kind cannot be cloned")

	// ErrRootMismatch is returned by NewContext when the roots differ in kind.
	ErrRootMismatch = errors.New("source and target roots differ in kind")

	// ErrReentrantTarget is returned when synthesizing a target requires
	// the target being synthesized.
	ErrReentrantTarget = errors.New("target requested during its own synthesis")

	// ErrExecuted is returned when Execute runs twice on one context.
	ErrExecuted = errors.New("context already executed")
)

// SynthesisError reports a failure to create the target shell of an element.
type SynthesisError struct {
	Kind   il.Kind
	Source il.Element
	Err    error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("cloning: synthesize %s target for %s: %v", e.Kind, il.Describe(e.Source), e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Cloner pairs one source element with its target for one Context.
type Cloner struct {
	source    il.Element
	target    il.Element
	targetSet bool
	cloned    bool
	busy      bool
	root      bool
}

// Source returns the element being cloned.
func (c *Cloner) Source() il.Element { return c.source }

// Target returns the target shell, or nil before IsTargetSet.
func (c *Cloner) Target() il.Element { return c.target }

// IsTargetSet reports whether the target shell exists.
func (c *Cloner) IsTargetSet() bool { return c.targetSet }

// IsCloned reports whether content has been copied into the target.
func (c *Cloner) IsCloned() bool { return c.cloned }

// Context holds the state of one cloning operation. It is not safe for
// concurrent use and runs at most once.
type Context struct {
	graph      *graph.Graph
	sourceRoot il.Element
	targetRoot il.Element
	module     *il.Module
	opts       Options

	cloners  map[il.Element]*Cloner
	bodies   map[*il.MethodBody]struct{}
	executed bool
}

// NewContext prepares the cloning of every internal vertex of g. Elements
// contained in sourceRoot are recreated inside targetRoot, and targetRoot
// stands in for sourceRoot wherever it is referenced.
func NewContext(g *graph.Graph, sourceRoot, targetRoot il.Element, opts ...Option) (*Context, error) {
	if il.IsNil(sourceRoot) || il.IsNil(targetRoot) {
		return nil, fmt.Errorf("cloning: %w", graph.ErrNullEndpoint)
	}
	if sourceRoot.Kind() != targetRoot.Kind() {
		return nil, fmt.Errorf("cloning: %w: %s and %s", ErrRootMismatch, sourceRoot.Kind(), targetRoot.Kind())
	}
	if !g.Contains(sourceRoot) || g.IsExternal(sourceRoot) {
		return nil, &graph.StructuralError{Element: sourceRoot, Err: ErrNotInCloneSet}
	}

	o := Options{
		Logger:    log.Discard,
		Redirects: make(map[il.MethodRef]il.MethodRef),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = log.Discard
	}

	c := &Context{
		graph:      g,
		sourceRoot: sourceRoot,
		targetRoot: targetRoot,
		module:     moduleOf(targetRoot),
		opts:       o,
		cloners:    make(map[il.Element]*Cloner),
		bodies:     make(map[*il.MethodBody]struct{}),
	}
	c.cloners[sourceRoot] = &Cloner{source: sourceRoot, target: targetRoot, targetSet: true, root: true}
	if b, ok := targetRoot.(*il.MethodBody); ok {
		c.bodies[b] = struct{}{}
	}
	return c, nil
}

// SourceRoot returns the root being cloned.
func (c *Context) SourceRoot() il.Element { return c.sourceRoot }

// TargetRoot returns the element standing in for the source root.
func (c *Context) TargetRoot() il.Element { return c.targetRoot }

// Execute clones every internal vertex in dependency order. The target is
// mutated in place and is left inconsistent if Execute fails.
func (c *Context) Execute() error {
	if c.executed {
		return ErrExecuted
	}
	c.executed = true

	internal := c.graph.Internal()
	groups := toposort.Groups(internal, c.graph.DependenciesOf)
	for _, group := range groups {
		for _, e := range group {
			if err := c.Clone(e); err != nil {
				return err
			}
		}
	}
	for b := range c.bodies {
		b.ComputeOffsets()
	}

	c.opts.Logger.Debug("cloning complete",
		"source", il.Describe(c.sourceRoot),
		"target", il.Describe(c.targetRoot),
		"elements", len(internal),
		"groups", len(groups))
	return nil
}

// Cloner returns the cloner of source, creating it if source belongs to the
// clone set.
func (c *Context) Cloner(source il.Element) (*Cloner, bool) {
	if cl, ok := c.cloners[source]; ok {
		return cl, true
	}
	if !c.inCloneSet(source) {
		return nil, false
	}
	cl := &Cloner{source: source}
	c.cloners[source] = cl
	return cl, true
}

// Target returns the target of source, synthesizing its shell (and the
// shells of earlier siblings) on first use.
func (c *Context) Target(source il.Element) (il.Element, error) {
	cl, ok := c.Cloner(source)
	if !ok {
		return nil, fmt.Errorf("%s: %w", il.Describe(source), ErrNotInCloneSet)
	}
	if cl.targetSet {
		return cl.target, nil
	}

	// Earlier siblings get their shells first so declaration order carries
	// over to the target.
	chain := []*Cloner{cl}
	for p := extractor.Previous(source); p != nil; p = extractor.Previous(p) {
		pc, ok := c.Cloner(p)
		if !ok {
			continue
		}
		if pc.targetSet {
			break
		}
		chain = append(chain, pc)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if err := c.reserve(chain[i]); err != nil {
			return nil, err
		}
	}
	return cl.target, nil
}

// Clone copies the content of source into its target. Later calls are no-ops.
func (c *Context) Clone(source il.Element) error {
	cl, ok := c.Cloner(source)
	if !ok {
		return fmt.Errorf("%s: %w", il.Describe(source), ErrNotInCloneSet)
	}
	if cl.cloned {
		return nil
	}
	target, err := c.Target(source)
	if err != nil {
		return err
	}
	cl.cloned = true
	if cl.root {
		return nil
	}
	if err := source.Accept(&contentCloner{ctx: c, target: target}); err != nil {
		return fmt.Errorf("clone %s: %w", il.Describe(source), err)
	}
	return nil
}

func (c *Context) reserve(cl *Cloner) error {
	if cl.targetSet {
		return nil
	}
	if cl.busy {
		return &SynthesisError{Kind: cl.source.Kind(), Source: cl.source, Err: ErrReentrantTarget}
	}
	cl.busy = true
	s := &shellBuilder{ctx: c}
	err := cl.source.Accept(s)
	cl.busy = false

	if err != nil {
		var se *SynthesisError
		if errors.As(err, &se) {
			return err
		}
		return &SynthesisError{Kind: cl.source.Kind(), Source: cl.source, Err: err}
	}
	if il.IsNil(s.out) {
		return &SynthesisError{Kind: cl.source.Kind(), Source: cl.source, Err: ErrNilTarget}
	}
	cl.target = s.out
	cl.targetSet = true
	return nil
}

func (c *Context) inCloneSet(e il.Element) bool {
	if il.IsNil(e) {
		return false
	}
	return c.graph.Contains(e) && !c.graph.IsExternal(e)
}

// moduleOf finds the module that owns e.
func moduleOf(e il.Element) *il.Module {
	switch v := e.(type) {
	case *il.Module:
		return v
	case *il.Assembly:
		return v.MainModule()
	case *il.TypeDef:
		return v.OwningModule()
	case *il.FieldDef:
		return typeModule(v.DeclaringType)
	case *il.MethodDef:
		return typeModule(v.DeclaringType)
	case *il.PropertyDef:
		return typeModule(v.DeclaringType)
	case *il.EventDef:
		return typeModule(v.DeclaringType)
	case *il.MethodBody:
		if v.Method != nil {
			return typeModule(v.Method.DeclaringType)
		}
	}
	return nil
}

func typeModule(t *il.TypeDef) *il.Module {
	if t == nil {
		return nil
	}
	return t.OwningModule()
}
