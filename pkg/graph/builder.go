package graph

import (
	"fmt"

	"github.com/l3aro/go-weaver/internal/log"
	"github.com/l3aro/go-weaver/pkg/extractor"
	"github.com/l3aro/go-weaver/pkg/il"
)

// MemberFilter decides whether a contained element is part of the walk.
type MemberFilter func(il.Element) bool

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	// Resolver turns references met during extraction into definitions.
	Resolver il.Resolver

	// MemberFilter skips contained elements (and everything below them).
	// May be nil.
	MemberFilter MemberFilter

	// Logger receives build diagnostics. Default: log.Discard
	Logger log.Logger
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithResolver sets the resolver used for references.
func WithResolver(r il.Resolver) BuilderOption {
	return func(o *BuilderOptions) {
		o.Resolver = r
	}
}

// WithMemberFilter sets the filter for contained elements.
func WithMemberFilter(f MemberFilter) BuilderOption {
	return func(o *BuilderOptions) {
		o.MemberFilter = f
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) BuilderOption {
	return func(o *BuilderOptions) {
		o.Logger = l
	}
}

// Builder walks program elements into a Graph.
type Builder struct {
	opts BuilderOptions
}

// NewBuilder creates a Builder with the given options.
func NewBuilder(opts ...BuilderOption) *Builder {
	o := BuilderOptions{Logger: log.Discard}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = log.Discard
	}
	return &Builder{opts: o}
}

// Build walks from roots, expanding every element reached through
// containment and recording every element reached only through a dependency
// as an external leaf.
func (b *Builder) Build(roots ...il.Element) (*Graph, error) {
	g := newGraph()
	var queue []VertexID

	enqueueInternal := func(e il.Element) {
		id, created := g.add(e, false)
		if created {
			queue = append(queue, id)
			return
		}
		if g.vertices[id].External {
			g.vertices[id].External = false
			queue = append(queue, id)
		}
	}

	for _, r := range roots {
		if il.IsNil(r) {
			return nil, &StructuralError{Element: r, Err: ErrNullEndpoint}
		}
		enqueueInternal(r)
		id, _ := g.ID(r)
		g.starts = append(g.starts, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		e := g.vertices[id].Element

		members, err := extractor.Members(e)
		if err != nil {
			return nil, &StructuralError{Element: e, Err: err}
		}
		for _, m := range members {
			if il.IsNil(m) {
				return nil, &StructuralError{Element: e, Err: fmt.Errorf("member: %w", ErrNullEndpoint)}
			}
			if b.opts.MemberFilter != nil && !b.opts.MemberFilter(m) {
				continue
			}
			enqueueInternal(m)
		}

		if err := b.link(g, id); err != nil {
			return nil, err
		}
	}

	b.opts.Logger.Debug("graph built",
		"roots", len(roots),
		"vertices", g.Len(),
		"internal", len(g.Internal()),
		"dependencies", len(g.Edges(Dependency)))
	return g, nil
}

// link records the parent, sibling and dependency edges of one expanded vertex.
func (b *Builder) link(g *Graph, id VertexID) error {
	e := g.vertices[id].Element

	if p := extractor.Parent(e); p != nil {
		if il.IsNil(p) {
			return &StructuralError{Element: e, Err: fmt.Errorf("parent: %w", ErrNullEndpoint)}
		}
		pid, _ := g.add(p, true)
		g.parent[id] = pid
	}

	if prev := extractor.Previous(e); prev != nil {
		if il.IsNil(prev) {
			return &StructuralError{Element: e, Err: fmt.Errorf("sibling: %w", ErrNullEndpoint)}
		}
		if prev.Kind() != e.Kind() {
			return &StructuralError{
				Element: e,
				Err:     fmt.Errorf("%w: %s follows %s", ErrSiblingKindMismatch, e.Kind(), prev.Kind()),
			}
		}
		sid, _ := g.add(prev, true)
		g.previous[id] = sid
	}

	deps, err := extractor.Dependencies(e, b.opts.Resolver)
	if err != nil {
		return &StructuralError{Element: e, Err: err}
	}
	for _, d := range deps {
		if il.IsNil(d) {
			return &StructuralError{Element: e, Err: fmt.Errorf("dependency: %w", ErrNullEndpoint)}
		}
		did, _ := g.add(d, true)
		g.deps[id] = append(g.deps[id], did)
	}
	return nil
}
