// Package graph materializes the structural graph of a set of program
// elements: parent-child containment, declaration-order siblings and
// definition dependencies. Vertices live in an arena and are addressed by
// VertexID, so cyclic metadata (a type holding a field of its own type,
// generic constraints referring to each other) needs no special casing.
package graph

import (
	"errors"
	"fmt"

	"github.com/l3aro/go-weaver/pkg/il"
)

var (
	// ErrNullEndpoint is returned when an edge points at a missing element.
	ErrNullEndpoint = errors.New("edge endpoint is nil")

	// ErrSiblingKindMismatch is returned when siblings are of different kinds.
	ErrSiblingKindMismatch = errors.New("sibling kinds differ")

	// ErrParentCycle is returned when parent edges do not form a tree.
	ErrParentCycle = errors.New("cycle in parent chain")

	// ErrNotInGraph is returned by queries about elements outside the graph.
	ErrNotInGraph = errors.New("element not in graph")
)

// StructuralError reports malformed input metadata or an extraction bug,
// naming the vertex where it was found.
type StructuralError struct {
	Element il.Element
	Err     error
}

func (e *StructuralError) Error() string {
	return fmt.Sprintf("graph: %s: %v", il.Describe(e.Element), e.Err)
}

func (e *StructuralError) Unwrap() error { return e.Err }

// VertexID is the stable index of a vertex in its graph.
type VertexID int

// NoVertex marks the absence of a vertex.
const NoVertex VertexID = -1

// Vertex is one program element in the graph. External vertices were reached
// only through dependency edges; they are referenced but not expanded.
type Vertex struct {
	ID       VertexID
	Element  il.Element
	External bool
}

// EdgeKind identifies one of the three edge sets.
type EdgeKind int

const (
	ParentChild EdgeKind = iota
	Sibling
	Dependency
)

func (k EdgeKind) String() string {
	switch k {
	case ParentChild:
		return "parent"
	case Sibling:
		return "sibling"
	case Dependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// Edge connects From to To. Parent edges point from child to parent,
// sibling edges from an element to its predecessor and dependency edges from
// the dependent to what it depends on.
type Edge struct {
	Kind EdgeKind
	From VertexID
	To   VertexID
}

// Graph is the closure of the three edge kinds from a set of start elements.
// It is not safe for concurrent use: depth queries memoize in place.
type Graph struct {
	vertices []Vertex
	index    map[il.Element]VertexID
	starts   []VertexID

	parent   []VertexID
	previous []VertexID
	deps     [][]VertexID

	depth map[VertexID]int
}

func newGraph() *Graph {
	return &Graph{
		index: make(map[il.Element]VertexID),
		depth: make(map[VertexID]int),
	}
}

// add returns the vertex of e, creating it when needed. The second result
// reports whether the vertex was created.
func (g *Graph) add(e il.Element, external bool) (VertexID, bool) {
	if id, ok := g.index[e]; ok {
		return id, false
	}
	id := VertexID(len(g.vertices))
	g.vertices = append(g.vertices, Vertex{ID: id, Element: e, External: external})
	g.index[e] = id
	g.parent = append(g.parent, NoVertex)
	g.previous = append(g.previous, NoVertex)
	g.deps = append(g.deps, nil)
	return id, true
}

// Len returns the number of vertices.
func (g *Graph) Len() int { return len(g.vertices) }

// Vertex returns the vertex with the given id.
func (g *Graph) Vertex(id VertexID) Vertex { return g.vertices[id] }

// ID returns the vertex id of e.
func (g *Graph) ID(e il.Element) (VertexID, bool) {
	id, ok := g.index[e]
	return id, ok
}

// Contains reports whether e is a vertex of the graph.
func (g *Graph) Contains(e il.Element) bool {
	_, ok := g.index[e]
	return ok
}

// IsExternal reports whether e is a vertex reached only through dependencies.
func (g *Graph) IsExternal(e il.Element) bool {
	id, ok := g.index[e]
	return ok && g.vertices[id].External
}

// Vertices returns every element in discovery order.
func (g *Graph) Vertices() []il.Element {
	out := make([]il.Element, len(g.vertices))
	for i, v := range g.vertices {
		out[i] = v.Element
	}
	return out
}

// Internal returns the elements that were expanded, in discovery order.
func (g *Graph) Internal() []il.Element {
	var out []il.Element
	for _, v := range g.vertices {
		if !v.External {
			out = append(out, v.Element)
		}
	}
	return out
}

// Starts returns the elements the graph was built from.
func (g *Graph) Starts() []il.Element {
	out := make([]il.Element, len(g.starts))
	for i, id := range g.starts {
		out[i] = g.vertices[id].Element
	}
	return out
}

// Roots returns the vertices without a parent edge.
func (g *Graph) Roots() []il.Element {
	var out []il.Element
	for i, p := range g.parent {
		if p == NoVertex {
			out = append(out, g.vertices[i].Element)
		}
	}
	return out
}

// ParentOf returns the parent of e, or nil.
func (g *Graph) ParentOf(e il.Element) il.Element {
	id, ok := g.index[e]
	if !ok || g.parent[id] == NoVertex {
		return nil
	}
	return g.vertices[g.parent[id]].Element
}

// PreviousOf returns the sibling preceding e, or nil.
func (g *Graph) PreviousOf(e il.Element) il.Element {
	id, ok := g.index[e]
	if !ok || g.previous[id] == NoVertex {
		return nil
	}
	return g.vertices[g.previous[id]].Element
}

// DependenciesOf returns what e depends on, in extraction order.
func (g *Graph) DependenciesOf(e il.Element) []il.Element {
	id, ok := g.index[e]
	if !ok {
		return nil
	}
	out := make([]il.Element, len(g.deps[id]))
	for i, d := range g.deps[id] {
		out[i] = g.vertices[d].Element
	}
	return out
}

// Edges returns every edge of the given kind.
func (g *Graph) Edges(kind EdgeKind) []Edge {
	var out []Edge
	for i := range g.vertices {
		from := VertexID(i)
		switch kind {
		case ParentChild:
			if p := g.parent[i]; p != NoVertex {
				out = append(out, Edge{Kind: kind, From: from, To: p})
			}
		case Sibling:
			if p := g.previous[i]; p != NoVertex {
				out = append(out, Edge{Kind: kind, From: from, To: p})
			}
		case Dependency:
			for _, d := range g.deps[i] {
				out = append(out, Edge{Kind: kind, From: from, To: d})
			}
		}
	}
	return out
}

// Depth returns the number of parent edges between e and its root. Results
// are memoized for every vertex on the walked chain.
func (g *Graph) Depth(e il.Element) (int, error) {
	id, ok := g.index[e]
	if !ok {
		return 0, &StructuralError{Element: e, Err: ErrNotInGraph}
	}
	if d, ok := g.depth[id]; ok {
		return d, nil
	}

	var stack []VertexID
	base := -1
	for cur := id; ; {
		if d, ok := g.depth[cur]; ok {
			base = d
			break
		}
		stack = append(stack, cur)
		if len(stack) > len(g.vertices) {
			return 0, &StructuralError{Element: e, Err: ErrParentCycle}
		}
		p := g.parent[cur]
		if p == NoVertex {
			break
		}
		cur = p
	}

	for i := len(stack) - 1; i >= 0; i-- {
		base++
		g.depth[stack[i]] = base
	}
	return g.depth[id], nil
}
