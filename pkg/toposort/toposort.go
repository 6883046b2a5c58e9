// Package toposort orders directed graphs that may contain cycles.
//
// Groups are the strongly connected components of the graph, computed with
// Tarjan's algorithm. A group holds one vertex, or every vertex of a cycle,
// and no group depends on a group that comes after it.
package toposort

import (
	"errors"
	"fmt"
)

// ErrCycle is returned by Strict when the graph contains a cycle.
var ErrCycle = errors.New("dependency cycle")

// CycleError lists the vertices of the first cycle found by Strict.
type CycleError[T comparable] struct {
	Group []T
}

func (e *CycleError[T]) Error() string {
	return fmt.Sprintf("%v: %d vertices %v", ErrCycle, len(e.Group), e.Group)
}

func (e *CycleError[T]) Unwrap() error { return ErrCycle }

// Groups returns the strongly connected components of the graph given by
// vertices and edges. Edges point from a dependent to what it depends on and
// targets outside vertices are ignored. Dependencies come first: for every
// edge a -> b, the group of b is at or before the group of a. The result is
// deterministic for a given vertex order and edge order.
func Groups[T comparable](vertices []T, edges func(T) []T) [][]T {
	known := make(map[T]bool, len(vertices))
	for _, v := range vertices {
		known[v] = true
	}

	index := 0
	nodeIndex := make(map[T]int, len(vertices))
	nodeLowLink := make(map[T]int, len(vertices))
	onStack := make(map[T]bool, len(vertices))
	var sccStack []T
	var groups [][]T

	// callFrame replaces the recursive call of the textbook formulation so
	// that long dependency chains cannot exhaust the goroutine stack.
	type callFrame struct {
		node      T
		out       []T
		edgeIndex int
		phase     int // 0=enter, 1=edges, 2=after child, 3=finish
		child     T
	}

	strongConnect := func(start T) {
		callStack := []callFrame{{node: start}}

		for len(callStack) > 0 {
			frame := &callStack[len(callStack)-1]

			switch frame.phase {
			case 0:
				nodeIndex[frame.node] = index
				nodeLowLink[frame.node] = index
				index++
				sccStack = append(sccStack, frame.node)
				onStack[frame.node] = true
				frame.out = edges(frame.node)
				frame.phase = 1

			case 1:
				pushed := false
				for frame.edgeIndex < len(frame.out) {
					to := frame.out[frame.edgeIndex]
					frame.edgeIndex++
					if !known[to] {
						continue
					}
					if _, visited := nodeIndex[to]; !visited {
						frame.phase = 2
						frame.child = to
						callStack = append(callStack, callFrame{node: to})
						pushed = true
						break
					}
					if onStack[to] && nodeIndex[to] < nodeLowLink[frame.node] {
						nodeLowLink[frame.node] = nodeIndex[to]
					}
				}
				if !pushed {
					frame.phase = 3
				}

			case 2:
				if nodeLowLink[frame.child] < nodeLowLink[frame.node] {
					nodeLowLink[frame.node] = nodeLowLink[frame.child]
				}
				frame.phase = 1

			case 3:
				if nodeLowLink[frame.node] == nodeIndex[frame.node] {
					var group []T
					for {
						w := sccStack[len(sccStack)-1]
						sccStack = sccStack[:len(sccStack)-1]
						onStack[w] = false
						group = append(group, w)
						if w == frame.node {
							break
						}
					}
					reverse(group)
					groups = append(groups, group)
				}
				callStack = callStack[:len(callStack)-1]
			}
		}
	}

	for _, v := range vertices {
		if _, visited := nodeIndex[v]; !visited {
			strongConnect(v)
		}
	}
	return groups
}

// Strict returns a total dependency order, or a *CycleError wrapping
// ErrCycle when any group holds more than one vertex. A vertex depending on
// itself is not a cycle.
func Strict[T comparable](vertices []T, edges func(T) []T) ([]T, error) {
	groups := Groups(vertices, edges)
	out := make([]T, 0, len(vertices))
	for _, g := range groups {
		if len(g) > 1 {
			return nil, &CycleError[T]{Group: g}
		}
		out = append(out, g[0])
	}
	return out, nil
}

// Flatten concatenates groups into one order.
func Flatten[T any](groups [][]T) []T {
	var out []T
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
