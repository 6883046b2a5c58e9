package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-weaver/pkg/graph"
	"github.com/l3aro/go-weaver/pkg/il"
	"github.com/l3aro/go-weaver/pkg/toposort"
)

// GraphOutput represents the output of the graph command
type GraphOutput struct {
	Assembly string        `json:"assembly"`
	Stats    GraphStats    `json:"stats"`
	Vertices []GraphVertex `json:"vertices"`
	Edges    []GraphEdge   `json:"edges,omitempty"`
	// Order groups the internal elements so that every group depends only
	// on earlier groups. Elements of one group form a cycle.
	Order [][]string `json:"order,omitempty"`
}

// GraphStats counts vertices and edges
type GraphStats struct {
	Vertices     int `json:"vertices"`
	External     int `json:"external"`
	Parent       int `json:"parent_edges"`
	Sibling      int `json:"sibling_edges"`
	Dependencies int `json:"dependency_edges"`
}

// GraphVertex is one element of the graph
type GraphVertex struct {
	ID       int    `json:"id"`
	Element  string `json:"element"`
	External bool   `json:"external,omitempty"`
	Depth    int    `json:"depth"`
}

// GraphEdge connects two vertices by ID
type GraphEdge struct {
	Kind string `json:"kind"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph [container]",
	Short: "Print the element graph of a container as JSON",
	Long: `Builds the graph of parent, sibling and dependency edges reachable from
the given types (every type of the container by default) and prints it as
JSON. Elements of other assemblies appear as external vertices.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd)
		if err != nil {
			return err
		}
		path, err := s.inputPath(args)
		if err != nil {
			return err
		}
		types, _ := cmd.Flags().GetStringSlice("type")
		order, _ := cmd.Flags().GetBool("order")
		edges, _ := cmd.Flags().GetBool("edges")
		return runGraph(cmd.Context(), s, path, graphOptions{types: types, order: order, edges: edges})
	},
}

func init() {
	graphCmd.Flags().StringSliceP("type", "t", nil, "Start from these types (Ns.Type), repeatable")
	graphCmd.Flags().Bool("order", false, "Include the dependency order of internal elements")
	graphCmd.Flags().Bool("edges", true, "Include edges")
}

type graphOptions struct {
	types []string
	order bool
	edges bool
}

func runGraph(ctx context.Context, s *session, path string, opts graphOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	asm, u, err := s.load(ctx, path)
	if err != nil {
		return err
	}

	var roots []il.Element
	if len(opts.types) == 0 {
		for _, t := range asm.AllTypes() {
			if t.DeclaringType == nil {
				roots = append(roots, t)
			}
		}
	}
	for _, name := range opts.types {
		t := asm.FindType(name)
		if t == nil {
			return fmt.Errorf("type %s not found in %s", name, asm.Name)
		}
		roots = append(roots, t)
	}

	g, err := graph.NewBuilder(graph.WithResolver(u), graph.WithLogger(s.log)).Build(roots...)
	if err != nil {
		return fmt.Errorf("building graph: %w", err)
	}

	out := GraphOutput{Assembly: asm.Name}
	for i := 0; i < g.Len(); i++ {
		v := g.Vertex(graph.VertexID(i))
		gv := GraphVertex{ID: int(v.ID), Element: il.Describe(v.Element), External: v.External}
		if !v.External {
			if gv.Depth, err = g.Depth(v.Element); err != nil {
				return err
			}
		} else {
			out.Stats.External++
		}
		out.Vertices = append(out.Vertices, gv)
	}
	out.Stats.Vertices = g.Len()

	for _, kind := range []graph.EdgeKind{graph.ParentChild, graph.Sibling, graph.Dependency} {
		edges := g.Edges(kind)
		switch kind {
		case graph.ParentChild:
			out.Stats.Parent = len(edges)
		case graph.Sibling:
			out.Stats.Sibling = len(edges)
		case graph.Dependency:
			out.Stats.Dependencies = len(edges)
		}
		if !opts.edges {
			continue
		}
		for _, e := range edges {
			out.Edges = append(out.Edges, GraphEdge{Kind: kind.String(), From: int(e.From), To: int(e.To)})
		}
	}

	if opts.order {
		for _, group := range toposort.Groups(g.Internal(), g.DependenciesOf) {
			names := make([]string, len(group))
			for i, e := range group {
				names[i] = il.Describe(e)
			}
			out.Order = append(out.Order, names)
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(s.out, string(data))
	return nil
}
