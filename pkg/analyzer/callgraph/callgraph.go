// Package callgraph builds a method-level call graph from resolved
// call-family instructions and reports reachability from the graph roots,
// recursion groups and PageRank centrality.
//
// The graph is informational. It sees the same evidence as the usage index
// and nothing more: indirect calls, reflection and unresolved references
// add no edges.
package callgraph

import (
	"cmp"
	"context"
	"slices"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/panbanda/ilscan/pkg/analyzer/capability"
	"github.com/panbanda/ilscan/pkg/metadata"
)

// Graph is a directed call graph over every method of a set of assemblies.
// Node IDs are indexes into Methods.
type Graph struct {
	methods  []*metadata.Method
	index    map[*metadata.Method]int64
	directed *simple.DirectedGraph
	// gonum simple graphs reject self edges, so direct recursion is kept
	// apart.
	selfCalls *roaring.Bitmap
	roots     *roaring.Bitmap
}

// Build creates the call graph of assemblies.
func Build(assemblies ...*metadata.Assembly) *Graph {
	g := &Graph{
		index:     make(map[*metadata.Method]int64),
		directed:  simple.NewDirectedGraph(),
		selfCalls: roaring.New(),
		roots:     roaring.New(),
	}
	for _, a := range assemblies {
		for m := range a.Methods() {
			id := int64(len(g.methods))
			g.methods = append(g.methods, m)
			g.index[m] = id
			g.directed.AddNode(simple.Node(id))
			if IsRoot(m) {
				g.roots.Add(uint32(id))
			}
		}
	}

	for from, m := range g.methods {
		if !m.HasBody() {
			continue
		}
		for _, ins := range m.Body.Instructions {
			if ins.OpCode == metadata.OpCalli || !ins.OpCode.TakesMethod() {
				continue
			}
			ref, ok := ins.Operand.(*metadata.MethodRef)
			if !ok {
				continue
			}
			target, ok := ref.Resolve().Get()
			if !ok {
				continue
			}
			to, ok := g.index[target]
			if !ok {
				continue
			}
			if to == int64(from) {
				g.selfCalls.Add(uint32(to))
				continue
			}
			g.directed.SetEdge(simple.Edge{F: simple.Node(int64(from)), T: simple.Node(to)})
		}
	}
	return g
}

// IsRoot reports whether m can be invoked from outside the analyzed code:
// entry points, visible methods, type initializers, finalizers and
// overridable methods.
func IsRoot(m *metadata.Method) bool {
	switch {
	case capability.IsEntryPoint(m), capability.IsMain(m):
		return true
	case capability.IsVisible(m):
		return true
	case m.IsStaticConstructor(), capability.IsFinalizer(m):
		return true
	case m.IsVirtual() && !m.IsFinal():
		return true
	case m.HasOverrides():
		return true
	}
	return false
}

// Len returns the number of methods.
func (g *Graph) Len() int {
	return len(g.methods)
}

// Edges returns the number of distinct caller/callee pairs, direct
// recursion included.
func (g *Graph) Edges() int {
	return g.directed.Edges().Len() + int(g.selfCalls.GetCardinality())
}

// Method returns the method with node ID id.
func (g *Graph) Method(id int64) *metadata.Method {
	if id < 0 || id >= int64(len(g.methods)) {
		return nil
	}
	return g.methods[id]
}

// ID returns m's node ID.
func (g *Graph) ID(m *metadata.Method) (int64, bool) {
	id, ok := g.index[m]
	return id, ok
}

// Callees returns the methods m calls, excluding m itself.
func (g *Graph) Callees(m *metadata.Method) []*metadata.Method {
	id, ok := g.index[m]
	if !ok {
		return nil
	}
	return g.collect(g.directed.From(id))
}

// Callers returns the methods that call m, excluding m itself.
func (g *Graph) Callers(m *metadata.Method) []*metadata.Method {
	id, ok := g.index[m]
	if !ok {
		return nil
	}
	return g.collect(g.directed.To(id))
}

func (g *Graph) collect(nodes graph.Nodes) []*metadata.Method {
	var out []*metadata.Method
	for nodes.Next() {
		out = append(out, g.methods[nodes.Node().ID()])
	}
	slices.SortFunc(out, func(a, b *metadata.Method) int {
		return cmp.Compare(g.index[a], g.index[b])
	})
	return out
}

// IsRecursive reports whether m calls itself directly.
func (g *Graph) IsRecursive(m *metadata.Method) bool {
	id, ok := g.index[m]
	return ok && g.selfCalls.Contains(uint32(id))
}

// Reachable returns the node IDs reachable from any root, roots included.
func (g *Graph) Reachable(ctx context.Context) (*roaring.Bitmap, error) {
	seen := roaring.New()
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { seen.Add(uint32(n.ID())) },
	}
	it := g.roots.Iterator()
	for it.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := int64(it.Next())
		if seen.Contains(uint32(id)) {
			continue
		}
		seen.Add(uint32(id))
		bf.Walk(g.directed, simple.Node(id), nil)
	}
	return seen, nil
}

// RecursionGroups returns the strongly connected components with more than
// one method, each sorted by node ID.
func (g *Graph) RecursionGroups() [][]*metadata.Method {
	var groups [][]*metadata.Method
	for _, scc := range topo.TarjanSCC(g.directed) {
		if len(scc) < 2 {
			continue
		}
		group := make([]*metadata.Method, 0, len(scc))
		for _, n := range scc {
			group = append(group, g.methods[n.ID()])
		}
		slices.SortFunc(group, func(a, b *metadata.Method) int {
			return cmp.Compare(g.index[a], g.index[b])
		})
		groups = append(groups, group)
	}
	slices.SortFunc(groups, func(a, b []*metadata.Method) int {
		return cmp.Compare(g.index[a[0]], g.index[b[0]])
	})
	return groups
}

// PageRank returns the PageRank of every method, keyed by node ID.
func (g *Graph) PageRank(damping, tolerance float64) map[int64]float64 {
	if len(g.methods) == 0 {
		return map[int64]float64{}
	}
	return network.PageRankSparse(g.directed, damping, tolerance)
}
