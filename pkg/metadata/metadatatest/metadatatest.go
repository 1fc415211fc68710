// Package metadatatest loads inline snapshot documents for tests and looks
// up definitions in the resulting graph.
package metadatatest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panbanda/ilscan/pkg/metadata"
	"github.com/panbanda/ilscan/pkg/metadata/snapshot"
)

// Graph is a loaded test snapshot.
type Graph struct {
	t        testing.TB
	Snapshot *snapshot.Snapshot
}

// LoadYAML decodes an inline YAML snapshot, failing the test on error.
func LoadYAML(t testing.TB, doc string) *Graph {
	t.Helper()
	s, err := snapshot.Decode([]byte(doc), snapshot.FormatYAML, t.Name()+".yaml")
	require.NoError(t, err)
	return &Graph{t: t, Snapshot: s}
}

// Assemblies returns the loaded assemblies.
func (g *Graph) Assemblies() []*metadata.Assembly {
	return g.Snapshot.Assemblies
}

// Assembly returns the assembly named name.
func (g *Graph) Assembly(name string) *metadata.Assembly {
	g.t.Helper()
	for _, a := range g.Snapshot.Assemblies {
		if a.Name == name {
			return a
		}
	}
	require.FailNow(g.t, "assembly not found", name)
	return nil
}

// Type returns the type with the given full name from any assembly.
func (g *Graph) Type(fullName string) *metadata.Type {
	g.t.Helper()
	for _, a := range g.Snapshot.Assemblies {
		for ty := range a.Types() {
			if ty.FullName() == fullName {
				return ty
			}
		}
	}
	require.FailNow(g.t, "type not found", fullName)
	return nil
}

// Method returns the method addressed as "Ns.Type::Name". When the type
// declares overloads, "Ns.Type::Name#n" selects the n-th one (0-based).
func (g *Graph) Method(path string) *metadata.Method {
	g.t.Helper()
	i := strings.LastIndex(path, "::")
	require.True(g.t, i > 0, "method path %q must be Type::Name", path)
	typeName, name := path[:i], path[i+2:]
	nth := 0
	if j := strings.IndexByte(name, '#'); j >= 0 {
		for _, c := range name[j+1:] {
			nth = nth*10 + int(c-'0')
		}
		name = name[:j]
	}

	ty := g.Type(typeName)
	seen := 0
	for m := range ty.MethodsNamed(name) {
		if seen == nth {
			return m
		}
		seen++
	}
	require.FailNow(g.t, "method not found", path)
	return nil
}

