package snapshot

import (
	"slices"

	"github.com/panbanda/ilscan/pkg/analyzer/capability"
	"github.com/panbanda/ilscan/pkg/metadata"
)

// LinkStats summarizes how many references could be followed.
type LinkStats struct {
	TypeRefs             int      `json:"type_refs" toon:"type_refs"`
	UnresolvedTypeRefs   int      `json:"unresolved_type_refs" toon:"unresolved_type_refs"`
	MethodRefs           int      `json:"method_refs" toon:"method_refs"`
	UnresolvedMethodRefs int      `json:"unresolved_method_refs" toon:"unresolved_method_refs"`
	Unresolved           []string `json:"unresolved,omitempty" toon:"unresolved,omitempty"`
}

type typeIndex struct {
	byAssembly map[string]map[string]*metadata.Type
	byName     map[string][]*metadata.Type
}

func newTypeIndex(asms []*metadata.Assembly) *typeIndex {
	idx := &typeIndex{
		byAssembly: make(map[string]map[string]*metadata.Type, len(asms)),
		byName:     make(map[string][]*metadata.Type),
	}
	for _, a := range asms {
		names := make(map[string]*metadata.Type)
		for t := range a.Types() {
			full := t.FullName()
			names[full] = t
			idx.byName[full] = append(idx.byName[full], t)
		}
		idx.byAssembly[a.Name] = names
	}
	return idx
}

// lookup finds a named type. An explicit scope must name a loaded
// assembly. Without one the referencing assembly is searched first, then
// any loaded assembly that declares exactly one type of that name.
func (idx *typeIndex) lookup(scope string, from *metadata.Assembly, name string) (*metadata.Type, bool) {
	if scope != "" {
		t, ok := idx.byAssembly[scope][name]
		return t, ok
	}
	if t, ok := idx.byAssembly[from.Name][name]; ok {
		return t, true
	}
	if cands := idx.byName[name]; len(cands) == 1 {
		return cands[0], true
	}
	return nil, false
}

// link binds every tracked reference. Type references are bound first
// because method resolution starts from the declaring type.
func (b *builder) link(asms []*metadata.Assembly) LinkStats {
	idx := newTypeIndex(asms)
	var stats LinkStats
	unresolved := make(map[string]struct{})

	for _, tr := range b.types {
		stats.TypeRefs++
		if t, ok := idx.lookup(tr.ref.Scope, tr.asm, tr.ref.Name); ok {
			tr.ref.Bind(metadata.Resolved(t))
			continue
		}
		name := tr.ref.Element().FullName()
		tr.ref.Bind(metadata.Unresolved[*metadata.Type](name))
		stats.UnresolvedTypeRefs++
		unresolved[name] = struct{}{}
	}

	for _, mr := range b.methods {
		stats.MethodRefs++
		if m := resolveMethod(mr.ref); m != nil {
			mr.ref.Bind(metadata.Resolved(m))
			continue
		}
		name := mr.ref.FullName()
		mr.ref.Bind(metadata.Unresolved[*metadata.Method](name))
		stats.UnresolvedMethodRefs++
		unresolved[name] = struct{}{}
	}

	for n := range unresolved {
		stats.Unresolved = append(stats.Unresolved, n)
	}
	slices.Sort(stats.Unresolved)
	return stats
}

// resolveMethod picks the overload of the referenced type whose signature
// matches exactly, falling back to a match that ignores generic
// instantiation.
func resolveMethod(ref *metadata.MethodRef) *metadata.Method {
	t, ok := ref.DeclaringType.Resolve().Get()
	if !ok {
		return nil
	}
	var loose *metadata.Method
	for cand := range t.MethodsNamed(ref.Name) {
		if exactSignature(cand, ref) {
			return cand
		}
		if loose == nil && capability.CompareSignature(cand, ref) {
			loose = cand
		}
	}
	return loose
}

func exactSignature(m *metadata.Method, ref *metadata.MethodRef) bool {
	ms, rs := m.Signature(), ref.Signature()
	if ms.Conv != rs.Conv || len(ms.Params) != len(rs.Params) {
		return false
	}
	if sigName(ms.Return) != sigName(rs.Return) {
		return false
	}
	for i := range ms.Params {
		if sigName(ms.Params[i]) != sigName(rs.Params[i]) {
			return false
		}
	}
	return true
}

func sigName(r *metadata.TypeRef) string {
	if r == nil {
		return capability.SystemVoid
	}
	return r.SigName()
}
