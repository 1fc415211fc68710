// Package usage maintains, per type, the set of methods referenced from the
// bodies of that type's methods.
//
// A type's set is built the first time it is queried and cached until
// Clear. Sets are keyed by the type's generic element identity so that all
// instantiations of a generic type share one entry. The index is safe for
// concurrent use; concurrent first queries for one type build its set once.
package usage

import (
	"sync"
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/ilscan/pkg/metadata"
)

const shardCount = 32

// Index is a lazily built, session-scoped cache of per-type usage sets.
type Index struct {
	tokens *Interner
	shards [shardCount]shard
	builds atomic.Int64
}

type shard struct {
	mu      sync.Mutex
	entries map[metadata.TypeID]*entry
}

// entry guards the build of one usage set. set is published only after a
// build completes, so a panicking build leaves the entry unbuilt.
type entry struct {
	mu  sync.Mutex
	set atomic.Pointer[roaring.Bitmap]
}

// New creates an empty index.
func New() *Index {
	ix := &Index{tokens: NewInterner()}
	for i := range ix.shards {
		ix.shards[i].entries = make(map[metadata.TypeID]*entry)
	}
	return ix
}

// Stats describes the current contents of an index.
type Stats struct {
	Types  int   `json:"types" toon:"types"`
	Tokens int   `json:"tokens" toon:"tokens"`
	Builds int64 `json:"builds" toon:"builds"`
}

// IsUsed reports whether m, or a method m explicitly overrides, is
// referenced from any method body of t.
func (ix *Index) IsUsed(t *metadata.Type, m *metadata.Method) bool {
	if t == nil || m == nil {
		return false
	}
	set := ix.usage(t)
	if set.IsEmpty() {
		return false
	}
	if ix.contains(set, m) {
		return true
	}
	for _, ov := range m.Overrides {
		target, ok := ov.Resolve().Get()
		if !ok {
			continue
		}
		if ix.contains(set, target) {
			return true
		}
	}
	return false
}

// Usage returns a copy of t's usage set.
func (ix *Index) Usage(t *metadata.Type) *roaring.Bitmap {
	return ix.usage(t).Clone()
}

// Members returns the keys of the methods in t's usage set, in token
// order.
func (ix *Index) Members(t *metadata.Type) []TokenKey {
	set := ix.usage(t)
	out := make([]TokenKey, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		if k, ok := ix.tokens.Key(it.Next()); ok {
			out = append(out, k)
		}
	}
	return out
}

// Clear drops every cached set and interned key.
func (ix *Index) Clear() {
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		s.entries = make(map[metadata.TypeID]*entry)
		s.mu.Unlock()
	}
	ix.tokens.Reset()
}

// Stats returns the number of cached types, interned tokens and builds.
func (ix *Index) Stats() Stats {
	st := Stats{Tokens: ix.tokens.Len(), Builds: ix.builds.Load()}
	for i := range ix.shards {
		s := &ix.shards[i]
		s.mu.Lock()
		for _, e := range s.entries {
			if e.set.Load() != nil {
				st.Types++
			}
		}
		s.mu.Unlock()
	}
	return st
}

func (ix *Index) contains(set *roaring.Bitmap, m *metadata.Method) bool {
	key, ok := KeyOf(m)
	if !ok {
		return false
	}
	id, ok := ix.tokens.Lookup(key)
	return ok && set.Contains(id)
}

func (ix *Index) usage(t *metadata.Type) *roaring.Bitmap {
	e := ix.entry(t.ID())
	if set := e.set.Load(); set != nil {
		return set
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if set := e.set.Load(); set != nil {
		return set
	}
	set := ix.build(t)
	e.set.Store(set)
	ix.builds.Add(1)
	return set
}

func (ix *Index) entry(id metadata.TypeID) *entry {
	s := &ix.shards[xxhash.Sum64String(string(id))%shardCount]
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		e = &entry{}
		s.entries[id] = e
	}
	return e
}

// build scans every method body of t. Indirect calls are skipped because
// their operand is a bare signature. Unresolved references contribute
// nothing. A reference through a generic declaring type also marks the
// first same-named method of that type, so uses of an instantiation count
// against the open definition.
func (ix *Index) build(t *metadata.Type) *roaring.Bitmap {
	set := roaring.New()
	for _, m := range t.Methods {
		if !m.HasBody() {
			continue
		}
		for _, ins := range m.Body.Instructions {
			if ins.OpCode == metadata.OpCalli {
				continue
			}
			ref, ok := ins.Operand.(*metadata.MethodRef)
			if !ok {
				continue
			}
			ix.mark(set, ref)
		}
	}
	set.RunOptimize()
	return set
}

func (ix *Index) mark(set *roaring.Bitmap, ref *metadata.MethodRef) {
	target, ok := ref.Resolve().Get()
	if !ok {
		return
	}
	if key, ok := KeyOf(target); ok {
		set.Add(ix.tokens.Intern(key))
	}

	declaring, ok := ref.DeclaringType.Resolve().Get()
	if !ok || !declaring.HasGenericParameters() {
		return
	}
	if first := declaring.MethodByName(ref.Name); first != nil && first != target {
		if key, ok := KeyOf(first); ok {
			set.Add(ix.tokens.Intern(key))
		}
	}
}
