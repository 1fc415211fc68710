package analysis

import (
	"slices"

	"github.com/panbanda/ilscan/pkg/analyzer/capability"
	"github.com/panbanda/ilscan/pkg/analyzer/deadcode"
	"github.com/panbanda/ilscan/pkg/analyzer/usage"
	"github.com/panbanda/ilscan/pkg/metadata/snapshot"
)

// MethodFacts lists the capability answers for one method.
type MethodFacts struct {
	Method        string           `json:"method" toon:"method"`
	Access        string           `json:"access" toon:"access"`
	Abstract      bool             `json:"abstract" toon:"abstract"`
	EntryPoint    bool             `json:"entry_point" toon:"entry_point"`
	Main          bool             `json:"main" toon:"main"`
	Finalizer     bool             `json:"finalizer" toon:"finalizer"`
	Generated     bool             `json:"generated" toon:"generated"`
	Override      bool             `json:"override" toon:"override"`
	Visible       bool             `json:"visible" toon:"visible"`
	EventCallback bool             `json:"event_callback" toon:"event_callback"`
	Property      string           `json:"property,omitempty" toon:"property,omitempty"`
	Verdict       deadcode.Verdict `json:"verdict" toon:"verdict"`
}

// TypeFacts groups the method facts of one type.
type TypeFacts struct {
	Type      string        `json:"type" toon:"type"`
	Assembly  string        `json:"assembly" toon:"assembly"`
	Visible   bool          `json:"visible" toon:"visible"`
	Generated bool          `json:"generated" toon:"generated"`
	Calls     []string      `json:"calls,omitempty" toon:"calls,omitempty"`
	Methods   []MethodFacts `json:"methods" toon:"methods"`
}

// InspectResult is the capability view of a set of snapshots.
type InspectResult struct {
	Types []TypeFacts          `json:"types" toon:"types"`
	Links []snapshot.LinkStats `json:"links" toon:"links"`
}

// Inspect answers every capability query for the methods of snaps and
// lists the methods each type's bodies reference directly. When typeName is
// set only the type with that full name is listed.
func (s *Service) Inspect(snaps []*snapshot.Snapshot, typeName string) *InspectResult {
	ix := usage.New()
	defer ix.Clear()

	res := &InspectResult{}
	for _, snap := range snaps {
		res.Links = append(res.Links, snap.Stats)
		for _, asm := range snap.Assemblies {
			for t := range asm.Types() {
				if typeName != "" && t.FullName() != typeName {
					continue
				}
				tf := TypeFacts{
					Type:      t.FullName(),
					Assembly:  string(asm.ID()),
					Visible:   capability.IsTypeVisible(t),
					Generated: capability.IsGeneratedType(t),
				}
				for _, k := range ix.Members(t) {
					tf.Calls = append(tf.Calls, string(k.Method))
				}
				slices.Sort(tf.Calls)
				for _, m := range t.Methods {
					mf := MethodFacts{
						Method:        m.FullName(),
						Access:        m.Access.String(),
						Abstract:      m.IsAbstract(),
						EntryPoint:    capability.IsEntryPoint(m),
						Main:          capability.IsMain(m),
						Finalizer:     capability.IsFinalizer(m),
						Generated:     capability.IsGeneratedCode(m),
						Override:      capability.IsOverride(m),
						Visible:       capability.IsVisible(m),
						EventCallback: capability.IsEventCallback(m),
						Verdict:       deadcode.Classify(ix, m),
					}
					if p, ok := capability.PropertyOf(m); ok {
						mf.Property = p.Name
					}
					tf.Methods = append(tf.Methods, mf)
				}
				res.Types = append(res.Types, tf)
			}
		}
	}
	return res
}
