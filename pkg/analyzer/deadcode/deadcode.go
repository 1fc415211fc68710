// Package deadcode decides whether non-public methods can ever be called.
//
// Evidence of use is limited to call-family instructions found by the
// usage index. Private methods are searched for in their declaring type and
// its nested types; internal methods, and accessible methods of
// non-visible types, are searched for across their whole assembly. Calls
// through reflection or from other assemblies are not tracked, so a method
// used only that way is reported as unreachable.
package deadcode

import (
	"cmp"
	"context"
	"slices"

	"github.com/panbanda/ilscan/pkg/analyzer/capability"
	"github.com/panbanda/ilscan/pkg/analyzer/usage"
	"github.com/panbanda/ilscan/pkg/metadata"
)

// Classify decides whether m is reachable, consulting ix for call evidence.
// The first matching check wins.
func Classify(ix *usage.Index, m *metadata.Method) Verdict {
	if reason, skip := excluded(m); skip {
		return Verdict{Status: StatusNotApplicable, Reason: reason}
	}

	switch {
	case m.IsVirtual() && !m.IsFinal():
		// An unseen override may be dispatched to.
		return reachable(ReasonVirtual)
	case capability.IsVisible(m):
		return reachable(ReasonVisible)
	case m.IsPrivate():
		return classifyPrivate(ix, m)
	}

	if m.IsPublic() {
		switch {
		case m.IsSpecialName() && !capability.IsProperty(m):
			return reachable(ReasonSpecialName)
		case isEqualityOverload(m):
			return reachable(ReasonEqualityOverload)
		case capability.InterfaceDeclares(m.DeclaringType, m.Name):
			return reachable(ReasonInterfaceContract)
		}
	}

	if m.Access.IsInternal() || !capability.IsTypeVisible(m.DeclaringType) {
		if capability.SerializationConstructor.Matches(m) {
			return reachable(ReasonSerializationConstructor)
		}
		if usedInAssembly(ix, m) {
			return reachable(ReasonUsedInAssembly)
		}
		return Verdict{Status: StatusUnreachable, Reason: ReasonUnusedInternal}
	}
	return reachable(ReasonDefault)
}

func reachable(r Reason) Verdict {
	return Verdict{Status: StatusReachable, Reason: r}
}

// excluded reports whether m is outside the analysis and why.
func excluded(m *metadata.Method) (Reason, bool) {
	switch {
	case m.IsStaticConstructor():
		return ReasonStaticConstructor, true
	case (m.IsAddOn() || m.IsRemoveOn()) && m.IsSynchronized():
		return ReasonEventAccessor, true
	case capability.IsEntryPoint(m) || capability.IsMain(m):
		return ReasonEntryPoint, true
	case capability.IsGeneratedCode(m):
		return ReasonGeneratedCode, true
	case metadata.HasMarker(m.CustomAttributes,
		metadata.MarkerConditional,
		metadata.MarkerComRegisterFunction,
		metadata.MarkerComUnregisterFunction):
		return ReasonMarker, true
	}
	return 0, false
}

func classifyPrivate(ix *usage.Index, m *metadata.Method) Verdict {
	switch {
	case m.IsConstructor():
		return reachable(ReasonConstructor)
	case m.HasOverrides():
		return reachable(ReasonExplicitOverride)
	case usedInTypeTree(ix, m):
		return reachable(ReasonUsedInType)
	}
	return Verdict{Status: StatusUnreachable, Reason: ReasonUnusedPrivate}
}

// usedInTypeTree searches m's declaring type and every type nested in it.
func usedInTypeTree(ix *usage.Index, m *metadata.Method) bool {
	decl := m.DeclaringType
	if decl == nil {
		return false
	}
	if ix.IsUsed(decl, m) {
		return true
	}
	for nested := range decl.AllNested() {
		if ix.IsUsed(nested, m) {
			return true
		}
	}
	return false
}

func usedInAssembly(ix *usage.Index, m *metadata.Method) bool {
	asm := m.Assembly()
	if asm == nil {
		return usedInTypeTree(ix, m)
	}
	for t := range asm.Types() {
		if ix.IsUsed(t, m) {
			return true
		}
	}
	return false
}

// isEqualityOverload matches the non-virtual Equals(T) that accompanies
// an Equals(object) override.
func isEqualityOverload(m *metadata.Method) bool {
	if m.Name != "Equals" || m.IsVirtual() || len(m.Parameters) != 1 || m.DeclaringType == nil {
		return false
	}
	pt := m.Parameters[0].Type
	if pt == nil {
		return false
	}
	t, ok := pt.Resolve().Get()
	return ok && t == m.DeclaringType
}

// Analyze classifies every method of assemblies with a private usage index
// that is discarded before returning.
func Analyze(ctx context.Context, assemblies ...*metadata.Assembly) (*Analysis, error) {
	ix := usage.New()
	defer ix.Clear()

	a := &Analysis{
		Summary: Summary{
			TotalAssemblies: len(assemblies),
			ByReason:        make(map[string]int),
		},
	}
	for _, asm := range assemblies {
		for t := range asm.Types() {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tm := TypeMetrics{Type: t.FullName(), Assembly: string(asm.ID()), Methods: len(t.Methods)}
			for _, m := range t.Methods {
				v := Classify(ix, m)
				a.Summary.ByReason[v.Reason.String()]++
				if v.Status == StatusNotApplicable {
					continue
				}
				tm.Candidates++
				if v.Status == StatusUnreachable {
					tm.Unreachable++
					tm.Items = append(tm.Items, Item{
						Method:  m.FullName(),
						Access:  m.Access.String(),
						Reason:  v.Reason,
						Message: v.Message(),
					})
				}
			}
			tm.UpdatePercentage()

			a.Summary.TotalTypes++
			a.Summary.TotalMethods += tm.Methods
			a.Summary.CandidateMethods += tm.Candidates
			a.Summary.UnreachableMethods += tm.Unreachable
			if tm.Unreachable > 0 {
				a.Summary.TypesWithDeadCode++
				a.Types = append(a.Types, tm)
			}
		}
	}
	if a.Summary.CandidateMethods > 0 {
		a.Summary.DeadPercentage = float32(a.Summary.UnreachableMethods) / float32(a.Summary.CandidateMethods) * 100.0
	}

	slices.SortStableFunc(a.Types, func(x, y TypeMetrics) int {
		return cmp.Or(
			cmp.Compare(y.Unreachable, x.Unreachable),
			cmp.Compare(x.Assembly, y.Assembly),
			cmp.Compare(x.Type, y.Type),
		)
	})
	return a, nil
}
