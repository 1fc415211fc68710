package metadata

import "iter"

// AssemblyID identifies an assembly across a session.
type AssemblyID string

// Assembly is the unit of distribution. It owns one or more modules and
// optionally designates an entry point.
type Assembly struct {
	Name       string
	Version    string
	Modules    []*Module
	EntryPoint *Method
}

// ID returns the assembly identity used for cache keys.
func (a *Assembly) ID() AssemblyID {
	if a.Version == "" {
		return AssemblyID(a.Name)
	}
	return AssemblyID(a.Name + ", Version=" + a.Version)
}

// FullName implements Entity.
func (a *Assembly) FullName() string {
	return string(a.ID())
}

// EntityKind implements Entity.
func (a *Assembly) EntityKind() EntityKind {
	return EntityAssembly
}

// Types yields every type of every module, nested types included, in
// declaration order.
func (a *Assembly) Types() iter.Seq[*Type] {
	return func(yield func(*Type) bool) {
		for _, m := range a.Modules {
			for t := range m.AllTypes() {
				if !yield(t) {
					return
				}
			}
		}
	}
}

// Methods yields every method of every type in the assembly.
func (a *Assembly) Methods() iter.Seq[*Method] {
	return func(yield func(*Method) bool) {
		for t := range a.Types() {
			for _, m := range t.Methods {
				if !yield(m) {
					return
				}
			}
		}
	}
}

// Module is a physical container of types within an assembly.
type Module struct {
	Name     string
	Assembly *Assembly
	Types    []*Type
}

// AllTypes yields the module's top-level types and, depth first, their
// nested types.
func (m *Module) AllTypes() iter.Seq[*Type] {
	return func(yield func(*Type) bool) {
		for _, t := range m.Types {
			if !yield(t) {
				return
			}
			for n := range t.AllNested() {
				if !yield(n) {
					return
				}
			}
		}
	}
}
