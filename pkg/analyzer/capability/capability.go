// Package capability answers the structural questions analyzers ask about
// methods and types: is it an entry point, a finalizer, an override, visible
// outside its assembly, and so on.
//
// Every query is a pure function of the loaded graph. A query that needs to
// follow an unresolved reference answers false.
package capability

import (
	"slices"

	"github.com/panbanda/ilscan/pkg/metadata"
)

// Well-known type names.
const (
	SystemVoid      = "System.Void"
	SystemInt32     = "System.Int32"
	SystemString    = "System.String"
	SystemObject    = "System.Object"
	SystemEventArgs = "System.EventArgs"
)

// IsEntryPoint reports whether m is its assembly's designated entry point.
func IsEntryPoint(m *metadata.Method) bool {
	if m == nil {
		return false
	}
	asm := m.Assembly()
	return asm != nil && asm.EntryPoint == m
}

// IsFinalizer reports whether m is an instance method named Finalize with
// no parameters that returns void.
func IsFinalizer(m *metadata.Method) bool {
	if m == nil || m.IsStatic() || m.Name != "Finalize" || len(m.Parameters) != 0 {
		return false
	}
	return returns(m, SystemVoid)
}

// IsGeneratedCode reports whether m or its declaring type carries a
// generated-code or compiler-generated marker.
func IsGeneratedCode(m *metadata.Method) bool {
	if m == nil {
		return false
	}
	if metadata.HasMarker(m.CustomAttributes, metadata.MarkerGeneratedCode, metadata.MarkerCompilerGenerated) {
		return true
	}
	return IsGeneratedType(m.DeclaringType)
}

// IsGeneratedType reports whether t carries a generated-code or
// compiler-generated marker.
func IsGeneratedType(t *metadata.Type) bool {
	if t == nil {
		return false
	}
	return metadata.HasMarker(t.CustomAttributes, metadata.MarkerGeneratedCode, metadata.MarkerCompilerGenerated)
}

// IsMain reports whether m has the shape of a program entry point: static,
// named Main, returning void or int, taking nothing or a string array.
func IsMain(m *metadata.Method) bool {
	if m == nil || !m.IsStatic() || m.Name != "Main" {
		return false
	}
	if !returns(m, SystemVoid) && !returns(m, SystemInt32) {
		return false
	}
	switch len(m.Parameters) {
	case 0:
		return true
	case 1:
		return typeName(m.Parameters[0].Type) == SystemString+"[]"
	}
	return false
}

// IsProperty reports whether m is a property getter or setter.
func IsProperty(m *metadata.Method) bool {
	return m != nil && (m.IsGetter() || m.IsSetter())
}

// PropertyOf returns the property m is an accessor of. The property name is
// the method name without its four-character accessor prefix.
func PropertyOf(m *metadata.Method) (*metadata.Property, bool) {
	if !IsProperty(m) || m.DeclaringType == nil || len(m.Name) < 4 {
		return nil, false
	}
	p := m.DeclaringType.PropertyByName(m.Name[4:])
	return p, p != nil
}

// IsOverride reports whether the virtual method m overrides a method of one
// of its ancestors. The first ancestor method with the same name, return
// type and parameter types decides: it is an override iff that method is
// virtual.
func IsOverride(m *metadata.Method) bool {
	if m == nil || !m.IsVirtual() || m.DeclaringType == nil {
		return false
	}
	base := m.DeclaringType.BaseType
	for base != nil {
		bt, ok := base.Resolve().Get()
		if !ok {
			return false
		}
		for candidate := range bt.MethodsNamed(m.Name) {
			if !sameShape(candidate, m) {
				continue
			}
			return candidate.IsVirtual()
		}
		base = bt.BaseType
	}
	return false
}

// IsVisible reports whether m can be referenced from outside its assembly:
// it is neither private nor internal and its declaring type is visible.
func IsVisible(m *metadata.Method) bool {
	if m == nil {
		return false
	}
	if m.IsPrivate() || m.Access.IsInternal() {
		return false
	}
	return IsTypeVisible(m.DeclaringType)
}

// IsTypeVisible reports whether t can be referenced from outside its
// assembly. A nested type is visible when it is neither private nor
// internal and its declaring type is visible. A top-level type is visible
// when it is public.
func IsTypeVisible(t *metadata.Type) bool {
	for t != nil {
		if !t.IsNested() {
			return t.Access == metadata.AccessPublic
		}
		if t.Access == metadata.AccessPrivate || t.Access.IsInternal() {
			return false
		}
		t = t.DeclaringType
	}
	return false
}

// IsEventCallback reports whether m has the shape of an event handler: two
// parameters where the second derives from System.EventArgs, or is a
// generic parameter whose only constraint is System.EventArgs.
func IsEventCallback(m *metadata.Method) bool {
	if m == nil || len(m.Parameters) != 2 {
		return false
	}
	pt := m.Parameters[1].Type
	if pt == nil {
		return false
	}
	if pt.IsGenericParameter() {
		gp := pt.Param
		if gp == nil || len(gp.Constraints) != 1 {
			return false
		}
		return typeName(gp.Constraints[0]) == SystemEventArgs
	}
	return Inherits(pt, SystemEventArgs)
}

// Inherits reports whether ref is, or derives from, the type named
// fullName. Generic instantiation arguments are ignored. The walk stops at
// the first base type that cannot be resolved.
func Inherits(ref *metadata.TypeRef, fullName string) bool {
	for cur := ref; cur != nil; {
		if cur.Element().FullName() == fullName {
			return true
		}
		t, ok := cur.Resolve().Get()
		if !ok {
			return false
		}
		cur = t.BaseType
	}
	return false
}

// InterfaceDeclares reports whether one of the interfaces t implements,
// or an interface those extend, declares a method named name. Unresolved
// interfaces are skipped.
func InterfaceDeclares(t *metadata.Type, name string) bool {
	if t == nil {
		return false
	}
	seen := make(map[metadata.TypeID]bool)
	queue := slices.Clone(t.Interfaces)
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		it, ok := ref.Resolve().Get()
		if !ok || seen[it.ID()] {
			continue
		}
		seen[it.ID()] = true
		if it.MethodByName(name) != nil {
			return true
		}
		queue = append(queue, it.Interfaces...)
	}
	return false
}

// CompareSignature reports whether a and b have the same calling
// convention, the same return type and the same parameter types, comparing
// types by their open generic form.
func CompareSignature(a, b metadata.Signer) bool {
	if a == nil || b == nil {
		return false
	}
	sa, sb := a.Signature(), b.Signature()
	if sa.Conv != sb.Conv {
		return false
	}
	if !sameElement(sa.Return, sb.Return) {
		return false
	}
	if len(sa.Params) != len(sb.Params) {
		return false
	}
	for i := range sa.Params {
		if !sameElement(sa.Params[i], sb.Params[i]) {
			return false
		}
	}
	return true
}

func sameElement(a, b *metadata.TypeRef) bool {
	return elementSig(a) == elementSig(b)
}

func elementSig(r *metadata.TypeRef) string {
	if r == nil {
		return SystemVoid
	}
	return r.Element().SigName()
}

// sameShape compares return and parameter types by full name.
func sameShape(a, b *metadata.Method) bool {
	if typeName(a.ReturnType) != typeName(b.ReturnType) {
		return false
	}
	if len(a.Parameters) != len(b.Parameters) {
		return false
	}
	for i := range a.Parameters {
		if typeName(a.Parameters[i].Type) != typeName(b.Parameters[i].Type) {
			return false
		}
	}
	return true
}

func returns(m *metadata.Method, fullName string) bool {
	return typeName(m.ReturnType) == fullName
}

// typeName treats a missing type as void, the way a signature without a
// return type reads.
func typeName(r *metadata.TypeRef) string {
	if r == nil {
		return SystemVoid
	}
	return r.FullName()
}

