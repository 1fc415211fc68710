package metadata

import "iter"

// TypeID is the generic element identity of a type definition, scoped by
// the assembly ID: "[Lib, Version=1.0.0.0]Ns.Outer/Inner`1". Instantiations of the same generic
// definition share one TypeID.
type TypeID string

// Type is a type definition.
type Type struct {
	Namespace string
	// Name is the simple name including the generic arity suffix ("List`1").
	Name             string
	Kind             TypeKind
	Access           Access
	Module           *Module
	DeclaringType    *Type
	BaseType         *TypeRef
	Interfaces       []*TypeRef
	GenericParams    []*GenericParam
	Methods          []*Method
	Fields           []*Field
	Properties       []*Property
	NestedTypes      []*Type
	CustomAttributes []*CustomAttribute
}

// FullName returns the namespace-qualified name, using "/" between a nested
// type and its declaring type.
func (t *Type) FullName() string {
	if t.DeclaringType != nil {
		return t.DeclaringType.FullName() + "/" + t.Name
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// EntityKind implements Entity.
func (t *Type) EntityKind() EntityKind {
	return EntityType
}

// Assembly returns the assembly that declares t, or nil for a detached type.
func (t *Type) Assembly() *Assembly {
	for t.DeclaringType != nil {
		t = t.DeclaringType
	}
	if t.Module == nil {
		return nil
	}
	return t.Module.Assembly
}

// ID returns the element identity of t.
func (t *Type) ID() TypeID {
	scope := ""
	if a := t.Assembly(); a != nil {
		scope = string(a.ID())
	}
	return TypeID("[" + scope + "]" + t.FullName())
}

// IsNested reports whether t is declared inside another type.
func (t *Type) IsNested() bool {
	return t.DeclaringType != nil
}

// IsInterface reports whether t is an interface.
func (t *Type) IsInterface() bool {
	return t.Kind == KindInterface
}

// HasGenericParameters reports whether t declares generic parameters.
func (t *Type) HasGenericParameters() bool {
	return len(t.GenericParams) > 0
}

// MethodByName returns the first method named name in declaration order.
func (t *Type) MethodByName(name string) *Method {
	for _, m := range t.Methods {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// MethodsNamed yields the methods called name in declaration order.
func (t *Type) MethodsNamed(name string) iter.Seq[*Method] {
	return func(yield func(*Method) bool) {
		for _, m := range t.Methods {
			if m.Name == name && !yield(m) {
				return
			}
		}
	}
}

// PropertyByName returns the property named name, or nil.
func (t *Type) PropertyByName(name string) *Property {
	for _, p := range t.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// NestedByName returns the directly nested type named name, or nil.
func (t *Type) NestedByName(name string) *Type {
	for _, n := range t.NestedTypes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// AllNested yields every type nested in t at any depth, depth first.
func (t *Type) AllNested() iter.Seq[*Type] {
	return func(yield func(*Type) bool) {
		t.walkNested(yield)
	}
}

func (t *Type) walkNested(yield func(*Type) bool) bool {
	for _, n := range t.NestedTypes {
		if !yield(n) || !n.walkNested(yield) {
			return false
		}
	}
	return true
}

// GenericParam is a generic parameter declared by a type or a method.
type GenericParam struct {
	Name        string
	Position    int
	MethodOwned bool
	Constraints []*TypeRef
}
