package metadata

import (
	"strconv"
	"strings"
)

// TypeRefKind distinguishes the shapes a type reference can take.
type TypeRefKind uint8

const (
	RefNamed TypeRefKind = iota
	RefArray
	RefByRef
	RefPointer
	RefGenericParam
)

// TypeRef is a symbolic reference to a type. Named references may carry
// generic instantiation arguments; array, by-ref and pointer references wrap
// an element reference.
type TypeRef struct {
	Kind TypeRefKind
	// Scope is the declaring assembly of a named reference. Empty means the
	// assembly that contains the reference.
	Scope string
	// Name is the full name of a named reference ("Ns.Outer/Inner`1") or the
	// declared name of a generic parameter.
	Name string
	Args []*TypeRef
	Elem *TypeRef
	Rank int
	// Position and MethodOwned identify a generic parameter reference.
	Position    int
	MethodOwned bool
	// Param is the generic parameter definition a RefGenericParam refers to,
	// when the owner is known.
	Param *GenericParam

	target Resolution[*Type]
}

// NamedRef returns a reference to the type fullName declared in scope.
func NamedRef(scope, fullName string, args ...*TypeRef) *TypeRef {
	return &TypeRef{Kind: RefNamed, Scope: scope, Name: fullName, Args: args}
}

// ArrayOf returns a reference to an array of elem with the given rank.
func ArrayOf(elem *TypeRef, rank int) *TypeRef {
	if rank < 1 {
		rank = 1
	}
	return &TypeRef{Kind: RefArray, Elem: elem, Rank: rank}
}

// ByRefTo returns a managed reference to elem.
func ByRefTo(elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: RefByRef, Elem: elem}
}

// PointerTo returns an unmanaged pointer to elem.
func PointerTo(elem *TypeRef) *TypeRef {
	return &TypeRef{Kind: RefPointer, Elem: elem}
}

// GenericParamRef returns a reference to the generic parameter at position.
func GenericParamRef(p *GenericParam) *TypeRef {
	return &TypeRef{
		Kind:        RefGenericParam,
		Name:        p.Name,
		Position:    p.Position,
		MethodOwned: p.MethodOwned,
		Param:       p,
	}
}

// IsGenericParameter reports whether r refers to a generic parameter.
func (r *TypeRef) IsGenericParameter() bool {
	return r != nil && r.Kind == RefGenericParam
}

// IsGenericInstance reports whether r is a named reference with
// instantiation arguments.
func (r *TypeRef) IsGenericInstance() bool {
	return r != nil && r.Kind == RefNamed && len(r.Args) > 0
}

// IsArray reports whether r is an array reference.
func (r *TypeRef) IsArray() bool {
	return r != nil && r.Kind == RefArray
}

// FullName renders r in the canonical textual form, e.g.
// "System.Collections.Generic.List`1<System.String>[]". Generic parameters
// render by their declared name.
func (r *TypeRef) FullName() string {
	var b strings.Builder
	r.write(&b, false)
	return b.String()
}

// SigName renders r like FullName but writes generic parameters positionally
// ("!0" for type parameters, "!!0" for method parameters). Two signatures
// that differ only in the names of their generic parameters share a SigName.
func (r *TypeRef) SigName() string {
	var b strings.Builder
	r.write(&b, true)
	return b.String()
}

func (r *TypeRef) String() string {
	return r.FullName()
}

func (r *TypeRef) write(b *strings.Builder, positional bool) {
	if r == nil {
		b.WriteString("?")
		return
	}
	switch r.Kind {
	case RefNamed:
		b.WriteString(r.Name)
		if len(r.Args) > 0 {
			b.WriteByte('<')
			for i, a := range r.Args {
				if i > 0 {
					b.WriteByte(',')
				}
				a.write(b, positional)
			}
			b.WriteByte('>')
		}
	case RefArray:
		r.Elem.write(b, positional)
		b.WriteByte('[')
		b.WriteString(strings.Repeat(",", r.Rank-1))
		b.WriteByte(']')
	case RefByRef:
		r.Elem.write(b, positional)
		b.WriteByte('&')
	case RefPointer:
		r.Elem.write(b, positional)
		b.WriteByte('*')
	case RefGenericParam:
		if positional || r.Name == "" {
			b.WriteByte('!')
			if r.MethodOwned {
				b.WriteByte('!')
			}
			b.WriteString(strconv.Itoa(r.Position))
			return
		}
		b.WriteString(r.Name)
	}
}

// Element returns the open generic form of r: instantiation arguments are
// stripped while array, by-ref and pointer wrappers are kept. The result
// shares its resolution with r.
func (r *TypeRef) Element() *TypeRef {
	if r == nil {
		return nil
	}
	switch r.Kind {
	case RefNamed:
		if len(r.Args) == 0 {
			return r
		}
		return &TypeRef{Kind: RefNamed, Scope: r.Scope, Name: r.Name, target: r.target}
	case RefArray, RefByRef, RefPointer:
		elem := r.Elem.Element()
		if elem == r.Elem {
			return r
		}
		c := *r
		c.Elem = elem
		return &c
	}
	return r
}

// Innermost strips every array, by-ref and pointer wrapper from r.
func (r *TypeRef) Innermost() *TypeRef {
	for r != nil && (r.Kind == RefArray || r.Kind == RefByRef || r.Kind == RefPointer) {
		r = r.Elem
	}
	return r
}

// Resolve returns the type definition a named reference points at. For a
// generic instance this is the open definition. Array, by-ref, pointer and
// generic parameter references never resolve to a definition.
func (r *TypeRef) Resolve() Resolution[*Type] {
	if r == nil {
		return Unresolved[*Type]("")
	}
	if r.Kind != RefNamed {
		return Unresolved[*Type](r.FullName())
	}
	return r.target
}

// Bind records the result of linking r. It is called once while the graph
// is being loaded.
func (r *TypeRef) Bind(res Resolution[*Type]) {
	r.target = res
}

func (*TypeRef) isOperand() {}
