package metadata

import (
	"strconv"
	"strings"
)

// MethodID is the identity of a method definition within its assembly:
// "[Lib, Version=1.0.0.0]Ns.Type::Name``1(!0,System.Int32):System.Void".
type MethodID string

// MethodFlags holds the attribute bits of a method definition.
type MethodFlags uint16

const (
	MethodStatic MethodFlags = 1 << iota
	MethodVirtual
	MethodFinal
	MethodAbstract
	MethodNewSlot
	MethodSpecialName
	MethodRTSpecialName
	MethodSynchronized
)

var methodFlagNames = []struct {
	flag MethodFlags
	name string
}{
	{MethodStatic, "static"},
	{MethodVirtual, "virtual"},
	{MethodFinal, "final"},
	{MethodAbstract, "abstract"},
	{MethodNewSlot, "newslot"},
	{MethodSpecialName, "specialname"},
	{MethodRTSpecialName, "rtspecialname"},
	{MethodSynchronized, "synchronized"},
}

// Has reports whether every bit of f2 is set in f.
func (f MethodFlags) Has(f2 MethodFlags) bool {
	return f&f2 == f2
}

func (f MethodFlags) String() string {
	var parts []string
	for _, n := range methodFlagNames {
		if f.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, " ")
}

// ParseMethodFlag returns the flag for a single flag name.
func ParseMethodFlag(s string) (MethodFlags, bool) {
	for _, n := range methodFlagNames {
		if strings.EqualFold(n.name, s) {
			return n.flag, true
		}
	}
	return 0, false
}

// Semantics is the role a method plays for a property or event.
type Semantics uint8

const (
	SemanticsNone Semantics = iota
	SemanticsGetter
	SemanticsSetter
	SemanticsAddOn
	SemanticsRemoveOn
	SemanticsFire
	SemanticsOther
)

var semanticsNames = [...]string{
	SemanticsNone:     "",
	SemanticsGetter:   "getter",
	SemanticsSetter:   "setter",
	SemanticsAddOn:    "addon",
	SemanticsRemoveOn: "removeon",
	SemanticsFire:     "fire",
	SemanticsOther:    "other",
}

func (s Semantics) String() string {
	if int(s) < len(semanticsNames) {
		return semanticsNames[s]
	}
	return "semantics(" + strconv.Itoa(int(s)) + ")"
}

// ParseSemantics parses a semantics name. The empty string is SemanticsNone.
func ParseSemantics(s string) (Semantics, bool) {
	for i, n := range semanticsNames {
		if strings.EqualFold(n, s) {
			return Semantics(i), true
		}
	}
	return SemanticsNone, false
}

// CallConv holds calling-convention bits of a signature.
type CallConv uint8

const (
	CallHasThis CallConv = 1 << iota
	CallExplicitThis
	CallGeneric
	CallVarArg
)

// Sig is the comparable part of a method signature.
type Sig struct {
	Conv   CallConv
	Return *TypeRef
	Params []*TypeRef
}

// Signer is implemented by method definitions and method references.
type Signer interface {
	Signature() Sig
}

// Method is a method definition.
type Method struct {
	Name             string
	DeclaringType    *Type
	Access           Access
	Flags            MethodFlags
	Semantics        Semantics
	CallConv         CallConv
	GenericParams    []*GenericParam
	Parameters       []*Parameter
	ReturnType       *TypeRef
	Body             *Body
	Overrides        []*MethodRef
	CustomAttributes []*CustomAttribute
}

// Parameter is a formal parameter of a method.
type Parameter struct {
	Name  string
	Index int
	Type  *TypeRef
}

func (m *Method) IsStatic() bool        { return m.Flags.Has(MethodStatic) }
func (m *Method) IsVirtual() bool       { return m.Flags.Has(MethodVirtual) }
func (m *Method) IsFinal() bool         { return m.Flags.Has(MethodFinal) }
func (m *Method) IsAbstract() bool      { return m.Flags.Has(MethodAbstract) }
func (m *Method) IsSpecialName() bool   { return m.Flags.Has(MethodSpecialName) }
func (m *Method) IsRTSpecialName() bool { return m.Flags.Has(MethodRTSpecialName) }
func (m *Method) IsSynchronized() bool  { return m.Flags.Has(MethodSynchronized) }

func (m *Method) IsPrivate() bool { return m.Access == AccessPrivate }
func (m *Method) IsPublic() bool  { return m.Access == AccessPublic }

func (m *Method) IsGetter() bool   { return m.Semantics == SemanticsGetter }
func (m *Method) IsSetter() bool   { return m.Semantics == SemanticsSetter }
func (m *Method) IsAddOn() bool    { return m.Semantics == SemanticsAddOn }
func (m *Method) IsRemoveOn() bool { return m.Semantics == SemanticsRemoveOn }

// IsConstructor reports whether m is an instance or static constructor.
func (m *Method) IsConstructor() bool {
	return m.IsRTSpecialName() && m.IsSpecialName() && (m.Name == ".ctor" || m.Name == ".cctor")
}

// IsStaticConstructor reports whether m is a type initializer.
func (m *Method) IsStaticConstructor() bool {
	return m.IsConstructor() && m.IsStatic() && m.Name == ".cctor"
}

// HasBody reports whether m carries an instruction stream.
func (m *Method) HasBody() bool {
	return m.Body != nil
}

// HasOverrides reports whether m explicitly implements other methods.
func (m *Method) HasOverrides() bool {
	return len(m.Overrides) > 0
}

// Assembly returns the assembly that declares m.
func (m *Method) Assembly() *Assembly {
	if m.DeclaringType == nil {
		return nil
	}
	return m.DeclaringType.Assembly()
}

// Signature implements Signer.
func (m *Method) Signature() Sig {
	params := make([]*TypeRef, len(m.Parameters))
	for i, p := range m.Parameters {
		params[i] = p.Type
	}
	return Sig{Conv: m.CallConv, Return: m.ReturnType, Params: params}
}

// FullName renders "ReturnType DeclaringType::Name(ParamTypes)".
func (m *Method) FullName() string {
	declaring := ""
	if m.DeclaringType != nil {
		declaring = m.DeclaringType.FullName()
	}
	return formatMethodName(m.ReturnType, declaring, m.Name, len(m.GenericParams), m.Signature().Params, false)
}

// EntityKind implements Entity.
func (m *Method) EntityKind() EntityKind {
	return EntityMethod
}

// ID returns the identity of m. Overloads get distinct identities and
// instantiations of a generic method share their definition's identity.
func (m *Method) ID() MethodID {
	declaring := "[]"
	if m.DeclaringType != nil {
		declaring = string(m.DeclaringType.ID())
	}
	return MethodID(formatMethodName(m.ReturnType, declaring, m.Name, len(m.GenericParams), m.Signature().Params, true))
}

func (m *Method) String() string {
	return m.FullName()
}

func formatMethodName(ret *TypeRef, declaring, name string, arity int, params []*TypeRef, positional bool) string {
	var b strings.Builder
	if !positional {
		b.WriteString(refName(ret, false))
		b.WriteByte(' ')
	}
	b.WriteString(declaring)
	b.WriteString("::")
	b.WriteString(name)
	if arity > 0 {
		b.WriteString("``")
		b.WriteString(strconv.Itoa(arity))
	}
	b.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(refName(p, positional))
	}
	b.WriteByte(')')
	if positional {
		b.WriteByte(':')
		b.WriteString(refName(ret, true))
	}
	return b.String()
}

func refName(r *TypeRef, positional bool) string {
	if r == nil {
		return "System.Void"
	}
	if positional {
		return r.SigName()
	}
	return r.FullName()
}

// MethodRef is a symbolic reference to a method, as found in instruction
// operands and explicit override lists.
type MethodRef struct {
	DeclaringType *TypeRef
	Name          string
	CallConv      CallConv
	Parameters    []*TypeRef
	ReturnType    *TypeRef
	GenericArgs   []*TypeRef

	target Resolution[*Method]
}

// Signature implements Signer.
func (r *MethodRef) Signature() Sig {
	return Sig{Conv: r.CallConv, Return: r.ReturnType, Params: r.Parameters}
}

// FullName renders the reference like Method.FullName.
func (r *MethodRef) FullName() string {
	declaring := ""
	if r.DeclaringType != nil {
		declaring = r.DeclaringType.FullName()
	}
	return formatMethodName(r.ReturnType, declaring, r.Name, 0, r.Parameters, false)
}

func (r *MethodRef) String() string {
	return r.FullName()
}

// Resolve returns the method definition r points at.
func (r *MethodRef) Resolve() Resolution[*Method] {
	if r == nil {
		return Unresolved[*Method]("")
	}
	return r.target
}

// Bind records the result of linking r.
func (r *MethodRef) Bind(res Resolution[*Method]) {
	r.target = res
}

func (*MethodRef) isOperand() {}
