package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeRefNames(t *testing.T) {
	tp := &GenericParam{Name: "T", Position: 0}
	mp := &GenericParam{Name: "U", Position: 1, MethodOwned: true}

	tests := []struct {
		name     string
		ref      *TypeRef
		fullName string
		sigName  string
	}{
		{"named", NamedRef("", "System.String"), "System.String", "System.String"},
		{"array", ArrayOf(NamedRef("", "System.String"), 1), "System.String[]", "System.String[]"},
		{"matrix", ArrayOf(NamedRef("", "System.Int32"), 2), "System.Int32[,]", "System.Int32[,]"},
		{"byref", ByRefTo(NamedRef("", "System.Int32")), "System.Int32&", "System.Int32&"},
		{"pointer", PointerTo(NamedRef("", "System.Byte")), "System.Byte*", "System.Byte*"},
		{"type param", GenericParamRef(tp), "T", "!0"},
		{"method param", GenericParamRef(mp), "U", "!!1"},
		{
			"instance",
			NamedRef("", "System.Collections.Generic.Dictionary`2", NamedRef("", "System.String"), GenericParamRef(tp)),
			"System.Collections.Generic.Dictionary`2<System.String,T>",
			"System.Collections.Generic.Dictionary`2<System.String,!0>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.fullName, tt.ref.FullName())
			assert.Equal(t, tt.sigName, tt.ref.SigName())
		})
	}
}

func TestTypeRefElement(t *testing.T) {
	def := &Type{Namespace: "System.Collections.Generic", Name: "List`1"}
	inst := NamedRef("", "System.Collections.Generic.List`1", NamedRef("", "System.Int32"))
	inst.Bind(Resolved(def))

	open := inst.Element()
	assert.Equal(t, "System.Collections.Generic.List`1", open.FullName())
	got, ok := open.Resolve().Get()
	require.True(t, ok)
	assert.Same(t, def, got)

	arr := ArrayOf(inst, 1)
	assert.Equal(t, "System.Collections.Generic.List`1[]", arr.Element().FullName())
	assert.Same(t, inst, arr.Innermost())

	plain := NamedRef("", "System.Int32")
	assert.Same(t, plain, plain.Element())
}

func TestTypeRefResolveNonNamed(t *testing.T) {
	elem := NamedRef("", "System.Int32")
	elem.Bind(Resolved(&Type{Namespace: "System", Name: "Int32"}))

	assert.False(t, ArrayOf(elem, 1).Resolve().IsResolved())
	assert.False(t, GenericParamRef(&GenericParam{Name: "T"}).Resolve().IsResolved())
	assert.False(t, NamedRef("", "Missing").Resolve().IsResolved())
}

func TestResolution(t *testing.T) {
	r := Resolved(42)
	v, ok := r.Get()
	assert.True(t, ok)
	assert.Equal(t, 42, v)
	assert.NoError(t, r.Err())

	u := Unresolved[int]("Foo::Bar")
	assert.False(t, u.IsResolved())
	assert.True(t, errors.Is(u.Err(), ErrUnresolved))
	assert.Contains(t, u.Err().Error(), "Foo::Bar")

	var zero Resolution[*Type]
	assert.False(t, zero.IsResolved())
	assert.ErrorIs(t, zero.Err(), ErrUnresolved)
}

func newTestGraph() (*Assembly, *Type) {
	asm := &Assembly{Name: "App", Version: "1.0.0.0"}
	mod := &Module{Name: "App.dll", Assembly: asm}
	asm.Modules = []*Module{mod}

	outer := &Type{Namespace: "Acme", Name: "Outer`1", Module: mod}
	outer.GenericParams = []*GenericParam{{Name: "T", Position: 0}}
	inner := &Type{Name: "Inner", DeclaringType: outer, Access: AccessPrivate}
	deeper := &Type{Name: "Deeper", DeclaringType: inner}
	inner.NestedTypes = []*Type{deeper}
	outer.NestedTypes = []*Type{inner}
	mod.Types = []*Type{outer}
	return asm, outer
}

func TestTypeIdentity(t *testing.T) {
	asm, outer := newTestGraph()
	inner := outer.NestedTypes[0]
	deeper := inner.NestedTypes[0]

	assert.Equal(t, "Acme.Outer`1/Inner/Deeper", deeper.FullName())
	assert.Equal(t, TypeID("[App, Version=1.0.0.0]Acme.Outer`1/Inner"), inner.ID())
	assert.Same(t, asm, deeper.Assembly())
	assert.True(t, deeper.IsNested())
	assert.True(t, outer.HasGenericParameters())

	var names []string
	for ty := range asm.Types() {
		names = append(names, ty.Name)
	}
	assert.Equal(t, []string{"Outer`1", "Inner", "Deeper"}, names)
}

func TestMethodIdentity(t *testing.T) {
	_, outer := newTestGraph()
	void := NamedRef("", "System.Void")
	m1 := &Method{
		Name:          "Run",
		DeclaringType: outer,
		ReturnType:    void,
		Parameters:    []*Parameter{{Name: "value", Type: GenericParamRef(outer.GenericParams[0])}},
	}
	m2 := &Method{
		Name:          "Run",
		DeclaringType: outer,
		ReturnType:    void,
		Parameters:    []*Parameter{{Name: "value", Type: NamedRef("", "System.Int32")}},
	}
	outer.Methods = []*Method{m1, m2}

	assert.Equal(t, MethodID("[App, Version=1.0.0.0]Acme.Outer`1::Run(!0):System.Void"), m1.ID())
	assert.NotEqual(t, m1.ID(), m2.ID())
	assert.Equal(t, "System.Void Acme.Outer`1::Run(T)", m1.FullName())
	assert.Same(t, m1, outer.MethodByName("Run"))

	var overloads int
	for range outer.MethodsNamed("Run") {
		overloads++
	}
	assert.Equal(t, 2, overloads)
}

func TestMethodPredicates(t *testing.T) {
	cctor := &Method{Name: ".cctor", Flags: MethodStatic | MethodSpecialName | MethodRTSpecialName}
	assert.True(t, cctor.IsConstructor())
	assert.True(t, cctor.IsStaticConstructor())

	ctor := &Method{Name: ".ctor", Flags: MethodSpecialName | MethodRTSpecialName}
	assert.True(t, ctor.IsConstructor())
	assert.False(t, ctor.IsStaticConstructor())

	fake := &Method{Name: ".ctor"}
	assert.False(t, fake.IsConstructor())

	assert.Equal(t, "static virtual", (MethodStatic | MethodVirtual).String())
}

func TestParseAccess(t *testing.T) {
	tests := map[string]Access{
		"public":             AccessPublic,
		"internal":           AccessAssembly,
		"assembly":           AccessAssembly,
		"protected":          AccessFamily,
		"protected internal": AccessFamORAssem,
		"private protected":  AccessFamANDAssem,
		"":                   AccessPrivate,
	}
	for in, want := range tests {
		got, err := ParseAccess(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseAccess("friend")
	assert.Error(t, err)
	assert.True(t, AccessFamANDAssem.IsInternal())
	assert.False(t, AccessFamily.IsInternal())
}

func TestParseOpCode(t *testing.T) {
	assert.Equal(t, OpCall, ParseOpCode("call"))
	assert.Equal(t, OpCallvirt, ParseOpCode("CALLVIRT"))
	assert.Equal(t, OpLdcI4, ParseOpCode("ldc.i4.s"))
	assert.Equal(t, OpLdarg, ParseOpCode("ldarg.0"))
	assert.Equal(t, OpBr, ParseOpCode("br.s"))
	assert.Equal(t, OpOther, ParseOpCode("conv.u8"))
	assert.True(t, OpLdftn.TakesMethod())
	assert.False(t, OpLdstr.TakesMethod())
}

func TestMarkers(t *testing.T) {
	attr := NewCustomAttribute(NamedRef("mscorlib", "System.Diagnostics.ConditionalAttribute"))
	assert.Equal(t, MarkerConditional, attr.Marker)

	other := NewCustomAttribute(NamedRef("", "Acme.MyAttribute"))
	assert.Equal(t, MarkerNone, other.Marker)

	attrs := []*CustomAttribute{other, attr}
	assert.True(t, HasMarker(attrs, MarkerGeneratedCode, MarkerConditional))
	assert.False(t, HasMarker(attrs, MarkerGeneratedCode))
}
