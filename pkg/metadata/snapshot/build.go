package snapshot

import (
	"fmt"
	"strings"

	"github.com/panbanda/ilscan/pkg/metadata"
)

type trackedType struct {
	ref *metadata.TypeRef
	asm *metadata.Assembly
}

type trackedMethod struct {
	ref *metadata.MethodRef
	asm *metadata.Assembly
}

// builder turns a decoded document into a metadata graph. It remembers every
// reference it creates so link can bind them once all definitions exist.
type builder struct {
	types   []trackedType
	methods []trackedMethod
}

func newBuilder() *builder {
	return &builder{}
}

type pendingType struct {
	t   *metadata.Type
	doc *typeDoc
}

func (b *builder) build(doc *document) ([]*metadata.Assembly, error) {
	seen := make(map[string]bool, len(doc.Assemblies))
	asms := make([]*metadata.Assembly, 0, len(doc.Assemblies))
	for i := range doc.Assemblies {
		ad := &doc.Assemblies[i]
		if seen[ad.Name] {
			return nil, fmt.Errorf("duplicate assembly %q", ad.Name)
		}
		seen[ad.Name] = true

		asm, err := b.buildAssembly(ad)
		if err != nil {
			return nil, fmt.Errorf("assembly %s: %w", ad.Name, err)
		}
		asms = append(asms, asm)
	}
	return asms, nil
}

func (b *builder) buildAssembly(ad *assemblyDoc) (*metadata.Assembly, error) {
	asm := &metadata.Assembly{Name: ad.Name, Version: ad.Version}
	names := make(map[string]*metadata.Type)
	var pending []pendingType

	for i := range ad.Modules {
		md := &ad.Modules[i]
		mod := &metadata.Module{Name: md.Name, Assembly: asm}
		asm.Modules = append(asm.Modules, mod)
		for j := range md.Types {
			t, err := b.declareType(&md.Types[j], mod, nil, names, &pending)
			if err != nil {
				return nil, err
			}
			mod.Types = append(mod.Types, t)
		}
	}

	for _, p := range pending {
		if err := b.defineType(asm, p.t, p.doc); err != nil {
			return nil, fmt.Errorf("type %s: %w", p.t.FullName(), err)
		}
	}

	if ad.EntryPoint != "" {
		ep, err := findEntryPoint(names, ad.EntryPoint)
		if err != nil {
			return nil, err
		}
		asm.EntryPoint = ep
	}
	return asm, nil
}

// declareType creates t and its nested types with their generic parameters
// so that references between types can be bound in any order.
func (b *builder) declareType(td *typeDoc, mod *metadata.Module, outer *metadata.Type, names map[string]*metadata.Type, pending *[]pendingType) (*metadata.Type, error) {
	kind, err := metadata.ParseTypeKind(td.Kind)
	if err != nil {
		return nil, err
	}
	access, err := metadata.ParseAccess(td.Access)
	if err != nil {
		return nil, err
	}
	t := &metadata.Type{
		Namespace:     td.Namespace,
		Name:          td.Name,
		Kind:          kind,
		Access:        access,
		DeclaringType: outer,
	}
	if outer == nil {
		t.Module = mod
		if td.Access == "" {
			t.Access = metadata.AccessAssembly
		}
	} else {
		t.Namespace = ""
	}
	for i, gp := range td.GenericParams {
		t.GenericParams = append(t.GenericParams, &metadata.GenericParam{Name: gp.Name, Position: i})
	}

	full := t.FullName()
	if _, dup := names[full]; dup {
		return nil, fmt.Errorf("duplicate type %q", full)
	}
	names[full] = t
	*pending = append(*pending, pendingType{t: t, doc: td})

	for i := range td.Nested {
		n, err := b.declareType(&td.Nested[i], mod, t, names, pending)
		if err != nil {
			return nil, err
		}
		t.NestedTypes = append(t.NestedTypes, n)
	}
	return t, nil
}

func (b *builder) defineType(asm *metadata.Assembly, t *metadata.Type, td *typeDoc) error {
	var err error
	if td.Base != "" {
		if t.BaseType, err = b.typeRef(asm, td.Base, t, nil); err != nil {
			return err
		}
	}
	if t.Interfaces, err = b.typeRefs(asm, td.Interfaces, t, nil); err != nil {
		return err
	}
	for i, gp := range td.GenericParams {
		if t.GenericParams[i].Constraints, err = b.typeRefs(asm, gp.Constraints, t, nil); err != nil {
			return err
		}
	}
	if t.CustomAttributes, err = b.attributes(asm, td.Attributes, t, nil); err != nil {
		return err
	}

	for _, fd := range td.Fields {
		f, err := b.field(asm, t, fd)
		if err != nil {
			return fmt.Errorf("field %s: %w", fd.Name, err)
		}
		t.Fields = append(t.Fields, f)
	}

	for i := range td.Methods {
		m, err := b.method(asm, t, &td.Methods[i])
		if err != nil {
			return fmt.Errorf("method %s: %w", td.Methods[i].Name, err)
		}
		t.Methods = append(t.Methods, m)
	}

	for _, pd := range td.Properties {
		p, err := b.property(asm, t, pd)
		if err != nil {
			return fmt.Errorf("property %s: %w", pd.Name, err)
		}
		t.Properties = append(t.Properties, p)
	}
	return nil
}

func (b *builder) field(asm *metadata.Assembly, t *metadata.Type, fd fieldDoc) (*metadata.Field, error) {
	access, err := metadata.ParseAccess(fd.Access)
	if err != nil {
		return nil, err
	}
	f := &metadata.Field{Name: fd.Name, DeclaringType: t, Access: access, Static: fd.Static}
	if f.Type, err = b.typeRef(asm, fd.Type, t, nil); err != nil {
		return nil, err
	}
	if f.CustomAttributes, err = b.attributes(asm, fd.Attributes, t, nil); err != nil {
		return nil, err
	}
	return f, nil
}

func (b *builder) property(asm *metadata.Assembly, t *metadata.Type, pd propertyDoc) (*metadata.Property, error) {
	p := &metadata.Property{Name: pd.Name, DeclaringType: t}
	var err error
	if pd.Type != "" {
		if p.Type, err = b.typeRef(asm, pd.Type, t, nil); err != nil {
			return nil, err
		}
	}
	if pd.Getter != "" {
		if p.Getter = t.MethodByName(pd.Getter); p.Getter == nil {
			return nil, fmt.Errorf("getter %q not declared", pd.Getter)
		}
	}
	if pd.Setter != "" {
		if p.Setter = t.MethodByName(pd.Setter); p.Setter == nil {
			return nil, fmt.Errorf("setter %q not declared", pd.Setter)
		}
	}
	if p.CustomAttributes, err = b.attributes(asm, pd.Attributes, t, nil); err != nil {
		return nil, err
	}
	return p, nil
}

func (b *builder) method(asm *metadata.Assembly, t *metadata.Type, md *methodDoc) (*metadata.Method, error) {
	access, err := metadata.ParseAccess(md.Access)
	if err != nil {
		return nil, err
	}
	m := &metadata.Method{Name: md.Name, DeclaringType: t, Access: access}

	for _, f := range md.Flags {
		switch strings.ToLower(f) {
		case "explicitthis":
			m.CallConv |= metadata.CallExplicitThis
		case "vararg":
			m.CallConv |= metadata.CallVarArg
		default:
			flag, ok := metadata.ParseMethodFlag(f)
			if !ok {
				return nil, fmt.Errorf("unknown flag %q", f)
			}
			m.Flags |= flag
		}
	}
	sem, ok := metadata.ParseSemantics(md.Semantics)
	if !ok {
		return nil, fmt.Errorf("unknown semantics %q", md.Semantics)
	}
	m.Semantics = sem

	// Constructors and accessors always carry their special-name bits.
	if m.Name == ".ctor" || m.Name == ".cctor" {
		m.Flags |= metadata.MethodSpecialName | metadata.MethodRTSpecialName
	}
	if sem != metadata.SemanticsNone {
		m.Flags |= metadata.MethodSpecialName
	}
	if !m.IsStatic() {
		m.CallConv |= metadata.CallHasThis
	}

	for i, gp := range md.GenericParams {
		m.GenericParams = append(m.GenericParams, &metadata.GenericParam{Name: gp.Name, Position: i, MethodOwned: true})
	}
	if len(m.GenericParams) > 0 {
		m.CallConv |= metadata.CallGeneric
	}
	for i, gp := range md.GenericParams {
		if m.GenericParams[i].Constraints, err = b.typeRefs(asm, gp.Constraints, t, m); err != nil {
			return nil, err
		}
	}

	for i, pd := range md.Params {
		pt, err := b.typeRef(asm, pd.Type, t, m)
		if err != nil {
			return nil, err
		}
		m.Parameters = append(m.Parameters, &metadata.Parameter{Name: pd.Name, Index: i, Type: pt})
	}
	if md.Returns != "" {
		if m.ReturnType, err = b.typeRef(asm, md.Returns, t, m); err != nil {
			return nil, err
		}
	}
	if m.CustomAttributes, err = b.attributes(asm, md.Attributes, t, m); err != nil {
		return nil, err
	}

	for i := range md.Overrides {
		ref, err := b.methodRef(asm, &md.Overrides[i], t, m)
		if err != nil {
			return nil, fmt.Errorf("override %d: %w", i, err)
		}
		m.Overrides = append(m.Overrides, ref)
	}

	if md.Body != nil {
		body := &metadata.Body{Instructions: make([]metadata.Instruction, 0, len(*md.Body))}
		for i := range *md.Body {
			ins, err := b.instruction(asm, &(*md.Body)[i], i, t, m)
			if err != nil {
				return nil, fmt.Errorf("instruction %d: %w", i, err)
			}
			body.Instructions = append(body.Instructions, ins)
		}
		m.Body = body
	}
	return m, nil
}

func (b *builder) instruction(asm *metadata.Assembly, id *instructionDoc, index int, t *metadata.Type, m *metadata.Method) (metadata.Instruction, error) {
	ins := metadata.Instruction{Offset: index, OpCode: metadata.ParseOpCode(id.Op)}
	if id.Offset != nil {
		ins.Offset = *id.Offset
	}

	switch {
	case id.Method != nil:
		ref, err := b.methodRef(asm, id.Method, t, m)
		if err != nil {
			return ins, err
		}
		ins.Operand = ref
	case id.Signature != nil:
		sig, err := b.signature(asm, id.Signature)
		if err != nil {
			return ins, err
		}
		ins.Operand = &metadata.CallSite{Sig: sig}
	case id.Type != "":
		ref, err := b.typeRef(asm, id.Type, t, m)
		if err != nil {
			return ins, err
		}
		ins.Operand = ref
	case id.Value != nil:
		ins.Operand = metadata.StringOperand(*id.Value)
	case id.Int != nil:
		ins.Operand = metadata.IntOperand(*id.Int)
	}
	return ins, nil
}

// methodRef builds a method reference. The declaring type and generic
// arguments are read in the caller's generic context; parameter and return
// types are read as written, with generic parameters given positionally.
func (b *builder) methodRef(asm *metadata.Assembly, rd *methodRefDoc, t *metadata.Type, m *metadata.Method) (*metadata.MethodRef, error) {
	var err error
	ref := &metadata.MethodRef{Name: rd.Name}
	if ref.DeclaringType, err = b.typeRef(asm, rd.Type, t, m); err != nil {
		return nil, err
	}
	if ref.GenericArgs, err = b.typeRefs(asm, rd.GenericArgs, t, m); err != nil {
		return nil, err
	}
	sig, err := b.signature(asm, &signatureDoc{Params: rd.Params, Returns: rd.Returns, Static: rd.Static})
	if err != nil {
		return nil, err
	}
	ref.CallConv = sig.Conv
	if len(ref.GenericArgs) > 0 {
		ref.CallConv |= metadata.CallGeneric
	}
	ref.Parameters = sig.Params
	ref.ReturnType = sig.Return
	b.methods = append(b.methods, trackedMethod{ref: ref, asm: asm})
	return ref, nil
}

func (b *builder) signature(asm *metadata.Assembly, sd *signatureDoc) (metadata.Sig, error) {
	var sig metadata.Sig
	var err error
	if !sd.Static {
		sig.Conv = metadata.CallHasThis
	}
	if sig.Params, err = b.typeRefs(asm, sd.Params, nil, nil); err != nil {
		return sig, err
	}
	if sd.Returns != "" {
		if sig.Return, err = b.typeRef(asm, sd.Returns, nil, nil); err != nil {
			return sig, err
		}
	}
	return sig, nil
}

func (b *builder) attributes(asm *metadata.Assembly, names []string, t *metadata.Type, m *metadata.Method) ([]*metadata.CustomAttribute, error) {
	if len(names) == 0 {
		return nil, nil
	}
	attrs := make([]*metadata.CustomAttribute, 0, len(names))
	for _, n := range names {
		ref, err := b.typeRef(asm, n, t, m)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, metadata.NewCustomAttribute(ref))
	}
	return attrs, nil
}

func (b *builder) typeRefs(asm *metadata.Assembly, names []string, t *metadata.Type, m *metadata.Method) ([]*metadata.TypeRef, error) {
	if len(names) == 0 {
		return nil, nil
	}
	refs := make([]*metadata.TypeRef, 0, len(names))
	for _, n := range names {
		ref, err := b.typeRef(asm, n, t, m)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// typeRef parses name in the generic context of t and m and tracks the
// result for linking.
func (b *builder) typeRef(asm *metadata.Assembly, name string, t *metadata.Type, m *metadata.Method) (*metadata.TypeRef, error) {
	ref, err := ParseTypeName(name)
	if err != nil {
		return nil, err
	}
	bindGenerics(ref, t, m)
	b.track(ref, asm)
	return ref, nil
}

func (b *builder) track(ref *metadata.TypeRef, asm *metadata.Assembly) {
	switch ref.Kind {
	case metadata.RefNamed:
		b.types = append(b.types, trackedType{ref: ref, asm: asm})
		for _, a := range ref.Args {
			b.track(a, asm)
		}
	case metadata.RefArray, metadata.RefByRef, metadata.RefPointer:
		b.track(ref.Elem, asm)
	}
}

// bindGenerics rewrites bare generic parameter names into parameter
// references and attaches definitions to positional references.
func bindGenerics(ref *metadata.TypeRef, t *metadata.Type, m *metadata.Method) {
	switch ref.Kind {
	case metadata.RefNamed:
		if ref.Scope == "" && len(ref.Args) == 0 {
			if gp := genericByName(ref.Name, t, m); gp != nil {
				*ref = *metadata.GenericParamRef(gp)
				return
			}
		}
		for _, a := range ref.Args {
			bindGenerics(a, t, m)
		}
	case metadata.RefArray, metadata.RefByRef, metadata.RefPointer:
		bindGenerics(ref.Elem, t, m)
	case metadata.RefGenericParam:
		var params []*metadata.GenericParam
		switch {
		case ref.MethodOwned && m != nil:
			params = m.GenericParams
		case !ref.MethodOwned && t != nil:
			params = t.GenericParams
		}
		if ref.Position < len(params) {
			ref.Param = params[ref.Position]
			ref.Name = ref.Param.Name
		}
	}
}

func genericByName(name string, t *metadata.Type, m *metadata.Method) *metadata.GenericParam {
	if m != nil {
		for _, gp := range m.GenericParams {
			if gp.Name == name {
				return gp
			}
		}
	}
	if t != nil {
		for _, gp := range t.GenericParams {
			if gp.Name == name {
				return gp
			}
		}
	}
	return nil
}

func findEntryPoint(names map[string]*metadata.Type, spec string) (*metadata.Method, error) {
	i := strings.LastIndex(spec, "::")
	if i < 0 {
		return nil, fmt.Errorf("entry point %q: expected Type::Method", spec)
	}
	t, ok := names[spec[:i]]
	if !ok {
		return nil, fmt.Errorf("entry point %q: type not declared", spec)
	}
	m := t.MethodByName(spec[i+2:])
	if m == nil {
		return nil, fmt.Errorf("entry point %q: method not declared", spec)
	}
	return m, nil
}
