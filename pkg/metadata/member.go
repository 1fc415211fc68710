package metadata

// Field is a field definition.
type Field struct {
	Name             string
	DeclaringType    *Type
	Access           Access
	Static           bool
	Type             *TypeRef
	CustomAttributes []*CustomAttribute
}

// Property groups a getter and a setter under one name. Either accessor may
// be nil.
type Property struct {
	Name             string
	DeclaringType    *Type
	Type             *TypeRef
	Getter           *Method
	Setter           *Method
	CustomAttributes []*CustomAttribute
}

// EntityKind distinguishes the targets a defect can be reported against.
type EntityKind uint8

const (
	EntityAssembly EntityKind = iota
	EntityType
	EntityMethod
)

func (k EntityKind) String() string {
	switch k {
	case EntityAssembly:
		return "assembly"
	case EntityType:
		return "type"
	case EntityMethod:
		return "method"
	}
	return "unknown"
}

// Entity is an analysis target: an assembly, a type or a method.
type Entity interface {
	FullName() string
	EntityKind() EntityKind
}
