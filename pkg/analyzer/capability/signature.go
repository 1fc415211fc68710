package capability

import "github.com/panbanda/ilscan/pkg/metadata"

// MethodSignature describes a method shape by name and type names. Empty
// fields match anything; a nil Parameters slice matches any parameter list
// while an empty non-nil slice requires no parameters.
type MethodSignature struct {
	Name       string
	ReturnType string
	Parameters []string
}

// Matches reports whether m has the described shape.
func (s MethodSignature) Matches(m *metadata.Method) bool {
	if m == nil {
		return false
	}
	if s.Name != "" && s.Name != m.Name {
		return false
	}
	if s.ReturnType != "" && s.ReturnType != typeName(m.ReturnType) {
		return false
	}
	if s.Parameters == nil {
		return true
	}
	if len(s.Parameters) != len(m.Parameters) {
		return false
	}
	for i, p := range s.Parameters {
		if p != "" && p != typeName(m.Parameters[i].Type) {
			return false
		}
	}
	return true
}

// SerializationConstructor is the constructor the runtime's serializer
// invokes by reflection.
var SerializationConstructor = MethodSignature{
	Name:       ".ctor",
	ReturnType: SystemVoid,
	Parameters: []string{
		"System.Runtime.Serialization.SerializationInfo",
		"System.Runtime.Serialization.StreamingContext",
	},
}
