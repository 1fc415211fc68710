package metadata

// Marker is a recognized attribute that changes how analyzers treat the
// entity it decorates. Attribute names are mapped to markers when the graph
// is loaded so queries never compare attribute strings.
type Marker uint8

const (
	MarkerNone Marker = iota
	MarkerGeneratedCode
	MarkerCompilerGenerated
	MarkerConditional
	MarkerComRegisterFunction
	MarkerComUnregisterFunction
)

var markerAttributes = map[string]Marker{
	"System.CodeDom.Compiler.GeneratedCodeAttribute":                MarkerGeneratedCode,
	"System.Runtime.CompilerServices.CompilerGeneratedAttribute":    MarkerCompilerGenerated,
	"System.Diagnostics.ConditionalAttribute":                       MarkerConditional,
	"System.Runtime.InteropServices.ComRegisterFunctionAttribute":   MarkerComRegisterFunction,
	"System.Runtime.InteropServices.ComUnregisterFunctionAttribute": MarkerComUnregisterFunction,
}

var markerNames = [...]string{
	MarkerNone:                  "none",
	MarkerGeneratedCode:         "generated-code",
	MarkerCompilerGenerated:     "compiler-generated",
	MarkerConditional:           "conditional",
	MarkerComRegisterFunction:   "com-register-function",
	MarkerComUnregisterFunction: "com-unregister-function",
}

func (m Marker) String() string {
	if int(m) < len(markerNames) {
		return markerNames[m]
	}
	return "unknown"
}

// MarkerFor returns the marker for an attribute type full name, or
// MarkerNone when the attribute carries no analysis meaning.
func MarkerFor(attributeType string) Marker {
	return markerAttributes[attributeType]
}

// CustomAttribute is an attribute applied to a type or member.
type CustomAttribute struct {
	Type   *TypeRef
	Marker Marker
}

// NewCustomAttribute returns an attribute of type t with its marker set.
func NewCustomAttribute(t *TypeRef) *CustomAttribute {
	return &CustomAttribute{Type: t, Marker: MarkerFor(t.Element().FullName())}
}

// HasMarker reports whether any attribute in attrs carries one of markers.
func HasMarker(attrs []*CustomAttribute, markers ...Marker) bool {
	for _, a := range attrs {
		if a.Marker == MarkerNone {
			continue
		}
		for _, m := range markers {
			if a.Marker == m {
				return true
			}
		}
	}
	return false
}
