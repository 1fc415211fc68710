package metadata

import (
	"fmt"
	"strings"
)

// Access is the declared accessibility of a type or member.
type Access uint8

const (
	AccessPrivate Access = iota
	AccessFamANDAssem
	AccessAssembly
	AccessFamily
	AccessFamORAssem
	AccessPublic
)

var accessNames = [...]string{
	AccessPrivate:     "private",
	AccessFamANDAssem: "famandassem",
	AccessAssembly:    "assembly",
	AccessFamily:      "family",
	AccessFamORAssem:  "famorassem",
	AccessPublic:      "public",
}

func (a Access) String() string {
	if int(a) < len(accessNames) {
		return accessNames[a]
	}
	return fmt.Sprintf("access(%d)", a)
}

// MarshalText implements encoding.TextMarshaler.
func (a Access) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// IsInternal reports whether the access limits visibility to the declaring
// assembly (internal and private protected).
func (a Access) IsInternal() bool {
	return a == AccessAssembly || a == AccessFamANDAssem
}

// ParseAccess accepts both the metadata spelling ("famorassem") and the
// familiar source keywords ("protected internal").
func ParseAccess(s string) (Access, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "private", "compilercontrolled":
		return AccessPrivate, nil
	case "famandassem", "private protected":
		return AccessFamANDAssem, nil
	case "assembly", "internal", "notpublic":
		return AccessAssembly, nil
	case "family", "protected":
		return AccessFamily, nil
	case "famorassem", "protected internal":
		return AccessFamORAssem, nil
	case "public":
		return AccessPublic, nil
	}
	return AccessPrivate, fmt.Errorf("unknown access %q", s)
}

// TypeKind is the declared kind of a type definition.
type TypeKind uint8

const (
	KindClass TypeKind = iota
	KindInterface
	KindStruct
	KindEnum
	KindDelegate
)

var typeKindNames = [...]string{
	KindClass:     "class",
	KindInterface: "interface",
	KindStruct:    "struct",
	KindEnum:      "enum",
	KindDelegate:  "delegate",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return fmt.Sprintf("kind(%d)", k)
}

// MarshalText implements encoding.TextMarshaler.
func (k TypeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// ParseTypeKind parses a type kind name. An empty string means class.
func ParseTypeKind(s string) (TypeKind, error) {
	if s == "" {
		return KindClass, nil
	}
	for i, n := range typeKindNames {
		if strings.EqualFold(n, s) {
			return TypeKind(i), nil
		}
	}
	return KindClass, fmt.Errorf("unknown type kind %q", s)
}
