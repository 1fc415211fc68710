// Package metadata models the compiled-program graph that ilscan analyzes:
// assemblies, modules, types, methods and the symbolic references between
// them.
//
// The graph is loaded once and is immutable afterwards. Every reference
// (TypeRef, MethodRef) carries the Resolution computed when the graph was
// linked, so resolving a reference is a field read and never fails with an
// error. A reference that could not be followed reports IsResolved() == false
// and analyzers treat it as "no evidence".
package metadata
