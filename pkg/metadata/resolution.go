package metadata

import (
	"errors"
	"fmt"
)

// ErrUnresolved reports that a symbolic reference points at a definition
// that is not part of the loaded graph.
var ErrUnresolved = errors.New("unresolved reference")

// Resolution is the outcome of following a symbolic reference.
// The zero value is unresolved.
type Resolution[T any] struct {
	target T
	ok     bool
	ref    string
}

// Resolved returns a successful resolution to target.
func Resolved[T any](target T) Resolution[T] {
	return Resolution[T]{target: target, ok: true}
}

// Unresolved returns a failed resolution. ref names what was looked up.
func Unresolved[T any](ref string) Resolution[T] {
	return Resolution[T]{ref: ref}
}

// Get returns the target and whether the reference resolved.
func (r Resolution[T]) Get() (T, bool) {
	return r.target, r.ok
}

// IsResolved reports whether the reference was followed to a definition.
func (r Resolution[T]) IsResolved() bool {
	return r.ok
}

// Err returns nil for a resolved reference and an error wrapping
// ErrUnresolved otherwise.
func (r Resolution[T]) Err() error {
	if r.ok {
		return nil
	}
	if r.ref == "" {
		return ErrUnresolved
	}
	return fmt.Errorf("%w: %s", ErrUnresolved, r.ref)
}
