package rule

import (
	"errors"
	"fmt"
)

// ErrInternal matches every InternalError with errors.Is.
var ErrInternal = errors.New("internal error")

// InternalError reports a bug in a rule or in the runner rather than a
// problem in the analyzed program. It aborts the run.
type InternalError struct {
	Rule   string
	Target string
	Err    error
	// Panic holds the recovered value when the invocation panicked.
	Panic any
}

// Internalf returns an InternalError with a formatted cause. Rules return it
// when one of their own invariants is violated.
func Internalf(format string, args ...any) error {
	return &InternalError{Err: fmt.Errorf(format, args...)}
}

func (e *InternalError) Error() string {
	msg := []byte("Internal Error: ")
	if e.Rule != "" {
		msg = fmt.Appendf(msg, "rule %s", e.Rule)
		if e.Target != "" {
			msg = fmt.Appendf(msg, " on %s", e.Target)
		}
		msg = append(msg, ": "...)
	}
	switch {
	case e.Panic != nil:
		msg = fmt.Appendf(msg, "panic: %v", e.Panic)
	case e.Err != nil:
		msg = append(msg, e.Err.Error()...)
	default:
		msg = append(msg, "unknown failure"...)
	}
	return string(msg)
}

func (e *InternalError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInternal) true for any InternalError.
func (e *InternalError) Is(target error) bool {
	return target == ErrInternal
}

// asInternal wraps err as an InternalError attributed to rule and target,
// keeping the attribution of an InternalError the rule already built.
func asInternal(rule, target string, err error) *InternalError {
	var ie *InternalError
	if errors.As(err, &ie) {
		c := *ie
		if c.Rule == "" {
			c.Rule = rule
		}
		if c.Target == "" {
			c.Target = target
		}
		return &c
	}
	return &InternalError{Rule: rule, Target: target, Err: err}
}
