// Package rule defines analysis rules and the runner that applies them to a
// loaded metadata graph.
//
// A rule declares which targets it inspects by implementing one or more of
// AssemblyRule, TypeRule and MethodRule. The runner calls Setup on every
// rule before the first invocation and TearDown after the last one, even
// when the run aborts.
package rule

import (
	"fmt"
	"strings"

	"github.com/panbanda/ilscan/pkg/metadata"
)

// Outcome is the result of one rule invocation.
type Outcome uint8

const (
	NotApplicable Outcome = iota
	Success
	Failure
)

func (o Outcome) String() string {
	switch o {
	case NotApplicable:
		return "not-applicable"
	case Success:
		return "success"
	case Failure:
		return "failure"
	}
	return fmt.Sprintf("outcome(%d)", o)
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(b []byte) error {
	for _, c := range []Outcome{NotApplicable, Success, Failure} {
		if c.String() == string(b) {
			*o = c
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", b)
}

// Severity ranks how much a defect matters.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{"low", "medium", "high", "critical"}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(b []byte) error {
	v, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSeverity parses a severity name.
func ParseSeverity(s string) (Severity, error) {
	for i, n := range severityNames {
		if strings.EqualFold(n, s) {
			return Severity(i), nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", s)
}

// Confidence ranks how certain a rule is that a defect is real.
type Confidence uint8

const (
	ConfidenceLow Confidence = iota
	ConfidenceNormal
	ConfidenceHigh
	ConfidenceTotal
)

var confidenceNames = [...]string{"low", "normal", "high", "total"}

func (c Confidence) String() string {
	if int(c) < len(confidenceNames) {
		return confidenceNames[c]
	}
	return fmt.Sprintf("confidence(%d)", c)
}

// MarshalText implements encoding.TextMarshaler.
func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(b []byte) error {
	v, err := ParseConfidence(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// ParseConfidence parses a confidence name.
func ParseConfidence(s string) (Confidence, error) {
	for i, n := range confidenceNames {
		if strings.EqualFold(n, s) {
			return Confidence(i), nil
		}
	}
	return ConfidenceLow, fmt.Errorf("unknown confidence %q", s)
}

// Rule is the common part of every rule.
type Rule interface {
	Name() string
	Description() string
}

// SetupRule is implemented by rules that prepare per-session state.
type SetupRule interface {
	Setup(s *Session) error
}

// TearDownRule is implemented by rules that release per-session state.
type TearDownRule interface {
	TearDown(s *Session)
}

// AssemblyRule inspects assemblies.
type AssemblyRule interface {
	Rule
	CheckAssembly(c *Context, a *metadata.Assembly) (Outcome, error)
}

// TypeRule inspects type definitions.
type TypeRule interface {
	Rule
	CheckType(c *Context, t *metadata.Type) (Outcome, error)
}

// MethodRule inspects method definitions.
type MethodRule interface {
	Rule
	CheckMethod(c *Context, m *metadata.Method) (Outcome, error)
}

// Defect is a finding reported by a rule against a target.
type Defect struct {
	Rule       string     `json:"rule" toon:"rule"`
	Target     string     `json:"target" toon:"target"`
	Kind       string     `json:"kind" toon:"kind"`
	Assembly   string     `json:"assembly,omitempty" toon:"assembly,omitempty"`
	Severity   Severity   `json:"severity" toon:"severity"`
	Confidence Confidence `json:"confidence" toon:"confidence"`
	Message    string     `json:"message" toon:"message"`

	entity metadata.Entity
}

// Entity returns the analyzed entity the defect was reported against.
func (d Defect) Entity() metadata.Entity {
	return d.entity
}

func newDefect(rule string, target metadata.Entity, sev Severity, conf Confidence, msg string) Defect {
	d := Defect{
		Rule:       rule,
		Target:     target.FullName(),
		Kind:       target.EntityKind().String(),
		Severity:   sev,
		Confidence: conf,
		Message:    msg,
		entity:     target,
	}
	switch e := target.(type) {
	case *metadata.Assembly:
		d.Assembly = string(e.ID())
	case *metadata.Type:
		if a := e.Assembly(); a != nil {
			d.Assembly = string(a.ID())
		}
	case *metadata.Method:
		if a := e.Assembly(); a != nil {
			d.Assembly = string(a.ID())
		}
	}
	return d
}
