package deadcode

import "fmt"

// Status is the reachability verdict for one method.
type Status uint8

const (
	StatusNotApplicable Status = iota
	StatusReachable
	StatusUnreachable
)

var statusNames = [...]string{"not-applicable", "reachable", "unreachable"}

// String returns the string representation.
func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return fmt.Sprintf("status(%d)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reason names the check that decided a verdict.
type Reason uint8

const (
	// Exclusions: the method is not a candidate at all.
	ReasonStaticConstructor Reason = iota
	ReasonEventAccessor
	ReasonEntryPoint
	ReasonGeneratedCode
	ReasonMarker

	// Evidence of reachability.
	ReasonVirtual
	ReasonVisible
	ReasonConstructor
	ReasonExplicitOverride
	ReasonUsedInType
	ReasonSpecialName
	ReasonEqualityOverload
	ReasonInterfaceContract
	ReasonSerializationConstructor
	ReasonUsedInAssembly
	ReasonDefault

	// Unreachable.
	ReasonUnusedPrivate
	ReasonUnusedInternal
)

var reasonNames = [...]string{
	ReasonStaticConstructor:        "static-constructor",
	ReasonEventAccessor:            "event-accessor",
	ReasonEntryPoint:               "entry-point",
	ReasonGeneratedCode:            "generated-code",
	ReasonMarker:                   "marker",
	ReasonVirtual:                  "virtual",
	ReasonVisible:                  "visible",
	ReasonConstructor:              "constructor",
	ReasonExplicitOverride:         "explicit-override",
	ReasonUsedInType:               "used-in-type",
	ReasonSpecialName:              "special-name",
	ReasonEqualityOverload:         "equality-overload",
	ReasonInterfaceContract:        "interface-contract",
	ReasonSerializationConstructor: "serialization-constructor",
	ReasonUsedInAssembly:           "used-in-assembly",
	ReasonDefault:                  "default",
	ReasonUnusedPrivate:            "unused-private",
	ReasonUnusedInternal:           "unused-internal",
}

// String returns the string representation.
func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", r)
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Defect messages.
const (
	MessageUnusedPrivate  = "The private method code is not used in its declaring type."
	MessageUnusedInternal = "The method is not visible outside assembly and unused within."
)

// Verdict is the outcome of classifying one method.
type Verdict struct {
	Status Status `json:"status" toon:"status"`
	Reason Reason `json:"reason" toon:"reason"`
}

// Message returns the defect message for an unreachable verdict and ""
// otherwise.
func (v Verdict) Message() string {
	switch v.Reason {
	case ReasonUnusedPrivate:
		return MessageUnusedPrivate
	case ReasonUnusedInternal:
		return MessageUnusedInternal
	}
	return ""
}

// Item is one unreachable method.
type Item struct {
	Method  string `json:"method" toon:"method"`
	Access  string `json:"access" toon:"access"`
	Reason  Reason `json:"reason" toon:"reason"`
	Message string `json:"message" toon:"message"`
}

// TypeMetrics contains the unreachable methods of one type.
type TypeMetrics struct {
	Type           string  `json:"type" toon:"type"`
	Assembly       string  `json:"assembly" toon:"assembly"`
	Methods        int     `json:"methods" toon:"methods"`
	Candidates     int     `json:"candidates" toon:"candidates"`
	Unreachable    int     `json:"unreachable" toon:"unreachable"`
	DeadPercentage float32 `json:"dead_percentage" toon:"dead_percentage"`
	Items          []Item  `json:"items" toon:"items"`
}

// UpdatePercentage recomputes DeadPercentage from the candidate count.
func (t *TypeMetrics) UpdatePercentage() {
	if t.Candidates > 0 {
		t.DeadPercentage = float32(t.Unreachable) / float32(t.Candidates) * 100.0
	}
}

// Summary provides aggregate statistics.
type Summary struct {
	TotalAssemblies    int            `json:"total_assemblies" toon:"total_assemblies"`
	TotalTypes         int            `json:"total_types" toon:"total_types"`
	TypesWithDeadCode  int            `json:"types_with_dead_code" toon:"types_with_dead_code"`
	TotalMethods       int            `json:"total_methods" toon:"total_methods"`
	CandidateMethods   int            `json:"candidate_methods" toon:"candidate_methods"`
	UnreachableMethods int            `json:"unreachable_methods" toon:"unreachable_methods"`
	DeadPercentage     float32        `json:"dead_percentage" toon:"dead_percentage"`
	ByReason           map[string]int `json:"by_reason" toon:"by_reason"`
}

// Analysis is the result of classifying every method of a set of
// assemblies. Types lists only types with at least one unreachable method,
// most unreachable methods first.
type Analysis struct {
	Types   []TypeMetrics `json:"types" toon:"types"`
	Summary Summary       `json:"summary" toon:"summary"`
}
