package rule

import (
	"cmp"
	"slices"
	"sync"

	"github.com/panbanda/ilscan/pkg/metadata"
)

// RuleStats counts the outcomes of one rule's invocations.
type RuleStats struct {
	NotApplicable int `json:"not_applicable" toon:"not_applicable"`
	Success       int `json:"success" toon:"success"`
	Failure       int `json:"failure" toon:"failure"`
	Defects       int `json:"defects" toon:"defects"`
	Suppressed    int `json:"suppressed" toon:"suppressed"`
}

// Invocations returns the total number of invocations.
func (s RuleStats) Invocations() int {
	return s.NotApplicable + s.Success + s.Failure
}

// Result accumulates the defects and outcome counts of a run. It is safe
// for concurrent use.
type Result struct {
	mu         sync.Mutex
	defects    []Defect
	suppressed int
	stats      map[string]*RuleStats
}

func newResult() *Result {
	return &Result{stats: make(map[string]*RuleStats)}
}

func (r *Result) ruleStats(name string) *RuleStats {
	s, ok := r.stats[name]
	if !ok {
		s = &RuleStats{}
		r.stats[name] = s
	}
	return s
}

func (r *Result) addDefect(d Defect, suppressed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.ruleStats(d.Rule)
	if suppressed {
		r.suppressed++
		s.Suppressed++
		return
	}
	r.defects = append(r.defects, d)
	s.Defects++
}

func (r *Result) addOutcome(rule string, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.ruleStats(rule)
	switch o {
	case NotApplicable:
		s.NotApplicable++
	case Success:
		s.Success++
	case Failure:
		s.Failure++
	}
}

// sort orders defects by assembly, target, rule and message so output does
// not depend on scheduling.
func (r *Result) sort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	slices.SortStableFunc(r.defects, func(a, b Defect) int {
		return cmp.Or(
			cmp.Compare(a.Assembly, b.Assembly),
			cmp.Compare(a.Target, b.Target),
			cmp.Compare(a.Rule, b.Rule),
			cmp.Compare(a.Message, b.Message),
		)
	})
}

// Outcome is Failure when at least one defect survived suppression and
// Success otherwise.
func (r *Result) Outcome() Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.defects) > 0 {
		return Failure
	}
	return Success
}

// Defects returns the reported, unsuppressed defects.
func (r *Result) Defects() []Defect {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.defects)
}

// DefectsFor returns the defects reported against target.
func (r *Result) DefectsFor(target metadata.Entity) []Defect {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Defect
	for _, d := range r.defects {
		if d.entity == target {
			out = append(out, d)
		}
	}
	return out
}

// Suppressed returns the number of defects dropped by suppressors.
func (r *Result) Suppressed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.suppressed
}

// Stats returns the per-rule outcome counts.
func (r *Result) Stats() map[string]RuleStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]RuleStats, len(r.stats))
	for k, v := range r.stats {
		out[k] = *v
	}
	return out
}

// Summary provides aggregate statistics for a run.
type Summary struct {
	Outcome     Outcome              `json:"outcome" toon:"outcome"`
	Defects     int                  `json:"defects" toon:"defects"`
	Suppressed  int                  `json:"suppressed" toon:"suppressed"`
	Invocations int                  `json:"invocations" toon:"invocations"`
	BySeverity  map[string]int       `json:"by_severity" toon:"by_severity"`
	ByRule      map[string]RuleStats `json:"by_rule" toon:"by_rule"`
}

// Summary computes aggregate statistics.
func (r *Result) Summary() Summary {
	s := Summary{
		Outcome:    r.Outcome(),
		Suppressed: r.Suppressed(),
		BySeverity: make(map[string]int),
		ByRule:     r.Stats(),
	}
	for _, d := range r.Defects() {
		s.Defects++
		s.BySeverity[d.Severity.String()]++
	}
	for _, st := range s.ByRule {
		s.Invocations += st.Invocations()
	}
	return s
}
