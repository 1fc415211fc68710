package rule

import (
	"fmt"

	"github.com/gobwas/glob"
)

// Suppressor decides whether a reported defect is dropped.
type Suppressor interface {
	Suppress(d Defect) bool
}

// SuppressorFunc adapts a function to Suppressor.
type SuppressorFunc func(d Defect) bool

// Suppress implements Suppressor.
func (f SuppressorFunc) Suppress(d Defect) bool {
	return f(d)
}

// Suppressors suppresses a defect when any member does.
type Suppressors []Suppressor

// Suppress implements Suppressor.
func (s Suppressors) Suppress(d Defect) bool {
	for _, sup := range s {
		if sup != nil && sup.Suppress(d) {
			return true
		}
	}
	return false
}

// Suppression is one configured suppression entry. Rule and Target are glob
// patterns; an empty pattern matches everything.
type Suppression struct {
	Rule   string
	Target string
	Reason string
}

type compiledSuppression struct {
	rule   glob.Glob
	target glob.Glob
	reason string
}

// GlobSuppressor matches defects against rule and target name patterns.
// Target patterns use '.' and '/' as separators, so "Acme.*" matches
// top-level names in Acme and "Acme.**" matches everything below it.
type GlobSuppressor struct {
	entries []compiledSuppression
}

// NewGlobSuppressor compiles entries.
func NewGlobSuppressor(entries []Suppression) (*GlobSuppressor, error) {
	gs := &GlobSuppressor{entries: make([]compiledSuppression, 0, len(entries))}
	for i, e := range entries {
		c := compiledSuppression{reason: e.Reason}
		var err error
		if e.Rule != "" {
			if c.rule, err = glob.Compile(e.Rule); err != nil {
				return nil, fmt.Errorf("suppression %d: rule pattern %q: %w", i, e.Rule, err)
			}
		}
		if e.Target != "" {
			if c.target, err = glob.Compile(e.Target, '.', '/'); err != nil {
				return nil, fmt.Errorf("suppression %d: target pattern %q: %w", i, e.Target, err)
			}
		}
		gs.entries = append(gs.entries, c)
	}
	return gs, nil
}

// Suppress implements Suppressor.
func (g *GlobSuppressor) Suppress(d Defect) bool {
	for _, e := range g.entries {
		if e.rule != nil && !e.rule.Match(d.Rule) {
			continue
		}
		if e.target != nil && !e.target.Match(d.Target) {
			continue
		}
		return true
	}
	return false
}

// Threshold suppresses defects below a minimum severity or confidence.
func Threshold(minSeverity Severity, minConfidence Confidence) Suppressor {
	return SuppressorFunc(func(d Defect) bool {
		return d.Severity < minSeverity || d.Confidence < minConfidence
	})
}
