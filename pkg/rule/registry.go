package rule

import (
	"fmt"
	"slices"
)

// Registry holds the rules available to a run, in registration order.
type Registry struct {
	rules map[string]Rule
	order []string
}

// NewRegistry creates a registry holding rules. It panics on duplicate
// names since registration happens at program start.
func NewRegistry(rules ...Rule) *Registry {
	r := &Registry{rules: make(map[string]Rule)}
	for _, rl := range rules {
		if err := r.Register(rl); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds rl. Names must be unique.
func (r *Registry) Register(rl Rule) error {
	name := rl.Name()
	if _, dup := r.rules[name]; dup {
		return fmt.Errorf("rule %q already registered", name)
	}
	r.rules[name] = rl
	r.order = append(r.order, name)
	return nil
}

// Get returns the rule named name.
func (r *Registry) Get(name string) (Rule, bool) {
	rl, ok := r.rules[name]
	return rl, ok
}

// All returns every registered rule.
func (r *Registry) All() []Rule {
	out := make([]Rule, 0, len(r.order))
	for _, n := range r.order {
		out = append(out, r.rules[n])
	}
	return out
}

// Names returns the registered rule names.
func (r *Registry) Names() []string {
	return slices.Clone(r.order)
}

// Select returns the named rules, or every rule when names is empty.
// Disabled names are removed from the selection.
func (r *Registry) Select(names, disabled []string) ([]Rule, error) {
	if len(names) == 0 {
		names = r.order
	}
	out := make([]Rule, 0, len(names))
	for _, n := range names {
		rl, ok := r.rules[n]
		if !ok {
			return nil, fmt.Errorf("unknown rule %q", n)
		}
		if slices.Contains(disabled, n) {
			continue
		}
		out = append(out, rl)
	}
	return out, nil
}
