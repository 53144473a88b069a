package rules

import (
	"fmt"
	"sort"

	"github.com/roach88/sibyl/internal/world"
)

// Engine holds the ordered rule set and applies it one pass at a time.
//
// Rules are kept sorted by priority descending; insertion order is the
// tie-break for equal priorities (stable sort on every mutation). At most
// one rule with a given ID is present at any time: adding a duplicate ID
// replaces the existing rule.
//
// The engine is stateless between passes - it owns no state, only rules.
// Thread-safety contract: single writer, one pass at a time per engine
// instance. No internal locking is provided; independent engine instances
// share nothing and need no synchronization.
type Engine struct {
	rules []Rule
}

// NewEngine creates an empty rule engine.
func NewEngine() *Engine {
	return &Engine{}
}

// AddRule inserts a rule, replacing any existing rule with the same ID,
// then re-sorts. Replacement keeps adds idempotent, which matters when a
// persisted rule set is reloaded.
func (e *Engine) AddRule(r Rule) {
	for i := range e.rules {
		if e.rules[i].ID == r.ID {
			e.rules[i] = r
			e.sortRules()
			return
		}
	}
	e.rules = append(e.rules, r)
	e.sortRules()
}

// RemoveRule removes a rule by ID. Returns false if not found.
func (e *Engine) RemoveRule(id string) bool {
	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return true
		}
	}
	return false
}

// GetRule returns the rule with the given ID.
func (e *Engine) GetRule(id string) (Rule, bool) {
	for _, r := range e.rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// UpdateRule replaces an existing rule in place, preserving its slot in
// the insertion order, then re-sorts. Returns false if no rule with the
// ID exists.
func (e *Engine) UpdateRule(id string, newRule Rule) bool {
	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules[i] = newRule
			e.sortRules()
			return true
		}
	}
	return false
}

// Clear removes all rules.
func (e *Engine) Clear() {
	e.rules = nil
}

// RuleIDs returns all rule IDs in evaluation order.
func (e *Engine) RuleIDs() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.ID
	}
	return ids
}

// Count returns the number of rules.
func (e *Engine) Count() int {
	return len(e.rules)
}

// Rules returns a copy of the rule list in evaluation order.
// The copy prevents callers from perturbing the engine's ordering.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// ApplyAll runs one deterministic pass over the rule set.
//
// For each rule in order, the condition is evaluated against the current
// state - including mutations made by rules applied earlier in this same
// pass - and matching rules are applied. Returns the final state and the
// IDs of the rules that fired, in firing order.
//
// Any error aborts the pass: no state and no fired list are returned,
// and the caller must not commit anything for this step. Given the same
// input state and rule set, two calls yield bit-identical results.
func (e *Engine) ApplyAll(s *world.State) (*world.State, []string, error) {
	current := s
	fired := make([]string, 0, len(e.rules))

	for _, rule := range e.rules {
		ok, err := rule.ShouldApply(current)
		if err != nil {
			return nil, nil, fmt.Errorf("evaluate condition of rule %q: %w", rule.ID, err)
		}
		if !ok {
			continue
		}

		next, err := rule.Apply(current)
		if err != nil {
			return nil, nil, fmt.Errorf("apply rule %q: %w", rule.ID, err)
		}
		current = next
		fired = append(fired, rule.ID)
	}

	return current, fired, nil
}

// sortRules re-sorts by priority descending. The sort is stable, so
// rules with equal priority keep their insertion order.
func (e *Engine) sortRules() {
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
}
