package rules

import (
	"fmt"

	"github.com/roach88/sibyl/internal/expr"
	"github.com/roach88/sibyl/internal/world"
)

// Rule is a named, prioritized (condition, action-list) pair.
//
// Rules are immutable once constructed: updates replace the whole value
// via Engine.UpdateRule, never mutate in place.
type Rule struct {
	// ID uniquely identifies the rule within an engine.
	ID string

	// Condition gates application. Evaluated against the running state
	// of the current pass.
	Condition expr.Condition

	// Actions run in declared order; each sees the effects of the ones
	// before it.
	Actions []Action

	// Priority orders rules within a pass (higher runs first).
	Priority int

	// Description is a human-readable note carried through persistence.
	Description string
}

// ShouldApply evaluates the rule's condition against a state snapshot.
func (r Rule) ShouldApply(s *world.State) (bool, error) {
	return expr.EvalCondition(r.Condition, s)
}

// Apply runs every action against a copy of the state and returns the
// copy. The input state is never touched, and the copy is only exposed
// on success - a failing action discards all earlier actions' writes, so
// a rule's actions commit atomically or not at all.
func (r Rule) Apply(s *world.State) (*world.State, error) {
	next := s.Clone()

	for i, action := range r.Actions {
		if err := applyAction(action, next); err != nil {
			return nil, fmt.Errorf("rule %q action %d: %w", r.ID, i, err)
		}
	}

	return next, nil
}
