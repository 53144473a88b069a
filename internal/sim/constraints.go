package sim

import (
	"fmt"

	"github.com/roach88/sibyl/internal/world"
)

// Violation describes a constraint the candidate state would break.
type Violation struct {
	ConstraintID string         `json:"constraint_id"`
	Message      string         `json:"message"`
	Context      map[string]any `json:"context,omitempty"`
}

// Constraint validates a candidate state before it becomes canonical.
// Validate receives both the current canonical state and the candidate
// so that order-dependent constraints (time monotonicity) need no
// mutable bookkeeping. A nil return means the constraint holds.
type Constraint interface {
	ID() string
	Validate(current, candidate *world.State) *Violation
}

// NonNegativeResource rejects states where the named resource is
// negative. Absent resources read as zero and pass.
type NonNegativeResource struct {
	Resource string
}

func (c NonNegativeResource) ID() string {
	return "non_negative_resource_" + c.Resource
}

func (c NonNegativeResource) Validate(_, candidate *world.State) *Violation {
	v := candidate.Resource(c.Resource)
	if v < 0 {
		return &Violation{
			ConstraintID: c.ID(),
			Message:      fmt.Sprintf("resource %q cannot be negative (got %v)", c.Resource, v),
			Context:      map[string]any{"resource": c.Resource, "value": v},
		}
	}
	return nil
}

// MaxResource rejects states where the named resource exceeds Max.
type MaxResource struct {
	Resource string
	Max      float64
}

func (c MaxResource) ID() string {
	return "max_resource_" + c.Resource
}

func (c MaxResource) Validate(_, candidate *world.State) *Violation {
	v := candidate.Resource(c.Resource)
	if v > c.Max {
		return &Violation{
			ConstraintID: c.ID(),
			Message:      fmt.Sprintf("resource %q exceeds maximum %v (got %v)", c.Resource, c.Max, v),
			Context:      map[string]any{"resource": c.Resource, "value": v, "max_value": c.Max},
		}
	}
	return nil
}

// TimeMonotonic rejects states whose clock runs backwards relative to
// the current canonical state.
type TimeMonotonic struct{}

func (TimeMonotonic) ID() string { return "time_monotonic" }

func (c TimeMonotonic) Validate(current, candidate *world.State) *Violation {
	if current != nil && candidate.Time < current.Time {
		return &Violation{
			ConstraintID: c.ID(),
			Message:      fmt.Sprintf("time cannot go backwards (was %d, now %d)", current.Time, candidate.Time),
			Context:      map[string]any{"previous": current.Time, "current": candidate.Time},
		}
	}
	return nil
}

// ConstraintEngine runs every registered constraint against a candidate
// state and collects all violations, in registration order.
type ConstraintEngine struct {
	constraints []Constraint
}

// NewConstraintEngine creates an empty constraint engine.
func NewConstraintEngine() *ConstraintEngine {
	return &ConstraintEngine{}
}

// Add registers a constraint. Constraints are checked in the order they
// were added.
func (e *ConstraintEngine) Add(c Constraint) {
	e.constraints = append(e.constraints, c)
}

// Validate runs all constraints. Every violation is reported, not just
// the first, so a rejection event can name the full set.
func (e *ConstraintEngine) Validate(current, candidate *world.State) []Violation {
	var violations []Violation
	for _, c := range e.constraints {
		if v := c.Validate(current, candidate); v != nil {
			violations = append(violations, *v)
		}
	}
	return violations
}

// IDs returns the registered constraint IDs in registration order.
func (e *ConstraintEngine) IDs() []string {
	ids := make([]string, len(e.constraints))
	for i, c := range e.constraints {
		ids[i] = c.ID()
	}
	return ids
}

// Constraints returns a copy of the registered constraints.
func (e *ConstraintEngine) Constraints() []Constraint {
	out := make([]Constraint, len(e.constraints))
	copy(out, e.constraints)
	return out
}
