package rules

import (
	"fmt"

	"github.com/roach88/sibyl/internal/expr"
	"github.com/roach88/sibyl/internal/world"
)

// Action is a sealed interface for the typed mutations a rule performs.
// Only SetResource, SetMetric, SetFlag, and SetMetadata implement it.
type Action interface {
	actionNode() // Sealed - only these types implement it
}

// Operand is an action's value: either an expression tree (including the
// increment/multiply_by shorthands) or, for metadata only, a raw
// bool/string stored as-is.
// Exactly one of Expr and Raw is set.
type Operand struct {
	Expr expr.Expr
	Raw  world.Value
}

// ExprOperand wraps an expression as an Operand.
func ExprOperand(e expr.Expr) Operand {
	return Operand{Expr: e}
}

// RawOperand wraps a raw scalar as an Operand (metadata values only).
func RawOperand(v world.Value) Operand {
	return Operand{Raw: v}
}

// SetResource writes a resource; the operand resolves against the
// resource's current value for the shorthand forms.
type SetResource struct {
	Name  string
	Value Operand
}

func (SetResource) actionNode() {}

// SetMetric writes a metric.
type SetMetric struct {
	Name  string
	Value Operand
}

func (SetMetric) actionNode() {}

// SetFlag writes a flag. The value is a literal boolean only - flags are
// never computed from expressions.
type SetFlag struct {
	Name  string
	Value bool
}

func (SetFlag) actionNode() {}

// SetMetadata writes a metadata value. Numeric operands (expressions and
// shorthands) store a Num; raw operands retain their bool/string form.
type SetMetadata struct {
	Key   string
	Value Operand
}

func (SetMetadata) actionNode() {}

// applyAction runs a single action against the rule's working copy.
// This is the one canonical action-application routine: every action in
// the system resolves and writes through here.
//
// The operand is resolved against the state as already mutated by earlier
// actions of the same rule and earlier rules of the same pass.
func applyAction(a Action, s *world.State) error {
	switch act := a.(type) {
	case SetResource:
		v, err := resolveNumeric(act.Value, s.Resource(act.Name), s)
		if err != nil {
			return fmt.Errorf("set_resource %q: %w", act.Name, err)
		}
		s.SetResource(act.Name, v)
		return nil

	case SetMetric:
		v, err := resolveNumeric(act.Value, s.Metric(act.Name), s)
		if err != nil {
			return fmt.Errorf("set_metric %q: %w", act.Name, err)
		}
		s.SetMetric(act.Name, v)
		return nil

	case SetFlag:
		s.SetFlag(act.Name, act.Value)
		return nil

	case SetMetadata:
		if act.Value.Raw != nil {
			s.SetMetadata(act.Key, act.Value.Raw)
			return nil
		}
		current := world.AsNumber(s.MetadataValue(act.Key))
		v, err := resolveNumeric(act.Value, current, s)
		if err != nil {
			return fmt.Errorf("set_metadata %q: %w", act.Key, err)
		}
		s.SetMetadata(act.Key, world.Num(v))
		return nil

	default:
		return expr.NewError(expr.CodeUnknownAction, "unknown action type", fmt.Sprintf("%T", a))
	}
}

// resolveNumeric computes an operand's numeric value given the target
// field's current value (0 default for absent keys).
//
// The increment and multiply_by shorthands are recognized only here, at
// the top level of an action value; nested inside a formula they have no
// current value to resolve against and Evaluate treats them accordingly.
func resolveNumeric(op Operand, current float64, s *world.State) (float64, error) {
	switch e := op.Expr.(type) {
	case expr.Increment:
		return current + float64(e), nil
	case expr.MultiplyBy:
		return current * float64(e), nil
	case nil:
		return 0, expr.NewError(expr.CodeMissingField, "action missing value", "")
	default:
		return expr.Evaluate(op.Expr, s)
	}
}
