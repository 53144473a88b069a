package expr

import (
	"fmt"

	"github.com/roach88/sibyl/internal/world"
)

// Condition is a sealed interface representing one node of a predicate
// tree. Only the variant types in this file implement it.
type Condition interface {
	condNode() // Sealed - only these types implement it
}

// Always is the condition that is always true.
type Always struct{}

func (Always) condNode() {}

// Comparison compares two numeric expressions.
// Operators: > >= < <= == != . Equality is exact float64 equality with
// no tolerance; callers needing fuzzy equality encode it as a subtract
// plus a threshold comparison.
type Comparison struct {
	Left     Expr
	Operator string
	Right    Expr
}

func (Comparison) condNode() {}

// And is true iff every child condition is true.
type And []Condition

func (And) condNode() {}

// Or is true iff any child condition is true.
type Or []Condition

func (Or) condNode() {}

// Not negates its child condition.
type Not struct {
	Condition Condition
}

func (Not) condNode() {}

// Comparison operators accepted on the wire and by EvalCondition.
var ValidOperators = map[string]bool{
	">": true, ">=": true, "<": true, "<=": true, "==": true, "!=": true,
}

// EvalCondition recursively computes the boolean value of a condition
// against a state snapshot. Total and pure, like Evaluate.
//
// Children are evaluated left-to-right with short-circuiting. Because
// evaluation is pure, short-circuiting cannot change the outcome; the
// fixed order keeps error reporting deterministic.
func EvalCondition(c Condition, s *world.State) (bool, error) {
	switch node := c.(type) {
	case Always:
		return true, nil

	case Comparison:
		left, err := Evaluate(node.Left, s)
		if err != nil {
			return false, err
		}
		right, err := Evaluate(node.Right, s)
		if err != nil {
			return false, err
		}

		switch node.Operator {
		case ">":
			return left > right, nil
		case ">=":
			return left >= right, nil
		case "<":
			return left < right, nil
		case "<=":
			return left <= right, nil
		case "==":
			return left == right, nil
		case "!=":
			return left != right, nil
		default:
			return false, NewError(CodeUnknownCondition, "unknown comparison operator", node.Operator)
		}

	case And:
		for _, child := range node {
			ok, err := EvalCondition(child, s)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil

	case Or:
		for _, child := range node {
			ok, err := EvalCondition(child, s)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil

	case Not:
		ok, err := EvalCondition(node.Condition, s)
		if err != nil {
			return false, err
		}
		return !ok, nil

	default:
		return false, NewError(CodeUnknownCondition, "unknown condition type", fmt.Sprintf("%T", c))
	}
}
