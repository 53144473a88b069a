package expr

import (
	"fmt"

	"github.com/roach88/sibyl/internal/world"
)

// Evaluate recursively computes the numeric value of an expression
// against a state snapshot. It is total and pure: no mutation, no I/O,
// and the same inputs always produce the same output or the same error.
//
// The Increment and MultiplyBy shorthands resolve against a current
// value of 0 here; when they appear as an action value the rules package
// supplies the field's current value instead of calling Evaluate.
func Evaluate(e Expr, s *world.State) (float64, error) {
	switch node := e.(type) {
	case Literal:
		return float64(node), nil

	case ResourceRef:
		return s.Resource(string(node)), nil

	case MetricRef:
		return s.Metric(string(node)), nil

	case FlagRef:
		if s.Flag(string(node)) {
			return 1.0, nil
		}
		return 0.0, nil

	case MetadataRef:
		return world.AsNumber(s.MetadataValue(string(node))), nil

	case TimeRef:
		return float64(s.Time), nil

	case Add:
		sum := 0.0
		for _, operand := range node {
			v, err := Evaluate(operand, s)
			if err != nil {
				return 0, err
			}
			sum += v
		}
		return sum, nil

	case Subtract:
		left, err := Evaluate(node.Left, s)
		if err != nil {
			return 0, err
		}
		right, err := Evaluate(node.Right, s)
		if err != nil {
			return 0, err
		}
		return left - right, nil

	case Multiply:
		product := 1.0
		for _, operand := range node {
			v, err := Evaluate(operand, s)
			if err != nil {
				return 0, err
			}
			product *= v
		}
		return product, nil

	case Divide:
		num, err := Evaluate(node.Numerator, s)
		if err != nil {
			return 0, err
		}
		den, err := Evaluate(node.Denominator, s)
		if err != nil {
			return 0, err
		}
		// Exact equality: no epsilon. Callers needing tolerance encode it.
		if den == 0 {
			return 0, NewError(CodeDivisionByZero, "division by zero", "")
		}
		return num / den, nil

	case Increment:
		return float64(node), nil

	case MultiplyBy:
		return 0.0, nil

	default:
		// Construction-time validation rejects unknown tags; this is the
		// fallback for malformed trees built programmatically.
		return 0, NewError(CodeUnknownExpression, "unknown expression type", fmt.Sprintf("%T", e))
	}
}
