package expr

import (
	"encoding/json"
	"fmt"
)

// Wire format tags for expressions. The persisted serialization contract:
// a tagged structural value with a required "type" discriminator. Unknown
// tags are rejected at decode time so malformed rule data fails fast with
// a clear location rather than deep in recursive evaluation.
const (
	tagValue      = "value"
	tagLiteral    = "literal" // accepted alias for tagValue
	tagResource   = "resource"
	tagMetric     = "metric"
	tagFlag       = "flag"
	tagMetadata   = "metadata"
	tagTime       = "time"
	tagAdd        = "add"
	tagSubtract   = "subtract"
	tagMultiply   = "multiply"
	tagDivide     = "divide"
	tagIncrement  = "increment"
	tagMultiplyBy = "multiply_by"
)

// Wire format tags for conditions.
const (
	tagAlways     = "always"
	tagComparison = "comparison"
	tagAnd        = "and"
	tagOr         = "or"
	tagNot        = "not"
)

// node is the raw decoded shape shared by every tagged variant.
type node struct {
	Type string `json:"type"`

	// value / increment / multiply_by payloads
	Value  *float64 `json:"value,omitempty"`
	Amount *float64 `json:"amount,omitempty"`
	Factor *float64 `json:"factor,omitempty"`

	// state reference payload
	Name string `json:"name,omitempty"`

	// composite expression payloads
	Operands    []json.RawMessage `json:"operands,omitempty"`
	Left        json.RawMessage   `json:"left,omitempty"`
	Right       json.RawMessage   `json:"right,omitempty"`
	Numerator   json.RawMessage   `json:"numerator,omitempty"`
	Denominator json.RawMessage   `json:"denominator,omitempty"`

	// condition payloads
	Operator   string            `json:"operator,omitempty"`
	Conditions []json.RawMessage `json:"conditions,omitempty"`
	Condition  json.RawMessage   `json:"condition,omitempty"`
}

// DecodeExpr parses the wire form of an expression.
//
// A bare JSON number is accepted as a Literal, matching how persisted
// rules spell constant operands. All other forms require the "type" tag.
func DecodeExpr(data []byte) (Expr, error) {
	if len(data) == 0 {
		return nil, NewError(CodeMissingField, "empty expression", "")
	}

	// Bare numeric literal shorthand.
	if data[0] != '{' {
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, NewError(CodeUnknownExpression, "expression must be an object or number", truncate(data))
		}
		return Literal(f), nil
	}

	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode expression: %w", err)
	}
	return decodeExprNode(n)
}

func decodeExprNode(n node) (Expr, error) {
	switch n.Type {
	case tagValue, tagLiteral:
		if n.Value == nil {
			return nil, NewError(CodeMissingField, "value expression requires 'value'", n.Type)
		}
		return Literal(*n.Value), nil

	case tagResource:
		if n.Name == "" {
			return nil, NewError(CodeMissingField, "resource reference requires 'name'", n.Type)
		}
		return ResourceRef(n.Name), nil

	case tagMetric:
		if n.Name == "" {
			return nil, NewError(CodeMissingField, "metric reference requires 'name'", n.Type)
		}
		return MetricRef(n.Name), nil

	case tagFlag:
		if n.Name == "" {
			return nil, NewError(CodeMissingField, "flag reference requires 'name'", n.Type)
		}
		return FlagRef(n.Name), nil

	case tagMetadata:
		if n.Name == "" {
			return nil, NewError(CodeMissingField, "metadata reference requires 'name'", n.Type)
		}
		return MetadataRef(n.Name), nil

	case tagTime:
		return TimeRef{}, nil

	case tagAdd:
		operands, err := decodeOperands(n.Operands, tagAdd)
		if err != nil {
			return nil, err
		}
		return Add(operands), nil

	case tagSubtract:
		left, err := decodeChild(n.Left, tagSubtract, "left")
		if err != nil {
			return nil, err
		}
		right, err := decodeChild(n.Right, tagSubtract, "right")
		if err != nil {
			return nil, err
		}
		return Subtract{Left: left, Right: right}, nil

	case tagMultiply:
		operands, err := decodeOperands(n.Operands, tagMultiply)
		if err != nil {
			return nil, err
		}
		return Multiply(operands), nil

	case tagDivide:
		num, err := decodeChild(n.Numerator, tagDivide, "numerator")
		if err != nil {
			return nil, err
		}
		den, err := decodeChild(n.Denominator, tagDivide, "denominator")
		if err != nil {
			return nil, err
		}
		return Divide{Numerator: num, Denominator: den}, nil

	case tagIncrement:
		if n.Amount == nil {
			return nil, NewError(CodeMissingField, "increment requires 'amount'", tagIncrement)
		}
		return Increment(*n.Amount), nil

	case tagMultiplyBy:
		if n.Factor == nil {
			return nil, NewError(CodeMissingField, "multiply_by requires 'factor'", tagMultiplyBy)
		}
		return MultiplyBy(*n.Factor), nil

	case "":
		return nil, NewError(CodeMissingField, "expression missing 'type'", "")

	default:
		return nil, NewError(CodeUnknownExpression, "unknown expression type", n.Type)
	}
}

func decodeOperands(raw []json.RawMessage, tag string) ([]Expr, error) {
	if raw == nil {
		return nil, NewError(CodeMissingField, tag+" requires 'operands'", tag)
	}
	operands := make([]Expr, len(raw))
	for i, r := range raw {
		child, err := DecodeExpr(r)
		if err != nil {
			return nil, fmt.Errorf("%s operand %d: %w", tag, i, err)
		}
		operands[i] = child
	}
	return operands, nil
}

func decodeChild(raw json.RawMessage, tag, field string) (Expr, error) {
	if raw == nil {
		return nil, NewError(CodeMissingField, tag+" requires '"+field+"'", tag)
	}
	child, err := DecodeExpr(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", tag, field, err)
	}
	return child, nil
}

// DecodeCondition parses the wire form of a condition.
func DecodeCondition(data []byte) (Condition, error) {
	if len(data) == 0 {
		return nil, NewError(CodeMissingField, "empty condition", "")
	}

	var n node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("decode condition: %w", err)
	}

	switch n.Type {
	case tagAlways:
		return Always{}, nil

	case tagComparison:
		if !ValidOperators[n.Operator] {
			if n.Operator == "" {
				return nil, NewError(CodeMissingField, "comparison requires 'operator'", tagComparison)
			}
			return nil, NewError(CodeUnknownCondition, "unknown comparison operator", n.Operator)
		}
		left, err := decodeChild(n.Left, tagComparison, "left")
		if err != nil {
			return nil, err
		}
		right, err := decodeChild(n.Right, tagComparison, "right")
		if err != nil {
			return nil, err
		}
		return Comparison{Left: left, Operator: n.Operator, Right: right}, nil

	case tagAnd, tagOr:
		if n.Conditions == nil {
			return nil, NewError(CodeMissingField, n.Type+" requires 'conditions'", n.Type)
		}
		children := make([]Condition, len(n.Conditions))
		for i, r := range n.Conditions {
			child, err := DecodeCondition(r)
			if err != nil {
				return nil, fmt.Errorf("%s condition %d: %w", n.Type, i, err)
			}
			children[i] = child
		}
		if n.Type == tagAnd {
			return And(children), nil
		}
		return Or(children), nil

	case tagNot:
		if n.Condition == nil {
			return nil, NewError(CodeMissingField, "not requires 'condition'", tagNot)
		}
		child, err := DecodeCondition(n.Condition)
		if err != nil {
			return nil, fmt.Errorf("not condition: %w", err)
		}
		return Not{Condition: child}, nil

	case "":
		return nil, NewError(CodeMissingField, "condition missing 'type'", "")

	default:
		return nil, NewError(CodeUnknownCondition, "unknown condition type", n.Type)
	}
}

func truncate(data []byte) string {
	const max = 40
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

// MarshalJSON emits the wire form of each expression variant. Encoding
// and decoding round-trip losslessly: a decoded tree re-encodes to an
// equivalent tagged value.

func (l Literal) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagValue, "value": float64(l)})
}

func (r ResourceRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagResource, "name": string(r)})
}

func (m MetricRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagMetric, "name": string(m)})
}

func (f FlagRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagFlag, "name": string(f)})
}

func (m MetadataRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagMetadata, "name": string(m)})
}

func (TimeRef) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagTime})
}

func (a Add) MarshalJSON() ([]byte, error) {
	return marshalComposite(tagAdd, []Expr(a))
}

func (s Subtract) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagSubtract, "left": s.Left, "right": s.Right})
}

func (m Multiply) MarshalJSON() ([]byte, error) {
	return marshalComposite(tagMultiply, []Expr(m))
}

func (d Divide) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":        tagDivide,
		"numerator":   d.Numerator,
		"denominator": d.Denominator,
	})
}

func (i Increment) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagIncrement, "amount": float64(i)})
}

func (m MultiplyBy) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagMultiplyBy, "factor": float64(m)})
}

func marshalComposite(tag string, operands []Expr) ([]byte, error) {
	return json.Marshal(map[string]any{"type": tag, "operands": operands})
}

// MarshalJSON emits the wire form of each condition variant.

func (Always) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagAlways})
}

func (c Comparison) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"type":     tagComparison,
		"left":     c.Left,
		"operator": c.Operator,
		"right":    c.Right,
	})
}

func (a And) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagAnd, "conditions": []Condition(a)})
}

func (o Or) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagOr, "conditions": []Condition(o)})
}

func (n Not) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"type": tagNot, "condition": n.Condition})
}
