package rules

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/sibyl/internal/expr"
	"github.com/roach88/sibyl/internal/world"
)

// Action wire tags.
const (
	tagSetResource = "set_resource"
	tagSetMetric   = "set_metric"
	tagSetFlag     = "set_flag"
	tagSetMetadata = "set_metadata"
)

// ruleWire is the persisted form of a Rule.
type ruleWire struct {
	RuleID      string            `json:"rule_id"`
	Condition   json.RawMessage   `json:"condition"`
	Actions     []json.RawMessage `json:"actions"`
	Priority    int               `json:"priority"`
	Description string            `json:"description"`
}

// actionWire is the persisted form of an Action.
type actionWire struct {
	Type     string          `json:"type"`
	Resource string          `json:"resource,omitempty"`
	Metric   string          `json:"metric,omitempty"`
	Flag     string          `json:"flag,omitempty"`
	Key      string          `json:"key,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// DecodeRule parses the wire form of a rule. Unknown tags and missing
// required fields are rejected here, at construction time, rather than
// deep in evaluation.
func DecodeRule(data []byte) (Rule, error) {
	var w ruleWire
	if err := json.Unmarshal(data, &w); err != nil {
		return Rule{}, fmt.Errorf("decode rule: %w", err)
	}

	if w.RuleID == "" {
		return Rule{}, expr.NewError(expr.CodeMissingField, "rule requires 'rule_id'", "")
	}
	if w.Condition == nil {
		return Rule{}, expr.NewError(expr.CodeMissingField, "rule requires 'condition'", w.RuleID)
	}

	cond, err := expr.DecodeCondition(w.Condition)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %q: %w", w.RuleID, err)
	}

	actions := make([]Action, len(w.Actions))
	for i, raw := range w.Actions {
		a, err := DecodeAction(raw)
		if err != nil {
			return Rule{}, fmt.Errorf("rule %q action %d: %w", w.RuleID, i, err)
		}
		actions[i] = a
	}

	return Rule{
		ID:          w.RuleID,
		Condition:   cond,
		Actions:     actions,
		Priority:    w.Priority,
		Description: w.Description,
	}, nil
}

// DecodeRules parses a JSON array of rules.
func DecodeRules(data []byte) ([]Rule, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	out := make([]Rule, len(raw))
	for i, r := range raw {
		rule, err := DecodeRule(r)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		out[i] = rule
	}
	return out, nil
}

// DecodeAction parses the wire form of an action.
func DecodeAction(data []byte) (Action, error) {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	switch w.Type {
	case tagSetResource:
		if w.Resource == "" {
			return nil, expr.NewError(expr.CodeMissingField, "set_resource requires 'resource'", w.Type)
		}
		op, err := decodeNumericOperand(w.Value, w.Type)
		if err != nil {
			return nil, err
		}
		return SetResource{Name: w.Resource, Value: op}, nil

	case tagSetMetric:
		if w.Metric == "" {
			return nil, expr.NewError(expr.CodeMissingField, "set_metric requires 'metric'", w.Type)
		}
		op, err := decodeNumericOperand(w.Value, w.Type)
		if err != nil {
			return nil, err
		}
		return SetMetric{Name: w.Metric, Value: op}, nil

	case tagSetFlag:
		if w.Flag == "" {
			return nil, expr.NewError(expr.CodeMissingField, "set_flag requires 'flag'", w.Type)
		}
		if w.Value == nil {
			return nil, expr.NewError(expr.CodeMissingField, "set_flag requires 'value'", w.Type)
		}
		var b bool
		if err := json.Unmarshal(w.Value, &b); err != nil {
			// Flags take a literal boolean only, never an expression.
			return nil, expr.NewError(expr.CodeMissingField, "set_flag value must be a boolean literal", string(w.Value))
		}
		return SetFlag{Name: w.Flag, Value: b}, nil

	case tagSetMetadata:
		if w.Key == "" {
			return nil, expr.NewError(expr.CodeMissingField, "set_metadata requires 'key'", w.Type)
		}
		op, err := decodeMetadataOperand(w.Value)
		if err != nil {
			return nil, err
		}
		return SetMetadata{Key: w.Key, Value: op}, nil

	case "":
		return nil, expr.NewError(expr.CodeMissingField, "action missing 'type'", "")

	default:
		return nil, expr.NewError(expr.CodeUnknownAction, "unknown action type", w.Type)
	}
}

// decodeNumericOperand decodes the value of a resource/metric action:
// an expression tree, a numeric shorthand, or a bare number.
func decodeNumericOperand(raw json.RawMessage, tag string) (Operand, error) {
	if raw == nil {
		return Operand{}, expr.NewError(expr.CodeMissingField, tag+" requires 'value'", tag)
	}
	e, err := expr.DecodeExpr(raw)
	if err != nil {
		return Operand{}, err
	}
	return ExprOperand(e), nil
}

// decodeMetadataOperand decodes the value of a set_metadata action.
// Raw bool/string scalars are retained as-is; numbers and tagged objects
// decode as expressions.
func decodeMetadataOperand(raw json.RawMessage) (Operand, error) {
	if raw == nil {
		return Operand{}, expr.NewError(expr.CodeMissingField, "set_metadata requires 'value'", tagSetMetadata)
	}

	switch raw[0] {
	case '"', 't', 'f':
		v, err := world.UnmarshalValue(raw)
		if err != nil {
			return Operand{}, fmt.Errorf("set_metadata value: %w", err)
		}
		return RawOperand(v), nil
	default:
		e, err := expr.DecodeExpr(raw)
		if err != nil {
			return Operand{}, err
		}
		return ExprOperand(e), nil
	}
}

// MarshalJSON emits the wire form of a Rule.
func (r Rule) MarshalJSON() ([]byte, error) {
	actions := make([]json.RawMessage, len(r.Actions))
	for i, a := range r.Actions {
		data, err := EncodeAction(a)
		if err != nil {
			return nil, fmt.Errorf("rule %q action %d: %w", r.ID, i, err)
		}
		actions[i] = data
	}

	return json.Marshal(ruleWire{
		RuleID:      r.ID,
		Condition:   mustMarshal(r.Condition),
		Actions:     actions,
		Priority:    r.Priority,
		Description: r.Description,
	})
}

// EncodeAction emits the wire form of an Action.
func EncodeAction(a Action) ([]byte, error) {
	switch act := a.(type) {
	case SetResource:
		return json.Marshal(map[string]any{
			"type": tagSetResource, "resource": act.Name, "value": operandJSON(act.Value),
		})
	case SetMetric:
		return json.Marshal(map[string]any{
			"type": tagSetMetric, "metric": act.Name, "value": operandJSON(act.Value),
		})
	case SetFlag:
		return json.Marshal(map[string]any{
			"type": tagSetFlag, "flag": act.Name, "value": act.Value,
		})
	case SetMetadata:
		return json.Marshal(map[string]any{
			"type": tagSetMetadata, "key": act.Key, "value": operandJSON(act.Value),
		})
	default:
		return nil, expr.NewError(expr.CodeUnknownAction, "unknown action type", fmt.Sprintf("%T", a))
	}
}

func operandJSON(op Operand) any {
	if op.Raw != nil {
		return op.Raw
	}
	return op.Expr
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Condition variants marshal infallibly; reaching here means a
		// programming error, not bad input.
		panic(err)
	}
	return data
}
