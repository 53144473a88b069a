package world

import (
	"encoding/json"
	"fmt"
)

// Value is a sealed interface for metadata values.
// Only Num, Bool, and Str implement it. Metadata holds free-form scalars
// (counters, labels, switches); nested structures belong in Entities.
type Value interface {
	value() // Sealed - only these types implement it
}

// Num is a numeric metadata value.
type Num float64

func (Num) value() {}

// Bool is a boolean metadata value.
type Bool bool

func (Bool) value() {}

// Str is a string metadata value.
type Str string

func (Str) value() {}

// AsNumber coerces a metadata value to a float64 for use in expressions.
// Num yields itself, Bool yields 1/0, Str yields 0. A nil Value (absent
// key) yields 0. Coercion is total: expression evaluation over metadata
// never fails on type grounds.
func AsNumber(v Value) float64 {
	switch val := v.(type) {
	case Num:
		return float64(val)
	case Bool:
		if val {
			return 1.0
		}
		return 0.0
	default:
		return 0.0
	}
}

// Metadata maps names to scalar Values.
type Metadata map[string]Value

// Get returns the value for name, or Num(0) if absent.
func (m Metadata) Get(name string) Value {
	if v, ok := m[name]; ok {
		return v
	}
	return Num(0)
}

// MarshalJSON implements json.Marshaler for Num.
func (n Num) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(n))
}

// MarshalJSON implements json.Marshaler for Bool.
func (b Bool) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(b))
}

// MarshalJSON implements json.Marshaler for Str.
func (s Str) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler for Metadata.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = make(Metadata, len(raw))
	for k, v := range raw {
		val, err := UnmarshalValue(v)
		if err != nil {
			return fmt.Errorf("metadata key %q: %w", k, err)
		}
		(*m)[k] = val
	}
	return nil
}

// UnmarshalValue decodes a JSON scalar into a Value.
// Arrays, objects, and null are rejected: metadata holds scalars only.
func UnmarshalValue(data []byte) (Value, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return Str(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return Bool(b), nil

	case 'n':
		return nil, fmt.Errorf("null is not a valid metadata value")

	case '[', '{':
		return nil, fmt.Errorf("metadata values must be scalars (number, boolean, or string)")

	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return Num(f), nil
	}
}

// ToValue converts a plain Go scalar into a Value.
// Used when ingesting dynamically-typed data (YAML scenarios, CLI params).
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return Str(val), nil
	case float64:
		return Num(val), nil
	case float32:
		return Num(float64(val)), nil
	case int:
		return Num(float64(val)), nil
	case int64:
		return Num(float64(val)), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return Num(f), nil
	default:
		return nil, fmt.Errorf("unsupported metadata value type: %T", v)
	}
}

// ValueToAny converts a Value back to a plain Go scalar.
func ValueToAny(v Value) any {
	switch val := v.(type) {
	case Num:
		return float64(val)
	case Bool:
		return bool(val)
	case Str:
		return string(val)
	default:
		return nil
	}
}
