// Package harness runs declarative conformance scenarios against the
// simulation engine.
//
// A scenario is a YAML document: rules, optional constraints, an
// initial state, a sequence of actions with per-step expectations, and
// final-state assertions. Each run builds a fresh engine under a fixed
// simulation ID so traces and fingerprints are reproducible for golden
// comparison.
package harness

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/sibyl/internal/rules"
	"github.com/roach88/sibyl/internal/sim"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name and the fixed simulation ID.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description,omitempty"`

	// Seed fixes the engine RNG. Scenarios using simulate_load should
	// set it or their traces will not be reproducible.
	Seed *int64 `yaml:"seed,omitempty"`

	// Rules are inline rule definitions in wire-format field names.
	Rules []map[string]any `yaml:"rules,omitempty"`

	// Constraints to register before the first step.
	Constraints []ConstraintDef `yaml:"constraints,omitempty"`

	// Initial populates the state before the first step.
	Initial InitialState `yaml:"initial,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// InitialState seeds the world before any step runs.
type InitialState struct {
	Resources map[string]float64 `yaml:"resources,omitempty"`
	Metrics   map[string]float64 `yaml:"metrics,omitempty"`
	Flags     map[string]bool    `yaml:"flags,omitempty"`
	Metadata  map[string]any     `yaml:"metadata,omitempty"`
	Entities  map[string]any     `yaml:"entities,omitempty"`
}

// ConstraintDef declares a constraint in YAML.
// Types: non_negative_resource, max_resource, time_monotonic.
type ConstraintDef struct {
	Type     string  `yaml:"type"`
	Resource string  `yaml:"resource,omitempty"`
	Max      float64 `yaml:"max,omitempty"`
}

// Step applies one action, optionally validating its outcome.
type Step struct {
	Action string         `yaml:"action"`
	Params map[string]any `yaml:"params,omitempty"`
	Expect *Expect        `yaml:"expect,omitempty"`
}

// Expect validates a single step's result. All set fields must match.
type Expect struct {
	// OK asserts the action committed (true) or was rejected by a
	// constraint (false). Unset means no check.
	OK *bool `yaml:"ok,omitempty"`

	// Violations asserts the exact constraint IDs that rejected the step.
	Violations []string `yaml:"violations,omitempty"`

	// Fired asserts the exact rules fired by this step, in order.
	Fired []string `yaml:"fired,omitempty"`
}

// Assertion validates the final state or the trace.
type Assertion struct {
	// Type selects the check: resource_equals, metric_equals, flag_is,
	// metadata_equals, time_is, fired_rules, trace_contains.
	Type string `yaml:"type"`

	Resource string `yaml:"resource,omitempty"`
	Metric   string `yaml:"metric,omitempty"`
	Flag     string `yaml:"flag,omitempty"`
	Key      string `yaml:"key,omitempty"`

	// Value is the expected value for the *_equals / flag_is checks.
	Value any `yaml:"value,omitempty"`

	// Time is the expected logical time for time_is.
	Time int64 `yaml:"time,omitempty"`

	// Rules is the full ordered fired-rule list for fired_rules,
	// concatenated across all steps.
	Rules []string `yaml:"rules,omitempty"`

	// Event is the history event type for trace_contains.
	Event string `yaml:"event,omitempty"`
}

// Assertion type constants.
const (
	AssertResourceEquals = "resource_equals"
	AssertMetricEquals   = "metric_equals"
	AssertFlagIs         = "flag_is"
	AssertMetadataEquals = "metadata_equals"
	AssertTimeIs         = "time_is"
	AssertFiredRules     = "fired_rules"
	AssertTraceContains  = "trace_contains"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields
// (typos like "assertion:" for "assertions:") are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}
	for i, step := range s.Steps {
		if step.Action == "" {
			return fmt.Errorf("steps[%d]: action is required", i)
		}
	}
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertResourceEquals, AssertMetricEquals, AssertFlagIs,
			AssertMetadataEquals, AssertTimeIs, AssertFiredRules,
			AssertTraceContains:
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}

// compileRules converts the scenario's inline rule maps through the
// wire codec. YAML and JSON rule bodies are field-for-field identical.
func compileRules(defs []map[string]any) ([]rules.Rule, error) {
	out := make([]rules.Rule, 0, len(defs))
	for i, def := range defs {
		data, err := json.Marshal(def)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		r, err := rules.DecodeRule(data)
		if err != nil {
			return nil, fmt.Errorf("rules[%d]: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func buildConstraints(defs []ConstraintDef) ([]sim.Constraint, error) {
	out := make([]sim.Constraint, 0, len(defs))
	for i, def := range defs {
		switch def.Type {
		case "non_negative_resource":
			if def.Resource == "" {
				return nil, fmt.Errorf("constraints[%d]: resource is required", i)
			}
			out = append(out, sim.NonNegativeResource{Resource: def.Resource})
		case "max_resource":
			if def.Resource == "" {
				return nil, fmt.Errorf("constraints[%d]: resource is required", i)
			}
			out = append(out, sim.MaxResource{Resource: def.Resource, Max: def.Max})
		case "time_monotonic":
			out = append(out, sim.TimeMonotonic{})
		default:
			return nil, fmt.Errorf("constraints[%d]: unknown type %q", i, def.Type)
		}
	}
	return out, nil
}
