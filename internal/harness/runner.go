package harness

import (
	"fmt"
	"io"
	"log/slog"
	"reflect"

	"github.com/roach88/sibyl/internal/sim"
	"github.com/roach88/sibyl/internal/world"
)

// StepTrace records one step's observable outcome. Fingerprints give
// golden files full state coverage without embedding the state itself.
type StepTrace struct {
	Step        int      `json:"step"`
	Action      string   `json:"action"`
	OK          bool     `json:"ok"`
	Fired       []string `json:"fired,omitempty"`
	Violations  []string `json:"violations,omitempty"`
	Fingerprint string   `json:"fingerprint"`
}

// Result is the outcome of running a scenario.
type Result struct {
	Pass       bool
	Errors     []string
	Trace      []StepTrace
	FinalState *world.State
	History    []sim.Event
}

func (r *Result) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
	r.Pass = false
}

// Run executes a scenario against a fresh engine.
//
// The engine gets a fixed simulation ID derived from the scenario name,
// so two runs of the same scenario produce identical traces. A step
// rejected by constraints is not an error; a step that fails outright
// (unknown action, bad params, rule error) aborts the run.
func Run(scenario *Scenario) (*Result, error) {
	ruleSet, err := compileRules(scenario.Rules)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	constraints, err := buildConstraints(scenario.Constraints)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	state := world.New("scenario:"+scenario.Name, scenario.Seed)
	for k, v := range scenario.Initial.Resources {
		state.SetResource(k, v)
	}
	for k, v := range scenario.Initial.Metrics {
		state.SetMetric(k, v)
	}
	for k, v := range scenario.Initial.Flags {
		state.SetFlag(k, v)
	}
	for k, v := range scenario.Initial.Metadata {
		value, err := world.ToValue(v)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: initial metadata %q: %w", scenario.Name, k, err)
		}
		state.SetMetadata(k, value)
	}
	for k, v := range scenario.Initial.Entities {
		state.Entities[k] = v
	}

	engine := sim.New(
		sim.WithState(state),
		sim.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	for _, r := range ruleSet {
		engine.Rules().AddRule(r)
	}
	for _, c := range constraints {
		engine.Constraints().Add(c)
	}

	result := &Result{Pass: true}
	var allFired []string

	for i, step := range scenario.Steps {
		res, err := engine.Apply(step.Action, step.Params)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: step %d (%s): %w", scenario.Name, i+1, step.Action, err)
		}

		fp, err := world.Fingerprint(engine.State())
		if err != nil {
			return nil, fmt.Errorf("scenario %s: step %d: %w", scenario.Name, i+1, err)
		}

		trace := StepTrace{
			Step:        i + 1,
			Action:      step.Action,
			OK:          res.Success,
			Fired:       res.FiredRules,
			Fingerprint: fp,
		}
		for _, v := range res.Violations {
			trace.Violations = append(trace.Violations, v.ConstraintID)
		}
		result.Trace = append(result.Trace, trace)
		allFired = append(allFired, res.FiredRules...)

		checkExpect(result, i+1, step.Expect, trace)
	}

	result.FinalState = engine.State()
	result.History = engine.History(0)

	evaluateAssertions(result, scenario.Assertions, allFired)
	return result, nil
}

func checkExpect(result *Result, step int, expect *Expect, trace StepTrace) {
	if expect == nil {
		return
	}
	if expect.OK != nil && *expect.OK != trace.OK {
		result.addError("step %d: expected ok=%t, got ok=%t", step, *expect.OK, trace.OK)
	}
	if expect.Violations != nil && !reflect.DeepEqual(expect.Violations, trace.Violations) {
		result.addError("step %d: expected violations %v, got %v", step, expect.Violations, trace.Violations)
	}
	if expect.Fired != nil && !reflect.DeepEqual(expect.Fired, trace.Fired) {
		result.addError("step %d: expected fired %v, got %v", step, expect.Fired, trace.Fired)
	}
}

func evaluateAssertions(result *Result, assertions []Assertion, allFired []string) {
	s := result.FinalState
	for i, a := range assertions {
		switch a.Type {
		case AssertResourceEquals:
			want, ok := toFloat(a.Value)
			if !ok {
				result.addError("assertions[%d]: value must be numeric", i)
				continue
			}
			if got := s.Resource(a.Resource); got != want {
				result.addError("resource %q = %v, want %v", a.Resource, got, want)
			}
		case AssertMetricEquals:
			want, ok := toFloat(a.Value)
			if !ok {
				result.addError("assertions[%d]: value must be numeric", i)
				continue
			}
			if got := s.Metric(a.Metric); got != want {
				result.addError("metric %q = %v, want %v", a.Metric, got, want)
			}
		case AssertFlagIs:
			want, ok := a.Value.(bool)
			if !ok {
				result.addError("assertions[%d]: value must be a boolean", i)
				continue
			}
			if got := s.Flag(a.Flag); got != want {
				result.addError("flag %q = %t, want %t", a.Flag, got, want)
			}
		case AssertMetadataEquals:
			want, err := world.ToValue(a.Value)
			if err != nil {
				result.addError("assertions[%d]: %v", i, err)
				continue
			}
			if got := s.MetadataValue(a.Key); got != want {
				result.addError("metadata %q = %v, want %v", a.Key, got, want)
			}
		case AssertTimeIs:
			if s.Time != a.Time {
				result.addError("time = %d, want %d", s.Time, a.Time)
			}
		case AssertFiredRules:
			if !reflect.DeepEqual(a.Rules, allFired) {
				result.addError("fired rules = %v, want %v", allFired, a.Rules)
			}
		case AssertTraceContains:
			found := false
			for _, ev := range result.History {
				if string(ev.Type) == a.Event {
					found = true
					break
				}
			}
			if !found {
				result.addError("trace does not contain event %q", a.Event)
			}
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
