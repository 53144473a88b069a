package sim

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sibyl/internal/expr"
	"github.com/roach88/sibyl/internal/rules"
	"github.com/roach88/sibyl/internal/world"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	return New(append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func TestNew_RecordsCreationEvent(t *testing.T) {
	e := newTestEngine(t, WithSeed(42))

	history := e.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, EventSimulationCreated, history[0].Type)
	assert.NotEmpty(t, history[0].ID)

	s := e.State()
	require.NotNil(t, s.Seed)
	assert.Equal(t, int64(42), *s.Seed)
	assert.Equal(t, int64(0), s.Time)
}

func TestApply_Step(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Step()
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(1), res.StateAfter.Time)
	assert.Equal(t, int64(1), e.State().Time)

	change, ok := res.Delta["time"]
	require.True(t, ok)
	assert.True(t, change.Changed())
}

func TestApply_SetAndAdjustResource(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Apply("set_resource", map[string]any{"resource": "servers", "value": 5.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, e.State().Resource("servers"))

	_, err = e.Apply("adjust_resource", map[string]any{"resource": "servers", "delta": -2.0})
	require.NoError(t, err)
	assert.Equal(t, 3.0, e.State().Resource("servers"))

	// int params work too
	_, err = e.Apply("adjust_resource", map[string]any{"resource": "servers", "delta": 1})
	require.NoError(t, err)
	assert.Equal(t, 4.0, e.State().Resource("servers"))
}

func TestApply_SetMetricAndFlag(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Apply("set_metric", map[string]any{"metric": "error_rate", "value": 0.05})
	require.NoError(t, err)
	assert.Equal(t, 0.05, e.State().Metric("error_rate"))

	_, err = e.Apply("set_flag", map[string]any{"flag": "alarm", "value": true})
	require.NoError(t, err)
	assert.True(t, e.State().Flag("alarm"))

	_, err = e.Apply("set_flag", map[string]any{"flag": "alarm", "value": "yes"})
	require.Error(t, err, "flag value must be a boolean")
}

func TestApply_Entities(t *testing.T) {
	e := newTestEngine(t)

	res, err := e.Apply("add_entity", map[string]any{
		"entity_id": "web-1",
		"data":      map[string]any{"role": "frontend"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Reason, "added")
	assert.Contains(t, e.State().Entities, "web-1")

	res, err = e.Apply("add_entity", map[string]any{
		"entity_id": "web-1",
		"data":      map[string]any{"role": "backend"},
	})
	require.NoError(t, err)
	assert.Contains(t, res.Reason, "updated")

	_, err = e.Apply("remove_entity", map[string]any{"entity_id": "web-1"})
	require.NoError(t, err)
	assert.NotContains(t, e.State().Entities, "web-1")

	// removing a missing entity succeeds with no change
	res, err = e.Apply("remove_entity", map[string]any{"entity_id": "ghost"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Contains(t, res.Reason, "not found")
}

func TestApply_MissingParams(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Apply("set_resource", map[string]any{"value": 1.0})
	require.Error(t, err)
	assert.True(t, expr.IsMissingField(err))

	_, err = e.Apply("set_resource", map[string]any{"resource": "cpu"})
	require.Error(t, err)
	assert.True(t, expr.IsMissingField(err))
}

func TestApply_UnknownAction(t *testing.T) {
	e := newTestEngine(t)

	_, err := e.Apply("teleport", nil)
	require.Error(t, err)
	assert.True(t, expr.IsUnknownAction(err))
	assert.Len(t, e.History(0), 1, "failed dispatch leaves no trace beyond creation")
}

func TestApply_ConstraintViolationRollsBack(t *testing.T) {
	e := newTestEngine(t)
	e.Constraints().Add(NonNegativeResource{Resource: "budget"})

	_, err := e.Apply("set_resource", map[string]any{"resource": "budget", "value": 100.0})
	require.NoError(t, err)

	res, err := e.Apply("adjust_resource", map[string]any{"resource": "budget", "delta": -150.0})
	require.NoError(t, err, "a rejection is a result, not an error")
	assert.False(t, res.Success)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "non_negative_resource_budget", res.Violations[0].ConstraintID)
	assert.Empty(t, res.Delta)

	assert.Equal(t, 100.0, e.State().Resource("budget"), "canonical state untouched")

	history := e.History(0)
	last := history[len(history)-1]
	assert.Equal(t, EventConstraintViolated, last.Type)
	assert.Equal(t, []string{"non_negative_resource_budget"}, last.ConstraintsViolated)
}

func TestApply_TimeMonotonicAcceptsStep(t *testing.T) {
	e := newTestEngine(t)
	e.Constraints().Add(TimeMonotonic{})

	res, err := e.Step()
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = e.Apply("set_resource", map[string]any{"resource": "x", "value": 1.0})
	require.NoError(t, err)
	assert.True(t, res.Success, "non-step actions keep time constant, which passes")
}

func TestStep_RunsRulePassOnce(t *testing.T) {
	e := newTestEngine(t)
	e.Rules().AddRule(rules.Rule{
		ID:        "error_drift",
		Condition: expr.Always{},
		Actions: []rules.Action{
			rules.SetMetric{Name: "error_rate", Value: rules.ExprOperand(expr.Increment(0.01))},
		},
	})

	_, err := e.Apply("set_metric", map[string]any{"metric": "error_rate", "value": 0.01})
	require.NoError(t, err)

	res, err := e.Step()
	require.NoError(t, err)
	assert.Equal(t, []string{"error_drift"}, res.FiredRules)
	assert.InDelta(t, 0.02, e.State().Metric("error_rate"), 1e-12)

	res, err = e.Step()
	require.NoError(t, err)
	assert.Equal(t, []string{"error_drift"}, res.FiredRules)
	assert.InDelta(t, 0.03, e.State().Metric("error_rate"), 1e-12)

	history := e.History(2)
	assert.Equal(t, EventStepExecuted, history[0].Type)
	assert.Equal(t, EventStepExecuted, history[1].Type)
}

func TestStep_RulesDoNotRunForOtherActions(t *testing.T) {
	e := newTestEngine(t)
	e.Rules().AddRule(rules.Rule{
		ID:        "drift",
		Condition: expr.Always{},
		Actions: []rules.Action{
			rules.SetMetric{Name: "drift", Value: rules.ExprOperand(expr.Increment(1))},
		},
	})

	res, err := e.Apply("set_resource", map[string]any{"resource": "cpu", "value": 10.0})
	require.NoError(t, err)
	assert.Empty(t, res.FiredRules)
	assert.Equal(t, 0.0, e.State().Metric("drift"))
}

func TestStep_RuleErrorAbortsWithNoCommit(t *testing.T) {
	e := newTestEngine(t)
	e.Rules().AddRule(rules.Rule{
		ID:        "bad_math",
		Condition: expr.Always{},
		Actions: []rules.Action{
			rules.SetMetric{Name: "ratio", Value: rules.ExprOperand(expr.Divide{
				Numerator:   expr.Literal(1),
				Denominator: expr.Literal(0),
			})},
		},
	})

	eventsBefore := len(e.History(0))
	_, err := e.Step()
	require.Error(t, err)
	assert.True(t, expr.IsDivisionByZero(err))
	assert.Equal(t, int64(0), e.State().Time, "time advance rolled back with the rule pass")
	assert.Len(t, e.History(0), eventsBefore, "no event for an aborted apply")
}

func TestSimulateLoad_Deterministic(t *testing.T) {
	ids := func() *FixedIDs {
		return NewFixedIDs("sim-1", "ev-1", "ev-2", "ev-3")
	}

	run := func() string {
		e := newTestEngine(t, WithSeed(7), WithIDGenerator(ids()))
		_, err := e.Apply("simulate_load", map[string]any{"load_factor": 2.0})
		require.NoError(t, err)
		_, err = e.Apply("simulate_load", nil)
		require.NoError(t, err)
		fp, err := world.Fingerprint(e.State())
		require.NoError(t, err)
		return fp
	}

	assert.Equal(t, run(), run(), "same seed and inputs, same fingerprint")
}

func TestSimulateLoad_ZeroVarianceIsExact(t *testing.T) {
	e := newTestEngine(t, WithSeed(1))

	_, err := e.Apply("simulate_load", map[string]any{"load_factor": 1.0, "variance": 0.0})
	require.NoError(t, err)

	s := e.State()
	assert.InDelta(t, 90.0, s.Resource("cpu_available"), 1e-12)
	assert.InDelta(t, 950.0, s.Resource("memory_available"), 1e-12)
	assert.InDelta(t, 1.0, s.Metric("load"), 1e-12)
	assert.Equal(t, int64(1), s.Time)
}

func TestFork_BranchesTimeline(t *testing.T) {
	parent := newTestEngine(t, WithSeed(3))
	parent.Rules().AddRule(rules.Rule{ID: "r1", Condition: expr.Always{}})
	parent.Constraints().Add(TimeMonotonic{})

	_, err := parent.Apply("set_resource", map[string]any{"resource": "gold", "value": 10.0})
	require.NoError(t, err)

	child := parent.Fork()

	parentState := parent.State()
	childState := child.State()
	assert.NotEqual(t, parentState.SimulationID, childState.SimulationID)
	assert.Equal(t, world.Str(parentState.SimulationID), childState.MetadataValue("forked_from"))
	assert.Equal(t, world.Num(0), childState.MetadataValue("forked_at_time"))
	assert.Equal(t, 10.0, childState.Resource("gold"))
	assert.Equal(t, 1, child.Rules().Count())
	assert.Equal(t, []string{"time_monotonic"}, child.Constraints().IDs())

	childHistory := child.History(0)
	assert.Equal(t, EventTimelineForked, childHistory[len(childHistory)-1].Type)

	// Timelines diverge independently.
	_, err = child.Apply("set_resource", map[string]any{"resource": "gold", "value": 99.0})
	require.NoError(t, err)
	assert.Equal(t, 10.0, parent.State().Resource("gold"))
	assert.Equal(t, 99.0, child.State().Resource("gold"))
}

func TestReset_KeepsRulesAndConstraints(t *testing.T) {
	e := newTestEngine(t, WithSeed(5))
	e.Rules().AddRule(rules.Rule{ID: "keep_me", Condition: expr.Always{}})
	e.Constraints().Add(TimeMonotonic{})

	_, err := e.Apply("set_resource", map[string]any{"resource": "cpu", "value": 1.0})
	require.NoError(t, err)
	oldID := e.State().SimulationID

	seed := int64(8)
	e.Reset(&seed)

	s := e.State()
	assert.NotEqual(t, oldID, s.SimulationID)
	assert.Empty(t, s.Resources)
	assert.Equal(t, int64(0), s.Time)
	require.NotNil(t, s.Seed)
	assert.Equal(t, int64(8), *s.Seed)

	history := e.History(0)
	require.Len(t, history, 1)
	assert.Equal(t, EventSimulationReset, history[0].Type)

	assert.Equal(t, 1, e.Rules().Count())
	assert.Equal(t, []string{"time_monotonic"}, e.Constraints().IDs())
}

func TestHistoryLimitAndLookup(t *testing.T) {
	e := newTestEngine(t)
	for i := 0; i < 3; i++ {
		_, err := e.Step()
		require.NoError(t, err)
	}

	all := e.History(0)
	require.Len(t, all, 4) // creation + 3 steps

	last2 := e.History(2)
	require.Len(t, last2, 2)
	assert.Equal(t, all[2].ID, last2[0].ID)
	assert.Equal(t, all[3].ID, last2[1].ID)

	ev, ok := e.Event(all[1].ID)
	require.True(t, ok)
	assert.Equal(t, all[1].Type, ev.Type)

	_, ok = e.Event("no-such-event")
	assert.False(t, ok)
}
