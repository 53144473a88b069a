package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "smoke.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "smoke", sc.Name)
	require.Len(t, sc.Steps, 1)
	assert.Equal(t, "step", sc.Steps[0].Action)
	require.Len(t, sc.Rules, 1)
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
steps:
  - action: step
assertion:
  - type: time_is
`))
	require.Error(t, err, "singular 'assertion' is a typo for 'assertions'")
}

func TestParseScenario_Validation(t *testing.T) {
	testCases := []struct {
		name string
		src  string
	}{
		{"missing name", "steps:\n  - action: step\n"},
		{"no steps", "name: empty\n"},
		{"step without action", "name: s\nsteps:\n  - params: {}\n"},
		{"unknown assertion type", "name: s\nsteps:\n  - action: step\nassertions:\n  - type: nope\n"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tc.src))
			require.Error(t, err)
		})
	}
}

func TestRun_Smoke(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "smoke.yaml"))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 1)
	assert.Equal(t, []string{"fill_cpu"}, result.Trace[0].Fired)
	assert.Equal(t, 42.0, result.FinalState.Resource("cpu"))
}

func TestRun_ConstraintRejection(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "overload-guard.yaml"))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	require.Len(t, result.Trace, 2)
	assert.False(t, result.Trace[0].OK)
	assert.Equal(t, []string{"non_negative_resource_budget"}, result.Trace[0].Violations)
	assert.True(t, result.Trace[1].OK)
	assert.Equal(t, 50.0, result.FinalState.Resource("budget"))
}

func TestRun_PriorityCascade(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: cascade
description: High-priority rule raises cpu; low-priority alarm sees it same pass.
rules:
  - rule_id: spike
    priority: 100
    condition:
      type: always
    actions:
      - type: set_resource
        resource: cpu
        value:
          type: value
          value: 95
  - rule_id: alarm
    priority: 50
    condition:
      type: comparison
      left:
        type: resource
        name: cpu
      operator: ">"
      right:
        type: value
        value: 80
    actions:
      - type: set_flag
        flag: overloaded
        value: true
steps:
  - action: step
    expect:
      fired: [spike, alarm]
assertions:
  - type: flag_is
    flag: overloaded
    value: true
  - type: fired_rules
    rules: [spike, alarm]
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_ExpectMismatchFails(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: mismatch
steps:
  - action: step
    expect:
      fired: [ghost_rule]
assertions:
  - type: time_is
    time: 99
`))
	require.NoError(t, err)

	result, err := Run(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 2)
}

func TestRun_Deterministic(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: load-replay
seed: 7
steps:
  - action: simulate_load
    params:
      load_factor: 2
  - action: simulate_load
`))
	require.NoError(t, err)

	first, err := Run(sc)
	require.NoError(t, err)
	second, err := Run(sc)
	require.NoError(t, err)

	require.Len(t, first.Trace, 2)
	assert.Equal(t, first.Trace, second.Trace, "same seed, same trace")
}

func TestRun_StepErrorAborts(t *testing.T) {
	sc, err := ParseScenario([]byte(`
name: broken
steps:
  - action: set_resource
    params:
      resource: cpu
`))
	require.NoError(t, err)

	_, err = Run(sc)
	require.Error(t, err, "missing value param is a run error, not a failed assertion")
}

func TestRunWithGolden_Smoke(t *testing.T) {
	sc, err := LoadScenario(filepath.Join("testdata", "scenarios", "smoke.yaml"))
	require.NoError(t, err)
	require.NoError(t, RunWithGolden(t, sc))
}
