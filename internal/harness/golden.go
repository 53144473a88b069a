package harness

import (
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/sibyl/internal/world"
)

// snapshotBytes serializes a scenario trace with canonical JSON so
// golden files are byte-stable across runs and platforms.
func snapshotBytes(scenario *Scenario, result *Result) ([]byte, error) {
	traceList := make([]any, len(result.Trace))
	for i, step := range result.Trace {
		entry := map[string]any{
			"step":        step.Step,
			"action":      step.Action,
			"ok":          step.OK,
			"fingerprint": step.Fingerprint,
		}
		if len(step.Fired) > 0 {
			entry["fired"] = toAnySlice(step.Fired)
		}
		if len(step.Violations) > 0 {
			entry["violations"] = toAnySlice(step.Violations)
		}
		traceList[i] = entry
	}

	return world.MarshalCanonical(map[string]any{
		"scenario": scenario.Name,
		"trace":    traceList,
	})
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		return fmt.Errorf("scenario %s failed: %v", scenario.Name, result.Errors)
	}

	data, err := snapshotBytes(scenario, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)

	return nil
}
