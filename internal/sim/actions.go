package sim

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/roach88/sibyl/internal/expr"
	"github.com/roach88/sibyl/internal/world"
)

// handler mutates a private copy of the state and returns a
// human-readable reason for the history log. The engine commits the
// copy only after constraint validation passes.
type handler func(s *world.State, params map[string]any, rng *rand.Rand) (string, error)

// actionRegistry maps action names to handlers. Registration order is
// irrelevant; dispatch is by exact name.
var actionRegistry = map[string]handler{
	"step":            stepAction,
	"set_resource":    setResourceAction,
	"adjust_resource": adjustResourceAction,
	"set_metric":      setMetricAction,
	"set_flag":        setFlagAction,
	"add_entity":      addEntityAction,
	"remove_entity":   removeEntityAction,
	"simulate_load":   simulateLoadAction,
}

// ActionNames returns the names of all registered actions.
func ActionNames() []string {
	names := make([]string, 0, len(actionRegistry))
	for name := range actionRegistry {
		names = append(names, name)
	}
	return names
}

func stepAction(s *world.State, _ map[string]any, _ *rand.Rand) (string, error) {
	before := s.Time
	s.Time++
	return fmt.Sprintf("advanced simulation time from %d to %d", before, s.Time), nil
}

func setResourceAction(s *world.State, params map[string]any, _ *rand.Rand) (string, error) {
	name, err := stringParam(params, "resource")
	if err != nil {
		return "", err
	}
	value, err := floatParam(params, "value")
	if err != nil {
		return "", err
	}
	old := s.Resource(name)
	s.SetResource(name, value)
	return fmt.Sprintf("set resource %q from %v to %v", name, old, value), nil
}

func adjustResourceAction(s *world.State, params map[string]any, _ *rand.Rand) (string, error) {
	name, err := stringParam(params, "resource")
	if err != nil {
		return "", err
	}
	delta, err := floatParam(params, "delta")
	if err != nil {
		return "", err
	}
	old := s.Resource(name)
	s.SetResource(name, old+delta)
	return fmt.Sprintf("adjusted resource %q by %v (from %v to %v)", name, delta, old, old+delta), nil
}

func setMetricAction(s *world.State, params map[string]any, _ *rand.Rand) (string, error) {
	name, err := stringParam(params, "metric")
	if err != nil {
		return "", err
	}
	value, err := floatParam(params, "value")
	if err != nil {
		return "", err
	}
	old := s.Metric(name)
	s.SetMetric(name, value)
	return fmt.Sprintf("set metric %q from %v to %v", name, old, value), nil
}

func setFlagAction(s *world.State, params map[string]any, _ *rand.Rand) (string, error) {
	name, err := stringParam(params, "flag")
	if err != nil {
		return "", err
	}
	raw, ok := params["value"]
	if !ok || raw == nil {
		return "", missingParam("set_flag", "value")
	}
	value, ok := raw.(bool)
	if !ok {
		return "", expr.NewError(expr.CodeMissingField, "set_flag parameter 'value' must be a boolean", fmt.Sprintf("%T", raw))
	}
	old := s.Flag(name)
	s.SetFlag(name, value)
	return fmt.Sprintf("set flag %q from %t to %t", name, old, value), nil
}

func addEntityAction(s *world.State, params map[string]any, _ *rand.Rand) (string, error) {
	id, err := stringParam(params, "entity_id")
	if err != nil {
		return "", err
	}
	data, ok := params["data"]
	if !ok || data == nil {
		return "", missingParam("add_entity", "data")
	}
	_, existed := s.Entities[id]
	s.Entities[id] = data
	if existed {
		return fmt.Sprintf("updated entity %q", id), nil
	}
	return fmt.Sprintf("added entity %q", id), nil
}

func removeEntityAction(s *world.State, params map[string]any, _ *rand.Rand) (string, error) {
	id, err := stringParam(params, "entity_id")
	if err != nil {
		return "", err
	}
	if _, ok := s.Entities[id]; !ok {
		return fmt.Sprintf("entity %q not found (no change)", id), nil
	}
	delete(s.Entities, id)
	return fmt.Sprintf("removed entity %q", id), nil
}

// simulateLoadAction models a load spike. The variance draw comes from
// the engine's seeded RNG, so identical seeds reproduce identical loads.
func simulateLoadAction(s *world.State, params map[string]any, rng *rand.Rand) (string, error) {
	loadFactor := optionalFloatParam(params, "load_factor", 1.0)
	variance := optionalFloatParam(params, "variance", 0.1)

	actual := loadFactor * (1 + uniform(rng, -variance, variance))

	cpuDelta := -10 * actual
	memDelta := -50 * actual

	cpu, ok := s.Resources["cpu_available"]
	if !ok {
		cpu = 100.0
	}
	mem, ok := s.Resources["memory_available"]
	if !ok {
		mem = 1000.0
	}
	s.SetResource("cpu_available", cpu+cpuDelta)
	s.SetResource("memory_available", mem+memDelta)
	s.SetMetric("load", actual)
	s.Time++

	return fmt.Sprintf("applied load factor %.2f (actual: %.2f), cpu: %.2f, memory: %.2f",
		loadFactor, actual, cpuDelta, memDelta), nil
}

// uniform draws from [lo, hi) using the engine's RNG.
func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func missingParam(action, key string) error {
	return expr.NewError(expr.CodeMissingField,
		fmt.Sprintf("%s requires parameter %q", action, key), action)
}

func stringParam(params map[string]any, key string) (string, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return "", expr.NewError(expr.CodeMissingField,
			fmt.Sprintf("parameter %q is required", key), key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", expr.NewError(expr.CodeMissingField,
			fmt.Sprintf("parameter %q must be a non-empty string", key), fmt.Sprintf("%v", raw))
	}
	return s, nil
}

func floatParam(params map[string]any, key string) (float64, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, expr.NewError(expr.CodeMissingField,
			fmt.Sprintf("parameter %q is required", key), key)
	}
	f, ok := asFloat(raw)
	if !ok {
		return 0, expr.NewError(expr.CodeMissingField,
			fmt.Sprintf("parameter %q must be numeric", key), fmt.Sprintf("%T", raw))
	}
	return f, nil
}

func optionalFloatParam(params map[string]any, key string, fallback float64) float64 {
	raw, ok := params[key]
	if !ok || raw == nil {
		return fallback
	}
	if f, ok := asFloat(raw); ok {
		return f
	}
	return fallback
}

// asFloat accepts the numeric shapes JSON and YAML decoders produce.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
