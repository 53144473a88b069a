package world

import "reflect"

// FieldChange records a single top-level field transition in a Delta.
// Exactly one of the three shapes is populated:
//   - Before+After for a changed field
//   - Added for a field that appeared
//   - Removed for a field that disappeared
type FieldChange struct {
	Before  any  `json:"before,omitempty"`
	After   any  `json:"after,omitempty"`
	Added   any  `json:"added,omitempty"`
	Removed any  `json:"removed,omitempty"`
	changed bool // distinguishes Before/After zero values from unset
}

// Changed reports whether this entry is a before/after transition.
func (c FieldChange) Changed() bool { return c.changed }

// Delta computes the per-field difference between two states.
// Comparison is at top-level field granularity (time, resources, metrics,
// flags, metadata, entities, seed, simulation_id). UpdatedAt and CreatedAt
// are excluded so deltas stay deterministic across runs.
func Delta(before, after *State) map[string]FieldChange {
	b := comparableFields(before)
	a := comparableFields(after)

	delta := make(map[string]FieldChange)

	for key, av := range a {
		bv, ok := b[key]
		if !ok {
			delta[key] = FieldChange{Added: av}
			continue
		}
		if !reflect.DeepEqual(bv, av) {
			delta[key] = FieldChange{Before: bv, After: av, changed: true}
		}
	}
	for key, bv := range b {
		if _, ok := a[key]; !ok {
			delta[key] = FieldChange{Removed: bv}
		}
	}

	return delta
}

// comparableFields projects a State onto the fields that participate in
// delta computation. Wall-clock timestamps are deliberately absent.
func comparableFields(s *State) map[string]any {
	if s == nil {
		return map[string]any{}
	}
	fields := map[string]any{
		"schema_version": s.SchemaVersion,
		"simulation_id":  s.SimulationID,
		"time":           s.Time,
		"entities":       s.Entities,
		"metrics":        s.Metrics,
		"resources":      s.Resources,
		"flags":          s.Flags,
		"metadata":       s.Metadata,
	}
	if s.Seed != nil {
		fields["seed"] = *s.Seed
	}
	return fields
}
