package world

import (
	"time"
)

// SchemaVersion identifies the state schema for persisted snapshots.
const SchemaVersion = "v1"

// State is a snapshot of the simulated world at a point in logical time.
//
// INVARIANT: a State handed to an evaluator is never mutated in place.
// Every mutation path goes Clone() -> mutate -> commit, so an old State
// value remains a consistent snapshot forever (fork/rollback is just
// keeping a reference).
type State struct {
	SchemaVersion string `json:"schema_version"`

	SimulationID string    `json:"simulation_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Seed         *int64    `json:"seed,omitempty"`

	// Time is the logical step counter. Monotonically non-decreasing
	// within an engine's lifetime; advanced only by the step action.
	Time int64 `json:"time"`

	Entities  map[string]any     `json:"entities"`
	Metrics   map[string]float64 `json:"metrics"`
	Resources map[string]float64 `json:"resources"`
	Flags     map[string]bool    `json:"flags"`
	Metadata  Metadata           `json:"metadata"`
}

// New creates an empty State with the given simulation ID and seed.
func New(simulationID string, seed *int64) *State {
	now := time.Now().UTC()
	return &State{
		SchemaVersion: SchemaVersion,
		SimulationID:  simulationID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Seed:          seed,
		Entities:      make(map[string]any),
		Metrics:       make(map[string]float64),
		Resources:     make(map[string]float64),
		Flags:         make(map[string]bool),
		Metadata:      make(Metadata),
	}
}

// Resource returns the named resource, or 0.0 if absent.
func (s *State) Resource(name string) float64 {
	return s.Resources[name]
}

// Metric returns the named metric, or 0.0 if absent.
func (s *State) Metric(name string) float64 {
	return s.Metrics[name]
}

// Flag returns the named flag, or false if absent.
func (s *State) Flag(name string) bool {
	return s.Flags[name]
}

// MetadataValue returns the named metadata value, or Num(0) if absent.
func (s *State) MetadataValue(name string) Value {
	return s.Metadata.Get(name)
}

// SetResource writes a resource value, creating the key on first write.
func (s *State) SetResource(name string, v float64) {
	s.Resources[name] = v
}

// SetMetric writes a metric value, creating the key on first write.
func (s *State) SetMetric(name string, v float64) {
	s.Metrics[name] = v
}

// SetFlag writes a flag value, creating the key on first write.
func (s *State) SetFlag(name string, v bool) {
	s.Flags[name] = v
}

// SetMetadata writes a metadata value, creating the key on first write.
func (s *State) SetMetadata(key string, v Value) {
	s.Metadata[key] = v
}

// Clone returns a deep copy of the state.
// The copy shares nothing with the original; mutating one never affects
// the other. Entities are deep-copied structurally (maps, slices, scalars).
func (s *State) Clone() *State {
	seed := s.Seed
	if seed != nil {
		v := *seed
		seed = &v
	}

	clone := &State{
		SchemaVersion: s.SchemaVersion,
		SimulationID:  s.SimulationID,
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
		Seed:          seed,
		Time:          s.Time,
		Entities:      make(map[string]any, len(s.Entities)),
		Metrics:       make(map[string]float64, len(s.Metrics)),
		Resources:     make(map[string]float64, len(s.Resources)),
		Flags:         make(map[string]bool, len(s.Flags)),
		Metadata:      make(Metadata, len(s.Metadata)),
	}

	for k, v := range s.Entities {
		clone.Entities[k] = cloneAny(v)
	}
	for k, v := range s.Metrics {
		clone.Metrics[k] = v
	}
	for k, v := range s.Resources {
		clone.Resources[k] = v
	}
	for k, v := range s.Flags {
		clone.Flags[k] = v
	}
	for k, v := range s.Metadata {
		clone.Metadata[k] = v // Values are immutable scalars
	}

	return clone
}

// cloneAny deep-copies an arbitrary JSON-shaped value.
// Scalars are returned as-is; maps and slices are copied recursively.
func cloneAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, elem := range val {
			m[k] = cloneAny(elem)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, elem := range val {
			s[i] = cloneAny(elem)
		}
		return s
	default:
		return val
	}
}
