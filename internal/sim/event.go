package sim

import (
	"time"

	"github.com/roach88/sibyl/internal/world"
)

// EventType classifies history events.
type EventType string

const (
	EventSimulationCreated  EventType = "simulation_created"
	EventSimulationReset    EventType = "simulation_reset"
	EventActionApplied      EventType = "action_applied"
	EventStepExecuted       EventType = "step_executed"
	EventTimelineForked     EventType = "timeline_forked"
	EventConstraintViolated EventType = "constraint_violated"
)

// Event is one record in the append-only history log.
//
// Timestamp is wall-clock bookkeeping only; it never feeds back into
// simulation state or fingerprints.
type Event struct {
	ID                  string                      `json:"event_id"`
	Timestamp           time.Time                   `json:"timestamp"`
	Type                EventType                   `json:"event_type"`
	Action              string                      `json:"action_name,omitempty"`
	Params              map[string]any              `json:"params,omitempty"`
	Delta               map[string]world.FieldChange `json:"state_delta,omitempty"`
	ConstraintsChecked  []string                    `json:"constraints_checked,omitempty"`
	ConstraintsViolated []string                    `json:"constraints_violated,omitempty"`
	Reason              string                      `json:"reason,omitempty"`
}

// Result reports the outcome of Engine.Apply.
type Result struct {
	Success     bool
	EventID     string
	StateBefore *world.State
	StateAfter  *world.State
	Delta       map[string]world.FieldChange
	Violations  []Violation
	FiredRules  []string
	Reason      string
}
