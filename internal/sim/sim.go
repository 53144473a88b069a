package sim

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/roach88/sibyl/internal/expr"
	"github.com/roach88/sibyl/internal/rules"
	"github.com/roach88/sibyl/internal/world"
)

// Engine orchestrates a single simulation timeline.
//
// It owns the canonical state; all mutation goes through Apply. The
// engine is not safe for concurrent use — callers that share one
// across goroutines must serialize access themselves. Fork creates an
// independent engine that can be driven concurrently with its parent.
type Engine struct {
	state       *world.State
	rules       *rules.Engine
	constraints *ConstraintEngine
	history     []Event
	rng         *rand.Rand
	ids         IDGenerator
	logger      *slog.Logger
}

// Option configures an Engine at construction time.
type Option func(*engineConfig)

type engineConfig struct {
	seed   *int64
	state  *world.State
	ids    IDGenerator
	logger *slog.Logger
}

// WithSeed seeds the engine's RNG and records the seed on the state,
// making simulate_load variance reproducible.
func WithSeed(seed int64) Option {
	return func(c *engineConfig) { c.seed = &seed }
}

// WithState starts the engine from an existing state instead of a
// fresh one. The state is used as-is, not cloned.
func WithState(s *world.State) Option {
	return func(c *engineConfig) { c.state = s }
}

// WithIDGenerator overrides the event/simulation ID source.
// Tests use FixedIDs for deterministic history output.
func WithIDGenerator(g IDGenerator) Option {
	return func(c *engineConfig) { c.ids = g }
}

// WithLogger overrides the engine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *engineConfig) { c.logger = l }
}

// New creates an engine with a fresh state and records the creation
// event.
func New(opts ...Option) *Engine {
	cfg := engineConfig{
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	state := cfg.state
	if state == nil {
		state = world.New(cfg.ids.Generate(), cfg.seed)
	} else if cfg.seed != nil {
		state.Seed = cfg.seed
	}

	e := &Engine{
		state:       state,
		rules:       rules.NewEngine(),
		constraints: NewConstraintEngine(),
		rng:         newRNG(state.Seed),
		ids:         cfg.ids,
		logger:      cfg.logger,
	}

	e.addEvent(Event{
		Type:   EventSimulationCreated,
		Reason: fmt.Sprintf("simulation created with seed %s", seedString(state.Seed)),
	})

	e.logger.Info("simulation created",
		"simulation_id", state.SimulationID,
		"seed", seedString(state.Seed))

	return e
}

// Restore rebuilds an engine from persisted parts. Unlike New it
// records no creation event; the supplied history is adopted as-is.
// The RNG is reseeded from the state's seed, so a restored engine
// replays simulate_load variance from the beginning of its sequence.
func Restore(state *world.State, ruleSet []rules.Rule, history []Event, opts ...Option) *Engine {
	cfg := engineConfig{
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		state:       state,
		rules:       rules.NewEngine(),
		constraints: NewConstraintEngine(),
		history:     append([]Event(nil), history...),
		rng:         newRNG(state.Seed),
		ids:         cfg.ids,
		logger:      cfg.logger,
	}
	for _, r := range ruleSet {
		e.rules.AddRule(r)
	}
	return e
}

func newRNG(seed *int64) *rand.Rand {
	if seed != nil {
		return rand.New(rand.NewSource(*seed))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func seedString(seed *int64) string {
	if seed == nil {
		return "none"
	}
	return fmt.Sprintf("%d", *seed)
}

// State returns a deep copy of the canonical state.
func (e *Engine) State() *world.State {
	return e.state.Clone()
}

// Rules exposes the rule engine for registration and inspection.
func (e *Engine) Rules() *rules.Engine {
	return e.rules
}

// Constraints exposes the constraint engine for registration.
func (e *Engine) Constraints() *ConstraintEngine {
	return e.constraints
}

// Apply executes a named action against the simulation.
//
// The handler runs against a copy of the canonical state. If any
// constraint rejects the result, a constraint_violated event is
// recorded, the canonical state is untouched, and the Result reports
// the violations with Success false. For the step action the rule pass
// runs exactly once after constraint validation; a rule error aborts
// the whole apply with no commit and no event.
func (e *Engine) Apply(name string, params map[string]any) (*Result, error) {
	h, ok := actionRegistry[name]
	if !ok {
		return nil, expr.NewError(expr.CodeUnknownAction, "unknown action", name)
	}

	before := e.state
	candidate := e.state.Clone()

	reason, err := h(candidate, params, e.rng)
	if err != nil {
		e.logger.Error("action failed",
			"simulation_id", e.state.SimulationID,
			"action", name,
			"error", err)
		return nil, fmt.Errorf("apply %s: %w", name, err)
	}
	candidate.UpdatedAt = time.Now().UTC()

	if violations := e.constraints.Validate(before, candidate); len(violations) > 0 {
		ids := make([]string, len(violations))
		for i, v := range violations {
			ids[i] = v.ConstraintID
		}
		event := e.addEvent(Event{
			Type:                EventConstraintViolated,
			Action:              name,
			Params:              params,
			ConstraintsViolated: ids,
			Reason:              fmt.Sprintf("constraint violations: %s", strings.Join(ids, ", ")),
		})

		e.logger.Warn("constraint violated",
			"simulation_id", e.state.SimulationID,
			"action", name,
			"violations", ids)

		return &Result{
			Success:     false,
			EventID:     event.ID,
			StateBefore: before.Clone(),
			StateAfter:  before.Clone(),
			Delta:       map[string]world.FieldChange{},
			Violations:  violations,
			Reason:      reason,
		}, nil
	}

	var fired []string
	eventType := EventActionApplied
	if name == "step" {
		eventType = EventStepExecuted
		if e.rules.Count() > 0 {
			next, applied, err := e.rules.ApplyAll(candidate)
			if err != nil {
				e.logger.Error("rule pass failed",
					"simulation_id", e.state.SimulationID,
					"error", err)
				return nil, fmt.Errorf("apply %s: %w", name, err)
			}
			candidate = next
			fired = applied
			if len(fired) > 0 {
				reason += " | rules applied: " + strings.Join(fired, ", ")
			}
		}
	}

	delta := world.Delta(before, candidate)
	e.state = candidate

	event := e.addEvent(Event{
		Type:               eventType,
		Action:             name,
		Params:             params,
		Delta:              delta,
		ConstraintsChecked: e.constraints.IDs(),
		Reason:             reason,
	})

	e.logger.Info("action applied",
		"simulation_id", e.state.SimulationID,
		"action", name,
		"event_id", event.ID)

	return &Result{
		Success:     true,
		EventID:     event.ID,
		StateBefore: before.Clone(),
		StateAfter:  candidate.Clone(),
		Delta:       delta,
		FiredRules:  fired,
		Reason:      reason,
	}, nil
}

// Step advances the simulation one tick. Shorthand for Apply("step", nil).
func (e *Engine) Step() (*Result, error) {
	return e.Apply("step", nil)
}

// History returns the most recent events, oldest first. A limit of
// zero or less returns the whole log. The returned slice is a copy.
func (e *Engine) History(limit int) []Event {
	events := e.history
	if limit > 0 && limit < len(events) {
		events = events[len(events)-limit:]
	}
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// Event looks up a history event by ID.
func (e *Engine) Event(id string) (Event, bool) {
	for _, ev := range e.history {
		if ev.ID == id {
			return ev, true
		}
	}
	return Event{}, false
}

// Fork branches the timeline. The child gets a deep copy of the state
// under a new simulation ID, the parent's rules, constraints, and
// history, and an RNG reseeded from the original seed. The branch
// point is recorded in the child's metadata and history; the parent is
// untouched.
func (e *Engine) Fork() *Engine {
	childState := e.state.Clone()
	childState.SimulationID = e.ids.Generate()
	childState.SetMetadata("forked_from", world.Str(e.state.SimulationID))
	childState.SetMetadata("forked_at_time", world.Num(float64(e.state.Time)))

	childRules := rules.NewEngine()
	for _, r := range e.rules.Rules() {
		childRules.AddRule(r)
	}
	childConstraints := NewConstraintEngine()
	for _, c := range e.constraints.Constraints() {
		childConstraints.Add(c)
	}

	child := &Engine{
		state:       childState,
		rules:       childRules,
		constraints: childConstraints,
		history:     append([]Event(nil), e.history...),
		rng:         newRNG(e.state.Seed),
		ids:         e.ids,
		logger:      e.logger,
	}

	child.addEvent(Event{
		Type: EventTimelineForked,
		Reason: fmt.Sprintf("forked from simulation %s at time %d",
			e.state.SimulationID, e.state.Time),
	})

	e.logger.Info("simulation forked",
		"parent_id", e.state.SimulationID,
		"child_id", childState.SimulationID,
		"time", e.state.Time)

	return child
}

// Reset discards state and history and starts a fresh timeline under a
// new simulation ID. Registered rules and constraints survive the
// reset.
func (e *Engine) Reset(seed *int64) {
	oldID := e.state.SimulationID
	e.state = world.New(e.ids.Generate(), seed)
	e.rng = newRNG(seed)
	e.history = nil

	e.addEvent(Event{
		Type:   EventSimulationReset,
		Reason: fmt.Sprintf("simulation reset with seed %s", seedString(seed)),
	})

	e.logger.Info("simulation reset",
		"old_simulation_id", oldID,
		"new_simulation_id", e.state.SimulationID,
		"seed", seedString(seed))
}

func (e *Engine) addEvent(ev Event) Event {
	ev.ID = e.ids.Generate()
	ev.Timestamp = time.Now().UTC()
	e.history = append(e.history, ev)
	return ev
}
