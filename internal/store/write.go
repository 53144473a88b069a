package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/sibyl/internal/sim"
)

// SaveSimulation upserts a simulation under the given name: the state
// snapshot, the rule set in engine order, and the full history log.
// Saving over an existing name replaces its rules and events entirely.
//
// Constraints are not persisted; they are code-level configuration the
// caller re-registers after load.
func (s *Store) SaveSimulation(ctx context.Context, name, description string, e *sim.Engine) error {
	if name == "" {
		return fmt.Errorf("save simulation: name is required")
	}

	state := e.State()
	stateJSON, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("save simulation: marshal state: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save simulation: begin: %w", err)
	}
	defer tx.Rollback()

	var seed sql.NullInt64
	if state.Seed != nil {
		seed = sql.NullInt64{Int64: *state.Seed, Valid: true}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO simulations (name, description, simulation_id, seed, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			simulation_id = excluded.simulation_id,
			seed = excluded.seed,
			state = excluded.state,
			updated_at = excluded.updated_at
	`, name, description, state.SimulationID, seed, string(stateJSON), now, now)
	if err != nil {
		return fmt.Errorf("save simulation: upsert: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sim_rules WHERE sim_name = ?`, name); err != nil {
		return fmt.Errorf("save simulation: clear rules: %w", err)
	}
	for i, r := range e.Rules().Rules() {
		ruleJSON, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("save simulation: marshal rule %s: %w", r.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sim_rules (sim_name, position, rule_id, rule)
			VALUES (?, ?, ?, ?)
		`, name, i, r.ID, string(ruleJSON))
		if err != nil {
			return fmt.Errorf("save simulation: insert rule %s: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM sim_events WHERE sim_name = ?`, name); err != nil {
		return fmt.Errorf("save simulation: clear events: %w", err)
	}
	for i, ev := range e.History(0) {
		eventJSON, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("save simulation: marshal event %s: %w", ev.ID, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sim_events (sim_name, seq, event_id, event)
			VALUES (?, ?, ?, ?)
		`, name, i, ev.ID, string(eventJSON))
		if err != nil {
			return fmt.Errorf("save simulation: insert event %s: %w", ev.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save simulation: commit: %w", err)
	}
	return nil
}

// DeleteSimulation removes a saved simulation and its rules and events.
// Deleting a name that does not exist returns ErrNotFound.
func (s *Store) DeleteSimulation(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM simulations WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete simulation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete simulation: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete simulation %q: %w", name, ErrNotFound)
	}
	return nil
}
