package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/sibyl/internal/rules"
	"github.com/roach88/sibyl/internal/sim"
	"github.com/roach88/sibyl/internal/world"
)

// ErrNotFound reports that no simulation with the requested name exists.
var ErrNotFound = errors.New("simulation not found")

// SimulationInfo summarizes a saved simulation without loading it.
type SimulationInfo struct {
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	SimulationID string    `json:"simulation_id"`
	Seed         *int64    `json:"seed,omitempty"`
	Time         int64     `json:"time"`
	RuleCount    int       `json:"rule_count"`
	EventCount   int       `json:"event_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// LoadSimulation rebuilds a runnable engine from a saved simulation:
// state snapshot, rule set in saved order, and history log.
func (s *Store) LoadSimulation(ctx context.Context, name string, opts ...sim.Option) (*sim.Engine, error) {
	var stateJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM simulations WHERE name = ?`, name,
	).Scan(&stateJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load simulation %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load simulation: %w", err)
	}

	var state world.State
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return nil, fmt.Errorf("load simulation: unmarshal state: %w", err)
	}

	ruleSet, err := s.loadRules(ctx, name)
	if err != nil {
		return nil, err
	}

	history, err := s.loadEvents(ctx, name)
	if err != nil {
		return nil, err
	}

	return sim.Restore(&state, ruleSet, history, opts...), nil
}

func (s *Store) loadRules(ctx context.Context, name string) ([]rules.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rule FROM sim_rules WHERE sim_name = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("load simulation: query rules: %w", err)
	}
	defer rows.Close()

	var out []rules.Rule
	for rows.Next() {
		var ruleJSON string
		if err := rows.Scan(&ruleJSON); err != nil {
			return nil, fmt.Errorf("load simulation: scan rule: %w", err)
		}
		r, err := rules.DecodeRule([]byte(ruleJSON))
		if err != nil {
			return nil, fmt.Errorf("load simulation: decode rule: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) loadEvents(ctx context.Context, name string) ([]sim.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT event FROM sim_events WHERE sim_name = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("load simulation: query events: %w", err)
	}
	defer rows.Close()

	var out []sim.Event
	for rows.Next() {
		var eventJSON string
		if err := rows.Scan(&eventJSON); err != nil {
			return nil, fmt.Errorf("load simulation: scan event: %w", err)
		}
		var ev sim.Event
		if err := json.Unmarshal([]byte(eventJSON), &ev); err != nil {
			return nil, fmt.Errorf("load simulation: unmarshal event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// ListSimulations returns summaries of all saved simulations, most
// recently updated first.
func (s *Store) ListSimulations(ctx context.Context) ([]SimulationInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.name, s.description, s.simulation_id, s.seed, s.state,
		       s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM sim_rules r WHERE r.sim_name = s.name),
		       (SELECT COUNT(*) FROM sim_events e WHERE e.sim_name = s.name)
		FROM simulations s
		ORDER BY s.updated_at DESC, s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("list simulations: %w", err)
	}
	defer rows.Close()

	var infos []SimulationInfo
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, fmt.Errorf("list simulations: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Exists reports whether a simulation with the given name is saved.
func (s *Store) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM simulations WHERE name = ?`, name,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists: %w", err)
	}
	return true, nil
}

// SimulationInfo returns the summary for one saved simulation.
func (s *Store) SimulationInfo(ctx context.Context, name string) (SimulationInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.name, s.description, s.simulation_id, s.seed, s.state,
		       s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM sim_rules r WHERE r.sim_name = s.name),
		       (SELECT COUNT(*) FROM sim_events e WHERE e.sim_name = s.name)
		FROM simulations s
		WHERE s.name = ?
	`, name)

	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SimulationInfo{}, fmt.Errorf("simulation info %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return SimulationInfo{}, fmt.Errorf("simulation info: %w", err)
	}
	return info, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (SimulationInfo, error) {
	var (
		info      SimulationInfo
		seed      sql.NullInt64
		stateJSON string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&info.Name, &info.Description, &info.SimulationID, &seed,
		&stateJSON, &createdAt, &updatedAt, &info.RuleCount, &info.EventCount)
	if err != nil {
		return SimulationInfo{}, err
	}

	if seed.Valid {
		info.Seed = &seed.Int64
	}

	// Logical time lives inside the state snapshot.
	var state struct {
		Time int64 `json:"time"`
	}
	if err := json.Unmarshal([]byte(stateJSON), &state); err != nil {
		return SimulationInfo{}, fmt.Errorf("unmarshal state: %w", err)
	}
	info.Time = state.Time

	if info.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return SimulationInfo{}, fmt.Errorf("parse created_at: %w", err)
	}
	if info.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return SimulationInfo{}, fmt.Errorf("parse updated_at: %w", err)
	}
	return info, nil
}
