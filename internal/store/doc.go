// Package store persists simulations in SQLite.
//
// A saved simulation is its state snapshot, its rule set in engine
// order, and its full history log, keyed by a caller-chosen name.
// LoadSimulation rebuilds a runnable engine from those three parts.
//
// The database runs in WAL mode with NORMAL synchronous and foreign
// keys on. Schema lives in the embedded schema.sql; incremental
// migrations are tracked via PRAGMA user_version.
package store
