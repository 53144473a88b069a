// Package sim orchestrates simulations: it owns the canonical world
// state and applies named actions to it under constraint validation,
// recording every outcome in an append-only history log.
//
// All mutation flows through Engine.Apply. A handler executes against a
// copy of the current state; the copy becomes canonical only if every
// constraint passes and, for the step action, the rule pass succeeds.
// A rejected or failed action leaves the canonical state untouched.
//
// Determinism: given the same seed, rule set, and action sequence, two
// engines produce byte-identical state fingerprints. Randomness
// (simulate_load variance) comes exclusively from the engine's seeded
// RNG; wall-clock timestamps appear only on history events and never
// feed back into state.
package sim
