// Package rules implements declarative rules and the engine that applies
// them.
//
// A Rule is a named, prioritized (condition, action-list) pair. The
// Engine holds rules sorted by priority (descending, insertion order as
// the stable tie-break) and applies them in one deterministic pass per
// step.
//
// CRITICAL PATTERNS:
//
// Running-state evaluation:
// During a pass, each rule's condition is evaluated against the state as
// already mutated by earlier rules in the same pass. This is what lets
// chained derivations (compute frequency -> compute fitness -> update
// population) work within one step, and it makes rule order semantically
// significant, not a scheduling nicety.
//
// Atomic rule commit:
// Rule.Apply works on an internal copy that is only returned on success.
// If any action fails, the copy is discarded: all actions of a rule
// commit, or none do.
//
// Fail-fast pass:
// Any evaluator or action error aborts the entire pass. No partial pass
// result is ever returned; the caller commits nothing for that step.
package rules
