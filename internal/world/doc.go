// Package world provides the simulation state data model.
//
// This package contains the State snapshot and its supporting types. All
// other internal packages import world; world imports nothing internal.
// This keeps the state model the foundational layer with no circular
// dependencies.
//
// Key design constraints:
//   - A State is never mutated in place once handed to an evaluator.
//     Mutation is copy-then-mutate via Clone(), so concurrent readers
//     never observe partial writes and forking a timeline is just
//     retaining an old value.
//   - Missing-key reads are total: resources and metrics default to 0.0,
//     flags to false, metadata to Num(0). Reads never allocate.
//   - Logical time (State.Time) is the only clock the evaluation core
//     reads. Wall-clock fields exist for operator visibility and are
//     excluded from deltas and fingerprints.
package world
