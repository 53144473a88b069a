// Package expr implements the formula language rules are written in.
//
// An Expression is a pure formula tree producing a float64 from a world
// State; a Condition is a pure predicate tree producing a bool. Both are
// closed tagged unions supplied as data (typically decoded from the JSON
// wire format), never as code.
//
// DETERMINISM:
//
// Evaluation is a plain recursive computation with no I/O, no hidden
// state, and no randomness. Children are evaluated left-to-right; for
// pure trees the order cannot change the boolean outcome, but it is kept
// fixed so floating-point rounding and error reporting are identical on
// every run. Every tree is finite, so evaluation always terminates in
// time proportional to tree size.
//
// ERRORS:
//
// All failures are deterministic data-validation errors (unknown tag,
// missing field, division by exact zero) carried as *Error values with a
// stable Code. They are never transient: the same tree and state fail the
// same way every time.
package expr
