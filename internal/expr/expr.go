package expr

// Expr is a sealed interface representing one node of a formula tree.
// Only the variant types in this file implement it. Expressions are
// immutable data; construct them once and share freely.
type Expr interface {
	exprNode() // Sealed - only these types implement it
}

// Literal is a constant number.
type Literal float64

func (Literal) exprNode() {}

// ResourceRef reads a named resource; absent keys read as 0.0.
type ResourceRef string

func (ResourceRef) exprNode() {}

// MetricRef reads a named metric; absent keys read as 0.0.
type MetricRef string

func (MetricRef) exprNode() {}

// FlagRef reads a named flag as 1.0/0.0; absent keys read as 0.0.
type FlagRef string

func (FlagRef) exprNode() {}

// MetadataRef reads a named metadata value coerced to a number;
// absent keys read as 0.
type MetadataRef string

func (MetadataRef) exprNode() {}

// TimeRef reads the logical time counter.
type TimeRef struct{}

func (TimeRef) exprNode() {}

// Add sums its operands left-to-right.
type Add []Expr

func (Add) exprNode() {}

// Subtract computes Left - Right.
type Subtract struct {
	Left  Expr
	Right Expr
}

func (Subtract) exprNode() {}

// Multiply computes the product of its operands left-to-right,
// starting from 1.0.
type Multiply []Expr

func (Multiply) exprNode() {}

// Divide computes Numerator / Denominator.
// A denominator of exactly 0 fails with DivisionByZero.
type Divide struct {
	Numerator   Expr
	Denominator Expr
}

func (Divide) exprNode() {}

// Increment is the action-value shorthand "current value + Amount".
// Valid only as the top-level value of an action; the rule layer supplies
// the current field value.
type Increment float64

func (Increment) exprNode() {}

// MultiplyBy is the action-value shorthand "current value * Factor".
// Valid only as the top-level value of an action.
type MultiplyBy float64

func (MultiplyBy) exprNode() {}
