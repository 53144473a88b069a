package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sibyl/internal/world"
)

// Test helper to build a state with a few populated fields.
func makeTestState() *world.State {
	s := world.New("sim-test", nil)
	s.SetResource("cpu", 85)
	s.SetResource("servers", 4)
	s.SetMetric("error_rate", 0.01)
	s.SetFlag("burnout", true)
	s.SetMetadata("high_cpu_duration", world.Num(3))
	s.Time = 7
	return s
}

func TestEvaluate_Leaves(t *testing.T) {
	s := makeTestState()

	testCases := []struct {
		name string
		expr Expr
		want float64
	}{
		{"literal", Literal(42.5), 42.5},
		{"resource", ResourceRef("cpu"), 85},
		{"missing resource defaults to zero", ResourceRef("nope"), 0},
		{"metric", MetricRef("error_rate"), 0.01},
		{"missing metric defaults to zero", MetricRef("nope"), 0},
		{"flag true reads as one", FlagRef("burnout"), 1},
		{"missing flag reads as zero", FlagRef("nope"), 0},
		{"metadata", MetadataRef("high_cpu_duration"), 3},
		{"missing metadata defaults to zero", MetadataRef("nope"), 0},
		{"time", TimeRef{}, 7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.expr, s)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluate_Arithmetic(t *testing.T) {
	s := makeTestState()

	testCases := []struct {
		name string
		expr Expr
		want float64
	}{
		{"add", Add{Literal(1), Literal(2), Literal(3)}, 6},
		{"add empty is zero", Add{}, 0},
		{"subtract", Subtract{Left: Literal(10), Right: Literal(4)}, 6},
		{"multiply", Multiply{Literal(2), Literal(3), Literal(4)}, 24},
		{"multiply empty is one", Multiply{}, 1},
		{"divide", Divide{Numerator: Literal(100), Denominator: Literal(4)}, 25},
		{"nested", Multiply{
			Divide{Numerator: ResourceRef("cpu"), Denominator: Literal(100)},
			Literal(2),
		}, 1.7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Evaluate(tc.expr, s)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestEvaluate_DivisionByZero(t *testing.T) {
	s := makeTestState()

	_, err := Evaluate(Divide{Numerator: Literal(1), Denominator: Literal(0)}, s)
	require.Error(t, err)
	assert.True(t, IsDivisionByZero(err))

	// Denominator that evaluates to zero through a reference.
	_, err = Evaluate(Divide{Numerator: Literal(1), Denominator: ResourceRef("nope")}, s)
	assert.True(t, IsDivisionByZero(err))
}

func TestEvaluate_ErrorPropagatesFromNestedOperand(t *testing.T) {
	s := makeTestState()

	bad := Add{
		Literal(1),
		Divide{Numerator: Literal(1), Denominator: Literal(0)},
	}
	_, err := Evaluate(bad, s)
	assert.True(t, IsDivisionByZero(err))
}

func TestEvaluate_UnknownVariant(t *testing.T) {
	_, err := Evaluate(nil, makeTestState())
	require.Error(t, err)
	assert.True(t, IsUnknownExpression(err))
}

func TestEvaluate_Shorthands(t *testing.T) {
	s := makeTestState()

	// Standalone evaluation resolves against a current value of 0.
	got, err := Evaluate(Increment(0.5), s)
	require.NoError(t, err)
	assert.Equal(t, 0.5, got)

	got, err = Evaluate(MultiplyBy(3), s)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}

func TestEvaluate_IsPure(t *testing.T) {
	s := makeTestState()
	fpBefore, err := world.Fingerprint(s)
	require.NoError(t, err)

	_, err = Evaluate(Add{ResourceRef("cpu"), MetricRef("error_rate"), TimeRef{}}, s)
	require.NoError(t, err)

	fpAfter, err := world.Fingerprint(s)
	require.NoError(t, err)
	assert.Equal(t, fpBefore, fpAfter, "evaluation must not mutate state")
}
