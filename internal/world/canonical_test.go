package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_SortsKeys(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"b": 1, "a": 2, "c": 3})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"b":1,"c":3}`, string(b))
}

func TestMarshalCanonical_NoHTMLEscaping(t *testing.T) {
	b, err := MarshalCanonical("<a>&</a>")
	require.NoError(t, err)
	assert.Equal(t, `"<a>&</a>"`, string(b))
}

func TestMarshalCanonical_ShortestFloatForm(t *testing.T) {
	b, err := MarshalCanonical(25.0)
	require.NoError(t, err)
	assert.Equal(t, "25", string(b))

	b, err = MarshalCanonical(0.1)
	require.NoError(t, err)
	assert.Equal(t, "0.1", string(b))
}

func TestMarshalCanonical_RejectsNonFinite(t *testing.T) {
	_, err := MarshalCanonical(1.0 / zero())
	assert.Error(t, err)
}

// zero defeats constant folding so the division produces +Inf at runtime.
func zero() float64 { return 0 }

func TestFingerprint_Deterministic(t *testing.T) {
	build := func() *State {
		s := New("sim-1", nil)
		s.SetResource("hawks", 50)
		s.SetResource("doves", 50)
		s.SetMetric("V", 50)
		s.SetFlag("stable", true)
		s.SetMetadata("generation", Num(3))
		return s
	}

	a, err := Fingerprint(build())
	require.NoError(t, err)
	b, err := Fingerprint(build())
	require.NoError(t, err)

	assert.Equal(t, a, b, "identical logical content must fingerprint identically")
}

func TestFingerprint_IgnoresWallClock(t *testing.T) {
	s := New("sim-1", nil)
	s.SetResource("cpu", 85)

	before, err := Fingerprint(s)
	require.NoError(t, err)

	s2 := s.Clone()
	s2.UpdatedAt = s2.UpdatedAt.Add(1000)
	after, err := Fingerprint(s2)
	require.NoError(t, err)

	assert.Equal(t, before, after)
}

func TestFingerprint_SensitiveToContent(t *testing.T) {
	s := New("sim-1", nil)
	s.SetResource("cpu", 85)
	a, err := Fingerprint(s)
	require.NoError(t, err)

	s2 := s.Clone()
	s2.SetResource("cpu", 86)
	b, err := Fingerprint(s2)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}
