package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InitializesEmptyMaps(t *testing.T) {
	seed := int64(42)
	s := New("sim-1", &seed)

	assert.Equal(t, SchemaVersion, s.SchemaVersion)
	assert.Equal(t, "sim-1", s.SimulationID)
	require.NotNil(t, s.Seed)
	assert.Equal(t, int64(42), *s.Seed)
	assert.Equal(t, int64(0), s.Time)
	assert.NotNil(t, s.Resources)
	assert.NotNil(t, s.Metrics)
	assert.NotNil(t, s.Flags)
	assert.NotNil(t, s.Metadata)
	assert.NotNil(t, s.Entities)
}

func TestMissingKeyDefaults(t *testing.T) {
	s := New("sim-1", nil)

	assert.Equal(t, 0.0, s.Resource("nope"))
	assert.Equal(t, 0.0, s.Metric("nope"))
	assert.False(t, s.Flag("nope"))
	assert.Equal(t, Num(0), s.MetadataValue("nope"))
}

func TestClone_IsDeep(t *testing.T) {
	s := New("sim-1", nil)
	s.SetResource("cpu", 85)
	s.SetMetric("error_rate", 0.01)
	s.SetFlag("burnout", true)
	s.SetMetadata("note", Str("original"))
	s.Entities["web-1"] = map[string]any{"status": "healthy", "tags": []any{"prod"}}

	clone := s.Clone()

	// Mutate the clone; the original must be unaffected.
	clone.SetResource("cpu", 10)
	clone.SetFlag("burnout", false)
	clone.SetMetadata("note", Str("mutated"))
	clone.Entities["web-1"].(map[string]any)["status"] = "down"
	clone.Time = 99

	assert.Equal(t, 85.0, s.Resource("cpu"))
	assert.True(t, s.Flag("burnout"))
	assert.Equal(t, Str("original"), s.MetadataValue("note"))
	assert.Equal(t, "healthy", s.Entities["web-1"].(map[string]any)["status"])
	assert.Equal(t, int64(0), s.Time)
}

func TestClone_CopiesSeedPointer(t *testing.T) {
	seed := int64(7)
	s := New("sim-1", &seed)

	clone := s.Clone()
	require.NotNil(t, clone.Seed)
	assert.Equal(t, int64(7), *clone.Seed)

	*clone.Seed = 8
	assert.Equal(t, int64(7), *s.Seed, "seed storage must not be shared")
}

func TestSettersCreateKeysOnFirstWrite(t *testing.T) {
	s := New("sim-1", nil)

	s.SetResource("servers", 3)
	s.SetMetric("load", 0.5)
	s.SetFlag("alert", true)
	s.SetMetadata("count", Num(1))

	assert.Equal(t, 3.0, s.Resources["servers"])
	assert.Equal(t, 0.5, s.Metrics["load"])
	assert.True(t, s.Flags["alert"])
	assert.Equal(t, Num(1), s.Metadata["count"])
}
