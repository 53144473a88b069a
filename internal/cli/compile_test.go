package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRuleCUE = `
rules: [{
	rule_id: "tick_counter"
	condition: {type: "always"}
	actions: [{
		type:   "set_metric"
		metric: "ticks"
		value: {type: "increment", amount: 1}
	}]
}]
`

func writeRulesDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rules.cue"), []byte(testRuleCUE), 0o644))
	return dir
}

func TestCompileCommand_ToStdout(t *testing.T) {
	dir := writeRulesDir(t)

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"compile", dir})

	require.NoError(t, cmd.Execute())

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "tick_counter", decoded[0]["rule_id"])
}

func TestCompileCommand_ToFile(t *testing.T) {
	dir := writeRulesDir(t)
	outFile := filepath.Join(t.TempDir(), "rules.json")

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"compile", dir, "--output", outFile})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "1 rule(s)")

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 1)
}

func TestCompileCommand_BadDirectory(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"compile", filepath.Join(t.TempDir(), "missing")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	goodCUE := filepath.Join(dir, "good.cue")
	require.NoError(t, os.WriteFile(goodCUE, []byte(testRuleCUE), 0o644))
	goodJSON := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(goodJSON, []byte(
		`[{"rule_id":"r1","condition":{"type":"always"},"actions":[]}]`), 0o644))

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", goodCUE, goodJSON})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "good.cue: OK")
	assert.Contains(t, buf.String(), "good.json: OK")
}

func TestValidateCommand_ReportsAllFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	require.NoError(t, os.WriteFile(good, []byte(
		`[{"rule_id":"r1","condition":{"type":"always"},"actions":[]}]`), 0o644))
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(
		`[{"rule_id":"r2","condition":{"type":"sometimes"},"actions":[]}]`), 0o644))

	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", bad, good})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "bad.json: INVALID")
	assert.Contains(t, buf.String(), "good.json: OK", "later files still checked")
}
