package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitError(t *testing.T) {
	base := NewExitError(ExitFailure, "scenario failed")
	assert.Equal(t, "scenario failed", base.Error())
	assert.Equal(t, ExitFailure, GetExitCode(base))

	wrapped := WrapExitError(ExitCommandError, "open database", errors.New("no such file"))
	assert.Contains(t, wrapped.Error(), "open database")
	assert.Contains(t, wrapped.Error(), "no such file")
	assert.Equal(t, ExitCommandError, GetExitCode(wrapped))

	// Wrapped further, errors.As still finds the code.
	further := fmt.Errorf("outer: %w", wrapped)
	assert.Equal(t, ExitCommandError, GetExitCode(further))

	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
}

func TestFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Success(map[string]any{"rules": 3}))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, f.Error(ErrCodeNotFound, "simulation not found", nil))

	var resp Response
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	f := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, f.Error(ErrCodeCompile, "bad rule", nil))
	assert.Contains(t, buf.String(), "Error [E001]: bad rule")
}

func TestFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	f := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	f.VerboseLog("compiled %d rule(s)", 2)
	assert.Empty(t, out.String(), "diagnostics must not corrupt JSON output")
	assert.Contains(t, errOut.String(), "compiled 2 rule(s)")

	f.Verbose = false
	errOut.Reset()
	f.VerboseLog("hidden")
	assert.Empty(t, errOut.String())
}
