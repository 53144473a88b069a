// Package compiler turns CUE rule definitions into engine rules.
//
// Rule sets are authored in CUE using the same field names as the wire
// format. CUE gives authors constraints, defaults, and composition; the
// compiler unifies each document with the embedded schema, exports the
// concrete rules to JSON, and hands them to the wire codec. Uses the
// CUE SDK's Go API directly (not CLI subprocess).
package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/sibyl/internal/rules"
)

// ruleSchema constrains rule documents before export. Priority and
// description get defaults so authors can omit them.
const ruleSchema = `
#Rule: {
	rule_id:     string & !=""
	condition:   {type: string, ...}
	actions:     [...{type: string, ...}]
	priority:    int | *0
	description: string | *""
}

rules: [...#Rule]
`

// CompileError reports a problem in a CUE rule document, with source
// position when CUE can provide one.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// CompileRuleSet parses a CUE value holding a "rules" list into engine
// rules. The value is unified with the rule schema first, so schema
// violations surface with CUE positions instead of decode failures.
func CompileRuleSet(v cue.Value) ([]rules.Rule, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	schema := v.Context().CompileString(ruleSchema)
	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	list := unified.LookupPath(cue.ParsePath("rules"))
	if !list.Exists() {
		return nil, &CompileError{
			Field:   "rules",
			Message: "document must define a 'rules' list",
			Pos:     v.Pos(),
		}
	}

	iter, err := list.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var (
		out  []rules.Rule
		seen = make(map[string]bool)
	)
	for iter.Next() {
		elem := iter.Value()
		data, err := elem.MarshalJSON()
		if err != nil {
			return nil, formatCUEError(err)
		}

		r, err := rules.DecodeRule(data)
		if err != nil {
			return nil, &CompileError{
				Field:   "rules",
				Message: err.Error(),
				Pos:     elem.Pos(),
			}
		}

		if seen[r.ID] {
			return nil, &CompileError{
				Field:   "rule_id",
				Message: fmt.Sprintf("duplicate rule_id %q", r.ID),
				Pos:     elem.Pos(),
			}
		}
		seen[r.ID] = true
		out = append(out, r)
	}

	return out, nil
}

// CompileString compiles CUE source text into rules. The filename is
// attached for error positions.
func CompileString(src, filename string) ([]rules.Rule, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	return CompileRuleSet(v)
}

// LoadDir compiles every .cue file in a directory, in lexical filename
// order, and concatenates the results. A rule_id appearing in two
// files is an error.
func LoadDir(dir string) ([]rules.Rule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("load rules dir: %w", err)
	}

	var (
		out  []rules.Rule
		seen = make(map[string]string)
	)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".cue") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load rules dir: %w", err)
		}

		compiled, err := CompileString(string(src), path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}

		for _, r := range compiled {
			if prev, ok := seen[r.ID]; ok {
				return nil, &CompileError{
					Field:   "rule_id",
					Message: fmt.Sprintf("rule_id %q already defined in %s", r.ID, prev),
				}
			}
			seen[r.ID] = entry.Name()
		}
		out = append(out, compiled...)
	}

	return out, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return &CompileError{
		Field:   "cue",
		Message: firstErr.Error(),
	}
}
