package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sibyl/internal/compiler"
	"github.com/roach88/sibyl/internal/rules"
)

// FileValidation reports the outcome for one rule file.
type FileValidation struct {
	File  string `json:"file"`
	Valid bool   `json:"valid"`
	Rules int    `json:"rules"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file...>",
		Short: "Validate rule files without running them",
		Long: `Validate rule files and report errors per file. CUE files (.cue)
go through the rule-set compiler; JSON files are decoded as wire-format
rule arrays. All files are checked even if an early one fails.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	results := make([]FileValidation, 0, len(files))
	allValid := true
	for _, file := range files {
		fv := validateFile(file)
		if !fv.Valid {
			allValid = false
		}
		results = append(results, fv)
	}

	if opts.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		for _, fv := range results {
			if fv.Valid {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d rule(s))\n", fv.File, fv.Rules)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: INVALID: %s\n", fv.File, fv.Error)
			}
		}
	}

	if !allValid {
		return NewExitError(ExitFailure, "one or more files failed validation")
	}
	return nil
}

func validateFile(path string) FileValidation {
	fv := FileValidation{File: path}

	data, err := os.ReadFile(path)
	if err != nil {
		fv.Error = err.Error()
		return fv
	}

	var compiled []rules.Rule
	if strings.HasSuffix(path, ".cue") {
		compiled, err = compiler.CompileString(string(data), path)
	} else {
		compiled, err = rules.DecodeRules(data)
	}
	if err != nil {
		fv.Error = err.Error()
		return fv
	}

	fv.Valid = true
	fv.Rules = len(compiled)
	return fv
}
