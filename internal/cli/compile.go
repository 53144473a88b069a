package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/sibyl/internal/compiler"
)

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "compile <rules-dir>",
		Short: "Compile CUE rule definitions to wire JSON",
		Long: `Compile every .cue file in a directory into a wire-format JSON
rule array, ready for 'sibyl validate' or inline use in scenarios.
Files compile in lexical order; duplicate rule IDs across files are
rejected.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], outputFile, cmd)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "write JSON to file instead of stdout")

	return cmd
}

func runCompile(opts *RootOptions, rulesDir, outputFile string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	compiled, err := compiler.LoadDir(rulesDir)
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitFailure, "compile failed", err)
	}
	formatter.VerboseLog("compiled %d rule(s) from %s", len(compiled), rulesDir)

	data, err := json.MarshalIndent(compiled, "", "  ")
	if err != nil {
		formatter.Error(ErrCodeCompile, err.Error(), nil)
		return WrapExitError(ExitCommandError, "encode rules", err)
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, data, 0o644); err != nil {
			formatter.Error(ErrCodeIO, err.Error(), nil)
			return WrapExitError(ExitCommandError, "write output", err)
		}
		if opts.Format == "json" {
			return formatter.Success(map[string]any{
				"rules":  len(compiled),
				"output": outputFile,
			})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Compiled %d rule(s) to %s\n", len(compiled), outputFile)
		return nil
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
