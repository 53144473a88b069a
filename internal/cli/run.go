package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sibyl/internal/harness"
	"github.com/roach88/sibyl/internal/store"
)

// ScenarioReport is the JSON payload for a scenario run.
type ScenarioReport struct {
	Scenario string              `json:"scenario"`
	Pass     bool                `json:"pass"`
	Trace    []harness.StepTrace `json:"trace"`
	Errors   []string            `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		simName string
		steps   int
	)

	cmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Run a scenario file or step a stored simulation",
		Long: `Run a YAML scenario against a fresh engine, or with --sim, load a
stored simulation from the database, advance it --steps ticks, and save
it back.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if simName != "" {
				return runStoredSim(rootOpts, simName, steps, cmd)
			}
			if len(args) != 1 {
				return NewExitError(ExitCommandError, "a scenario file or --sim is required")
			}
			return runScenario(rootOpts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&simName, "sim", "", "stored simulation to advance")
	cmd.Flags().IntVar(&steps, "steps", 1, "number of steps to apply with --sim")

	return cmd
}

func runScenario(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load scenario", err)
	}

	result, err := harness.Run(scenario)
	if err != nil {
		formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitFailure, "run scenario", err)
	}

	report := ScenarioReport{
		Scenario: scenario.Name,
		Pass:     result.Pass,
		Trace:    result.Trace,
		Errors:   result.Errors,
	}

	if opts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		printScenarioText(cmd, report)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, "scenario failed")
	}
	return nil
}

func printScenarioText(cmd *cobra.Command, report ScenarioReport) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Scenario: %s\n", report.Scenario)
	for _, step := range report.Trace {
		status := "ok"
		if !step.OK {
			status = "rejected (" + strings.Join(step.Violations, ", ") + ")"
		}
		line := fmt.Sprintf("  step %d: %s %s", step.Step, step.Action, status)
		if len(step.Fired) > 0 {
			line += " fired=[" + strings.Join(step.Fired, ", ") + "]"
		}
		fmt.Fprintln(out, line)
	}
	if report.Pass {
		fmt.Fprintln(out, "PASS")
	} else {
		fmt.Fprintln(out, "FAIL")
		for _, e := range report.Errors {
			fmt.Fprintf(out, "  %s\n", e)
		}
	}
}

func runStoredSim(opts *RootOptions, name string, steps int, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := context.Background()

	st, err := store.Open(opts.DBPath)
	if err != nil {
		formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "open database", err)
	}
	defer st.Close()

	engine, err := st.LoadSimulation(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load simulation", err)
	}
	if err != nil {
		formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load simulation", err)
	}

	var fired []string
	for i := 0; i < steps; i++ {
		res, err := engine.Step()
		if err != nil {
			formatter.Error(ErrCodeScenario, err.Error(), nil)
			return WrapExitError(ExitFailure, "step simulation", err)
		}
		if !res.Success {
			ids := make([]string, len(res.Violations))
			for j, v := range res.Violations {
				ids[j] = v.ConstraintID
			}
			formatter.Error(ErrCodeScenario,
				fmt.Sprintf("step %d rejected: %s", i+1, strings.Join(ids, ", ")), nil)
			return NewExitError(ExitFailure, "step rejected by constraints")
		}
		fired = append(fired, res.FiredRules...)
	}

	info, err := st.SimulationInfo(ctx, name)
	if err != nil {
		formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "refresh simulation info", err)
	}
	if err := st.SaveSimulation(ctx, name, info.Description, engine); err != nil {
		formatter.Error(ErrCodeIO, err.Error(), nil)
		return WrapExitError(ExitCommandError, "save simulation", err)
	}

	state := engine.State()
	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"simulation": name,
			"steps":      steps,
			"time":       state.Time,
			"fired":      fired,
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Advanced %q by %d step(s) to time %d\n", name, steps, state.Time)
	if len(fired) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Fired: %s\n", strings.Join(fired, ", "))
	}
	return nil
}
