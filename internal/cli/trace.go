package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sibyl/internal/sim"
	"github.com/roach88/sibyl/internal/store"
)

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trace <simulation>",
		Short: "Print a stored simulation's history",
		Long: `Print the event log of a stored simulation, oldest first. Use
--limit to show only the most recent events.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(rootOpts, args[0], limit, cmd)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "show only the last N events (0 = all)")

	return cmd
}

func runTrace(opts *RootOptions, name string, limit int, cmd *cobra.Command) error {
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

	events := engine.History(limit)

	if opts.Format == "json" {
		return formatter.Success(events)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "History for %q (%d event(s)):\n", name, len(events))
	for i, ev := range events {
		fmt.Fprintf(out, "%4d  %-20s %s\n", i+1, ev.Type, describeEvent(ev))
	}
	return nil
}

func describeEvent(ev sim.Event) string {
	var parts []string
	if ev.Action != "" {
		parts = append(parts, "action="+ev.Action)
	}
	if len(ev.ConstraintsViolated) > 0 {
		parts = append(parts, "violated="+strings.Join(ev.ConstraintsViolated, ","))
	}
	if ev.Reason != "" {
		parts = append(parts, ev.Reason)
	}
	return strings.Join(parts, " ")
}
