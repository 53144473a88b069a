package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sibyl/internal/store"
)

// NewSimsCommand creates the sims command group.
func NewSimsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sims",
		Short: "Manage stored simulations",
	}

	cmd.AddCommand(newSimsListCommand(rootOpts))
	cmd.AddCommand(newSimsInfoCommand(rootOpts))
	cmd.AddCommand(newSimsDeleteCommand(rootOpts))

	return cmd
}

func newSimsListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored simulations, most recently updated first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			st, err := store.Open(rootOpts.DBPath)
			if err != nil {
				formatter.Error(ErrCodeIO, err.Error(), nil)
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			infos, err := st.ListSimulations(context.Background())
			if err != nil {
				formatter.Error(ErrCodeIO, err.Error(), nil)
				return WrapExitError(ExitCommandError, "list simulations", err)
			}

			if rootOpts.Format == "json" {
				return formatter.Success(infos)
			}

			out := cmd.OutOrStdout()
			if len(infos) == 0 {
				fmt.Fprintln(out, "No simulations stored.")
				return nil
			}
			fmt.Fprintf(out, "%-20s %6s %6s %7s  %s\n", "NAME", "TIME", "RULES", "EVENTS", "UPDATED")
			for _, info := range infos {
				fmt.Fprintf(out, "%-20s %6d %6d %7d  %s\n",
					info.Name, info.Time, info.RuleCount, info.EventCount,
					info.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}

func newSimsInfoCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "info <simulation>",
		Short:         "Show details for one stored simulation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			st, err := store.Open(rootOpts.DBPath)
			if err != nil {
				formatter.Error(ErrCodeIO, err.Error(), nil)
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			info, err := st.SimulationInfo(context.Background(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				formatter.Error(ErrCodeNotFound, err.Error(), nil)
				return WrapExitError(ExitCommandError, "simulation info", err)
			}
			if err != nil {
				formatter.Error(ErrCodeIO, err.Error(), nil)
				return WrapExitError(ExitCommandError, "simulation info", err)
			}

			if rootOpts.Format == "json" {
				return formatter.Success(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:         %s\n", info.Name)
			if info.Description != "" {
				fmt.Fprintf(out, "Description:  %s\n", info.Description)
			}
			fmt.Fprintf(out, "Simulation:   %s\n", info.SimulationID)
			if info.Seed != nil {
				fmt.Fprintf(out, "Seed:         %d\n", *info.Seed)
			}
			fmt.Fprintf(out, "Time:         %d\n", info.Time)
			fmt.Fprintf(out, "Rules:        %d\n", info.RuleCount)
			fmt.Fprintf(out, "Events:       %d\n", info.EventCount)
			fmt.Fprintf(out, "Updated:      %s\n", info.UpdatedAt.Format("2006-01-02 15:04:05"))
			return nil
		},
	}
}

func newSimsDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <simulation>",
		Short:         "Delete a stored simulation",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(rootOpts, cmd)

			st, err := store.Open(rootOpts.DBPath)
			if err != nil {
				formatter.Error(ErrCodeIO, err.Error(), nil)
				return WrapExitError(ExitCommandError, "open database", err)
			}
			defer st.Close()

			err = st.DeleteSimulation(context.Background(), args[0])
			if errors.Is(err, store.ErrNotFound) {
				formatter.Error(ErrCodeNotFound, err.Error(), nil)
				return WrapExitError(ExitCommandError, "delete simulation", err)
			}
			if err != nil {
				formatter.Error(ErrCodeIO, err.Error(), nil)
				return WrapExitError(ExitCommandError, "delete simulation", err)
			}

			if rootOpts.Format == "json" {
				return formatter.Success(map[string]any{"deleted": args[0]})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %q\n", args[0])
			return nil
		},
	}
}
