package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"basegraph.app/triage/internal/worker"
)

func pendingCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List pending tickets, most urgent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				tickets, err := rt.App.Service.Pending(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to list pending tickets: %w", err)
				}
				printTickets(cmd.OutOrStdout(), tickets)
				return nil
			})
		},
	}
}

func dueCmd(open Opener) *cobra.Command {
	var before string

	cmd := &cobra.Command{
		Use:   "due",
		Short: "List tickets whose deadline is at or before a time (default now)",
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := parseFlagTime("before", before)
			if err != nil {
				return err
			}

			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				at := rt.App.Clock.Now()
				if threshold != nil {
					at = *threshold
				}
				tickets, err := rt.App.Service.DueBefore(cmd.Context(), at)
				if err != nil {
					return fmt.Errorf("failed to list due tickets: %w", err)
				}
				printTickets(cmd.OutOrStdout(), tickets)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&before, "before", "", "Deadline threshold (RFC3339)")
	return cmd
}

func statsCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show ticket counts by status, urgency and type",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				stats, err := rt.App.Service.Stats(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to compute stats: %w", err)
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}
}

func retriageCmd(open Opener) *cobra.Command {
	var threshold float64

	cmd := &cobra.Command{
		Use:   "retriage",
		Short: "Run one re-triage pass over pending tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				cfg := worker.SchedulerConfig{Threshold: rt.Config.Retriage.Threshold}
				if cmd.Flags().Changed("threshold") {
					cfg.Threshold = threshold
				}

				result := worker.NewScheduler(rt.App.SchedulerDeps(), cfg).Tick(cmd.Context())
				fmt.Fprintf(cmd.OutOrStdout(), "Checked %d, updated %d, failed %d\n",
					result.Checked, result.Updated, result.Failed)
				return nil
			})
		},
	}

	cmd.Flags().Float64Var(&threshold, "threshold", worker.DefaultThreshold, "Minimum urgency change to rewrite a ticket")
	return cmd
}
