package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"basegraph.app/triage/internal/model"
	"basegraph.app/triage/internal/service"
	"basegraph.app/triage/internal/store"
)

func getCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Print a stored ticket as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				t, err := rt.App.Service.Get(cmd.Context(), args[0])
				if errors.Is(err, service.ErrTicketNotFound) {
					return fmt.Errorf("ticket %s not found", args[0])
				}
				if err != nil {
					return fmt.Errorf("failed to get ticket: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), t)
			})
		},
	}
}

func searchCmd(open Opener) *cobra.Command {
	var (
		status     string
		minUrgency float64
		start      string
		end        string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search tickets; a ticket matching any given filter is listed",
		RunE: func(cmd *cobra.Command, args []string) error {
			params := service.SearchParams{Limit: limit}
			if limit < 0 {
				params.Limit = store.Unlimited
			}
			if status != "" {
				s := model.Status(status)
				params.Status = &s
			}
			if cmd.Flags().Changed("min-urgency") {
				params.MinUrgency = &minUrgency
			}
			var err error
			if params.Start, err = parseFlagTime("start", start); err != nil {
				return err
			}
			if params.End, err = parseFlagTime("end", end); err != nil {
				return err
			}

			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				result, err := rt.App.Service.Search(cmd.Context(), params)
				if err != nil {
					return fmt.Errorf("failed to search tickets: %w", err)
				}
				printTickets(cmd.OutOrStdout(), result.Tickets)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Match tickets with this status")
	cmd.Flags().Float64Var(&minUrgency, "min-urgency", 0, "Match tickets at or above this urgency")
	cmd.Flags().StringVar(&start, "start", "", "Match tickets created at or after (RFC3339)")
	cmd.Flags().StringVar(&end, "end", "", "Match tickets created at or before (RFC3339)")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultLimit, "Maximum results, -1 for all")
	return cmd
}

func deleteCmd(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a ticket and its index entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				deleted, err := rt.App.Service.Delete(cmd.Context(), args[0])
				if err != nil {
					return fmt.Errorf("failed to delete ticket: %w", err)
				}
				if !deleted {
					return fmt.Errorf("ticket %s not found", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted ticket %s\n", args[0])
				return nil
			})
		},
	}
}

func parseFlagTime(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("--%s must be RFC3339: %w", name, err)
	}
	return &t, nil
}

func submitCmd(open Opener) *cobra.Command {
	var (
		params   service.SubmitParams
		value    float64
		deadline string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Score and store a new ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("value") {
				params.Value = &value
			}
			var err error
			if params.Deadline, err = parseFlagTime("deadline", deadline); err != nil {
				return err
			}

			return withRuntime(cmd.Context(), open, func(rt *Runtime) error {
				result, err := rt.App.Service.Submit(cmd.Context(), params)
				if err != nil {
					return fmt.Errorf("failed to submit ticket: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "✓ Submitted ticket %s (urgency %s)\n",
					result.ID, urgencyColor(result.Urgency).Sprintf("%.2f", result.Urgency))
				fmt.Fprintf(out, "  %s\n", result.Summary)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&params.ID, "id", "", "Ticket id (generated when empty)")
	cmd.Flags().StringVarP(&params.Type, "type", "t", "", "Ticket type, e.g. \"vendor payment\"")
	cmd.Flags().StringVarP(&params.Description, "description", "d", "", "Free-form description")
	cmd.Flags().Float64Var(&value, "value", 0, "Transfer value")
	cmd.Flags().StringVar(&params.Currency, "currency", "", "Currency code (ETH, BTC, USDC, ...)")
	cmd.Flags().StringVar(&deadline, "deadline", "", "Deadline (RFC3339)")
	cmd.Flags().IntVar(&params.RequiredApprovals, "required-approvals", 0, "Signatures needed (default 2)")
	return cmd
}
