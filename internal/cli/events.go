package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"basegraph.app/triage/internal/queue"
	"basegraph.app/triage/internal/wire"
)

func eventsCmd(open Opener) *cobra.Command {
	var (
		group    string
		consumer string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail ticket events from the Redis stream until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			return withRuntime(ctx, open, func(rt *Runtime) error {
				cfg := rt.Config.Events
				if !cfg.Enabled() {
					return errors.New("event stream is not configured (set EVENTS_REDIS_URL)")
				}

				client, err := wire.NewRedisClient(ctx, cfg.RedisURL)
				if err != nil {
					return err
				}
				defer client.Close()

				if consumer == "" {
					host, _ := os.Hostname()
					consumer = "triagectl-" + host
				}
				reader, err := queue.NewRedisConsumer(ctx, client, queue.ConsumerConfig{
					Stream:    cfg.Stream,
					Group:     group,
					Consumer:  consumer,
					BatchSize: 10,
					Block:     5 * time.Second,
				})
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Tailing %s as %s/%s\n", cfg.Stream, group, consumer)
				for {
					events, err := reader.Read(ctx)
					if err != nil {
						if ctx.Err() != nil {
							return nil
						}
						return err
					}
					for _, e := range events {
						printEvent(out, e)
						if err := reader.Ack(ctx, e.ID); err != nil {
							return err
						}
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&group, "group", "triagectl", "Consumer group name")
	cmd.Flags().StringVar(&consumer, "consumer", "", "Consumer name (default triagectl-<hostname>)")
	return cmd
}

func printEvent(w io.Writer, e queue.Event) {
	line := fmt.Sprintf("%s %-18s %s", e.ID, e.Type, e.TicketID)
	if e.Urgency != nil {
		line += " urgency=" + urgencyColor(*e.Urgency).Sprintf("%.2f", *e.Urgency)
	}
	if e.Previous != nil {
		line += fmt.Sprintf(" previous=%.2f", *e.Previous)
	}
	fmt.Fprintln(w, line)
}
