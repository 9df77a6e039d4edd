// Package cli implements triagectl, the admin command line for the triage
// queue. Commands talk to storage directly through internal/wire.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/wire"
)

// Runtime is what a command needs: the loaded config and a built app.
type Runtime struct {
	Config config.Config
	App    *wire.App
}

// Opener builds a Runtime. Each command opens and closes its own.
type Opener func(ctx context.Context) (*Runtime, error)

// DefaultOpener loads config the way the server does and builds the app.
func DefaultOpener(ctx context.Context) (*Runtime, error) {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return nil, err
	}
	app, err := wire.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Runtime{Config: cfg, App: app}, nil
}

func NewRootCmd(open Opener, version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "triagectl",
		Short:   "Inspect and operate the multisig ticket triage queue",
		Version: version,
		Long: `triagectl reads and maintains the ticket store used by the triage
server. It shares the server's environment configuration (.env.cli, .env).`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(submitCmd(open))
	rootCmd.AddCommand(getCmd(open))
	rootCmd.AddCommand(searchCmd(open))
	rootCmd.AddCommand(deleteCmd(open))
	rootCmd.AddCommand(pendingCmd(open))
	rootCmd.AddCommand(dueCmd(open))
	rootCmd.AddCommand(statsCmd(open))
	rootCmd.AddCommand(retriageCmd(open))
	rootCmd.AddCommand(eventsCmd(open))

	return rootCmd
}

// withRuntime opens a runtime for the duration of fn.
func withRuntime(ctx context.Context, open Opener, fn func(rt *Runtime) error) error {
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	defer rt.App.Close()
	return fn(rt)
}
