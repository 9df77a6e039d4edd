package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Node 1023 is reserved for triagectl so submitted ids never collide
	// with a server replica.
	if err := id.Init(1023); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := cli.NewRootCmd(cli.DefaultOpener, version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
