package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"basegraph.app/triage/common/id"
	"basegraph.app/triage/common/logger"
	"basegraph.app/triage/common/otel"
	"basegraph.app/triage/core/config"
	"basegraph.app/triage/internal/wire"
	"basegraph.app/triage/internal/worker"
)

// The standalone worker runs only the re-triage scheduler, for deployments
// where the API server sets RETRIAGE_ENABLED=false and storage is shared.
func main() {
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	fmt.Printf("%s\n", banner)
	logger.Setup(cfg)

	slog.InfoContext(ctx, "triage worker starting",
		"env", cfg.Env,
		"storage", cfg.Storage.Backend,
		"interval", cfg.Retriage.Interval,
		"threshold", cfg.Retriage.Threshold)

	if err := id.Init(cfg.NodeID); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	app, err := wire.Build(ctx, cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	scheduler := worker.StartScheduler(ctx, app.SchedulerDeps(), worker.SchedulerConfig{
		Interval:  cfg.Retriage.Interval,
		Threshold: cfg.Retriage.Threshold,
	})

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	// Waits for an in-flight tick.
	scheduler.Stop()

	if telemetry != nil {
		if err := telemetry.Shutdown(ctx); err != nil {
			slog.ErrorContext(ctx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
████████╗██████╗ ██╗ █████╗  ██████╗ ███████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
╚══██╔══╝██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
   ██║   ██████╔╝██║███████║██║  ███╗█████╗      ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
   ██║   ██╔══██╗██║██╔══██║██║   ██║██╔══╝      ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
   ██║   ██║  ██║██║██║  ██║╚██████╔╝███████╗    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
   ╚═╝   ╚═╝  ╚═╝╚═╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
