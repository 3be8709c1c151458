package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/harunnryd/sampark/pkg/sampark"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := sampark.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers := sampark.NewProviderRegistry()
	sampark.RegisterDefaults(providers)

	app, err := sampark.NewEngine(ctx, sampark.EngineOptions{
		Config:    cfg,
		Providers: providers,
	})
	if err != nil {
		slog.Error("engine_init_failed", "error", err)
		os.Exit(1)
	}
	if err := app.Run(ctx); err != nil {
		slog.Error("engine_stopped", "error", err)
		os.Exit(1)
	}
}
