package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camuig/sol-tracker/internal/app"
	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/executor"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/tracker"
	"github.com/camuig/sol-tracker/internal/web"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	// Init logger
	log := logger.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	mode := cfg.Mode()
	log.Info("starting sol-tracker", "bot", cfg.Bot.Name, "mode", mode, "strategy", cfg.Strategy.Name)

	// Context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps, cleanup, err := app.Wire(ctx, cfg, log)
	if err != nil {
		log.Error("init failed", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// PAPER fills sells from quotes; SIGNAL only announces them
	var swapper executor.SwapExecutor
	var details executor.DetailsSource
	if cfg.Trading.Paper {
		paper := executor.NewPaperExecutor(deps.Jupiter, cfg.Trading.PaperNetworkFeeSOL, log)
		swapper, details = paper, paper
	}

	exec := executor.NewExecutor(swapper, details, deps.Repo, deps.Notifier, deps.Metrics, cfg, log)
	trk := tracker.NewTracker(deps.Jupiter, deps.Oracle, exec, deps.Repo, deps.Notifier, deps.Metrics, cfg, log)
	webServer := web.NewServer(deps.Repo, deps.Metrics, cfg, log)

	// Start tracker in goroutine
	trackerDone := make(chan struct{})
	go func() {
		defer close(trackerDone)
		trk.Run(ctx)
	}()

	// Start web server in goroutine
	go func() {
		if err := webServer.Start(); err != nil {
			log.Error("web server error", "error", err)
		}
	}()

	deps.Notifier.NotifyStatus(ctx, fmt.Sprintf("🤖 sol-tracker %s started (%s)", cfg.Bot.Name, mode))

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info("shutdown signal received", "signal", sig.String())

	// Graceful shutdown
	cancel()
	<-trackerDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error("web server shutdown error", "error", err)
	}

	deps.Notifier.NotifyStatus(shutdownCtx, fmt.Sprintf("🛑 sol-tracker %s stopped", cfg.Bot.Name))
	log.Info("sol-tracker stopped")
}
