// Command settle reconciles a sell signed outside the tracker (SIGNAL mode)
// against the holding it closes. -tier names the ladder tier the sell answered,
// so the tracker does not signal it again.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/camuig/sol-tracker/internal/app"
	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/executor"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/pnl"
	"github.com/camuig/sol-tracker/internal/strategy"
	"github.com/camuig/sol-tracker/internal/tracker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	txID := flag.String("tx", "", "exit transaction signature")
	token := flag.String("token", "", "token mint")
	wallet := flag.String("wallet", "", "wallet address")
	amount := flag.Float64("amount", 0, "tokens sold, used when the transaction does not report it")
	tierID := flag.String("tier", "", "tier the sell executed, e.g. take_profit:1")
	flag.Parse()

	if *txID == "" || *token == "" || *wallet == "" {
		fmt.Fprintln(os.Stderr, "usage: settle -tx <signature> -token <mint> -wallet <address> [-amount n] [-tier kind:order]")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewWithFormat(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deps, cleanup, err := app.Wire(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init error: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	if done, err := deps.Repo.HasSettlement(*txID); err != nil {
		fail(cleanup, "check settlement: %v", err)
	} else if done {
		fail(cleanup, "transaction %s is already settled", *txID)
	}

	h, err := deps.Repo.GetHolding(*token, *wallet, cfg.Bot.Name)
	if err != nil {
		fail(cleanup, "load holding: %v", err)
	}

	var tier *strategy.Tier
	if *tierID != "" {
		t, err := cfg.Strategy.TierByID(*tierID)
		if err != nil {
			fail(cleanup, "%v", err)
		}
		state, err := deps.Repo.ExecutionState(h.ID)
		if err != nil {
			fail(cleanup, "load tier state: %v", err)
		}
		if state.Fired(t.ID()) {
			fail(cleanup, "tier %s already executed for %s", t.ID(), h.TokenMint)
		}
		tier = &t
	}

	details, err := deps.Helius.SwapDetails(ctx, *txID, *wallet)
	if err != nil {
		fail(cleanup, "swap details: %v", err)
	}

	solPrice, err := deps.Oracle.SOLPriceUSD(ctx)
	if err != nil {
		fail(cleanup, "SOL price: %v", err)
	}

	// The report supplies the tier that fired and the route fees. Without a
	// quote or -tier the sell is still settled, as a manual one.
	trk := tracker.NewTracker(deps.Jupiter, deps.Oracle, nil, deps.Repo, deps.Notifier, deps.Metrics, cfg, log)
	report, err := trk.Evaluate(ctx, h, solPrice)
	if err != nil {
		log.Warn("no quote for settlement context", "token", h.TokenMint, "error", err)
		report = &pnl.Report{BaseAssetPriceUSD: solPrice}
	}
	if tier != nil {
		report = report.WithTrigger(*tier)
	}

	exec := executor.NewExecutor(nil, deps.Helius, deps.Repo, deps.Notifier, deps.Metrics, cfg, log)
	cp, err := exec.Settle(ctx, h, report, details, *amount)
	if err != nil {
		fail(cleanup, "%v", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(cp)
}

func fail(cleanup func(), format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	cleanup()
	os.Exit(1)
}
