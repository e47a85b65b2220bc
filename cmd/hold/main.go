// Command hold records a confirmed buy as a holding for the tracker to manage.
// A second buy of the same token by the same wallet is folded into the
// existing holding.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/camuig/sol-tracker/internal/app"
	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	txID := flag.String("tx", "", "buy transaction signature")
	wallet := flag.String("wallet", "", "wallet address")
	mint := flag.String("mint", "", "token mint; defaults to the token received")
	name := flag.String("name", "", "token name for notifications")
	flag.Parse()

	if *txID == "" || *wallet == "" {
		fmt.Fprintln(os.Stderr, "usage: hold -tx <signature> -wallet <address> [-mint <mint>] [-name <name>]")
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

	buy, err := deps.Helius.BuyDetails(ctx, *txID, *wallet, *mint)
	if err != nil {
		fail(cleanup, "buy details: %v", err)
	}

	// The entry is valued at the current SOL price.
	solPrice, err := deps.Oracle.SOLPriceUSD(ctx)
	if err != nil {
		fail(cleanup, "SOL price: %v", err)
	}
	pos, err := buy.Position(*wallet, cfg.Bot.Name, solPrice)
	if err != nil {
		fail(cleanup, "value entry: %v", err)
	}

	h, err := deps.Repo.GetHolding(buy.TokenMint, *wallet, cfg.Bot.Name)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		h = &storage.Holding{
			TokenMint:     buy.TokenMint,
			TokenName:     *name,
			TokenDecimals: buy.TokenDecimals,
			WalletAddress: *wallet,
			BotName:       cfg.Bot.Name,
			EntryTxID:     buy.Signature,
			DexProgram:    buy.DexProgram,
		}
	case err != nil:
		fail(cleanup, "load holding: %v", err)
	case h.EntryTxID == buy.Signature:
		fail(cleanup, "transaction %s is already recorded", buy.Signature)
	default:
		h.EntryTxID = buy.Signature
		h.Skipped = false
		h.SellAttempts = 0
		if *name != "" {
			h.TokenName = *name
		}
	}
	h.AddEntry(pos)

	if err := deps.Repo.SaveHolding(h); err != nil {
		fail(cleanup, "save holding: %v", err)
	}

	log.Info("holding recorded",
		"token", h.TokenMint, "balance", h.Balance, "paid_sol", h.EntryPaidSOL,
		"paid_usd", h.EntryPaidUSD, "unit_price", h.EntryUnitPriceUSD)
	fmt.Printf("%s: %.6f tokens, paid %.6f SOL ($%.2f), entry price $%.6g\n",
		h.TokenMint, h.Balance, h.EntryPaidSOL, h.EntryPaidUSD, h.EntryUnitPriceUSD)
}

func fail(cleanup func(), format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	cleanup()
	os.Exit(1)
}
