package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/camuig/sol-tracker/internal/app"
	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/strategy"
	"github.com/camuig/sol-tracker/internal/tracker"
)

type row struct {
	TokenMint        string         `json:"token_mint"`
	TokenName        string         `json:"token_name,omitempty"`
	Balance          float64        `json:"balance"`
	UnitPriceUSD     float64        `json:"unit_price_usd"`
	ValueUSD         float64        `json:"value_usd"`
	PnLUSD           float64        `json:"pnl_usd"`
	PnLPercent       float64        `json:"pnl_percent"`
	ShouldStopLoss   bool           `json:"should_stop_loss"`
	ShouldTakeProfit bool           `json:"should_take_profit"`
	AmountToSell     float64        `json:"amount_to_sell"`
	NextStopLoss     *strategy.Tier `json:"next_stop_loss"`
	NextTakeProfit   *strategy.Tier `json:"next_take_profit"`
	Error            string         `json:"error,omitempty"`
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	asJSON := flag.Bool("json", false, "print JSON instead of a table")
	flag.Parse()

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

	trk := tracker.NewTracker(deps.Jupiter, deps.Oracle, nil, deps.Repo, deps.Notifier, deps.Metrics, cfg, log)
	evals, err := trk.Preview(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "preview error: %v\n", err)
		os.Exit(1)
	}

	rows := make([]row, 0, len(evals))
	for _, e := range evals {
		r := row{
			TokenMint:      e.Holding.TokenMint,
			TokenName:      e.Holding.TokenName,
			Balance:        e.Holding.Balance,
			NextStopLoss:   e.Next.StopLoss,
			NextTakeProfit: e.Next.TakeProfit,
		}
		if e.Err != nil {
			r.Error = e.Err.Error()
		}
		if rep := e.Report; rep != nil {
			r.UnitPriceUSD = rep.CurrentUnitPriceUSD
			r.ValueUSD = rep.CurrentValueUSD
			r.PnLUSD = rep.PnLUSD
			r.PnLPercent = rep.PnLPercent
			r.ShouldStopLoss = rep.ShouldStopLoss
			r.ShouldTakeProfit = rep.ShouldTakeProfit
			r.AmountToSell = rep.AmountToSell
		}
		rows = append(rows, r)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rows); err != nil {
			fmt.Fprintf(os.Stderr, "encode error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if len(rows) == 0 {
		fmt.Println("No open holdings.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tBALANCE\tVALUE $\tPNL %\tSIGNAL\tNEXT SL\tNEXT TP")
	for _, r := range rows {
		signal := "-"
		switch {
		case r.Error != "":
			signal = "error: " + r.Error
		case r.ShouldStopLoss:
			signal = fmt.Sprintf("STOP LOSS sell %.4f", r.AmountToSell)
		case r.ShouldTakeProfit:
			signal = fmt.Sprintf("TAKE PROFIT sell %.4f", r.AmountToSell)
		}
		fmt.Fprintf(w, "%s\t%.4f\t%.2f\t%+.2f\t%s\t%s\t%s\n",
			r.TokenMint, r.Balance, r.ValueUSD, r.PnLPercent, signal, tierLabel(r.NextStopLoss), tierLabel(r.NextTakeProfit))
	}
	_ = w.Flush()
}

func tierLabel(t *strategy.Tier) string {
	if t == nil {
		return "none"
	}
	return t.String()
}
