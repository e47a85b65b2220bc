package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/metrics"
	"github.com/camuig/sol-tracker/internal/notify"
	"github.com/camuig/sol-tracker/internal/pnl"
	"github.com/camuig/sol-tracker/internal/price"
	"github.com/camuig/sol-tracker/internal/storage"
	"github.com/camuig/sol-tracker/internal/strategy"
)

type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
}

// Handler acts on the report of one holding.
type Handler interface {
	Handle(ctx context.Context, h *storage.Holding, report *pnl.Report) error
}

type Tracker struct {
	quoter   Quoter
	oracle   price.Oracle
	handler  Handler
	repo     *storage.Repository
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	config   *config.Config
	calc     pnl.Calculator
	logger   *logger.Logger
}

func NewTracker(
	quoter Quoter,
	oracle price.Oracle,
	handler Handler,
	repo *storage.Repository,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
	log *logger.Logger,
) *Tracker {
	return &Tracker{
		quoter:   quoter,
		oracle:   oracle,
		handler:  handler,
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		config:   cfg,
		calc:     pnl.Calculator{IncludeFees: cfg.Trading.IncludeFeesInPnL},
		logger:   log.Component("tracker"),
	}
}

func (t *Tracker) Run(ctx context.Context) {
	interval := t.config.TradingInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.logger.Info("tracker started", "interval", interval.String(), "mode", t.config.Mode())

	// Run immediately on start
	t.runCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			t.logger.Info("tracker stopped")
			return
		case <-ticker.C:
			t.runCycle(ctx)
		}
	}
}

func (t *Tracker) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic in tracker cycle", "panic", fmt.Sprint(r))
			t.notifier.NotifyError(ctx, "tracker panic", fmt.Errorf("%v", r))
		}
	}()

	start := time.Now()
	holdings, err := t.repo.GetOpenHoldings(t.config.Bot.Name)
	if err != nil {
		t.logger.Error("load holdings", "error", err)
		return
	}
	if len(holdings) == 0 {
		t.logger.Debug("no open holdings")
		t.metrics.RecordCycle(time.Since(start).Seconds(), 0)
		return
	}

	// One price per cycle so every holding is valued against the same SOL rate.
	solPrice, err := t.oracle.SOLPriceUSD(ctx)
	if err != nil {
		t.metrics.PriceErrors.Inc()
		t.logger.Warn("no SOL price, skipping cycle", "holdings", len(holdings), "error", err)
		return
	}
	t.metrics.SOLPriceUSD.Set(solPrice)

	var g errgroup.Group
	g.SetLimit(max(t.config.Trading.Concurrency, 1))
	for i := range holdings {
		h := &holdings[i]
		g.Go(func() error {
			t.process(ctx, h, solPrice)
			return nil
		})
	}
	_ = g.Wait()

	t.metrics.RecordCycle(time.Since(start).Seconds(), len(holdings))
	t.logger.Debug("cycle completed", "holdings", len(holdings), "took", time.Since(start).String())
}

func (t *Tracker) process(ctx context.Context, h *storage.Holding, solPrice float64) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("panic evaluating holding", "token", h.TokenMint, "panic", fmt.Sprint(r))
		}
	}()

	report, err := t.Evaluate(ctx, h, solPrice)
	if err != nil {
		t.logger.Error("evaluate holding", "token", h.TokenMint, "error", err)
		return
	}
	t.metrics.RecordEvaluation(h.BotName)

	t.logger.Debug("holding evaluated",
		"token", h.TokenMint,
		"unit_price", report.CurrentUnitPriceUSD,
		"value_usd", report.CurrentValueUSD,
		"pnl_usd", report.PnLUSD,
		"pnl_percent", report.PnLPercent,
		"stop_loss", report.ShouldStopLoss,
		"take_profit", report.ShouldTakeProfit,
		"amount", report.AmountToSell)

	if err := t.handler.Handle(ctx, h, report); err != nil {
		t.logger.Error("handle report", "token", h.TokenMint, "error", err)
	}
}

// Evaluate quotes the full balance of h and computes its PnL report against
// the strategy as seen by this holding.
func (t *Tracker) Evaluate(ctx context.Context, h *storage.Holding, solPrice float64) (*pnl.Report, error) {
	report, _, err := t.evaluate(ctx, h, solPrice)
	return report, err
}

func (t *Tracker) evaluate(ctx context.Context, h *storage.Holding, solPrice float64) (*pnl.Report, strategy.ExecutionState, error) {
	var state strategy.ExecutionState
	if h.Balance <= 0 {
		return nil, state, fmt.Errorf("%w: empty balance for %s", pnl.ErrInvalidInput, h.TokenMint)
	}

	q, err := t.quoter.Quote(ctx, jupiter.QuoteRequest{
		InputMint:      h.TokenMint,
		OutputMint:     jupiter.SOLMint,
		Amount:         h.Balance,
		InputDecimals:  h.TokenDecimals,
		OutputDecimals: jupiter.SOLDecimals,
		SlippageBps:    t.config.Trading.SlippageBps,
	})
	if err != nil {
		t.metrics.QuoteErrors.Inc()
		return nil, state, fmt.Errorf("quote %s: %w", h.TokenMint, err)
	}

	state, err = t.repo.ExecutionState(h.ID)
	if err != nil {
		return nil, state, fmt.Errorf("execution state %s: %w", h.TokenMint, err)
	}

	report, err := t.calc.Calculate(h.Position(), *q, t.config.Strategy.Snapshot(state), solPrice)
	if err != nil {
		if errors.Is(err, jupiter.ErrMalformedQuote) {
			t.metrics.QuoteErrors.Inc()
		}
		return nil, state, fmt.Errorf("calculate %s: %w", h.TokenMint, err)
	}
	return report, state, nil
}

// Evaluation is the preview of one holding.
type Evaluation struct {
	Holding storage.Holding
	Report  *pnl.Report
	Next    strategy.ActiveTiers
	Err     error
}

// Preview evaluates every open holding once without acting on the reports.
func (t *Tracker) Preview(ctx context.Context) ([]Evaluation, error) {
	holdings, err := t.repo.GetOpenHoldings(t.config.Bot.Name)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}
	if len(holdings) == 0 {
		return nil, nil
	}

	solPrice, err := t.oracle.SOLPriceUSD(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Evaluation, len(holdings))
	var g errgroup.Group
	g.SetLimit(max(t.config.Trading.Concurrency, 1))
	for i := range holdings {
		i := i
		g.Go(func() error {
			h := holdings[i]
			report, state, err := t.evaluate(ctx, &h, solPrice)
			out[i] = Evaluation{
				Holding: h,
				Report:  report,
				Next:    strategy.Preview(t.config.Strategy, state),
				Err:     err,
			}
			return nil
		})
	}
	_ = g.Wait()
	return out, nil
}
