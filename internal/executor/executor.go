package executor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/metrics"
	"github.com/camuig/sol-tracker/internal/notify"
	"github.com/camuig/sol-tracker/internal/pnl"
	"github.com/camuig/sol-tracker/internal/storage"
)

// SellOrder asks to sell Amount tokens (UI units) of a holding for SOL.
type SellOrder struct {
	Holding     *storage.Holding
	Amount      float64
	SlippageBps int
}

// SwapExecutor sells tokens and returns the exit transaction signature.
type SwapExecutor interface {
	Sell(ctx context.Context, order SellOrder) (string, error)
}

// DetailsSource resolves a confirmed exit transaction.
type DetailsSource interface {
	SwapDetails(ctx context.Context, signature, wallet string) (*pnl.SwapDetails, error)
}

type Executor struct {
	swapper  SwapExecutor
	details  DetailsSource
	repo     *storage.Repository
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	config   *config.Config
	logger   *logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	signaled map[string]struct{}
}

// NewExecutor builds an executor. With a nil swapper it only announces sell
// signals and leaves settlement to an external reconciliation.
func NewExecutor(
	swapper SwapExecutor,
	details DetailsSource,
	repo *storage.Repository,
	notifier *notify.Notifier,
	m *metrics.Metrics,
	cfg *config.Config,
	log *logger.Logger,
) *Executor {
	return &Executor{
		swapper:  swapper,
		details:  details,
		repo:     repo,
		notifier: notifier,
		metrics:  m,
		config:   cfg,
		logger:   log.Component("executor"),
		now:      time.Now,
		signaled: make(map[string]struct{}),
	}
}

// Handle acts on a report for one holding. Reports without a sell
// recommendation are ignored.
func (e *Executor) Handle(ctx context.Context, h *storage.Holding, report *pnl.Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in executor", "token", h.TokenMint, "panic", fmt.Sprint(r))
			err = fmt.Errorf("panic handling %s: %v", h.TokenMint, r)
		}
	}()

	if report == nil || !report.ShouldSell() || report.AmountToSell <= 0 {
		return nil
	}
	tier := report.TriggeredTier()
	if tier == nil {
		return nil
	}
	e.metrics.RecordSellSignal(h.BotName, string(tier.Kind))

	if e.swapper == nil {
		e.signal(ctx, h, report, tier.ID())
		return nil
	}
	return e.sell(ctx, h, report)
}

func (e *Executor) signal(ctx context.Context, h *storage.Holding, report *pnl.Report, tierID string) {
	key := fmt.Sprintf("%d:%s", h.ID, tierID)

	e.mu.Lock()
	_, seen := e.signaled[key]
	e.signaled[key] = struct{}{}
	e.mu.Unlock()
	if seen {
		return
	}

	e.logger.Info("sell signal",
		"token", h.TokenMint, "tier", tierID, "amount", report.AmountToSell, "pnl_percent", report.PnLPercent)
	e.notifier.NotifySignal(ctx, h.Position(), report)
}

func (e *Executor) sell(ctx context.Context, h *storage.Holding, report *pnl.Report) error {
	amount := math.Min(report.AmountToSell, h.Balance)

	txID, err := e.swapper.Sell(ctx, SellOrder{
		Holding:     h,
		Amount:      amount,
		SlippageBps: e.config.Trading.SlippageBps,
	})
	if err != nil {
		return e.failed(ctx, h, fmt.Errorf("sell %s: %w", h.TokenMint, err))
	}

	details, err := e.details.SwapDetails(ctx, txID, h.WalletAddress)
	if err != nil {
		e.logger.Error("sell sent but not confirmed", "token", h.TokenMint, "tx", txID, "error", err)
		return e.failed(ctx, h, fmt.Errorf("swap details %s: %w", txID, err))
	}

	_, err = e.Settle(ctx, h, report, details, amount)
	return err
}

// Settle records a confirmed sell of amount tokens of h. The amount actually
// spent according to details takes precedence. The holding is closed when the
// remainder is dust, otherwise it is reduced and the triggering tier marked.
func (e *Executor) Settle(ctx context.Context, h *storage.Holding, report *pnl.Report, details *pnl.SwapDetails, amount float64) (*pnl.ClosedPosition, error) {
	if details == nil {
		return nil, fmt.Errorf("settle %s: %w", h.TokenMint, pnl.ErrMalformedSwap)
	}
	if details.InputTokenAmount > 0 {
		amount = details.InputTokenAmount
	}
	if amount <= 0 || amount > h.Balance {
		amount = h.Balance
	}

	sold := h.Position().Portion(amount)
	cp, err := pnl.SettleAt(sold, report, details, details.Signature, e.now())
	if err != nil {
		return nil, fmt.Errorf("settle %s: %w", h.TokenMint, err)
	}

	pl, err := storage.NewProfitLoss(cp)
	if err != nil {
		return nil, err
	}

	if remaining := h.Balance - amount; remaining <= 0 || remaining < e.config.Trading.DustBalance {
		err = e.repo.ClosePosition(h.ID, pl)
	} else {
		var tierID string
		if cp.TriggerTier != nil {
			tierID = cp.TriggerTier.ID()
		}
		err = e.repo.RecordPartialClose(h.ID, sold, pl, tierID)
	}
	if err != nil {
		return nil, fmt.Errorf("persist settlement %s: %w", details.Signature, err)
	}

	e.metrics.RecordSettlement(cp.BotName, cp.RealizedPnLUSD)
	e.logger.Info("position settled",
		"token", cp.TokenMint, "sold", cp.ExitBalance, "sol", cp.ExitSOLReceived,
		"pnl_usd", cp.RealizedPnLUSD, "roi", cp.ROIPercent, "tx", cp.ExitTxID)
	e.notifier.NotifySettlement(ctx, cp, e.config.Mode())
	return cp, nil
}

// failed counts a failed sell attempt and gives up on the holding once the
// configured limit is reached.
func (e *Executor) failed(ctx context.Context, h *storage.Holding, cause error) error {
	e.metrics.RecordSellFailure(h.BotName)

	attempts, err := e.repo.RecordSellAttempt(h.ID, e.now())
	if err != nil {
		return errors.Join(cause, fmt.Errorf("record sell attempt: %w", err))
	}
	e.logger.Warn("sell failed", "token", h.TokenMint, "attempts", attempts, "error", cause)

	if attempts < e.config.Trading.MaxSellAttempts {
		return cause
	}
	if err := e.repo.MarkSkipped(h.ID); err != nil {
		return errors.Join(cause, fmt.Errorf("mark skipped: %w", err))
	}
	e.metrics.RecordSkipped(h.BotName)
	e.notifier.NotifySkipped(ctx, h.Position(), attempts, cause)
	return cause
}
