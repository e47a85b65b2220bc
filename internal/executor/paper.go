package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/pnl"
)

var ErrUnknownFill = errors.New("unknown paper fill")

// Quoter returns sell quotes in UI units.
type Quoter interface {
	Quote(ctx context.Context, req jupiter.QuoteRequest) (*jupiter.Quote, error)
}

// PaperExecutor simulates sells: each order is re-quoted and filled at the
// quote's slippage floor. It serves as both SwapExecutor and DetailsSource.
type PaperExecutor struct {
	quoter Quoter
	feeSOL float64
	now    func() time.Time
	logger *logger.Logger

	mu    sync.Mutex
	fills map[string]*pnl.SwapDetails
}

func NewPaperExecutor(q Quoter, networkFeeSOL float64, log *logger.Logger) *PaperExecutor {
	return &PaperExecutor{
		quoter: q,
		feeSOL: networkFeeSOL,
		now:    time.Now,
		logger: log.Component("paper"),
		fills:  make(map[string]*pnl.SwapDetails),
	}
}

func (p *PaperExecutor) Sell(ctx context.Context, order SellOrder) (string, error) {
	h := order.Holding
	q, err := p.quoter.Quote(ctx, jupiter.QuoteRequest{
		InputMint:      h.TokenMint,
		OutputMint:     jupiter.SOLMint,
		Amount:         order.Amount,
		InputDecimals:  h.TokenDecimals,
		OutputDecimals: jupiter.SOLDecimals,
		SlippageBps:    order.SlippageBps,
	})
	if err != nil {
		return "", err
	}
	out, err := q.Threshold()
	if err != nil {
		return "", err
	}
	if out <= 0 {
		return "", fmt.Errorf("%w: no output for %g %s", jupiter.ErrMalformedQuote, order.Amount, h.TokenMint)
	}

	program := "paper"
	if len(q.RoutePlan) > 0 && q.RoutePlan[0].SwapInfo.Label != "" {
		program = q.RoutePlan[0].SwapInfo.Label
	}

	sig := "paper-" + uuid.NewString()
	fill := &pnl.SwapDetails{
		Signature:        sig,
		Slot:             q.ContextSlot,
		Timestamp:        p.now(),
		NetworkFeeSOL:    p.feeSOL,
		OutputSOL:        out,
		InputTokenAmount: order.Amount,
		Legs: []pnl.SwapLeg{{
			Program:      program,
			InputMint:    h.TokenMint,
			OutputMint:   jupiter.SOLMint,
			InputAmount:  order.Amount,
			OutputAmount: out,
		}},
	}

	p.mu.Lock()
	p.fills[sig] = fill
	p.mu.Unlock()

	p.logger.Info("paper sell filled", "token", h.TokenMint, "amount", order.Amount, "sol", out, "tx", sig)
	return sig, nil
}

// SwapDetails returns a fill produced by Sell. Each fill can be read once.
func (p *PaperExecutor) SwapDetails(_ context.Context, signature, _ string) (*pnl.SwapDetails, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fill, ok := p.fills[signature]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFill, signature)
	}
	delete(p.fills, signature)
	return fill, nil
}
