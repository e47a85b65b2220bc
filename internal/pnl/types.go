// Package pnl turns an open position and a live sell quote into a PnL report
// with a sell recommendation, and reconciles a confirmed sell into a closed
// position record. Everything here is pure computation.
package pnl

import (
	"errors"
	"fmt"
	"time"

	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/strategy"
)

var (
	// ErrInvalidInput is returned for missing or zero numeric inputs that would
	// otherwise produce NaN or Inf.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingBasePrice is returned when no usable SOL price is available.
	ErrMissingBasePrice = fmt.Errorf("%w: missing base asset price", ErrInvalidInput)

	ErrMalformedQuote = jupiter.ErrMalformedQuote

	// ErrMalformedSwap is returned when exit swap details lack swap legs.
	ErrMalformedSwap = errors.New("malformed swap details")
)

// Position is an open holding of a token by a wallet.
type Position struct {
	TokenMint         string    `json:"token_mint"`
	TokenName         string    `json:"token_name"`
	Balance           float64   `json:"balance"`
	EntryPaidSOL      float64   `json:"entry_paid_sol"`
	EntryPaidUSD      float64   `json:"entry_paid_usd"`
	EntryFeeSOL       float64   `json:"entry_fee_sol"`
	EntryFeeUSD       float64   `json:"entry_fee_usd"`
	EntryUnitPriceUSD float64   `json:"entry_unit_price_usd"`
	EntryTime         time.Time `json:"entry_time"`
	WalletAddress     string    `json:"wallet_address"`
	EntryTxID         string    `json:"entry_tx_id"`
	DexProgram        string    `json:"dex_program"`
	BotName           string    `json:"bot_name"`
	SellAttempts      int       `json:"sell_attempts"`
	Skipped           bool      `json:"skipped"`
	LastAttemptAt     time.Time `json:"last_attempt_at"`
}

// Portion returns the position restricted to amount tokens, with cost basis and
// entry fees scaled by amount / Balance. Amounts above the balance are clamped.
func (p Position) Portion(amount float64) Position {
	if p.Balance <= 0 || amount >= p.Balance {
		return p
	}
	if amount < 0 {
		amount = 0
	}
	f := amount / p.Balance
	out := p
	out.Balance = amount
	out.EntryPaidSOL *= f
	out.EntryPaidUSD *= f
	out.EntryFeeSOL *= f
	out.EntryFeeUSD *= f
	return out
}

// Report is the result of one PnL evaluation.
type Report struct {
	CurrentUnitPriceUSD    float64 `json:"current_unit_price_usd"`
	PriceDiffUSD           float64 `json:"price_diff_usd"`
	PriceDiffPercent       float64 `json:"price_diff_percent"`
	BaseAssetPriceUSD      float64 `json:"base_asset_price_usd"`
	CurrentBaseAssetAmount float64 `json:"current_base_asset_amount"`
	CurrentValueUSD        float64 `json:"current_value_usd"`
	TotalCostUSD           float64 `json:"total_cost_usd"`
	PnLUSD                 float64 `json:"pnl_usd"`
	PnLPercent             float64 `json:"pnl_percent"`

	IncludeFees    bool    `json:"include_fees"`
	EntryFeeSOL    float64 `json:"entry_fee_sol"`
	EntryFeeUSD    float64 `json:"entry_fee_usd"`
	RouteFeesSOL   float64 `json:"route_fees_sol"`
	RouteFeesRaw   float64 `json:"route_fees_raw"`
	PlatformFeeSOL float64 `json:"platform_fee_sol"`

	// QuotedBalance is the token amount the quote, and so the fees, covered.
	QuotedBalance float64 `json:"quoted_balance"`

	SlippageBps        int     `json:"slippage_bps"`
	SlippagePercent    float64 `json:"slippage_percent"`
	PriceImpactPercent float64 `json:"price_impact_percent"`

	ActiveStopLoss   *strategy.Tier `json:"active_stop_loss,omitempty"`
	ActiveTakeProfit *strategy.Tier `json:"active_take_profit,omitempty"`
	ShouldStopLoss   bool           `json:"should_stop_loss"`
	ShouldTakeProfit bool           `json:"should_take_profit"`
	AmountToSell     float64        `json:"amount_to_sell"`
}

// ShouldSell reports whether either tier fired.
func (r *Report) ShouldSell() bool {
	return r.ShouldStopLoss || r.ShouldTakeProfit
}

// TriggeredTier is the tier behind AmountToSell, stop-loss first.
func (r *Report) TriggeredTier() *strategy.Tier {
	switch {
	case r.ShouldStopLoss:
		return r.ActiveStopLoss
	case r.ShouldTakeProfit:
		return r.ActiveTakeProfit
	default:
		return nil
	}
}

// WithTrigger returns a copy of r in which t is the tier that fired. Used when
// a sell happened outside the tracker and the tier behind it is known.
func (r *Report) WithTrigger(t strategy.Tier) *Report {
	cp := *r
	cp.ShouldStopLoss = t.Kind == strategy.KindStopLoss
	cp.ShouldTakeProfit = t.Kind == strategy.KindTakeProfit
	switch t.Kind {
	case strategy.KindStopLoss:
		cp.ActiveStopLoss = &t
	case strategy.KindTakeProfit:
		cp.ActiveTakeProfit = &t
	}
	return &cp
}

// SwapDetails describe a confirmed exit swap.
type SwapDetails struct {
	Signature        string    `json:"signature"`
	Slot             uint64    `json:"slot"`
	Timestamp        time.Time `json:"timestamp"`
	NetworkFeeSOL    float64   `json:"network_fee_sol"`
	OutputSOL        float64   `json:"output_sol"`
	InputTokenAmount float64   `json:"input_token_amount"`
	Legs             []SwapLeg `json:"legs"`
}

type SwapLeg struct {
	Program      string  `json:"program"`
	InputMint    string  `json:"input_mint"`
	OutputMint   string  `json:"output_mint"`
	InputAmount  float64 `json:"input_amount"`
	OutputAmount float64 `json:"output_amount"`
}

// ClosedPosition is the realized result of a confirmed sell.
type ClosedPosition struct {
	SettlementID           string         `json:"settlement_id"`
	TokenMint              string         `json:"token_mint"`
	TokenName              string         `json:"token_name"`
	EntryTime              time.Time      `json:"entry_time"`
	ExitTime               time.Time      `json:"exit_time"`
	EntryBalance           float64        `json:"entry_balance"`
	ExitBalance            float64        `json:"exit_balance"`
	EntrySOLPaid           float64        `json:"entry_sol_paid"`
	ExitSOLReceived        float64        `json:"exit_sol_received"`
	TotalFeesSOL           float64        `json:"total_fees_sol"`
	TotalFeesUSD           float64        `json:"total_fees_usd"`
	RealizedPnLSOL         float64        `json:"realized_pnl_sol"`
	RealizedPnLSOLWithFees float64        `json:"realized_pnl_sol_with_fees"`
	RealizedPnLUSD         float64        `json:"realized_pnl_usd"`
	RealizedPnLUSDWithFees float64        `json:"realized_pnl_usd_with_fees"`
	ROIPercent             float64        `json:"roi_percent"`
	ROIPercentWithFees     float64        `json:"roi_percent_with_fees"`
	EntryUnitPriceUSD      float64        `json:"entry_unit_price_usd"`
	ExitUnitPriceUSD       float64        `json:"exit_unit_price_usd"`
	HoldingSeconds         int64          `json:"holding_seconds"`
	Slot                   uint64         `json:"slot"`
	DexProgram             string         `json:"dex_program"`
	BotName                string         `json:"bot_name"`
	IsTakeProfit           bool           `json:"is_take_profit"`
	WalletAddress          string         `json:"wallet_address"`
	ExitTxID               string         `json:"exit_tx_id"`
	TriggerTier            *strategy.Tier `json:"trigger_tier,omitempty"`
}
