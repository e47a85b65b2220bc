package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/camuig/sol-tracker/internal/pnl"
	"github.com/camuig/sol-tracker/internal/strategy"
)

// Holding is an open position. One row per (token, wallet, bot).
type Holding struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TokenMint     string `gorm:"uniqueIndex:idx_holding_owner;not null" json:"token_mint"`
	TokenName     string `json:"token_name"`
	TokenDecimals int32  `gorm:"not null;default:6" json:"token_decimals"`
	WalletAddress string `gorm:"uniqueIndex:idx_holding_owner;not null" json:"wallet_address"`
	BotName       string `gorm:"uniqueIndex:idx_holding_owner;index;not null" json:"bot_name"`

	Balance           float64   `gorm:"not null" json:"balance"`
	EntryPaidSOL      float64   `json:"entry_paid_sol"`
	EntryPaidUSD      float64   `json:"entry_paid_usd"`
	EntryFeeSOL       float64   `json:"entry_fee_sol"`
	EntryFeeUSD       float64   `json:"entry_fee_usd"`
	EntryUnitPriceUSD float64   `json:"entry_unit_price_usd"`
	EntryTime         time.Time `json:"entry_time"`
	EntryTxID         string    `json:"entry_tx_id"`
	DexProgram        string    `json:"dex_program"`

	SellAttempts  int        `gorm:"not null;default:0" json:"sell_attempts"`
	Skipped       bool       `gorm:"not null;default:false" json:"skipped"`
	LastAttemptAt *time.Time `json:"last_attempt_at"`
}

func (h *Holding) Position() pnl.Position {
	p := pnl.Position{
		TokenMint:         h.TokenMint,
		TokenName:         h.TokenName,
		Balance:           h.Balance,
		EntryPaidSOL:      h.EntryPaidSOL,
		EntryPaidUSD:      h.EntryPaidUSD,
		EntryFeeSOL:       h.EntryFeeSOL,
		EntryFeeUSD:       h.EntryFeeUSD,
		EntryUnitPriceUSD: h.EntryUnitPriceUSD,
		EntryTime:         h.EntryTime,
		WalletAddress:     h.WalletAddress,
		EntryTxID:         h.EntryTxID,
		DexProgram:        h.DexProgram,
		BotName:           h.BotName,
		SellAttempts:      h.SellAttempts,
		Skipped:           h.Skipped,
	}
	if h.LastAttemptAt != nil {
		p.LastAttemptAt = *h.LastAttemptAt
	}
	return p
}

// AddEntry folds another buy of the same token into the holding and
// recomputes the average entry unit price.
func (h *Holding) AddEntry(p pnl.Position) {
	h.Balance += p.Balance
	h.EntryPaidSOL += p.EntryPaidSOL
	h.EntryPaidUSD += p.EntryPaidUSD
	h.EntryFeeSOL += p.EntryFeeSOL
	h.EntryFeeUSD += p.EntryFeeUSD
	if h.Balance > 0 {
		h.EntryUnitPriceUSD = h.EntryPaidUSD / h.Balance
	}
	if h.EntryTime.IsZero() || (!p.EntryTime.IsZero() && p.EntryTime.Before(h.EntryTime)) {
		h.EntryTime = p.EntryTime
	}
}

// TierExecution marks a strategy tier as fired for a holding.
type TierExecution struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	HoldingID uint   `gorm:"uniqueIndex:idx_tier_execution;not null" json:"holding_id"`
	TierID    string `gorm:"uniqueIndex:idx_tier_execution;not null" json:"tier_id"`
	ExitTxID  string `json:"exit_tx_id"`
}

// ProfitLoss is a settled sell, full or partial.
type ProfitLoss struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SettlementID  string `gorm:"uniqueIndex;not null" json:"settlement_id"`
	TokenMint     string `gorm:"index;not null" json:"token_mint"`
	TokenName     string `json:"token_name"`
	WalletAddress string `json:"wallet_address"`
	BotName       string `gorm:"index" json:"bot_name"`
	DexProgram    string `json:"dex_program"`
	ExitTxID      string `gorm:"index" json:"exit_tx_id"`
	Slot          uint64 `json:"slot"`

	EntryTime      time.Time `json:"entry_time"`
	ExitTime       time.Time `gorm:"index" json:"exit_time"`
	HoldingSeconds int64     `json:"holding_seconds"`

	EntryBalance      float64 `json:"entry_balance"`
	ExitBalance       float64 `json:"exit_balance"`
	EntrySOLPaid      float64 `json:"entry_sol_paid"`
	ExitSOLReceived   float64 `json:"exit_sol_received"`
	EntryUnitPriceUSD float64 `json:"entry_unit_price_usd"`
	ExitUnitPriceUSD  float64 `json:"exit_unit_price_usd"`

	TotalFeesSOL           float64 `json:"total_fees_sol"`
	TotalFeesUSD           float64 `json:"total_fees_usd"`
	RealizedPnLSOL         float64 `gorm:"column:realized_pnl_sol" json:"realized_pnl_sol"`
	RealizedPnLSOLWithFees float64 `gorm:"column:realized_pnl_sol_with_fees" json:"realized_pnl_sol_with_fees"`
	RealizedPnLUSD         float64 `gorm:"column:realized_pnl_usd" json:"realized_pnl_usd"`
	RealizedPnLUSDWithFees float64 `gorm:"column:realized_pnl_usd_with_fees" json:"realized_pnl_usd_with_fees"`
	ROIPercent             float64 `gorm:"column:roi_percent" json:"roi_percent"`
	ROIPercentWithFees     float64 `gorm:"column:roi_percent_with_fees" json:"roi_percent_with_fees"`

	IsTakeProfit bool           `json:"is_take_profit"`
	TriggerTier  datatypes.JSON `json:"trigger_tier"`
}

func NewProfitLoss(cp *pnl.ClosedPosition) (*ProfitLoss, error) {
	pl := &ProfitLoss{
		SettlementID:           cp.SettlementID,
		TokenMint:              cp.TokenMint,
		TokenName:              cp.TokenName,
		WalletAddress:          cp.WalletAddress,
		BotName:                cp.BotName,
		DexProgram:             cp.DexProgram,
		ExitTxID:               cp.ExitTxID,
		Slot:                   cp.Slot,
		EntryTime:              cp.EntryTime,
		ExitTime:               cp.ExitTime,
		HoldingSeconds:         cp.HoldingSeconds,
		EntryBalance:           cp.EntryBalance,
		ExitBalance:            cp.ExitBalance,
		EntrySOLPaid:           cp.EntrySOLPaid,
		ExitSOLReceived:        cp.ExitSOLReceived,
		EntryUnitPriceUSD:      cp.EntryUnitPriceUSD,
		ExitUnitPriceUSD:       cp.ExitUnitPriceUSD,
		TotalFeesSOL:           cp.TotalFeesSOL,
		TotalFeesUSD:           cp.TotalFeesUSD,
		RealizedPnLSOL:         cp.RealizedPnLSOL,
		RealizedPnLSOLWithFees: cp.RealizedPnLSOLWithFees,
		RealizedPnLUSD:         cp.RealizedPnLUSD,
		RealizedPnLUSDWithFees: cp.RealizedPnLUSDWithFees,
		ROIPercent:             cp.ROIPercent,
		ROIPercentWithFees:     cp.ROIPercentWithFees,
		IsTakeProfit:           cp.IsTakeProfit,
	}
	if cp.TriggerTier != nil {
		raw, err := json.Marshal(cp.TriggerTier)
		if err != nil {
			return nil, fmt.Errorf("marshal trigger tier: %w", err)
		}
		pl.TriggerTier = datatypes.JSON(raw)
	}
	return pl, nil
}

// Tier decodes the stored trigger tier; nil for manual settlements.
func (p *ProfitLoss) Tier() *strategy.Tier {
	if len(p.TriggerTier) == 0 || string(p.TriggerTier) == "null" {
		return nil
	}
	var t strategy.Tier
	if err := json.Unmarshal(p.TriggerTier, &t); err != nil {
		return nil
	}
	return &t
}
