package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camuig/sol-tracker/internal/pnl"
	"github.com/camuig/sol-tracker/internal/strategy"
)

var ErrNotFound = fmt.Errorf("storage: %w", gorm.ErrRecordNotFound)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Ping checks that the database is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// Holdings

func (r *Repository) SaveHolding(h *Holding) error {
	return r.db.Save(h).Error
}

func (r *Repository) GetHolding(tokenMint, wallet, bot string) (*Holding, error) {
	var h Holding
	err := r.db.Where("token_mint = ? AND wallet_address = ? AND bot_name = ?", tokenMint, wallet, bot).
		First(&h).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

func (r *Repository) GetHoldingByID(id uint) (*Holding, error) {
	var h Holding
	if err := r.db.First(&h, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &h, nil
}

// GetOpenHoldings returns the holdings bot still manages: positive balance and
// not skipped after too many failed sells.
func (r *Repository) GetOpenHoldings(bot string) ([]Holding, error) {
	var holdings []Holding
	err := r.db.Where("bot_name = ? AND skipped = ? AND balance > 0", bot, false).
		Order("entry_time ASC").Find(&holdings).Error
	return holdings, err
}

func (r *Repository) GetHoldings() ([]Holding, error) {
	var holdings []Holding
	err := r.db.Order("entry_time ASC").Find(&holdings).Error
	return holdings, err
}

// RecordSellAttempt increments the failed sell counter and returns its new value.
func (r *Repository) RecordSellAttempt(id uint, at time.Time) (int, error) {
	var attempts int
	err := r.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&Holding{}).Where("id = ?", id).Updates(map[string]any{
			"sell_attempts":   gorm.Expr("sell_attempts + 1"),
			"last_attempt_at": at,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Model(&Holding{}).Where("id = ?", id).Select("sell_attempts").Scan(&attempts).Error
	})
	return attempts, err
}

func (r *Repository) MarkSkipped(id uint) error {
	return r.db.Model(&Holding{}).Where("id = ?", id).Update("skipped", true).Error
}

// Tier executions

func (r *Repository) ExecutionState(holdingID uint) (strategy.ExecutionState, error) {
	var ids []string
	err := r.db.Model(&TierExecution{}).Where("holding_id = ?", holdingID).Pluck("tier_id", &ids).Error
	if err != nil {
		return strategy.ExecutionState{}, err
	}
	return strategy.NewExecutionState(ids...), nil
}

// RecordTierExecution is idempotent per (holding, tier).
func (r *Repository) RecordTierExecution(holdingID uint, tierID, exitTxID string) error {
	return recordTier(r.db, holdingID, tierID, exitTxID)
}

func recordTier(db *gorm.DB, holdingID uint, tierID, exitTxID string) error {
	if tierID == "" {
		return nil
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&TierExecution{
		HoldingID: holdingID,
		TierID:    tierID,
		ExitTxID:  exitTxID,
	}).Error
}

// ReduceHolding removes a sold portion from the holding and resets its
// failed attempt counter.
func (r *Repository) ReduceHolding(id uint, sold pnl.Position) error {
	return reduce(r.db, id, sold)
}

func reduce(db *gorm.DB, id uint, sold pnl.Position) error {
	res := db.Model(&Holding{}).Where("id = ?", id).Updates(map[string]any{
		"balance":        gorm.Expr("MAX(balance - ?, 0)", sold.Balance),
		"entry_paid_sol": gorm.Expr("MAX(entry_paid_sol - ?, 0)", sold.EntryPaidSOL),
		"entry_paid_usd": gorm.Expr("MAX(entry_paid_usd - ?, 0)", sold.EntryPaidUSD),
		"entry_fee_sol":  gorm.Expr("MAX(entry_fee_sol - ?, 0)", sold.EntryFeeSOL),
		"entry_fee_usd":  gorm.Expr("MAX(entry_fee_usd - ?, 0)", sold.EntryFeeUSD),
		"sell_attempts":  0,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Settlements

// ClosePosition stores the final settlement and removes the holding together
// with its tier executions.
func (r *Repository) ClosePosition(holdingID uint, pl *ProfitLoss) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pl).Error; err != nil {
			return fmt.Errorf("insert profit loss: %w", err)
		}
		if err := tx.Where("holding_id = ?", holdingID).Delete(&TierExecution{}).Error; err != nil {
			return fmt.Errorf("delete tier executions: %w", err)
		}
		res := tx.Delete(&Holding{}, holdingID)
		if res.Error != nil {
			return fmt.Errorf("delete holding: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RecordPartialClose stores a partial settlement, shrinks the holding by the
// sold portion and marks the tier that triggered it.
func (r *Repository) RecordPartialClose(holdingID uint, sold pnl.Position, pl *ProfitLoss, tierID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(pl).Error; err != nil {
			return fmt.Errorf("insert profit loss: %w", err)
		}
		if err := reduce(tx, holdingID, sold); err != nil {
			return fmt.Errorf("reduce holding: %w", err)
		}
		if err := recordTier(tx, holdingID, tierID, pl.ExitTxID); err != nil {
			return fmt.Errorf("record tier: %w", err)
		}
		return nil
	})
}

// HasSettlement reports whether a sell transaction was already settled.
func (r *Repository) HasSettlement(exitTxID string) (bool, error) {
	var n int64
	err := r.db.Model(&ProfitLoss{}).Where("exit_tx_id = ?", exitTxID).Count(&n).Error
	return n > 0, err
}

func (r *Repository) GetRecentClosed(limit int) ([]ProfitLoss, error) {
	var closed []ProfitLoss
	err := r.db.Order("exit_time DESC").Limit(limit).Find(&closed).Error
	return closed, err
}

func (r *Repository) GetTodayPnL() (float64, error) {
	today := time.Now().Truncate(24 * time.Hour)
	var total float64
	err := r.db.Model(&ProfitLoss{}).
		Where("exit_time >= ?", today).
		Select("COALESCE(SUM(realized_pnl_usd), 0)").Scan(&total).Error
	return total, err
}

func (r *Repository) GetTotalPnL() (float64, error) {
	var total float64
	err := r.db.Model(&ProfitLoss{}).
		Select("COALESCE(SUM(realized_pnl_usd), 0)").Scan(&total).Error
	return total, err
}

// GetWinRate returns the share of settlements with non-negative realized PnL
// in percent, and the number of settlements it is based on.
func (r *Repository) GetWinRate() (float64, int64, error) {
	var total, wins int64
	if err := r.db.Model(&ProfitLoss{}).Count(&total).Error; err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, nil
	}
	if err := r.db.Model(&ProfitLoss{}).Where("is_take_profit = ?", true).Count(&wins).Error; err != nil {
		return 0, 0, err
	}
	return float64(wins) / float64(total) * 100, total, nil
}
