package pnl

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/strategy"
)

func exitDetails(outputSOL float64) *SwapDetails {
	return &SwapDetails{
		Signature:        "5sig",
		Slot:             310000000,
		NetworkFeeSOL:    0.000005,
		OutputSOL:        outputSOL,
		InputTokenAmount: 1000,
		Legs: []SwapLeg{{
			Program:      "RAYDIUM",
			InputMint:    "Mint111",
			OutputMint:   jupiter.SOLMint,
			InputAmount:  1000,
			OutputAmount: outputSOL,
		}},
	}
}

func TestSettleAt_RealizedFigures(t *testing.T) {
	entry := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	now := entry.Add(90 * time.Minute)

	pos := scenarioPosition()
	pos.EntryTime = entry

	report := &Report{
		BaseAssetPriceUSD: 150,
		RouteFeesSOL:      0.00002,
		PlatformFeeSOL:    0.00001,
		ShouldTakeProfit:  true,
		ActiveTakeProfit:  &scenarioStrategy().TakeProfit[0],
	}

	cp, err := SettleAt(pos, report, exitDetails(0.01), "5sig", now)
	require.NoError(t, err)

	assert.NotEmpty(t, cp.SettlementID)
	assert.InDelta(t, 1.5-1.0, cp.RealizedPnLUSD, 1e-9)
	assert.InDelta(t, 150, cp.ROIPercent, 1e-6)

	fees := 0.00033 + 0.000005 + 0.00002 + 0.00001
	assert.InDelta(t, fees, cp.TotalFeesSOL, 1e-12)
	assert.InDelta(t, fees*150, cp.TotalFeesUSD, 1e-9)
	assert.InDelta(t, 0.5-fees*150, cp.RealizedPnLUSDWithFees, 1e-9)
	assert.InDelta(t, (1.5-fees*150)/1.0*100, cp.ROIPercentWithFees, 1e-6)
	assert.InDelta(t, 0.01-0.0066, cp.RealizedPnLSOL, 1e-12)
	assert.InDelta(t, 0.01-0.0066-fees, cp.RealizedPnLSOLWithFees, 1e-12)

	assert.Equal(t, int64(5400), cp.HoldingSeconds)
	assert.Equal(t, uint64(310000000), cp.Slot)
	assert.Equal(t, now, cp.ExitTime)
	assert.InDelta(t, 0.0015, cp.ExitUnitPriceUSD, 1e-12)
	assert.True(t, cp.IsTakeProfit)
	require.NotNil(t, cp.TriggerTier)
	assert.Equal(t, strategy.KindTakeProfit, cp.TriggerTier.Kind)
	assert.Equal(t, "5sig", cp.ExitTxID)
}

func TestSettleAt_SignClassification(t *testing.T) {
	pos := scenarioPosition()
	report := &Report{BaseAssetPriceUSD: 200}

	// 0.00495 SOL * 200 = 0.99 USD against 1.00 paid
	loss, err := SettleAt(pos, report, exitDetails(0.00495), "tx-loss", time.Now())
	require.NoError(t, err)
	assert.InDelta(t, -0.01, loss.RealizedPnLUSD, 1e-9)
	assert.False(t, loss.IsTakeProfit)

	even, err := SettleAt(pos, report, exitDetails(0.005), "tx-even", time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0.0, even.RealizedPnLUSD)
	assert.True(t, even.IsTakeProfit)
}

func TestSettle_FailsClosed(t *testing.T) {
	pos := scenarioPosition()
	report := &Report{BaseAssetPriceUSD: 150}

	_, err := Settle(pos, report, nil, "tx")
	assert.True(t, errors.Is(err, ErrMalformedSwap))

	noLegs := exitDetails(0.01)
	noLegs.Legs = nil
	_, err = Settle(pos, report, noLegs, "tx")
	assert.True(t, errors.Is(err, ErrMalformedSwap))

	_, err = Settle(pos, nil, exitDetails(0.01), "tx")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = Settle(pos, &Report{}, exitDetails(0.01), "tx")
	assert.True(t, errors.Is(err, ErrMissingBasePrice))

	_, err = Settle(pos, report, exitDetails(0), "tx")
	assert.True(t, errors.Is(err, ErrMalformedSwap))

	zero := pos
	zero.EntryPaidUSD = 0
	_, err = Settle(zero, report, exitDetails(0.01), "tx")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}

func TestSettleAt_ClockSkewClampsDuration(t *testing.T) {
	pos := scenarioPosition()
	pos.EntryTime = time.Now().Add(time.Hour)

	cp, err := SettleAt(pos, &Report{BaseAssetPriceUSD: 150}, exitDetails(0.01), "tx", time.Now())
	require.NoError(t, err)
	assert.Zero(t, cp.HoldingSeconds)
}

func TestSettleAt_PartialPortion(t *testing.T) {
	pos := scenarioPosition().Portion(500)
	details := exitDetails(0.005)
	details.InputTokenAmount = 500

	cp, err := SettleAt(pos, &Report{BaseAssetPriceUSD: 150}, details, "tx", time.Now())
	require.NoError(t, err)

	assert.Equal(t, 500.0, cp.EntryBalance)
	assert.InDelta(t, 0.75-0.5, cp.RealizedPnLUSD, 1e-9)
	assert.InDelta(t, 150, cp.ROIPercent, 1e-6)
}

func TestSettleAt_PartialSellPaysItsShareOfQuoteFees(t *testing.T) {
	report := &Report{
		BaseAssetPriceUSD: 150,
		RouteFeesSOL:      0.00004,
		PlatformFeeSOL:    0.00002,
		QuotedBalance:     1000,
	}
	details := exitDetails(0.005)
	details.InputTokenAmount = 250
	details.NetworkFeeSOL = 0

	pos := scenarioPosition().Portion(250)
	cp, err := SettleAt(pos, report, details, "tx", time.Now())
	require.NoError(t, err)

	want := pos.EntryFeeSOL + 0.00001 + 0.000005
	assert.InDelta(t, want, cp.TotalFeesSOL, 1e-12)

	full, err := SettleAt(scenarioPosition(), report, exitDetails(0.02), "tx", time.Now())
	require.NoError(t, err)
	assert.InDelta(t, 0.00033+0.000005+0.00004+0.00002, full.TotalFeesSOL, 1e-12)
}

func TestReport_WithTrigger(t *testing.T) {
	tier := scenarioStrategy().TakeProfit[0]
	r := &Report{BaseAssetPriceUSD: 150, ShouldStopLoss: true}

	forced := r.WithTrigger(tier)
	require.NotNil(t, forced.TriggeredTier())
	assert.Equal(t, tier.ID(), forced.TriggeredTier().ID())
	assert.False(t, forced.ShouldStopLoss)
	assert.Equal(t, 150.0, forced.BaseAssetPriceUSD)

	assert.True(t, r.ShouldStopLoss)
	assert.Nil(t, r.ActiveTakeProfit)
}
