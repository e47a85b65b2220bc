package pnl

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Settle reconciles a confirmed sell of pos into a closed position, using the
// SOL price captured in report.
func Settle(pos Position, report *Report, details *SwapDetails, exitTxID string) (*ClosedPosition, error) {
	return SettleAt(pos, report, details, exitTxID, time.Now())
}

// SettleAt is Settle with an explicit clock. Entry cost and exit value are both
// in USD; fees are reported separately and folded into the WithFees figures.
// When pos is a portion of the quoted balance, the quote's route and platform
// fees are charged pro rata.
func SettleAt(pos Position, report *Report, details *SwapDetails, exitTxID string, now time.Time) (*ClosedPosition, error) {
	if details == nil || len(details.Legs) == 0 {
		return nil, fmt.Errorf("%w: no swap legs for %s", ErrMalformedSwap, exitTxID)
	}
	if report == nil {
		return nil, fmt.Errorf("%w: no pnl report for %s", ErrInvalidInput, exitTxID)
	}
	solPrice := report.BaseAssetPriceUSD
	if !validPrice(solPrice) {
		return nil, ErrMissingBasePrice
	}
	if pos.EntryPaidUSD <= 0 {
		return nil, fmt.Errorf("%w: zero entry cost for %s", ErrInvalidInput, pos.TokenMint)
	}
	if details.OutputSOL <= 0 {
		return nil, fmt.Errorf("%w: no SOL received in %s", ErrMalformedSwap, exitTxID)
	}

	exitValue := details.OutputSOL * solPrice
	entryValue := pos.EntryPaidUSD

	routeSOL, platformSOL := report.quoteFees(pos.Balance)
	feesSOL := pos.EntryFeeSOL + details.NetworkFeeSOL + routeSOL + platformSOL
	feesUSD := feesSOL * solPrice

	realizedUSD := exitValue - entryValue

	held := now.Sub(pos.EntryTime)
	if held < 0 {
		held = 0
	}

	exitBalance := details.InputTokenAmount
	if exitBalance <= 0 {
		exitBalance = pos.Balance
	}
	var exitUnitPrice float64
	if exitBalance > 0 {
		exitUnitPrice = exitValue / exitBalance
	}

	cp := &ClosedPosition{
		SettlementID:           uuid.NewString(),
		TokenMint:              pos.TokenMint,
		TokenName:              pos.TokenName,
		EntryTime:              pos.EntryTime,
		ExitTime:               now,
		EntryBalance:           pos.Balance,
		ExitBalance:            exitBalance,
		EntrySOLPaid:           pos.EntryPaidSOL,
		ExitSOLReceived:        details.OutputSOL,
		TotalFeesSOL:           feesSOL,
		TotalFeesUSD:           feesUSD,
		RealizedPnLSOL:         details.OutputSOL - pos.EntryPaidSOL,
		RealizedPnLSOLWithFees: details.OutputSOL - pos.EntryPaidSOL - feesSOL,
		RealizedPnLUSD:         realizedUSD,
		RealizedPnLUSDWithFees: realizedUSD - feesUSD,
		ROIPercent:             exitValue / entryValue * 100,
		ROIPercentWithFees:     (exitValue - feesUSD) / entryValue * 100,
		EntryUnitPriceUSD:      pos.EntryUnitPriceUSD,
		ExitUnitPriceUSD:       exitUnitPrice,
		HoldingSeconds:         int64(held / time.Second),
		Slot:                   details.Slot,
		DexProgram:             pos.DexProgram,
		BotName:                pos.BotName,
		IsTakeProfit:           realizedUSD >= 0,
		WalletAddress:          pos.WalletAddress,
		ExitTxID:               exitTxID,
	}

	if tier := report.TriggeredTier(); tier != nil {
		t := *tier
		cp.TriggerTier = &t
	}

	return cp, nil
}

// quoteFees returns the report's route and platform fees for sold tokens.
func (r *Report) quoteFees(sold float64) (route, platform float64) {
	route, platform = r.RouteFeesSOL, r.PlatformFeeSOL
	if r.QuotedBalance > 0 && sold > 0 && sold < r.QuotedBalance {
		f := sold / r.QuotedBalance
		route *= f
		platform *= f
	}
	return route, platform
}
