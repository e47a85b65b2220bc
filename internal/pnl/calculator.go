package pnl

import (
	"math"
	"strconv"

	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/strategy"
)

// Calculator computes PnL reports with a fixed fee policy.
type Calculator struct {
	IncludeFees bool
}

func (c Calculator) Calculate(pos Position, q jupiter.Quote, s strategy.Strategy, solPriceUSD float64) (*Report, error) {
	return Calculate(pos, q, s, solPriceUSD, c.IncludeFees)
}

// Calculate values pos at the quote, evaluates the next stop-loss and
// take-profit tier of s and returns the report. It fails without a usable SOL
// price and on quotes missing outAmount or swapUsdValue. Nothing is mutated.
func Calculate(pos Position, q jupiter.Quote, s strategy.Strategy, solPriceUSD float64, includeFees bool) (*Report, error) {
	if !validPrice(solPriceUSD) {
		return nil, ErrMissingBasePrice
	}

	outAmount, err := q.Out()
	if err != nil {
		return nil, err
	}
	usdValue, err := q.USDValue()
	if err != nil {
		return nil, err
	}

	unitPrice := usdValue / outAmount

	// With fees, value the slippage floor rather than the expected output.
	sellable := outAmount
	if includeFees {
		threshold, err := q.Threshold()
		if err != nil {
			return nil, err
		}
		sellable = threshold
	}
	baseAmount := sellable * unitPrice / solPriceUSD
	currentValue := baseAmount * solPriceUSD

	totalCost := pos.EntryPaidUSD
	if includeFees {
		totalCost += pos.EntryFeeUSD
	}

	pnlUSD := currentValue - totalCost
	priceDiff := unitPrice - pos.EntryUnitPriceUSD

	r := &Report{
		CurrentUnitPriceUSD:    unitPrice,
		PriceDiffUSD:           priceDiff,
		PriceDiffPercent:       percentOf(priceDiff, pos.EntryUnitPriceUSD),
		BaseAssetPriceUSD:      solPriceUSD,
		CurrentBaseAssetAmount: baseAmount,
		CurrentValueUSD:        currentValue,
		TotalCostUSD:           totalCost,
		PnLUSD:                 pnlUSD,
		PnLPercent:             percentOf(pnlUSD, totalCost),
		IncludeFees:            includeFees,
		EntryFeeSOL:            pos.EntryFeeSOL,
		EntryFeeUSD:            pos.EntryFeeUSD,
		QuotedBalance:          pos.Balance,
		SlippageBps:            q.SlippageBps,
		SlippagePercent:        float64(q.SlippageBps) / 100,
		PriceImpactPercent:     q.PriceImpact() * 100,
	}

	if includeFees {
		r.RouteFeesSOL, r.RouteFeesRaw = routeFees(q.RoutePlan)
		if q.PlatformFee != nil {
			r.PlatformFeeSOL = jupiter.LamportsToSOL(q.PlatformFee.Amount)
		}
	}

	active := strategy.SelectActiveTiers(s)
	r.ActiveStopLoss = active.StopLoss
	r.ActiveTakeProfit = active.TakeProfit

	sl := strategy.Evaluate(active.StopLoss, unitPrice, r.PnLPercent, pos.Balance, false)
	tp := strategy.Evaluate(active.TakeProfit, unitPrice, r.PnLPercent, pos.Balance, true)
	r.ShouldStopLoss = sl.ShouldSell
	r.ShouldTakeProfit = tp.ShouldSell

	switch {
	case sl.ShouldSell:
		r.AmountToSell = sl.AmountToSell
	case tp.ShouldSell:
		r.AmountToSell = tp.AmountToSell
	}

	return r, nil
}

// routeFees sums hop fees: wrapped SOL fees are returned in SOL, fees charged
// in any other mint are summed raw.
func routeFees(plan []jupiter.RoutePlanStep) (sol, other float64) {
	for _, step := range plan {
		if step.SwapInfo.FeeAmount == "" {
			continue
		}
		if step.SwapInfo.FeeMint == jupiter.SOLMint {
			sol += jupiter.LamportsToSOL(step.SwapInfo.FeeAmount)
			continue
		}
		if raw, err := strconv.ParseFloat(step.SwapInfo.FeeAmount, 64); err == nil {
			other += raw
		}
	}
	return sol, other
}

func percentOf(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
