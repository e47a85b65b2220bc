package strategy

import "math"

// Decision is the outcome of evaluating a single tier.
type Decision struct {
	ShouldSell   bool    `json:"should_sell"`
	AmountToSell float64 `json:"amount_to_sell"`
}

// Evaluate decides whether tier fires for the given price and PnL percent and
// how many tokens of balance to sell. A profit tier only fires on a gain and a
// loss tier only on a loss, whatever the threshold says.
func Evaluate(tier *Tier, currentPrice, pnlPercent, balance float64, isProfitTier bool) Decision {
	if tier == nil {
		return Decision{}
	}

	if isProfitTier && pnlPercent <= 0 {
		return Decision{}
	}
	if !isProfitTier && pnlPercent >= 0 {
		return Decision{}
	}

	var hit bool
	switch tier.ThresholdUnit {
	case ThresholdPercent:
		hit = math.Abs(pnlPercent) > tier.Threshold
	case ThresholdPrice:
		if isProfitTier {
			hit = currentPrice > tier.Threshold
		} else {
			hit = currentPrice < tier.Threshold
		}
	}
	if !hit {
		return Decision{}
	}

	var amount float64
	switch tier.SellAmountUnit {
	case SellPercent:
		amount = balance * tier.SellAmount / 100
	case SellAmount:
		amount = math.Min(tier.SellAmount, balance)
	}

	return Decision{ShouldSell: true, AmountToSell: amount}
}
