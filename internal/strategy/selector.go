package strategy

import "sort"

// ActiveTiers are the next un-executed tier of each kind, nil when a kind has
// none left.
type ActiveTiers struct {
	StopLoss   *Tier
	TakeProfit *Tier
}

// SelectActiveTiers returns the lowest-order non-executed tier of each kind.
// Only one tier per kind is live at a time, so a price move that crosses two
// thresholds at once is still evaluated against the next tier in order.
func SelectActiveTiers(s Strategy) ActiveTiers {
	return ActiveTiers{
		StopLoss:   nextTier(s.StopLoss),
		TakeProfit: nextTier(s.TakeProfit),
	}
}

// Preview is SelectActiveTiers over the strategy as seen by one position.
func Preview(s Strategy, state ExecutionState) ActiveTiers {
	return SelectActiveTiers(s.Snapshot(state))
}

func nextTier(tiers []Tier) *Tier {
	pending := make([]Tier, 0, len(tiers))
	for _, t := range tiers {
		if !t.Executed {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Order < pending[j].Order
	})
	next := pending[0]
	return &next
}
