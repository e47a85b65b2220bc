// Package strategy holds the ordered stop-loss / take-profit ladder and the
// pure functions that pick and evaluate the next tier of each kind.
package strategy

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindStopLoss   Kind = "stop_loss"
	KindTakeProfit Kind = "take_profit"
)

type ThresholdUnit string

const (
	ThresholdPercent ThresholdUnit = "percent"
	ThresholdPrice   ThresholdUnit = "price"
)

type SellAmountUnit string

const (
	SellPercent SellAmountUnit = "percent"
	SellAmount  SellAmountUnit = "amount"
)

var ErrInvalidStrategy = errors.New("invalid strategy")

// Tier is one exit rule of a strategy.
type Tier struct {
	Kind           Kind           `yaml:"kind" json:"kind"`
	Threshold      float64        `yaml:"threshold" json:"threshold"`
	ThresholdUnit  ThresholdUnit  `yaml:"threshold_unit" json:"threshold_unit"`
	SellAmount     float64        `yaml:"sell_amount" json:"sell_amount"`
	SellAmountUnit SellAmountUnit `yaml:"sell_amount_unit" json:"sell_amount_unit"`
	Order          int            `yaml:"order" json:"order"`
	Executed       bool           `yaml:"executed" json:"executed"`
}

// ID identifies the tier inside its strategy. Orders are unique per kind.
func (t Tier) ID() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.Order)
}

func (t Tier) String() string {
	thr := fmt.Sprintf("%g%%", t.Threshold)
	if t.ThresholdUnit == ThresholdPrice {
		thr = fmt.Sprintf("$%g", t.Threshold)
	}
	amt := fmt.Sprintf("%g%%", t.SellAmount)
	if t.SellAmountUnit == SellAmount {
		amt = fmt.Sprintf("%g tokens", t.SellAmount)
	}
	return fmt.Sprintf("%s #%d at %s, sell %s", t.Kind, t.Order, thr, amt)
}

func (t Tier) validate(want Kind) error {
	if t.Kind != want {
		return fmt.Errorf("%w: tier %s listed under %s", ErrInvalidStrategy, t.ID(), want)
	}
	switch t.ThresholdUnit {
	case ThresholdPercent, ThresholdPrice:
	default:
		return fmt.Errorf("%w: tier %s: unknown threshold unit %q", ErrInvalidStrategy, t.ID(), t.ThresholdUnit)
	}
	if t.Threshold < 0 {
		return fmt.Errorf("%w: tier %s: negative threshold", ErrInvalidStrategy, t.ID())
	}
	switch t.SellAmountUnit {
	case SellPercent:
		if t.SellAmount <= 0 || t.SellAmount > 100 {
			return fmt.Errorf("%w: tier %s: sell percent %g outside (0,100]", ErrInvalidStrategy, t.ID(), t.SellAmount)
		}
	case SellAmount:
		if t.SellAmount <= 0 {
			return fmt.Errorf("%w: tier %s: sell amount must be positive", ErrInvalidStrategy, t.ID())
		}
	default:
		return fmt.Errorf("%w: tier %s: unknown sell amount unit %q", ErrInvalidStrategy, t.ID(), t.SellAmountUnit)
	}
	return nil
}

// Strategy is a named ladder of exit tiers shared by all positions of a bot.
// It is treated as immutable once loaded; per-position progress is kept in an
// ExecutionState.
type Strategy struct {
	Name       string `yaml:"name" json:"name"`
	StopLoss   []Tier `yaml:"stop_loss" json:"stop_loss"`
	TakeProfit []Tier `yaml:"take_profit" json:"take_profit"`
}

func (s Strategy) Validate() error {
	check := func(tiers []Tier, kind Kind) error {
		seen := make(map[int]bool, len(tiers))
		for _, t := range tiers {
			if err := t.validate(kind); err != nil {
				return err
			}
			if seen[t.Order] {
				return fmt.Errorf("%w: duplicate order %d for %s", ErrInvalidStrategy, t.Order, kind)
			}
			seen[t.Order] = true
		}
		return nil
	}
	if err := check(s.StopLoss, KindStopLoss); err != nil {
		return err
	}
	return check(s.TakeProfit, KindTakeProfit)
}

// TierByID looks up a configured tier by its ID.
func (s Strategy) TierByID(id string) (Tier, error) {
	for _, tiers := range [][]Tier{s.StopLoss, s.TakeProfit} {
		for _, t := range tiers {
			if t.ID() == id {
				return t, nil
			}
		}
	}
	return Tier{}, fmt.Errorf("%w: unknown tier %q", ErrInvalidStrategy, id)
}

// Snapshot returns a deep copy of the strategy with Executed set on every tier
// that is already executed in s or recorded as fired in state.
func (s Strategy) Snapshot(state ExecutionState) Strategy {
	cp := Strategy{
		Name:       s.Name,
		StopLoss:   make([]Tier, len(s.StopLoss)),
		TakeProfit: make([]Tier, len(s.TakeProfit)),
	}
	for i, t := range s.StopLoss {
		t.Executed = t.Executed || state.Fired(t.ID())
		cp.StopLoss[i] = t
	}
	for i, t := range s.TakeProfit {
		t.Executed = t.Executed || state.Fired(t.ID())
		cp.TakeProfit[i] = t
	}
	return cp
}

// ExecutionState is the set of tier IDs that already fired for one position.
// It is owned by whoever evaluates that position; the zero value is empty.
type ExecutionState struct {
	fired map[string]bool
}

func NewExecutionState(tierIDs ...string) ExecutionState {
	st := ExecutionState{fired: make(map[string]bool, len(tierIDs))}
	for _, id := range tierIDs {
		st.fired[id] = true
	}
	return st
}

func (st ExecutionState) Fired(tierID string) bool {
	return st.fired[tierID]
}

// With returns a copy of the state that also contains tierID.
func (st ExecutionState) With(tierID string) ExecutionState {
	next := ExecutionState{fired: make(map[string]bool, len(st.fired)+1)}
	for id := range st.fired {
		next.fired[id] = true
	}
	next.fired[tierID] = true
	return next
}

func (st ExecutionState) Len() int {
	return len(st.fired)
}
