package strategy

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stopLoss(order int, threshold float64, executed bool) Tier {
	return Tier{
		Kind:           KindStopLoss,
		Threshold:      threshold,
		ThresholdUnit:  ThresholdPercent,
		SellAmount:     100,
		SellAmountUnit: SellPercent,
		Order:          order,
		Executed:       executed,
	}
}

func takeProfit(order int, threshold, sell float64) Tier {
	return Tier{
		Kind:           KindTakeProfit,
		Threshold:      threshold,
		ThresholdUnit:  ThresholdPercent,
		SellAmount:     sell,
		SellAmountUnit: SellPercent,
		Order:          order,
	}
}

func TestSelectActiveTiers_OrderStable(t *testing.T) {
	s := Strategy{
		StopLoss: []Tier{
			stopLoss(2, 20, false),
			stopLoss(1, 10, false),
			stopLoss(3, 30, true),
		},
	}

	active := SelectActiveTiers(s)

	require.NotNil(t, active.StopLoss)
	assert.Equal(t, 1, active.StopLoss.Order)
	assert.Nil(t, active.TakeProfit)
}

func TestSelectActiveTiers_AllExecuted(t *testing.T) {
	s := Strategy{
		StopLoss:   []Tier{stopLoss(1, 10, true)},
		TakeProfit: []Tier{{Kind: KindTakeProfit, Order: 1, Executed: true}},
	}

	active := SelectActiveTiers(s)

	assert.Nil(t, active.StopLoss)
	assert.Nil(t, active.TakeProfit)
}

func TestSelectActiveTiers_DoesNotMutateStrategy(t *testing.T) {
	s := Strategy{TakeProfit: []Tier{takeProfit(2, 50, 50), takeProfit(1, 20, 50)}}

	active := SelectActiveTiers(s)
	active.TakeProfit.Executed = true

	assert.Equal(t, 2, s.TakeProfit[0].Order)
	assert.False(t, s.TakeProfit[1].Executed)
}

func TestPreview_UsesExecutionState(t *testing.T) {
	s := Strategy{
		TakeProfit: []Tier{takeProfit(1, 20, 50), takeProfit(2, 50, 50), takeProfit(3, 100, 100)},
	}
	state := NewExecutionState("take_profit:1")

	active := Preview(s, state)
	require.NotNil(t, active.TakeProfit)
	assert.Equal(t, 2, active.TakeProfit.Order)

	active = Preview(s, state.With("take_profit:2"))
	require.NotNil(t, active.TakeProfit)
	assert.Equal(t, 3, active.TakeProfit.Order)

	// the shared strategy is untouched
	for _, tier := range s.TakeProfit {
		assert.False(t, tier.Executed)
	}
}

func TestExecutionState_WithCopies(t *testing.T) {
	var empty ExecutionState
	assert.False(t, empty.Fired("stop_loss:1"))

	a := NewExecutionState("stop_loss:1")
	b := a.With("take_profit:1")

	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 2, b.Len())
	assert.False(t, a.Fired("take_profit:1"))
	assert.True(t, b.Fired("stop_loss:1"))
}

func TestStrategy_Validate(t *testing.T) {
	valid := Strategy{
		Name:       "default",
		StopLoss:   []Tier{stopLoss(1, 30, false)},
		TakeProfit: []Tier{takeProfit(1, 20, 50), takeProfit(2, 100, 100)},
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name string
		s    Strategy
	}{
		{"duplicate order", Strategy{TakeProfit: []Tier{takeProfit(1, 20, 50), takeProfit(1, 40, 50)}}},
		{"wrong kind", Strategy{StopLoss: []Tier{takeProfit(1, 20, 50)}}},
		{"sell percent above 100", Strategy{TakeProfit: []Tier{takeProfit(1, 20, 150)}}},
		{"zero sell percent", Strategy{TakeProfit: []Tier{takeProfit(1, 20, 0)}}},
		{"negative threshold", Strategy{StopLoss: []Tier{stopLoss(1, -5, false)}}},
		{"unknown unit", Strategy{StopLoss: []Tier{{Kind: KindStopLoss, ThresholdUnit: "bps", SellAmount: 1, SellAmountUnit: SellPercent}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			assert.True(t, errors.Is(err, ErrInvalidStrategy), "got %v", err)
		})
	}
}

func TestTier_ID(t *testing.T) {
	assert.Equal(t, "take_profit:3", takeProfit(3, 10, 10).ID())
	assert.Equal(t, "stop_loss:1", stopLoss(1, 10, false).ID())
}

func TestStrategy_TierByID(t *testing.T) {
	s := Strategy{
		StopLoss:   []Tier{stopLoss(1, 20, false)},
		TakeProfit: []Tier{takeProfit(1, 20, 50), takeProfit(2, 80, 100)},
	}

	tier, err := s.TierByID("take_profit:2")
	require.NoError(t, err)
	assert.Equal(t, KindTakeProfit, tier.Kind)
	assert.Equal(t, 80.0, tier.Threshold)

	tier, err = s.TierByID("stop_loss:1")
	require.NoError(t, err)
	assert.Equal(t, KindStopLoss, tier.Kind)

	_, err = s.TierByID("take_profit:3")
	assert.True(t, errors.Is(err, ErrInvalidStrategy), "got %v", err)
}
