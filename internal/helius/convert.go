package helius

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/pnl"
)

// ToSwapDetails converts a parsed transaction into swap details from wallet's
// point of view. SOL received is taken from the native output, or from wrapped
// SOL token outputs when the route ended in WSOL.
func ToSwapDetails(tx *Transaction, wallet string) (*pnl.SwapDetails, error) {
	if tx.TransactionError != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, tx.Signature, tx.TransactionError)
	}
	swap := tx.Events.Swap
	if swap == nil || len(swap.InnerSwaps) == 0 {
		return nil, fmt.Errorf("%w: %s has no swap event", pnl.ErrMalformedSwap, tx.Signature)
	}

	legs := make([]pnl.SwapLeg, 0, len(swap.InnerSwaps))
	for _, inner := range swap.InnerSwaps {
		leg := pnl.SwapLeg{Program: inner.ProgramInfo.Source}
		if leg.Program == "" {
			leg.Program = inner.ProgramInfo.ProgramName
		}
		for _, in := range inner.TokenInputs {
			if leg.InputMint == "" {
				leg.InputMint = in.Mint
			}
			if in.Mint == leg.InputMint {
				leg.InputAmount += in.TokenAmount
			}
		}
		for _, out := range inner.TokenOutputs {
			if leg.OutputMint == "" {
				leg.OutputMint = out.Mint
			}
			if out.Mint == leg.OutputMint {
				leg.OutputAmount += out.TokenAmount
			}
		}
		legs = append(legs, leg)
	}

	outputSOL, err := solReceived(swap, wallet)
	if err != nil {
		return nil, err
	}

	var sold float64
	for _, in := range swap.TokenInputs {
		if in.Mint == jupiter.SOLMint || !owned(in.UserAccount, wallet) {
			continue
		}
		amt, err := uiAmount(in.RawTokenAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: token input %s: %v", pnl.ErrMalformedSwap, in.Mint, err)
		}
		sold += amt
	}

	// A swap the wallet was not party to must never settle as a total loss.
	if outputSOL <= 0 {
		return nil, fmt.Errorf("%w: %s paid no SOL to %s", pnl.ErrMalformedSwap, tx.Signature, wallet)
	}
	if sold <= 0 {
		return nil, fmt.Errorf("%w: %s sold no tokens from %s", pnl.ErrMalformedSwap, tx.Signature, wallet)
	}

	return &pnl.SwapDetails{
		Signature:        tx.Signature,
		Slot:             tx.Slot,
		Timestamp:        time.Unix(tx.Timestamp, 0).UTC(),
		NetworkFeeSOL:    float64(tx.Fee) / 1e9,
		OutputSOL:        outputSOL,
		InputTokenAmount: sold,
		Legs:             legs,
	}, nil
}

func solReceived(swap *SwapEvent, wallet string) (float64, error) {
	if out := swap.NativeOutput; out != nil && out.Amount != "" && owned(out.Account, wallet) {
		lamports, err := decimal.NewFromString(out.Amount)
		if err != nil {
			return 0, fmt.Errorf("%w: native output %q: %v", pnl.ErrMalformedSwap, out.Amount, err)
		}
		return lamports.Shift(-jupiter.SOLDecimals).InexactFloat64(), nil
	}

	var total float64
	for _, out := range swap.TokenOutputs {
		if out.Mint != jupiter.SOLMint || !owned(out.UserAccount, wallet) {
			continue
		}
		amt, err := uiAmount(out.RawTokenAmount)
		if err != nil {
			return 0, fmt.Errorf("%w: wsol output: %v", pnl.ErrMalformedSwap, err)
		}
		total += amt
	}
	return total, nil
}

func uiAmount(raw RawTokenAmount) (float64, error) {
	d, err := decimal.NewFromString(raw.TokenAmount)
	if err != nil {
		return 0, err
	}
	return d.Shift(-raw.Decimals).InexactFloat64(), nil
}

// owned treats an empty account as the fee payer's.
func owned(account, wallet string) bool {
	return account == "" || wallet == "" || account == wallet
}

// BuyDetails describe a confirmed entry swap of SOL into a token.
type BuyDetails struct {
	Signature     string
	Slot          uint64
	Timestamp     time.Time
	TokenMint     string
	TokenDecimals int32
	TokenAmount   float64
	InputSOL      float64
	NetworkFeeSOL float64
	DexProgram    string
}

// ToBuyDetails converts a parsed transaction into the entry made by wallet.
// An empty mint selects the first non-SOL token the wallet received.
func ToBuyDetails(tx *Transaction, wallet, mint string) (*BuyDetails, error) {
	if tx.TransactionError != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrTransactionFailed, tx.Signature, tx.TransactionError)
	}
	swap := tx.Events.Swap
	if swap == nil || len(swap.InnerSwaps) == 0 {
		return nil, fmt.Errorf("%w: %s has no swap event", pnl.ErrMalformedSwap, tx.Signature)
	}

	b := &BuyDetails{
		Signature:     tx.Signature,
		Slot:          tx.Slot,
		Timestamp:     time.Unix(tx.Timestamp, 0).UTC(),
		TokenMint:     mint,
		NetworkFeeSOL: float64(tx.Fee) / 1e9,
		DexProgram:    swap.InnerSwaps[0].ProgramInfo.Source,
	}

	for _, out := range swap.TokenOutputs {
		if out.Mint == jupiter.SOLMint || !owned(out.UserAccount, wallet) {
			continue
		}
		if b.TokenMint == "" {
			b.TokenMint = out.Mint
		}
		if out.Mint != b.TokenMint {
			continue
		}
		amt, err := uiAmount(out.RawTokenAmount)
		if err != nil {
			return nil, fmt.Errorf("%w: token output %s: %v", pnl.ErrMalformedSwap, out.Mint, err)
		}
		b.TokenAmount += amt
		b.TokenDecimals = out.RawTokenAmount.Decimals
	}
	if b.TokenAmount <= 0 {
		return nil, fmt.Errorf("%w: %s received no tokens", pnl.ErrMalformedSwap, tx.Signature)
	}

	if in := swap.NativeInput; in != nil && in.Amount != "" && owned(in.Account, wallet) {
		lamports, err := decimal.NewFromString(in.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: native input %q: %v", pnl.ErrMalformedSwap, in.Amount, err)
		}
		b.InputSOL = lamports.Shift(-jupiter.SOLDecimals).InexactFloat64()
	} else {
		for _, in := range swap.TokenInputs {
			if in.Mint != jupiter.SOLMint || !owned(in.UserAccount, wallet) {
				continue
			}
			amt, err := uiAmount(in.RawTokenAmount)
			if err != nil {
				return nil, fmt.Errorf("%w: wsol input: %v", pnl.ErrMalformedSwap, err)
			}
			b.InputSOL += amt
		}
	}
	if b.InputSOL <= 0 {
		return nil, fmt.Errorf("%w: %s spent no SOL", pnl.ErrMalformedSwap, tx.Signature)
	}
	return b, nil
}

// Position values the entry in USD at solPriceUSD.
func (b *BuyDetails) Position(wallet, bot string, solPriceUSD float64) (pnl.Position, error) {
	if solPriceUSD <= 0 {
		return pnl.Position{}, pnl.ErrMissingBasePrice
	}
	paidUSD := b.InputSOL * solPriceUSD
	return pnl.Position{
		TokenMint:         b.TokenMint,
		Balance:           b.TokenAmount,
		EntryPaidSOL:      b.InputSOL,
		EntryPaidUSD:      paidUSD,
		EntryFeeSOL:       b.NetworkFeeSOL,
		EntryFeeUSD:       b.NetworkFeeSOL * solPriceUSD,
		EntryUnitPriceUSD: paidUSD / b.TokenAmount,
		EntryTime:         b.Timestamp,
		WalletAddress:     wallet,
		EntryTxID:         b.Signature,
		DexProgram:        b.DexProgram,
		BotName:           bot,
	}, nil
}
