package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/camuig/sol-tracker/internal/pnl"
)

func FormatSettlement(cp *pnl.ClosedPosition, mode string) (string, string) {
	emoji := "💰"
	label := "TAKE PROFIT"
	if SettlementEvent(cp) == EventStopLoss {
		emoji = "🔴"
		label = "STOP LOSS"
	}
	title := fmt.Sprintf("%s %s %s [%s]", emoji, label, tokenLabel(cp.TokenName, cp.TokenMint), mode)

	var b strings.Builder
	fmt.Fprintf(&b, "Sold: %s tokens for %.6f SOL\n", fmtAmount(cp.ExitBalance), cp.ExitSOLReceived)
	fmt.Fprintf(&b, "PnL: %+.2f USD (%+.4f SOL)\n", cp.RealizedPnLUSD, cp.RealizedPnLSOL)
	fmt.Fprintf(&b, "PnL with fees: %+.2f USD\n", cp.RealizedPnLUSDWithFees)
	fmt.Fprintf(&b, "ROI: %.1f%% (%.1f%% with fees)\n", cp.ROIPercent, cp.ROIPercentWithFees)
	fmt.Fprintf(&b, "Price: $%s -> $%s\n", fmtPrice(cp.EntryUnitPriceUSD), fmtPrice(cp.ExitUnitPriceUSD))
	fmt.Fprintf(&b, "Held: %s\n", (time.Duration(cp.HoldingSeconds) * time.Second).String())
	if cp.TriggerTier != nil {
		fmt.Fprintf(&b, "Tier: %s\n", cp.TriggerTier.String())
	}
	fmt.Fprintf(&b, "Tx: %s", cp.ExitTxID)
	return title, b.String()
}

// FormatSignal describes a sell recommendation that still has to be executed
// by an external signer.
func FormatSignal(pos pnl.Position, r *pnl.Report) (string, string) {
	tier := r.TriggeredTier()
	label := "TAKE PROFIT"
	if r.ShouldStopLoss {
		label = "STOP LOSS"
	}
	title := fmt.Sprintf("📣 %s signal %s", label, tokenLabel(pos.TokenName, pos.TokenMint))

	var b strings.Builder
	fmt.Fprintf(&b, "Sell: %s of %s tokens\n", fmtAmount(r.AmountToSell), fmtAmount(pos.Balance))
	fmt.Fprintf(&b, "PnL: %+.2f%% (%+.2f USD)\n", r.PnLPercent, r.PnLUSD)
	fmt.Fprintf(&b, "Price: $%s (entry $%s)\n", fmtPrice(r.CurrentUnitPriceUSD), fmtPrice(pos.EntryUnitPriceUSD))
	if tier != nil {
		fmt.Fprintf(&b, "Tier: %s\n", tier.String())
	}
	fmt.Fprintf(&b, "Wallet: %s", pos.WalletAddress)
	return title, b.String()
}

func FormatSkipped(pos pnl.Position, attempts int, cause error) (string, string) {
	title := fmt.Sprintf("⏸ SKIPPED %s", tokenLabel(pos.TokenName, pos.TokenMint))
	msg := fmt.Sprintf("Sell failed %d times, holding is no longer tracked.\nLast error: %v\nWallet: %s",
		attempts, cause, pos.WalletAddress)
	return title, msg
}

func FormatError(where string, err error) (string, string) {
	return fmt.Sprintf("⚠️ Error [%s]", where), fmt.Sprint(err)
}

func tokenLabel(name, mint string) string {
	short := mint
	if len(short) > 8 {
		short = short[:4] + ".." + short[len(short)-4:]
	}
	if name == "" {
		return short
	}
	return fmt.Sprintf("%s (%s)", name, short)
}

func fmtAmount(v float64) string {
	s := strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}

// fmtPrice keeps significant digits for memecoin prices far below a cent.
func fmtPrice(v float64) string {
	return fmt.Sprintf("%.6g", v)
}
