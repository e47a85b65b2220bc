package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/sol-tracker/internal/strategy"
)

const minimalYAML = `
strategy:
  take_profit:
    - kind: take_profit
      threshold: 20
      threshold_unit: percent
      sell_amount: 50
      sell_amount_unit: percent
      order: 1
`

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "tracker", cfg.Bot.Name)
	assert.Equal(t, 5*time.Second, cfg.TradingInterval())
	assert.Equal(t, 200, cfg.Trading.SlippageBps)
	assert.Equal(t, 5, cfg.Trading.MaxSellAttempts)
	assert.Equal(t, 30*time.Second, cfg.PriceMaxAge())
	assert.Equal(t, "https://api.jup.ag/swap/v1/quote", cfg.Jupiter.QuoteURL)
	assert.Equal(t, "SIGNAL", cfg.Mode())

	require.Len(t, cfg.Strategy.TakeProfit, 1)
	tier := cfg.Strategy.TakeProfit[0]
	assert.Equal(t, strategy.KindTakeProfit, tier.Kind)
	assert.Equal(t, strategy.ThresholdPercent, tier.ThresholdUnit)
	assert.Equal(t, strategy.SellPercent, tier.SellAmountUnit)
	assert.Equal(t, 50.0, tier.SellAmount)
}

func TestParse_ExplicitZeros(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML + "trading:\n  slippage_bps: 0\n  dust_balance: 0\n"))
	require.NoError(t, err)

	assert.Equal(t, 0, cfg.Trading.SlippageBps)
	assert.Equal(t, 0.0, cfg.Trading.DustBalance)

	cfg, err = Parse([]byte(minimalYAML + "trading:\n  paper: true\n"))
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Trading.SlippageBps)
	assert.Equal(t, 1e-6, cfg.Trading.DustBalance)
}

func TestParse_EnvOverrides(t *testing.T) {
	t.Setenv("SOLTRACKER_HELIUS_API_KEY", "helius-secret")
	t.Setenv("SOLTRACKER_TELEGRAM_CHAT_ID", "4242")

	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, "helius-secret", cfg.Helius.APIKey)
	assert.Equal(t, int64(4242), cfg.Telegram.ChatID)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no tiers", "bot:\n  name: x\n"},
		{"bad interval", minimalYAML + "trading:\n  interval: soon\n"},
		{"telegram without token", minimalYAML + "telegram:\n  enabled: true\n"},
		{"discord without webhook", minimalYAML + "discord:\n  enabled: true\n"},
		{"negative dust balance", minimalYAML + "trading:\n  dust_balance: -1\n"},
		{"slippage above 100%", minimalYAML + "trading:\n  slippage_bps: 10001\n"},
		{"negative paper fee", minimalYAML + "trading:\n  paper_network_fee_sol: -0.1\n"},
		{"duplicate tier order", `
strategy:
  stop_loss:
    - {kind: stop_loss, threshold: 10, threshold_unit: percent, sell_amount: 50, sell_amount_unit: percent, order: 1}
    - {kind: stop_loss, threshold: 20, threshold_unit: percent, sell_amount: 50, sell_amount_unit: percent, order: 1}
`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+"trading:\n  paper: true\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "PAPER", cfg.Mode())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
