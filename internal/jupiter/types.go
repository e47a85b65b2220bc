package jupiter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	SOLMint     = "So11111111111111111111111111111111111111112"
	SOLDecimals = 9
)

var ErrMalformedQuote = errors.New("malformed quote")

// Quote is a sell quote as returned by the Jupiter swap API. Amount fields keep
// the API's string encoding; Client.Quote rewrites them in UI units.
type Quote struct {
	InputMint            string          `json:"inputMint"`
	InAmount             string          `json:"inAmount"`
	OutputMint           string          `json:"outputMint"`
	OutAmount            string          `json:"outAmount"`
	OtherAmountThreshold string          `json:"otherAmountThreshold"`
	SwapMode             string          `json:"swapMode"`
	SlippageBps          int             `json:"slippageBps"`
	PlatformFee          *PlatformFee    `json:"platformFee"`
	PriceImpactPct       string          `json:"priceImpactPct"`
	RoutePlan            []RoutePlanStep `json:"routePlan"`
	SwapUsdValue         string          `json:"swapUsdValue"`
	ContextSlot          uint64          `json:"contextSlot"`
	TimeTaken            float64         `json:"timeTaken"`
}

type PlatformFee struct {
	Amount string `json:"amount"`
	FeeBps int    `json:"feeBps"`
}

type RoutePlanStep struct {
	SwapInfo SwapInfo `json:"swapInfo"`
	Percent  int      `json:"percent"`
}

type SwapInfo struct {
	AmmKey     string `json:"ammKey"`
	Label      string `json:"label"`
	InputMint  string `json:"inputMint"`
	OutputMint string `json:"outputMint"`
	InAmount   string `json:"inAmount"`
	OutAmount  string `json:"outAmount"`
	FeeAmount  string `json:"feeAmount"`
	FeeMint    string `json:"feeMint"`
}

// Out returns OutAmount, which must be present and positive.
func (q Quote) Out() (float64, error) {
	v, err := parseField("outAmount", q.OutAmount)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: outAmount %q is not positive", ErrMalformedQuote, q.OutAmount)
	}
	return v, nil
}

// Threshold returns OtherAmountThreshold, the minimum output after slippage.
func (q Quote) Threshold() (float64, error) {
	return parseField("otherAmountThreshold", q.OtherAmountThreshold)
}

func (q Quote) USDValue() (float64, error) {
	return parseField("swapUsdValue", q.SwapUsdValue)
}

// PriceImpact returns the price impact as a fraction (0.01 = 1%). Missing
// values count as zero impact.
func (q Quote) PriceImpact() float64 {
	v, err := parseField("priceImpactPct", q.PriceImpactPct)
	if err != nil {
		return 0
	}
	return v
}

func parseField(name, raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: missing %s", ErrMalformedQuote, name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q: %v", ErrMalformedQuote, name, raw, err)
	}
	return d.InexactFloat64(), nil
}

// ToUI converts a raw integer token amount to UI units.
func ToUI(raw string, decimals int32) (string, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return d.Shift(-decimals).String(), nil
}

// ToRaw converts a UI amount to the integer amount the API expects, rounding
// down so a sell never asks for more than the wallet holds.
func ToRaw(amount float64, decimals int32) string {
	return decimal.NewFromFloat(amount).Shift(decimals).Floor().String()
}

// LamportsToSOL converts a lamport string to SOL; unparseable input yields 0.
func LamportsToSOL(raw string) float64 {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return d.Shift(-SOLDecimals).InexactFloat64()
}

type QuoteRequest struct {
	InputMint      string
	OutputMint     string
	Amount         float64
	InputDecimals  int32
	OutputDecimals int32
	SlippageBps    int
}

type priceResponse map[string]struct {
	UsdPrice       float64 `json:"usdPrice"`
	BlockID        uint64  `json:"blockId"`
	Decimals       int     `json:"decimals"`
	PriceChange24h float64 `json:"priceChange24h"`
}

type errorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}
