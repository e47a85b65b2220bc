package jupiter

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
)

const quoteBody = `{
  "inputMint": "Mint111",
  "inAmount": "1000000000",
  "outputMint": "So11111111111111111111111111111111111111112",
  "outAmount": "10000000",
  "otherAmountThreshold": "9800000",
  "swapMode": "ExactIn",
  "slippageBps": 200,
  "platformFee": null,
  "priceImpactPct": "0.0123",
  "routePlan": [
    {"swapInfo": {"ammKey": "amm1", "label": "Raydium", "inputMint": "Mint111", "outputMint": "So11111111111111111111111111111111111111112",
      "inAmount": "1000000000", "outAmount": "10000000", "feeAmount": "25000", "feeMint": "So11111111111111111111111111111111111111112"}, "percent": 100}
  ],
  "swapUsdValue": "1.5",
  "contextSlot": 300000000,
  "timeTaken": 0.01
}`

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := &config.Config{Jupiter: config.JupiterConfig{
		QuoteURL:       srv.URL + "/quote",
		PriceURL:       srv.URL + "/price",
		APIKey:         "k",
		TimeoutSeconds: 5,
		MaxRetries:     2,
	}}
	return NewClient(cfg, logger.Nop(), WithRetryDelay(time.Millisecond))
}

func TestClient_Quote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/quote", r.URL.Path)
		assert.Equal(t, "Mint111", r.URL.Query().Get("inputMint"))
		assert.Equal(t, "1000000000", r.URL.Query().Get("amount"))
		assert.Equal(t, "200", r.URL.Query().Get("slippageBps"))
		assert.Equal(t, "ExactIn", r.URL.Query().Get("swapMode"))
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(quoteBody))
	}))
	defer srv.Close()

	q, err := testClient(t, srv).Quote(context.Background(), QuoteRequest{
		InputMint:      "Mint111",
		OutputMint:     SOLMint,
		Amount:         1000,
		InputDecimals:  6,
		OutputDecimals: SOLDecimals,
		SlippageBps:    200,
	})
	require.NoError(t, err)

	out, err := q.Out()
	require.NoError(t, err)
	assert.InDelta(t, 0.01, out, 1e-12)

	thr, err := q.Threshold()
	require.NoError(t, err)
	assert.InDelta(t, 0.0098, thr, 1e-12)

	assert.Equal(t, "1000", q.InAmount)
	assert.InDelta(t, 0.0123, q.PriceImpact(), 1e-12)
	require.Len(t, q.RoutePlan, 1)
	assert.Equal(t, "25000", q.RoutePlan[0].SwapInfo.FeeAmount)
}

func TestClient_QuoteRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(quoteBody))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Quote(context.Background(), QuoteRequest{InputMint: "Mint111", OutputMint: SOLMint, Amount: 1, InputDecimals: 6, OutputDecimals: 9})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_QuoteClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"Could not find any route","errorCode":"COULD_NOT_FIND_ANY_ROUTE"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Quote(context.Background(), QuoteRequest{InputMint: "Mint111", OutputMint: SOLMint, Amount: 1, InputDecimals: 6, OutputDecimals: 9})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Could not find any route")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_QuoteMissingOutAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"inputMint":"Mint111","swapUsdValue":"1"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).Quote(context.Background(), QuoteRequest{InputMint: "Mint111", OutputMint: SOLMint, Amount: 1, InputDecimals: 6, OutputDecimals: 9})
	assert.True(t, errors.Is(err, ErrMalformedQuote), "got %v", err)
}

func TestClient_QuoteRejectsZeroAmount(t *testing.T) {
	c := NewClient(&config.Config{}, logger.Nop())
	_, err := c.Quote(context.Background(), QuoteRequest{Amount: 0})
	assert.Error(t, err)
}

func TestClient_SOLPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, SOLMint, r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`{"So11111111111111111111111111111111111111112":{"usdPrice":151.25,"blockId":1,"decimals":9}}`))
	}))
	defer srv.Close()

	price, err := testClient(t, srv).SOLPrice(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 151.25, price)
}

func TestClient_SOLPriceMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).SOLPrice(context.Background())
	assert.Error(t, err)
}

func TestQuoteParsing(t *testing.T) {
	_, err := Quote{}.Out()
	assert.True(t, errors.Is(err, ErrMalformedQuote))

	_, err = Quote{OutAmount: "0"}.Out()
	assert.True(t, errors.Is(err, ErrMalformedQuote))

	_, err = Quote{SwapUsdValue: "abc"}.USDValue()
	assert.True(t, errors.Is(err, ErrMalformedQuote))

	assert.Zero(t, Quote{}.PriceImpact())
	assert.InDelta(t, 0.000025, LamportsToSOL("25000"), 1e-15)
	assert.Equal(t, "1234567", ToRaw(1.2345679, 6))
}
