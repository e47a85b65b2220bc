package helius

import (
	"context"
	"encoding/json"
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
	"github.com/camuig/sol-tracker/internal/pnl"
)

const (
	testSig    = "3KbSUpXQmpt4JXdA2NcVeoRbRxn9tGhXfKvCe8DjkDaSkU33hPEUpjqkgC5jRjadeo5VUru7SAWpcdksTgSkyehR"
	testWallet = "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U"
	testMint   = "FqUwnBMN1shpeqKVm7W5fN73tvrjVr19TQFFgkoFFzhq"
)

const swapTx = `[{
  "description": "swapped 1000 TEST for 0.0099 SOL",
  "type": "SWAP",
  "source": "JUPITER",
  "fee": 5000,
  "feePayer": "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U",
  "signature": "3KbSUpXQmpt4JXdA2NcVeoRbRxn9tGhXfKvCe8DjkDaSkU33hPEUpjqkgC5jRjadeo5VUru7SAWpcdksTgSkyehR",
  "slot": 310000123,
  "timestamp": 1792314000,
  "transactionError": null,
  "events": {
    "swap": {
      "nativeInput": null,
      "nativeOutput": {"account": "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U", "amount": "9900000"},
      "tokenInputs": [{
        "userAccount": "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U",
        "tokenAccount": "ata1",
        "mint": "FqUwnBMN1shpeqKVm7W5fN73tvrjVr19TQFFgkoFFzhq",
        "rawTokenAmount": {"tokenAmount": "1000000000", "decimals": 6}
      }],
      "tokenOutputs": [],
      "innerSwaps": [
        {
          "tokenInputs": [{"fromUserAccount": "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U", "mint": "FqUwnBMN1shpeqKVm7W5fN73tvrjVr19TQFFgkoFFzhq", "tokenAmount": 600}],
          "tokenOutputs": [{"toUserAccount": "pool", "mint": "So11111111111111111111111111111111111111112", "tokenAmount": 0.006}],
          "programInfo": {"source": "RAYDIUM", "account": "675k", "programName": "RAYDIUM_LIQUIDITY_POOL_V4", "instructionName": "SwapBaseIn"}
        },
        {
          "tokenInputs": [{"fromUserAccount": "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U", "mint": "FqUwnBMN1shpeqKVm7W5fN73tvrjVr19TQFFgkoFFzhq", "tokenAmount": 400}],
          "tokenOutputs": [{"toUserAccount": "pool", "mint": "So11111111111111111111111111111111111111112", "tokenAmount": 0.0039}],
          "programInfo": {"source": "", "account": "whirl", "programName": "ORCA_WHIRLPOOLS", "instructionName": "swap"}
        }
      ]
    }
  }
}]`

func testClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	cfg := &config.Config{Helius: config.HeliusConfig{
		APIKey:         "hk",
		BaseURL:        srv.URL,
		TimeoutSeconds: 5,
		MaxRetries:     2,
	}}
	return NewClient(cfg, logger.Nop(), WithRetryDelay(time.Millisecond))
}

func TestClient_SwapDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v0/transactions", r.URL.Path)
		assert.Equal(t, "hk", r.URL.Query().Get("api-key"))

		var req transactionsRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{testSig}, req.Transactions)

		_, _ = w.Write([]byte(swapTx))
	}))
	defer srv.Close()

	d, err := testClient(t, srv).SwapDetails(context.Background(), testSig, testWallet)
	require.NoError(t, err)

	assert.Equal(t, testSig, d.Signature)
	assert.Equal(t, uint64(310000123), d.Slot)
	assert.Equal(t, int64(1792314000), d.Timestamp.Unix())
	assert.InDelta(t, 0.000005, d.NetworkFeeSOL, 1e-15)
	assert.InDelta(t, 0.0099, d.OutputSOL, 1e-15)
	assert.InDelta(t, 1000, d.InputTokenAmount, 1e-9)

	require.Len(t, d.Legs, 2)
	assert.Equal(t, "RAYDIUM", d.Legs[0].Program)
	assert.Equal(t, testMint, d.Legs[0].InputMint)
	assert.InDelta(t, 600, d.Legs[0].InputAmount, 1e-9)
	assert.InDelta(t, 0.006, d.Legs[0].OutputAmount, 1e-12)
	assert.Equal(t, "ORCA_WHIRLPOOLS", d.Legs[1].Program)
}

func TestClient_SwapDetailsValidatesInput(t *testing.T) {
	c := NewClient(&config.Config{}, logger.Nop())

	_, err := c.SwapDetails(context.Background(), "not-a-signature", testWallet)
	assert.Error(t, err)

	_, err = c.SwapDetails(context.Background(), testSig, "0OIl")
	assert.Error(t, err)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(swapTx))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).SwapDetails(context.Background(), testSig, testWallet)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_NotIndexed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).SwapDetails(context.Background(), testSig, testWallet)
	assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
}

func TestClient_UnauthorizedIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid api key"}`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv).SwapDetails(context.Background(), testSig, testWallet)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), calls.Load())
}

func decodeTx(t *testing.T) *Transaction {
	t.Helper()
	var txs []Transaction
	require.NoError(t, json.Unmarshal([]byte(swapTx), &txs))
	require.Len(t, txs, 1)
	return &txs[0]
}

func TestToSwapDetails_FailedTransaction(t *testing.T) {
	tx := decodeTx(t)
	tx.TransactionError = map[string]any{"InstructionError": []any{2, "Custom"}}

	_, err := ToSwapDetails(tx, testWallet)
	assert.True(t, errors.Is(err, ErrTransactionFailed))
}

func TestToSwapDetails_NoLegsFailsClosed(t *testing.T) {
	tx := decodeTx(t)
	tx.Events.Swap.InnerSwaps = nil

	_, err := ToSwapDetails(tx, testWallet)
	assert.True(t, errors.Is(err, pnl.ErrMalformedSwap))

	tx.Events.Swap = nil
	_, err = ToSwapDetails(tx, testWallet)
	assert.True(t, errors.Is(err, pnl.ErrMalformedSwap))
}

func TestToSwapDetails_WrappedSOLOutput(t *testing.T) {
	tx := decodeTx(t)
	tx.Events.Swap.NativeOutput = nil
	tx.Events.Swap.TokenOutputs = []TokenBalanceChange{
		{UserAccount: testWallet, Mint: "So11111111111111111111111111111111111111112", RawTokenAmount: RawTokenAmount{TokenAmount: "9800000", Decimals: 9}},
		{UserAccount: "someone-else", Mint: "So11111111111111111111111111111111111111112", RawTokenAmount: RawTokenAmount{TokenAmount: "5", Decimals: 9}},
	}

	d, err := ToSwapDetails(tx, testWallet)
	require.NoError(t, err)
	assert.InDelta(t, 0.0098, d.OutputSOL, 1e-15)
}

func TestToSwapDetails_ForeignOutputsFailClosed(t *testing.T) {
	tx := decodeTx(t)
	tx.Events.Swap.NativeOutput = &NativeAmount{Account: "someone-else", Amount: "10000000"}

	_, err := ToSwapDetails(tx, testWallet)
	assert.True(t, errors.Is(err, pnl.ErrMalformedSwap), "got %v", err)

	tx = decodeTx(t)
	tx.Events.Swap.TokenInputs[0].UserAccount = "someone-else"

	_, err = ToSwapDetails(tx, testWallet)
	assert.True(t, errors.Is(err, pnl.ErrMalformedSwap), "got %v", err)
}

const buyTx = `[{
  "type": "SWAP",
  "source": "PUMP_AMM",
  "fee": 10000,
  "signature": "3KbSUpXQmpt4JXdA2NcVeoRbRxn9tGhXfKvCe8DjkDaSkU33hPEUpjqkgC5jRjadeo5VUru7SAWpcdksTgSkyehR",
  "slot": 309999000,
  "timestamp": 1792310400,
  "transactionError": null,
  "events": {
    "swap": {
      "nativeInput": {"account": "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U", "amount": "6600000"},
      "nativeOutput": null,
      "tokenInputs": [],
      "tokenOutputs": [{
        "userAccount": "GfsJWjmGXMfct8JMR9Lm9ySUnniZbnGUTQDbT8ipWf9U",
        "mint": "FqUwnBMN1shpeqKVm7W5fN73tvrjVr19TQFFgkoFFzhq",
        "rawTokenAmount": {"tokenAmount": "1000000000", "decimals": 6}
      }],
      "innerSwaps": [{
        "tokenInputs": [], "tokenOutputs": [],
        "programInfo": {"source": "PUMP_AMM", "programName": "PUMP_AMM"}
      }]
    }
  }
}]`

func TestClient_BuyDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(buyTx))
	}))
	defer srv.Close()

	b, err := testClient(t, srv).BuyDetails(context.Background(), testSig, testWallet, "")
	require.NoError(t, err)

	assert.Equal(t, testMint, b.TokenMint)
	assert.Equal(t, int32(6), b.TokenDecimals)
	assert.InDelta(t, 1000, b.TokenAmount, 1e-9)
	assert.InDelta(t, 0.0066, b.InputSOL, 1e-15)
	assert.InDelta(t, 0.00001, b.NetworkFeeSOL, 1e-15)
	assert.Equal(t, "PUMP_AMM", b.DexProgram)

	pos, err := b.Position(testWallet, "tracker", 150)
	require.NoError(t, err)
	assert.InDelta(t, 0.99, pos.EntryPaidUSD, 1e-9)
	assert.InDelta(t, 0.00099, pos.EntryUnitPriceUSD, 1e-12)
	assert.InDelta(t, 0.0015, pos.EntryFeeUSD, 1e-12)
	assert.Equal(t, testSig, pos.EntryTxID)
	assert.Equal(t, int64(1792310400), pos.EntryTime.Unix())

	_, err = b.Position(testWallet, "tracker", 0)
	assert.True(t, errors.Is(err, pnl.ErrMissingBasePrice))
}

func TestToBuyDetails_WrongMint(t *testing.T) {
	var txs []Transaction
	require.NoError(t, json.Unmarshal([]byte(buyTx), &txs))

	_, err := ToBuyDetails(&txs[0], testWallet, "So11111111111111111111111111111111111111112")
	assert.True(t, errors.Is(err, pnl.ErrMalformedSwap))
}
