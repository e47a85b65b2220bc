// Package helius fetches confirmed swap transactions from the Helius enhanced
// transactions API and converts them into settlement inputs.
package helius

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/pnl"
)

var (
	ErrNotFound          = errors.New("transaction not found")
	ErrTransactionFailed = errors.New("transaction failed on chain")
)

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries uint64
	retryDelay time.Duration
	logger     *logger.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) { c.retryDelay = d }
}

func NewClient(cfg *config.Config, log *logger.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: cfg.HeliusTimeout()},
		baseURL:    cfg.Helius.BaseURL,
		apiKey:     cfg.Helius.APIKey,
		maxRetries: uint64(cfg.Helius.MaxRetries),
		retryDelay: time.Second,
		logger:     log.Component("helius"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SwapDetails returns the swap made by wallet in the transaction signature.
// Transactions indexed with no swap legs are rejected with pnl.ErrMalformedSwap.
func (c *Client) SwapDetails(ctx context.Context, signature, wallet string) (*pnl.SwapDetails, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet %q: %w", wallet, err)
	}

	tx, err := c.Transaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	return ToSwapDetails(tx, wallet)
}

// BuyDetails returns the entry swap made by wallet in the transaction
// signature. mint may be empty.
func (c *Client) BuyDetails(ctx context.Context, signature, wallet, mint string) (*BuyDetails, error) {
	if _, err := solana.SignatureFromBase58(signature); err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}
	if _, err := solana.PublicKeyFromBase58(wallet); err != nil {
		return nil, fmt.Errorf("invalid wallet %q: %w", wallet, err)
	}
	if mint != "" {
		if _, err := solana.PublicKeyFromBase58(mint); err != nil {
			return nil, fmt.Errorf("invalid mint %q: %w", mint, err)
		}
	}

	tx, err := c.Transaction(ctx, signature)
	if err != nil {
		return nil, err
	}
	return ToBuyDetails(tx, wallet, mint)
}

// Transaction fetches one parsed transaction.
func (c *Client) Transaction(ctx context.Context, signature string) (*Transaction, error) {
	body, err := json.Marshal(transactionsRequest{Transactions: []string{signature}})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	endpoint := c.baseURL + "/v0/transactions"
	if c.apiKey != "" {
		endpoint += "?" + url.Values{"api-key": {c.apiKey}}.Encode()
	}

	var txs []Transaction
	if err := c.postJSON(ctx, endpoint, body, &txs); err != nil {
		return nil, fmt.Errorf("helius transaction %s: %w", signature, err)
	}
	for i := range txs {
		if txs[i].Signature == signature {
			return &txs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, signature)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload []byte, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			if len(data) > 200 {
				data = data[:200]
			}
			statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, data)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if err := json.Unmarshal(data, out); err != nil {
			return backoff.Permanent(fmt.Errorf("parse response: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("helius request failed, retrying", "wait", wait.String(), "error", err)
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		return err
	}
	return nil
}
