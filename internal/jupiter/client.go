package jupiter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/logger"
)

type Client struct {
	httpClient *http.Client
	quoteURL   string
	priceURL   string
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
		httpClient: &http.Client{Timeout: cfg.JupiterTimeout()},
		quoteURL:   cfg.Jupiter.QuoteURL,
		priceURL:   cfg.Jupiter.PriceURL,
		apiKey:     cfg.Jupiter.APIKey,
		maxRetries: uint64(cfg.Jupiter.MaxRetries),
		retryDelay: 500 * time.Millisecond,
		logger:     log.Component("jupiter"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Quote fetches an ExactIn quote and returns it with InAmount, OutAmount and
// OtherAmountThreshold converted to UI units.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("quote amount must be positive, got %g", req.Amount)
	}

	params := url.Values{}
	params.Set("inputMint", req.InputMint)
	params.Set("outputMint", req.OutputMint)
	params.Set("amount", ToRaw(req.Amount, req.InputDecimals))
	params.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	params.Set("swapMode", "ExactIn")

	var q Quote
	if err := c.getJSON(ctx, c.quoteURL+"?"+params.Encode(), &q); err != nil {
		return nil, fmt.Errorf("jupiter quote %s: %w", req.InputMint, err)
	}

	if err := normalize(&q, req.InputDecimals, req.OutputDecimals); err != nil {
		return nil, err
	}

	c.logger.Debug("quote received",
		"input_mint", req.InputMint, "out_amount", q.OutAmount,
		"usd_value", q.SwapUsdValue, "price_impact", q.PriceImpactPct)
	return &q, nil
}

func normalize(q *Quote, inDecimals, outDecimals int32) error {
	if q.OutAmount == "" {
		return fmt.Errorf("%w: missing outAmount", ErrMalformedQuote)
	}
	fields := []struct {
		dst      *string
		decimals int32
	}{
		{&q.InAmount, inDecimals},
		{&q.OutAmount, outDecimals},
		{&q.OtherAmountThreshold, outDecimals},
	}
	for _, f := range fields {
		if *f.dst == "" {
			continue
		}
		ui, err := ToUI(*f.dst, f.decimals)
		if err != nil {
			return fmt.Errorf("%w: amount %q: %v", ErrMalformedQuote, *f.dst, err)
		}
		*f.dst = ui
	}
	return nil
}

// SOLPrice returns the USD price of SOL from the price API.
func (c *Client) SOLPrice(ctx context.Context) (float64, error) {
	var resp priceResponse
	if err := c.getJSON(ctx, c.priceURL+"?ids="+SOLMint, &resp); err != nil {
		return 0, fmt.Errorf("jupiter price: %w", err)
	}
	entry, ok := resp[SOLMint]
	if !ok || entry.UsdPrice <= 0 {
		return 0, fmt.Errorf("jupiter price: no usd price for SOL")
	}
	return entry.UsdPrice, nil
}

// getJSON retries transport errors, 429 and 5xx with exponential backoff.
// Other non-200 responses are permanent.
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(b, c.maxRetries), ctx)

	attempt := 0
	op := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, apiError(body))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return statusErr
			}
			return backoff.Permanent(statusErr)
		}

		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(fmt.Errorf("parse response: %w", err))
		}
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn("jupiter request failed, retrying", "attempt", attempt, "wait", wait.String(), "error", err)
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

func apiError(body []byte) string {
	var e errorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
