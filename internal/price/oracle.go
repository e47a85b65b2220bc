// Package price provides the SOL/USD price used to value positions, cached
// with a maximum age so a stale price never reaches a sell decision.
package price

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/logger"
)

// ErrStale is returned when neither the cache nor the source has a fresh price.
var ErrStale = errors.New("no fresh SOL price")

type Oracle interface {
	SOLPriceUSD(ctx context.Context) (float64, error)
}

// Source fetches a live SOL price. *jupiter.Client satisfies it.
type Source interface {
	SOLPrice(ctx context.Context) (float64, error)
}

// CachedOracle serves SOL prices from Cache while they are younger than
// maxAge and refreshes them from Source otherwise.
type CachedOracle struct {
	source Source
	cache  Cache
	maxAge time.Duration
	now    func() time.Time
	logger *logger.Logger
}

func NewCachedOracle(source Source, cache Cache, maxAge time.Duration, log *logger.Logger) *CachedOracle {
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &CachedOracle{
		source: source,
		cache:  cache,
		maxAge: maxAge,
		now:    time.Now,
		logger: log.Component("price"),
	}
}

func (o *CachedOracle) SOLPriceUSD(ctx context.Context) (float64, error) {
	now := o.now()

	p, ts, err := o.cache.Get(ctx, jupiter.SOLMint)
	switch {
	case err == nil && fresh(p, ts, now, o.maxAge):
		return p, nil
	case err != nil && !errors.Is(err, ErrNotCached):
		o.logger.Warn("price cache read failed", "error", err)
	}

	live, err := o.source.SOLPrice(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStale, err)
	}
	if live <= 0 {
		return 0, fmt.Errorf("%w: source returned %g", ErrStale, live)
	}

	if err := o.cache.Set(ctx, jupiter.SOLMint, live, now); err != nil {
		o.logger.Warn("price cache write failed", "error", err)
	}
	o.logger.Debug("SOL price refreshed", "usd", live)
	return live, nil
}

func fresh(p float64, ts, now time.Time, maxAge time.Duration) bool {
	if p <= 0 {
		return false
	}
	age := now.Sub(ts)
	return age >= 0 && age <= maxAge
}

var _ Oracle = (*CachedOracle)(nil)
