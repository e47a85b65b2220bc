// Package app wires the dependencies shared by the command line tools.
package app

import (
	"context"
	"fmt"

	"github.com/camuig/sol-tracker/internal/config"
	"github.com/camuig/sol-tracker/internal/helius"
	"github.com/camuig/sol-tracker/internal/jupiter"
	"github.com/camuig/sol-tracker/internal/logger"
	"github.com/camuig/sol-tracker/internal/metrics"
	"github.com/camuig/sol-tracker/internal/notify"
	"github.com/camuig/sol-tracker/internal/price"
	"github.com/camuig/sol-tracker/internal/storage"
	"github.com/camuig/sol-tracker/internal/telegram"
)

type Dependencies struct {
	Repo     *storage.Repository
	Jupiter  *jupiter.Client
	Helius   *helius.Client
	Oracle   *price.CachedOracle
	Notifier *notify.Notifier
	Metrics  *metrics.Metrics
}

// Wire builds all dependencies from cfg and returns them with a cleanup
// function that releases them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Metrics: metrics.New("sol_tracker"),
	}

	// --- SQLite ---
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: database: %w", err)
	}
	closers = append(closers, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	deps.Repo = storage.NewRepository(db)

	// --- Upstream APIs ---
	deps.Jupiter = jupiter.NewClient(cfg, log)
	deps.Helius = helius.NewClient(cfg, log)

	// --- Price cache ---
	var cache price.Cache
	if cfg.Redis.Enabled {
		rc, err := price.NewRedisCache(ctx, cfg.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		cache = rc
		log.Info("price cache", "backend", "redis", "addr", cfg.Redis.Addr)
	}
	deps.Oracle = price.NewCachedOracle(deps.Jupiter, cache, cfg.PriceMaxAge(), log)

	// --- Notifications ---
	var senders []notify.Sender
	if tg := telegram.NewSender(cfg, log); tg.Enabled() {
		senders = append(senders, tg)
	}
	if cfg.Discord.Enabled {
		senders = append(senders, notify.NewDiscordSender(cfg.Discord.WebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, log)

	return deps, cleanup, nil
}
