package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"x2discord/internal/audit"
	"x2discord/internal/config"
	"x2discord/internal/dedup"
	"x2discord/internal/feed"
	"x2discord/internal/logging"
	"x2discord/internal/model"
	"x2discord/internal/notifier"
	"x2discord/internal/pollengine"
	"x2discord/internal/ratelimit"
	"x2discord/internal/subscription"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logging.ReplaceGlobals(logger)
	defer logger.Sync()

	subStore, err := subscription.Load(cfg.SubscriptionsPath, int(cfg.DefaultPollInterval.Seconds()), int(cfg.MinPollInterval.Seconds()))
	if err != nil {
		return fmt.Errorf("load subscriptions: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	dedupStore, closeDedup := buildDedupStore(ctx, cfg, logger)
	defer closeDedup()

	feedClient := feed.New(cfg.FeedBaseURL, cfg.FeedRefreshSeconds)

	notify := buildNotifier(cfg, logger)

	var ledger *audit.Ledger
	if cfg.DeliveryLedgerPath != "" {
		ledger, err = audit.Open(cfg.DeliveryLedgerPath)
		if err != nil {
			return fmt.Errorf("open delivery ledger: %w", err)
		}
		defer ledger.Close()
	}

	engine := pollengine.New(subStore, subStore, dedupStore, feedClient, notify, ratelimit.New(), ledger, logger)

	logger.Info("bridge starting",
		logging.String("feed_base_url", cfg.FeedBaseURL),
		logging.String("subscriptions_path", cfg.SubscriptionsPath),
	)

	engine.Start(ctx)
	logger.Info("bridge stopped")
	return nil
}

func buildDedupStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (model.DedupStore, func()) {
	if cfg.DedupRedisURL != "" {
		store, err := dedup.NewRedisStore(cfg.DedupRedisURL)
		if err != nil {
			logger.Warn("dedup redis unavailable, falling back to in-memory", logging.Error(err))
		} else {
			return store, func() { store.Close() }
		}
	}

	mem := dedup.NewMemoryStore(logger)
	go mem.Run(ctx, 0)
	return mem, func() {}
}

func buildNotifier(cfg *config.Config, logger *logging.Logger) model.Notifier {
	if cfg.NotifierWebhookURL != "" {
		return notifier.NewWebhookNotifier(cfg.NotifierWebhookURL)
	}
	return notifier.NewLoggingNotifier(logger)
}
