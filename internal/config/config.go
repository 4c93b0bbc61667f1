package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultMinPollIntervalSeconds is the floor applied to any subscription's interval.
	DefaultMinPollIntervalSeconds = 60
	// DefaultPollIntervalSeconds is used when a subscription omits interval_seconds.
	DefaultPollIntervalSeconds = 60
	// DefaultFeedBaseURL points at a local RSS producer during development.
	DefaultFeedBaseURL = "http://localhost:1200"
	// DefaultSubscriptionsPath is where FileSubscriptionStore persists state.
	DefaultSubscriptionsPath = "subscriptions.json"

	// DefaultLogLevel controls verbosity for bridge logs.
	DefaultLogLevel = "info"
	// DefaultLogPath is where structured logs are written.
	DefaultLogPath = "bridge.log"
	// DefaultLogMaxSizeMB caps the size of a single log file before rotation.
	DefaultLogMaxSizeMB = 100
	// DefaultLogMaxBackups limits retained rotated log files.
	DefaultLogMaxBackups = 10
	// DefaultLogMaxAgeDays controls how long rotated log files are kept on disk.
	DefaultLogMaxAgeDays = 7
	// DefaultLogCompress toggles gzip compression for rotated log files.
	DefaultLogCompress = true
)

// Config captures all runtime tunables for the bridge service.
type Config struct {
	MinPollInterval     time.Duration
	DefaultPollInterval time.Duration
	FeedBaseURL         string
	FeedRefreshSeconds  int
	DedupRedisURL       string
	SubscriptionsPath   string
	NotifierWebhookURL  string
	DeliveryLedgerPath  string
	Logging             LoggingConfig
}

// LoggingConfig captures structured logging configuration options.
type LoggingConfig struct {
	Level      string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Load reads the bridge configuration from environment variables, applying sane
// defaults and returning descriptive errors for invalid overrides.
func Load() (*Config, error) {
	cfg := &Config{
		MinPollInterval:     DefaultMinPollIntervalSeconds * time.Second,
		DefaultPollInterval: DefaultPollIntervalSeconds * time.Second,
		FeedBaseURL:         getString("X2D_FEED_BASE_URL", DefaultFeedBaseURL),
		DedupRedisURL:       strings.TrimSpace(os.Getenv("X2D_DEDUP_REDIS_URL")),
		SubscriptionsPath:   getString("X2D_SUBSCRIPTIONS_PATH", DefaultSubscriptionsPath),
		NotifierWebhookURL:  strings.TrimSpace(os.Getenv("X2D_NOTIFIER_WEBHOOK_URL")),
		DeliveryLedgerPath:  strings.TrimSpace(os.Getenv("X2D_DELIVERY_LEDGER_PATH")),
		Logging: LoggingConfig{
			Level:      strings.TrimSpace(getString("X2D_LOG_LEVEL", DefaultLogLevel)),
			Path:       strings.TrimSpace(getString("X2D_LOG_PATH", DefaultLogPath)),
			MaxSizeMB:  DefaultLogMaxSizeMB,
			MaxBackups: DefaultLogMaxBackups,
			MaxAgeDays: DefaultLogMaxAgeDays,
			Compress:   DefaultLogCompress,
		},
	}

	var problems []string

	if raw := strings.TrimSpace(os.Getenv("X2D_MIN_POLL_INTERVAL_SECONDS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("X2D_MIN_POLL_INTERVAL_SECONDS must be a positive integer, got %q", raw))
		} else {
			cfg.MinPollInterval = time.Duration(value) * time.Second
		}
	}

	if raw := strings.TrimSpace(os.Getenv("X2D_DEFAULT_POLL_INTERVAL_SECONDS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("X2D_DEFAULT_POLL_INTERVAL_SECONDS must be a positive integer, got %q", raw))
		} else {
			cfg.DefaultPollInterval = time.Duration(value) * time.Second
		}
	}

	if raw := strings.TrimSpace(os.Getenv("X2D_FEED_REFRESH_SECONDS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("X2D_FEED_REFRESH_SECONDS must be a positive integer, got %q", raw))
		} else {
			cfg.FeedRefreshSeconds = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("X2D_LOG_MAX_SIZE_MB")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value <= 0 {
			problems = append(problems, fmt.Sprintf("X2D_LOG_MAX_SIZE_MB must be a positive integer, got %q", raw))
		} else {
			cfg.Logging.MaxSizeMB = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("X2D_LOG_MAX_BACKUPS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("X2D_LOG_MAX_BACKUPS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxBackups = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("X2D_LOG_MAX_AGE_DAYS")); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 0 {
			problems = append(problems, fmt.Sprintf("X2D_LOG_MAX_AGE_DAYS must be a non-negative integer, got %q", raw))
		} else {
			cfg.Logging.MaxAgeDays = value
		}
	}

	if raw := strings.TrimSpace(os.Getenv("X2D_LOG_COMPRESS")); raw != "" {
		value, err := strconv.ParseBool(raw)
		if err != nil {
			problems = append(problems, fmt.Sprintf("X2D_LOG_COMPRESS must be a boolean value, got %q", raw))
		} else {
			cfg.Logging.Compress = value
		}
	}

	if cfg.DefaultPollInterval < cfg.MinPollInterval {
		problems = append(problems, "X2D_DEFAULT_POLL_INTERVAL_SECONDS must be >= X2D_MIN_POLL_INTERVAL_SECONDS")
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf(strings.Join(problems, "; "))
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}
