package ledger

// scheduler.go runs the retention job that keeps the ledger small.
//
// The scheduler is long-running and context-aware for graceful shutdown. It
// logs progress and errors but never stops the server when a purge fails.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig holds configuration for the retention scheduler.
type RetentionConfig struct {
	RetentionDays int           // Days to keep submissions (default: 180)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 180
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetention purges old records immediately, then every CheckInterval,
// until ctx is cancelled. It always returns nil so it can run in an errgroup.
func (s *Store) StartRetention(ctx context.Context, cfg RetentionConfig) error {
	cfg = cfg.withDefaults()
	slog.Info("ledger retention scheduler started",
		"retention_days", cfg.RetentionDays,
		"check_interval", cfg.CheckInterval,
	)

	s.runRetentionJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("ledger retention scheduler stopped")
			return nil
		case <-ticker.C:
			s.runRetentionJob(ctx, cfg)
		}
	}
}

// runRetentionJob performs one purge cycle.
func (s *Store) runRetentionJob(ctx context.Context, cfg RetentionConfig) {
	start := time.Now()

	purged, err := s.Purge(ctx, cfg.RetentionDays)
	if err != nil {
		slog.Error("ledger purge failed", "error", err)
		return
	}

	slog.Info("purged old submissions",
		"entries_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
