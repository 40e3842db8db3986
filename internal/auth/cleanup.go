package auth

import (
	"context"
	"log/slog"
	"time"
)

// StartSessionCleanup deletes expired sessions immediately, then every
// interval, until ctx is cancelled. A non-positive interval means one hour.
// It always returns nil so it can run in an errgroup.
func (p *PGProvider) StartSessionCleanup(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	slog.Info("portal session cleanup started", "check_interval", interval)

	p.runSessionCleanup(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("portal session cleanup stopped")
			return nil
		case <-ticker.C:
			p.runSessionCleanup(ctx)
		}
	}
}

func (p *PGProvider) runSessionCleanup(ctx context.Context) {
	purged, err := p.PurgeSessions(ctx)
	if err != nil {
		slog.Error("portal session purge failed", "error", err)
		return
	}
	if purged > 0 {
		slog.Info("purged expired portal sessions", "sessions_purged", purged)
	}
}
