package refresh

import (
	"context"
	"log/slog"
	"time"
)

// Purger is implemented by stores that do not expire entries on their own.
type Purger interface {
	// PurgeExpired removes expired entries and returns how many were removed.
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunJanitor calls p.PurgeExpired every interval until ctx is cancelled.
// It blocks, so callers usually start it in its own goroutine.
func RunJanitor(ctx context.Context, p Purger, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, err := p.PurgeExpired(ctx)
			if err != nil {
				logger.WarnContext(ctx, "failed to purge expired refresh tokens", slog.Any("error", err))
				continue
			}
			if removed > 0 {
				logger.DebugContext(ctx, "purged expired refresh tokens", slog.Int64("removed", removed))
			}
		case <-ctx.Done():
			return
		}
	}
}
