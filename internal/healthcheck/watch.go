package healthcheck

import (
	"context"
	"log/slog"
	"time"
)

// Checker is anything that can probe a URL.
type Checker interface {
	Check(ctx context.Context, url string) InstanceHealth
}

// Watch probes every url once immediately and then on each tick of interval,
// until ctx is cancelled. A non-positive interval returns without probing.
func Watch(
	ctx context.Context,
	checker Checker,
	urls []string,
	interval time.Duration,
	logger *slog.Logger,
) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	checkAll(ctx, checker, urls)

	for {
		select {
		case <-ctx.Done():
			logger.Info("Health watch stopped", slog.Int("servers", len(urls)))
			return

		case <-ticker.C:
			checkAll(ctx, checker, urls)
		}
	}
}

func checkAll(ctx context.Context, checker Checker, urls []string) {
	for _, url := range urls {
		if ctx.Err() != nil {
			return
		}
		checker.Check(ctx, url)
	}
}
