package audit

import (
	"context"
	"log/slog"
	"time"
)

// SweepInterval is how often the janitor enforces retention.
const SweepInterval = 6 * time.Hour

// Janitor enforces the retention window in the background. Expiry drops
// whole partitions, so a missed sweep only delays reclaim, never correctness.
type Janitor struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger
}

func NewJanitor(store Store, retention time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{store: store, retention: retention, interval: SweepInterval, logger: logger}
}

// Run sweeps immediately, then on every tick until the context ends.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	if err := j.store.DropExpired(ctx, j.retention); err != nil {
		j.logger.ErrorContext(ctx, "retention sweep failed",
			"retention", j.retention.String(),
			"error", err,
		)
		return
	}
	j.logger.DebugContext(ctx, "retention sweep complete", "retention", j.retention.String())
}
