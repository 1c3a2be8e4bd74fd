package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DefaultSnapshotInterval is used when the configured interval is not positive.
const DefaultSnapshotInterval = 5 * time.Minute

// Checker refreshes the dataset gauges in the background.
type Checker struct {
	collector *Collector
	metrics   *Metrics
	interval  time.Duration
}

// NewChecker creates a background snapshot checker.
func NewChecker(collector *Collector, metrics *Metrics, interval time.Duration) *Checker {
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	return &Checker{
		collector: collector,
		metrics:   metrics,
		interval:  interval,
	}
}

// Run takes one snapshot immediately and then one per interval. It blocks
// until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting dataset checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.check(ctx, log)
	for {
		select {
		case <-ctx.Done():
			log.Info("dataset checker stopped")
			return
		case <-ticker.C:
			c.check(ctx, log)
		}
	}
}

func (c *Checker) check(ctx context.Context, log *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect snapshot", zap.Error(err))
		return
	}
	c.metrics.SetSnapshot(snap)
	log.Debug("monitoring: snapshot collected",
		zap.Int("quarries", snap.Quarries),
		zap.Int("provinces", snap.Provinces),
		zap.Int("pending_users", snap.PendingUsers),
	)
}
