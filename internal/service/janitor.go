package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/metrics"
)

// SnapshotPurger deletes expired snapshots.
type SnapshotPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// JanitorConfig tunes the background maintenance loop.
type JanitorConfig struct {
	// Interval between maintenance sweeps.
	Interval time.Duration
	// QueueRetention is how long completed queue items are kept.
	QueueRetention time.Duration
}

// Janitor runs periodic maintenance: purging completed queue items past
// retention, deleting expired snapshots, and refreshing the queue depth
// gauges.
type Janitor struct {
	queue     QueueStore
	snapshots SnapshotPurger
	log       *logrus.Logger
	cfg       JanitorConfig
}

// NewJanitor creates a Janitor.
func NewJanitor(queue QueueStore, snapshots SnapshotPurger, log *logrus.Logger, cfg JanitorConfig) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}

	if cfg.QueueRetention <= 0 {
		cfg.QueueRetention = 7 * 24 * time.Hour
	}

	return &Janitor{queue: queue, snapshots: snapshots, log: log, cfg: cfg}
}

// Run executes sweeps on the configured interval until the context is
// cancelled. The first sweep runs immediately.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	j.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	purged, err := j.queue.PurgeCompleted(ctx, j.cfg.QueueRetention)
	if err != nil {
		j.log.WithError(err).Warn("queue purge failed")
	} else if purged > 0 {
		j.log.WithField("count", purged).Info("purged completed queue items")
	}

	expired, err := j.snapshots.PurgeExpired(ctx)
	if err != nil {
		j.log.WithError(err).Warn("snapshot purge failed")
	} else if expired > 0 {
		j.log.WithField("count", expired).Info("purged expired snapshots")
	}

	stats, err := j.queue.Stats(ctx)
	if err != nil {
		j.log.WithError(err).Warn("queue stats refresh failed")

		return
	}

	metrics.QueueDepth.WithLabelValues("pending").Set(float64(stats.Pending))
	metrics.QueueDepth.WithLabelValues("processing").Set(float64(stats.Processing))
	metrics.QueueDepth.WithLabelValues("failed").Set(float64(stats.Failed))
	metrics.QueueDepth.WithLabelValues("dead").Set(float64(stats.Dead))
	metrics.QueueDepth.WithLabelValues("completed").Set(float64(stats.Completed))
}
