package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/backbill/chronicle/internal/metrics"
	"github.com/backbill/chronicle/internal/models"
)

// AuditSink persists audit records delivered from the queue.
type AuditSink interface {
	InsertRecord(ctx context.Context, rec *models.AuditRecord) error
}

// ProcessorConfig tunes the background queue processor.
type ProcessorConfig struct {
	// Workers is the number of concurrent claim loops.
	Workers int
	// PollInterval is how long an idle worker sleeps before polling again.
	PollInterval time.Duration
	// StaleClaimTimeout is the age after which a processing claim is
	// considered abandoned and released.
	StaleClaimTimeout time.Duration
}

// QueueProcessor drains the audit queue into the audit log. Workers claim
// items one at a time, decode the payload, append it to the log, and
// acknowledge. Failures are handed back to the queue for retry scheduling.
// A reclaimer loop releases claims abandoned by crashed workers.
type QueueProcessor struct {
	queue QueueStore
	sink  AuditSink
	log   *logrus.Logger
	cfg   ProcessorConfig
}

// NewQueueProcessor creates a QueueProcessor.
func NewQueueProcessor(queue QueueStore, sink AuditSink, log *logrus.Logger, cfg ProcessorConfig) *QueueProcessor {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	if cfg.StaleClaimTimeout <= 0 {
		cfg.StaleClaimTimeout = 5 * time.Minute
	}

	return &QueueProcessor{queue: queue, sink: sink, log: log, cfg: cfg}
}

// Run starts the worker and reclaimer loops and blocks until the context is
// cancelled. In-flight items finish before Run returns.
func (p *QueueProcessor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for i := range p.cfg.Workers {
		workerID := fmt.Sprintf("worker-%d", i)
		g.Go(func() error {
			p.workerLoop(ctx, workerID)

			return nil
		})
	}

	g.Go(func() error {
		p.reclaimLoop(ctx)

		return nil
	})

	p.log.WithField("workers", p.cfg.Workers).Info("queue processor started")

	return g.Wait()
}

// workerLoop claims and processes items until the context is cancelled,
// sleeping PollInterval when the queue is empty.
func (p *QueueProcessor) workerLoop(ctx context.Context, workerID string) {
	for {
		if ctx.Err() != nil {
			return
		}

		item, err := p.queue.ClaimNext(ctx, workerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			p.log.WithError(err).WithField("worker", workerID).Warn("claim failed")
		}

		if item != nil {
			p.processItem(item, workerID)

			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// processItem delivers a single claimed item. Acknowledgment uses a fresh
// context so shutdown doesn't abandon an already-persisted record.
func (p *QueueProcessor) processItem(item *models.QueueItem, workerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := p.log.WithFields(logrus.Fields{
		"worker":   workerID,
		"queue_id": item.ID,
	})

	rec, err := item.Record()
	if err != nil {
		// Undecodable payloads can never succeed; burn the retry budget so
		// the item dead-letters for operator inspection.
		p.failItem(ctx, item.ID, fmt.Errorf("decoding payload: %w", err), logger)

		return
	}

	if err := p.sink.InsertRecord(ctx, rec); err != nil {
		p.failItem(ctx, item.ID, err, logger)

		return
	}

	if err := p.queue.Complete(ctx, item.ID); err != nil {
		// The record is on the log; idempotent insert makes redelivery safe.
		logger.WithError(err).Warn("completing queue item failed")

		return
	}

	metrics.AuditRecordsWritten.Inc()
	logger.WithFields(logrus.Fields{
		"table_name":    rec.TableName,
		"record_id":     rec.RecordID,
		"operation":     rec.Operation,
		"version_after": rec.VersionAfter,
	}).Debug("audit record persisted")
}

func (p *QueueProcessor) failItem(ctx context.Context, id int64, cause error, logger *logrus.Entry) {
	item, err := p.queue.Fail(ctx, id, cause)
	if err != nil {
		logger.WithError(err).Error("failing queue item failed")

		return
	}

	if item.Status == models.QueueDead {
		metrics.QueueDeadTotal.Inc()
		logger.WithError(cause).WithField("retries", item.RetryCount).Error("queue item dead-lettered")

		return
	}

	metrics.QueueRetriesTotal.Inc()
	logger.WithError(cause).WithFields(logrus.Fields{
		"retry_count":   item.RetryCount,
		"next_retry_at": item.NextRetryAt,
	}).Warn("queue item scheduled for retry")
}

// reclaimLoop periodically releases stale processing claims.
func (p *QueueProcessor) reclaimLoop(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.StaleClaimTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		n, err := p.queue.ReclaimStale(ctx, p.cfg.StaleClaimTimeout)
		if err != nil {
			if ctx.Err() == nil {
				p.log.WithError(err).Warn("stale claim reclaim failed")
			}

			continue
		}

		if n > 0 {
			metrics.StaleClaimsReclaimed.Add(float64(n))
			p.log.WithField("count", n).Info("reclaimed stale queue claims")
		}
	}
}
