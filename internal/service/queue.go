package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/models"
)

// QueueStore is the data-access interface the queue service and the
// background processor depend on.
type QueueStore interface {
	ClaimNext(ctx context.Context, workerID string) (*models.QueueItem, error)
	Complete(ctx context.Context, id int64) error
	Fail(ctx context.Context, id int64, cause error) (*models.QueueItem, error)
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error)
	ListDead(ctx context.Context, limit, offset int) ([]models.QueueItem, bool, error)
	RetryDead(ctx context.Context, id int64) (*models.QueueItem, error)
	Stats(ctx context.Context) (*models.QueueStats, error)
	PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error)
}

// QueueService exposes operator controls over the audit queue.
type QueueService struct {
	store QueueStore
	log   *logrus.Logger
}

// NewQueueService creates a QueueService.
func NewQueueService(store QueueStore, log *logrus.Logger) *QueueService {
	return &QueueService{store: store, log: log}
}

// Stats returns item counts per queue status (pass-through).
func (s *QueueService) Stats(ctx context.Context) (*models.QueueStats, error) {
	return s.store.Stats(ctx)
}

// ListDead returns dead-lettered items for inspection (pass-through).
func (s *QueueService) ListDead(ctx context.Context, limit, offset int) ([]models.QueueItem, bool, error) {
	return s.store.ListDead(ctx, limit, offset)
}

// RetryDead requeues a dead item with a fresh retry budget.
func (s *QueueService) RetryDead(ctx context.Context, id int64) (*models.QueueItem, error) {
	item, err := s.store.RetryDead(ctx, id)
	if err != nil {
		return nil, err
	}

	s.log.WithField("queue_id", id).Info("dead queue item requeued")

	return item, nil
}
