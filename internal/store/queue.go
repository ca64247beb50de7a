package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/backbill/chronicle/internal/models"
)

// QueueConfig tunes the retry policy of the audit queue.
type QueueConfig struct {
	// MaxRetries is the retry budget before an item goes dead.
	MaxRetries int
	// BaseDelay is the first retry delay; each retry doubles it.
	BaseDelay time.Duration
	// MaxDelay caps the exponential backoff.
	MaxDelay time.Duration
}

// QueueStore handles the durable audit queue. Items carry serialized audit
// records from the mutation transaction to the background processor; failed
// deliveries are retried with exponential backoff until the budget runs out.
type QueueStore struct {
	Base
	cfg QueueConfig
}

// NewQueueStore creates a new QueueStore.
func NewQueueStore(base Base, cfg QueueConfig) *QueueStore {
	return &QueueStore{Base: base, cfg: cfg}
}

const queueColumns = `id, payload, status, priority, retry_count, next_retry_at,
	last_error, claimed_by, claimed_at, enqueued_at, completed_at`

func scanQueueItem(scan func(dest ...any) error) (*models.QueueItem, error) {
	var i models.QueueItem

	err := scan(
		&i.ID, &i.Payload, &i.Status, &i.Priority, &i.RetryCount, &i.NextRetryAt,
		&i.LastError, &i.ClaimedBy, &i.ClaimedAt, &i.EnqueuedAt, &i.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &i, nil
}

// enqueueTx stages an audit record on the queue inside the caller's
// transaction. A nil record (no-op mutation) enqueues nothing. Entity
// mutations call this before commit so the audit obligation is atomic with
// the data change.
func enqueueTx(ctx context.Context, tx pgx.Tx, rec *models.AuditRecord, priority int) (int64, error) {
	if rec == nil {
		return 0, nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("marshaling audit payload: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO audit_queue (payload, priority) VALUES ($1, $2) RETURNING id`,
		payload, priority,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("enqueuing audit record: %w", err)
	}

	return id, nil
}

// Enqueue stages an audit record outside any caller transaction. Used by
// paths that produce records without a surrounding entity mutation.
func (s *QueueStore) Enqueue(ctx context.Context, rec *models.AuditRecord, priority int) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, fmt.Errorf("enqueuing audit record: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	id, err := enqueueTx(ctx, tx, rec, priority)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing enqueue: %w", err)
	}

	return id, nil
}

// ClaimNext atomically claims the next due queue item for a worker. Items are
// claimable when pending or failed with next_retry_at in the past, ordered by
// priority then due time. Returns (nil, nil) when nothing is due. SKIP LOCKED
// keeps concurrent workers from blocking on each other's candidate rows.
func (s *QueueStore) ClaimNext(ctx context.Context, workerID string) (*models.QueueItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `UPDATE audit_queue
		SET status = 'processing', claimed_by = $1, claimed_at = NOW()
		WHERE id = (
			SELECT id FROM audit_queue
			WHERE status IN ('pending', 'failed') AND next_retry_at <= NOW()
			ORDER BY priority, next_retry_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+queueColumns, workerID)

	item, err := scanQueueItem(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("claiming queue item: %w", err)
	}

	return item, nil
}

// Complete marks a processing item completed. Completing an item that is not
// processing returns ErrInvalidTransition.
func (s *QueueStore) Complete(ctx context.Context, id int64) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `UPDATE audit_queue
		SET status = 'completed', completed_at = NOW(), last_error = NULL
		WHERE id = $1 AND status = 'processing'`, id)
	if err != nil {
		return fmt.Errorf("completing queue item: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return s.transitionError(ctx, id)
	}

	return nil
}

// Fail records a delivery failure on a processing item. The item is
// rescheduled with exponential backoff, or marked dead once the retry budget
// is exhausted. Returns the updated item so callers can log the outcome.
func (s *QueueStore) Fail(ctx context.Context, id int64, cause error) (*models.QueueItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failing queue item: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	var retryCount int
	var status models.QueueStatus
	err = tx.QueryRow(ctx,
		`SELECT retry_count, status FROM audit_queue WHERE id = $1 FOR UPDATE`, id,
	).Scan(&retryCount, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrQueueItemNotFound
		}

		return nil, fmt.Errorf("loading queue item: %w", err)
	}

	if status != models.QueueProcessing {
		return nil, fmt.Errorf("%w: cannot fail item in status %s", models.ErrInvalidTransition, status)
	}

	msg := cause.Error()
	newCount := retryCount + 1

	var row pgx.Row
	if newCount > s.cfg.MaxRetries {
		row = tx.QueryRow(ctx, `UPDATE audit_queue
			SET status = 'dead', retry_count = $2, last_error = $3,
			    claimed_by = NULL, claimed_at = NULL
			WHERE id = $1
			RETURNING `+queueColumns, id, newCount, msg)
	} else {
		delay := s.backoffDelay(newCount)
		row = tx.QueryRow(ctx, `UPDATE audit_queue
			SET status = 'failed', retry_count = $2, last_error = $3,
			    next_retry_at = NOW() + $4, claimed_by = NULL, claimed_at = NULL
			WHERE id = $1
			RETURNING `+queueColumns, id, newCount, msg, delay)
	}

	item, err := scanQueueItem(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("updating failed queue item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing queue failure: %w", err)
	}

	if item.Status == models.QueueDead {
		s.notify("queue.dead", map[string]any{"queue_id": item.ID, "error": msg})
	}

	return item, nil
}

// transitionError distinguishes a missing item from an invalid state change.
func (s *QueueStore) transitionError(ctx context.Context, id int64) error {
	var status models.QueueStatus

	err := s.Pool.QueryRow(ctx, `SELECT status FROM audit_queue WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrQueueItemNotFound
		}

		return fmt.Errorf("checking queue item status: %w", err)
	}

	return fmt.Errorf("%w: item is %s, not processing", models.ErrInvalidTransition, status)
}

// backoffDelay computes the retry delay for the given attempt:
// base * 2^(attempt-1), plus up to 20% jitter, capped at MaxDelay.
func (s *QueueStore) backoffDelay(attempt int) time.Duration {
	delay := s.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.cfg.MaxDelay {
			delay = s.cfg.MaxDelay

			break
		}
	}

	jitter := time.Duration(rand.Float64() * 0.2 * float64(delay)) //nolint:gosec // jitter doesn't need crypto rand.

	delay += jitter
	if delay > s.cfg.MaxDelay {
		delay = s.cfg.MaxDelay
	}

	return delay
}

// ReclaimStale releases processing claims older than the given age back to
// pending so another worker can pick them up. Covers workers that crashed
// mid-item. Returns the number of reclaimed items.
func (s *QueueStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tag, err := s.Pool.Exec(ctx, `UPDATE audit_queue
		SET status = 'pending', claimed_by = NULL, claimed_at = NULL, next_retry_at = NOW()
		WHERE status = 'processing' AND claimed_at < NOW() - $1::interval`,
		olderThan.String())
	if err != nil {
		return 0, fmt.Errorf("reclaiming stale claims: %w", err)
	}

	return tag.RowsAffected(), nil
}

// ListDead returns dead-lettered items for operator inspection, oldest first.
func (s *QueueStore) ListDead(ctx context.Context, limit, offset int) ([]models.QueueItem, bool, error) {
	if limit <= 0 {
		limit = 50
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	if offset < 0 {
		offset = 0
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT `+queueColumns+` FROM audit_queue
		WHERE status = 'dead' ORDER BY enqueued_at, id LIMIT $1 OFFSET $2`,
		limit+1, offset)
	if err != nil {
		return nil, false, fmt.Errorf("listing dead queue items: %w", err)
	}
	defer rows.Close()

	items := make([]models.QueueItem, 0, limit+1)

	for rows.Next() {
		item, err := scanQueueItem(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning queue row: %w", err)
		}

		items = append(items, *item)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating queue rows: %w", err)
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	return items, hasMore, nil
}

// RetryDead requeues a dead item with a fresh retry budget. Only dead items
// can be retried this way; anything else returns ErrInvalidTransition.
func (s *QueueStore) RetryDead(ctx context.Context, id int64) (*models.QueueItem, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `UPDATE audit_queue
		SET status = 'pending', retry_count = 0, next_retry_at = NOW(),
		    last_error = NULL, claimed_by = NULL, claimed_at = NULL
		WHERE id = $1 AND status = 'dead'
		RETURNING `+queueColumns, id)

	item, err := scanQueueItem(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.transitionError(ctx, id)
		}

		return nil, fmt.Errorf("retrying dead queue item: %w", err)
	}

	return item, nil
}

// Stats returns item counts per queue status.
func (s *QueueStore) Stats(ctx context.Context) (*models.QueueStats, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `SELECT status, COUNT(*) FROM audit_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying queue stats: %w", err)
	}
	defer rows.Close()

	var stats models.QueueStats

	for rows.Next() {
		var status models.QueueStatus
		var count int64

		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning queue stats: %w", err)
		}

		switch status {
		case models.QueuePending:
			stats.Pending = count
		case models.QueueProcessing:
			stats.Processing = count
		case models.QueueFailed:
			stats.Failed = count
		case models.QueueDead:
			stats.Dead = count
		case models.QueueCompleted:
			stats.Completed = count
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating queue stats: %w", err)
	}

	return &stats, nil
}

// purgeBatchSize bounds single-statement deletes so retention sweeps don't
// hold long row locks.
const purgeBatchSize = 5000

// PurgeCompleted deletes completed items older than the given age, in
// batches. Returns the total number of rows removed.
func (s *QueueStore) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	var total int64

	for {
		ctx, cancel := withTimeout(ctx)
		tag, err := s.Pool.Exec(ctx, `DELETE FROM audit_queue
			WHERE id IN (
				SELECT id FROM audit_queue
				WHERE status = 'completed' AND completed_at < NOW() - $1::interval
				LIMIT $2
			)`, olderThan.String(), purgeBatchSize)
		cancel()

		if err != nil {
			return total, fmt.Errorf("purging completed queue items: %w", err)
		}

		total += tag.RowsAffected()

		if tag.RowsAffected() < purgeBatchSize {
			return total, nil
		}
	}
}
