package models

import (
	"encoding/json"
	"time"
)

// QueueStatus is the lifecycle state of an audit queue item.
type QueueStatus string

// Queue item statuses. "failed" means a retry is scheduled; "dead" means the
// retry budget is exhausted and the item waits for manual intervention.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
	QueueDead       QueueStatus = "dead"
)

// DefaultQueuePriority is assigned to items enqueued without an explicit
// priority. Lower numbers are claimed first.
const DefaultQueuePriority = 100

// QueueItem is one staged audit write. Mutable until it reaches a terminal
// status (completed or dead).
type QueueItem struct {
	ID          int64           `json:"id"`
	Payload     json.RawMessage `json:"payload"`
	Status      QueueStatus     `json:"status"`
	Priority    int             `json:"priority"`
	RetryCount  int             `json:"retry_count"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	LastError   *string         `json:"last_error,omitempty"`
	ClaimedBy   *string         `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Record decodes the staged audit record from the item payload.
func (i *QueueItem) Record() (*AuditRecord, error) {
	var rec AuditRecord
	if err := json.Unmarshal(i.Payload, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

// QueueStats is a point-in-time count of queue items per status.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Completed  int64 `json:"completed"`
}
