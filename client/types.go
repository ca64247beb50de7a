package client

import (
	"encoding/json"
	"time"
)

// Entity is a versioned business record.
type Entity struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	Data       map[string]any `json:"data"`
	Version    int64          `json:"version"`
	IsDeleted  bool           `json:"is_deleted"`
	DeletedAt  *time.Time     `json:"deleted_at,omitempty"`
	DeletedBy  *string        `json:"deleted_by,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	CreatedBy  string         `json:"created_by"`
	UpdatedAt  time.Time      `json:"updated_at"`
	UpdatedBy  string         `json:"updated_by"`
}

// CreateEntityRequest is the payload for creating a new entity. ID is
// optional; the server generates a UUID when it is empty.
type CreateEntityRequest struct {
	ID         string         `json:"id,omitempty"`
	EntityType string         `json:"entity_type"`
	Data       map[string]any `json:"data,omitempty"`
}

// MutateEntityRequest is the payload for updating an entity. Changes merge
// into the entity data; a key set to nil removes the field. ExpectedVersion
// must match the entity's current version.
type MutateEntityRequest struct {
	ExpectedVersion int64          `json:"expected_version"`
	Changes         map[string]any `json:"changes"`
}

// EntityListOptions filters and paginates entity listings.
type EntityListOptions struct {
	Type           string
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// AuditRecord is one immutable audit log entry.
type AuditRecord struct {
	ID            int64          `json:"id"`
	TableName     string         `json:"table_name"`
	RecordID      string         `json:"record_id"`
	Operation     string         `json:"operation"`
	ChangedFields map[string]any `json:"changed_fields,omitempty"`
	VersionBefore *int64         `json:"version_before,omitempty"`
	VersionAfter  int64          `json:"version_after"`
	ActorID       string         `json:"actor_id"`
	ActorName     string         `json:"actor_name,omitempty"`
	BatchID       *string        `json:"batch_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// AuditQueryOptions filters the audit log query endpoint.
type AuditQueryOptions struct {
	EntityType string
	RecordID   string
	Operation  string
	ActorID    string
	BatchID    string
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// QueueItem is one staged audit write in the durable queue.
type QueueItem struct {
	ID          int64           `json:"id"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Priority    int             `json:"priority"`
	RetryCount  int             `json:"retry_count"`
	NextRetryAt time.Time       `json:"next_retry_at"`
	LastError   *string         `json:"last_error,omitempty"`
	ClaimedBy   *string         `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// QueueStats counts queue items per status.
type QueueStats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Completed  int64 `json:"completed"`
}

// Snapshot is a point-in-time capture of configuration state.
type Snapshot struct {
	ID                 string                    `json:"id"`
	SnapshotType       string                    `json:"snapshot_type"`
	ConfigurationData  map[string]map[string]any `json:"configuration_data"`
	ConfigurationHash  string                    `json:"configuration_hash"`
	PreviousSnapshotID *string                   `json:"previous_snapshot_id,omitempty"`
	CreatedBy          string                    `json:"created_by"`
	CreatedAt          time.Time                 `json:"created_at"`
	ExpiresAt          *time.Time                `json:"expires_at,omitempty"`
}

// TakeSnapshotRequest is the payload for taking a configuration snapshot.
// When Data is nil the server captures the current state of all config
// entities.
type TakeSnapshotRequest struct {
	SnapshotType string                    `json:"snapshot_type,omitempty"`
	Data         map[string]map[string]any `json:"data,omitempty"`
}

// SnapshotListOptions filters and paginates snapshot listings.
type SnapshotListOptions struct {
	Type   string
	Limit  int
	Offset int
}

// HealthResponse is the liveness check payload.
type HealthResponse struct {
	Status        string  `json:"status"`
	Version       string  `json:"version"`
	Database      string  `json:"database"`
	WSClients     int     `json:"ws_clients"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// ReadinessResponse is the readiness check payload.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
