package models

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation.
var (
	ErrMissingEntityType   = errors.New("entity_type is required")
	ErrMissingChanges      = errors.New("changes must not be empty")
	ErrInvalidSnapshotType = errors.New("invalid snapshot_type")
	ErrInvalidOperation    = errors.New("invalid operation")
)

// Sentinel errors for entity lookups.
var (
	ErrEntityNotFound    = errors.New("entity not found")
	ErrSnapshotNotFound  = errors.New("snapshot not found")
	ErrQueueItemNotFound = errors.New("queue item not found")
)

// Business-rule violations on versioned entities. These are the only
// audit-subsystem errors the CRUD caller ever sees.
var (
	// ErrStateConflict: mutation attempted on a soft-deleted entity.
	// Recoverable by the caller via an explicit restore.
	ErrStateConflict = errors.New("entity is soft-deleted")

	// ErrInvalidState: restore attempted on an entity that is not deleted.
	ErrInvalidState = errors.New("entity is not deleted")

	// ErrStaleVersion: optimistic concurrency mismatch. The caller must
	// re-read and retry the business operation.
	ErrStaleVersion = errors.New("stale version")
)

// ErrInvalidTransition: a queue item was completed/failed from a
// non-processing state. Indicates a processor bug, never retried.
var ErrInvalidTransition = errors.New("invalid queue transition")

// ErrDuplicateKey indicates a unique constraint violation (maps to HTTP 409 Conflict).
var ErrDuplicateKey = errors.New("duplicate key")

// ErrFieldTooLong returns an error indicating a field exceeds its maximum length.
func ErrFieldTooLong(field string, maxLen int) error {
	return fmt.Errorf("%s exceeds maximum length of %d", field, maxLen)
}
