package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operation is the kind of state transition an audit record describes.
type Operation string

// Audit operations. SOFT_DELETE and RESTORE are distinct from UPDATE so the
// trail reads as a lifecycle, not a sequence of flag flips.
const (
	OpCreate     Operation = "CREATE"
	OpUpdate     Operation = "UPDATE"
	OpDelete     Operation = "DELETE"
	OpSoftDelete Operation = "SOFT_DELETE"
	OpRestore    Operation = "RESTORE"
)

// Valid reports whether op is a known audit operation.
func (op Operation) Valid() bool {
	switch op {
	case OpCreate, OpUpdate, OpDelete, OpSoftDelete, OpRestore:
		return true
	}

	return false
}

// FieldChange holds the before/after values of a single field.
// Old is nil for added fields (and every field on CREATE); New is nil for
// removed fields.
type FieldChange struct {
	Old json.RawMessage `json:"old"`
	New json.RawMessage `json:"new"`
}

// AuditRecord is one immutable entry in the audit log. Records are owned by
// the queue processor: once written they are never updated.
//
// VersionAfter is assigned inside the originating mutation's transaction, so
// queue redelivery or reordering can never reorder a record's history.
type AuditRecord struct {
	ID            int64                  `json:"id,omitempty"`
	TableName     string                 `json:"table_name"`
	RecordID      string                 `json:"record_id"`
	Operation     Operation              `json:"operation"`
	VersionBefore *int64                 `json:"version_before,omitempty"`
	VersionAfter  int64                  `json:"version_after"`
	ChangedFields map[string]FieldChange `json:"changed_fields,omitempty"`
	ActorID       string                 `json:"actor_id"`
	ActorName     string                 `json:"actor_name,omitempty"`
	BatchID       *uuid.UUID             `json:"batch_id,omitempty"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// AuditQueryOpts filters audit log queries.
type AuditQueryOpts struct {
	TableName string
	RecordID  string
	Operation Operation
	ActorID   string
	BatchID   *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}
