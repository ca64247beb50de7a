package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/backbill/chronicle/internal/models"
)

// The audit record writer: pure functions turning a before/after entity state
// into an immutable audit record. Writers never touch the audit table — the
// produced record is staged on the audit queue inside the mutation's
// transaction and persisted later by the queue processor.

// NewCreateRecord builds the CREATE audit record for a freshly inserted
// entity. Every data field is captured as a change with a nil old value.
func NewCreateRecord(e *models.Entity, actor models.Actor, batchID *uuid.UUID) (*models.AuditRecord, error) {
	changes, err := DiffFields(nil, e.Data)
	if err != nil {
		return nil, err
	}

	return &models.AuditRecord{
		TableName:     e.EntityType,
		RecordID:      e.ID,
		Operation:     models.OpCreate,
		VersionBefore: nil,
		VersionAfter:  e.Version,
		ChangedFields: changes,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		BatchID:       batchID,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// NewUpdateRecord builds the UPDATE audit record for a data mutation.
// Returns nil (no error) when nothing actually changed by value.
func NewUpdateRecord(e *models.Entity, beforeData map[string]any, actor models.Actor, batchID *uuid.UUID) (*models.AuditRecord, error) {
	changes, err := DiffFields(beforeData, e.Data)
	if err != nil {
		return nil, err
	}

	if len(changes) == 0 {
		return nil, nil
	}

	before := e.Version - 1

	return &models.AuditRecord{
		TableName:     e.EntityType,
		RecordID:      e.ID,
		Operation:     models.OpUpdate,
		VersionBefore: &before,
		VersionAfter:  e.Version,
		ChangedFields: changes,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		BatchID:       batchID,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// NewLifecycleRecord builds the SOFT_DELETE or RESTORE audit record for a
// deletion-flag transition. The changed fields capture only the flag flip;
// the data payload is untouched by these operations.
func NewLifecycleRecord(op models.Operation, e *models.Entity, actor models.Actor, batchID *uuid.UUID) (*models.AuditRecord, error) {
	if op != models.OpSoftDelete && op != models.OpRestore {
		return nil, fmt.Errorf("lifecycle record requires SOFT_DELETE or RESTORE, got %s", op)
	}

	wasDeleted := op == models.OpRestore

	changes := map[string]models.FieldChange{
		"is_deleted": {
			Old: mustJSON(wasDeleted),
			New: mustJSON(!wasDeleted),
		},
	}

	before := e.Version - 1

	return &models.AuditRecord{
		TableName:     e.EntityType,
		RecordID:      e.ID,
		Operation:     op,
		VersionBefore: &before,
		VersionAfter:  e.Version,
		ChangedFields: changes,
		ActorID:       actor.ID,
		ActorName:     actor.Name,
		BatchID:       batchID,
		OccurredAt:    time.Now().UTC(),
	}, nil
}

// DiffFields computes changed, added, and removed keys between two data maps.
// Equality is by marshalled JSON value, not reference, so rebuilding a map
// with identical contents produces no false positives. A nil before map
// (CREATE) captures every after field as added.
func DiffFields(before, after map[string]any) (map[string]models.FieldChange, error) {
	changes := make(map[string]models.FieldChange)

	for k, newVal := range after {
		newJSON, err := json.Marshal(newVal)
		if err != nil {
			return nil, fmt.Errorf("marshalling new value for %s: %w", k, err)
		}

		oldVal, existed := before[k]
		if !existed {
			changes[k] = models.FieldChange{Old: nil, New: newJSON}

			continue
		}

		oldJSON, err := json.Marshal(oldVal)
		if err != nil {
			return nil, fmt.Errorf("marshalling old value for %s: %w", k, err)
		}

		if !bytes.Equal(oldJSON, newJSON) {
			changes[k] = models.FieldChange{Old: oldJSON, New: newJSON}
		}
	}

	for k, oldVal := range before {
		if _, exists := after[k]; !exists {
			oldJSON, err := json.Marshal(oldVal)
			if err != nil {
				return nil, fmt.Errorf("marshalling removed value for %s: %w", k, err)
			}

			changes[k] = models.FieldChange{Old: oldJSON, New: nil}
		}
	}

	return changes, nil
}

// ApplyChanges merges a change set into a data map: keys with nil values are
// removed, everything else is set. The input map is not modified.
//
// Replaying audit records works the same way: applying each record's
// ChangedFields new values in version order over the CREATE snapshot
// reconstructs the final state.
func ApplyChanges(base, changes map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(changes))
	for k, v := range base {
		merged[k] = v
	}

	for k, v := range changes {
		if v == nil {
			delete(merged, k)

			continue
		}

		merged[k] = v
	}

	return merged
}

// mustJSON marshals a bool; cannot fail.
func mustJSON(v bool) json.RawMessage {
	raw, _ := json.Marshal(v) //nolint:errcheck // bool marshal cannot fail.

	return raw
}
