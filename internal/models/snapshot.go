package models

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotType records why a configuration snapshot was taken.
type SnapshotType string

// Snapshot types.
const (
	SnapshotManual    SnapshotType = "manual"
	SnapshotScheduled SnapshotType = "scheduled"
	SnapshotPreChange SnapshotType = "pre_change"
	SnapshotRollback  SnapshotType = "rollback"
)

// Valid reports whether t is a known snapshot type.
func (t SnapshotType) Valid() bool {
	switch t {
	case SnapshotManual, SnapshotScheduled, SnapshotPreChange, SnapshotRollback:
		return true
	}

	return false
}

// Snapshot is a full point-in-time capture of configuration state, keyed by
// config entity ID. Snapshots are immutable; PreviousSnapshotID forms a
// singly linked chain walked backwards for rollback ancestry.
type Snapshot struct {
	ID                 uuid.UUID                 `json:"id"`
	SnapshotType       SnapshotType              `json:"snapshot_type"`
	ConfigurationData  map[string]map[string]any `json:"configuration_data"`
	ConfigurationHash  string                    `json:"configuration_hash"`
	PreviousSnapshotID *uuid.UUID                `json:"previous_snapshot_id,omitempty"`
	CreatedBy          string                    `json:"created_by"`
	CreatedAt          time.Time                 `json:"created_at"`
	ExpiresAt          *time.Time                `json:"expires_at,omitempty"`
}

// TakeSnapshotRequest is the payload for taking a configuration snapshot.
// When Data is nil the current state of all config entities is captured.
type TakeSnapshotRequest struct {
	SnapshotType SnapshotType              `json:"snapshot_type"`
	Data         map[string]map[string]any `json:"data,omitempty"`
}

// Validate checks TakeSnapshotRequest fields.
func (r *TakeSnapshotRequest) Validate() error {
	if r.SnapshotType == "" {
		r.SnapshotType = SnapshotManual
	}

	if !r.SnapshotType.Valid() {
		return ErrInvalidSnapshotType
	}

	return nil
}
