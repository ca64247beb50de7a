// Package models defines data types for the audit and versioning core.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Known entity types managed by the back office. The set is open-ended:
// callers may register additional types, these are the ones the seed data uses.
const (
	EntityTypeCustomer      = "customer"
	EntityTypeServicePlan   = "service_plan"
	EntityTypeInvoice       = "invoice"
	EntityTypeNetworkDevice = "network_device"
	EntityTypeTicket        = "ticket"
	EntityTypeConfig        = "config"
)

// Entity is a versioned business record. Every mutation bumps Version by
// exactly one; deletion is always a soft delete (the row is never removed).
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

// Actor identifies who performed a mutation. Name is denormalized into audit
// records so compliance reports don't join against the identity store.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// maxDataBytes caps the serialized entity payload size.
const maxDataBytes = 65536

// CreateEntityRequest is the payload for creating a new entity.
type CreateEntityRequest struct {
	ID         string         `json:"id"`
	EntityType string         `json:"entity_type"`
	Data       map[string]any `json:"data,omitempty"`
}

// Validate checks required fields and limits on CreateEntityRequest.
// If ID is empty, a UUID is auto-generated.
func (r *CreateEntityRequest) Validate() error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}

	if len(r.ID) > 255 {
		return ErrFieldTooLong("id", 255)
	}

	if r.EntityType == "" {
		return ErrMissingEntityType
	}

	if len(r.EntityType) > 100 {
		return ErrFieldTooLong("entity_type", 100)
	}

	return validateData(r.Data)
}

// MutateEntityRequest is the payload for mutating an existing entity.
// Changes are merged into the entity data: a key set to JSON null removes
// the field. ExpectedVersion is the optimistic concurrency check — it must
// match the entity's current version or the mutation fails with ErrStaleVersion.
type MutateEntityRequest struct {
	ExpectedVersion int64          `json:"expected_version"`
	Changes         map[string]any `json:"changes"`
}

// Validate checks MutateEntityRequest fields.
func (r *MutateEntityRequest) Validate() error {
	if r.ExpectedVersion < 1 {
		return fmt.Errorf("expected_version must be >= 1")
	}

	if len(r.Changes) == 0 {
		return ErrMissingChanges
	}

	return validateData(r.Changes)
}

func validateData(data map[string]any) error {
	if data == nil {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}

	if len(raw) > maxDataBytes {
		return ErrFieldTooLong("data", maxDataBytes)
	}

	return nil
}
