package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/backbill/chronicle/internal/models"
)

// EntityStore handles versioned entity mutations. Every mutation bumps the
// entity version and stages its audit record on the queue inside the same
// transaction, so a committed mutation always has a durable audit obligation
// and a failed enqueue rolls the mutation back.
type EntityStore struct {
	Base
}

// NewEntityStore creates a new EntityStore.
func NewEntityStore(base Base) *EntityStore {
	return &EntityStore{Base: base}
}

const entityColumns = `id, entity_type, data, version, is_deleted, deleted_at, deleted_by,
	created_at, created_by, updated_at, updated_by`

// scanEntity scans an entity row. The data column stays encrypted; callers
// decrypt via decryptInto.
func scanEntity(scan func(dest ...any) error) (*models.Entity, string, error) {
	var e models.Entity
	var ciphertext string

	err := scan(
		&e.ID, &e.EntityType, &ciphertext, &e.Version, &e.IsDeleted, &e.DeletedAt, &e.DeletedBy,
		&e.CreatedAt, &e.CreatedBy, &e.UpdatedAt, &e.UpdatedBy,
	)
	if err != nil {
		return nil, "", err
	}

	return &e, ciphertext, nil
}

// decryptInto decrypts ciphertext into e.Data.
func (s *EntityStore) decryptInto(e *models.Entity, ciphertext string) error {
	data, err := s.decryptData(e.ID, ciphertext)
	if err != nil {
		return err
	}

	e.Data = data

	return nil
}

// CreateEntity inserts a new entity at version 1 and stages its CREATE audit
// record. batchID correlates records produced by one bulk operation; nil for
// standalone mutations.
func (s *EntityStore) CreateEntity(
	ctx context.Context,
	req models.CreateEntityRequest,
	actor models.Actor,
	batchID *uuid.UUID,
) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating entity: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}

	ciphertext, err := s.encryptData(req.ID, data)
	if err != nil {
		return nil, fmt.Errorf("preparing entity data: %w", err)
	}

	query := `INSERT INTO entities (id, entity_type, data, created_by, updated_by)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING ` + entityColumns

	row := tx.QueryRow(ctx, query, req.ID, req.EntityType, ciphertext, actor.ID)

	e, _, err := scanEntity(row.Scan)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, models.ErrDuplicateKey
		}

		return nil, fmt.Errorf("scanning created entity: %w", err)
	}

	e.Data = data

	rec, err := NewCreateRecord(e, actor, batchID)
	if err != nil {
		return nil, fmt.Errorf("building create audit record: %w", err)
	}

	if _, err := enqueueTx(ctx, tx, rec, models.DefaultQueuePriority); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing create entity: %w", err)
	}

	s.notify("entity.created", map[string]any{"entity_type": e.EntityType, "entity_id": e.ID, "version": e.Version})

	return e, nil
}

// lockEntity loads an entity row FOR UPDATE within a transaction.
func lockEntity(ctx context.Context, tx pgx.Tx, id string) (*models.Entity, string, error) {
	row := tx.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1 FOR UPDATE`, id)

	e, ciphertext, err := scanEntity(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", models.ErrEntityNotFound
		}

		return nil, "", fmt.Errorf("locking entity: %w", err)
	}

	return e, ciphertext, nil
}

// UpdateEntity applies a change set to an entity under an optimistic version
// check. The version bump, data write, and audit enqueue share one
// transaction. A change set that alters nothing by value is a no-op: the
// current state is returned without a version bump or audit record.
func (s *EntityStore) UpdateEntity(
	ctx context.Context,
	id string,
	req models.MutateEntityRequest,
	actor models.Actor,
	batchID *uuid.UUID,
) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("updating entity: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	e, ciphertext, err := lockEntity(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if e.IsDeleted {
		return nil, models.ErrStateConflict
	}

	if e.Version != req.ExpectedVersion {
		return nil, fmt.Errorf("%w: expected %d, current %d", models.ErrStaleVersion, req.ExpectedVersion, e.Version)
	}

	if err := s.decryptInto(e, ciphertext); err != nil {
		return nil, err
	}

	beforeData := e.Data
	afterData := ApplyChanges(beforeData, req.Changes)

	changes, err := DiffFields(beforeData, afterData)
	if err != nil {
		return nil, err
	}

	if len(changes) == 0 {
		return e, nil
	}

	newCiphertext, err := s.encryptData(id, afterData)
	if err != nil {
		return nil, fmt.Errorf("preparing entity data: %w", err)
	}

	row := tx.QueryRow(ctx, `UPDATE entities
		SET data = $2, version = version + 1, updated_at = NOW(), updated_by = $3
		WHERE id = $1
		RETURNING `+entityColumns, id, newCiphertext, actor.ID)

	updated, _, err := scanEntity(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("scanning updated entity: %w", err)
	}

	updated.Data = afterData

	rec, err := NewUpdateRecord(updated, beforeData, actor, batchID)
	if err != nil {
		return nil, fmt.Errorf("building update audit record: %w", err)
	}

	if _, err := enqueueTx(ctx, tx, rec, models.DefaultQueuePriority); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing update entity: %w", err)
	}

	s.notify("entity.updated", map[string]any{"entity_type": updated.EntityType, "entity_id": id, "version": updated.Version})

	return updated, nil
}

// ReplaceEntityData replaces the whole data payload (rollback path). Unlike
// UpdateEntity there is no expected-version check: the row lock serializes
// the bump. Soft-deleted entities still refuse the write.
func (s *EntityStore) ReplaceEntityData(
	ctx context.Context,
	id string,
	data map[string]any,
	actor models.Actor,
	batchID *uuid.UUID,
) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("replacing entity data: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	e, ciphertext, err := lockEntity(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if e.IsDeleted {
		return nil, models.ErrStateConflict
	}

	if err := s.decryptInto(e, ciphertext); err != nil {
		return nil, err
	}

	beforeData := e.Data

	changes, err := DiffFields(beforeData, data)
	if err != nil {
		return nil, err
	}

	if len(changes) == 0 {
		return e, nil
	}

	newCiphertext, err := s.encryptData(id, data)
	if err != nil {
		return nil, fmt.Errorf("preparing entity data: %w", err)
	}

	row := tx.QueryRow(ctx, `UPDATE entities
		SET data = $2, version = version + 1, updated_at = NOW(), updated_by = $3
		WHERE id = $1
		RETURNING `+entityColumns, id, newCiphertext, actor.ID)

	updated, _, err := scanEntity(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("scanning replaced entity: %w", err)
	}

	updated.Data = data

	rec, err := NewUpdateRecord(updated, beforeData, actor, batchID)
	if err != nil {
		return nil, fmt.Errorf("building replace audit record: %w", err)
	}

	if _, err := enqueueTx(ctx, tx, rec, models.DefaultQueuePriority); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing replace entity data: %w", err)
	}

	s.notify("entity.updated", map[string]any{"entity_type": updated.EntityType, "entity_id": id, "version": updated.Version})

	return updated, nil
}

// SoftDeleteEntity marks an entity deleted. Idempotent: deleting an already
// deleted entity returns the current state with no version bump and no audit
// record.
func (s *EntityStore) SoftDeleteEntity(ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("soft-deleting entity: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	e, ciphertext, err := lockEntity(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if err := s.decryptInto(e, ciphertext); err != nil {
		return nil, err
	}

	if e.IsDeleted {
		return e, nil
	}

	row := tx.QueryRow(ctx, `UPDATE entities
		SET is_deleted = TRUE, deleted_at = NOW(), deleted_by = $2,
		    version = version + 1, updated_at = NOW(), updated_by = $2
		WHERE id = $1
		RETURNING `+entityColumns, id, actor.ID)

	deleted, _, err := scanEntity(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("scanning soft-deleted entity: %w", err)
	}

	deleted.Data = e.Data

	rec, err := NewLifecycleRecord(models.OpSoftDelete, deleted, actor, batchID)
	if err != nil {
		return nil, fmt.Errorf("building soft-delete audit record: %w", err)
	}

	if _, err := enqueueTx(ctx, tx, rec, models.DefaultQueuePriority); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing soft delete: %w", err)
	}

	s.notify("entity.soft_deleted", map[string]any{"entity_type": deleted.EntityType, "entity_id": id, "version": deleted.Version})

	return deleted, nil
}

// RestoreEntity clears the soft-delete flags. Fails with ErrInvalidState
// when the entity is not deleted.
func (s *EntityStore) RestoreEntity(ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring entity: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	e, ciphertext, err := lockEntity(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	if !e.IsDeleted {
		return nil, models.ErrInvalidState
	}

	if err := s.decryptInto(e, ciphertext); err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `UPDATE entities
		SET is_deleted = FALSE, deleted_at = NULL, deleted_by = NULL,
		    version = version + 1, updated_at = NOW(), updated_by = $2
		WHERE id = $1
		RETURNING `+entityColumns, id, actor.ID)

	restored, _, err := scanEntity(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("scanning restored entity: %w", err)
	}

	restored.Data = e.Data

	rec, err := NewLifecycleRecord(models.OpRestore, restored, actor, batchID)
	if err != nil {
		return nil, fmt.Errorf("building restore audit record: %w", err)
	}

	if _, err := enqueueTx(ctx, tx, rec, models.DefaultQueuePriority); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing restore: %w", err)
	}

	s.notify("entity.restored", map[string]any{"entity_type": restored.EntityType, "entity_id": id, "version": restored.Version})

	return restored, nil
}

// GetEntity returns a single entity by ID, including soft-deleted ones.
func (s *EntityStore) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id)

	e, ciphertext, err := scanEntity(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrEntityNotFound
		}

		return nil, fmt.Errorf("getting entity: %w", err)
	}

	if err := s.decryptInto(e, ciphertext); err != nil {
		return nil, err
	}

	return e, nil
}

// ListEntities returns a paginated entity list with optional type filter.
// Soft-deleted entities are excluded unless includeDeleted is set.
func (s *EntityStore) ListEntities(
	ctx context.Context,
	typeFilter string,
	includeDeleted bool,
	limit, offset int,
) ([]models.Entity, bool, error) {
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

	query := `SELECT ` + entityColumns + ` FROM entities`
	var conditions []string
	var args []any
	argIdx := 1

	if typeFilter != "" {
		conditions = append(conditions, "entity_type = $"+strconv.Itoa(argIdx))
		args = append(args, typeFilter)
		argIdx++
	}

	if !includeDeleted {
		conditions = append(conditions, "NOT is_deleted")
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit+1, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	entities := make([]models.Entity, 0, limit+1)

	for rows.Next() {
		e, ciphertext, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning entity row: %w", err)
		}

		if err := s.decryptInto(e, ciphertext); err != nil {
			return nil, false, err
		}

		entities = append(entities, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating entity rows: %w", err)
	}

	hasMore := len(entities) > limit
	if hasMore {
		entities = entities[:limit]
	}

	return entities, hasMore, nil
}

// ListAllByType returns every non-deleted entity of the given type, used by
// the snapshot capture path. Config sets are small; no pagination.
func (s *EntityStore) ListAllByType(ctx context.Context, entityType string) ([]models.Entity, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE entity_type = $1 AND NOT is_deleted ORDER BY id`,
		entityType,
	)
	if err != nil {
		return nil, fmt.Errorf("listing entities by type: %w", err)
	}
	defer rows.Close()

	var entities []models.Entity

	for rows.Next() {
		e, ciphertext, err := scanEntity(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}

		if err := s.decryptInto(e, ciphertext); err != nil {
			return nil, err
		}

		entities = append(entities, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}

	return entities, nil
}
