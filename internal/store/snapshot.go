package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/backbill/chronicle/internal/models"
)

// SnapshotStore handles configuration snapshots: content-hashed, deduplicated
// captures of the config entity set, chained to their predecessor for
// lineage queries.
type SnapshotStore struct {
	Base
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(base Base) *SnapshotStore {
	return &SnapshotStore{Base: base}
}

const snapshotColumns = `id, snapshot_type, configuration_data, configuration_hash,
	previous_snapshot_id, created_by, created_at, expires_at`

func scanSnapshot(scan func(dest ...any) error) (*models.Snapshot, error) {
	var s models.Snapshot

	err := scan(
		&s.ID, &s.SnapshotType, &s.ConfigurationData, &s.ConfigurationHash,
		&s.PreviousSnapshotID, &s.CreatedBy, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}

	return &s, nil
}

// InsertSnapshot persists a snapshot, deduplicating on content hash: when a
// non-expired snapshot of the same type already carries the same hash, that
// snapshot is returned and created is false. Otherwise the new snapshot is
// chained to the latest existing snapshot unless the caller already set
// PreviousSnapshotID.
func (s *SnapshotStore) InsertSnapshot(ctx context.Context, snap *models.Snapshot) (*models.Snapshot, bool, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	tx, err := s.beginTx(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("inserting snapshot: %w", err)
	}

	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	row := tx.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM config_snapshots
		WHERE configuration_hash = $1 AND snapshot_type = $2
		  AND (expires_at IS NULL OR expires_at > NOW())
		ORDER BY created_at DESC
		LIMIT 1`, snap.ConfigurationHash, snap.SnapshotType)

	existing, err := scanSnapshot(row.Scan)
	if err == nil {
		return existing, false, nil
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("checking snapshot hash: %w", err)
	}

	if snap.PreviousSnapshotID == nil {
		var prev uuid.UUID

		err := tx.QueryRow(ctx,
			`SELECT id FROM config_snapshots ORDER BY created_at DESC, id DESC LIMIT 1`,
		).Scan(&prev)

		switch {
		case err == nil:
			snap.PreviousSnapshotID = &prev
		case errors.Is(err, pgx.ErrNoRows):
			// First snapshot ever; chain root.
		default:
			return nil, false, fmt.Errorf("finding previous snapshot: %w", err)
		}
	}

	if snap.ID == uuid.Nil {
		snap.ID = uuid.New()
	}

	row = tx.QueryRow(ctx, `INSERT INTO config_snapshots
		(id, snapshot_type, configuration_data, configuration_hash,
		 previous_snapshot_id, created_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+snapshotColumns,
		snap.ID, snap.SnapshotType, snap.ConfigurationData, snap.ConfigurationHash,
		snap.PreviousSnapshotID, snap.CreatedBy, snap.ExpiresAt)

	created, err := scanSnapshot(row.Scan)
	if err != nil {
		return nil, false, fmt.Errorf("scanning created snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("committing snapshot: %w", err)
	}

	s.notify("snapshot.created", map[string]any{
		"snapshot_id":   created.ID.String(),
		"snapshot_type": string(created.SnapshotType),
	})

	return created, true, nil
}

// GetSnapshot returns a snapshot by ID.
func (s *SnapshotStore) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	row := s.Pool.QueryRow(ctx, `SELECT `+snapshotColumns+` FROM config_snapshots WHERE id = $1`, id)

	snap, err := scanSnapshot(row.Scan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSnapshotNotFound
		}

		return nil, fmt.Errorf("getting snapshot: %w", err)
	}

	return snap, nil
}

// ancestryDepthCap bounds the recursive lineage walk; a chain this deep is
// malformed (cycles are prevented by the FK, but the cap keeps the query safe).
const ancestryDepthCap = 1000

// Ancestry returns the snapshot and its predecessor chain, newest first,
// ending at the chain root or the depth cap.
func (s *SnapshotStore) Ancestry(ctx context.Context, id uuid.UUID) ([]models.Snapshot, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	rows, err := s.Pool.Query(ctx, `WITH RECURSIVE lineage AS (
			SELECT `+snapshotColumns+`, 1 AS depth
			FROM config_snapshots WHERE id = $1
			UNION ALL
			SELECT s.id, s.snapshot_type, s.configuration_data, s.configuration_hash,
			       s.previous_snapshot_id, s.created_by, s.created_at, s.expires_at,
			       l.depth + 1
			FROM config_snapshots s
			JOIN lineage l ON s.id = l.previous_snapshot_id
			WHERE l.depth < $2
		)
		SELECT `+snapshotColumns+` FROM lineage ORDER BY depth`, id, ancestryDepthCap)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot ancestry: %w", err)
	}
	defer rows.Close()

	var chain []models.Snapshot

	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}

		chain = append(chain, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	if len(chain) == 0 {
		return nil, models.ErrSnapshotNotFound
	}

	return chain, nil
}

// ListSnapshots returns snapshots newest first, optionally filtered by type.
func (s *SnapshotStore) ListSnapshots(
	ctx context.Context,
	typeFilter models.SnapshotType,
	limit, offset int,
) ([]models.Snapshot, bool, error) {
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

	query := `SELECT ` + snapshotColumns + ` FROM config_snapshots`
	args := []any{}

	if typeFilter != "" {
		args = append(args, typeFilter)
		query += " WHERE snapshot_type = $1"
	}

	args = append(args, limit+1, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]models.Snapshot, 0, limit+1)

	for rows.Next() {
		snap, err := scanSnapshot(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning snapshot row: %w", err)
		}

		snapshots = append(snapshots, *snap)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating snapshot rows: %w", err)
	}

	hasMore := len(snapshots) > limit
	if hasMore {
		snapshots = snapshots[:limit]
	}

	return snapshots, hasMore, nil
}

// PurgeExpired deletes expired snapshots in batches, skipping any snapshot
// still referenced as the predecessor of another snapshot so lineage chains
// never dangle. Returns the number of rows removed.
func (s *SnapshotStore) PurgeExpired(ctx context.Context) (int64, error) {
	var total int64

	for {
		ctx, cancel := withTimeout(ctx)
		tag, err := s.Pool.Exec(ctx, `DELETE FROM config_snapshots
			WHERE id IN (
				SELECT id FROM config_snapshots c
				WHERE c.expires_at IS NOT NULL AND c.expires_at < NOW()
				  AND NOT EXISTS (
					SELECT 1 FROM config_snapshots d WHERE d.previous_snapshot_id = c.id
				  )
				LIMIT $1
			)`, purgeBatchSize)
		cancel()

		if err != nil {
			return total, fmt.Errorf("purging expired snapshots: %w", err)
		}

		total += tag.RowsAffected()

		if tag.RowsAffected() < purgeBatchSize {
			return total, nil
		}
	}
}
