package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/backbill/chronicle/internal/models"
)

// AuditStore handles the append-only audit log. Records are only ever
// inserted (by the queue processor) and read; the store has no update or
// delete path.
type AuditStore struct {
	Base
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(base Base) *AuditStore {
	return &AuditStore{Base: base}
}

const auditColumns = `id, table_name, record_id, operation, version_before, version_after,
	changed_fields, actor_id, actor_name, batch_id, occurred_at`

func scanAuditRecord(scan func(dest ...any) error) (*models.AuditRecord, error) {
	var r models.AuditRecord

	err := scan(
		&r.ID, &r.TableName, &r.RecordID, &r.Operation, &r.VersionBefore, &r.VersionAfter,
		&r.ChangedFields, &r.ActorID, &r.ActorName, &r.BatchID, &r.OccurredAt,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// InsertRecord appends an audit record. Insertion is idempotent: a record
// with the same (table_name, record_id, version_after) already on the log is
// treated as success, so queue redelivery after a lost acknowledgment never
// duplicates history.
func (s *AuditStore) InsertRecord(ctx context.Context, rec *models.AuditRecord) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	_, err := s.Pool.Exec(ctx, `INSERT INTO audit_log
		(table_name, record_id, operation, version_before, version_after,
		 changed_fields, actor_id, actor_name, batch_id, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rec.TableName, rec.RecordID, rec.Operation, rec.VersionBefore, rec.VersionAfter,
		rec.ChangedFields, rec.ActorID, rec.ActorName, rec.BatchID, rec.OccurredAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			s.Log.WithFields(map[string]any{
				"table_name":    rec.TableName,
				"record_id":     rec.RecordID,
				"version_after": rec.VersionAfter,
			}).Debug("audit record already persisted, skipping")

			return nil
		}

		return fmt.Errorf("inserting audit record: %w", err)
	}

	return nil
}

// GetAuditTrail returns the full history of one record in version order,
// optionally bounded by an occurrence time window.
func (s *AuditStore) GetAuditTrail(
	ctx context.Context,
	tableName, recordID string,
	from, to *time.Time,
) ([]models.AuditRecord, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + auditColumns + ` FROM audit_log
		WHERE table_name = $1 AND record_id = $2`
	args := []any{tableName, recordID}

	if from != nil {
		args = append(args, *from)
		query += " AND occurred_at >= $" + strconv.Itoa(len(args))
	}

	if to != nil {
		args = append(args, *to)
		query += " AND occurred_at <= $" + strconv.Itoa(len(args))
	}

	query += " ORDER BY version_after"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit trail: %w", err)
	}
	defer rows.Close()

	var records []models.AuditRecord

	for rows.Next() {
		rec, err := scanAuditRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning audit row: %w", err)
		}

		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit rows: %w", err)
	}

	return records, nil
}

// QueryAudit runs a filtered, paginated audit query for compliance reviews.
// Results come back newest first.
func (s *AuditStore) QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `SELECT ` + auditColumns + ` FROM audit_log`
	var conditions []string
	var args []any

	addCondition := func(clause string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf(clause, len(args)))
	}

	if opts.TableName != "" {
		addCondition("table_name = $%d", opts.TableName)
	}

	if opts.RecordID != "" {
		addCondition("record_id = $%d", opts.RecordID)
	}

	if opts.Operation != "" {
		addCondition("operation = $%d", opts.Operation)
	}

	if opts.ActorID != "" {
		addCondition("actor_id = $%d", opts.ActorID)
	}

	if opts.BatchID != nil {
		addCondition("batch_id = $%d", *opts.BatchID)
	}

	if opts.From != nil {
		addCondition("occurred_at >= $%d", *opts.From)
	}

	if opts.To != nil {
		addCondition("occurred_at <= $%d", *opts.To)
	}

	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	args = append(args, limit+1, offset)
	query += fmt.Sprintf(" ORDER BY occurred_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	records := make([]models.AuditRecord, 0, limit+1)

	for rows.Next() {
		rec, err := scanAuditRecord(rows.Scan)
		if err != nil {
			return nil, false, fmt.Errorf("scanning audit row: %w", err)
		}

		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterating audit rows: %w", err)
	}

	hasMore := len(records) > limit
	if hasMore {
		records = records[:limit]
	}

	return records, hasMore, nil
}
