package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// subscriber is one row from the legacy subscribers table.
type subscriber struct {
	AccountNo string
	Name      string
	Email     sql.NullString
	Phone     sql.NullString
	Address   sql.NullString
	PlanCode  string
	Status    string
	Created   string
	Updated   string
}

// servicePlan is one row from the legacy service_plans table.
type servicePlan struct {
	Code         string
	Name         string
	DownloadKbps int64
	UploadKbps   int64
	MonthlyCents int64
	Active       int
	Created      string
}

// entityRow is a prepared entities-table row plus the audit snapshot that
// accompanies it.
type entityRow struct {
	ID         string
	EntityType string
	Data       map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// readSubscribers reads all subscribers from the legacy database.
func readSubscribers(ctx context.Context, db *sql.DB) ([]subscriber, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT account_no, name, email, phone, address, plan_code, status, created, updated
		 FROM subscribers`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []subscriber
	for rows.Next() {
		var s subscriber
		if err := rows.Scan(&s.AccountNo, &s.Name, &s.Email, &s.Phone,
			&s.Address, &s.PlanCode, &s.Status, &s.Created, &s.Updated); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// readServicePlans reads all service plans from the legacy database.
func readServicePlans(ctx context.Context, db *sql.DB) ([]servicePlan, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT code, name, download_kbps, upload_kbps, monthly_cents, active, created
		 FROM service_plans`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []servicePlan
	for rows.Next() {
		var p servicePlan
		if err := rows.Scan(&p.Code, &p.Name, &p.DownloadKbps, &p.UploadKbps,
			&p.MonthlyCents, &p.Active, &p.Created); err != nil {
			return nil, fmt.Errorf("scan service plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// subscriberEntities maps legacy subscribers onto customer entities.
func subscriberEntities(subs []subscriber) []entityRow {
	out := make([]entityRow, 0, len(subs))
	for i := range subs {
		s := &subs[i]
		data := map[string]any{
			"account_no": s.AccountNo,
			"name":       s.Name,
			"plan_code":  s.PlanCode,
			"status":     s.Status,
		}
		if v := nullStr(s.Email); v != nil {
			data["email"] = *v
		}
		if v := nullStr(s.Phone); v != nil {
			data["phone"] = *v
		}
		if v := nullStr(s.Address); v != nil {
			data["address"] = *v
		}
		out = append(out, entityRow{
			ID:         "cust-" + s.AccountNo,
			EntityType: "customer",
			Data:       data,
			CreatedAt:  parseTime(s.Created),
			UpdatedAt:  parseTime(s.Updated),
		})
	}
	return out
}

// planEntities maps legacy service plans onto service_plan entities.
func planEntities(plans []servicePlan) []entityRow {
	out := make([]entityRow, 0, len(plans))
	for i := range plans {
		p := &plans[i]
		created := parseTime(p.Created)
		out = append(out, entityRow{
			ID:         "plan-" + p.Code,
			EntityType: "service_plan",
			Data: map[string]any{
				"code":          p.Code,
				"name":          p.Name,
				"download_kbps": p.DownloadKbps,
				"upload_kbps":   p.UploadKbps,
				"monthly_cents": p.MonthlyCents,
				"active":        p.Active != 0,
			},
			CreatedAt: created,
			UpdatedAt: created,
		})
	}
	return out
}

// insertEntities writes entities plus their CREATE audit records in groups of
// 100. Returns the number of rows attempted (conflicts are skipped silently,
// matching re-runs of the importer).
func insertEntities(ctx context.Context, tx pgx.Tx, rows []entityRow, cfg config) (int, error) {
	const batchSize = 100
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		if err := insertEntityBatch(ctx, tx, rows[i:end], cfg); err != nil {
			return i, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
	}
	return len(rows), nil
}

// insertEntityBatch inserts a single batch of entities with audit records.
func insertEntityBatch(ctx context.Context, tx pgx.Tx, batch []entityRow, cfg config) error {
	for i := range batch {
		e := &batch[i]

		raw, err := json.Marshal(e.Data)
		if err != nil {
			return fmt.Errorf("marshal %s data: %w", e.ID, err)
		}
		ciphertext, err := cfg.enc.encrypt(raw, e.ID)
		if err != nil {
			return fmt.Errorf("encrypt %s data: %w", e.ID, err)
		}

		tag, err := tx.Exec(ctx,
			`INSERT INTO entities (id, entity_type, data, version,
			    created_at, created_by, updated_at, updated_by)
			 VALUES ($1, $2, $3, 1, $4, $5, $6, $5)
			 ON CONFLICT (id) DO NOTHING`,
			e.ID, e.EntityType, ciphertext, e.CreatedAt, cfg.ActorID, e.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert entity %s: %w", e.ID, err)
		}
		if tag.RowsAffected() == 0 {
			continue // already imported on a previous run
		}

		changed, err := createSnapshotFields(e.Data)
		if err != nil {
			return fmt.Errorf("audit snapshot for %s: %w", e.ID, err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO audit_log (table_name, record_id, operation,
			    version_before, version_after, changed_fields,
			    actor_id, actor_name, batch_id, occurred_at)
			 VALUES ('entities', $1, 'CREATE', NULL, 1, $2, $3, 'Legacy import', $4, $5)`,
			e.ID, changed, cfg.ActorID, cfg.BatchID, e.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert audit record %s: %w", e.ID, err)
		}
	}
	return nil
}

// createSnapshotFields renders a CREATE audit snapshot: every field appears
// as {"old": null, "new": value}, matching the service's diff writer.
func createSnapshotFields(data map[string]any) ([]byte, error) {
	fields := make(map[string]map[string]any, len(data))
	for k, v := range data {
		fields[k] = map[string]any{"old": nil, "new": v}
	}
	return json.Marshal(fields)
}
