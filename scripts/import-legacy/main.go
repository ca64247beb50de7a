// Package main is a one-shot importer that reads subscribers and service
// plans from a legacy SQLite billing database and writes them to Chronicle's
// PostgreSQL schema as version-1 entities with CREATE audit records.
//
// The importer runs offline, before chronicled starts, so it writes the audit
// log directly instead of going through the queue. Every imported row shares
// one batch ID so the whole import can be queried as a single audit batch.
//
// Usage:
//
//	SQLITE_PATH=/path/to/billing.db DATABASE_URL=postgres://... \
//	ENCRYPTION_KEY=<hex 32 bytes> go run ./scripts/import-legacy
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	_ "modernc.org/sqlite"
)

// config holds environment-driven importer settings.
type config struct {
	SQLitePath  string
	DatabaseURL string
	ActorID     string
	DryRun      bool
	BatchID     uuid.UUID
	enc         *encryptor
}

// report holds the final import summary.
type report struct {
	Source              string
	Target              string
	BatchID             string
	SubscribersRead     int
	SubscribersInserted int
	PlansRead           int
	PlansInserted       int
	EntitiesVerified    int
	AuditVerified       int
	SpotChecks          []string
	Duration            time.Duration
	DryRun              bool
	Err                 error
}

func main() {
	cfg := loadConfig()
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	encKey := os.Getenv("ENCRYPTION_KEY")
	if encKey == "" {
		slog.Error("ENCRYPTION_KEY is required (hex-encoded 32-byte AES-256 key)")
		os.Exit(1)
	}

	enc, err := newEncryptor(encKey)
	if err != nil {
		slog.Error("failed to initialize encryption", "error", err)
		os.Exit(1)
	}
	cfg.enc = enc

	slog.Info("starting legacy import",
		"sqlite", cfg.SQLitePath,
		"actor", cfg.ActorID,
		"batch_id", cfg.BatchID,
		"dry_run", cfg.DryRun,
	)

	start := time.Now()
	r, err := runImport(context.Background(), cfg)
	r.Duration = time.Since(start)
	if err != nil {
		r.Err = err
		slog.Error("import failed", "error", err)
	}
	printReport(&r)
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads configuration from environment variables.
func loadConfig() config {
	return config{
		SQLitePath:  envOr("SQLITE_PATH", "billing.db"),
		DatabaseURL: envOr("DATABASE_URL", ""),
		ActorID:     envOr("ACTOR_ID", "legacy-import"),
		DryRun:      os.Getenv("DRY_RUN") == "true" || os.Getenv("DRY_RUN") == "1",
		BatchID:     uuid.New(),
	}
}

// runImport executes the full import pipeline.
//
//nolint:funlen // Import pipeline is sequential; splitting would hurt readability.
func runImport(ctx context.Context, cfg config) (report, error) {
	r := report{
		Source:  cfg.SQLitePath,
		Target:  sanitizeURL(cfg.DatabaseURL),
		BatchID: cfg.BatchID.String(),
		DryRun:  cfg.DryRun,
	}

	// Open the legacy database read-only.
	legacy, err := sql.Open("sqlite", cfg.SQLitePath+"?mode=ro")
	if err != nil {
		return r, fmt.Errorf("open sqlite: %w", err)
	}
	defer legacy.Close()

	subs, err := readSubscribers(ctx, legacy)
	if err != nil {
		return r, fmt.Errorf("read subscribers: %w", err)
	}
	r.SubscribersRead = len(subs)
	slog.Info("read subscribers from sqlite", "count", r.SubscribersRead)

	plans, err := readServicePlans(ctx, legacy)
	if err != nil {
		return r, fmt.Errorf("read service plans: %w", err)
	}
	r.PlansRead = len(plans)
	slog.Info("read service plans from sqlite", "count", r.PlansRead)

	if cfg.DryRun {
		slog.Info("dry run — skipping PostgreSQL writes")
		r.SubscribersInserted = r.SubscribersRead
		r.PlansInserted = r.PlansRead
		return r, nil
	}

	conn, err := pgx.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return r, fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(ctx)

	tx, err := conn.Begin(ctx)
	if err != nil {
		return r, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // best-effort rollback after commit.

	r.PlansInserted, err = insertEntities(ctx, tx, planEntities(plans), cfg)
	if err != nil {
		return r, fmt.Errorf("insert service plans: %w", err)
	}
	slog.Info("inserted service plans", "count", r.PlansInserted)

	r.SubscribersInserted, err = insertEntities(ctx, tx, subscriberEntities(subs), cfg)
	if err != nil {
		return r, fmt.Errorf("insert subscribers: %w", err)
	}
	slog.Info("inserted subscribers", "count", r.SubscribersInserted)

	// Verify counts: entities by creating actor, audit rows by batch.
	r.EntitiesVerified, err = countEntitiesByActor(ctx, tx, cfg.ActorID)
	if err != nil {
		return r, fmt.Errorf("verify entity count: %w", err)
	}
	r.AuditVerified, err = countAuditByBatch(ctx, tx, cfg.BatchID)
	if err != nil {
		return r, fmt.Errorf("verify audit count: %w", err)
	}

	r.SpotChecks = spotCheck(ctx, tx, subs)

	if err := tx.Commit(ctx); err != nil {
		return r, fmt.Errorf("commit: %w", err)
	}
	slog.Info("transaction committed")
	return r, nil
}
