package main

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	crand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// encryptor holds an AES-256-GCM cipher for entity data encryption.
type encryptor struct {
	gcm cipher.AEAD
}

// newEncryptor initializes an encryptor from a hex-encoded 32-byte key.
func newEncryptor(keyHex string) (*encryptor, error) {
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}

	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}

	return &encryptor{gcm: gcm}, nil
}

// encrypt returns base64(nonce+ciphertext) with the entity ID as additional
// data, matching the service's crypto format so chronicled can decrypt
// imported rows.
func (e *encryptor) encrypt(plaintext []byte, entityID string) (string, error) {
	nonce := make([]byte, e.gcm.NonceSize())
	if _, err := io.ReadFull(crand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := e.gcm.Seal(nonce, nonce, plaintext, []byte(entityID))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// parseTime parses a SQLite datetime string to time.Time.
func parseTime(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		slog.Warn("unparseable time, using now", "value", s)
		return time.Now()
	}
	return t.UTC()
}

// nullStr converts sql.NullString to *string.
func nullStr(s sql.NullString) *string {
	if !s.Valid || s.String == "" {
		return nil
	}
	return &s.String
}

// sanitizeURL removes credentials from a database URL for display.
func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable URL]"
	}
	u.User = nil
	return u.String()
}

// envOr returns the environment variable value or a default.
func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// countEntitiesByActor counts entities created by the importing actor.
func countEntitiesByActor(ctx context.Context, tx pgx.Tx, actorID string) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM entities WHERE created_by = $1`, actorID,
	).Scan(&count)
	return count, err
}

// countAuditByBatch counts audit records carrying this import's batch ID.
func countAuditByBatch(ctx context.Context, tx pgx.Tx, batchID uuid.UUID) (int, error) {
	var count int
	err := tx.QueryRow(ctx,
		`SELECT count(*) FROM audit_log WHERE batch_id = $1`, batchID,
	).Scan(&count)
	return count, err
}

// spotCheck verifies up to 5 random subscribers landed in postgres with the
// expected type and version.
func spotCheck(ctx context.Context, tx pgx.Tx, subs []subscriber) []string {
	if len(subs) == 0 {
		return nil
	}
	count := min(5, len(subs))
	indices := rand.Perm(len(subs))[:count]
	var checks []string

	for _, idx := range indices {
		s := &subs[idx]
		id := "cust-" + s.AccountNo
		var entityType string
		var version int64
		err := tx.QueryRow(ctx,
			`SELECT entity_type, version FROM entities WHERE id = $1`, id,
		).Scan(&entityType, &version)
		switch {
		case err != nil:
			checks = append(checks, fmt.Sprintf("❌ %s — not found in postgres: %v", id, err))
		case entityType == "customer" && version == 1:
			checks = append(checks, fmt.Sprintf("✅ %s — type=%s, version=%d", id, entityType, version))
		default:
			checks = append(checks, fmt.Sprintf("❌ %s — unexpected row: type=%s, version=%d", id, entityType, version))
		}
	}
	return checks
}

// printReport outputs the final import summary.
func printReport(r *report) {
	subStatus := statusIcon(r.SubscribersRead, r.SubscribersInserted)
	planStatus := statusIcon(r.PlansRead, r.PlansInserted)

	fmt.Println()
	fmt.Println("=== Chronicle Legacy Import Report ===")
	if r.DryRun {
		fmt.Println("MODE: DRY RUN (no changes made)")
	}
	fmt.Printf("Source: %s\n", r.Source)
	fmt.Printf("Target: %s\n", r.Target)
	fmt.Printf("Batch:  %s\n", r.BatchID)
	fmt.Println()
	fmt.Printf("Subscribers:   %d read → %d imported %s\n",
		r.SubscribersRead, r.SubscribersInserted, subStatus)
	fmt.Printf("Service plans: %d read → %d imported %s\n",
		r.PlansRead, r.PlansInserted, planStatus)
	if !r.DryRun {
		fmt.Printf("Verified: %d entities, %d audit records\n",
			r.EntitiesVerified, r.AuditVerified)
	}

	if len(r.SpotChecks) > 0 {
		fmt.Println("\nSpot checks:")
		for _, c := range r.SpotChecks {
			fmt.Printf("  %s\n", c)
		}
	}

	fmt.Printf("\nDuration: %.1fs\n", r.Duration.Seconds())
	if r.Err != nil {
		fmt.Printf("Status: FAILED — %v\n", r.Err)
	} else {
		fmt.Println("Status: SUCCESS")
	}
}

// statusIcon returns a check or X based on count match.
func statusIcon(read, inserted int) string {
	if read == inserted {
		return "✅"
	}
	return "❌"
}
