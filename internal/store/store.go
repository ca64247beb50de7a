// Package store provides focused, single-concern data access stores
// for the audit core.
//
// Each store owns one table (entities, audit log, audit queue, snapshots)
// and embeds shared helpers (Pool, crypto, logger) via the Base struct.
// Stores never import each other — shared logic lives in this file or in
// dedicated helper files (writer.go).
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/crypto"
	"github.com/backbill/chronicle/internal/dbpool"
)

const defaultQueryTimeout = 30 * time.Second

// maxListLimit caps paginated list queries.
const maxListLimit = 1000

// Base contains shared dependencies for all stores.
// Embed this in each store struct.
type Base struct {
	Pool   *dbpool.Pool
	Log    *logrus.Logger
	Crypto *crypto.Service
}

// withTimeout creates a context with the default query timeout.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// beginTx starts a read-write transaction.
func (b *Base) beginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return tx, nil
}

// beginReadTx starts a read-only transaction.
func (b *Base) beginReadTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := b.Pool.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return nil, fmt.Errorf("beginning read transaction: %w", err)
	}

	return tx, nil
}

// notify sends a pg_notify on the audit_events channel (best-effort,
// post-commit). The notify bridge forwards these to monitoring clients.
func (b *Base) notify(eventType string, fields map[string]any) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := map[string]any{"type": eventType}
	for k, v := range fields {
		payload[k] = v
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		b.Log.WithError(err).Warn("failed to marshal " + eventType + " notification")
		return
	}

	if _, err := b.Pool.Exec(ctx, "SELECT pg_notify('audit_events', $1)", string(raw)); err != nil {
		b.Log.WithError(err).Warn("failed to send " + eventType + " notification")
	}
}

// encryptData serializes and encrypts an entity payload, bound to the entity ID.
func (b *Base) encryptData(entityID string, data map[string]any) (string, error) {
	if data == nil {
		data = map[string]any{}
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshaling entity data: %w", err)
	}

	ciphertext, err := b.Crypto.Encrypt(entityID, raw)
	if err != nil {
		return "", fmt.Errorf("encrypting entity data: %w", err)
	}

	return ciphertext, nil
}

// decryptData decrypts and deserializes an entity payload.
func (b *Base) decryptData(entityID, ciphertext string) (map[string]any, error) {
	raw, err := b.Crypto.Decrypt(entityID, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypting entity data: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("unmarshaling entity data: %w", err)
	}

	return data, nil
}
