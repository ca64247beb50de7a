package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/backbill/chronicle/internal/crypto"
	"github.com/backbill/chronicle/internal/dbpool"
	"github.com/backbill/chronicle/internal/models"
	"github.com/backbill/chronicle/internal/store"
)

// testHexKey is a valid 64-char hex string (32 bytes) for test encryption.
const testHexKey = "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

// testEnv holds shared test infrastructure (single pool across all tests).
type testEnv struct {
	pool *dbpool.Pool
	log  *logrus.Logger
}

var sharedEnv *testEnv

func getTestEnv(t *testing.T) *testEnv {
	t.Helper()

	if sharedEnv != nil {
		return sharedEnv
	}

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := dbpool.NewPool(ctx, dbURL)
	if err != nil {
		t.Fatalf("connecting to test DB: %v", err)
	}

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	sharedEnv = &testEnv{
		pool: pool,
		log:  log,
	}

	return sharedEnv
}

func newCryptoService(t *testing.T) *crypto.Service {
	t.Helper()

	provider, err := crypto.NewStaticProvider(testHexKey)
	if err != nil {
		t.Fatalf("creating static provider: %v", err)
	}

	return crypto.NewService(provider)
}

// setupTestBase creates a Base and registers cleanup of all rows created
// under the test's unique ID prefix.
func setupTestBase(t *testing.T, prefix string) store.Base {
	t.Helper()

	env := getTestEnv(t)

	t.Cleanup(func() {
		ctx := context.Background()
		like := prefix + "%"
		env.pool.Exec(ctx, "DELETE FROM audit_log WHERE record_id LIKE $1", like)           //nolint:errcheck // best-effort cleanup
		env.pool.Exec(ctx, "DELETE FROM audit_queue WHERE payload->>'record_id' LIKE $1", like) //nolint:errcheck // best-effort cleanup
		env.pool.Exec(ctx, "DELETE FROM entities WHERE id LIKE $1", like)                   //nolint:errcheck // best-effort cleanup
		env.pool.Exec(ctx, "DELETE FROM config_snapshots WHERE created_by LIKE $1", like)   //nolint:errcheck // best-effort cleanup
	})

	return store.Base{Pool: env.pool, Log: env.log, Crypto: newCryptoService(t)}
}

func testActor() models.Actor {
	return models.Actor{ID: "tester", Name: "Test Actor"}
}

func testQueueConfig() store.QueueConfig {
	return store.QueueConfig{
		MaxRetries: 3,
		BaseDelay:  10 * time.Millisecond,
		MaxDelay:   time.Second,
	}
}
