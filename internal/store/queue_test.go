package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/backbill/chronicle/internal/models"
	"github.com/backbill/chronicle/internal/store"
)

// createQueueItem creates an entity so its CREATE record lands on the queue,
// then claims it. Returns the claimed item.
func createQueueItem(t *testing.T, base store.Base, qs *store.QueueStore, id string) *models.QueueItem {
	t.Helper()

	ctx := context.Background()
	es := store.NewEntityStore(base)

	if _, err := es.CreateEntity(ctx, models.CreateEntityRequest{
		ID:         id,
		EntityType: models.EntityTypeTicket,
		Data:       map[string]any{"subject": "queue test"},
	}, testActor(), nil); err != nil {
		t.Fatalf("CreateEntity: %v", err)
	}

	// Drain until we find the item for this entity; other tests' leftovers
	// are completed to keep the claimable set clean.
	for range 50 {
		item, err := qs.ClaimNext(ctx, "test-worker")
		if err != nil {
			t.Fatalf("ClaimNext: %v", err)
		}
		if item == nil {
			break
		}

		rec, err := item.Record()
		if err != nil {
			t.Fatalf("decoding payload: %v", err)
		}

		if rec.RecordID == id {
			return item
		}

		if err := qs.Complete(ctx, item.ID); err != nil {
			t.Fatalf("completing unrelated item: %v", err)
		}
	}

	t.Fatalf("queue item for %s never became claimable", id)

	return nil
}

func TestQueueClaimAndComplete(t *testing.T) {
	base := setupTestBase(t, "qcc-")
	qs := store.NewQueueStore(base, testQueueConfig())
	ctx := context.Background()

	item := createQueueItem(t, base, qs, "qcc-1")

	if item.Status != models.QueueProcessing {
		t.Errorf("claimed status = %s, want processing", item.Status)
	}
	if item.ClaimedBy == nil || *item.ClaimedBy != "test-worker" {
		t.Errorf("claimed_by = %v, want test-worker", item.ClaimedBy)
	}

	rec, err := item.Record()
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if rec.Operation != models.OpCreate || rec.VersionAfter != 1 {
		t.Errorf("payload = %s v%d, want CREATE v1", rec.Operation, rec.VersionAfter)
	}

	if err := qs.Complete(ctx, item.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	// Completing again is an invalid transition.
	if err := qs.Complete(ctx, item.ID); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("double complete error = %v, want ErrInvalidTransition", err)
	}
}

func TestQueueFailRetryAndDead(t *testing.T) {
	base := setupTestBase(t, "qfd-")
	cfg := testQueueConfig()
	qs := store.NewQueueStore(base, cfg)
	ctx := context.Background()

	item := createQueueItem(t, base, qs, "qfd-1")
	id := item.ID

	// Fail through the whole retry budget.
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		failed, err := qs.Fail(ctx, id, fmt.Errorf("sink unavailable"))
		if err != nil {
			t.Fatalf("Fail attempt %d: %v", attempt, err)
		}
		if failed.Status != models.QueueFailed {
			t.Fatalf("attempt %d status = %s, want failed", attempt, failed.Status)
		}
		if failed.RetryCount != attempt {
			t.Errorf("attempt %d retry_count = %d, want %d", attempt, failed.RetryCount, attempt)
		}
		if failed.LastError == nil || *failed.LastError != "sink unavailable" {
			t.Errorf("attempt %d last_error = %v", attempt, failed.LastError)
		}

		// Wait out the short test backoff, then reclaim.
		time.Sleep(cfg.MaxDelay)

		reclaimed, err := qs.ClaimNext(ctx, "test-worker")
		if err != nil {
			t.Fatalf("reclaim attempt %d: %v", attempt, err)
		}
		if reclaimed == nil || reclaimed.ID != id {
			t.Fatalf("reclaim attempt %d got %v, want item %d", attempt, reclaimed, id)
		}
	}

	// One more failure exhausts the budget.
	dead, err := qs.Fail(ctx, id, fmt.Errorf("sink unavailable"))
	if err != nil {
		t.Fatalf("final Fail: %v", err)
	}
	if dead.Status != models.QueueDead {
		t.Fatalf("final status = %s, want dead", dead.Status)
	}

	// Dead items never come back via ClaimNext.
	for {
		next, err := qs.ClaimNext(ctx, "test-worker")
		if err != nil {
			t.Fatalf("ClaimNext after dead: %v", err)
		}
		if next == nil {
			break
		}
		if next.ID == id {
			t.Fatal("dead item was claimed")
		}
		if err := qs.Complete(ctx, next.ID); err != nil {
			t.Fatalf("completing unrelated item: %v", err)
		}
	}

	// Operator requeue resets the budget.
	retried, err := qs.RetryDead(ctx, id)
	if err != nil {
		t.Fatalf("RetryDead: %v", err)
	}
	if retried.Status != models.QueuePending || retried.RetryCount != 0 {
		t.Errorf("retried = %s retry_count=%d, want pending 0", retried.Status, retried.RetryCount)
	}

	// RetryDead on a non-dead item is invalid.
	if _, err := qs.RetryDead(ctx, id); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("retry pending error = %v, want ErrInvalidTransition", err)
	}
}

func TestQueueFailRequiresProcessing(t *testing.T) {
	base := setupTestBase(t, "qfp-")
	qs := store.NewQueueStore(base, testQueueConfig())
	ctx := context.Background()

	item := createQueueItem(t, base, qs, "qfp-1")

	if err := qs.Complete(ctx, item.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if _, err := qs.Fail(ctx, item.ID, fmt.Errorf("late failure")); !errors.Is(err, models.ErrInvalidTransition) {
		t.Errorf("fail completed error = %v, want ErrInvalidTransition", err)
	}

	if _, err := qs.Fail(ctx, int64(-1), fmt.Errorf("nope")); !errors.Is(err, models.ErrQueueItemNotFound) {
		t.Errorf("fail missing error = %v, want ErrQueueItemNotFound", err)
	}
}

func TestQueueReclaimStale(t *testing.T) {
	base := setupTestBase(t, "qrs-")
	qs := store.NewQueueStore(base, testQueueConfig())
	ctx := context.Background()

	item := createQueueItem(t, base, qs, "qrs-1")

	env := getTestEnv(t)
	if _, err := env.pool.Exec(ctx,
		"UPDATE audit_queue SET claimed_at = NOW() - INTERVAL '10 minutes' WHERE id = $1",
		item.ID); err != nil {
		t.Fatalf("backdating claim: %v", err)
	}

	n, err := qs.ReclaimStale(ctx, 5*time.Minute)
	if err != nil {
		t.Fatalf("ReclaimStale: %v", err)
	}
	if n < 1 {
		t.Errorf("reclaimed %d, want >= 1", n)
	}

	reclaimed, err := qs.ClaimNext(ctx, "other-worker")
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if reclaimed == nil || reclaimed.ID != item.ID {
		t.Fatalf("reclaimed item = %v, want %d", reclaimed, item.ID)
	}
}

func TestQueueStatsAndPurge(t *testing.T) {
	base := setupTestBase(t, "qsp-")
	qs := store.NewQueueStore(base, testQueueConfig())
	ctx := context.Background()

	item := createQueueItem(t, base, qs, "qsp-1")
	if err := qs.Complete(ctx, item.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	stats, err := qs.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Completed < 1 {
		t.Errorf("completed = %d, want >= 1", stats.Completed)
	}

	env := getTestEnv(t)
	if _, err := env.pool.Exec(ctx,
		"UPDATE audit_queue SET completed_at = NOW() - INTERVAL '30 days' WHERE id = $1",
		item.ID); err != nil {
		t.Fatalf("backdating completion: %v", err)
	}

	purged, err := qs.PurgeCompleted(ctx, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("PurgeCompleted: %v", err)
	}
	if purged < 1 {
		t.Errorf("purged %d, want >= 1", purged)
	}
}
