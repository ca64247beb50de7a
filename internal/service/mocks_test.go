package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/backbill/chronicle/internal/models"
)

// mockQueueStore is an in-memory audit queue with the store's claim and
// transition semantics.
type mockQueueStore struct {
	mu    sync.Mutex
	items map[int64]*models.QueueItem
	next  int64

	maxRetries int

	claimErr error
	failErr  error
}

func newMockQueueStore(maxRetries int) *mockQueueStore {
	return &mockQueueStore{items: map[int64]*models.QueueItem{}, maxRetries: maxRetries}
}

func (m *mockQueueStore) add(payload []byte) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.next++
	m.items[m.next] = &models.QueueItem{
		ID:          m.next,
		Payload:     payload,
		Status:      models.QueuePending,
		Priority:    models.DefaultQueuePriority,
		NextRetryAt: time.Now().Add(-time.Second),
		EnqueuedAt:  time.Now(),
	}

	return m.next
}

func (m *mockQueueStore) ClaimNext(ctx context.Context, workerID string) (*models.QueueItem, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for _, item := range m.items {
		claimable := item.Status == models.QueuePending || item.Status == models.QueueFailed
		if claimable && !item.NextRetryAt.After(now) {
			item.Status = models.QueueProcessing
			item.ClaimedBy = &workerID
			item.ClaimedAt = &now

			cp := *item

			return &cp, nil
		}
	}

	return nil, nil
}

func (m *mockQueueStore) Complete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return models.ErrQueueItemNotFound
	}

	if item.Status != models.QueueProcessing {
		return models.ErrInvalidTransition
	}

	item.Status = models.QueueCompleted
	now := time.Now()
	item.CompletedAt = &now

	return nil
}

func (m *mockQueueStore) Fail(ctx context.Context, id int64, cause error) (*models.QueueItem, error) {
	if m.failErr != nil {
		return nil, m.failErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, models.ErrQueueItemNotFound
	}

	if item.Status != models.QueueProcessing {
		return nil, models.ErrInvalidTransition
	}

	item.RetryCount++
	msg := cause.Error()
	item.LastError = &msg
	item.ClaimedBy = nil
	item.ClaimedAt = nil

	if item.RetryCount > m.maxRetries {
		item.Status = models.QueueDead
	} else {
		item.Status = models.QueueFailed
		item.NextRetryAt = time.Now().Add(-time.Second) // immediately due in tests
	}

	cp := *item

	return &cp, nil
}

func (m *mockQueueStore) ReclaimStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64

	cutoff := time.Now().Add(-olderThan)
	for _, item := range m.items {
		if item.Status == models.QueueProcessing && item.ClaimedAt != nil && item.ClaimedAt.Before(cutoff) {
			item.Status = models.QueuePending
			item.ClaimedBy = nil
			item.ClaimedAt = nil
			n++
		}
	}

	return n, nil
}

func (m *mockQueueStore) ListDead(ctx context.Context, limit, offset int) ([]models.QueueItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dead []models.QueueItem

	for _, item := range m.items {
		if item.Status == models.QueueDead {
			dead = append(dead, *item)
		}
	}

	return dead, false, nil
}

func (m *mockQueueStore) RetryDead(ctx context.Context, id int64) (*models.QueueItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[id]
	if !ok {
		return nil, models.ErrQueueItemNotFound
	}

	if item.Status != models.QueueDead {
		return nil, models.ErrInvalidTransition
	}

	item.Status = models.QueuePending
	item.RetryCount = 0
	item.LastError = nil
	item.NextRetryAt = time.Now().Add(-time.Second)

	cp := *item

	return &cp, nil
}

func (m *mockQueueStore) Stats(ctx context.Context) (*models.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats models.QueueStats

	for _, item := range m.items {
		switch item.Status {
		case models.QueuePending:
			stats.Pending++
		case models.QueueProcessing:
			stats.Processing++
		case models.QueueFailed:
			stats.Failed++
		case models.QueueDead:
			stats.Dead++
		case models.QueueCompleted:
			stats.Completed++
		}
	}

	return &stats, nil
}

func (m *mockQueueStore) PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64

	for id, item := range m.items {
		if item.Status == models.QueueCompleted {
			delete(m.items, id)
			n++
		}
	}

	return n, nil
}

func (m *mockQueueStore) status(id int64) models.QueueStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.items[id].Status
}

// mockAuditSink records inserted audit records and returns configured errors.
type mockAuditSink struct {
	mu      sync.Mutex
	records []models.AuditRecord

	err func(rec *models.AuditRecord) error
}

func (m *mockAuditSink) InsertRecord(ctx context.Context, rec *models.AuditRecord) error {
	if m.err != nil {
		if err := m.err(rec); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *rec)

	return nil
}

func (m *mockAuditSink) getRecords() []models.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]models.AuditRecord, len(m.records))
	copy(cp, m.records)

	return cp
}

// mockSnapshotStore is an in-memory snapshot store with hash dedup.
type mockSnapshotStore struct {
	mu        sync.Mutex
	snapshots []*models.Snapshot
}

func (m *mockSnapshotStore) InsertSnapshot(ctx context.Context, snap *models.Snapshot) (*models.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.snapshots {
		if existing.ConfigurationHash == snap.ConfigurationHash && existing.SnapshotType == snap.SnapshotType {
			cp := *existing

			return &cp, false, nil
		}
	}

	cp := *snap
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()

	if cp.PreviousSnapshotID == nil && len(m.snapshots) > 0 {
		prev := m.snapshots[len(m.snapshots)-1].ID
		cp.PreviousSnapshotID = &prev
	}

	m.snapshots = append(m.snapshots, &cp)
	out := cp

	return &out, true, nil
}

func (m *mockSnapshotStore) GetSnapshot(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, snap := range m.snapshots {
		if snap.ID == id {
			cp := *snap

			return &cp, nil
		}
	}

	return nil, models.ErrSnapshotNotFound
}

func (m *mockSnapshotStore) Ancestry(ctx context.Context, id uuid.UUID) ([]models.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID := make(map[uuid.UUID]*models.Snapshot, len(m.snapshots))
	for _, snap := range m.snapshots {
		byID[snap.ID] = snap
	}

	var chain []models.Snapshot

	cur, ok := byID[id]
	if !ok {
		return nil, models.ErrSnapshotNotFound
	}

	for cur != nil {
		chain = append(chain, *cur)

		if cur.PreviousSnapshotID == nil {
			break
		}

		cur = byID[*cur.PreviousSnapshotID]
	}

	return chain, nil
}

func (m *mockSnapshotStore) ListSnapshots(
	ctx context.Context, typeFilter models.SnapshotType, limit, offset int,
) ([]models.Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Snapshot

	for _, snap := range m.snapshots {
		if typeFilter == "" || snap.SnapshotType == typeFilter {
			out = append(out, *snap)
		}
	}

	return out, false, nil
}

// mockEntityStore is an in-memory entity set for rollback tests.
type mockEntityStore struct {
	mu       sync.Mutex
	entities map[string]*models.Entity
	batches  []uuid.UUID
}

func newMockEntityStore() *mockEntityStore {
	return &mockEntityStore{entities: map[string]*models.Entity{}}
}

func (m *mockEntityStore) recordBatch(batchID *uuid.UUID) {
	if batchID != nil {
		m.batches = append(m.batches, *batchID)
	}
}

func (m *mockEntityStore) ListAllByType(ctx context.Context, entityType string) ([]models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Entity

	for _, e := range m.entities {
		if e.EntityType == entityType && !e.IsDeleted {
			out = append(out, *e)
		}
	}

	return out, nil
}

func (m *mockEntityStore) CreateEntity(
	ctx context.Context, req models.CreateEntityRequest, actor models.Actor, batchID *uuid.UUID,
) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entities[req.ID]; exists {
		return nil, models.ErrDuplicateKey
	}

	m.recordBatch(batchID)

	e := &models.Entity{
		ID:         req.ID,
		EntityType: req.EntityType,
		Data:       req.Data,
		Version:    1,
	}
	m.entities[req.ID] = e
	cp := *e

	return &cp, nil
}

func (m *mockEntityStore) RestoreEntity(
	ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID,
) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[id]
	if !ok {
		return nil, models.ErrEntityNotFound
	}

	if !e.IsDeleted {
		return nil, models.ErrInvalidState
	}

	m.recordBatch(batchID)

	e.IsDeleted = false
	e.Version++
	cp := *e

	return &cp, nil
}

func (m *mockEntityStore) SoftDeleteEntity(
	ctx context.Context, id string, actor models.Actor, batchID *uuid.UUID,
) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[id]
	if !ok {
		return nil, models.ErrEntityNotFound
	}

	if e.IsDeleted {
		cp := *e

		return &cp, nil
	}

	m.recordBatch(batchID)

	e.IsDeleted = true
	e.Version++
	cp := *e

	return &cp, nil
}

func (m *mockEntityStore) ReplaceEntityData(
	ctx context.Context, id string, data map[string]any, actor models.Actor, batchID *uuid.UUID,
) (*models.Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entities[id]
	if !ok {
		return nil, models.ErrEntityNotFound
	}

	if e.IsDeleted {
		return nil, models.ErrStateConflict
	}

	m.recordBatch(batchID)

	e.Data = data
	e.Version++
	cp := *e

	return &cp, nil
}
