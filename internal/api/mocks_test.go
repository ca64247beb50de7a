package api_test

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/backbill/chronicle/internal/models"
)

// mockEntityRepo implements api.EntityRepository for testing.
type mockEntityRepo struct {
	createFn  func(ctx context.Context, req models.CreateEntityRequest, actor models.Actor) (*models.Entity, error)
	getFn     func(ctx context.Context, id string) (*models.Entity, error)
	listFn    func(ctx context.Context, typeFilter string, includeDeleted bool, limit, offset int) ([]models.Entity, bool, error)
	updateFn  func(ctx context.Context, id string, req models.MutateEntityRequest, actor models.Actor) (*models.Entity, error)
	deleteFn  func(ctx context.Context, id string, actor models.Actor) (*models.Entity, error)
	restoreFn func(ctx context.Context, id string, actor models.Actor) (*models.Entity, error)
}

func (m *mockEntityRepo) CreateEntity(ctx context.Context, req models.CreateEntityRequest, actor models.Actor) (*models.Entity, error) {
	return m.createFn(ctx, req, actor)
}

func (m *mockEntityRepo) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	return m.getFn(ctx, id)
}

func (m *mockEntityRepo) ListEntities(ctx context.Context, typeFilter string, includeDeleted bool, limit, offset int) ([]models.Entity, bool, error) {
	return m.listFn(ctx, typeFilter, includeDeleted, limit, offset)
}

func (m *mockEntityRepo) UpdateEntity(ctx context.Context, id string, req models.MutateEntityRequest, actor models.Actor) (*models.Entity, error) {
	return m.updateFn(ctx, id, req, actor)
}

func (m *mockEntityRepo) SoftDeleteEntity(ctx context.Context, id string, actor models.Actor) (*models.Entity, error) {
	return m.deleteFn(ctx, id, actor)
}

func (m *mockEntityRepo) RestoreEntity(ctx context.Context, id string, actor models.Actor) (*models.Entity, error) {
	return m.restoreFn(ctx, id, actor)
}

// mockAuditRepo implements api.AuditRepository for testing.
type mockAuditRepo struct {
	trailFn func(ctx context.Context, tableName, recordID string, from, to *time.Time) ([]models.AuditRecord, error)
	queryFn func(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error)
}

func (m *mockAuditRepo) GetAuditTrail(ctx context.Context, tableName, recordID string, from, to *time.Time) ([]models.AuditRecord, error) {
	return m.trailFn(ctx, tableName, recordID, from, to)
}

func (m *mockAuditRepo) QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error) {
	return m.queryFn(ctx, opts)
}

// mockQueueRepo implements api.QueueRepository for testing.
type mockQueueRepo struct {
	statsFn    func(ctx context.Context) (*models.QueueStats, error)
	listDeadFn func(ctx context.Context, limit, offset int) ([]models.QueueItem, bool, error)
	retryFn    func(ctx context.Context, id int64) (*models.QueueItem, error)
}

func (m *mockQueueRepo) Stats(ctx context.Context) (*models.QueueStats, error) {
	return m.statsFn(ctx)
}

func (m *mockQueueRepo) ListDead(ctx context.Context, limit, offset int) ([]models.QueueItem, bool, error) {
	return m.listDeadFn(ctx, limit, offset)
}

func (m *mockQueueRepo) RetryDead(ctx context.Context, id int64) (*models.QueueItem, error) {
	return m.retryFn(ctx, id)
}

// mockSnapshotRepo implements api.SnapshotRepository for testing.
type mockSnapshotRepo struct {
	takeFn     func(ctx context.Context, req models.TakeSnapshotRequest, actor models.Actor) (*models.Snapshot, bool, error)
	getFn      func(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	ancestryFn func(ctx context.Context, id uuid.UUID) ([]models.Snapshot, error)
	listFn     func(ctx context.Context, typeFilter models.SnapshotType, limit, offset int) ([]models.Snapshot, bool, error)
	rollbackFn func(ctx context.Context, snapshotID uuid.UUID, actor models.Actor) (*models.Snapshot, error)
}

func (m *mockSnapshotRepo) Take(ctx context.Context, req models.TakeSnapshotRequest, actor models.Actor) (*models.Snapshot, bool, error) {
	return m.takeFn(ctx, req, actor)
}

func (m *mockSnapshotRepo) Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error) {
	return m.getFn(ctx, id)
}

func (m *mockSnapshotRepo) Ancestry(ctx context.Context, id uuid.UUID) ([]models.Snapshot, error) {
	return m.ancestryFn(ctx, id)
}

func (m *mockSnapshotRepo) List(ctx context.Context, typeFilter models.SnapshotType, limit, offset int) ([]models.Snapshot, bool, error) {
	return m.listFn(ctx, typeFilter, limit, offset)
}

func (m *mockSnapshotRepo) RollbackTo(ctx context.Context, snapshotID uuid.UUID, actor models.Actor) (*models.Snapshot, error) {
	return m.rollbackFn(ctx, snapshotID, actor)
}
