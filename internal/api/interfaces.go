package api

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/backbill/chronicle/internal/models"
)

// EntityRepository defines entity operations used by EntityHandler.
type EntityRepository interface {
	CreateEntity(ctx context.Context, req models.CreateEntityRequest, actor models.Actor) (*models.Entity, error)
	GetEntity(ctx context.Context, id string) (*models.Entity, error)
	ListEntities(ctx context.Context, typeFilter string, includeDeleted bool, limit, offset int) ([]models.Entity, bool, error)
	UpdateEntity(ctx context.Context, id string, req models.MutateEntityRequest, actor models.Actor) (*models.Entity, error)
	SoftDeleteEntity(ctx context.Context, id string, actor models.Actor) (*models.Entity, error)
	RestoreEntity(ctx context.Context, id string, actor models.Actor) (*models.Entity, error)
}

// AuditRepository defines audit log operations used by AuditHandler.
type AuditRepository interface {
	GetAuditTrail(ctx context.Context, tableName, recordID string, from, to *time.Time) ([]models.AuditRecord, error)
	QueryAudit(ctx context.Context, opts models.AuditQueryOpts) ([]models.AuditRecord, bool, error)
}

// QueueRepository defines queue operations used by QueueHandler.
type QueueRepository interface {
	Stats(ctx context.Context) (*models.QueueStats, error)
	ListDead(ctx context.Context, limit, offset int) ([]models.QueueItem, bool, error)
	RetryDead(ctx context.Context, id int64) (*models.QueueItem, error)
}

// SnapshotRepository defines snapshot operations used by SnapshotHandler.
type SnapshotRepository interface {
	Take(ctx context.Context, req models.TakeSnapshotRequest, actor models.Actor) (*models.Snapshot, bool, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Snapshot, error)
	Ancestry(ctx context.Context, id uuid.UUID) ([]models.Snapshot, error)
	List(ctx context.Context, typeFilter models.SnapshotType, limit, offset int) ([]models.Snapshot, bool, error)
	RollbackTo(ctx context.Context, snapshotID uuid.UUID, actor models.Actor) (*models.Snapshot, error)
}
