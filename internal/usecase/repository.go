package usecase

import (
	"context"
	"time"

	"github.com/vistore-tech/catalog-sync/internal/domain"
)

type ProductRepository interface {
	Upsert(ctx context.Context, product *domain.Product) (*UpsertProductRes, error)
	SoftDelete(ctx context.Context, shopID, externalID string) (*domain.Product, error)
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetSnapshots(ctx context.Context, ids []int64) ([]ProductSnapshot, error)
}

type SyncTaskRepository interface {
	Enqueue(ctx context.Context, productID int64, reason domain.SyncTaskReason) (*domain.SyncTask, error)
	ClaimDue(ctx context.Context, limit int) ([]*domain.SyncTask, error)
	MarkDone(ctx context.Context, id int64) error
	Requeue(ctx context.Context, id int64, attemptCount int, nextRetryAt time.Time, lastError string) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
	ReleaseStale(ctx context.Context, claimTimeout time.Duration) (int64, error)
}

type EmbeddingRepository interface {
	Upsert(ctx context.Context, embedding *domain.Embedding) error
	RemoveByProduct(ctx context.Context, productID int64) error
	Query(ctx context.Context, req *VectorQueryReq) ([]VectorHit, error)
}

type CacheRepository interface {
	GetProducts(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error)
	SetProducts(ctx context.Context, products []ProductSnapshot) error
	DeleteProducts(ctx context.Context, ids []int64) error
}
