package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/vistore-tech/catalog-sync/internal/domain"
)

// Ручные фейки: поведение задаётся функциональными полями,
// незаданное поле означает no-op.

type fakeProductRepo struct {
	upsertFn       func(ctx context.Context, product *domain.Product) (*UpsertProductRes, error)
	softDeleteFn   func(ctx context.Context, shopID, externalID string) (*domain.Product, error)
	getByIDFn      func(ctx context.Context, id int64) (*domain.Product, error)
	getSnapshotsFn func(ctx context.Context, ids []int64) ([]ProductSnapshot, error)
}

func (f *fakeProductRepo) Upsert(ctx context.Context, product *domain.Product) (*UpsertProductRes, error) {
	return f.upsertFn(ctx, product)
}

func (f *fakeProductRepo) SoftDelete(ctx context.Context, shopID, externalID string) (*domain.Product, error) {
	return f.softDeleteFn(ctx, shopID, externalID)
}

func (f *fakeProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return f.getByIDFn(ctx, id)
}

func (f *fakeProductRepo) GetSnapshots(ctx context.Context, ids []int64) ([]ProductSnapshot, error) {
	if f.getSnapshotsFn == nil {
		return nil, nil
	}
	return f.getSnapshotsFn(ctx, ids)
}

type fakeTaskRepo struct {
	enqueued  []domain.SyncTaskReason
	enqueueFn func(ctx context.Context, productID int64, reason domain.SyncTaskReason) (*domain.SyncTask, error)
}

func (f *fakeTaskRepo) Enqueue(ctx context.Context, productID int64, reason domain.SyncTaskReason) (*domain.SyncTask, error) {
	f.enqueued = append(f.enqueued, reason)
	if f.enqueueFn != nil {
		return f.enqueueFn(ctx, productID, reason)
	}
	return domain.NewSyncTask(productID, reason), nil
}

func (f *fakeTaskRepo) ClaimDue(ctx context.Context, limit int) ([]*domain.SyncTask, error) {
	return nil, nil
}

func (f *fakeTaskRepo) MarkDone(ctx context.Context, id int64) error { return nil }

func (f *fakeTaskRepo) Requeue(ctx context.Context, id int64, attemptCount int, nextRetryAt time.Time, lastError string) error {
	return nil
}

func (f *fakeTaskRepo) MarkFailed(ctx context.Context, id int64, lastError string) error { return nil }

func (f *fakeTaskRepo) ReleaseStale(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	return 0, nil
}

type fakeEmbRepo struct {
	removed  []int64
	removeFn func(ctx context.Context, productID int64) error
	queryFn  func(ctx context.Context, req *VectorQueryReq) ([]VectorHit, error)
}

func (f *fakeEmbRepo) Upsert(ctx context.Context, embedding *domain.Embedding) error { return nil }

func (f *fakeEmbRepo) RemoveByProduct(ctx context.Context, productID int64) error {
	f.removed = append(f.removed, productID)
	if f.removeFn != nil {
		return f.removeFn(ctx, productID)
	}
	return nil
}

func (f *fakeEmbRepo) Query(ctx context.Context, req *VectorQueryReq) ([]VectorHit, error) {
	return f.queryFn(ctx, req)
}

type fakeCacheRepo struct {
	deleted []int64
	getFn   func(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error)
	setFn   func(ctx context.Context, products []ProductSnapshot) error
}

func (f *fakeCacheRepo) GetProducts(ctx context.Context, ids []int64) (map[int64]ProductSnapshot, error) {
	if f.getFn == nil {
		return map[int64]ProductSnapshot{}, nil
	}
	return f.getFn(ctx, ids)
}

func (f *fakeCacheRepo) SetProducts(ctx context.Context, products []ProductSnapshot) error {
	if f.setFn != nil {
		return f.setFn(ctx, products)
	}
	return nil
}

func (f *fakeCacheRepo) DeleteProducts(ctx context.Context, ids []int64) error {
	f.deleted = append(f.deleted, ids...)
	return nil
}

type fakeFetcher struct {
	fetchFn func(ctx context.Context, ref string) (*FetchImageRes, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref string) (*FetchImageRes, error) {
	return f.fetchFn(ctx, ref)
}

type fakeEmbedder struct {
	vectorizeFn func(ctx context.Context, req *VectorizeReq) (*VectorizeRes, error)
}

func (f *fakeEmbedder) Vectorize(ctx context.Context, req *VectorizeReq) (*VectorizeRes, error) {
	return f.vectorizeFn(ctx, req)
}

// fakeDB подменяет пул соединений в транзакционном менеджере.

type fakeDB struct{}

func (fakeDB) BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error) {
	return &fakeTx{}, nil
}

type fakeTx struct{}

func (t *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *fakeTx) Commit(ctx context.Context) error          { return nil }
func (t *fakeTx) Rollback(ctx context.Context) error        { return nil }

func (t *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}

func (t *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *fakeTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (t *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}

func (t *fakeTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (t *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}

func (t *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *fakeTx) Conn() *pgx.Conn                                               { return nil }
