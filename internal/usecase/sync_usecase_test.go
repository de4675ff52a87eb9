package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

func newSyncUC(productRepo *fakeProductRepo, taskRepo *fakeTaskRepo, embRepo *fakeEmbRepo, cacheRepo *fakeCacheRepo) *SyncUseCase {
	return NewSyncUC(productRepo, taskRepo, embRepo, cacheRepo, fakeDB{}, logger.NewNopLogger())
}

func validCreateReq() *ApplyEventReq {
	return &ApplyEventReq{
		EventType: EventCreated,
		Product: ProductPayload{
			ShopID:     "shop-1",
			ExternalID: "sku-42",
			Title:      "Кресло офисное",
			Price:      599_99,
			Available:  true,
			ImageKey:   "https://cdn.example.com/img/42.jpg",
			ImageHash:  "abc123",
		},
	}
}

func TestApplyEvent_CreatedQueuesTask(t *testing.T) {
	productRepo := &fakeProductRepo{
		upsertFn: func(_ context.Context, product *domain.Product) (*UpsertProductRes, error) {
			product.ID = 7
			return NewUpsertProductRes(product, true, true), nil
		},
	}
	taskRepo := &fakeTaskRepo{}
	cacheRepo := &fakeCacheRepo{}

	uc := newSyncUC(productRepo, taskRepo, &fakeEmbRepo{}, cacheRepo)

	res, err := uc.ApplyEvent(context.Background(), validCreateReq())
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.True(t, res.TaskQueued)
	assert.EqualValues(t, 7, res.ProductID)

	require.Len(t, taskRepo.enqueued, 1)
	assert.Equal(t, domain.ReasonCreated, taskRepo.enqueued[0])
	assert.Contains(t, cacheRepo.deleted, int64(7))
}

func TestApplyEvent_SameImageReplayDoesNotQueue(t *testing.T) {
	productRepo := &fakeProductRepo{
		upsertFn: func(_ context.Context, product *domain.Product) (*UpsertProductRes, error) {
			product.ID = 7
			return NewUpsertProductRes(product, false, false), nil
		},
	}
	taskRepo := &fakeTaskRepo{}

	uc := newSyncUC(productRepo, taskRepo, &fakeEmbRepo{}, &fakeCacheRepo{})

	res, err := uc.ApplyEvent(context.Background(), validCreateReq())
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.False(t, res.TaskQueued)
	assert.Empty(t, taskRepo.enqueued)
}

func TestApplyEvent_ImageChangeQueuesUpdated(t *testing.T) {
	productRepo := &fakeProductRepo{
		upsertFn: func(_ context.Context, product *domain.Product) (*UpsertProductRes, error) {
			product.ID = 7
			return NewUpsertProductRes(product, false, true), nil
		},
	}
	taskRepo := &fakeTaskRepo{}

	uc := newSyncUC(productRepo, taskRepo, &fakeEmbRepo{}, &fakeCacheRepo{})

	req := validCreateReq()
	req.EventType = EventUpdated

	res, err := uc.ApplyEvent(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.TaskQueued)
	require.Len(t, taskRepo.enqueued, 1)
	assert.Equal(t, domain.ReasonUpdated, taskRepo.enqueued[0])
}

func TestApplyEvent_MissingIdentityRejected(t *testing.T) {
	uc := newSyncUC(&fakeProductRepo{}, &fakeTaskRepo{}, &fakeEmbRepo{}, &fakeCacheRepo{})

	req := validCreateReq()
	req.Product.ExternalID = "  "

	_, err := uc.ApplyEvent(context.Background(), req)
	assert.ErrorIs(t, err, e.ErrInvalidEvent)
}

func TestApplyEvent_MissingImageRejected(t *testing.T) {
	uc := newSyncUC(&fakeProductRepo{}, &fakeTaskRepo{}, &fakeEmbRepo{}, &fakeCacheRepo{})

	req := validCreateReq()
	req.Product.ImageKey = ""

	_, err := uc.ApplyEvent(context.Background(), req)
	assert.ErrorIs(t, err, e.ErrInvalidEvent)
}

func TestApplyEvent_UnknownEventTypeRejected(t *testing.T) {
	uc := newSyncUC(&fakeProductRepo{}, &fakeTaskRepo{}, &fakeEmbRepo{}, &fakeCacheRepo{})

	req := validCreateReq()
	req.EventType = "archived"

	_, err := uc.ApplyEvent(context.Background(), req)
	assert.ErrorIs(t, err, e.ErrInvalidEventType)
}

func TestApplyEvent_DeleteRemovesEmbedding(t *testing.T) {
	productRepo := &fakeProductRepo{
		softDeleteFn: func(_ context.Context, shopID, externalID string) (*domain.Product, error) {
			return &domain.Product{ID: 7, ShopID: shopID, ExternalID: externalID, IsDeleted: true}, nil
		},
	}
	embRepo := &fakeEmbRepo{}
	taskRepo := &fakeTaskRepo{}

	uc := newSyncUC(productRepo, taskRepo, embRepo, &fakeCacheRepo{})

	req := validCreateReq()
	req.EventType = EventDeleted

	res, err := uc.ApplyEvent(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, res.Accepted)
	assert.False(t, res.TaskQueued)
	assert.Equal(t, []int64{7}, embRepo.removed)
	assert.Empty(t, taskRepo.enqueued)
}

func TestApplyEvent_DeleteUnknownProductIsNoop(t *testing.T) {
	productRepo := &fakeProductRepo{
		softDeleteFn: func(_ context.Context, _, _ string) (*domain.Product, error) {
			return nil, e.ErrProductNotFound
		},
	}

	uc := newSyncUC(productRepo, &fakeTaskRepo{}, &fakeEmbRepo{}, &fakeCacheRepo{})

	req := validCreateReq()
	req.EventType = EventDeleted

	res, err := uc.ApplyEvent(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
}

func TestSourceImageHash(t *testing.T) {
	assert.Equal(t, "upstream", sourceImageHash("https://x/img.jpg", "upstream"))

	// Без upstream-хэша смена ссылки должна менять вычисленный хэш
	a := sourceImageHash("https://x/a.jpg", "")
	b := sourceImageHash("https://x/b.jpg", "")
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, sourceImageHash("https://x/a.jpg", ""))
}
