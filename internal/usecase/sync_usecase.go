package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	transaction "github.com/avito-tech/go-transaction-manager/drivers/pgxv5/v2"
	"github.com/jackc/pgx/v5"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

// SyncUseCase реализует синхронизатор каталога: идемпотентно применяет
// события create/update/delete и решает, нужна ли пере-векторизация.
type SyncUseCase struct {
	productRepo ProductRepository
	taskRepo    SyncTaskRepository
	embRepo     EmbeddingRepository
	cacheRepo   CacheRepository
	dbPool      transaction.Transactional
	logger      logger.Logger
}

func NewSyncUC(
	productRepo ProductRepository,
	taskRepo SyncTaskRepository,
	embRepo EmbeddingRepository,
	cacheRepo CacheRepository,
	dbPool transaction.Transactional,
	logger logger.Logger,
) *SyncUseCase {
	return &SyncUseCase{
		productRepo: productRepo,
		taskRepo:    taskRepo,
		embRepo:     embRepo,
		cacheRepo:   cacheRepo,
		dbPool:      dbPool,
		logger:      logger,
	}
}

// ApplyEvent применяет одно нормализованное событие каталога.
// Возвращается до начала какой-либо векторизации: медленная работа
// уходит в очередь задач.
func (s *SyncUseCase) ApplyEvent(ctx context.Context, req *ApplyEventReq) (*ApplyEventRes, error) {
	const op = "SyncUseCase.ApplyEvent"

	if err := validateEvent(req); err != nil {
		return nil, e.Wrap(op, err)
	}

	switch req.EventType {
	case EventCreated, EventUpdated:
		return s.upsert(ctx, req)
	case EventDeleted:
		return s.softDelete(ctx, req)
	default:
		return nil, e.Wrap(op, e.ErrInvalidEventType)
	}
}

// upsert идемпотентно создаёт или обновляет товар; задача на векторизацию
// ставится в той же транзакции и только когда товар новый или изменилось
// изображение. Повтор события с тем же хэшем задачу не порождает.
func (s *SyncUseCase) upsert(ctx context.Context, req *ApplyEventReq) (*ApplyEventRes, error) {
	const op = "SyncUseCase.upsert"

	product := domain.NewProduct(
		req.Product.ShopID,
		req.Product.ExternalID,
		req.Product.Title,
		req.Product.Price,
		req.Product.Available,
		req.Product.ImageKey,
		sourceImageHash(req.Product.ImageKey, req.Product.ImageHash),
	)

	ctx, tx, err := transaction.NewTransaction(ctx, pgx.TxOptions{}, s.dbPool)
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	defer func() {
		if err != nil && tx.IsActive() {
			tx.Rollback(ctx)
		}
	}()
	ctx = context.WithValue(ctx, "tx", tx.Transaction())

	res, err := s.productRepo.Upsert(ctx, product)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	taskQueued := false
	if res.Inserted || res.ImageChanged {
		reason := domain.ReasonUpdated
		if res.Inserted {
			reason = domain.ReasonCreated
		}

		if _, err = s.taskRepo.Enqueue(ctx, res.Product.ID, reason); err != nil {
			return nil, e.Wrap(op, err)
		}
		taskQueued = true
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	// Снимок в кэше устарел независимо от того, менялась ли картинка
	if err := s.cacheRepo.DeleteProducts(ctx, []int64{res.Product.ID}); err != nil {
		s.logger.Warnf("Failed to invalidate product cache: %v", e.Wrap(op, err))
	}

	return NewApplyEventRes(true, taskQueued, res.Product.ID), nil
}

// softDelete помечает товар удалённым и убирает его вектор из индекса.
// Повторное удаление — no-op. Задачи не ставятся.
func (s *SyncUseCase) softDelete(ctx context.Context, req *ApplyEventReq) (*ApplyEventRes, error) {
	const op = "SyncUseCase.softDelete"

	product, err := s.productRepo.SoftDelete(ctx, req.Product.ShopID, req.Product.ExternalID)
	if err != nil {
		if errors.Is(err, e.ErrProductNotFound) {
			// Идемпотентность: upstream может переслать delete повторно
			return NewApplyEventRes(true, false, 0), nil
		}
		return nil, e.Wrap(op, err)
	}

	// Удалённый товар в выдачу не попадёт и при живом векторе — джойн
	// в поиске фильтрует по is_deleted, поэтому ошибка здесь не фатальна.
	if err := s.embRepo.RemoveByProduct(ctx, product.ID); err != nil {
		s.logger.Warnf("Failed to remove embedding for product %d: %v", product.ID, e.Wrap(op, err))
	}

	if err := s.cacheRepo.DeleteProducts(ctx, []int64{product.ID}); err != nil {
		s.logger.Warnf("Failed to invalidate product cache: %v", e.Wrap(op, err))
	}

	return NewApplyEventRes(true, false, product.ID), nil
}

// validateEvent проверяет обязательные идентификационные поля события.
// Их отсутствие — проблема качества данных, такие события не ретраятся.
func validateEvent(req *ApplyEventReq) error {
	if strings.TrimSpace(req.Product.ShopID) == "" || strings.TrimSpace(req.Product.ExternalID) == "" {
		return e.Wrap(e.ErrMissingFields.Error(), e.ErrInvalidEvent)
	}

	if req.EventType != EventDeleted {
		if strings.TrimSpace(req.Product.ImageKey) == "" {
			return e.Wrap("image reference is required", e.ErrInvalidEvent)
		}
		if req.Product.Price < 0 {
			return e.Wrap(e.ErrInvalidPrice.Error(), e.ErrInvalidEvent)
		}
	}

	return nil
}

// sourceImageHash возвращает хэш исходного изображения: присланный upstream'ом,
// а при его отсутствии — sha-256 от самой ссылки. Смена ссылки тогда тоже
// считается сменой изображения.
func sourceImageHash(imageKey, upstreamHash string) string {
	if upstreamHash != "" {
		return upstreamHash
	}

	sum := sha256.Sum256([]byte(imageKey))
	return hex.EncodeToString(sum[:])
}
