package imagestore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/internal/infrastructure"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

// ImageRepository — нижележащее S3-хранилище.
type ImageRepository interface {
	Upload(ctx context.Context, image *domain.Image) (string, error)
	Delete(ctx context.Context, key string) error
}

// ImageArchive сохраняет зеркальные копии изображений товаров в MinIO:
// payload вектора ссылается на нашу копию, а не на CDN внешней системы,
// время жизни которого мы не контролируем.
type ImageArchive struct {
	repo   ImageRepository
	cfg    *cfg.MinIOCfg
	logger logger.Logger
}

func NewImageArchive(repo ImageRepository, cfg *cfg.MinIOCfg, logger logger.Logger) *ImageArchive {
	return &ImageArchive{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
	}
}

// Archive кладёт копию изображения и возвращает ключ объекта.
// Ключ детерминирован по (shop, external_id, hash): повторная обработка
// той же картинки перезаписывает тот же объект.
func (a *ImageArchive) Archive(ctx context.Context, req *usecase.ArchiveImageReq) (string, error) {
	const op = "ImageArchive.Archive"

	ext := infrastructure.GetExtensionFromMIME(req.MimeType)
	objKey := fmt.Sprintf("%s/%s/%s.%s", req.ShopID, req.ExternalID, req.ImageHash, ext)

	size := int64(len(req.Data))
	image := domain.NewImage(uuid.NewString(), a.cfg.BucketName, objKey, req.Data, &size, &req.MimeType)

	key, err := a.repo.Upload(ctx, image)
	if err != nil {
		return "", e.Wrap(op, err)
	}

	return key, nil
}
