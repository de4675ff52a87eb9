package converter

import "github.com/vistore-tech/catalog-sync/internal/domain"

// ProductConverter преобразует сущности Product между domain и моделью PostgreSQL.
type ProductConverter interface {
	ToModel(entity *domain.Product) *ProductModel
	ToEntity(model *ProductModel) *domain.Product
}

// SyncTaskConverter преобразует сущности SyncTask между domain и моделью PostgreSQL.
type SyncTaskConverter interface {
	ToModel(entity *domain.SyncTask) *SyncTaskModel
	ToEntity(model *SyncTaskModel) *domain.SyncTask
	ToArrEntity(models []*SyncTaskModel) []*domain.SyncTask
}

type ProductConverterImpl struct{}

func NewProductConverterImpl() *ProductConverterImpl { return &ProductConverterImpl{} }

func (ProductConverterImpl) ToModel(entity *domain.Product) *ProductModel {
	if entity == nil {
		return nil
	}
	return &ProductModel{
		ID:           entity.ID,
		ShopID:       entity.ShopID,
		ExternalID:   entity.ExternalID,
		Title:        entity.Title,
		Price:        entity.Price,
		Available:    entity.Available,
		ImageKey:     entity.ImageKey,
		ImageHash:    entity.ImageHash,
		IsDeleted:    entity.IsDeleted,
		LastSyncedAt: entity.LastSyncedAt,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
	}
}

func (ProductConverterImpl) ToEntity(model *ProductModel) *domain.Product {
	if model == nil {
		return nil
	}
	return &domain.Product{
		ID:           model.ID,
		ShopID:       model.ShopID,
		ExternalID:   model.ExternalID,
		Title:        model.Title,
		Price:        model.Price,
		Available:    model.Available,
		ImageKey:     model.ImageKey,
		ImageHash:    model.ImageHash,
		IsDeleted:    model.IsDeleted,
		LastSyncedAt: model.LastSyncedAt,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

type SyncTaskConverterImpl struct{}

func NewSyncTaskConverterImpl() *SyncTaskConverterImpl { return &SyncTaskConverterImpl{} }

func (SyncTaskConverterImpl) ToModel(entity *domain.SyncTask) *SyncTaskModel {
	if entity == nil {
		return nil
	}
	return &SyncTaskModel{
		ID:           entity.ID,
		ProductID:    entity.ProductID,
		Reason:       string(entity.Reason),
		Status:       string(entity.Status),
		AttemptCount: entity.AttemptCount,
		NextRetryAt:  entity.NextRetryAt,
		LastError:    entity.LastError,
		CreatedAt:    entity.CreatedAt,
		UpdatedAt:    entity.UpdatedAt,
	}
}

func (SyncTaskConverterImpl) ToEntity(model *SyncTaskModel) *domain.SyncTask {
	if model == nil {
		return nil
	}
	return &domain.SyncTask{
		ID:           model.ID,
		ProductID:    model.ProductID,
		Reason:       domain.SyncTaskReason(model.Reason),
		Status:       domain.SyncTaskStatus(model.Status),
		AttemptCount: model.AttemptCount,
		NextRetryAt:  model.NextRetryAt,
		LastError:    model.LastError,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func (c SyncTaskConverterImpl) ToArrEntity(models []*SyncTaskModel) []*domain.SyncTask {
	result := make([]*domain.SyncTask, 0, len(models))
	for _, model := range models {
		result = append(result, c.ToEntity(model))
	}
	return result
}
