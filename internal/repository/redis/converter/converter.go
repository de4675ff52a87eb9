package converter

import "github.com/vistore-tech/catalog-sync/internal/usecase"

// ProductSnapshotConverter преобразует снимки товара между usecase и моделью Redis.
type ProductSnapshotConverter interface {
	ToRedisModel(entity *usecase.ProductSnapshot) *ProductSnapshotRedisModel
	ToUseCase(model *ProductSnapshotRedisModel) *usecase.ProductSnapshot
	ToArrRedisModel(entities []usecase.ProductSnapshot) []ProductSnapshotRedisModel
}

type ProductSnapshotConverterImpl struct{}

func NewProductSnapshotConverterImpl() *ProductSnapshotConverterImpl {
	return &ProductSnapshotConverterImpl{}
}

func (ProductSnapshotConverterImpl) ToRedisModel(entity *usecase.ProductSnapshot) *ProductSnapshotRedisModel {
	if entity == nil {
		return nil
	}
	return &ProductSnapshotRedisModel{
		ID:         entity.ID,
		ShopID:     entity.ShopID,
		ExternalID: entity.ExternalID,
		Title:      entity.Title,
		Price:      entity.Price,
		Available:  entity.Available,
		ImageKey:   entity.ImageKey,
		IsDeleted:  entity.IsDeleted,
	}
}

func (ProductSnapshotConverterImpl) ToUseCase(model *ProductSnapshotRedisModel) *usecase.ProductSnapshot {
	if model == nil {
		return nil
	}
	return &usecase.ProductSnapshot{
		ID:         model.ID,
		ShopID:     model.ShopID,
		ExternalID: model.ExternalID,
		Title:      model.Title,
		Price:      model.Price,
		Available:  model.Available,
		ImageKey:   model.ImageKey,
		IsDeleted:  model.IsDeleted,
	}
}

func (c ProductSnapshotConverterImpl) ToArrRedisModel(entities []usecase.ProductSnapshot) []ProductSnapshotRedisModel {
	result := make([]ProductSnapshotRedisModel, 0, len(entities))
	for i := range entities {
		result = append(result, *c.ToRedisModel(&entities[i]))
	}
	return result
}
