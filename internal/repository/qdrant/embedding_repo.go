package qdrant

import (
	"context"

	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
	"github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
)

// EmbeddingRepo — адаптер векторного индекса поверх Qdrant.
// Коллекция создаётся с косинусной метрикой, поэтому score точки
// и есть косинусная похожесть.
type EmbeddingRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewEmbeddingRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *EmbeddingRepo {
	return &EmbeddingRepo{
		client: client,
		cfg:    cfg,
	}
}

// Upsert сохраняет или заменяет вектор товара. Идентификатор точки
// детерминирован по (product_id, embedding_type), так что повторная
// векторизация заменяет точку, а не плодит дубликаты.
func (q *EmbeddingRepo) Upsert(ctx context.Context, embedding *domain.Embedding) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.QueryTimeout)
	defer cancel()

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(embedding.ID),
				Vectors: qdrant.NewVectors(embedding.Vector...),
				Payload: qdrant.NewValueMap(embedding.Payload),
			},
		},
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrIndexWrite))
	}

	return nil
}

// RemoveByProduct удаляет все точки товара из индекса.
func (q *EmbeddingRepo) RemoveByProduct(ctx context.Context, productID int64) error {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.QueryTimeout)
	defer cancel()

	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchInt("product_id", productID),
			},
		}),
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), e.Wrap(err.Error(), e.ErrIndexWrite))
	}

	return nil
}

// Query возвращает ближайших соседей в пределах магазина.
// Порог score включительный; выдача других магазинов отсечена фильтром.
func (q *EmbeddingRepo) Query(ctx context.Context, req *usecase.VectorQueryReq) ([]usecase.VectorHit, error) {
	ctx, cancel := context.WithTimeout(ctx, q.cfg.QueryTimeout)
	defer cancel()

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(req.Vector...),
		Limit:          qdrant.PtrOf(req.Limit),
		ScoreThreshold: qdrant.PtrOf(req.MinScore),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("shop_id", req.ShopID),
				qdrant.NewMatch("embedding_type", domain.EmbeddingTypeImage),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	hits := make([]usecase.VectorHit, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		hits = append(hits, usecase.VectorHit{
			ProductID: payload["product_id"].GetIntegerValue(),
			Score:     point.GetScore(),
			IndexedAt: payload["indexed_at"].GetIntegerValue(),
			ImageKey:  payload["image_key"].GetStringValue(),
		})
	}

	return hits, nil
}
