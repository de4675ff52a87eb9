package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EmbeddingTypeImage — единственный на сегодня тип векторов; текстовые
// эмбеддинги при появлении получат собственный тег.
const EmbeddingTypeImage = "image"

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding представляет эмбеддинг одного изображения товара
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

// NewPayload собирает payload вектора. indexed_at участвует в ранжировании
// при равенстве score, поэтому хранится в наносекундах.
func NewPayload(productID int64, shopID, imageKey, imageHash, modelVersion string) Payload {
	return Payload{
		"product_id":     productID,
		"shop_id":        shopID,
		"embedding_type": EmbeddingTypeImage,
		"image_key":      imageKey,
		"image_hash":     imageHash,
		"model_version":  modelVersion,
		"indexed_at":     time.Now().UTC().UnixNano(),
	}
}

// PointID возвращает детерминированный идентификатор точки индекса для пары
// (product_id, embedding_type) — uuid v5. Гарантирует не более одного вектора
// на товар и тип: повторный upsert заменяет точку.
func PointID(productID int64, embeddingType string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, fmt.Appendf(nil, "%d:%s", productID, embeddingType)).String()
}
