package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID(t *testing.T) {
	id := PointID(7, EmbeddingTypeImage)

	_, err := uuid.Parse(id)
	require.NoError(t, err)

	// Тот же товар и тип — та же точка: повторная векторизация заменяет вектор
	assert.Equal(t, id, PointID(7, EmbeddingTypeImage))

	assert.NotEqual(t, id, PointID(8, EmbeddingTypeImage))
	assert.NotEqual(t, id, PointID(7, "text"))
}

func TestNewPayload(t *testing.T) {
	payload := NewPayload(7, "shop-1", "shop-1/sku-42/abc.jpg", "abc123", "clip-v2")

	assert.EqualValues(t, 7, payload["product_id"])
	assert.Equal(t, "shop-1", payload["shop_id"])
	assert.Equal(t, EmbeddingTypeImage, payload["embedding_type"])
	assert.Equal(t, "abc123", payload["image_hash"])
	assert.NotZero(t, payload["indexed_at"])
}
