package usecase

import (
	"time"

	"github.com/vistore-tech/catalog-sync/internal/domain"
)

// Типы событий вебхука внешней CMS.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// SYNC USECASE

// ApplyEventReq — нормализованное событие изменения каталога.
// Цена к этому моменту уже переведена шлюзом в минорные единицы.
type ApplyEventReq struct {
	EventType string
	Product   ProductPayload
}

// ProductPayload — каноническая форма товара из события.
type ProductPayload struct {
	ShopID     string
	ExternalID string
	Title      string
	Price      int64
	Available  bool
	ImageKey   string
	ImageHash  string
}

// ApplyEventRes — результат применения события.
type ApplyEventRes struct {
	Accepted   bool
	TaskQueued bool
	ProductID  int64
}

// SEARCH USECASE

// FindSimilarReq — запрос поиска визуально похожих товаров.
type FindSimilarReq struct {
	ImageRef      string
	ShopID        string
	Limit         int
	MinSimilarity float64
}

// FindSimilarRes — ранжированный результат поиска.
type FindSimilarRes struct {
	Results    []SimilarProduct
	DurationMs int64
}

// SimilarProduct — один результат с живым снимком товара.
type SimilarProduct struct {
	Product    ProductSnapshot
	Similarity float64
	Band       string
}

// ProductSnapshot — DTO с данными товара для внешнего использования.
type ProductSnapshot struct {
	ID         int64
	ShopID     string
	ExternalID string
	Title      string
	Price      int64
	Available  bool
	ImageKey   string
	IsDeleted  bool
}

// INFRASTRUCTURE

// VectorizeReq — запрос на векторизацию одного изображения.
type VectorizeReq struct {
	Data     []byte
	MimeType string
}

// VectorizeRes — результат векторизации.
type VectorizeRes struct {
	Vector       []float32
	ModelVersion string
}

// FetchImageRes — скачанное изображение.
type FetchImageRes struct {
	Data     []byte
	MimeType string
}

// ArchiveImageReq — запрос на сохранение зеркальной копии изображения.
type ArchiveImageReq struct {
	ShopID     string
	ExternalID string
	ImageHash  string
	MimeType   string
	Data       []byte
}

// SyncReport — событие исхода фоновой синхронизации для шины отчётности.
type SyncReport struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"` // sync_completed | sync_failed
	ProductID int64     `json:"product_id"`
	ShopID    string    `json:"shop_id"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

const (
	ReportSyncCompleted = "sync_completed"
	ReportSyncFailed    = "sync_failed"
)

// REPOSITORIES

// UpsertProductRes — результат идемпотентного апсерта товара.
type UpsertProductRes struct {
	Product      *domain.Product
	Inserted     bool
	ImageChanged bool
}

// VectorQueryReq — запрос ближайших соседей к векторному индексу.
type VectorQueryReq struct {
	Vector   []float32
	ShopID   string
	Limit    uint64
	MinScore float32 // включительный нижний порог похожести
}

// VectorHit — один результат из индекса до джойна с каталогом.
type VectorHit struct {
	ProductID  int64
	Score      float32
	IndexedAt  int64 // unix nanos, ключ разрешения ничьих
	ImageKey   string
}

// MAPPERS

func NewUpsertProductRes(product *domain.Product, inserted, imageChanged bool) *UpsertProductRes {
	return &UpsertProductRes{
		Product:      product,
		Inserted:     inserted,
		ImageChanged: imageChanged,
	}
}

func NewApplyEventRes(accepted, taskQueued bool, productID int64) *ApplyEventRes {
	return &ApplyEventRes{
		Accepted:   accepted,
		TaskQueued: taskQueued,
		ProductID:  productID,
	}
}

func NewVectorizeRes(vector []float32, modelVersion string) *VectorizeRes {
	return &VectorizeRes{
		Vector:       vector,
		ModelVersion: modelVersion,
	}
}

func NewFindSimilarRes(results []SimilarProduct, durationMs int64) *FindSimilarRes {
	return &FindSimilarRes{
		Results:    results,
		DurationMs: durationMs,
	}
}
