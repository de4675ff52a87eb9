package domain

import "time"

// Product описывает товар каталога, синхронизируемый из внешней CMS.
type Product struct {
	ID           int64  // внутренний первичный ключ
	ShopID       string // область видимости магазина (tenant)
	ExternalID   string // стабильный идентификатор во внешней системе
	Title        string
	Price        int64 // Цена хранится в минорных единицах (копейках)
	Available    bool
	ImageKey     string // ссылка на основное изображение во внешней системе
	ImageHash    string // хэш исходного изображения, по нему определяется необходимость пере-векторизации
	IsDeleted    bool   // мягкое удаление, записи физически не удаляются
	LastSyncedAt time.Time
	CreatedAt    time.Time
	UpdatedAt    *time.Time
}

func NewProduct(shopID, externalID, title string, price int64, available bool, imageKey, imageHash string) *Product {
	return &Product{
		ShopID:     shopID,
		ExternalID: externalID,
		Title:      title,
		Price:      price,
		Available:  available,
		ImageKey:   imageKey,
		ImageHash:  imageHash,
	}
}
