package converter

import "time"

// ProductModel представляет запись таблицы products в PostgreSQL.
type ProductModel struct {
	ID           int64      `db:"id"`
	ShopID       string     `db:"shop_id"`
	ExternalID   string     `db:"external_id"`
	Title        string     `db:"title"`
	Price        int64      `db:"price"`
	Available    bool       `db:"available"`
	ImageKey     string     `db:"image_key"`
	ImageHash    string     `db:"image_hash"`
	IsDeleted    bool       `db:"is_deleted"`
	LastSyncedAt time.Time  `db:"last_synced_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
}

// SyncTaskModel представляет запись таблицы sync_tasks в PostgreSQL.
type SyncTaskModel struct {
	ID           int64      `db:"id"`
	ProductID    int64      `db:"product_id"`
	Reason       string     `db:"reason"`
	Status       string     `db:"status"`
	AttemptCount int        `db:"attempt_count"`
	NextRetryAt  time.Time  `db:"next_retry_at"`
	LastError    *string    `db:"last_error"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    *time.Time `db:"updated_at"`
}
