package converter

// ProductSnapshotRedisModel — сериализуемый снимок товара в кэше.
type ProductSnapshotRedisModel struct {
	ID         int64  `json:"id"`
	ShopID     string `json:"shop_id"`
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Price      int64  `json:"price"`
	Available  bool   `json:"available"`
	ImageKey   string `json:"image_key"`
	IsDeleted  bool   `json:"is_deleted"`
}
