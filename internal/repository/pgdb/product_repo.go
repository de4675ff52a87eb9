package pgdb

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/internal/repository/pgdb/converter"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/tr"
)

// ProductRepo реализует репозиторий товаров поверх PostgreSQL.
type ProductRepo struct {
	pool *pgxpool.Pool
	conv converter.ProductConverter
}

func NewProductRepo(pool *pgxpool.Pool, conv converter.ProductConverter) *ProductRepo {
	return &ProductRepo{
		pool: pool,
		conv: conv,
	}
}

// Upsert идемпотентно создаёт или обновляет товар по (shop_id, external_id).
// Снимок старого хэша изображения берётся до апсерта, поэтому возвращаемый
// флаг image_changed отражает именно переход старого хэша в новый.
// Конфликт по уникальному ключу сериализует конкурирующие события одного товара.
func (p *ProductRepo) Upsert(ctx context.Context, product *domain.Product) (*usecase.UpsertProductRes, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// VALUES ($1..$7) shop_id, external_id, title, price, available, image_key, image_hash
	query := `
		WITH existing AS (
			SELECT id, image_hash
			FROM products
			WHERE shop_id = $1 AND external_id = $2
		), upsert AS (
			INSERT INTO products (shop_id, external_id, title, price, available, image_key, image_hash, last_synced_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			ON CONFLICT (shop_id, external_id)
			DO UPDATE SET
				title = EXCLUDED.title,
				price = EXCLUDED.price,
				available = EXCLUDED.available,
				image_key = EXCLUDED.image_key,
				image_hash = EXCLUDED.image_hash,
				is_deleted = FALSE,
				last_synced_at = NOW(),
				updated_at = NOW()
			RETURNING
				id, shop_id, external_id, title, price, available, image_key, image_hash,
				is_deleted, last_synced_at, created_at, updated_at
		)
		SELECT
			u.id, u.shop_id, u.external_id, u.title, u.price, u.available, u.image_key, u.image_hash,
			u.is_deleted, u.last_synced_at, u.created_at, u.updated_at,
			(ex.id IS NULL) AS inserted,
			(ex.image_hash IS DISTINCT FROM u.image_hash) AS image_changed
		FROM upsert u
		LEFT JOIN existing ex ON ex.id = u.id;
	`

	var model converter.ProductModel
	var inserted, imageChanged bool
	err = tx.QueryRow(ctx, query,
		product.ShopID, product.ExternalID, product.Title, product.Price,
		product.Available, product.ImageKey, product.ImageHash,
	).Scan(
		&model.ID, &model.ShopID, &model.ExternalID, &model.Title, &model.Price,
		&model.Available, &model.ImageKey, &model.ImageHash,
		&model.IsDeleted, &model.LastSyncedAt, &model.CreatedAt, &model.UpdatedAt,
		&inserted, &imageChanged,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return usecase.NewUpsertProductRes(p.conv.ToEntity(&model), inserted, imageChanged), nil
}

// SoftDelete помечает товар удалённым, не трогая саму запись.
// Возвращает e.ErrProductNotFound, если товара нет.
func (p *ProductRepo) SoftDelete(ctx context.Context, shopID, externalID string) (*domain.Product, error) {
	query := `
		UPDATE products
		SET is_deleted = TRUE, last_synced_at = NOW(), updated_at = NOW()
		WHERE shop_id = $1 AND external_id = $2
		RETURNING
			id, shop_id, external_id, title, price, available, image_key, image_hash,
			is_deleted, last_synced_at, created_at, updated_at;
	`

	var model converter.ProductModel
	err := p.pool.QueryRow(ctx, query, shopID, externalID).Scan(
		&model.ID, &model.ShopID, &model.ExternalID, &model.Title, &model.Price,
		&model.Available, &model.ImageKey, &model.ImageHash,
		&model.IsDeleted, &model.LastSyncedAt, &model.CreatedAt, &model.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrProductNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.conv.ToEntity(&model), nil
}

// GetByID возвращает товар по внутреннему идентификатору.
func (p *ProductRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `
		SELECT
			id, shop_id, external_id, title, price, available, image_key, image_hash,
			is_deleted, last_synced_at, created_at, updated_at
		FROM products
		WHERE id = $1
	`

	var model converter.ProductModel
	err := p.pool.QueryRow(ctx, query, id).Scan(
		&model.ID, &model.ShopID, &model.ExternalID, &model.Title, &model.Price,
		&model.Available, &model.ImageKey, &model.ImageHash,
		&model.IsDeleted, &model.LastSyncedAt, &model.CreatedAt, &model.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrProductNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return p.conv.ToEntity(&model), nil
}

// GetSnapshots возвращает снимки товаров по их идентификаторам,
// включая удалённые — фильтрация по is_deleted остаётся за вызывающим.
func (p *ProductRepo) GetSnapshots(ctx context.Context, ids []int64) ([]usecase.ProductSnapshot, error) {
	query := `
		SELECT id, shop_id, external_id, title, price, available, image_key, is_deleted
		FROM products
		WHERE id = ANY($1)
	`

	rows, err := p.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.ProductSnapshot, 0)
	for rows.Next() {
		var snapshot usecase.ProductSnapshot
		if err := rows.Scan(
			&snapshot.ID, &snapshot.ShopID, &snapshot.ExternalID, &snapshot.Title,
			&snapshot.Price, &snapshot.Available, &snapshot.ImageKey, &snapshot.IsDeleted,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}

		result = append(result, snapshot)
	}

	return result, rows.Err()
}
