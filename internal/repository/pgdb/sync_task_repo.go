package pgdb

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/internal/repository/pgdb/converter"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/tr"
)

// SyncTaskRepo реализует надёжную очередь задач векторизации поверх PostgreSQL.
type SyncTaskRepo struct {
	pool *pgxpool.Pool
	conv converter.SyncTaskConverter
}

func NewSyncTaskRepo(pool *pgxpool.Pool, conv converter.SyncTaskConverter) *SyncTaskRepo {
	return &SyncTaskRepo{
		pool: pool,
		conv: conv,
	}
}

// Enqueue ставит задачу на (пере)векторизацию товара в транзакции вызывающего.
// Активная задача по тому же товару вытесняется: счётчик попыток и причина
// сбрасываются, повторной записи не появляется (коалесцирование по product_id).
func (s *SyncTaskRepo) Enqueue(ctx context.Context, productID int64, reason domain.SyncTaskReason) (*domain.SyncTask, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		INSERT INTO sync_tasks (product_id, reason, status, attempt_count, next_retry_at)
		VALUES ($1, $2, 'pending', 0, NOW())
		ON CONFLICT (product_id) WHERE status IN ('pending', 'processing')
		DO UPDATE SET
			reason = EXCLUDED.reason,
			status = 'pending',
			attempt_count = 0,
			next_retry_at = NOW(),
			last_error = NULL,
			updated_at = NOW()
		RETURNING id, product_id, reason, status, attempt_count, next_retry_at, last_error, created_at, updated_at;
	`

	var model converter.SyncTaskModel
	err = tx.QueryRow(ctx, query, productID, string(reason)).Scan(
		&model.ID, &model.ProductID, &model.Reason, &model.Status,
		&model.AttemptCount, &model.NextRetryAt, &model.LastError,
		&model.CreatedAt, &model.UpdatedAt,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	// Будим воркеров, не дожидаясь тикера
	if _, err = tx.Exec(ctx, "NOTIFY sync_task_pending;"); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return s.conv.ToEntity(&model), nil
}

// ClaimDue атомарно захватывает пачку созревших задач (next_retry_at <= now).
// FOR UPDATE SKIP LOCKED позволяет нескольким воркерам разбирать очередь
// без взаимных блокировок и двойной обработки.
func (s *SyncTaskRepo) ClaimDue(ctx context.Context, limit int) ([]*domain.SyncTask, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", whereami.WhereAmI(), err)
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	query := `
		UPDATE sync_tasks
		SET status = 'processing', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM sync_tasks
			WHERE status = 'pending' AND next_retry_at <= NOW()
			ORDER BY next_retry_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, product_id, reason, status, attempt_count, next_retry_at, last_error, created_at, updated_at
	`

	rows, err := tx.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to claim due tasks: %w", whereami.WhereAmI(), err)
	}
	defer rows.Close()

	var models []*converter.SyncTaskModel
	for rows.Next() {
		var model converter.SyncTaskModel
		err := rows.Scan(
			&model.ID, &model.ProductID, &model.Reason, &model.Status,
			&model.AttemptCount, &model.NextRetryAt, &model.LastError,
			&model.CreatedAt, &model.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan task: %w", whereami.WhereAmI(), err)
		}

		models = append(models, &model)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows iterator error: %w", whereami.WhereAmI(), err)
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", whereami.WhereAmI(), err)
	}

	return s.conv.ToArrEntity(models), nil
}

// MarkDone завершает задачу. Если задача уже не processing (например,
// вытеснена новой постановкой), апдейт молча не срабатывает.
func (s *SyncTaskRepo) MarkDone(ctx context.Context, id int64) error {
	query := `
		UPDATE sync_tasks
		SET status = 'done', last_error = NULL, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("%s: failed to mark task %d as done: %w", whereami.WhereAmI(), id, err)
	}

	return nil
}

// Requeue возвращает задачу в очередь с новым временем повтора после сбоя.
func (s *SyncTaskRepo) Requeue(ctx context.Context, id int64, attemptCount int, nextRetryAt time.Time, lastError string) error {
	query := `
		UPDATE sync_tasks
		SET status = 'pending', attempt_count = $2, next_retry_at = $3, last_error = $4, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	if _, err := s.pool.Exec(ctx, query, id, attemptCount, nextRetryAt, lastError); err != nil {
		return fmt.Errorf("%s: failed to requeue task %d: %w", whereami.WhereAmI(), id, err)
	}

	return nil
}

// MarkFailed терминально завершает задачу после исчерпания бюджета ретраев.
func (s *SyncTaskRepo) MarkFailed(ctx context.Context, id int64, lastError string) error {
	query := `
		UPDATE sync_tasks
		SET status = 'failed', last_error = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`

	if _, err := s.pool.Exec(ctx, query, id, lastError); err != nil {
		return fmt.Errorf("%s: failed to mark task %d as failed: %w", whereami.WhereAmI(), id, err)
	}

	return nil
}

// ReleaseStale возвращает в очередь processing-задачи, захваченные дольше
// claimTimeout назад: их воркер, скорее всего, умер вместе с процессом.
func (s *SyncTaskRepo) ReleaseStale(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	cutoff := time.Now().Add(-claimTimeout)

	query := `
		UPDATE sync_tasks
		SET status = 'pending', next_retry_at = NOW(), updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1
	`

	result, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to release stale tasks: %w", whereami.WhereAmI(), err)
	}

	return result.RowsAffected(), nil
}
