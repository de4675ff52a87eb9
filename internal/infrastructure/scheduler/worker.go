package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/jitter"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

// Worker — пул фоновых обработчиков задач векторизации. Вебхук к этому
// моменту уже ответил вызывающему: ошибки отсюда никогда не доходят до него,
// они ретраятся, а терминальные — уходят в канал отчётности.
type Worker struct {
	taskRepo    usecase.SyncTaskRepository
	productRepo usecase.ProductRepository
	fetcher     usecase.ImageFetcherInfra
	embedder    usecase.EmbedderInfra
	archive     usecase.ImageArchiveInfra
	embRepo     usecase.EmbeddingRepository
	reporter    usecase.SyncReporter
	cfg         *cfg.SchedulerCfg
	logger      logger.Logger
	stop        chan struct{}
	wake        chan struct{}
	wg          sync.WaitGroup
	dbConnStr   string
}

func NewWorker(
	taskRepo usecase.SyncTaskRepository,
	productRepo usecase.ProductRepository,
	fetcher usecase.ImageFetcherInfra,
	embedder usecase.EmbedderInfra,
	archive usecase.ImageArchiveInfra,
	embRepo usecase.EmbeddingRepository,
	reporter usecase.SyncReporter,
	cfg *cfg.SchedulerCfg,
	logger logger.Logger,
	dbConnStr string,
) *Worker {
	return &Worker{
		taskRepo:    taskRepo,
		productRepo: productRepo,
		fetcher:     fetcher,
		embedder:    embedder,
		archive:     archive,
		embRepo:     embRepo,
		reporter:    reporter,
		cfg:         cfg,
		logger:      logger,
		stop:        make(chan struct{}),
		wake:        make(chan struct{}, 1),
		dbConnStr:   dbConnStr,
	}
}

// Start запускает пул воркеров, слушатель уведомлений и возврат потерянных задач.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.runWorker(ctx)
		}()
	}

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.listenTaskNotifications(ctx)
	}()
	go func() {
		defer w.wg.Done()
		w.releaseStaleLoop(ctx)
	}()
}

// Stop останавливает пул и дожидается завершения текущих задач.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
}

// runWorker — цикл одного воркера: выгребает созревшие задачи,
// затем спит до уведомления или тика поллера (поллер нужен для задач,
// у которых подошло время ретрая).
func (w *Worker) runWorker(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		w.drain(ctx)

		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-w.wake:
		case <-ticker.C:
		}
	}
}

// drain обрабатывает очередь, пока в ней есть созревшие задачи.
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		tasks, err := w.taskRepo.ClaimDue(ctx, w.cfg.BatchSize)
		if err != nil {
			w.logger.Warnf("claim batch failed: %v", err)
			return
		}
		if len(tasks) == 0 {
			return
		}

		for _, task := range tasks {
			w.processTask(ctx, task)
		}
	}
}

// processTask выполняет одну задачу: товар → изображение → вектор → индекс.
// Сбой классифицируется и либо ретраится с экспоненциальным backoff,
// либо терминально завершает задачу с отчётом.
func (w *Worker) processTask(ctx context.Context, task *domain.SyncTask) {
	const op = "Worker.processTask"

	product, err := w.productRepo.GetByID(ctx, task.ProductID)
	if err != nil {
		if errors.Is(err, e.ErrProductNotFound) {
			// Товара больше нет — задача неактуальна
			w.finishTask(ctx, task, nil)
			return
		}
		w.failAttempt(ctx, task, nil, e.Wrap(op, err))
		return
	}

	// Товар успели мягко удалить, пока задача ждала очереди
	if product.IsDeleted {
		w.finishTask(ctx, task, nil)
		return
	}

	if err := w.embedProduct(ctx, product); err != nil {
		w.failAttempt(ctx, task, product, e.Wrap(op, err))
		return
	}

	w.finishTask(ctx, task, product)
}

// embedProduct — полный конвейер векторизации одного товара.
func (w *Worker) embedProduct(ctx context.Context, product *domain.Product) error {
	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	img, err := w.fetcher.Fetch(fetchCtx, product.ImageKey)
	cancel()
	if err != nil {
		return err
	}

	vec, err := w.embedder.Vectorize(ctx, &usecase.VectorizeReq{Data: img.Data, MimeType: img.MimeType})
	if err != nil {
		return err
	}

	objKey, err := w.archive.Archive(ctx, &usecase.ArchiveImageReq{
		ShopID:     product.ShopID,
		ExternalID: product.ExternalID,
		ImageHash:  product.ImageHash,
		MimeType:   img.MimeType,
		Data:       img.Data,
	})
	if err != nil {
		return err
	}

	embedding := domain.NewEmbedding(
		domain.PointID(product.ID, domain.EmbeddingTypeImage),
		vec.Vector,
		domain.NewPayload(product.ID, product.ShopID, objKey, product.ImageHash, vec.ModelVersion),
	)

	return w.embRepo.Upsert(ctx, embedding)
}

func (w *Worker) finishTask(ctx context.Context, task *domain.SyncTask, product *domain.Product) {
	if err := w.taskRepo.MarkDone(ctx, task.ID); err != nil {
		w.logger.Warnf("mark done failed: %v", err)
	}

	if product != nil {
		w.report(ctx, task, product, usecase.ReportSyncCompleted, task.AttemptCount+1, "")
	}
}

// failAttempt учитывает сбой попытки. Постоянные ошибки не ретраятся вовсе;
// недоступное изображение имеет меньший потолок ретраев, чем временные сбои.
func (w *Worker) failAttempt(ctx context.Context, task *domain.SyncTask, product *domain.Product, taskErr error) {
	attempt := task.AttemptCount + 1

	ceiling := w.cfg.MaxAttempts
	if errors.Is(taskErr, e.ErrImageUnavailable) {
		ceiling = w.cfg.MaxImageAttempts
	}

	permanent := errors.Is(taskErr, e.ErrEmbeddingRejected) || errors.Is(taskErr, e.ErrVectorSizeMismatch)

	if permanent || attempt >= ceiling {
		w.logger.Warnf("task %d terminally failed after %d attempt(s): %v", task.ID, attempt, taskErr)
		if err := w.taskRepo.MarkFailed(ctx, task.ID, taskErr.Error()); err != nil {
			w.logger.Warnf("mark failed failed: %v", err)
		}
		if product != nil {
			w.report(ctx, task, product, usecase.ReportSyncFailed, attempt, taskErr.Error())
		}
		return
	}

	delay := jitter.ExponentialBackoff(w.cfg.BaseBackoff, w.cfg.MaxBackoff, attempt-1, jitter.DefaultJitter)
	w.logger.Debugf("task %d attempt %d failed, retrying in %v: %v", task.ID, attempt, delay, taskErr)

	if err := w.taskRepo.Requeue(ctx, task.ID, attempt, time.Now().Add(delay), taskErr.Error()); err != nil {
		w.logger.Warnf("requeue failed: %v", err)
	}
}

func (w *Worker) report(ctx context.Context, task *domain.SyncTask, product *domain.Product, kind string, attempts int, errText string) {
	report := &usecase.SyncReport{
		EventID:   uuid.NewString(),
		Kind:      kind,
		ProductID: product.ID,
		ShopID:    product.ShopID,
		Reason:    string(task.Reason),
		Attempts:  attempts,
		Error:     errText,
		At:        time.Now().UTC(),
	}

	if err := w.reporter.Report(ctx, report); err != nil {
		w.logger.Warnf("sync report failed: %v", err)
	}
}

// releaseStaleLoop периодически возвращает в очередь processing-задачи,
// воркер которых умер вместе с процессом.
func (w *Worker) releaseStaleLoop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.ClaimTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			released, err := w.taskRepo.ReleaseStale(ctx, w.cfg.ClaimTimeout)
			if err != nil {
				w.logger.Warnf("release stale tasks failed: %v", err)
				continue
			}
			if released > 0 {
				w.logger.Infof("released %d stale task(s) back to queue", released)
				w.notify()
			}
		}
	}
}

// listenTaskNotifications держит выделенное соединение под LISTEN и будит
// воркеров при появлении новых задач, не дожидаясь тикера.
func (w *Worker) listenTaskNotifications(ctx context.Context) {
	var conn *pgx.Conn
	var err error

	connect := func() error {
		conn, err = pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err = conn.Exec(ctx, "LISTEN sync_task_pending"); err != nil {
			conn.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		w.logger.Infof("Subscribed to 'sync_task_pending' channel")
		return nil
	}

	if err := connect(); err != nil {
		w.logger.Warnf("Initial connect failed: %v", err)
		return
	}
	defer conn.Close(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
			ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
			notif, err := conn.WaitForNotification(ctxWithTimeout)
			cancel()

			if err != nil {
				if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
					continue
				}
				w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
				conn.Close(ctx)

				if err := jitter.Sleep(ctx, jitter.Duration(2*time.Second, jitter.DefaultJitter)); err != nil {
					return
				}
				if err := connect(); err != nil {
					w.logger.Warnf("Reconnect failed: %v", err)
					if err := jitter.Sleep(ctx, jitter.Duration(5*time.Second, jitter.DefaultJitter)); err != nil {
						return
					}
				}
				continue
			}

			if notif != nil && notif.Channel == "sync_task_pending" {
				w.notify()
			}
		}
	}
}

// notify будит один спящий воркер; если все заняты, сигнал не копится.
func (w *Worker) notify() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}
