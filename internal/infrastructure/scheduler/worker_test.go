package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/domain"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

type taskRepoSpy struct {
	usecase.SyncTaskRepository

	done     []int64
	failed   map[int64]string
	requeued []requeueCall
}

type requeueCall struct {
	id          int64
	attempt     int
	nextRetryAt time.Time
	lastError   string
}

func newTaskRepoSpy() *taskRepoSpy {
	return &taskRepoSpy{failed: map[int64]string{}}
}

func (s *taskRepoSpy) MarkDone(_ context.Context, id int64) error {
	s.done = append(s.done, id)
	return nil
}

func (s *taskRepoSpy) Requeue(_ context.Context, id int64, attemptCount int, nextRetryAt time.Time, lastError string) error {
	s.requeued = append(s.requeued, requeueCall{id, attemptCount, nextRetryAt, lastError})
	return nil
}

func (s *taskRepoSpy) MarkFailed(_ context.Context, id int64, lastError string) error {
	s.failed[id] = lastError
	return nil
}

type productRepoStub struct {
	usecase.ProductRepository

	product *domain.Product
	err     error
}

func (s *productRepoStub) GetByID(_ context.Context, _ int64) (*domain.Product, error) {
	return s.product, s.err
}

type fetcherStub struct {
	err error
}

func (s *fetcherStub) Fetch(_ context.Context, _ string) (*usecase.FetchImageRes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.FetchImageRes{Data: []byte{0xFF, 0xD8}, MimeType: "image/jpeg"}, nil
}

type embedderStub struct {
	err error
}

func (s *embedderStub) Vectorize(_ context.Context, _ *usecase.VectorizeReq) (*usecase.VectorizeRes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &usecase.VectorizeRes{Vector: []float32{0.1, 0.2}, ModelVersion: "clip-v2"}, nil
}

type archiveStub struct {
	err error
}

func (s *archiveStub) Archive(_ context.Context, req *usecase.ArchiveImageReq) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return req.ShopID + "/" + req.ExternalID + "/" + req.ImageHash + ".jpg", nil
}

type embRepoSpy struct {
	usecase.EmbeddingRepository

	upserted []*domain.Embedding
	err      error
}

func (s *embRepoSpy) Upsert(_ context.Context, embedding *domain.Embedding) error {
	if s.err != nil {
		return s.err
	}
	s.upserted = append(s.upserted, embedding)
	return nil
}

type reporterSpy struct {
	reports []*usecase.SyncReport
}

func (s *reporterSpy) Report(_ context.Context, report *usecase.SyncReport) error {
	s.reports = append(s.reports, report)
	return nil
}

type workerEnv struct {
	worker   *Worker
	tasks    *taskRepoSpy
	products *productRepoStub
	fetcher  *fetcherStub
	embedder *embedderStub
	archive  *archiveStub
	index    *embRepoSpy
	reporter *reporterSpy
}

func newWorkerEnv() *workerEnv {
	env := &workerEnv{
		tasks: newTaskRepoSpy(),
		products: &productRepoStub{
			product: &domain.Product{
				ID:         7,
				ShopID:     "shop-1",
				ExternalID: "sku-42",
				ImageKey:   "https://cdn.example.com/img/42.jpg",
				ImageHash:  "abc123",
			},
		},
		fetcher:  &fetcherStub{},
		embedder: &embedderStub{},
		archive:  &archiveStub{},
		index:    &embRepoSpy{},
		reporter: &reporterSpy{},
	}

	schedCfg := &cfg.SchedulerCfg{
		Workers:          1,
		BatchSize:        10,
		MaxAttempts:      5,
		MaxImageAttempts: 3,
		BaseBackoff:      time.Second,
		MaxBackoff:       time.Minute,
		PollInterval:     time.Second,
		FetchTimeout:     time.Second,
		ClaimTimeout:     time.Minute,
	}

	env.worker = NewWorker(
		env.tasks, env.products, env.fetcher, env.embedder,
		env.archive, env.index, env.reporter,
		schedCfg, logger.NewNopLogger(), "",
	)

	return env
}

func task(attempts int) *domain.SyncTask {
	return &domain.SyncTask{
		ID:           11,
		ProductID:    7,
		Reason:       domain.ReasonCreated,
		Status:       domain.TaskProcessing,
		AttemptCount: attempts,
	}
}

func TestProcessTask_Success(t *testing.T) {
	env := newWorkerEnv()

	env.worker.processTask(context.Background(), task(0))

	assert.Equal(t, []int64{11}, env.tasks.done)
	assert.Empty(t, env.tasks.requeued)
	assert.Empty(t, env.tasks.failed)

	require.Len(t, env.index.upserted, 1)
	embedding := env.index.upserted[0]
	assert.Equal(t, domain.PointID(7, domain.EmbeddingTypeImage), embedding.ID)
	assert.EqualValues(t, 7, embedding.Payload["product_id"])
	assert.Equal(t, "clip-v2", embedding.Payload["model_version"])

	require.Len(t, env.reporter.reports, 1)
	assert.Equal(t, usecase.ReportSyncCompleted, env.reporter.reports[0].Kind)
	assert.EqualValues(t, 7, env.reporter.reports[0].ProductID)
}

func TestProcessTask_TransientFailureRequeues(t *testing.T) {
	env := newWorkerEnv()
	env.embedder.err = e.ErrEmbeddingService

	before := time.Now()
	env.worker.processTask(context.Background(), task(0))

	assert.Empty(t, env.tasks.done)
	assert.Empty(t, env.tasks.failed)

	require.Len(t, env.tasks.requeued, 1)
	call := env.tasks.requeued[0]
	assert.Equal(t, 1, call.attempt)
	assert.True(t, call.nextRetryAt.After(before), "retry must be scheduled in the future")
	assert.Contains(t, call.lastError, e.ErrEmbeddingService.Error())
}

func TestProcessTask_FifthFailureIsTerminal(t *testing.T) {
	env := newWorkerEnv()
	env.embedder.err = e.ErrEmbeddingService

	// Четыре сбоя уже позади
	env.worker.processTask(context.Background(), task(4))

	assert.Empty(t, env.tasks.requeued, "no sixth attempt")
	require.Contains(t, env.tasks.failed, int64(11))

	require.Len(t, env.reporter.reports, 1)
	report := env.reporter.reports[0]
	assert.Equal(t, usecase.ReportSyncFailed, report.Kind)
	assert.Equal(t, 5, report.Attempts)
	assert.NotEmpty(t, report.Error)
}

func TestProcessTask_RejectedInputNeverRetried(t *testing.T) {
	env := newWorkerEnv()
	env.embedder.err = e.ErrEmbeddingRejected

	env.worker.processTask(context.Background(), task(0))

	assert.Empty(t, env.tasks.requeued)
	assert.Contains(t, env.tasks.failed, int64(11))
}

func TestProcessTask_ImageUnavailableHasLowerCeiling(t *testing.T) {
	env := newWorkerEnv()
	env.fetcher.err = e.ErrImageUnavailable

	// Вторая попытка — ещё ретраится
	env.worker.processTask(context.Background(), task(1))
	require.Len(t, env.tasks.requeued, 1)
	assert.Empty(t, env.tasks.failed)

	// Третья попытка упирается в потолок для картинок
	env.worker.processTask(context.Background(), task(2))
	assert.Len(t, env.tasks.requeued, 1)
	assert.Contains(t, env.tasks.failed, int64(11))
}

func TestProcessTask_DeletedProductSkipsQuietly(t *testing.T) {
	env := newWorkerEnv()
	env.products.product.IsDeleted = true

	env.worker.processTask(context.Background(), task(0))

	assert.Equal(t, []int64{11}, env.tasks.done)
	assert.Empty(t, env.index.upserted)
	assert.Empty(t, env.reporter.reports)
}

func TestProcessTask_VanishedProductCompletesTask(t *testing.T) {
	env := newWorkerEnv()
	env.products.product = nil
	env.products.err = e.ErrProductNotFound

	env.worker.processTask(context.Background(), task(0))

	assert.Equal(t, []int64{11}, env.tasks.done)
	assert.Empty(t, env.tasks.failed)
	assert.Empty(t, env.reporter.reports)
}

func TestProcessTask_IndexWriteFailureRetries(t *testing.T) {
	env := newWorkerEnv()
	env.index.err = errors.New("qdrant unavailable")

	env.worker.processTask(context.Background(), task(0))

	require.Len(t, env.tasks.requeued, 1)
	assert.Equal(t, 1, env.tasks.requeued[0].attempt)
}
