package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	config "github.com/vistore-tech/catalog-sync/internal/cfg"
	v1Http "github.com/vistore-tech/catalog-sync/internal/delivery/v1/http"
	"github.com/vistore-tech/catalog-sync/internal/infrastructure/embedder"
	"github.com/vistore-tech/catalog-sync/internal/infrastructure/imagefetch"
	"github.com/vistore-tech/catalog-sync/internal/infrastructure/imagestore"
	"github.com/vistore-tech/catalog-sync/internal/infrastructure/kafka"
	"github.com/vistore-tech/catalog-sync/internal/infrastructure/scheduler"
	s3Repo "github.com/vistore-tech/catalog-sync/internal/repository/minio"
	"github.com/vistore-tech/catalog-sync/internal/repository/pgdb"
	pgdbConv "github.com/vistore-tech/catalog-sync/internal/repository/pgdb/converter"
	qdrantRepo "github.com/vistore-tech/catalog-sync/internal/repository/qdrant"
	"github.com/vistore-tech/catalog-sync/internal/repository/redis"
	redisConv "github.com/vistore-tech/catalog-sync/internal/repository/redis/converter"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/clients"
	"github.com/vistore-tech/catalog-sync/pkg/closer"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
	"github.com/vistore-tech/catalog-sync/pkg/postgres"
)

func Run() {
	logger := logger.NewSlogLogger()

	cfg, err := config.Load(logger)
	if err != nil {
		logger.Errorf(err, "failed to load config")
		os.Exit(1)
	}

	resources := closer.NewCloser(2 * time.Second)

	db, err := initPGDB(logger, cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize database")
		os.Exit(1)
	}
	resources.Add(func(_ context.Context) error {
		db.Close()
		return nil
	})

	prConv := pgdbConv.NewProductConverterImpl()
	taskConv := pgdbConv.NewSyncTaskConverterImpl()
	snapConv := redisConv.NewProductSnapshotConverterImpl()

	productRepo := pgdb.NewProductRepo(db.Pool, prConv)
	taskRepo := pgdb.NewSyncTaskRepo(db.Pool, taskConv)

	minioClient, err := clients.NewMinIOClient(cfg)
	if err != nil {
		logger.Errorf(err, "failed to initialize minio client")
		os.Exit(1)
	}

	minioCtx, minioCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureBucket(minioCtx, minioClient, cfg.Minio.BucketName); err != nil {
		minioCancel()
		logger.Errorf(err, "failed to initialize MinIO bucket")
		os.Exit(1)
	}
	minioCancel()

	imageRepo := s3Repo.NewImageRepo(minioClient, cfg.Minio)

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		logger.Errorf(err, "failed to initialize qdrant")
		os.Exit(1)
	}
	resources.Add(func(_ context.Context) error {
		return qdrantClient.Client.Close()
	})

	qdrantCtx, qdrantCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := clients.EnsureCollection(qdrantCtx, qdrantClient); err != nil {
		qdrantCancel()
		logger.Errorf(err, "failed to initialize qdrant collection")
		os.Exit(1)
	}
	qdrantCancel()

	embRepo := qdrantRepo.NewEmbeddingRepo(qdrantClient.Client, cfg.Qdrant)

	redisClient := clients.NewRedisClient(cfg.Redis)
	redisCtx, redisCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer redisCancel()
	if err := redisClient.Ping(redisCtx); err != nil {
		logger.Errorf(err, "failed to connect to redis")
		os.Exit(1)
	}
	resources.Add(func(_ context.Context) error {
		return redisClient.Client.Close()
	})

	cacheRepo := redis.NewCacheRepo(redisClient, snapConv, cfg.Redis, logger)

	producer, err := kafka.NewProducer(logger, cfg.Kafka)
	if err != nil {
		logger.Errorf(err, "failed to initialize kafka producer")
		os.Exit(1)
	}
	resources.Add(func(_ context.Context) error {
		return producer.Close()
	})

	if err := producer.EnsureTopic(10 * time.Second); err != nil {
		logger.Errorf(err, "failed to ensure kafka topic")
		os.Exit(1)
	}

	fetcher := imagefetch.NewFetcher(cfg.Scheduler.FetchTimeout)
	embedderService := embedder.NewEmbedderService(cfg.Embedder, logger)
	imageArchive := imagestore.NewImageArchive(imageRepo, cfg.Minio, logger)

	syncUC := usecase.NewSyncUC(productRepo, taskRepo, embRepo, cacheRepo, db.Pool, logger)
	searchUC := usecase.NewSearchUC(fetcher, embedderService, embRepo, productRepo, cacheRepo, logger)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	worker := scheduler.NewWorker(
		taskRepo,
		productRepo,
		fetcher,
		embedderService,
		imageArchive,
		embRepo,
		producer,
		cfg.Scheduler,
		logger,
		db.Dsn,
	)
	worker.Start(workerCtx)
	logger.Infof("scheduler started with %d worker(s)", cfg.Scheduler.Workers)

	r := chi.NewRouter()
	router := v1Http.NewRouter(r, logger)
	router.Init(syncUC, searchUC, cfg.Webhook)

	httpSrv := v1Http.NewServer(r, cfg.Http)

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server started on port %s", cfg.Http.Port)
		if err := httpSrv.Run(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(err, "HTTP server failed: %v", err)
			errCh <- err
		}
	}()

	// === Ожидание сигнала или ошибки ===
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	var appErr error
	select {
	case appErr = <-errCh:
		logger.Errorf(appErr, "HTTP server fatal error")
	case <-shutdown:
		logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	// === Graceful shutdown ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpSrv.Stop(shutdownCtx); err != nil {
		logger.Errorf(err, "HTTP server shutdown error")
	} else {
		logger.Infof("HTTP server stopped")
	}

	// Сначала останавливаем приём трафика, потом даём воркерам дообработать
	// захваченные задачи. Недообработанные вернёт в очередь claim timeout.
	workerCancel()
	done := make(chan struct{})
	go func() {
		worker.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Infof("scheduler stopped")
	case <-time.After(15 * time.Second):
		logger.Warnf("scheduler did not stop in time, in-flight tasks will be reclaimed")
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := resources.Close(closeCtx); err != nil {
		logger.Warnf("resource shutdown: %v", err)
	}

	logger.Infof("Application shutdown complete")
	if appErr != nil {
		os.Exit(1)
	}
}

func initPGDB(logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.Ping(); err != nil {
		logger.Errorf(err, "failed to ping database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}
