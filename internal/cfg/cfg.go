package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jimlawless/whereami"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

type Config struct {
	Http      *HTTPConfig
	Db        *PGDBCfg
	Qdrant    *QdrantCfg
	Redis     *RedisCfg
	Minio     *MinIOCfg
	Kafka     *KafkaCfg
	Embedder  *EmbedderCfg
	Webhook   *WebhookCfg
	Scheduler *SchedulerCfg
}

type HTTPConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type PGDBCfg struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type QdrantCfg struct {
	Port                 int
	Host                 string
	ApiKey               string
	QdrantCollectionName string // имя коллекции в Qdrant
	UseTLS               bool
	VectorSize           uint64
	QueryTimeout         time.Duration
}

type RedisCfg struct {
	Addr        string
	Password    string
	User        string
	DB          int
	MaxRetries  int
	DialTimeout time.Duration
	Timeout     time.Duration
	ProductTTL  time.Duration
}

type MinIOCfg struct {
	MinioEndpoint     string // Адрес конечной точки Minio
	BucketName        string // Бакет с зеркальными копиями изображений
	MinioRootUser     string
	MinioRootPassword string
	MinioUseSSL       bool
}

type KafkaCfg struct {
	Topic             string
	Brokers           []string
	NetworkMode       string
	Partitions        int
	ReplicationFactor int
}

type EmbedderCfg struct {
	Addr           string // базовый URL сервиса векторизации
	RequestTimeout time.Duration
	RatePerSecond  float64 // лимит исходящих запросов к сервису
	RateBurst      int
	VectorSize     int // ожидаемая размерность вектора
}

type WebhookCfg struct {
	Secret string // общий секрет, передаётся в заголовке X-Webhook-Token
}

type SchedulerCfg struct {
	Workers          int
	BatchSize        int
	MaxAttempts      int // потолок ретраев для временных ошибок
	MaxImageAttempts int // потолок ретраев для недоступных изображений
	BaseBackoff      time.Duration
	MaxBackoff       time.Duration
	PollInterval     time.Duration
	FetchTimeout     time.Duration // таймаут скачивания изображения
	ClaimTimeout     time.Duration // после него processing-задача считается потерянной и возвращается в очередь
}

// Load безопасно загружает конфигурацию и возвращает ошибку в случае неудачи.
func Load(log logger.Logger) (*Config, error) {
	db, err := loadPGDBCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	http, err := loadHTTPConfig(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	qdrant, err := loadQdrantCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	redis, err := loadRedisCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	minio, err := loadMinIOCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	kafka, err := loadKafkaCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	embedder, err := loadEmbedderCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	webhook, err := loadWebhookCfg()
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	scheduler, err := loadSchedulerCfg(log)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &Config{
		Http:      http,
		Db:        db,
		Qdrant:    qdrant,
		Redis:     redis,
		Minio:     minio,
		Kafka:     kafka,
		Embedder:  embedder,
		Webhook:   webhook,
		Scheduler: scheduler,
	}, nil
}

func loadHTTPConfig(log logger.Logger) (*HTTPConfig, error) {
	const (
		defaultPort         = "8080"
		defaultReadTimeout  = 5 * time.Second
		defaultWriteTimeout = 10 * time.Second
		defaultIdleTimeout  = 60 * time.Second
	)

	port := getEnvOrDefault("HTTP_PORT", defaultPort)

	readTimeout, err := parseDurationEnv("HTTP_READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("HTTP_WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid HTTP_WRITE_TIMEOUT")
		return nil, err
	}

	idleTimeout, err := parseDurationEnv("KEEP_ALIVE", defaultIdleTimeout)
	if err != nil {
		log.Errorf(err, "invalid KEEP_ALIVE")
		return nil, err
	}

	return &HTTPConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}

func loadPGDBCfg(log logger.Logger) (*PGDBCfg, error) {
	const (
		defaultHost    = "localhost"
		defaultPort    = "5432"
		defaultSSLMode = "disable"
	)

	user := getEnv("POSTGRES_USER")
	if user == "" {
		err := fmt.Errorf("POSTGRES_USER is required")
		log.Errorf(err, "missing POSTGRES_USER")
		return nil, err
	}

	password := getEnv("POSTGRES_PASSWORD")
	if password == "" {
		err := fmt.Errorf("POSTGRES_PASSWORD is required")
		log.Errorf(err, "missing POSTGRES_PASSWORD")
		return nil, err
	}

	dbName := getEnv("POSTGRES_DB")
	if dbName == "" {
		err := fmt.Errorf("POSTGRES_DB is required")
		log.Errorf(err, "missing POSTGRES_DB")
		return nil, err
	}

	return &PGDBCfg{
		Host:     getEnvOrDefault("POSTGRES_HOST", defaultHost),
		Port:     getEnvOrDefault("POSTGRES_PORT", defaultPort),
		User:     user,
		Password: password,
		DBName:   dbName,
		SSLMode:  getEnvOrDefault("SSL_MODE", defaultSSLMode),
	}, nil
}

func loadQdrantCfg(log logger.Logger) (*QdrantCfg, error) {
	const (
		defaultQdrantGRPCPort = "6334"
		defaultUseTLS         = false
		defaultVectorSize     = "512"
		defaultQueryTimeout   = 5 * time.Second
	)

	strPort := getEnvOrDefault("QDRANT_GRPC_PORT", defaultQdrantGRPCPort)
	port, err := strconv.Atoi(strPort)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_GRPC_PORT")
		return nil, err
	}

	useTLS, err := strconv.ParseBool(getEnvOrDefault("QDRANT_USE_TLS", strconv.FormatBool(defaultUseTLS)))
	if err != nil {
		log.Errorf(err, "invalid QDRANT_USE_TLS")
		return nil, err
	}

	strVectorSize := getEnvOrDefault("VECTOR_SIZE", defaultVectorSize)
	vectorSize, err := strconv.ParseUint(strVectorSize, 10, 64)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	queryTimeout, err := parseDurationEnv("QDRANT_QUERY_TIMEOUT", defaultQueryTimeout)
	if err != nil {
		log.Errorf(err, "invalid QDRANT_QUERY_TIMEOUT")
		return nil, err
	}

	return &QdrantCfg{
		Host:                 getEnv("QDRANT_HOST"),
		Port:                 port,
		ApiKey:               getEnv("QDRANT__SERVICE__API_KEY"),
		QdrantCollectionName: getEnv("COLLECTION_NAME"),
		UseTLS:               useTLS,
		VectorSize:           vectorSize,
		QueryTimeout:         queryTimeout,
	}, nil
}

func loadRedisCfg(log logger.Logger) (*RedisCfg, error) {
	const (
		defaultAddr         = "localhost:6379"
		defaultDB           = 0
		defaultMaxRetries   = 3
		defaultDialTimeout  = 5 * time.Second
		defaultReadTimeout  = 3 * time.Second
		defaultWriteTimeout = 3 * time.Second
		defaultProductTTL   = 3 * time.Minute
	)

	addr := getEnvOrDefault("REDIS_ADDR", defaultAddr)
	password := getEnv("REDIS_PASSWORD")
	user := getEnv("REDIS_USER")

	dbStr := getEnvOrDefault("REDIS_DB_ID", strconv.Itoa(defaultDB))
	db, err := strconv.Atoi(dbStr)
	if err != nil {
		log.Errorf(err, "invalid REDIS_DB_ID")
		return nil, err
	}

	maxRetriesStr := getEnvOrDefault("MAX_RETRIES", strconv.Itoa(defaultMaxRetries))
	maxRetries, err := strconv.Atoi(maxRetriesStr)
	if err != nil {
		log.Errorf(err, "invalid MAX_RETRIES")
		return nil, err
	}

	dialTimeout, err := parseDurationEnv("DIAL_TIMEOUT", defaultDialTimeout)
	if err != nil {
		log.Errorf(err, "invalid DIAL_TIMEOUT")
		return nil, err
	}

	readTimeout, err := parseDurationEnv("READ_TIMEOUT", defaultReadTimeout)
	if err != nil {
		log.Errorf(err, "invalid READ_TIMEOUT")
		return nil, err
	}

	writeTimeout, err := parseDurationEnv("WRITE_TIMEOUT", defaultWriteTimeout)
	if err != nil {
		log.Errorf(err, "invalid WRITE_TIMEOUT")
		return nil, err
	}

	productTTL, err := parseDurationEnv("PRODUCT_TTL", defaultProductTTL)
	if err != nil {
		log.Errorf(err, "invalid PRODUCT_TTL")
		return nil, err
	}

	timeout := readTimeout
	if writeTimeout > timeout {
		timeout = writeTimeout
	}

	return &RedisCfg{
		Addr:        addr,
		Password:    password,
		User:        user,
		DB:          db,
		MaxRetries:  maxRetries,
		DialTimeout: dialTimeout,
		Timeout:     timeout,
		ProductTTL:  productTTL,
	}, nil
}

func loadMinIOCfg(log logger.Logger) (*MinIOCfg, error) {
	const (
		defaultUseSSL   = false
		defaultEndpoint = "minio:9000"
	)

	useSSL, err := strconv.ParseBool(getEnvOrDefault("MINIO_USE_SSL", strconv.FormatBool(defaultUseSSL)))
	if err != nil {
		log.Errorf(err, "invalid MINIO_USE_SSL")
		return nil, err
	}

	return &MinIOCfg{
		MinioEndpoint:     getEnvOrDefault("MINIO_ENDPOINT", defaultEndpoint),
		BucketName:        getEnv("BUCKET_NAME"),
		MinioRootUser:     getEnv("MINIO_ROOT_USER"),
		MinioRootPassword: getEnv("MINIO_ROOT_PASSWORD"),
		MinioUseSSL:       useSSL,
	}, nil
}

func loadKafkaCfg() (*KafkaCfg, error) {
	const (
		defaultPartitions        = 3
		defaultReplicationFactor = 1
		defaultNetworkMode       = "tcp"
	)

	brokerStr := os.Getenv("KAFKA_BROKERS")
	if brokerStr == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS environment variable is required")
	}
	brokers := strings.Split(brokerStr, ",")

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC environment variable is required")
	}

	partitions, err := parseIntEnv("KAFKA_PARTITIONS", defaultPartitions)
	if err != nil {
		return nil, e.Wrap("KAFKA_PARTITIONS", err)
	}

	replicationFactor, err := parseIntEnv("REPLICATION_FACTOR", defaultReplicationFactor)
	if err != nil {
		return nil, e.Wrap("REPLICATION_FACTOR", err)
	}

	networkMode := getEnvOrDefault("KAFKA_NETWORK_MODE", defaultNetworkMode)

	return &KafkaCfg{
		Brokers:           brokers,
		Topic:             topic,
		Partitions:        partitions,
		ReplicationFactor: replicationFactor,
		NetworkMode:       networkMode,
	}, nil
}

func loadEmbedderCfg(log logger.Logger) (*EmbedderCfg, error) {
	const (
		defaultHost           = "embedder"
		defaultPort           = "9090"
		defaultRequestTimeout = 15 * time.Second
		defaultRatePerSecond  = "10"
		defaultRateBurst      = 5
		defaultVectorSize     = 512
	)

	host := getEnvOrDefault("EMBEDDER_HOST", defaultHost)
	port := getEnvOrDefault("EMBEDDER_PORT", defaultPort)

	requestTimeout, err := parseDurationEnv("EMBEDDER_TIMEOUT", defaultRequestTimeout)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDER_TIMEOUT")
		return nil, err
	}

	rate, err := strconv.ParseFloat(getEnvOrDefault("EMBEDDER_RATE", defaultRatePerSecond), 64)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDER_RATE")
		return nil, err
	}

	burst, err := parseIntEnv("EMBEDDER_BURST", defaultRateBurst)
	if err != nil {
		log.Errorf(err, "invalid EMBEDDER_BURST")
		return nil, err
	}

	vectorSize, err := parseIntEnv("VECTOR_SIZE", defaultVectorSize)
	if err != nil {
		log.Errorf(err, "invalid VECTOR_SIZE")
		return nil, err
	}

	return &EmbedderCfg{
		Addr:           "http://" + host + ":" + port,
		RequestTimeout: requestTimeout,
		RatePerSecond:  rate,
		RateBurst:      burst,
		VectorSize:     vectorSize,
	}, nil
}

func loadWebhookCfg() (*WebhookCfg, error) {
	secret := getEnv("WEBHOOK_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET environment variable is required")
	}

	return &WebhookCfg{Secret: secret}, nil
}

func loadSchedulerCfg(log logger.Logger) (*SchedulerCfg, error) {
	const (
		defaultWorkers          = 4
		defaultBatchSize        = 10
		defaultMaxAttempts      = 5
		defaultMaxImageAttempts = 3
		defaultBaseBackoff      = 5 * time.Second
		defaultMaxBackoff       = 5 * time.Minute
		defaultPollInterval     = 15 * time.Second
		defaultFetchTimeout     = 10 * time.Second
		defaultClaimTimeout     = 5 * time.Minute
	)

	workers, err := parseIntEnv("SCHEDULER_WORKERS", defaultWorkers)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_WORKERS")
		return nil, err
	}

	batchSize, err := parseIntEnv("SCHEDULER_BATCH_SIZE", defaultBatchSize)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_BATCH_SIZE")
		return nil, err
	}

	maxAttempts, err := parseIntEnv("SCHEDULER_MAX_ATTEMPTS", defaultMaxAttempts)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_MAX_ATTEMPTS")
		return nil, err
	}

	maxImageAttempts, err := parseIntEnv("SCHEDULER_MAX_IMAGE_ATTEMPTS", defaultMaxImageAttempts)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_MAX_IMAGE_ATTEMPTS")
		return nil, err
	}

	baseBackoff, err := parseDurationEnv("SCHEDULER_BASE_BACKOFF", defaultBaseBackoff)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_BASE_BACKOFF")
		return nil, err
	}

	maxBackoff, err := parseDurationEnv("SCHEDULER_MAX_BACKOFF", defaultMaxBackoff)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_MAX_BACKOFF")
		return nil, err
	}

	pollInterval, err := parseDurationEnv("SCHEDULER_POLL_INTERVAL", defaultPollInterval)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_POLL_INTERVAL")
		return nil, err
	}

	fetchTimeout, err := parseDurationEnv("SCHEDULER_FETCH_TIMEOUT", defaultFetchTimeout)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_FETCH_TIMEOUT")
		return nil, err
	}

	claimTimeout, err := parseDurationEnv("SCHEDULER_CLAIM_TIMEOUT", defaultClaimTimeout)
	if err != nil {
		log.Errorf(err, "invalid SCHEDULER_CLAIM_TIMEOUT")
		return nil, err
	}

	return &SchedulerCfg{
		Workers:          workers,
		BatchSize:        batchSize,
		MaxAttempts:      maxAttempts,
		MaxImageAttempts: maxImageAttempts,
		BaseBackoff:      baseBackoff,
		MaxBackoff:       maxBackoff,
		PollInterval:     pollInterval,
		FetchTimeout:     fetchTimeout,
		ClaimTimeout:     claimTimeout,
	}, nil
}

// getEnv возвращает значение переменной окружения.
// Возвращает пустую строку, если переменная не задана.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}

	return defaultValue
}

// parseDurationEnv считывает длительность или возвращает значение по умолчанию.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}

	return defaultValue, nil
}

func parseIntEnv(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}

	intValue, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue, e.ErrIncorrectEnvVariable
	}

	return intValue, nil
}
