package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
	"golang.org/x/time/rate"
)

// EmbedderService — клиент внешнего сервиса векторизации изображений.
// Исходящие запросы ограничены rate-лимитером, чтобы всплеск обновлений
// каталога не завалил сервис.
type EmbedderService struct {
	httpClient *http.Client
	cfg        *cfg.EmbedderCfg
	limiter    *rate.Limiter
	logger     logger.Logger
}

func NewEmbedderService(cfg *cfg.EmbedderCfg, logger logger.Logger) *EmbedderService {
	return &EmbedderService{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
		logger:     logger,
	}
}

// vectorizeResponse — ответ сервиса векторизации.
type vectorizeResponse struct {
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// Vectorize отправляет байты изображения на векторизацию и возвращает вектор
// фиксированной размерности. Ошибки классифицируются по ретраябельности:
// 4xx — ErrEmbeddingRejected (ретраить бессмысленно), остальное — ErrEmbeddingService.
func (s *EmbedderService) Vectorize(ctx context.Context, req *usecase.VectorizeReq) (*usecase.VectorizeRes, error) {
	const op = "EmbedderService.Vectorize"

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, e.Wrap(op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Addr+"/v1/vectorize", bytes.NewReader(req.Data))
	if err != nil {
		return nil, e.Wrap(op, err)
	}
	httpReq.Header.Set("Content-Type", req.MimeType)

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrEmbeddingService))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, e.Wrap(op, e.Wrap(fmt.Sprintf("status %d", resp.StatusCode), e.ErrEmbeddingRejected))
	default:
		return nil, e.Wrap(op, e.Wrap(fmt.Sprintf("status %d", resp.StatusCode), e.ErrEmbeddingService))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrEmbeddingService))
	}

	var vectorized vectorizeResponse
	if err := json.Unmarshal(body, &vectorized); err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrEmbeddingService))
	}

	if len(vectorized.Vector) != s.cfg.VectorSize {
		return nil, e.Wrap(op, fmt.Errorf("got %d components, want %d: %w", len(vectorized.Vector), s.cfg.VectorSize, e.ErrVectorSizeMismatch))
	}

	return usecase.NewVectorizeRes(vectorized.Vector, vectorized.ModelVersion), nil
}
