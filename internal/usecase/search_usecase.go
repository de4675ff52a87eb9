package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

// Пороговые значения похожести для потребителей выдачи.
// Это политика сервиса поиска, а не свойство индекса.
const (
	NearDuplicateThreshold = 0.85
	SimilarThreshold       = 0.70

	BandNearDuplicate = "near_duplicate"
	BandSimilar       = "similar"
	BandWeak          = "weak"
)

const (
	defaultLimit = 5
	maxLimit     = 50

	// Индекс может отставать от каталога, часть хитов отфильтрует джойн.
	// Запас кандидатов компенсирует выпавшие записи.
	candidateHeadroom = 2
)

// SearchUseCase реализует поиск визуально похожих товаров.
type SearchUseCase struct {
	fetcher     ImageFetcherInfra
	embedder    EmbedderInfra
	embRepo     EmbeddingRepository
	productRepo ProductRepository
	cacheRepo   CacheRepository
	logger      logger.Logger
}

func NewSearchUC(
	fetcher ImageFetcherInfra,
	embedder EmbedderInfra,
	embRepo EmbeddingRepository,
	productRepo ProductRepository,
	cacheRepo CacheRepository,
	logger logger.Logger,
) *SearchUseCase {
	return &SearchUseCase{
		fetcher:     fetcher,
		embedder:    embedder,
		embRepo:     embRepo,
		productRepo: productRepo,
		cacheRepo:   cacheRepo,
		logger:      logger,
	}
}

// FindSimilar векторизует изображение запроса и возвращает живые товары,
// прошедшие порог похожести. Пустой список — это ответ «совпадений нет»,
// а не ошибка; ошибка означает, что поиск сломан.
func (s *SearchUseCase) FindSimilar(ctx context.Context, req *FindSimilarReq) (*FindSimilarRes, error) {
	const op = "SearchUseCase.FindSimilar"

	start := time.Now()

	limit, err := validateFindSimilar(req)
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	img, err := s.fetcher.Fetch(ctx, req.ImageRef)
	if err != nil {
		// Недоступная картинка запроса — проблема вызывающего, не поиска
		if errors.Is(err, e.ErrImageUnavailable) {
			return nil, e.Wrap(op, err)
		}
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrSearchUnavailable))
	}

	vec, err := s.embedder.Vectorize(ctx, &VectorizeReq{Data: img.Data, MimeType: img.MimeType})
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrSearchUnavailable))
	}

	hits, err := s.embRepo.Query(ctx, &VectorQueryReq{
		Vector:   vec.Vector,
		ShopID:   req.ShopID,
		Limit:    uint64(limit * candidateHeadroom),
		MinScore: float32(req.MinSimilarity),
	})
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrSearchUnavailable))
	}

	if len(hits) == 0 {
		return NewFindSimilarRes([]SimilarProduct{}, time.Since(start).Milliseconds()), nil
	}

	snapshots, err := s.resolveSnapshots(ctx, hits)
	if err != nil {
		return nil, e.Wrap(op, e.Wrap(err.Error(), e.ErrSearchUnavailable))
	}

	results := rankHits(hits, snapshots, limit, req.MinSimilarity)

	return NewFindSimilarRes(results, time.Since(start).Milliseconds()), nil
}

// resolveSnapshots собирает снимки товаров: сперва кэш, промахи — из БД
// с фоновым прогревом кэша.
func (s *SearchUseCase) resolveSnapshots(ctx context.Context, hits []VectorHit) (map[int64]ProductSnapshot, error) {
	const op = "SearchUseCase.resolveSnapshots"

	ids := make([]int64, 0, len(hits))
	for _, hit := range hits {
		ids = append(ids, hit.ProductID)
	}

	cached, err := s.cacheRepo.GetProducts(ctx, ids)
	if err != nil {
		cached = map[int64]ProductSnapshot{} // кэш недоступен — идём в БД за всеми
	}

	var misses []int64
	for _, id := range ids {
		if _, ok := cached[id]; !ok {
			misses = append(misses, id)
		}
	}

	if len(misses) > 0 {
		fromDB, err := s.productRepo.GetSnapshots(ctx, misses)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		for _, snapshot := range fromDB {
			cached[snapshot.ID] = snapshot
		}

		// Фоновый прогрев кэша
		go func() {
			bgCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()

			if err := s.cacheRepo.SetProducts(bgCtx, fromDB); err != nil {
				s.logger.Warnf("Failed to cache products in background: %v", e.Wrap(op, err))
			}
		}()
	}

	return cached, nil
}

// rankHits джойнит хиты индекса с живым каталогом, отбрасывает удалённые и
// отсутствующие товары и возвращает детерминированно упорядоченный топ.
// Ничьи по score разрешаются в пользу более свежих векторов.
func rankHits(hits []VectorHit, snapshots map[int64]ProductSnapshot, limit int, minSimilarity float64) []SimilarProduct {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].IndexedAt > hits[j].IndexedAt
	})

	results := make([]SimilarProduct, 0, limit)
	for _, hit := range hits {
		if len(results) == limit {
			break
		}

		similarity := float64(hit.Score)
		if similarity < minSimilarity {
			continue
		}

		snapshot, ok := snapshots[hit.ProductID]
		if !ok || snapshot.IsDeleted {
			continue
		}

		results = append(results, SimilarProduct{
			Product:    snapshot,
			Similarity: similarity,
			Band:       similarityBand(similarity),
		})
	}

	return results
}

func similarityBand(similarity float64) string {
	switch {
	case similarity >= NearDuplicateThreshold:
		return BandNearDuplicate
	case similarity >= SimilarThreshold:
		return BandSimilar
	default:
		return BandWeak
	}
}

func validateFindSimilar(req *FindSimilarReq) (int, error) {
	if req.ImageRef == "" || req.ShopID == "" {
		return 0, e.ErrMissingFields
	}

	limit := req.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if limit < 0 || limit > maxLimit {
		return 0, e.ErrInvalidLimit
	}

	if req.MinSimilarity < 0 || req.MinSimilarity > 1 {
		return 0, e.ErrInvalidMinSimilarity
	}

	return limit, nil
}
