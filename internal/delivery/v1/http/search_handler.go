package http

import (
	"encoding/json"
	"net/http"

	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

type searchRequest struct {
	ImageRef      string  `json:"image_url"`
	ShopID        string  `json:"shop_id"`
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"min_similarity"`
}

type searchResponse struct {
	Results    []searchResult `json:"results"`
	DurationMs int64          `json:"duration_ms"`
}

type searchResult struct {
	ProductID  int64   `json:"product_id"`
	ShopID     string  `json:"shop_id"`
	ExternalID string  `json:"external_id"`
	Title      string  `json:"title"`
	Price      int64   `json:"price"`
	Available  bool    `json:"available"`
	ImageKey   string  `json:"image_key"`
	Similarity float64 `json:"similarity"`
	Band       string  `json:"band"`
}

type SearchHandler struct {
	searchUsecase usecase.SearchUC
	logger        logger.Logger
}

func NewSearchHandler(searchUsecase usecase.SearchUC, logger logger.Logger) *SearchHandler {
	return &SearchHandler{searchUsecase: searchUsecase, logger: logger}
}

// findSimilar ищет визуально похожие товары по изображению запроса.
// Пустой список результатов — валидный ответ 200.
func (h *SearchHandler) findSimilar(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 1 << 20

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warnf("%d malformed search body: %s", http.StatusBadRequest, err.Error())
		WriteError(w, e.ErrMissingFields)
		return
	}

	res, err := h.searchUsecase.FindSimilar(r.Context(), &usecase.FindSimilarReq{
		ImageRef:      req.ImageRef,
		ShopID:        req.ShopID,
		Limit:         req.Limit,
		MinSimilarity: req.MinSimilarity,
	})
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	results := make([]searchResult, 0, len(res.Results))
	for _, item := range res.Results {
		results = append(results, searchResult{
			ProductID:  item.Product.ID,
			ShopID:     item.Product.ShopID,
			ExternalID: item.Product.ExternalID,
			Title:      item.Product.Title,
			Price:      item.Product.Price,
			Available:  item.Product.Available,
			ImageKey:   item.Product.ImageKey,
			Similarity: item.Similarity,
			Band:       item.Band,
		})
	}

	WriteSuccess(w, http.StatusOK, &searchResponse{
		Results:    results,
		DurationMs: res.DurationMs,
	})
}
