package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

type searchUCStub struct {
	gotReq *usecase.FindSimilarReq
	res    *usecase.FindSimilarRes
	err    error
}

func (s *searchUCStub) FindSimilar(_ context.Context, req *usecase.FindSimilarReq) (*usecase.FindSimilarRes, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

func postSearch(stub *searchUCStub, body string) *httptest.ResponseRecorder {
	h := NewSearchHandler(stub, logger.NewNopLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/similar", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.findSimilar(rec, req)
	return rec
}

func TestFindSimilar_HappyPath(t *testing.T) {
	stub := &searchUCStub{
		res: usecase.NewFindSimilarRes([]usecase.SimilarProduct{
			{
				Product:    usecase.ProductSnapshot{ID: 7, ShopID: "shop-1", Title: "Кресло", Price: 59999},
				Similarity: 0.91,
				Band:       usecase.BandNearDuplicate,
			},
		}, 42),
	}

	rec := postSearch(stub, `{"image_url": "https://cdn.example.com/q.jpg", "shop_id": "shop-1", "limit": 3}`)

	assert.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, stub.gotReq)
	assert.Equal(t, "shop-1", stub.gotReq.ShopID)
	assert.Equal(t, 3, stub.gotReq.Limit)

	assert.Contains(t, rec.Body.String(), `"band":"near_duplicate"`)
	assert.Contains(t, rec.Body.String(), `"product_id":7`)
}

func TestFindSimilar_EmptyResultsIsOK(t *testing.T) {
	stub := &searchUCStub{res: usecase.NewFindSimilarRes([]usecase.SimilarProduct{}, 5)}

	rec := postSearch(stub, `{"image_url": "https://cdn.example.com/q.jpg", "shop_id": "shop-1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"results":[]`)
}

func TestFindSimilar_MalformedBody(t *testing.T) {
	rec := postSearch(&searchUCStub{}, `{`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindSimilar_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"validation", e.ErrInvalidLimit, http.StatusBadRequest},
		{"query image unavailable", e.ErrImageUnavailable, http.StatusUnprocessableEntity},
		{"search down", e.ErrSearchUnavailable, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postSearch(&searchUCStub{err: tt.err}, `{"image_url": "x", "shop_id": "s"}`)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}
