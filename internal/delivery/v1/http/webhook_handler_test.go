package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

type syncUCStub struct {
	gotReq *usecase.ApplyEventReq
	res    *usecase.ApplyEventRes
	err    error
}

func (s *syncUCStub) ApplyEvent(_ context.Context, req *usecase.ApplyEventReq) (*usecase.ApplyEventRes, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

const testSecret = "s3cret"

func newWebhookHandler(stub *syncUCStub) *WebhookHandler {
	return NewWebhookHandler(stub, &cfg.WebhookCfg{Secret: testSecret}, logger.NewNopLogger())
}

func postWebhook(h *WebhookHandler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/catalog", strings.NewReader(body))
	if token != "" {
		req.Header.Set(webhookTokenHeader, token)
	}

	rec := httptest.NewRecorder()
	h.applyCatalogEvent(rec, req)
	return rec
}

const validEventBody = `{
	"event_type": "created",
	"product": {
		"shop_id": "shop-1",
		"id": "sku-42",
		"title": "Кресло офисное",
		"price": "599.99",
		"available": true,
		"image_url": "https://cdn.example.com/img/42.jpg",
		"image_hash": "abc123"
	}
}`

func TestApplyCatalogEvent_HappyPath(t *testing.T) {
	stub := &syncUCStub{res: usecase.NewApplyEventRes(true, true, 7)}
	h := newWebhookHandler(stub)

	rec := postWebhook(h, testSecret, validEventBody)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"accepted": true, "task_queued": true, "product_id": 7}`, rec.Body.String())

	require.NotNil(t, stub.gotReq)
	assert.Equal(t, usecase.EventCreated, stub.gotReq.EventType)
	assert.EqualValues(t, 59999, stub.gotReq.Product.Price, "price is normalized to minor units")
}

func TestApplyCatalogEvent_MissingToken(t *testing.T) {
	stub := &syncUCStub{}
	h := newWebhookHandler(stub)

	rec := postWebhook(h, "", validEventBody)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, stub.gotReq, "unauthorized requests must not reach the usecase")
}

func TestApplyCatalogEvent_WrongToken(t *testing.T) {
	h := newWebhookHandler(&syncUCStub{})

	rec := postWebhook(h, "wrong", validEventBody)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApplyCatalogEvent_MalformedBody(t *testing.T) {
	h := newWebhookHandler(&syncUCStub{})

	rec := postWebhook(h, testSecret, `{"event_type": `)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyCatalogEvent_UnknownEventType(t *testing.T) {
	h := newWebhookHandler(&syncUCStub{})

	rec := postWebhook(h, testSecret, `{"event_type": "archived", "product": {"shop_id": "s", "id": "x"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyCatalogEvent_BadPrice(t *testing.T) {
	h := newWebhookHandler(&syncUCStub{})

	for _, price := range []string{"", "-5", "abc", "1.999"} {
		body := strings.Replace(validEventBody, `"599.99"`, `"`+price+`"`, 1)
		rec := postWebhook(h, testSecret, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "price %q must be rejected", price)
	}
}

func TestApplyCatalogEvent_DeleteSkipsPriceParsing(t *testing.T) {
	stub := &syncUCStub{res: usecase.NewApplyEventRes(true, false, 7)}
	h := newWebhookHandler(stub)

	body := `{"event_type": "deleted", "product": {"shop_id": "shop-1", "id": "sku-42"}}`
	rec := postWebhook(h, testSecret, body)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.gotReq)
	assert.Equal(t, usecase.EventDeleted, stub.gotReq.EventType)
}
