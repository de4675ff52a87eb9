package http

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/e"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

// Заголовок с общим секретом вебхука.
const webhookTokenHeader = "X-Webhook-Token"

// catalogEvent — сырое событие вебхука внешней CMS до нормализации.
type catalogEvent struct {
	EventType string          `json:"event_type"`
	Product   catalogProduct  `json:"product"`
}

type catalogProduct struct {
	ShopID     string `json:"shop_id"`
	ExternalID string `json:"id"` // идентификатор товара во внешней системе
	Title      string `json:"title"`
	Price      string `json:"price"` // денежная строка, например "599.99"
	Available  bool   `json:"available"`
	ImageURL   string `json:"image_url"`
	ImageHash  string `json:"image_hash"`
}

type webhookResponse struct {
	Accepted   bool  `json:"accepted"`
	TaskQueued bool  `json:"task_queued"`
	ProductID  int64 `json:"product_id,omitempty"`
}

type WebhookHandler struct {
	syncUsecase usecase.SyncUC
	cfg         *cfg.WebhookCfg
	logger      logger.Logger
}

func NewWebhookHandler(syncUsecase usecase.SyncUC, cfg *cfg.WebhookCfg, logger logger.Logger) *WebhookHandler {
	return &WebhookHandler{syncUsecase: syncUsecase, cfg: cfg, logger: logger}
}

// applyCatalogEvent принимает событие каталога, синхронно применяет его к БД
// и ставит задачу векторизации. Ответ 200 означает «каталог обновлён»,
// а не «вектор уже проиндексирован».
func (h *WebhookHandler) applyCatalogEvent(w http.ResponseWriter, r *http.Request) {
	const maxBodySize = 1 << 20

	if !h.authorized(r) {
		h.logger.Warnf("%d webhook rejected: bad credential", http.StatusUnauthorized)
		WriteError(w, e.ErrUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var event catalogEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		h.logger.Warnf("%d malformed webhook body: %s", http.StatusBadRequest, err.Error())
		WriteError(w, e.ErrInvalidEvent)
		return
	}

	req, err := normalizeEvent(&event)
	if err != nil {
		h.logger.Warnf("%d invalid webhook event: %s", http.StatusBadRequest, err.Error())
		WriteError(w, err)
		return
	}

	res, err := h.syncUsecase.ApplyEvent(r.Context(), req)
	if err != nil {
		h.logger.Warnf("%s", err.Error())
		WriteError(w, err)
		return
	}

	WriteSuccess(w, http.StatusOK, &webhookResponse{
		Accepted:   res.Accepted,
		TaskQueued: res.TaskQueued,
		ProductID:  res.ProductID,
	})
}

// authorized сравнивает заголовок с секретом за константное время.
func (h *WebhookHandler) authorized(r *http.Request) bool {
	token := r.Header.Get(webhookTokenHeader)
	if token == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(h.cfg.Secret)) == 1
}

// normalizeEvent переводит сырое событие в каноническую форму:
// цена становится int64 в минорных единицах, тип события валидируется здесь,
// полнота полей — в usecase.
func normalizeEvent(event *catalogEvent) (*usecase.ApplyEventReq, error) {
	switch event.EventType {
	case usecase.EventCreated, usecase.EventUpdated, usecase.EventDeleted:
	default:
		return nil, e.Wrap(event.EventType, e.ErrInvalidEventType)
	}

	var priceCents int64
	if event.EventType != usecase.EventDeleted {
		var err error
		priceCents, err = parsePriceToCents(event.Product.Price)
		if err != nil {
			return nil, err
		}
	}

	return &usecase.ApplyEventReq{
		EventType: event.EventType,
		Product: usecase.ProductPayload{
			ShopID:     event.Product.ShopID,
			ExternalID: event.Product.ExternalID,
			Title:      event.Product.Title,
			Price:      priceCents,
			Available:  event.Product.Available,
			ImageKey:   event.Product.ImageURL,
			ImageHash:  event.Product.ImageHash,
		},
	}, nil
}
