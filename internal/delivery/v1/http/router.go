package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	appcfg "github.com/vistore-tech/catalog-sync/internal/cfg"
	"github.com/vistore-tech/catalog-sync/internal/usecase"
	"github.com/vistore-tech/catalog-sync/pkg/logger"
)

type Router struct {
	router *chi.Mux
	logger logger.Logger
}

func NewRouter(router *chi.Mux, logger logger.Logger) *Router {
	return &Router{router: router, logger: logger}
}

func (r *Router) Init(syncUC usecase.SyncUC, searchUC usecase.SearchUC, webhookCfg *appcfg.WebhookCfg) {
	r.router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		WriteSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.router.Route("/api/v1", func(v1 chi.Router) {
		webhookHandler := NewWebhookHandler(syncUC, webhookCfg, r.logger)
		searchHandler := NewSearchHandler(searchUC, r.logger)

		v1.Route("/webhooks", func(wh chi.Router) {
			wh.Post("/catalog", webhookHandler.applyCatalogEvent)
		})
		v1.Route("/search", func(s chi.Router) {
			s.Post("/similar", searchHandler.findSimilar)
		})
	})
}
