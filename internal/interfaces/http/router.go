package httpinterface

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"
)

func newRouter(h *handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			r.Post("/", h.createTransaction)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.getTransaction)
				r.Post("/confirm", h.confirmTransaction)
				r.Post("/complete", h.completeTransaction)
				r.Post("/dispute", h.disputeTransaction)
				r.Post("/cancel", h.cancelTransaction)
				r.Post("/resolve", h.resolveDispute)
				r.Post("/reconcile", h.reconcileTransaction)
			})
		})
		r.Get("/parties/{party}/transactions", h.listPartyTransactions)
		r.Get("/statistics", h.getStatistics)
		r.Route("/webhooks", func(r chi.Router) {
			r.Post("/", h.addWebhook)
			r.Get("/", h.listWebhooks)
			r.Delete("/{id}", h.removeWebhook)
		})
	})

	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		log.WithFields(log.Fields{
			"request_id": chimw.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"elapsed":    time.Since(start).String(),
		}).Debug("http request")
	})
}
