package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"smartlock-service/config"
)

// NewRouter はルーターを生成する。
func NewRouter(h *LockHandler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// ミドルウェア
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)

	// ルート定義
	r.Route("/v1", func(r chi.Router) {
		r.Post("/characteristics/input", h.WriteInput)
		r.Get("/lock", h.GetLock)
		r.Get("/logs", h.GetLogs)
	})

	if cfg.OtelEnabled {
		return otelhttp.NewHandler(r, "smartlock-service",
			otelhttp.WithSpanNameFormatter(func(operation string, req *http.Request) string {
				return req.Method + " " + req.URL.Path
			}),
		)
	}
	return r
}
