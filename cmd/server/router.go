package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/atelierhq/atelier-api/internal/api/middleware"
	"github.com/atelierhq/atelier-api/internal/api/shared"
)

// newRouter builds the HTTP route tree: a public health check and token
// exchange, and the batch lifecycle behind bearer authentication.
func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))
	r.Use(middleware.TraceMiddleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	authMW := middleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/token", app.authHandler.Token)

		r.Group(func(r chi.Router) {
			r.Use(authMW.Authenticate)

			r.Route("/batches", func(r chi.Router) {
				r.Post("/", app.batchHandler.Create)
				r.Get("/", app.batchHandler.List)
				r.Get("/{id}", app.batchHandler.Get)
				r.Post("/{id}/cancel", app.batchHandler.Cancel)
			})
		})
	})

	return r
}
