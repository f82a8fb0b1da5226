package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lingolab/vocab-srs/internal/api"
	apiMiddleware "github.com/lingolab/vocab-srs/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	reviewHandler := api.NewReviewHandler(app.engine, app.due, nil, app.logger)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService)

	r.Route("/api", func(r chi.Router) {
		r.Use(authMiddleware.Authenticate)
		r.Use(app.rateLimiter.Middleware)

		r.Route("/lists/{"+api.ListIDParam+"}", func(r chi.Router) {
			r.Post("/record", reviewHandler.CreateOrGetRecord)
			r.Get("/record", reviewHandler.GetRecord)
			r.Post("/reviews", reviewHandler.ApplyReview)
		})

		r.Get("/reviews/due", reviewHandler.ListDue)
		r.Get("/reviews/next", reviewHandler.NextDue)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	r.Handle("/metrics", app.metrics.Handler())

	return r
}
