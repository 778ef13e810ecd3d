package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// newRouter wires the API routes.
func newRouter(app *app) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"docindex"}`))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/documents", app.handleProcessDocument)
		r.Get("/search", app.handleSearch)
		r.Get("/index/stats", app.handleStats)
	})

	return r
}
