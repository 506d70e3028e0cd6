// Package main provides the API router setup.
package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/spherical-ai/part-extractor/cmd/part-extractor-api/handlers"
	"github.com/spherical-ai/part-extractor/cmd/part-extractor-api/middleware"
	"github.com/spherical-ai/part-extractor/internal/api/rpc"
	"github.com/spherical-ai/part-extractor/internal/index"
	"github.com/spherical-ai/part-extractor/internal/observability"
	"github.com/spherical-ai/part-extractor/internal/pdf"
)

// Services is what the router needs from the application.
type Services struct {
	Processor      handlers.Processor
	Documents      handlers.Documents
	Validator      *pdf.Validator
	Stats          func(ctx context.Context) (index.Stats, error)
	RetrievalK     int
	AllowedOrigins []string
}

// NewRouter creates the main API router with all routes configured.
func NewRouter(logger *observability.Logger, svc Services) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceID)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(svc.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","service":"part-extractor"}`))
	})

	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if svc.Stats == nil {
			w.Write([]byte(`{"status":"ready"}`))
			return
		}
		st, err := svc.Stats(r.Context())
		if err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "ready", "index": st})
	})

	extractionHandler := handlers.NewExtractionHandler(logger, svc.Processor, svc.Documents, svc.Validator)
	ragHandler := handlers.NewRAGHandler(logger, svc.Documents, svc.Validator, svc.RetrievalK)

	r.Route("/api", func(r chi.Router) {
		r.Route("/extract", func(r chi.Router) {
			r.Post("/process", extractionHandler.Process)
			r.Post("/metrics", extractionHandler.Metrics)
		})

		r.Route("/rag", func(r chi.Router) {
			r.Post("/upload", ragHandler.Upload)
			r.Post("/query", ragHandler.Query)
		})
	})

	path, h := rpc.NewExtractionService(logger, svc.Processor, svc.Documents).Handler()
	r.Mount(path, h)

	return r
}
