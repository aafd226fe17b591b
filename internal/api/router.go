// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP route table with the full middleware stack.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied in order.
	r.Use(RequestID())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger())
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.config.API.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag", "X-Request-ID"},
		MaxAge:         86400,
	}))

	// Operational endpoints stay outside the rate limit so scrapes and
	// probes never compete with API traffic.
	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if limit := h.config.API.RateLimit; limit > 0 {
			r.Use(httprate.Limit(
				limit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(rateLimitExceeded),
			))
		}

		r.Get("/recommendations/{id}", h.Recommendations)
		r.Get("/recommendations/profile", h.LibraryRecommendations)
		r.Post("/recommendations/profile", h.ProfileRecommendations)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Get("/{id}", h.GetItem)
			r.Put("/{id}", h.UpsertItem)
			r.Delete("/{id}", h.DeleteItem)
			r.Put("/{id}/rating", h.RateItem)
			r.Post("/{id}/embedding", h.PutItemEmbedding)
			r.Get("/{id}/similar", h.Similar)
			r.Get("/{id}/graph", h.Neighborhood)
		})

		r.Post("/rebuild", h.Rebuild)
		r.Get("/engine/metrics", h.EngineMetrics)
	})

	return r
}
