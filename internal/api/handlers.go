// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package api provides the HTTP surface of the recommendation engine
// using the Chi router.
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor (this file)
//   - handlers_recommend.go: recommendation and similarity endpoints
//   - handlers_items.go: catalog CRUD endpoints
//   - handlers_admin.go: health, rebuild, and engine metrics endpoints
//   - helpers.go: shared response and parameter helpers
//   - router.go: route table and middleware stack
package api

import (
	"context"
	"time"

	"github.com/tomtom215/bibliograph/internal/cache"
	"github.com/tomtom215/bibliograph/internal/catalog"
	"github.com/tomtom215/bibliograph/internal/config"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

// Embedder produces embedding vectors for item text. Optional; when nil
// the engine falls back to metadata-only signals for new items.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Handler contains dependencies for API handlers.
type Handler struct {
	engine    *recommend.Engine
	store     *catalog.Store
	embedder  Embedder
	config    *config.Config
	respCache *cache.LRUCache
	startTime time.Time
	version   string
}

// NewHandler creates an API handler.
// embedder may be nil when no embedding provider is configured.
func NewHandler(engine *recommend.Engine, store *catalog.Store, embedder Embedder, cfg *config.Config, version string) *Handler {
	ttl := cfg.Recommend.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Handler{
		engine:    engine,
		store:     store,
		embedder:  embedder,
		config:    cfg,
		respCache: cache.NewLRUCache(1000, ttl),
		startTime: time.Now(),
		version:   version,
	}
}

// ClearCache drops all cached response bodies. Called after a rebuild so
// clients never receive bodies computed against the previous snapshot.
func (h *Handler) ClearCache() {
	h.respCache.Clear()
}
