// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/bibliograph/internal/catalog"
	"github.com/tomtom215/bibliograph/internal/embedding"
	"github.com/tomtom215/bibliograph/internal/logging"
	"github.com/tomtom215/bibliograph/internal/models"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

// ListItems handles GET /api/v1/items.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	items, err := h.store.Items(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list items", err)
		return
	}
	if items == nil {
		items = []recommend.Item{}
	}

	respondSuccess(w, http.StatusOK, items, time.Since(start))
}

// GetItem handles GET /api/v1/items/{id}.
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	start := time.Now()
	item, err := h.store.GetItem(r.Context(), id)
	if errors.Is(err, catalog.ErrItemNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Item not found in the catalog", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load item", err)
		return
	}

	respondSuccess(w, http.StatusOK, item, time.Since(start))
}

// UpsertItem handles PUT /api/v1/items/{id}.
// The stored item is replaced; when an embedding provider is configured
// the item's embedding is regenerated from its metadata and description.
// Changes take effect in recommendations after the next graph rebuild.
func (h *Handler) UpsertItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	var req models.ItemUpsert
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	req.ID = id
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    apiErr,
		})
		return
	}

	item := recommend.Item{
		ID:          req.ID,
		Title:       req.Title,
		Author:      req.Author,
		Series:      req.Series,
		SeriesIndex: req.SeriesIndex,
		Tags:        req.Tags,
		Rating:      req.Rating,
	}

	start := time.Now()
	if err := h.store.PutItem(r.Context(), item); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store item", err)
		return
	}

	if h.embedder != nil {
		prompt := embedding.PromptForItem(item, req.Description)
		vec, err := h.embedder.Embed(r.Context(), prompt)
		if err != nil {
			// The item stays usable through metadata signals; the next
			// upsert or rebuild can retry the embedding.
			logging.Warn().Err(err).Int64("item_id", item.ID).Msg("Embedding generation failed")
		} else if err := h.store.PutEmbedding(r.Context(), item.ID, vec); err != nil {
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store embedding", err)
			return
		}
	}

	respondSuccess(w, http.StatusOK, item, time.Since(start))
}

// RateItem handles PUT /api/v1/items/{id}/rating.
// Ratings feed the user signal at the next rebuild and seed the
// library-wide profile endpoint; a zero rating clears the item's rating.
func (h *Handler) RateItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	var req models.RatingUpdate
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    apiErr,
		})
		return
	}

	start := time.Now()
	item, err := h.store.GetItem(r.Context(), id)
	if errors.Is(err, catalog.ErrItemNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Item not found in the catalog", nil)
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load item", err)
		return
	}

	item.Rating = req.Rating
	if err := h.store.PutItem(r.Context(), item); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store item", err)
		return
	}

	respondSuccess(w, http.StatusOK, item, time.Since(start))
}

// PutItemEmbedding handles POST /api/v1/items/{id}/embedding.
// It attaches an externally computed vector, bypassing the configured
// embedding provider. The vector participates at the next rebuild.
func (h *Handler) PutItemEmbedding(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	var req models.EmbeddingUpdate
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		respondJSON(w, http.StatusBadRequest, &models.APIResponse{
			Status:   "error",
			Metadata: models.Metadata{Timestamp: time.Now().UTC()},
			Error:    apiErr,
		})
		return
	}

	start := time.Now()
	if _, err := h.store.GetItem(r.Context(), id); errors.Is(err, catalog.ErrItemNotFound) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Item not found in the catalog", nil)
		return
	} else if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load item", err)
		return
	}

	if err := h.store.PutEmbedding(r.Context(), id, req.Vector); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to store embedding", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]any{"id": id, "dimensions": len(req.Vector)}, time.Since(start))
}

// DeleteItem handles DELETE /api/v1/items/{id}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}

	start := time.Now()
	if err := h.store.DeleteItem(r.Context(), id); err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete item", err)
		return
	}

	respondSuccess(w, http.StatusOK, map[string]int64{"deleted": id}, time.Since(start))
}
