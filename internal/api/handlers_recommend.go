// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/bibliograph/internal/cache"
	"github.com/tomtom215/bibliograph/internal/logging"
	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
	"github.com/tomtom215/bibliograph/internal/recommend"
)

// engineError maps engine errors to the API error vocabulary.
func engineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, recommend.ErrNoSnapshot):
		respondError(w, http.StatusServiceUnavailable, "ENGINE_NOT_READY", "The similarity graph has not been built yet", nil)
	case errors.Is(err, recommend.ErrUnknownItem):
		respondError(w, http.StatusNotFound, "NOT_FOUND", "Item not found in the catalog", nil)
	case errors.Is(err, recommend.ErrInvalidParameter):
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "INTERNAL_ERROR", "Recommendation request timed out", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Recommendation request failed", err)
	}
}

// recommendOutcome maps an engine response to a metric outcome label.
func recommendOutcome(resp *recommend.Response) string {
	if resp.Status != "" {
		return resp.Status
	}
	return "success"
}

// serveCachedBody serves a previously rendered body for the request URL,
// honoring If-None-Match. Returns true when the request was satisfied.
func (h *Handler) serveCachedBody(w http.ResponseWriter, r *http.Request) bool {
	entry, ok := h.respCache.Get(r.URL.RequestURI())
	if !ok {
		return false
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == entry.ETag {
		w.WriteHeader(http.StatusNotModified)
		return true
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", entry.ETag)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(entry.Body); err != nil {
		logging.Error().Err(err).Msg("Failed to write cached response")
	}
	return true
}

// storeAndRespond renders the success envelope, caches the body for the
// request URL, and writes it.
func (h *Handler) storeAndRespond(w http.ResponseWriter, r *http.Request, data any, queryTime time.Duration) {
	resp := &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: queryTime.Milliseconds(),
		},
	}

	body, err := json.Marshal(resp)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to encode response", err)
		return
	}

	etag := generateETag(body)
	h.respCache.Add(r.URL.RequestURI(), cache.Entry{Body: body, ETag: etag})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// Recommendations handles GET /api/v1/recommendations/{id}.
func (h *Handler) Recommendations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	limit := getIntParam(r, "limit", 0)

	if h.serveCachedBody(w, r) {
		metrics.CacheHits.Inc()
		return
	}
	metrics.CacheMisses.Inc()

	ctx, cancel := h.requestContext(r)
	defer cancel()

	start := time.Now()
	resp, err := h.engine.RecommendFor(ctx, id, limit)
	if err != nil {
		metrics.ObserveRecommend("item", "error", 0, time.Since(start))
		engineError(w, err)
		return
	}
	metrics.ObserveRecommend("item", recommendOutcome(resp), resp.TotalCandidates, time.Since(start))

	h.storeAndRespond(w, r, resp, time.Since(start))
}

// ProfileRecommendations handles POST /api/v1/recommendations/profile.
func (h *Handler) ProfileRecommendations(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileRequest
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

	rated := make([]recommend.RatedItem, len(req.Rated))
	for i, rr := range req.Rated {
		rated[i] = recommend.RatedItem{ID: rr.ID, Rating: rr.Rating}
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	start := time.Now()
	resp, err := h.engine.RecommendForProfile(ctx, rated, req.Limit)
	if err != nil {
		metrics.ObserveRecommend("profile", "error", 0, time.Since(start))
		engineError(w, err)
		return
	}
	metrics.ObserveRecommend("profile", recommendOutcome(resp), resp.TotalCandidates, time.Since(start))

	respondSuccess(w, http.StatusOK, resp, time.Since(start))
}

// LibraryRecommendations handles GET /api/v1/recommendations/profile.
// It builds the taste profile from the catalog's stored ratings instead
// of a request body.
func (h *Handler) LibraryRecommendations(w http.ResponseWriter, r *http.Request) {
	limit := getIntParam(r, "limit", 0)

	if h.serveCachedBody(w, r) {
		metrics.CacheHits.Inc()
		return
	}
	metrics.CacheMisses.Inc()

	ctx, cancel := h.requestContext(r)
	defer cancel()

	start := time.Now()
	items, err := h.store.Items(ctx)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list items", err)
		return
	}

	var rated []recommend.RatedItem
	for i := range items {
		if items[i].Rated() {
			rated = append(rated, recommend.RatedItem{ID: items[i].ID, Rating: items[i].Rating})
		}
	}
	if len(rated) == 0 {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", "No rated items in the catalog", nil)
		return
	}

	resp, err := h.engine.RecommendForProfile(ctx, rated, limit)
	if err != nil {
		metrics.ObserveRecommend("profile", "error", 0, time.Since(start))
		engineError(w, err)
		return
	}
	metrics.ObserveRecommend("profile", recommendOutcome(resp), resp.TotalCandidates, time.Since(start))

	h.storeAndRespond(w, r, resp, time.Since(start))
}

// Similar handles GET /api/v1/items/{id}/similar.
// It returns direct graph neighbors without expansion or reranking.
func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	limit := getIntParam(r, "limit", 0)

	start := time.Now()
	similar, err := h.engine.Similar(id, limit)
	if err != nil {
		engineError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, similar, time.Since(start))
}

// Neighborhood handles GET /api/v1/items/{id}/graph.
// It returns a bounded neighborhood extract for visualization.
func (h *Handler) Neighborhood(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	depth := getIntParam(r, "depth", 0)
	maxNodes := getIntParam(r, "max_nodes", 0)

	ctx, cancel := h.requestContext(r)
	defer cancel()

	start := time.Now()
	view, err := h.engine.NeighborhoodGraph(ctx, id, depth, maxNodes)
	if err != nil {
		// A deadline mid-walk still yields the hops explored so far;
		// serve those flagged partial rather than failing the request.
		if errors.Is(err, context.DeadlineExceeded) && view != nil {
			respondSuccess(w, http.StatusOK, view, time.Since(start))
			return
		}
		engineError(w, err)
		return
	}

	respondSuccess(w, http.StatusOK, view, time.Since(start))
}

// requestContext derives a bounded context for one engine request.
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := h.config.Recommend.RequestTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), timeout)
}
