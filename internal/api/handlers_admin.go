// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/bibliograph/internal/logging"
	"github.com/tomtom215/bibliograph/internal/metrics"
	"github.com/tomtom215/bibliograph/internal/models"
)

// Health handles GET /healthz.
// The service reports "ok" once a graph snapshot exists, "starting"
// before that. Both respond 200 so orchestration restarts are driven
// by liveness, not by rebuild timing.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ready := h.engine.Ready()
	status := "ok"
	if !ready {
		status = "starting"
	}

	resp := models.HealthResponse{
		Status:    status,
		Version:   h.version,
		Ready:     ready,
		Timestamp: time.Now().UTC(),
	}
	if builtAt := h.engine.GraphBuiltAt(); !builtAt.IsZero() {
		resp.GraphAge = time.Since(builtAt).Seconds()
	}

	respondSuccess(w, http.StatusOK, resp, 0)
}

// Rebuild handles POST /api/v1/rebuild.
// It rebuilds the similarity graph synchronously, persists the new edge
// set, and clears response caches.
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	stats, err := h.engine.RebuildGraph(r.Context())
	if err != nil {
		metrics.ObserveRebuild(0, 0, time.Since(start), err)
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Graph rebuild failed", err)
		return
	}
	metrics.ObserveRebuild(stats.Nodes, stats.Edges, stats.Duration, nil)

	if err := h.store.SaveEdges(r.Context(), h.engine.Edges()); err != nil {
		// The in-memory snapshot is already live; only persistence for
		// the next restart failed.
		logging.Error().Err(err).Msg("Failed to persist rebuilt edges")
	}
	h.ClearCache()

	respondSuccess(w, http.StatusOK, models.RebuildResponse{
		Nodes:      stats.Nodes,
		Edges:      stats.Edges,
		Pairs:      stats.Pairs,
		DurationMS: stats.DurationMS,
	}, time.Since(start))
}

// EngineMetrics handles GET /api/v1/engine/metrics.
// Prometheus scrape data lives at /metrics; this endpoint exposes the
// engine's own counters as JSON for the UI.
func (h *Handler) EngineMetrics(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, h.engine.GetMetrics(), 0)
}
