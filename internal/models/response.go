// Bibliograph - Personal Library Recommendation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bibliograph

// Package models holds the wire types shared by the HTTP API.
package models

import "time"

// APIResponse is the standardized response wrapper used by all HTTP
// endpoints: "success" responses carry Data, "error" responses carry
// Error. Metadata is always present.
type APIResponse struct {
	Status   string    `json:"status"`
	Data     any       `json:"data"`
	Metadata Metadata  `json:"metadata"`
	Error    *APIError `json:"error,omitempty"`
}

// Metadata contains per-response observability fields.
type Metadata struct {
	// Timestamp is when the response was generated.
	Timestamp time.Time `json:"timestamp"`

	// QueryTimeMS is the engine latency in milliseconds, 0 when cached.
	QueryTimeMS int64 `json:"query_time_ms,omitempty"`

	// Cached reports whether the response came from cache.
	Cached bool `json:"cached,omitempty"`

	// RequestID correlates the response with log lines.
	RequestID string `json:"request_id,omitempty"`
}

// APIError carries structured error details.
//
// Codes used by the API: VALIDATION_ERROR, NOT_FOUND, ENGINE_NOT_READY,
// RATE_LIMIT_EXCEEDED, INTERNAL_ERROR.
type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ProfileRequest is the body of a profile recommendation request.
type ProfileRequest struct {
	// Rated lists the requester's rated items. At least one entry.
	Rated []ProfileRating `json:"rated" validate:"required,min=1,dive"`

	// Limit is the number of recommendations wanted; 0 selects the
	// server default.
	Limit int `json:"limit" validate:"gte=0"`
}

// ProfileRating is one rated item in a profile request.
type ProfileRating struct {
	ID     int64 `json:"id" validate:"required"`
	Rating int   `json:"rating" validate:"required,gte=1,lte=5"`
}

// ItemUpsert is the body for creating or replacing a catalog item.
type ItemUpsert struct {
	ID          int64    `json:"id" validate:"required"`
	Title       string   `json:"title" validate:"required,max=512"`
	Author      string   `json:"author,omitempty" validate:"max=256"`
	Series      string   `json:"series,omitempty" validate:"max=256"`
	SeriesIndex float64  `json:"series_index,omitempty" validate:"gte=0"`
	Tags        []string `json:"tags,omitempty" validate:"max=64,dive,max=64"`
	Rating      int      `json:"rating,omitempty" validate:"gte=0,lte=5"`

	// Description is free text used for embedding generation. Never
	// stored on the item itself.
	Description string `json:"description,omitempty"`
}

// RatingUpdate is the body for setting an item's rating. A zero rating
// clears it.
type RatingUpdate struct {
	Rating int `json:"rating" validate:"gte=0,lte=5"`
}

// EmbeddingUpdate is the body for attaching an externally computed
// embedding vector to an item.
type EmbeddingUpdate struct {
	Vector []float64 `json:"vector" validate:"required,min=1"`
}

// RebuildResponse reports the outcome of a graph rebuild request.
type RebuildResponse struct {
	Nodes      int   `json:"nodes"`
	Edges      int   `json:"edges"`
	Pairs      int   `json:"pairs"`
	DurationMS int64 `json:"duration_ms"`
}

// HealthResponse reports service health.
type HealthResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Ready     bool      `json:"ready"`
	GraphAge  float64   `json:"graph_age_seconds,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
